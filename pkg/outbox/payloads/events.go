package payloads

import (
	"time"

	"github.com/google/uuid"
)

// OrderCreatedEvent is queued when checkout snapshots a cart into an order.
type OrderCreatedEvent struct {
	OrderID       uuid.UUID `json:"orderId"`
	OrderNumber   string    `json:"orderNumber"`
	PaymentMethod string    `json:"paymentMethod"`
	TotalPaisa    int64     `json:"totalPaisa"`
	ContactEmail  string    `json:"contactEmail"`
}

// OrderConfirmedEvent asks the notification sink to send an order
// confirmation. Delivery mechanics live outside this service.
type OrderConfirmedEvent struct {
	OrderID      uuid.UUID `json:"orderId"`
	OrderNumber  string    `json:"orderNumber"`
	ContactEmail string    `json:"contactEmail"`
	TotalPaisa   int64     `json:"totalPaisa"`
	ConfirmedAt  time.Time `json:"confirmedAt"`
}

// OrderCancelledEvent records a cancellation, user-initiated or swept.
type OrderCancelledEvent struct {
	OrderID     uuid.UUID `json:"orderId"`
	OrderNumber string    `json:"orderNumber"`
	Reason      string    `json:"reason"`
	CancelledAt time.Time `json:"cancelledAt"`
}

// PaymentSettledEvent is queued when a provider callback reports a
// successful charge.
type PaymentSettledEvent struct {
	OrderID       uuid.UUID `json:"orderId"`
	OrderNumber   string    `json:"orderNumber"`
	AmountCharged int64     `json:"amountCharged"`
	Currency      string    `json:"currency"`
	PaidAt        time.Time `json:"paidAt"`
}

// PaymentFailedEvent is queued when a provider callback reports failure.
type PaymentFailedEvent struct {
	OrderID      uuid.UUID `json:"orderId"`
	OrderNumber  string    `json:"orderNumber"`
	ContactEmail string    `json:"contactEmail"`
	FailureCount int       `json:"failureCount"`
	Reason       string    `json:"reason,omitempty"`
}
