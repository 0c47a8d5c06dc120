package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/haatbari/haatbari-backend/pkg/db/models"
	"github.com/haatbari/haatbari-backend/pkg/enums"
	"github.com/haatbari/haatbari-backend/pkg/pagination"
)

// Repository defines persistence operations for orders and payments.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	CreatePayment(ctx context.Context, payment *models.Payment) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByNumberAndEmail(ctx context.Context, orderNumber, email string) (*models.Order, error)
	FindByProviderSession(ctx context.Context, providerSessionID string) (*models.Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderList, error)
	// UpdateStatusIf moves the order status only when it currently sits
	// in one of the expected states; it reports whether a row moved.
	UpdateStatusIf(ctx context.Context, orderID uuid.UUID, from []enums.OrderStatus, to enums.OrderStatus, extra map[string]any) (bool, error)
	// MarkStockReleased flips stock_released_at once; it reports whether
	// this call won the flip.
	MarkStockReleased(ctx context.Context, orderID uuid.UUID, at time.Time) (bool, error)
	UpdatePayment(ctx context.Context, orderID uuid.UUID, updates map[string]any) error
	// UpdatePaymentStatusIf mirrors UpdateStatusIf for the payment row.
	UpdatePaymentStatusIf(ctx context.Context, orderID uuid.UUID, from []enums.PaymentStatus, to enums.PaymentStatus, extra map[string]any) (bool, error)
	FindStalePending(ctx context.Context, method enums.PaymentMethod, cutoff time.Time, limit int) ([]models.Order, error)
}

// OrderList is one page of a user's orders.
type OrderList struct {
	Orders     []models.Order
	NextCursor string
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}
