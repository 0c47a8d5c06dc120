package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/haatbari/haatbari-backend/pkg/db/models"
	"github.com/haatbari/haatbari-backend/pkg/enums"
)

// DTO is the order read-model returned to the HTTP layer.
type DTO struct {
	ID            uuid.UUID               `json:"id"`
	OrderNumber   string                  `json:"orderNumber"`
	Status        enums.OrderStatus       `json:"status"`
	PaymentMethod enums.PaymentMethod     `json:"paymentMethod"`
	ContactEmail  string                  `json:"contactEmail"`
	SubtotalPaisa int64                   `json:"subtotalPaisa"`
	DiscountPaisa int64                   `json:"discountPaisa"`
	ShippingPaisa int64                   `json:"shippingPaisa"`
	TaxPaisa      int64                   `json:"taxPaisa"`
	TotalPaisa    int64                   `json:"totalPaisa"`
	CouponCode    *string                 `json:"couponCode,omitempty"`
	Shipping      models.AddressSnapshot  `json:"shippingAddress"`
	Billing       *models.AddressSnapshot `json:"billingAddress,omitempty"`
	Items         []ItemDTO               `json:"items"`
	Payment       *PaymentDTO             `json:"payment,omitempty"`
	CreatedAt     time.Time               `json:"createdAt"`
	ConfirmedAt   *time.Time              `json:"confirmedAt,omitempty"`
	CancelledAt   *time.Time              `json:"cancelledAt,omitempty"`
	DeliveredAt   *time.Time              `json:"deliveredAt,omitempty"`
}

// ItemDTO is one snapshot line of an order.
type ItemDTO struct {
	ProductID      uuid.UUID  `json:"productId"`
	VariantID      *uuid.UUID `json:"variantId,omitempty"`
	Name           string     `json:"name"`
	SKU            string     `json:"sku"`
	UnitPricePaisa int64      `json:"unitPricePaisa"`
	Quantity       int        `json:"quantity"`
	TotalPaisa     int64      `json:"totalPaisa"`
}

// PaymentDTO is the payment view embedded in an order.
type PaymentDTO struct {
	Method        enums.PaymentMethod `json:"method"`
	Status        enums.PaymentStatus `json:"status"`
	AmountCharged int64               `json:"amountCharged"`
	Currency      enums.Currency      `json:"currency"`
	FailureCount  int                 `json:"failureCount,omitempty"`
	PaidAt        *time.Time          `json:"paidAt,omitempty"`
}

// ToDTO maps an order row into the read-model.
func ToDTO(order *models.Order) *DTO {
	dto := &DTO{
		ID:            order.ID,
		OrderNumber:   order.OrderNumber,
		Status:        order.Status,
		PaymentMethod: order.PaymentMethod,
		ContactEmail:  order.ContactEmail,
		SubtotalPaisa: order.SubtotalPaisa,
		DiscountPaisa: order.DiscountPaisa,
		ShippingPaisa: order.ShippingPaisa,
		TaxPaisa:      order.TaxPaisa,
		TotalPaisa:    order.TotalPaisa,
		CouponCode:    order.CouponCode,
		Shipping:      order.ShippingAddress,
		Billing:       order.BillingAddress,
		CreatedAt:     order.CreatedAt,
		ConfirmedAt:   order.ConfirmedAt,
		CancelledAt:   order.CancelledAt,
		DeliveredAt:   order.DeliveredAt,
	}
	for _, item := range order.Items {
		line := ItemDTO{
			ProductID:      item.ProductID,
			Name:           item.Name,
			SKU:            item.SKU,
			UnitPricePaisa: item.UnitPricePaisa,
			Quantity:       item.Quantity,
			TotalPaisa:     item.TotalPaisa,
		}
		if item.VariantID != uuid.Nil {
			variantID := item.VariantID
			line.VariantID = &variantID
		}
		dto.Items = append(dto.Items, line)
	}
	if order.Payment != nil {
		dto.Payment = &PaymentDTO{
			Method:        order.Payment.Method,
			Status:        order.Payment.Status,
			AmountCharged: order.Payment.AmountCharged,
			Currency:      order.Payment.Currency,
			FailureCount:  order.Payment.FailureCount,
			PaidAt:        order.Payment.PaidAt,
		}
	}
	return dto
}
