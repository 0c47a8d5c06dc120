package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/haatbari/haatbari-backend/pkg/enums"
)

// Order is the immutable checkout snapshot. Only status fields and the
// timestamps that record transitions ever change after creation.
type Order struct {
	ID           uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber  string     `gorm:"column:order_number;not null;uniqueIndex"`
	UserID       *uuid.UUID `gorm:"column:user_id;type:uuid;index"`
	// ContactEmail is mandatory for guest orders and keys guest lookup.
	ContactEmail string `gorm:"column:contact_email;not null"`

	Status        enums.OrderStatus   `gorm:"column:status;not null;default:'pending'"`
	PaymentMethod enums.PaymentMethod `gorm:"column:payment_method;not null"`

	SubtotalPaisa int64   `gorm:"column:subtotal_paisa;not null"`
	DiscountPaisa int64   `gorm:"column:discount_paisa;not null;default:0"`
	ShippingPaisa int64   `gorm:"column:shipping_paisa;not null;default:0"`
	TaxPaisa      int64   `gorm:"column:tax_paisa;not null;default:0"`
	TotalPaisa    int64   `gorm:"column:total_paisa;not null"`
	CouponCode    *string `gorm:"column:coupon_code"`

	ShippingAddress AddressSnapshot  `gorm:"column:shipping_address;type:jsonb;serializer:json"`
	BillingAddress  *AddressSnapshot `gorm:"column:billing_address;type:jsonb;serializer:json"`

	Items   []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Payment *Payment    `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`

	// StockReleasedAt makes cancellation's stock release idempotent.
	StockReleasedAt *time.Time `gorm:"column:stock_released_at"`
	ConfirmedAt     *time.Time `gorm:"column:confirmed_at"`
	CancelledAt     *time.Time `gorm:"column:cancelled_at"`
	DeliveredAt     *time.Time `gorm:"column:delivered_at"`
	CreatedAt       time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// OrderItem is the copied line snapshot; catalog edits never alter it.
type OrderItem struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrderID        uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID      uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	VariantID      uuid.UUID `gorm:"column:variant_id;type:uuid;not null"`
	Name           string    `gorm:"column:name;not null"`
	SKU            string    `gorm:"column:sku;not null"`
	UnitPricePaisa int64     `gorm:"column:unit_price_paisa;not null"`
	Quantity       int       `gorm:"column:quantity;not null"`
	TotalPaisa     int64     `gorm:"column:total_paisa;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
}
