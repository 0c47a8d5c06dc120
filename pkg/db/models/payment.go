package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/haatbari/haatbari-backend/pkg/enums"
)

// Payment is one-to-one with an Order. A retried attempt updates this record;
// it never creates a duplicate.
type Payment struct {
	ID      uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrderID uuid.UUID `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`

	Method enums.PaymentMethod `gorm:"column:method;not null"`
	Status enums.PaymentStatus `gorm:"column:status;not null;default:'pending'"`

	// ProviderSessionID is set once the hosted provider responds; COD
	// payments never get one.
	ProviderSessionID *string `gorm:"column:provider_session_id;index"`

	// AmountCharged/Currency reflect what the provider actually settles,
	// which may differ in currency from the order's BDT totals.
	AmountCharged int64          `gorm:"column:amount_charged;not null"`
	Currency      enums.Currency `gorm:"column:currency;not null;default:'BDT'"`

	FailureCount  int        `gorm:"column:failure_count;not null;default:0"`
	FailureReason *string    `gorm:"column:failure_reason"`
	PaidAt        *time.Time `gorm:"column:paid_at"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
