package coupons

import (
	"context"

	"gorm.io/gorm"

	"github.com/haatbari/haatbari-backend/pkg/db/models"
)

// Repository defines persistence operations for coupon rules.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByCode(ctx context.Context, code string) (*models.Coupon, error)
	// IncrementUsage bumps used_count only while the usage limit is not
	// exhausted; it reports whether a row was updated.
	IncrementUsage(ctx context.Context, code string) (bool, error)
}
