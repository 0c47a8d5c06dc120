package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/haatbari/haatbari-backend/pkg/enums"
)

// Coupon is a discount rule keyed by redemption code. Codes are stored
// uppercase; lookups fold case before comparing.
type Coupon struct {
	ID               uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	Code             string           `gorm:"column:code;not null;uniqueIndex"`
	Type             enums.CouponType `gorm:"column:type;not null"`
	// Value is a whole percentage for percentage coupons and paisa for fixed.
	Value            int64      `gorm:"column:value;not null"`
	MinOrderPaisa    int64      `gorm:"column:min_order_paisa;not null;default:0"`
	// MaxDiscountPaisa caps percentage discounts; zero means uncapped.
	MaxDiscountPaisa int64      `gorm:"column:max_discount_paisa;not null;default:0"`
	StartsAt         *time.Time `gorm:"column:starts_at"`
	ExpiresAt        *time.Time `gorm:"column:expires_at"`
	// UsageLimit of zero means unlimited.
	UsageLimit int       `gorm:"column:usage_limit;not null;default:0"`
	UsedCount  int       `gorm:"column:used_count;not null;default:0"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
