package coupons

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/haatbari/haatbari-backend/pkg/db/models"
	"github.com/haatbari/haatbari-backend/pkg/enums"
	pkgerrors "github.com/haatbari/haatbari-backend/pkg/errors"
	"github.com/haatbari/haatbari-backend/pkg/money"
)

// Service evaluates coupons against order subtotals and settles usage.
type Service interface {
	// Evaluate validates the coupon for the given subtotal and returns
	// the discount it grants. Rejections carry distinct error codes so
	// the shopper learns why the code did not apply.
	Evaluate(ctx context.Context, code string, subtotal money.Money, now time.Time) (*Evaluation, error)
	// SettleUsage consumes one redemption inside the checkout
	// transaction. It fails when the limit was exhausted in the window
	// between evaluation and settlement.
	SettleUsage(ctx context.Context, tx *gorm.DB, code string) error
}

type service struct {
	repo Repository
}

// NewService builds a coupon service backed by the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("coupon repository required")
	}
	return &service{repo: repo}, nil
}

// Evaluation is the outcome of a successful coupon check.
type Evaluation struct {
	Code     string
	Type     enums.CouponType
	Discount money.Money
}

func (s *service) Evaluate(ctx context.Context, code string, subtotal money.Money, now time.Time) (*Evaluation, error) {
	coupon, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeCouponNotFound, "coupon code not recognized")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load coupon")
	}

	if coupon.StartsAt != nil && now.Before(*coupon.StartsAt) {
		return nil, pkgerrors.New(pkgerrors.CodeCouponExpired, "coupon is not active yet")
	}
	if coupon.ExpiresAt != nil && now.After(*coupon.ExpiresAt) {
		return nil, pkgerrors.New(pkgerrors.CodeCouponExpired, "coupon has expired")
	}
	if coupon.UsageLimit > 0 && coupon.UsedCount >= coupon.UsageLimit {
		return nil, pkgerrors.New(pkgerrors.CodeCouponExhausted, "coupon redemption limit reached")
	}
	if subtotal.Amount < coupon.MinOrderPaisa {
		return nil, pkgerrors.New(pkgerrors.CodeCouponMinimum, "order subtotal below coupon minimum").
			WithDetails(map[string]int64{"minOrderPaisa": coupon.MinOrderPaisa})
	}

	discount, err := computeDiscount(coupon, subtotal)
	if err != nil {
		return nil, err
	}

	return &Evaluation{
		Code:     coupon.Code,
		Type:     coupon.Type,
		Discount: discount,
	}, nil
}

func (s *service) SettleUsage(ctx context.Context, tx *gorm.DB, code string) error {
	updated, err := s.repo.WithTx(tx).IncrementUsage(ctx, code)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "settle coupon usage")
	}
	if !updated {
		return pkgerrors.New(pkgerrors.CodeCouponExhausted, "coupon redemption limit reached")
	}
	return nil
}

// computeDiscount applies the coupon rule to the subtotal. Percentage
// discounts floor fractional paisa and then honor the per-coupon cap;
// neither kind ever exceeds the subtotal.
func computeDiscount(coupon *models.Coupon, subtotal money.Money) (money.Money, error) {
	switch coupon.Type {
	case enums.CouponTypePercentage:
		discount := subtotal.Percent(decimal.NewFromInt(coupon.Value))
		if coupon.MaxDiscountPaisa > 0 {
			discount = discount.ClampMax(money.Money{Amount: coupon.MaxDiscountPaisa, Currency: subtotal.Currency})
		}
		return discount.ClampMax(subtotal), nil
	case enums.CouponTypeFixed:
		discount := money.Money{Amount: coupon.Value, Currency: subtotal.Currency}
		return discount.ClampMax(subtotal), nil
	default:
		return money.Money{}, pkgerrors.New(pkgerrors.CodeInternal, "unknown coupon type "+string(coupon.Type))
	}
}
