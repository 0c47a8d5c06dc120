package cart

import (
	"github.com/google/uuid"

	"github.com/haatbari/haatbari-backend/internal/coupons"
	"github.com/haatbari/haatbari-backend/pkg/db/models"
)

// View is the cart read-model returned to the HTTP layer: re-priced
// lines plus computed totals.
type View struct {
	ID     uuid.UUID   `json:"id"`
	Items  []ItemView  `json:"items"`
	Coupon *CouponView `json:"coupon,omitempty"`
	Totals Totals      `json:"totals"`
}

// ItemView is one cart line with its live catalog pricing.
type ItemView struct {
	ID             uuid.UUID  `json:"id"`
	ProductID      uuid.UUID  `json:"productId"`
	VariantID      *uuid.UUID `json:"variantId,omitempty"`
	Name           string     `json:"name"`
	SKU            string     `json:"sku"`
	UnitPricePaisa int64      `json:"unitPricePaisa"`
	Quantity       int        `json:"quantity"`
	LineTotalPaisa int64      `json:"lineTotalPaisa"`
	AvailableQty   int        `json:"availableQty"`
}

// CouponView reports whether the attached coupon still applies. A coupon
// that stopped applying stays attached but contributes no discount until
// the shopper removes it or checkout rejects it.
type CouponView struct {
	Code    string `json:"code"`
	Applied bool   `json:"applied"`
	Reason  string `json:"reason,omitempty"`
}

// CheckoutPricing is the authoritative pricing snapshot checkout runs on.
// Unlike the display view, building it fails hard on any coupon problem.
type CheckoutPricing struct {
	Cart   *models.Cart
	Lines  []PricedLine
	Totals Totals
	Coupon *coupons.Evaluation
}
