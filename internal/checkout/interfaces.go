package checkout

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/haatbari/haatbari-backend/internal/cart"
	"github.com/haatbari/haatbari-backend/internal/identity"
	"github.com/haatbari/haatbari-backend/internal/orders"
	"github.com/haatbari/haatbari-backend/pkg/db/models"
	"github.com/haatbari/haatbari-backend/pkg/enums"
)

// Input is the checkout request after HTTP decoding. VariantID-level
// detail comes from the cart; the caller only picks addresses, a
// payment method, and optionally a coupon to attach in the same
// request.
type Input struct {
	ContactEmail      string
	PaymentMethod     enums.PaymentMethod
	ShippingAddressID uuid.UUID
	BillingAddressID  *uuid.UUID
	CouponCode        string
}

// Outcome is what the buyer gets back. RedirectURL is empty for
// synchronous payment methods.
type Outcome struct {
	Order       *orders.DTO
	RedirectURL string
}

type cartPricer interface {
	PriceForCheckout(ctx context.Context, id identity.Identity) (*cart.CheckoutPricing, error)
	AttachCoupon(ctx context.Context, id identity.Identity, code string) (*cart.View, error)
	ClearInTx(ctx context.Context, tx *gorm.DB, cartID uuid.UUID) error
}

type addressResolver interface {
	Resolve(ctx context.Context, id identity.Identity, addressID uuid.UUID) (*models.Address, error)
}

type couponSettler interface {
	SettleUsage(ctx context.Context, tx *gorm.DB, code string) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}
