package cart

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/haatbari/haatbari-backend/internal/catalog"
	"github.com/haatbari/haatbari-backend/internal/coupons"
	"github.com/haatbari/haatbari-backend/internal/identity"
	"github.com/haatbari/haatbari-backend/pkg/db/models"
	"github.com/haatbari/haatbari-backend/pkg/money"
)

// Repository defines persistence operations for carts and their lines.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByIdentity(ctx context.Context, id identity.Identity) (*models.Cart, error)
	Create(ctx context.Context, cart *models.Cart) error
	FindItem(ctx context.Context, cartID, itemID uuid.UUID) (*models.CartItem, error)
	FindLine(ctx context.Context, cartID, productID, variantID uuid.UUID) (*models.CartItem, error)
	CreateItem(ctx context.Context, item *models.CartItem) error
	UpdateItemQuantity(ctx context.Context, itemID uuid.UUID, quantity int) error
	DeleteItem(ctx context.Context, itemID uuid.UUID) error
	DeleteItems(ctx context.Context, cartID uuid.UUID) error
	SetCoupon(ctx context.Context, cartID uuid.UUID, code *string) error
	Delete(ctx context.Context, cartID uuid.UUID) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type lineResolver interface {
	ResolveLine(ctx context.Context, line catalog.Line) (*catalog.ResolvedLine, error)
	ResolveLines(ctx context.Context, lines []catalog.Line) ([]catalog.ResolvedLine, error)
}

type couponEvaluator interface {
	Evaluate(ctx context.Context, code string, subtotal money.Money, now time.Time) (*coupons.Evaluation, error)
}
