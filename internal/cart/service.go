package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/haatbari/haatbari-backend/internal/catalog"
	"github.com/haatbari/haatbari-backend/internal/coupons"
	"github.com/haatbari/haatbari-backend/internal/identity"
	"github.com/haatbari/haatbari-backend/pkg/config"
	dbpkg "github.com/haatbari/haatbari-backend/pkg/db"
	"github.com/haatbari/haatbari-backend/pkg/db/models"
	pkgerrors "github.com/haatbari/haatbari-backend/pkg/errors"
	"github.com/haatbari/haatbari-backend/pkg/money"
)

// Service exposes cart operations. Every call takes the shopper identity
// explicitly; nothing is inferred from ambient request state.
type Service interface {
	GetOrCreate(ctx context.Context, id identity.Identity) (*View, error)
	AddItem(ctx context.Context, id identity.Identity, input AddItemInput) (*View, error)
	// UpdateItemQuantity treats quantity zero as removal.
	UpdateItemQuantity(ctx context.Context, id identity.Identity, itemID uuid.UUID, quantity int) (*View, error)
	RemoveItem(ctx context.Context, id identity.Identity, itemID uuid.UUID) (*View, error)
	// Clear empties the cart and drops any attached coupon.
	Clear(ctx context.Context, id identity.Identity) (*View, error)
	AttachCoupon(ctx context.Context, id identity.Identity, code string) (*View, error)
	DetachCoupon(ctx context.Context, id identity.Identity) (*View, error)
	// Merge folds the anonymous session cart into the user's cart after
	// login. Lines are additive, clamped to available stock; the
	// anonymous cart is deleted afterward. Running it again is a no-op.
	Merge(ctx context.Context, userID uuid.UUID, sessionToken string) (*View, error)
	// PriceForCheckout builds the authoritative pricing snapshot. It
	// fails with EmptyCart for a bare cart and propagates coupon
	// rejections instead of zeroing the discount.
	PriceForCheckout(ctx context.Context, id identity.Identity) (*CheckoutPricing, error)
	// ClearInTx empties a cart inside an enclosing transaction.
	ClearInTx(ctx context.Context, tx *gorm.DB, cartID uuid.UUID) error
}

// AddItemInput is the payload for adding one line. VariantID stays the
// zero UUID for products sold without variants.
type AddItemInput struct {
	ProductID uuid.UUID
	VariantID uuid.UUID
	Quantity  int
}

type service struct {
	repo     Repository
	tx       txRunner
	catalog  lineResolver
	coupons  couponEvaluator
	shipping ShippingRule
	now      func() time.Time
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo Repository, tx txRunner, resolver lineResolver, evaluator couponEvaluator, cfg config.CheckoutConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if resolver == nil {
		return nil, fmt.Errorf("catalog resolver required")
	}
	if evaluator == nil {
		return nil, fmt.Errorf("coupon evaluator required")
	}
	return &service{
		repo:    repo,
		tx:      tx,
		catalog: resolver,
		coupons: evaluator,
		shipping: ShippingRule{
			FlatPaisa:     cfg.ShippingFlatPaisa,
			FreeOverPaisa: cfg.FreeShippingOverPaisa,
		},
		now: time.Now,
	}, nil
}

func (s *service) GetOrCreate(ctx context.Context, id identity.Identity) (*View, error) {
	cart, err := s.getOrCreate(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, cart)
}

func (s *service) AddItem(ctx context.Context, id identity.Identity, input AddItemInput) (*View, error) {
	if input.Quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	cart, err := s.getOrCreate(ctx, id)
	if err != nil {
		return nil, err
	}

	resolved, err := s.catalog.ResolveLine(ctx, catalog.Line{ProductID: input.ProductID, VariantID: input.VariantID})
	if err != nil {
		return nil, err
	}

	inCart := 0
	var existing *models.CartItem
	for i := range cart.Items {
		if cart.Items[i].ProductID == input.ProductID && cart.Items[i].VariantID == input.VariantID {
			existing = &cart.Items[i]
			inCart = cart.Items[i].Quantity
			break
		}
	}

	if inCart+input.Quantity > resolved.AvailableQty {
		return nil, pkgerrors.New(pkgerrors.CodeOutOfStock, "insufficient stock for "+resolved.Name).
			WithDetails(map[string]int{"availableQty": resolved.AvailableQty, "inCartQty": inCart})
	}

	if existing != nil {
		if err := s.repo.UpdateItemQuantity(ctx, existing.ID, inCart+input.Quantity); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeUnavailable, err, "update cart line")
		}
	} else {
		item := &models.CartItem{
			ID:        uuid.New(),
			CartID:    cart.ID,
			ProductID: input.ProductID,
			VariantID: input.VariantID,
			Quantity:  input.Quantity,
		}
		if err := s.repo.CreateItem(ctx, item); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeUnavailable, err, "create cart line")
		}
	}

	return s.reload(ctx, id)
}

func (s *service) UpdateItemQuantity(ctx context.Context, id identity.Identity, itemID uuid.UUID, quantity int) (*View, error) {
	if quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must not be negative")
	}
	if quantity == 0 {
		return s.RemoveItem(ctx, id, itemID)
	}

	cart, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	item, err := s.repo.FindItem(ctx, cart.ID, itemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnavailable, err, "load cart line")
	}

	resolved, err := s.catalog.ResolveLine(ctx, catalog.Line{ProductID: item.ProductID, VariantID: item.VariantID})
	if err != nil {
		return nil, err
	}
	if quantity > resolved.AvailableQty {
		return nil, pkgerrors.New(pkgerrors.CodeOutOfStock, "insufficient stock for "+resolved.Name).
			WithDetails(map[string]int{"availableQty": resolved.AvailableQty})
	}

	if err := s.repo.UpdateItemQuantity(ctx, item.ID, quantity); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnavailable, err, "update cart line")
	}
	return s.reload(ctx, id)
}

func (s *service) RemoveItem(ctx context.Context, id identity.Identity, itemID uuid.UUID) (*View, error) {
	cart, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.FindItem(ctx, cart.ID, itemID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnavailable, err, "load cart line")
	}
	if err := s.repo.DeleteItem(ctx, itemID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnavailable, err, "delete cart line")
	}
	return s.reload(ctx, id)
}

func (s *service) Clear(ctx context.Context, id identity.Identity) (*View, error) {
	cart, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.ClearInTx(ctx, tx, cart.ID)
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnavailable, err, "clear cart")
	}
	return s.reload(ctx, id)
}

func (s *service) ClearInTx(ctx context.Context, tx *gorm.DB, cartID uuid.UUID) error {
	repo := s.repo.WithTx(tx)
	if err := repo.DeleteItems(ctx, cartID); err != nil {
		return err
	}
	return repo.SetCoupon(ctx, cartID, nil)
}

func (s *service) AttachCoupon(ctx context.Context, id identity.Identity, code string) (*View, error) {
	cart, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	lines, err := s.priceLines(ctx, cart)
	if err != nil {
		return nil, err
	}

	eval, err := s.coupons.Evaluate(ctx, code, Subtotal(lines), s.now())
	if err != nil {
		return nil, err
	}

	if err := s.repo.SetCoupon(ctx, cart.ID, &eval.Code); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnavailable, err, "attach coupon")
	}
	return s.reload(ctx, id)
}

func (s *service) DetachCoupon(ctx context.Context, id identity.Identity) (*View, error) {
	cart, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetCoupon(ctx, cart.ID, nil); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnavailable, err, "detach coupon")
	}
	return s.reload(ctx, id)
}

func (s *service) PriceForCheckout(ctx context.Context, id identity.Identity) (*CheckoutPricing, error) {
	cart, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(cart.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeEmptyCart, "cart has no items")
	}

	lines, err := s.priceLines(ctx, cart)
	if err != nil {
		return nil, err
	}

	discount := money.Paisa(0)
	var eval *coupons.Evaluation
	if cart.CouponCode != nil {
		eval, err = s.coupons.Evaluate(ctx, *cart.CouponCode, Subtotal(lines), s.now())
		if err != nil {
			return nil, err
		}
		discount = eval.Discount
	}

	return &CheckoutPricing{
		Cart:   cart,
		Lines:  lines,
		Totals: ComputeTotals(lines, discount, s.shipping),
		Coupon: eval,
	}, nil
}

// load returns the identity's cart, failing NotFound when absent.
func (s *service) load(ctx context.Context, id identity.Identity) (*models.Cart, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}
	cart, err := s.repo.FindByIdentity(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnavailable, err, "load cart")
	}
	return cart, nil
}

// getOrCreate returns the identity's cart, creating an empty one when
// absent. A create racing another request falls back to re-reading the
// winner's row.
func (s *service) getOrCreate(ctx context.Context, id identity.Identity) (*models.Cart, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}

	cart, err := s.repo.FindByIdentity(ctx, id)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnavailable, err, "load cart")
	}

	fresh := &models.Cart{
		ID:           uuid.New(),
		UserID:       id.UserID,
		SessionToken: id.SessionToken,
	}
	if err := s.repo.Create(ctx, fresh); err != nil {
		if dbpkg.IsUniqueViolation(err, "ux_carts_user", "ux_carts_session") {
			return s.load(ctx, id)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnavailable, err, "create cart")
	}
	return fresh, nil
}

func (s *service) reload(ctx context.Context, id identity.Identity) (*View, error) {
	cart, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, cart)
}

// priceLines re-prices every cart line from the live catalog.
func (s *service) priceLines(ctx context.Context, cart *models.Cart) ([]PricedLine, error) {
	lines := make([]PricedLine, 0, len(cart.Items))
	for _, item := range cart.Items {
		resolved, err := s.catalog.ResolveLine(ctx, catalog.Line{ProductID: item.ProductID, VariantID: item.VariantID})
		if err != nil {
			return nil, err
		}
		lines = append(lines, PricedLine{
			ItemID:   item.ID,
			Line:     *resolved,
			Quantity: item.Quantity,
		})
	}
	return lines, nil
}

// view assembles the display read-model. A coupon that no longer
// evaluates keeps the cart usable: it is reported unapplied with the
// rejection reason and contributes no discount.
func (s *service) view(ctx context.Context, cart *models.Cart) (*View, error) {
	lines, err := s.priceLines(ctx, cart)
	if err != nil {
		return nil, err
	}

	discount := money.Paisa(0)
	var couponView *CouponView
	if cart.CouponCode != nil {
		couponView = &CouponView{Code: *cart.CouponCode}
		eval, err := s.coupons.Evaluate(ctx, *cart.CouponCode, Subtotal(lines), s.now())
		switch {
		case err == nil:
			couponView.Applied = true
			discount = eval.Discount
		case pkgerrors.As(err) != nil && !pkgerrors.HasCode(err, pkgerrors.CodeInternal):
			couponView.Reason = pkgerrors.As(err).Message()
		default:
			return nil, err
		}
	}

	view := &View{
		ID:     cart.ID,
		Items:  make([]ItemView, 0, len(lines)),
		Coupon: couponView,
		Totals: ComputeTotals(lines, discount, s.shipping),
	}
	for _, line := range lines {
		iv := ItemView{
			ID:             line.ItemID,
			ProductID:      line.Line.ProductID,
			Name:           line.Line.Name,
			SKU:            line.Line.SKU,
			UnitPricePaisa: line.Line.UnitPricePaisa,
			Quantity:       line.Quantity,
			LineTotalPaisa: line.Line.UnitPricePaisa * int64(line.Quantity),
			AvailableQty:   line.Line.AvailableQty,
		}
		if line.Line.VariantID != uuid.Nil {
			variantID := line.Line.VariantID
			iv.VariantID = &variantID
		}
		view.Items = append(view.Items, iv)
	}
	return view, nil
}
