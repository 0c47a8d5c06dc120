package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/haatbari/haatbari-backend/internal/cart"
	"github.com/haatbari/haatbari-backend/internal/checkout/reservation"
	"github.com/haatbari/haatbari-backend/internal/identity"
	"github.com/haatbari/haatbari-backend/internal/orders"
	"github.com/haatbari/haatbari-backend/internal/payments"
	"github.com/haatbari/haatbari-backend/pkg/db"
	"github.com/haatbari/haatbari-backend/pkg/db/models"
	"github.com/haatbari/haatbari-backend/pkg/enums"
	pkgerrors "github.com/haatbari/haatbari-backend/pkg/errors"
	"github.com/haatbari/haatbari-backend/pkg/logger"
	"github.com/haatbari/haatbari-backend/pkg/outbox"
	"github.com/haatbari/haatbari-backend/pkg/outbox/payloads"
)

// orderNumberAttempts caps the retry loop for the rare case of two
// checkouts drawing the same random order number.
const orderNumberAttempts = 3

// Service converts a priced cart into an order. The conversion is a
// single transaction covering stock reservation, coupon settlement,
// the order snapshot, payment session creation, and cart clearing.
// Either every one of those lands or none do.
type Service interface {
	Execute(ctx context.Context, id identity.Identity, input Input) (*Outcome, error)
}

type service struct {
	carts     cartPricer
	addresses addressResolver
	coupons   couponSettler
	orders    orders.Repository
	gateways  *payments.Selector
	outbox    *outbox.Service
	tx        txRunner
	logg      *logger.Logger
	now       func() time.Time
}

// NewService builds the checkout orchestrator.
func NewService(
	carts cartPricer,
	addresses addressResolver,
	settler couponSettler,
	repo orders.Repository,
	gateways *payments.Selector,
	emitter *outbox.Service,
	tx txRunner,
	logg *logger.Logger,
) (Service, error) {
	if carts == nil || addresses == nil || settler == nil || repo == nil {
		return nil, fmt.Errorf("checkout dependencies missing")
	}
	if gateways == nil || emitter == nil || tx == nil || logg == nil {
		return nil, fmt.Errorf("checkout dependencies missing")
	}
	return &service{
		carts:     carts,
		addresses: addresses,
		coupons:   settler,
		orders:    repo,
		gateways:  gateways,
		outbox:    emitter,
		tx:        tx,
		logg:      logg,
		now:       time.Now,
	}, nil
}

func (s *service) Execute(ctx context.Context, id identity.Identity, input Input) (*Outcome, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}
	if input.ContactEmail == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "contact email is required")
	}
	if input.ShippingAddressID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping address is required")
	}

	gateway, err := s.gateways.ForMethod(input.PaymentMethod)
	if err != nil {
		return nil, err
	}

	shipping, err := s.addresses.Resolve(ctx, id, input.ShippingAddressID)
	if err != nil {
		return nil, err
	}
	var billing *models.Address
	if input.BillingAddressID != nil {
		billing, err = s.addresses.Resolve(ctx, id, *input.BillingAddressID)
		if err != nil {
			return nil, err
		}
	}

	// A coupon sent with the checkout replaces whatever is on the cart
	// before pricing runs, so it goes through the same evaluation path
	// as one attached earlier.
	if input.CouponCode != "" {
		if _, err := s.carts.AttachCoupon(ctx, id, input.CouponCode); err != nil {
			return nil, err
		}
	}

	// The pricing read happens outside the transaction; reservation and
	// coupon settlement re-verify everything that matters under it.
	pricing, err := s.carts.PriceForCheckout(ctx, id)
	if err != nil {
		return nil, err
	}

	var (
		order   *models.Order
		session *payments.SessionResult
	)
	for attempt := 0; attempt < orderNumberAttempts; attempt++ {
		order = s.buildOrder(id, input, pricing, shipping, billing)
		session = nil

		err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			if err := s.reserveLines(ctx, tx, pricing.Lines); err != nil {
				return err
			}
			if pricing.Coupon != nil {
				if err := s.coupons.SettleUsage(ctx, tx, pricing.Coupon.Code); err != nil {
					return err
				}
			}
			if err := s.orders.WithTx(tx).Create(ctx, order); err != nil {
				return err
			}

			result, err := gateway.CreateSession(ctx, tx, order)
			if err != nil {
				return err
			}
			session = result

			if err := s.carts.ClearInTx(ctx, tx, pricing.Cart.ID); err != nil {
				return err
			}

			return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventOrderCreated,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order.ID,
				Version:       1,
				Data: payloads.OrderCreatedEvent{
					OrderID:       order.ID,
					OrderNumber:   order.OrderNumber,
					PaymentMethod: string(order.PaymentMethod),
					TotalPaisa:    order.TotalPaisa,
					ContactEmail:  order.ContactEmail,
				},
			})
		})
		if db.IsUniqueViolation(err, "order_number") {
			continue
		}
		break
	}
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithOrderID(ctx, order.ID.String())
	s.logg.Info(logCtx, "checkout completed")

	order.Payment = session.Payment
	return &Outcome{
		Order:       orders.ToDTO(order),
		RedirectURL: session.RedirectURL,
	}, nil
}

// reserveLines runs the all-or-nothing reservation pass. Any line whose
// stock moved since pricing aborts the transaction with the per-line
// shortfalls attached.
func (s *service) reserveLines(ctx context.Context, tx *gorm.DB, lines []cart.PricedLine) error {
	requests := make([]reservation.Request, 0, len(lines))
	for _, line := range lines {
		requests = append(requests, reservation.Request{
			LineID:    line.ItemID,
			ProductID: line.Line.ProductID,
			VariantID: line.Line.VariantID,
			Qty:       line.Quantity,
		})
	}

	results, err := reservation.Reserve(ctx, tx, requests)
	if err != nil {
		return err
	}

	failed := make([]map[string]any, 0)
	for _, result := range results {
		if result.Reserved {
			continue
		}
		failed = append(failed, map[string]any{
			"itemId":    result.LineID,
			"productId": result.ProductID,
			"reason":    result.Reason,
		})
	}
	if len(failed) > 0 {
		return pkgerrors.New(pkgerrors.CodeStockChanged,
			"stock changed while checking out").
			WithDetails(map[string]any{"lines": failed})
	}
	return nil
}

func (s *service) buildOrder(id identity.Identity, input Input, pricing *cart.CheckoutPricing, shipping, billing *models.Address) *models.Order {
	order := &models.Order{
		ID:              uuid.New(),
		OrderNumber:     orders.NewOrderNumber(s.now()),
		ContactEmail:    input.ContactEmail,
		Status:          enums.OrderStatusPending,
		PaymentMethod:   input.PaymentMethod,
		SubtotalPaisa:   pricing.Totals.SubtotalPaisa,
		DiscountPaisa:   pricing.Totals.DiscountPaisa,
		ShippingPaisa:   pricing.Totals.ShippingPaisa,
		TaxPaisa:        pricing.Totals.TaxPaisa,
		TotalPaisa:      pricing.Totals.TotalPaisa,
		ShippingAddress: shipping.Snapshot(),
	}
	if id.IsUser() {
		order.UserID = id.UserID
	}
	if pricing.Coupon != nil {
		code := pricing.Coupon.Code
		order.CouponCode = &code
	}
	if billing != nil {
		snapshot := billing.Snapshot()
		order.BillingAddress = &snapshot
	}

	for _, line := range pricing.Lines {
		order.Items = append(order.Items, models.OrderItem{
			ProductID:      line.Line.ProductID,
			VariantID:      line.Line.VariantID,
			Name:           line.Line.Name,
			SKU:            line.Line.SKU,
			UnitPricePaisa: line.Line.UnitPricePaisa,
			Quantity:       line.Quantity,
			TotalPaisa:     line.Line.UnitPricePaisa * int64(line.Quantity),
		})
	}
	return order
}
