package payments

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/haatbari/haatbari-backend/internal/orders"
	"github.com/haatbari/haatbari-backend/pkg/config"
	"github.com/haatbari/haatbari-backend/pkg/db/models"
	"github.com/haatbari/haatbari-backend/pkg/enums"
	pkgerrors "github.com/haatbari/haatbari-backend/pkg/errors"
	"github.com/haatbari/haatbari-backend/pkg/outbox"
	"github.com/haatbari/haatbari-backend/pkg/outbox/payloads"
)

// CODGateway is the pay-on-fulfillment adapter. Funds change hands at
// delivery, so it records a pending payment with no provider reference
// and confirms the order synchronously, subject to the configured
// order-total bounds.
type CODGateway struct {
	repo   orders.Repository
	outbox *outbox.Service
	cfg    config.PaymentConfig
	now    func() time.Time
}

// NewCODGateway builds the pay-on-fulfillment adapter.
func NewCODGateway(repo orders.Repository, emitter *outbox.Service, cfg config.PaymentConfig) (*CODGateway, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	return &CODGateway{
		repo:   repo,
		outbox: emitter,
		cfg:    cfg,
		now:    time.Now,
	}, nil
}

func (g *CODGateway) Method() enums.PaymentMethod {
	return enums.PaymentMethodCOD
}

func (g *CODGateway) CreateSession(ctx context.Context, tx *gorm.DB, order *models.Order) (*SessionResult, error) {
	if order.TotalPaisa < g.cfg.CODMinPaisa || (g.cfg.CODMaxPaisa > 0 && order.TotalPaisa > g.cfg.CODMaxPaisa) {
		return nil, pkgerrors.New(pkgerrors.CodePaymentUnavailable,
			"order total is outside the cash-on-delivery bounds").
			WithDetails(map[string]int64{
				"minPaisa": g.cfg.CODMinPaisa,
				"maxPaisa": g.cfg.CODMaxPaisa,
			})
	}

	repo := g.repo.WithTx(tx)

	payment := &models.Payment{
		OrderID:       order.ID,
		Method:        enums.PaymentMethodCOD,
		Status:        enums.PaymentStatusPending,
		AmountCharged: order.TotalPaisa,
		Currency:      enums.CurrencyBDT,
	}
	if err := repo.CreatePayment(ctx, payment); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnavailable, err, "create payment")
	}

	confirmedAt := g.now()
	moved, err := repo.UpdateStatusIf(ctx, order.ID,
		[]enums.OrderStatus{enums.OrderStatusPending},
		enums.OrderStatusConfirmed,
		map[string]any{"confirmed_at": confirmedAt},
	)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnavailable, err, "confirm order")
	}
	if !moved {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition,
			"order left pending before payment could confirm it")
	}
	order.Status = enums.OrderStatusConfirmed

	err = g.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderConfirmed,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Version:       1,
		Data: payloads.OrderConfirmedEvent{
			OrderID:      order.ID,
			OrderNumber:  order.OrderNumber,
			ContactEmail: order.ContactEmail,
			TotalPaisa:   order.TotalPaisa,
			ConfirmedAt:  confirmedAt,
		},
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnavailable, err, "emit confirmation event")
	}

	return &SessionResult{Payment: payment}, nil
}
