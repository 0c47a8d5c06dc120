package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/haatbari/haatbari-backend/internal/checkout/reservation"
	"github.com/haatbari/haatbari-backend/internal/identity"
	"github.com/haatbari/haatbari-backend/pkg/db/models"
	"github.com/haatbari/haatbari-backend/pkg/enums"
	pkgerrors "github.com/haatbari/haatbari-backend/pkg/errors"
	"github.com/haatbari/haatbari-backend/pkg/logger"
	"github.com/haatbari/haatbari-backend/pkg/outbox"
	"github.com/haatbari/haatbari-backend/pkg/outbox/payloads"
	"github.com/haatbari/haatbari-backend/pkg/pagination"
)

// Service exposes order reads and the shared cancellation path used by
// shoppers, the payment webhook, and the abandonment sweeper.
type Service interface {
	Get(ctx context.Context, id identity.Identity, orderID uuid.UUID) (*DTO, error)
	List(ctx context.Context, userID uuid.UUID, params pagination.Params) (*Page, error)
	// GuestLookup resolves one order by number plus contact email
	// without authentication.
	GuestLookup(ctx context.Context, orderNumber, email string) (*DTO, error)
	// Cancel runs the cancellation in its own transaction after an
	// ownership check against the calling identity.
	Cancel(ctx context.Context, id identity.Identity, orderID uuid.UUID, reason string) (*DTO, error)
	// CancelInTx applies the cancellation inside an enclosing
	// transaction: state-machine gate, payment cancellation where
	// legal, a once-only stock release, and an outbox event.
	CancelInTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, reason string) error
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox *outbox.Service
	logg   *logger.Logger
	now    func() time.Time
}

// NewService builds an order service backed by the provided stack.
func NewService(repo Repository, tx txRunner, emitter *outbox.Service, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	return &service{
		repo:   repo,
		tx:     tx,
		outbox: emitter,
		logg:   logg,
		now:    time.Now,
	}, nil
}

// Page is one page of a user's order history.
type Page struct {
	Orders     []DTO  `json:"orders"`
	NextCursor string `json:"nextCursor,omitempty"`
}

func (s *service) Get(ctx context.Context, id identity.Identity, orderID uuid.UUID) (*DTO, error) {
	order, err := s.loadOwned(ctx, id, orderID)
	if err != nil {
		return nil, err
	}
	return ToDTO(order), nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID, params pagination.Params) (*Page, error) {
	list, err := s.repo.ListByUser(ctx, userID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnavailable, err, "list orders")
	}
	page := &Page{NextCursor: list.NextCursor, Orders: make([]DTO, 0, len(list.Orders))}
	for i := range list.Orders {
		page.Orders = append(page.Orders, *ToDTO(&list.Orders[i]))
	}
	return page, nil
}

func (s *service) GuestLookup(ctx context.Context, orderNumber, email string) (*DTO, error) {
	order, err := s.repo.FindByNumberAndEmail(ctx, orderNumber, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnavailable, err, "lookup order")
	}
	return ToDTO(order), nil
}

func (s *service) Cancel(ctx context.Context, id identity.Identity, orderID uuid.UUID, reason string) (*DTO, error) {
	if _, err := s.loadOwned(ctx, id, orderID); err != nil {
		return nil, err
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.CancelInTx(ctx, tx, orderID, reason)
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnavailable, err, "cancel order")
	}

	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnavailable, err, "reload order")
	}
	return ToDTO(order), nil
}

func (s *service) CancelInTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, reason string) error {
	repo := s.repo.WithTx(tx)

	order, err := repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeUnavailable, err, "load order")
	}

	// The conditional update is the state-machine gate: a concurrent
	// transition that lands first leaves zero rows for this one.
	now := s.now()
	moved, err := repo.UpdateStatusIf(ctx, orderID,
		[]enums.OrderStatus{enums.OrderStatusPending, enums.OrderStatusConfirmed, enums.OrderStatusProcessing},
		enums.OrderStatusCancelled,
		map[string]any{"cancelled_at": now},
	)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeUnavailable, err, "transition order")
	}
	if !moved {
		return pkgerrors.New(pkgerrors.CodeInvalidTransition,
			"order cannot be cancelled from status "+order.Status.String())
	}

	// Cancel the payment only where the edge exists; a PAID payment on
	// a cancelled order is left for the out-of-band refund flow.
	if order.Payment != nil && CanTransitionPayment(order.Payment.Status, enums.PaymentStatusCancelled) {
		if _, err := repo.UpdatePaymentStatusIf(ctx, orderID,
			[]enums.PaymentStatus{enums.PaymentStatusPending, enums.PaymentStatusAuthorized, enums.PaymentStatusFailed},
			enums.PaymentStatusCancelled, nil,
		); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeUnavailable, err, "transition payment")
		}
	}

	released, err := repo.MarkStockReleased(ctx, orderID, now)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeUnavailable, err, "mark stock released")
	}
	if released {
		requests := make([]reservation.Request, 0, len(order.Items))
		for _, item := range order.Items {
			requests = append(requests, reservation.Request{
				LineID:    item.ID,
				ProductID: item.ProductID,
				VariantID: item.VariantID,
				Qty:       item.Quantity,
			})
		}
		if err := reservation.Release(ctx, tx, requests); err != nil {
			return err
		}
	}

	return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderCancelled,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Version:       1,
		Data: payloads.OrderCancelledEvent{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			Reason:      reason,
		},
	})
}

// loadOwned fetches an order and enforces that the caller may see it.
// Guests have no durable identity on orders, so by-id access requires
// authentication; guest access goes through GuestLookup.
func (s *service) loadOwned(ctx context.Context, id identity.Identity, orderID uuid.UUID) (*models.Order, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnavailable, err, "load order")
	}
	if !id.IsUser() || order.UserID == nil || *order.UserID != *id.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}
