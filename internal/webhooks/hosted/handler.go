// Package hosted reconciles asynchronous provider callbacks with the
// orders they settle. The handler is safe under at-least-once delivery:
// a redis fast path absorbs most duplicates cheaply and the unique
// provider_event_id row in webhook_events is the authoritative arena.
package hosted

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/haatbari/haatbari-backend/internal/orders"
	"github.com/haatbari/haatbari-backend/pkg/config"
	"github.com/haatbari/haatbari-backend/pkg/db"
	"github.com/haatbari/haatbari-backend/pkg/db/models"
	"github.com/haatbari/haatbari-backend/pkg/enums"
	pkgerrors "github.com/haatbari/haatbari-backend/pkg/errors"
	"github.com/haatbari/haatbari-backend/pkg/logger"
	"github.com/haatbari/haatbari-backend/pkg/outbox"
	"github.com/haatbari/haatbari-backend/pkg/outbox/payloads"
)

// dedupTTL bounds the redis fast-path markers. The database arena keeps
// the durable record; redis only needs to cover the provider's retry
// window.
const dedupTTL = 48 * time.Hour

// Outcome is the provider's verdict for one payment session.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Disposition reports what the handler did with a callback.
type Disposition string

const (
	DispositionApplied        Disposition = "applied"
	DispositionDuplicate      Disposition = "duplicate"
	DispositionUnknownSession Disposition = "unknown_session"
)

// Callback is one provider event after signature verification.
type Callback struct {
	ProviderEventID   string
	ProviderSessionID string
	Outcome           Outcome
	Reason            string
}

type dedupStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
}

type orderCanceller interface {
	CancelInTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, reason string) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Handler applies provider callbacks to payments and orders through the
// shared state-machine gates.
type Handler struct {
	repo      orders.Repository
	canceller orderCanceller
	outbox    *outbox.Service
	tx        txRunner
	dedup     dedupStore
	cfg       config.PaymentConfig
	logg      *logger.Logger
	now       func() time.Time
}

// NewHandler builds the reconciliation handler. dedup may be nil; the
// handler then relies on the database arena alone.
func NewHandler(
	repo orders.Repository,
	canceller orderCanceller,
	emitter *outbox.Service,
	tx txRunner,
	dedup dedupStore,
	cfg config.PaymentConfig,
	logg *logger.Logger,
) (*Handler, error) {
	if repo == nil || canceller == nil || emitter == nil || tx == nil || logg == nil {
		return nil, fmt.Errorf("reconciliation dependencies missing")
	}
	return &Handler{
		repo:      repo,
		canceller: canceller,
		outbox:    emitter,
		tx:        tx,
		dedup:     dedup,
		cfg:       cfg,
		logg:      logg,
		now:       time.Now,
	}, nil
}

// HandleCallback applies one provider event. Duplicates and callbacks
// for sessions this system never issued resolve successfully without
// touching any order; only a genuinely conflicting transition (the
// order was cancelled first, say) surfaces as an error.
func (h *Handler) HandleCallback(ctx context.Context, cb Callback) (Disposition, error) {
	if cb.ProviderEventID == "" || cb.ProviderSessionID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "provider event id and session id are required")
	}
	if cb.Outcome != OutcomeSuccess && cb.Outcome != OutcomeFailure {
		return "", pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("unrecognized callback outcome %q", cb.Outcome))
	}

	dedupKey := "webhook:" + cb.ProviderEventID
	markerFresh := false
	if h.dedup != nil {
		fresh, err := h.dedup.SetNX(ctx, dedupKey, 1, dedupTTL)
		if err != nil {
			// Redis trouble never blocks reconciliation; the database
			// arena still dedups.
			h.logg.Warn(ctx, "webhook dedup fast path unavailable")
		} else if !fresh {
			return DispositionDuplicate, nil
		} else {
			markerFresh = true
		}
	}

	order, err := h.repo.FindByProviderSession(ctx, cb.ProviderSessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logCtx := h.logg.WithField(ctx, "providerSessionId", cb.ProviderSessionID)
			h.logg.Warn(logCtx, "callback for unknown provider session discarded")
			return DispositionUnknownSession, nil
		}
		h.releaseMarker(ctx, dedupKey, markerFresh)
		return "", pkgerrors.Wrap(pkgerrors.CodeUnavailable, err, "load order for callback")
	}

	err = h.tx.WithTx(ctx, func(tx *gorm.DB) error {
		event := &models.WebhookEvent{
			ID:                uuid.New(),
			ProviderEventID:   cb.ProviderEventID,
			ProviderSessionID: cb.ProviderSessionID,
			Outcome:           string(cb.Outcome),
		}
		if err := tx.WithContext(ctx).Create(event).Error; err != nil {
			return err
		}

		if cb.Outcome == OutcomeSuccess {
			return h.applySuccess(ctx, tx, order)
		}
		return h.applyFailure(ctx, tx, order, cb.Reason)
	})
	if db.IsUniqueViolation(err, "ux_webhook_events_provider_event", "webhook_events.provider_event_id") {
		return DispositionDuplicate, nil
	}
	if err != nil {
		// The event was not recorded, so the provider's retry must not
		// hit the fast path and get absorbed as a duplicate.
		h.releaseMarker(ctx, dedupKey, markerFresh)
		return "", err
	}
	return DispositionApplied, nil
}

// releaseMarker undoes a fast-path marker this call set when the event
// could not be applied.
func (h *Handler) releaseMarker(ctx context.Context, key string, fresh bool) {
	if h.dedup == nil || !fresh {
		return
	}
	if err := h.dedup.Del(ctx, key); err != nil {
		logCtx := h.logg.WithField(ctx, "dedupKey", key)
		h.logg.Warn(logCtx, "webhook dedup marker not released")
	}
}

func (h *Handler) applySuccess(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	repo := h.repo.WithTx(tx)
	paidAt := h.now()

	// FAILED payments may settle on a provider-side retry.
	moved, err := repo.UpdatePaymentStatusIf(ctx, order.ID,
		[]enums.PaymentStatus{enums.PaymentStatusPending, enums.PaymentStatusAuthorized, enums.PaymentStatusFailed},
		enums.PaymentStatusPaid,
		map[string]any{"paid_at": paidAt},
	)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeUnavailable, err, "mark payment paid")
	}
	if !moved {
		return pkgerrors.New(pkgerrors.CodeInvalidTransition,
			"payment is no longer in a payable state")
	}

	moved, err = repo.UpdateStatusIf(ctx, order.ID,
		[]enums.OrderStatus{enums.OrderStatusPending},
		enums.OrderStatusConfirmed,
		map[string]any{"confirmed_at": paidAt},
	)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeUnavailable, err, "confirm order")
	}
	if !moved {
		return pkgerrors.New(pkgerrors.CodeInvalidTransition,
			"order left the pending state before the callback arrived")
	}

	var charged int64
	var currency enums.Currency
	if order.Payment != nil {
		charged = order.Payment.AmountCharged
		currency = order.Payment.Currency
	}
	err = h.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPaymentSettled,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Version:       1,
		Data: payloads.PaymentSettledEvent{
			OrderID:       order.ID,
			OrderNumber:   order.OrderNumber,
			AmountCharged: charged,
			Currency:      string(currency),
			PaidAt:        paidAt,
		},
	})
	if err != nil {
		return err
	}

	return h.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderConfirmed,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Version:       1,
		Data: payloads.OrderConfirmedEvent{
			OrderID:      order.ID,
			OrderNumber:  order.OrderNumber,
			ContactEmail: order.ContactEmail,
			TotalPaisa:   order.TotalPaisa,
			ConfirmedAt:  paidAt,
		},
	})
}

func (h *Handler) applyFailure(ctx context.Context, tx *gorm.DB, order *models.Order, reason string) error {
	repo := h.repo.WithTx(tx)

	// The increment is relative so concurrent failures never both
	// observe the same pre-image and write the same count.
	extra := map[string]any{"failure_count": gorm.Expr("failure_count + 1")}
	if reason != "" {
		extra["failure_reason"] = reason
	}

	// A payment already FAILED can fail again on the provider's next
	// attempt; PAID and CANCELLED cannot.
	moved, err := repo.UpdatePaymentStatusIf(ctx, order.ID,
		[]enums.PaymentStatus{enums.PaymentStatusPending, enums.PaymentStatusAuthorized, enums.PaymentStatusFailed},
		enums.PaymentStatusFailed,
		extra,
	)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeUnavailable, err, "mark payment failed")
	}
	if !moved {
		return pkgerrors.New(pkgerrors.CodeInvalidTransition,
			"payment is no longer in a failable state")
	}

	current, err := repo.FindByID(ctx, order.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeUnavailable, err, "reload payment after failure")
	}
	failureCount := 1
	if current.Payment != nil {
		failureCount = current.Payment.FailureCount
	}

	err = h.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPaymentFailed,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Version:       failureCount,
		Data: payloads.PaymentFailedEvent{
			OrderID:      order.ID,
			OrderNumber:  order.OrderNumber,
			ContactEmail: order.ContactEmail,
			FailureCount: failureCount,
			Reason:       reason,
		},
	})
	if err != nil {
		return err
	}

	// The order stays PENDING so the buyer may retry, until the
	// configured failure budget runs out.
	if h.cfg.MaxFailures > 0 && failureCount >= h.cfg.MaxFailures {
		return h.canceller.CancelInTx(ctx, tx, order.ID, "payment failed repeatedly")
	}
	return nil
}
