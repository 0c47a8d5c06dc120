package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/haatbari/haatbari-backend/pkg/db/models"
	"github.com/haatbari/haatbari-backend/pkg/enums"
	pkgerrors "github.com/haatbari/haatbari-backend/pkg/errors"
	"github.com/haatbari/haatbari-backend/pkg/logger"
	"github.com/haatbari/haatbari-backend/pkg/metrics"
)

const (
	defaultAbandonAfter = 24 * time.Hour
	sweepBatchSize      = 100
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type staleOrderReader interface {
	FindStalePending(ctx context.Context, method enums.PaymentMethod, cutoff time.Time, limit int) ([]models.Order, error)
}

type orderCanceller interface {
	CancelInTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, reason string) error
}

// AbandonedCheckoutJobParams configure the stale-order sweep.
type AbandonedCheckoutJobParams struct {
	Logger       *logger.Logger
	DB           txRunner
	Orders       staleOrderReader
	Canceller    orderCanceller
	AbandonAfter time.Duration
}

// NewAbandonedCheckoutJob builds the job that cancels hosted-checkout
// orders whose provider callback never arrived.
func NewAbandonedCheckoutJob(params AbandonedCheckoutJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("stale order reader required")
	}
	if params.Canceller == nil {
		return nil, fmt.Errorf("order canceller required")
	}
	abandonAfter := params.AbandonAfter
	if abandonAfter <= 0 {
		abandonAfter = defaultAbandonAfter
	}
	return &abandonedCheckoutJob{
		logg:         params.Logger,
		db:           params.DB,
		orders:       params.Orders,
		canceller:    params.Canceller,
		abandonAfter: abandonAfter,
		now:          time.Now,
	}, nil
}

type abandonedCheckoutJob struct {
	logg         *logger.Logger
	db           txRunner
	orders       staleOrderReader
	canceller    orderCanceller
	abandonAfter time.Duration
	now          func() time.Time
}

func (j *abandonedCheckoutJob) Name() string { return "abandoned-checkout" }

func (j *abandonedCheckoutJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.abandonAfter)
	stale, err := j.orders.FindStalePending(ctx, enums.PaymentMethodHosted, cutoff, sweepBatchSize)
	if err != nil {
		return fmt.Errorf("query stale pending orders: %w", err)
	}
	if len(stale) == 0 {
		return nil
	}

	var errs []error
	cancelled := 0
	for _, order := range stale {
		err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
			return j.canceller.CancelInTx(ctx, tx, order.ID, "hosted checkout abandoned")
		})
		if err != nil {
			// A callback or user cancellation that landed after the
			// query is routine, not a failure.
			if pkgerrors.HasCode(err, pkgerrors.CodeInvalidTransition) {
				continue
			}
			errs = append(errs, fmt.Errorf("cancel order %s: %w", order.ID, err))
			continue
		}
		cancelled++
		metrics.RecordSweeperCancellation()
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"candidates": len(stale),
		"cancelled":  cancelled,
	})
	j.logg.Info(logCtx, "abandoned checkout sweep complete")
	return multierr.Combine(errs...)
}
