package hosted

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/haatbari/haatbari-backend/internal/orders"
	"github.com/haatbari/haatbari-backend/pkg/config"
	"github.com/haatbari/haatbari-backend/pkg/db/models"
	"github.com/haatbari/haatbari-backend/pkg/enums"
	pkgerrors "github.com/haatbari/haatbari-backend/pkg/errors"
	"github.com/haatbari/haatbari-backend/pkg/logger"
	"github.com/haatbari/haatbari-backend/pkg/outbox"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.Transaction(fn)
}

type fakeDedup struct {
	seen map[string]bool
}

func (f *fakeDedup) SetNX(_ context.Context, key string, _ any, _ time.Duration) (bool, error) {
	if f.seen == nil {
		f.seen = map[string]bool{}
	}
	if f.seen[key] {
		return false, nil
	}
	f.seen[key] = true
	return true, nil
}

func (f *fakeDedup) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.seen, key)
	}
	return nil
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:webhooks_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	err = db.AutoMigrate(
		&models.Order{}, &models.OrderItem{}, &models.Payment{},
		&models.InventoryItem{}, &models.WebhookEvent{}, &models.OutboxEvent{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newHandler(t *testing.T, db *gorm.DB, dedup dedupStore, cfg config.PaymentConfig) *Handler {
	t.Helper()
	return newHandlerWithTx(t, db, gormTxRunner{db: db}, dedup, cfg)
}

func newHandlerWithTx(t *testing.T, db *gorm.DB, tx txRunner, dedup dedupStore, cfg config.PaymentConfig) *Handler {
	t.Helper()
	logg := logger.New(logger.Options{Level: zerolog.Disabled, Output: io.Discard})
	emitter := outbox.NewService(outbox.NewRepository(db), logg)
	repo := orders.NewRepository(db)

	orderSvc, err := orders.NewService(repo, gormTxRunner{db: db}, emitter, logg)
	if err != nil {
		t.Fatalf("order service: %v", err)
	}
	handler, err := NewHandler(repo, orderSvc, emitter, tx, dedup, cfg, logg)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	return handler
}

// seedHostedOrder creates a pending hosted-checkout order with reserved
// stock and a pending payment bound to the given provider session.
func seedHostedOrder(t *testing.T, db *gorm.DB, sessionID string) *models.Order {
	t.Helper()
	productID := uuid.New()
	inv := models.InventoryItem{ProductID: productID, VariantID: uuid.Nil, AvailableQty: 3, ReservedQty: 2}
	if err := db.Create(&inv).Error; err != nil {
		t.Fatalf("seed inventory: %v", err)
	}

	order := &models.Order{
		ID:            uuid.New(),
		OrderNumber:   orders.NewOrderNumber(time.Now()),
		ContactEmail:  "shopper@example.com",
		Status:        enums.OrderStatusPending,
		PaymentMethod: enums.PaymentMethodHosted,
		SubtotalPaisa: 110000,
		TotalPaisa:    110000,
		Items: []models.OrderItem{{
			ID:             uuid.New(),
			ProductID:      productID,
			VariantID:      uuid.Nil,
			Name:           "Jute Rug",
			SKU:            "RUG-1",
			UnitPricePaisa: 55000,
			Quantity:       2,
			TotalPaisa:     110000,
		}},
	}
	if err := db.Create(order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}

	payment := &models.Payment{
		ID:                uuid.New(),
		OrderID:           order.ID,
		Method:            enums.PaymentMethodHosted,
		Status:            enums.PaymentStatusPending,
		ProviderSessionID: &sessionID,
		AmountCharged:     1000,
		Currency:          enums.CurrencyUSD,
	}
	if err := db.Create(payment).Error; err != nil {
		t.Fatalf("seed payment: %v", err)
	}
	return order
}

func reload(t *testing.T, db *gorm.DB, orderID uuid.UUID) (*models.Order, *models.Payment) {
	t.Helper()
	var order models.Order
	if err := db.First(&order, "id = ?", orderID).Error; err != nil {
		t.Fatalf("reload order: %v", err)
	}
	var payment models.Payment
	if err := db.First(&payment, "order_id = ?", orderID).Error; err != nil {
		t.Fatalf("reload payment: %v", err)
	}
	return &order, &payment
}

func TestSuccessCallbackSettlesOrder(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	handler := newHandler(t, db, nil, config.PaymentConfig{MaxFailures: 3})
	ctx := context.Background()
	order := seedHostedOrder(t, db, "sess_ok")

	disposition, err := handler.HandleCallback(ctx, Callback{
		ProviderEventID:   "evt_1",
		ProviderSessionID: "sess_ok",
		Outcome:           OutcomeSuccess,
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if disposition != DispositionApplied {
		t.Fatalf("expected applied, got %s", disposition)
	}

	reloaded, payment := reload(t, db, order.ID)
	if reloaded.Status != enums.OrderStatusConfirmed || reloaded.ConfirmedAt == nil {
		t.Fatalf("order not confirmed: %s", reloaded.Status)
	}
	if payment.Status != enums.PaymentStatusPaid || payment.PaidAt == nil {
		t.Fatalf("payment not settled: %s", payment.Status)
	}

	var settled, confirmed int64
	db.Model(&models.OutboxEvent{}).Where("event_type = ?", enums.EventPaymentSettled).Count(&settled)
	db.Model(&models.OutboxEvent{}).Where("event_type = ?", enums.EventOrderConfirmed).Count(&confirmed)
	if settled != 1 || confirmed != 1 {
		t.Fatalf("expected one settled and one confirmed event, got %d/%d", settled, confirmed)
	}
}

func TestDoubleDeliveryAppliesOnce(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	handler := newHandler(t, db, nil, config.PaymentConfig{MaxFailures: 3})
	ctx := context.Background()
	order := seedHostedOrder(t, db, "sess_dup")

	cb := Callback{ProviderEventID: "evt_dup", ProviderSessionID: "sess_dup", Outcome: OutcomeSuccess}

	first, err := handler.HandleCallback(ctx, cb)
	if err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	second, err := handler.HandleCallback(ctx, cb)
	if err != nil {
		t.Fatalf("second delivery: %v", err)
	}
	if first != DispositionApplied || second != DispositionDuplicate {
		t.Fatalf("expected applied then duplicate, got %s/%s", first, second)
	}

	reloaded, payment := reload(t, db, order.ID)
	if reloaded.Status != enums.OrderStatusConfirmed || payment.Status != enums.PaymentStatusPaid {
		t.Fatalf("duplicate delivery disturbed state: %s/%s", reloaded.Status, payment.Status)
	}
	var rows int64
	db.Model(&models.WebhookEvent{}).Count(&rows)
	if rows != 1 {
		t.Fatalf("expected one recorded event, got %d", rows)
	}
}

func TestRedisFastPathShortCircuits(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	dedup := &fakeDedup{}
	handler := newHandler(t, db, dedup, config.PaymentConfig{MaxFailures: 3})
	ctx := context.Background()
	seedHostedOrder(t, db, "sess_fast")

	cb := Callback{ProviderEventID: "evt_fast", ProviderSessionID: "sess_fast", Outcome: OutcomeSuccess}
	if _, err := handler.HandleCallback(ctx, cb); err != nil {
		t.Fatalf("first delivery: %v", err)
	}

	disposition, err := handler.HandleCallback(ctx, cb)
	if err != nil {
		t.Fatalf("second delivery: %v", err)
	}
	if disposition != DispositionDuplicate {
		t.Fatalf("expected duplicate from fast path, got %s", disposition)
	}
}

func TestUnknownSessionIsDiscarded(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	handler := newHandler(t, db, nil, config.PaymentConfig{MaxFailures: 3})
	ctx := context.Background()

	disposition, err := handler.HandleCallback(ctx, Callback{
		ProviderEventID:   "evt_test",
		ProviderSessionID: "sess_never_issued",
		Outcome:           OutcomeSuccess,
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if disposition != DispositionUnknownSession {
		t.Fatalf("expected unknown session, got %s", disposition)
	}

	var rows int64
	db.Model(&models.WebhookEvent{}).Count(&rows)
	if rows != 0 {
		t.Fatalf("unknown session recorded an event")
	}
}

func TestFailureLeavesOrderPendingForRetry(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	handler := newHandler(t, db, nil, config.PaymentConfig{MaxFailures: 3})
	ctx := context.Background()
	order := seedHostedOrder(t, db, "sess_fail")

	disposition, err := handler.HandleCallback(ctx, Callback{
		ProviderEventID:   "evt_fail_1",
		ProviderSessionID: "sess_fail",
		Outcome:           OutcomeFailure,
		Reason:            "card declined",
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if disposition != DispositionApplied {
		t.Fatalf("expected applied, got %s", disposition)
	}

	reloaded, payment := reload(t, db, order.ID)
	if reloaded.Status != enums.OrderStatusPending {
		t.Fatalf("one failure must leave the order pending, got %s", reloaded.Status)
	}
	if payment.Status != enums.PaymentStatusFailed || payment.FailureCount != 1 {
		t.Fatalf("unexpected payment state %s count %d", payment.Status, payment.FailureCount)
	}
	if payment.FailureReason == nil || *payment.FailureReason != "card declined" {
		t.Fatalf("failure reason not stored: %v", payment.FailureReason)
	}

	var inv models.InventoryItem
	if err := db.First(&inv, "available_qty IS NOT NULL").Error; err != nil {
		t.Fatalf("load inventory: %v", err)
	}
	if inv.AvailableQty != 3 || inv.ReservedQty != 2 {
		t.Fatalf("pending order released stock: %d/%d", inv.AvailableQty, inv.ReservedQty)
	}
}

func TestFailureBudgetExhaustionCancelsOrder(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	handler := newHandler(t, db, nil, config.PaymentConfig{MaxFailures: 2})
	ctx := context.Background()
	order := seedHostedOrder(t, db, "sess_burn")

	for i, eventID := range []string{"evt_burn_1", "evt_burn_2"} {
		disposition, err := handler.HandleCallback(ctx, Callback{
			ProviderEventID:   eventID,
			ProviderSessionID: "sess_burn",
			Outcome:           OutcomeFailure,
		})
		if err != nil {
			t.Fatalf("failure %d: %v", i+1, err)
		}
		if disposition != DispositionApplied {
			t.Fatalf("failure %d: expected applied, got %s", i+1, disposition)
		}
	}

	reloaded, payment := reload(t, db, order.ID)
	if reloaded.Status != enums.OrderStatusCancelled {
		t.Fatalf("expected cancellation after budget, got %s", reloaded.Status)
	}
	if payment.Status != enums.PaymentStatusCancelled {
		t.Fatalf("expected cancelled payment, got %s", payment.Status)
	}
	if payment.FailureCount != 2 {
		t.Fatalf("expected two recorded failures, got %d", payment.FailureCount)
	}

	var inv models.InventoryItem
	if err := db.First(&inv).Error; err != nil {
		t.Fatalf("load inventory: %v", err)
	}
	if inv.AvailableQty != 5 || inv.ReservedQty != 0 {
		t.Fatalf("cancellation must release stock: %d/%d", inv.AvailableQty, inv.ReservedQty)
	}
}

func TestCallbackLosesToEarlierCancellation(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	handler := newHandler(t, db, nil, config.PaymentConfig{MaxFailures: 3})
	ctx := context.Background()
	order := seedHostedOrder(t, db, "sess_race")

	tx := gormTxRunner{db: db}
	logg := logger.New(logger.Options{Level: zerolog.Disabled, Output: io.Discard})
	emitter := outbox.NewService(outbox.NewRepository(db), logg)
	orderSvc, err := orders.NewService(orders.NewRepository(db), tx, emitter, logg)
	if err != nil {
		t.Fatalf("order service: %v", err)
	}
	err = tx.WithTx(ctx, func(txdb *gorm.DB) error {
		return orderSvc.CancelInTx(ctx, txdb, order.ID, "changed my mind")
	})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}

	_, err = handler.HandleCallback(ctx, Callback{
		ProviderEventID:   "evt_late",
		ProviderSessionID: "sess_race",
		Outcome:           OutcomeSuccess,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}

	reloaded, payment := reload(t, db, order.ID)
	if reloaded.Status != enums.OrderStatusCancelled || payment.Status != enums.PaymentStatusCancelled {
		t.Fatalf("late callback disturbed cancelled state: %s/%s", reloaded.Status, payment.Status)
	}
}

// flakyTxRunner rejects the first n transactions outright, standing in
// for a database briefly out of reach.
type flakyTxRunner struct {
	db       *gorm.DB
	failures int
}

func (r *flakyTxRunner) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	if r.failures > 0 {
		r.failures--
		return errors.New("connection reset by peer")
	}
	return r.db.Transaction(fn)
}

func TestTransientErrorReleasesFastPathMarker(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	dedup := &fakeDedup{}
	tx := &flakyTxRunner{db: db, failures: 1}
	handler := newHandlerWithTx(t, db, tx, dedup, config.PaymentConfig{MaxFailures: 3})
	ctx := context.Background()
	order := seedHostedOrder(t, db, "sess_flaky")

	cb := Callback{ProviderEventID: "evt_flaky", ProviderSessionID: "sess_flaky", Outcome: OutcomeSuccess}

	if _, err := handler.HandleCallback(ctx, cb); err == nil {
		t.Fatal("expected the first delivery to fail")
	}
	if dedup.seen["webhook:evt_flaky"] {
		t.Fatal("failed delivery left its dedup marker behind")
	}

	disposition, err := handler.HandleCallback(ctx, cb)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if disposition != DispositionApplied {
		t.Fatalf("retry must apply, got %s", disposition)
	}

	reloaded, payment := reload(t, db, order.ID)
	if reloaded.Status != enums.OrderStatusConfirmed || payment.Status != enums.PaymentStatusPaid {
		t.Fatalf("retry did not settle: %s/%s", reloaded.Status, payment.Status)
	}
}

// racingFailureTxRunner bumps the failure counter inside the
// transaction before the handler runs, as a rival callback landing
// between the handler's read and its own write would.
type racingFailureTxRunner struct {
	db      *gorm.DB
	orderID uuid.UUID
	done    bool
}

func (r *racingFailureTxRunner) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if !r.done {
			r.done = true
			err := tx.Model(&models.Payment{}).
				Where("order_id = ?", r.orderID).
				Update("failure_count", gorm.Expr("failure_count + 1")).Error
			if err != nil {
				return err
			}
		}
		return fn(tx)
	})
}

func TestRacingFailuresBothCount(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	order := seedHostedOrder(t, db, "sess_racefail")
	tx := &racingFailureTxRunner{db: db, orderID: order.ID}
	handler := newHandlerWithTx(t, db, tx, nil, config.PaymentConfig{MaxFailures: 5})

	disposition, err := handler.HandleCallback(ctx, Callback{
		ProviderEventID:   "evt_racefail",
		ProviderSessionID: "sess_racefail",
		Outcome:           OutcomeFailure,
		Reason:            "insufficient funds",
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if disposition != DispositionApplied {
		t.Fatalf("expected applied, got %s", disposition)
	}

	_, payment := reload(t, db, order.ID)
	if payment.FailureCount != 2 {
		t.Fatalf("rival failure lost: count %d, want 2", payment.FailureCount)
	}
}
