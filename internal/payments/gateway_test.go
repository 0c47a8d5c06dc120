package payments

import (
	"context"
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
	"github.com/haatbari/haatbari-backend/pkg/sslcommerz"
)

type stubProvider struct {
	lastRequest sslcommerz.SessionRequest
	session     *sslcommerz.Session
	err         error
}

func (s *stubProvider) CreateSession(_ context.Context, req sslcommerz.SessionRequest) (*sslcommerz.Session, error) {
	s.lastRequest = req
	if s.err != nil {
		return nil, s.err
	}
	return s.session, nil
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:payments_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Order{}, &models.OrderItem{}, &models.Payment{}, &models.OutboxEvent{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedOrder(t *testing.T, db *gorm.DB, totalPaisa int64, method enums.PaymentMethod) *models.Order {
	t.Helper()
	order := &models.Order{
		ID:            uuid.New(),
		OrderNumber:   orders.NewOrderNumber(time.Now()),
		ContactEmail:  "shopper@example.com",
		Status:        enums.OrderStatusPending,
		PaymentMethod: method,
		SubtotalPaisa: totalPaisa,
		TotalPaisa:    totalPaisa,
		ShippingAddress: models.AddressSnapshot{
			Recipient: "R. Ahmed", Phone: "01700000000", Line1: "12 Lake Rd", City: "Dhaka",
		},
	}
	if err := db.Create(order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	return order
}

func TestHostedGatewayCreatesSession(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()

	provider := &stubProvider{session: &sslcommerz.Session{
		SessionKey:  "sess_123",
		RedirectURL: "https://gw.test/pay/sess_123",
	}}
	gw, err := NewHostedGateway(provider, orders.NewRepository(db),
		config.PaymentConfig{USDRate: "110"},
		config.GatewayConfig{SuccessURL: "https://shop.test/ok", FailURL: "https://shop.test/fail", CancelURL: "https://shop.test/cancel"},
	)
	if err != nil {
		t.Fatalf("new hosted gateway: %v", err)
	}

	// 110000 paisa (1100 BDT) at 110 BDT/USD is 10 USD.
	order := seedOrder(t, db, 110000, enums.PaymentMethodHosted)

	var result *SessionResult
	err = db.Transaction(func(tx *gorm.DB) error {
		var terr error
		result, terr = gw.CreateSession(ctx, tx, order)
		return terr
	})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	if result.RedirectURL != "https://gw.test/pay/sess_123" {
		t.Fatalf("unexpected redirect %q", result.RedirectURL)
	}
	if provider.lastRequest.AmountCents != 1000 {
		t.Fatalf("expected 1000 cents, got %d", provider.lastRequest.AmountCents)
	}
	if provider.lastRequest.Currency != "USD" {
		t.Fatalf("expected USD, got %q", provider.lastRequest.Currency)
	}
	if provider.lastRequest.TransactionID != order.OrderNumber {
		t.Fatalf("expected order number as transaction id")
	}

	var payment models.Payment
	if err := db.First(&payment, "order_id = ?", order.ID).Error; err != nil {
		t.Fatalf("load payment: %v", err)
	}
	if payment.Status != enums.PaymentStatusPending {
		t.Fatalf("hosted payment must stay pending, got %s", payment.Status)
	}
	if payment.ProviderSessionID == nil || *payment.ProviderSessionID != "sess_123" {
		t.Fatalf("provider session id not stored: %+v", payment.ProviderSessionID)
	}
	if payment.AmountCharged != 1000 || payment.Currency != enums.CurrencyUSD {
		t.Fatalf("unexpected charge %d %s", payment.AmountCharged, payment.Currency)
	}

	// The order itself is untouched; only the callback confirms it.
	var reloaded models.Order
	if err := db.First(&reloaded, "id = ?", order.ID).Error; err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if reloaded.Status != enums.OrderStatusPending {
		t.Fatalf("hosted checkout must leave order pending, got %s", reloaded.Status)
	}
}

func TestCODGatewayConfirmsWithinBounds(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	logg := logger.New(logger.Options{Level: zerolog.Disabled, Output: io.Discard})
	emitter := outbox.NewService(outbox.NewRepository(db), logg)

	gw, err := NewCODGateway(orders.NewRepository(db), emitter,
		config.PaymentConfig{CODMinPaisa: 10000, CODMaxPaisa: 5000000},
	)
	if err != nil {
		t.Fatalf("new cod gateway: %v", err)
	}

	order := seedOrder(t, db, 250000, enums.PaymentMethodCOD)

	var result *SessionResult
	err = db.Transaction(func(tx *gorm.DB) error {
		var terr error
		result, terr = gw.CreateSession(ctx, tx, order)
		return terr
	})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	if result.RedirectURL != "" {
		t.Fatalf("cod must not redirect, got %q", result.RedirectURL)
	}
	if result.Payment.ProviderSessionID != nil {
		t.Fatal("cod payment must have no provider reference")
	}
	if result.Payment.Currency != enums.CurrencyBDT || result.Payment.AmountCharged != 250000 {
		t.Fatalf("unexpected charge %d %s", result.Payment.AmountCharged, result.Payment.Currency)
	}

	var reloaded models.Order
	if err := db.First(&reloaded, "id = ?", order.ID).Error; err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if reloaded.Status != enums.OrderStatusConfirmed {
		t.Fatalf("cod must confirm synchronously, got %s", reloaded.Status)
	}

	var events int64
	if err := db.Model(&models.OutboxEvent{}).Where("event_type = ?", enums.EventOrderConfirmed).Count(&events).Error; err != nil {
		t.Fatalf("count outbox: %v", err)
	}
	if events != 1 {
		t.Fatalf("expected one confirmation event, got %d", events)
	}
}

func TestCODGatewayBounds(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	logg := logger.New(logger.Options{Level: zerolog.Disabled, Output: io.Discard})
	emitter := outbox.NewService(outbox.NewRepository(db), logg)

	gw, err := NewCODGateway(orders.NewRepository(db), emitter,
		config.PaymentConfig{CODMinPaisa: 10000, CODMaxPaisa: 5000000},
	)
	if err != nil {
		t.Fatalf("new cod gateway: %v", err)
	}

	for _, total := range []int64{5000, 6000000} {
		order := seedOrder(t, db, total, enums.PaymentMethodCOD)
		err := db.Transaction(func(tx *gorm.DB) error {
			_, terr := gw.CreateSession(ctx, tx, order)
			return terr
		})
		if !pkgerrors.HasCode(err, pkgerrors.CodePaymentUnavailable) {
			t.Fatalf("total %d: expected payment unavailable, got %v", total, err)
		}

		var payments int64
		if err := db.Model(&models.Payment{}).Where("order_id = ?", order.ID).Count(&payments).Error; err != nil {
			t.Fatalf("count payments: %v", err)
		}
		if payments != 0 {
			t.Fatalf("rejected cod attempt left a payment row")
		}
	}
}

func TestSelectorUnknownMethod(t *testing.T) {
	t.Parallel()

	selector := NewSelector()
	_, err := selector.ForMethod(enums.PaymentMethodHosted)
	if !pkgerrors.HasCode(err, pkgerrors.CodePaymentUnavailable) {
		t.Fatalf("expected payment unavailable, got %v", err)
	}
}
