package orders

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/haatbari/haatbari-backend/internal/identity"
	"github.com/haatbari/haatbari-backend/pkg/db/models"
	"github.com/haatbari/haatbari-backend/pkg/enums"
	pkgerrors "github.com/haatbari/haatbari-backend/pkg/errors"
	"github.com/haatbari/haatbari-backend/pkg/logger"
	"github.com/haatbari/haatbari-backend/pkg/outbox"
	"github.com/haatbari/haatbari-backend/pkg/pagination"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.Transaction(fn)
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:orders_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	err = db.AutoMigrate(
		&models.Order{}, &models.OrderItem{}, &models.Payment{},
		&models.InventoryItem{}, &models.OutboxEvent{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	logg := logger.New(logger.Options{Level: zerolog.Disabled, Output: io.Discard})
	emitter := outbox.NewService(outbox.NewRepository(db), logg)
	svc, err := NewService(NewRepository(db), gormTxRunner{db: db}, emitter, logg)
	if err != nil {
		t.Fatalf("orders service: %v", err)
	}
	return svc
}

func seedOrder(t *testing.T, db *gorm.DB, userID *uuid.UUID, status enums.OrderStatus) *models.Order {
	t.Helper()
	productID := uuid.New()
	order := &models.Order{
		ID:            uuid.New(),
		OrderNumber:   NewOrderNumber(time.Now()),
		UserID:        userID,
		ContactEmail:  "shopper@example.com",
		Status:        status,
		PaymentMethod: enums.PaymentMethodHosted,
		SubtotalPaisa: 2000,
		TotalPaisa:    2000,
		ShippingAddress: models.AddressSnapshot{
			Recipient: "R. Ahmed", Phone: "01700000000", Line1: "12 Lake Rd", City: "Dhaka",
		},
		Items: []models.OrderItem{
			{ID: uuid.New(), ProductID: productID, VariantID: uuid.Nil, Name: "Item", SKU: "SKU-1", UnitPricePaisa: 1000, Quantity: 2, TotalPaisa: 2000},
		},
	}
	if err := db.Create(order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}

	payment := &models.Payment{
		ID: uuid.New(), OrderID: order.ID,
		Method: enums.PaymentMethodHosted, Status: enums.PaymentStatusPending,
		AmountCharged: 2000, Currency: enums.CurrencyBDT,
	}
	if err := db.Create(payment).Error; err != nil {
		t.Fatalf("seed payment: %v", err)
	}

	// The checkout reservation left these units reserved.
	inv := &models.InventoryItem{ProductID: productID, VariantID: uuid.Nil, AvailableQty: 3, ReservedQty: 2}
	if err := db.Create(inv).Error; err != nil {
		t.Fatalf("seed inventory: %v", err)
	}
	return order
}

func TestCancelReleasesStockOnce(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	userID := uuid.New()
	order := seedOrder(t, db, &userID, enums.OrderStatusPending)

	dto, err := svc.Cancel(ctx, identity.FromUser(userID), order.ID, "changed my mind")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if dto.Status != enums.OrderStatusCancelled {
		t.Fatalf("expected cancelled, got %s", dto.Status)
	}
	if dto.Payment.Status != enums.PaymentStatusCancelled {
		t.Fatalf("expected payment cancelled, got %s", dto.Payment.Status)
	}

	var inv models.InventoryItem
	if err := db.First(&inv, "product_id = ?", order.Items[0].ProductID).Error; err != nil {
		t.Fatalf("load inventory: %v", err)
	}
	if inv.AvailableQty != 5 || inv.ReservedQty != 0 {
		t.Fatalf("expected stock released, got %+v", inv)
	}

	// Second cancel hits the state-machine gate; stock stays put.
	_, err = svc.Cancel(ctx, identity.FromUser(userID), order.ID, "again")
	if !pkgerrors.HasCode(err, pkgerrors.CodeInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	if err := db.First(&inv, "product_id = ?", order.Items[0].ProductID).Error; err != nil {
		t.Fatalf("reload inventory: %v", err)
	}
	if inv.AvailableQty != 5 {
		t.Fatalf("double cancel released stock twice: %+v", inv)
	}

	var events int64
	if err := db.Model(&models.OutboxEvent{}).Where("event_type = ?", enums.EventOrderCancelled).Count(&events).Error; err != nil {
		t.Fatalf("count outbox: %v", err)
	}
	if events != 1 {
		t.Fatalf("expected one cancellation event, got %d", events)
	}
}

func TestCancelOwnership(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	userID := uuid.New()
	order := seedOrder(t, db, &userID, enums.OrderStatusPending)

	_, err := svc.Cancel(ctx, identity.FromUser(uuid.New()), order.ID, "not mine")
	if !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found for stranger, got %v", err)
	}
	_, err = svc.Cancel(ctx, identity.FromSession("tok_x"), order.ID, "guest")
	if !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found for session identity, got %v", err)
	}
}

func TestCancelRejectedAfterShipping(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)

	userID := uuid.New()
	order := seedOrder(t, db, &userID, enums.OrderStatusShipped)

	_, err := svc.Cancel(context.Background(), identity.FromUser(userID), order.ID, "too late")
	if !pkgerrors.HasCode(err, pkgerrors.CodeInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
}

func TestGuestLookup(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	order := seedOrder(t, db, nil, enums.OrderStatusPending)

	dto, err := svc.GuestLookup(ctx, order.OrderNumber, "SHOPPER@example.com")
	if err != nil {
		t.Fatalf("guest lookup: %v", err)
	}
	if dto.OrderNumber != order.OrderNumber {
		t.Fatalf("unexpected order %q", dto.OrderNumber)
	}

	if _, err := svc.GuestLookup(ctx, order.OrderNumber, "wrong@example.com"); !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found for wrong email, got %v", err)
	}
}

func TestListPaginates(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	userID := uuid.New()
	for i := 0; i < 3; i++ {
		seedOrder(t, db, &userID, enums.OrderStatusPending)
	}
	seedOrder(t, db, nil, enums.OrderStatusPending)

	page, err := svc.List(ctx, userID, pagination.Params{Limit: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Orders) != 2 || page.NextCursor == "" {
		t.Fatalf("expected first page of 2 with cursor, got %d %q", len(page.Orders), page.NextCursor)
	}

	rest, err := svc.List(ctx, userID, pagination.Params{Limit: 2, Cursor: page.NextCursor})
	if err != nil {
		t.Fatalf("second page: %v", err)
	}
	if len(rest.Orders) != 1 || rest.NextCursor != "" {
		t.Fatalf("expected final page of 1, got %d %q", len(rest.Orders), rest.NextCursor)
	}
}

func TestOrderNumberShape(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	seen := map[string]struct{}{}
	for i := 0; i < 100; i++ {
		num := NewOrderNumber(now)
		if len(num) != len("HB-20260901-XXXXXX") {
			t.Fatalf("unexpected length for %q", num)
		}
		if num[:12] != "HB-20260901-" {
			t.Fatalf("unexpected prefix for %q", num)
		}
		seen[num] = struct{}{}
	}
	if len(seen) < 99 {
		t.Fatalf("too many collisions in 100 draws: %d unique", len(seen))
	}
}
