package cart

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/haatbari/haatbari-backend/internal/catalog"
	"github.com/haatbari/haatbari-backend/internal/coupons"
	"github.com/haatbari/haatbari-backend/internal/identity"
	"github.com/haatbari/haatbari-backend/pkg/config"
	"github.com/haatbari/haatbari-backend/pkg/db/models"
	"github.com/haatbari/haatbari-backend/pkg/enums"
	pkgerrors "github.com/haatbari/haatbari-backend/pkg/errors"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.Transaction(fn)
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:cart_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	err = db.AutoMigrate(
		&models.Product{}, &models.ProductVariant{}, &models.InventoryItem{},
		&models.Cart{}, &models.CartItem{}, &models.Coupon{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestService(t *testing.T, db *gorm.DB, cfg config.CheckoutConfig) Service {
	t.Helper()
	catalogSvc, err := catalog.NewService(catalog.NewRepository(db))
	if err != nil {
		t.Fatalf("catalog service: %v", err)
	}
	couponSvc, err := coupons.NewService(coupons.NewRepository(db))
	if err != nil {
		t.Fatalf("coupon service: %v", err)
	}
	svc, err := NewService(NewRepository(db), gormTxRunner{db: db}, catalogSvc, couponSvc, cfg)
	if err != nil {
		t.Fatalf("cart service: %v", err)
	}
	return svc
}

func seedProduct(t *testing.T, db *gorm.DB, pricePaisa int64, stock int) uuid.UUID {
	t.Helper()
	product := models.Product{
		ID:         uuid.New(),
		Name:       "Item",
		SKU:        "SKU-" + uuid.NewString(),
		PricePaisa: pricePaisa,
		Active:     true,
	}
	if err := db.Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	inv := models.InventoryItem{ProductID: product.ID, VariantID: uuid.Nil, AvailableQty: stock}
	if err := db.Create(&inv).Error; err != nil {
		t.Fatalf("seed inventory: %v", err)
	}
	return product.ID
}

func TestGetOrCreateIsStable(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db, config.CheckoutConfig{})
	ctx := context.Background()
	id := identity.FromSession("tok_" + uuid.NewString())

	first, err := svc.GetOrCreate(ctx, id)
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	second, err := svc.GetOrCreate(ctx, id)
	if err != nil {
		t.Fatalf("second get or create: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected the same cart, got %s and %s", first.ID, second.ID)
	}
}

func TestAddItemMergesLines(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db, config.CheckoutConfig{})
	ctx := context.Background()
	id := identity.FromSession("tok_" + uuid.NewString())
	productID := seedProduct(t, db, 1000, 5)

	if _, err := svc.AddItem(ctx, id, AddItemInput{ProductID: productID, Quantity: 2}); err != nil {
		t.Fatalf("first add: %v", err)
	}
	view, err := svc.AddItem(ctx, id, AddItemInput{ProductID: productID, Quantity: 1})
	if err != nil {
		t.Fatalf("second add: %v", err)
	}

	if len(view.Items) != 1 {
		t.Fatalf("expected one merged line, got %d", len(view.Items))
	}
	if view.Items[0].Quantity != 3 {
		t.Fatalf("expected merged quantity 3, got %d", view.Items[0].Quantity)
	}
}

func TestAddItemRespectsStock(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db, config.CheckoutConfig{})
	ctx := context.Background()
	id := identity.FromSession("tok_" + uuid.NewString())
	productID := seedProduct(t, db, 1000, 3)

	if _, err := svc.AddItem(ctx, id, AddItemInput{ProductID: productID, Quantity: 2}); err != nil {
		t.Fatalf("add within stock: %v", err)
	}
	_, err := svc.AddItem(ctx, id, AddItemInput{ProductID: productID, Quantity: 2})
	if !pkgerrors.HasCode(err, pkgerrors.CodeOutOfStock) {
		t.Fatalf("expected out of stock counting in-cart quantity, got %v", err)
	}

	_, err = svc.AddItem(ctx, id, AddItemInput{ProductID: uuid.New(), Quantity: 1})
	if !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found for unknown product, got %v", err)
	}
	_, err = svc.AddItem(ctx, id, AddItemInput{ProductID: productID, Quantity: 0})
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for zero quantity, got %v", err)
	}
}

func TestUpdateItemQuantityZeroRemoves(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db, config.CheckoutConfig{})
	ctx := context.Background()
	id := identity.FromSession("tok_" + uuid.NewString())
	productID := seedProduct(t, db, 1000, 5)

	view, err := svc.AddItem(ctx, id, AddItemInput{ProductID: productID, Quantity: 2})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	itemID := view.Items[0].ID

	view, err = svc.UpdateItemQuantity(ctx, id, itemID, 4)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if view.Items[0].Quantity != 4 {
		t.Fatalf("expected quantity 4, got %d", view.Items[0].Quantity)
	}

	if _, err := svc.UpdateItemQuantity(ctx, id, itemID, 6); !pkgerrors.HasCode(err, pkgerrors.CodeOutOfStock) {
		t.Fatalf("expected out of stock, got %v", err)
	}

	view, err = svc.UpdateItemQuantity(ctx, id, itemID, 0)
	if err != nil {
		t.Fatalf("update to zero: %v", err)
	}
	if len(view.Items) != 0 {
		t.Fatalf("expected empty cart, got %d items", len(view.Items))
	}
}

func TestClearDropsCoupon(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db, config.CheckoutConfig{})
	ctx := context.Background()
	id := identity.FromSession("tok_" + uuid.NewString())
	productID := seedProduct(t, db, 100000, 5)

	if err := db.Create(&models.Coupon{ID: uuid.New(), Code: "SAVE10", Type: enums.CouponTypePercentage, Value: 10}).Error; err != nil {
		t.Fatalf("seed coupon: %v", err)
	}

	if _, err := svc.AddItem(ctx, id, AddItemInput{ProductID: productID, Quantity: 1}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := svc.AttachCoupon(ctx, id, "save10"); err != nil {
		t.Fatalf("attach coupon: %v", err)
	}

	view, err := svc.Clear(ctx, id)
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if len(view.Items) != 0 {
		t.Fatalf("expected no items, got %d", len(view.Items))
	}
	if view.Coupon != nil {
		t.Fatalf("expected coupon dropped, got %+v", view.Coupon)
	}
}

func TestCouponScenarioTotals(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db, config.CheckoutConfig{})
	ctx := context.Background()
	id := identity.FromSession("tok_" + uuid.NewString())

	// One line at 1000 paisa, quantity 2; SAVE10 is 10% off with a
	// 1500 paisa minimum.
	productID := seedProduct(t, db, 1000, 10)
	if err := db.Create(&models.Coupon{
		ID: uuid.New(), Code: "SAVE10", Type: enums.CouponTypePercentage, Value: 10, MinOrderPaisa: 1500,
	}).Error; err != nil {
		t.Fatalf("seed coupon: %v", err)
	}

	if _, err := svc.AddItem(ctx, id, AddItemInput{ProductID: productID, Quantity: 2}); err != nil {
		t.Fatalf("add: %v", err)
	}
	view, err := svc.AttachCoupon(ctx, id, "SAVE10")
	if err != nil {
		t.Fatalf("attach: %v", err)
	}

	want := Totals{SubtotalPaisa: 2000, DiscountPaisa: 200, ShippingPaisa: 0, TaxPaisa: 0, TotalPaisa: 1800, ItemCount: 2}
	if view.Totals != want {
		t.Fatalf("unexpected totals %+v", view.Totals)
	}
}

func TestAttachCouponBelowMinimum(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db, config.CheckoutConfig{})
	ctx := context.Background()
	id := identity.FromSession("tok_" + uuid.NewString())
	productID := seedProduct(t, db, 1000, 10)

	if err := db.Create(&models.Coupon{
		ID: uuid.New(), Code: "SAVE10", Type: enums.CouponTypePercentage, Value: 10, MinOrderPaisa: 5000,
	}).Error; err != nil {
		t.Fatalf("seed coupon: %v", err)
	}

	if _, err := svc.AddItem(ctx, id, AddItemInput{ProductID: productID, Quantity: 1}); err != nil {
		t.Fatalf("add: %v", err)
	}
	_, err := svc.AttachCoupon(ctx, id, "SAVE10")
	if !pkgerrors.HasCode(err, pkgerrors.CodeCouponMinimum) {
		t.Fatalf("expected minimum not met, got %v", err)
	}
}

func TestViewIsSideEffectFree(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db, config.CheckoutConfig{ShippingFlatPaisa: 6000})
	ctx := context.Background()
	id := identity.FromSession("tok_" + uuid.NewString())
	productID := seedProduct(t, db, 1000, 5)

	if _, err := svc.AddItem(ctx, id, AddItemInput{ProductID: productID, Quantity: 2}); err != nil {
		t.Fatalf("add: %v", err)
	}

	var baseline Totals
	for i := 0; i < 5; i++ {
		view, err := svc.GetOrCreate(ctx, id)
		if err != nil {
			t.Fatalf("view %d: %v", i, err)
		}
		if i == 0 {
			baseline = view.Totals
			continue
		}
		if view.Totals != baseline {
			t.Fatalf("totals changed between calls: %+v vs %+v", view.Totals, baseline)
		}
	}

	var inv models.InventoryItem
	if err := db.First(&inv, "product_id = ?", productID).Error; err != nil {
		t.Fatalf("load inventory: %v", err)
	}
	if inv.AvailableQty != 5 || inv.ReservedQty != 0 {
		t.Fatalf("viewing mutated stock: %+v", inv)
	}
}

func TestPriceForCheckoutEmptyCart(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db, config.CheckoutConfig{})
	ctx := context.Background()
	id := identity.FromSession("tok_" + uuid.NewString())

	if _, err := svc.GetOrCreate(ctx, id); err != nil {
		t.Fatalf("get or create: %v", err)
	}
	_, err := svc.PriceForCheckout(ctx, id)
	if !pkgerrors.HasCode(err, pkgerrors.CodeEmptyCart) {
		t.Fatalf("expected empty cart error, got %v", err)
	}
}
