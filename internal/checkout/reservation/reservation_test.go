package reservation

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/haatbari/haatbari-backend/pkg/db/models"
	pkgerrors "github.com/haatbari/haatbari-backend/pkg/errors"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:reservation_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.InventoryItem{}); err != nil {
		t.Fatalf("migrate inventory: %v", err)
	}
	return db
}

func TestReserve(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	productA := uuid.New()
	productB := uuid.New()

	for _, item := range []models.InventoryItem{
		{ProductID: productA, VariantID: uuid.Nil, AvailableQty: 5},
		{ProductID: productB, VariantID: uuid.Nil, AvailableQty: 1},
	} {
		if err := db.Create(&item).Error; err != nil {
			t.Fatalf("seed inventory: %v", err)
		}
	}

	requests := []Request{
		{LineID: uuid.New(), ProductID: productA, Qty: 3},
		{LineID: uuid.New(), ProductID: productA, Qty: 4},
		{LineID: uuid.New(), ProductID: productB, Qty: 1},
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		results, terr := Reserve(ctx, tx, requests)
		if terr != nil {
			return terr
		}
		if len(results) != 3 {
			t.Fatalf("expected 3 results, got %d", len(results))
		}
		if !results[0].Reserved || results[0].Reason != "" {
			t.Fatalf("expected first reservation to succeed")
		}
		if results[1].Reserved || results[1].Reason == "" {
			t.Fatalf("expected second reservation to fail with reason")
		}
		if !results[2].Reserved {
			t.Fatalf("expected third reservation to succeed")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("reserve transaction: %v", err)
	}

	var invA, invB models.InventoryItem
	if err := db.First(&invA, "product_id = ?", productA).Error; err != nil {
		t.Fatalf("load inventory a: %v", err)
	}
	if err := db.First(&invB, "product_id = ?", productB).Error; err != nil {
		t.Fatalf("load inventory b: %v", err)
	}
	if invA.AvailableQty != 2 || invA.ReservedQty != 3 {
		t.Fatalf("unexpected inventory a state: %+v", invA)
	}
	if invB.AvailableQty != 0 || invB.ReservedQty != 1 {
		t.Fatalf("unexpected inventory b state: %+v", invB)
	}
}

func TestReserveDistinguishesVariants(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	productID := uuid.New()
	variantID := uuid.New()

	for _, item := range []models.InventoryItem{
		{ProductID: productID, VariantID: uuid.Nil, AvailableQty: 1},
		{ProductID: productID, VariantID: variantID, AvailableQty: 4},
	} {
		if err := db.Create(&item).Error; err != nil {
			t.Fatalf("seed inventory: %v", err)
		}
	}

	results, err := Reserve(ctx, db, []Request{
		{LineID: uuid.New(), ProductID: productID, VariantID: variantID, Qty: 3},
	})
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if !results[0].Reserved {
		t.Fatalf("expected variant reservation to succeed")
	}

	var base models.InventoryItem
	if err := db.First(&base, "product_id = ? AND variant_id = ?", productID, uuid.Nil).Error; err != nil {
		t.Fatalf("load base inventory: %v", err)
	}
	if base.AvailableQty != 1 || base.ReservedQty != 0 {
		t.Fatalf("variant reservation touched base row: %+v", base)
	}
}

func TestReserveInvalidQty(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	productID := uuid.New()
	if err := db.Create(&models.InventoryItem{ProductID: productID, VariantID: uuid.Nil, AvailableQty: 5}).Error; err != nil {
		t.Fatalf("seed inventory: %v", err)
	}

	_, err := Reserve(ctx, db, []Request{{ProductID: productID, Qty: 0}})
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestReleaseRestoresAndClamps(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	productID := uuid.New()
	if err := db.Create(&models.InventoryItem{ProductID: productID, VariantID: uuid.Nil, AvailableQty: 2, ReservedQty: 3}).Error; err != nil {
		t.Fatalf("seed inventory: %v", err)
	}

	if err := Release(ctx, db, []Request{{ProductID: productID, Qty: 3}}); err != nil {
		t.Fatalf("release: %v", err)
	}

	var inv models.InventoryItem
	if err := db.First(&inv, "product_id = ?", productID).Error; err != nil {
		t.Fatalf("load inventory: %v", err)
	}
	if inv.AvailableQty != 5 || inv.ReservedQty != 0 {
		t.Fatalf("unexpected state after release: %+v", inv)
	}

	// Releasing more than is reserved clamps the counter at zero.
	if err := Release(ctx, db, []Request{{ProductID: productID, Qty: 2}}); err != nil {
		t.Fatalf("second release: %v", err)
	}
	if err := db.First(&inv, "product_id = ?", productID).Error; err != nil {
		t.Fatalf("reload inventory: %v", err)
	}
	if inv.AvailableQty != 7 || inv.ReservedQty != 0 {
		t.Fatalf("unexpected clamped state: %+v", inv)
	}
}
