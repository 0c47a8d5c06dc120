package reservation

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/haatbari/haatbari-backend/pkg/db/models"
	pkgerrors "github.com/haatbari/haatbari-backend/pkg/errors"
)

// Request asks to move quantity from available to reserved for one
// product+variant. VariantID is the zero UUID for variant-less products.
type Request struct {
	LineID    uuid.UUID
	ProductID uuid.UUID
	VariantID uuid.UUID
	Qty       int
}

// Result reports the per-line outcome of a reservation pass.
type Result struct {
	LineID    uuid.UUID
	ProductID uuid.UUID
	VariantID uuid.UUID
	Reserved  bool
	Reason    string
}

// Reserve attempts a conditional decrement for every request. A line
// whose stock moved underneath the cart simply reports Reserved=false;
// the caller decides whether that aborts the enclosing transaction. The
// decrement itself is a single guarded UPDATE, so two competing
// checkouts can never both win the last unit.
func Reserve(ctx context.Context, tx *gorm.DB, requests []Request) ([]Result, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "reservation requires a transaction")
	}

	results := make([]Result, 0, len(requests))
	for _, req := range requests {
		if req.Qty < 1 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("reservation quantity must be at least 1, got %d", req.Qty))
		}

		update := tx.WithContext(ctx).
			Model(&models.InventoryItem{}).
			Where("product_id = ? AND variant_id = ? AND available_qty >= ?", req.ProductID, req.VariantID, req.Qty).
			UpdateColumns(map[string]any{
				"available_qty": gorm.Expr("available_qty - ?", req.Qty),
				"reserved_qty":  gorm.Expr("reserved_qty + ?", req.Qty),
			})
		if update.Error != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeUnavailable, update.Error, "reserve inventory")
		}

		result := Result{
			LineID:    req.LineID,
			ProductID: req.ProductID,
			VariantID: req.VariantID,
			Reserved:  update.RowsAffected == 1,
		}
		if !result.Reserved {
			result.Reason = "insufficient stock"
		}
		results = append(results, result)
	}
	return results, nil
}

// Release returns previously reserved quantities to the available pool.
// The reserved counter never goes below zero, so releasing twice for the
// same order (guarded upstream by Order.StockReleasedAt) cannot corrupt
// counts even if the guard is bypassed.
func Release(ctx context.Context, tx *gorm.DB, requests []Request) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "release requires a transaction")
	}

	for _, req := range requests {
		if req.Qty < 1 {
			return pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("release quantity must be at least 1, got %d", req.Qty))
		}

		err := tx.WithContext(ctx).
			Model(&models.InventoryItem{}).
			Where("product_id = ? AND variant_id = ?", req.ProductID, req.VariantID).
			UpdateColumns(map[string]any{
				"available_qty": gorm.Expr("available_qty + ?", req.Qty),
				"reserved_qty":  gorm.Expr("CASE WHEN reserved_qty >= ? THEN reserved_qty - ? ELSE 0 END", req.Qty, req.Qty),
			}).Error
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeUnavailable, err, "release inventory")
		}
	}
	return nil
}
