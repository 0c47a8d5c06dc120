package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/haatbari/haatbari-backend/pkg/db/models"
	"github.com/haatbari/haatbari-backend/pkg/pagination"
)

// Repository defines persistence operations for the catalog read surface.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindVariantByID(ctx context.Context, id uuid.UUID) (*models.ProductVariant, error)
	ListActiveProducts(ctx context.Context, params pagination.Params) (*ProductList, error)
	FindInventory(ctx context.Context, productID, variantID uuid.UUID) (*models.InventoryItem, error)
}

// ProductList is one page of active products.
type ProductList struct {
	Products   []models.Product
	NextCursor string
}

// Line identifies one sellable unit. VariantID is the zero UUID for
// products sold without variants.
type Line struct {
	ProductID uuid.UUID
	VariantID uuid.UUID
}

// ResolvedLine is a line priced and named from the live catalog.
type ResolvedLine struct {
	ProductID      uuid.UUID
	VariantID      uuid.UUID
	Name           string
	SKU            string
	UnitPricePaisa int64
	AvailableQty   int
}
