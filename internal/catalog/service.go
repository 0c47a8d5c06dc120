package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgerrors "github.com/haatbari/haatbari-backend/pkg/errors"
	"github.com/haatbari/haatbari-backend/pkg/pagination"
)

// Service exposes the catalog read surface consumed by carts and checkout.
type Service interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*ProductDTO, error)
	ListProducts(ctx context.Context, params pagination.Params) (*ProductPage, error)
	// ResolveLine re-reads price, identity, and stock for one line from
	// the live catalog.
	ResolveLine(ctx context.Context, line Line) (*ResolvedLine, error)
	// ResolveLines resolves a batch in input order, failing on the first
	// unknown or inactive line.
	ResolveLines(ctx context.Context, lines []Line) ([]ResolvedLine, error)
}

type service struct {
	repo Repository
}

// NewService builds a catalog service backed by the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	return &service{repo: repo}, nil
}

// ProductDTO is the read-model shape returned to the HTTP layer.
type ProductDTO struct {
	ID         uuid.UUID    `json:"id"`
	Name       string       `json:"name"`
	SKU        string       `json:"sku"`
	PricePaisa int64        `json:"pricePaisa"`
	Variants   []VariantDTO `json:"variants,omitempty"`
}

// VariantDTO is one sellable variation of a product.
type VariantDTO struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	SKU        string    `json:"sku"`
	PricePaisa int64     `json:"pricePaisa"`
}

// ProductPage is one page of the product listing.
type ProductPage struct {
	Products   []ProductDTO `json:"products"`
	NextCursor string       `json:"nextCursor,omitempty"`
}

func (s *service) GetProduct(ctx context.Context, id uuid.UUID) (*ProductDTO, error) {
	product, err := s.repo.FindProductByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}
	if !product.Active {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}

	dto := ProductDTO{
		ID:         product.ID,
		Name:       product.Name,
		SKU:        product.SKU,
		PricePaisa: product.PricePaisa,
	}
	for _, v := range product.Variants {
		dto.Variants = append(dto.Variants, VariantDTO{
			ID:         v.ID,
			Name:       v.Name,
			SKU:        v.SKU,
			PricePaisa: v.PricePaisa,
		})
	}
	return &dto, nil
}

func (s *service) ListProducts(ctx context.Context, params pagination.Params) (*ProductPage, error) {
	list, err := s.repo.ListActiveProducts(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list products")
	}

	page := &ProductPage{NextCursor: list.NextCursor, Products: make([]ProductDTO, 0, len(list.Products))}
	for _, p := range list.Products {
		dto := ProductDTO{
			ID:         p.ID,
			Name:       p.Name,
			SKU:        p.SKU,
			PricePaisa: p.PricePaisa,
		}
		for _, v := range p.Variants {
			dto.Variants = append(dto.Variants, VariantDTO{
				ID:         v.ID,
				Name:       v.Name,
				SKU:        v.SKU,
				PricePaisa: v.PricePaisa,
			})
		}
		page.Products = append(page.Products, dto)
	}
	return page, nil
}

func (s *service) ResolveLine(ctx context.Context, line Line) (*ResolvedLine, error) {
	product, err := s.repo.FindProductByID(ctx, line.ProductID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}
	if !product.Active {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product is no longer available")
	}

	resolved := ResolvedLine{
		ProductID:      product.ID,
		VariantID:      line.VariantID,
		Name:           product.Name,
		SKU:            product.SKU,
		UnitPricePaisa: product.PricePaisa,
	}

	if line.VariantID != uuid.Nil {
		found := false
		for _, v := range product.Variants {
			if v.ID == line.VariantID {
				resolved.Name = product.Name + " (" + v.Name + ")"
				resolved.SKU = v.SKU
				resolved.UnitPricePaisa = v.PricePaisa
				found = true
				break
			}
		}
		if !found {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product variant not found")
		}
	}

	inventory, err := s.repo.FindInventory(ctx, line.ProductID, line.VariantID)
	switch {
	case err == nil:
		resolved.AvailableQty = inventory.AvailableQty
	case errors.Is(err, gorm.ErrRecordNotFound):
		resolved.AvailableQty = 0
	default:
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load inventory")
	}

	return &resolved, nil
}

func (s *service) ResolveLines(ctx context.Context, lines []Line) ([]ResolvedLine, error) {
	resolved := make([]ResolvedLine, 0, len(lines))
	for _, line := range lines {
		r, err := s.ResolveLine(ctx, line)
		if err != nil {
			return nil, err
		}
		resolved = append(resolved, *r)
	}
	return resolved, nil
}
