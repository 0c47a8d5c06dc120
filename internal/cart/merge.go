package cart

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/haatbari/haatbari-backend/internal/catalog"
	"github.com/haatbari/haatbari-backend/internal/identity"
	"github.com/haatbari/haatbari-backend/pkg/db/models"
	pkgerrors "github.com/haatbari/haatbari-backend/pkg/errors"
)

// Merge folds the anonymous session cart into the authenticated user's
// cart. Quantities add per product+variant line but clamp to available
// stock; the overflow is dropped rather than failing the merge. The
// anonymous cart is deleted afterward, which makes a repeated merge a
// natural no-op.
func (s *service) Merge(ctx context.Context, userID uuid.UUID, sessionToken string) (*View, error) {
	userIdentity := identity.FromUser(userID)
	if err := userIdentity.Validate(); err != nil {
		return nil, err
	}
	sessionIdentity := identity.FromSession(sessionToken)
	if err := sessionIdentity.Validate(); err != nil {
		return nil, err
	}

	anon, err := s.repo.FindByIdentity(ctx, sessionIdentity)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Already merged, or the session never had a cart.
			return s.GetOrCreate(ctx, userIdentity)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnavailable, err, "load session cart")
	}

	userCart, err := s.getOrCreate(ctx, userIdentity)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		for _, item := range anon.Items {
			resolved, rerr := s.catalog.ResolveLine(ctx, catalog.Line{ProductID: item.ProductID, VariantID: item.VariantID})
			if rerr != nil {
				if pkgerrors.HasCode(rerr, pkgerrors.CodeNotFound) {
					// Catalog moved on; drop the stale line.
					continue
				}
				return rerr
			}

			existingQty := 0
			var existingID uuid.UUID
			if existing, ferr := repo.FindLine(ctx, userCart.ID, item.ProductID, item.VariantID); ferr == nil {
				existingQty = existing.Quantity
				existingID = existing.ID
			} else if !errors.Is(ferr, gorm.ErrRecordNotFound) {
				return ferr
			}

			add := item.Quantity
			if room := resolved.AvailableQty - existingQty; add > room {
				add = room
			}
			if add <= 0 {
				continue
			}

			if existingID != uuid.Nil {
				if uerr := repo.UpdateItemQuantity(ctx, existingID, existingQty+add); uerr != nil {
					return uerr
				}
			} else {
				line := &models.CartItem{
					ID:        uuid.New(),
					CartID:    userCart.ID,
					ProductID: item.ProductID,
					VariantID: item.VariantID,
					Quantity:  add,
				}
				if cerr := repo.CreateItem(ctx, line); cerr != nil {
					return cerr
				}
			}
		}

		// The session coupon survives only when the user cart has none.
		if anon.CouponCode != nil && userCart.CouponCode == nil {
			if serr := repo.SetCoupon(ctx, userCart.ID, anon.CouponCode); serr != nil {
				return serr
			}
		}

		return repo.Delete(ctx, anon.ID)
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnavailable, err, "merge carts")
	}

	return s.reload(ctx, userIdentity)
}
