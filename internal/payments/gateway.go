package payments

import (
	"context"

	"gorm.io/gorm"

	"github.com/haatbari/haatbari-backend/pkg/db/models"
	"github.com/haatbari/haatbari-backend/pkg/enums"
	pkgerrors "github.com/haatbari/haatbari-backend/pkg/errors"
)

// SessionResult is what an adapter hands back to checkout. RedirectURL
// is set only by the hosted variant.
type SessionResult struct {
	Payment     *models.Payment
	RedirectURL string
}

// Gateway creates the payment leg of a freshly snapshotted order inside
// the checkout transaction. The method set is closed: hosted checkout
// and pay-on-fulfillment.
type Gateway interface {
	Method() enums.PaymentMethod
	CreateSession(ctx context.Context, tx *gorm.DB, order *models.Order) (*SessionResult, error)
}

// Selector dispatches checkout to the adapter for the chosen method.
type Selector struct {
	gateways map[enums.PaymentMethod]Gateway
}

// NewSelector registers the provided adapters by method.
func NewSelector(gateways ...Gateway) *Selector {
	byMethod := make(map[enums.PaymentMethod]Gateway, len(gateways))
	for _, gw := range gateways {
		if gw != nil {
			byMethod[gw.Method()] = gw
		}
	}
	return &Selector{gateways: byMethod}
}

// ForMethod returns the adapter for the method, or
// PaymentMethodUnavailable when none is registered.
func (s *Selector) ForMethod(method enums.PaymentMethod) (Gateway, error) {
	gw, ok := s.gateways[method]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodePaymentUnavailable,
			"payment method "+method.String()+" is not available")
	}
	return gw, nil
}
