package payments

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/haatbari/haatbari-backend/internal/orders"
	"github.com/haatbari/haatbari-backend/pkg/config"
	"github.com/haatbari/haatbari-backend/pkg/db/models"
	"github.com/haatbari/haatbari-backend/pkg/enums"
	pkgerrors "github.com/haatbari/haatbari-backend/pkg/errors"
	"github.com/haatbari/haatbari-backend/pkg/money"
	"github.com/haatbari/haatbari-backend/pkg/sslcommerz"
)

// sessionCreator is the slice of the provider client the adapter needs.
type sessionCreator interface {
	CreateSession(ctx context.Context, req sslcommerz.SessionRequest) (*sslcommerz.Session, error)
}

// HostedGateway is the hosted-checkout adapter. It converts the order's
// BDT total into the provider's USD settlement currency, opens a
// provider session, and records the pending payment. The order stays
// PENDING until the provider callback settles it; this adapter never
// completes a payment synchronously.
type HostedGateway struct {
	provider sessionCreator
	repo     orders.Repository
	rate     money.Rate
	cfg      config.GatewayConfig
}

// NewHostedGateway builds the hosted-checkout adapter.
func NewHostedGateway(provider sessionCreator, repo orders.Repository, paymentCfg config.PaymentConfig, gatewayCfg config.GatewayConfig) (*HostedGateway, error) {
	if provider == nil {
		return nil, fmt.Errorf("provider client required")
	}
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	rate, err := money.ParseRate(paymentCfg.USDRate, enums.CurrencyUSD)
	if err != nil {
		return nil, fmt.Errorf("parse USD rate: %w", err)
	}
	return &HostedGateway{
		provider: provider,
		repo:     repo,
		rate:     rate,
		cfg:      gatewayCfg,
	}, nil
}

func (g *HostedGateway) Method() enums.PaymentMethod {
	return enums.PaymentMethodHosted
}

func (g *HostedGateway) CreateSession(ctx context.Context, tx *gorm.DB, order *models.Order) (*SessionResult, error) {
	charged, err := g.rate.Convert(money.Paisa(order.TotalPaisa))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePaymentUnavailable, err, "convert order total")
	}

	session, err := g.provider.CreateSession(ctx, sslcommerz.SessionRequest{
		TransactionID: order.OrderNumber,
		AmountCents:   charged.Amount,
		Currency:      charged.Currency.String(),
		SuccessURL:    g.cfg.SuccessURL,
		FailURL:       g.cfg.FailURL,
		CancelURL:     g.cfg.CancelURL,
		CustomerName:  order.ShippingAddress.Recipient,
		CustomerEmail: order.ContactEmail,
		CustomerPhone: order.ShippingAddress.Phone,
		CustomerCity:  order.ShippingAddress.City,
	})
	if err != nil {
		return nil, err
	}

	payment := &models.Payment{
		OrderID:           order.ID,
		Method:            enums.PaymentMethodHosted,
		Status:            enums.PaymentStatusPending,
		ProviderSessionID: &session.SessionKey,
		AmountCharged:     charged.Amount,
		Currency:          charged.Currency,
	}
	if err := g.repo.WithTx(tx).CreatePayment(ctx, payment); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnavailable, err, "create payment")
	}

	return &SessionResult{
		Payment:     payment,
		RedirectURL: session.RedirectURL,
	}, nil
}
