package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/haatbari/haatbari-backend/api/responses"
	"github.com/haatbari/haatbari-backend/api/validators"
	checkoutsvc "github.com/haatbari/haatbari-backend/internal/checkout"
	"github.com/haatbari/haatbari-backend/internal/identity"
	"github.com/haatbari/haatbari-backend/internal/orders"
	"github.com/haatbari/haatbari-backend/pkg/enums"
	pkgerrors "github.com/haatbari/haatbari-backend/pkg/errors"
	"github.com/haatbari/haatbari-backend/pkg/logger"
	"github.com/haatbari/haatbari-backend/pkg/metrics"
)

type checkoutRequest struct {
	ContactEmail      string     `json:"contactEmail" validate:"required,email"`
	PaymentMethod     string     `json:"paymentMethod" validate:"required,oneof=hosted_checkout cash_on_delivery"`
	ShippingAddressID uuid.UUID  `json:"shippingAddressId" validate:"required"`
	BillingAddressID  *uuid.UUID `json:"billingAddressId"`
	CouponCode        string     `json:"couponCode"`
}

type checkoutResponse struct {
	Order       *orders.DTO `json:"order"`
	RedirectURL string      `json:"redirectUrl,omitempty"`
}

// Checkout converts the caller's cart into an order.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := identity.FromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), w, logg,
				pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "caller identity missing"))
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), w, logg, err)
			return
		}

		outcome, err := svc.Execute(r.Context(), id, checkoutsvc.Input{
			ContactEmail:      payload.ContactEmail,
			PaymentMethod:     enums.PaymentMethod(payload.PaymentMethod),
			ShippingAddressID: payload.ShippingAddressID,
			BillingAddressID:  payload.BillingAddressID,
			CouponCode:        payload.CouponCode,
		})
		if err != nil {
			metrics.RecordCheckout("failure")
			responses.WriteError(r.Context(), w, logg, err)
			return
		}

		metrics.RecordCheckout("success")
		responses.WriteSuccessStatus(w, http.StatusCreated, checkoutResponse{
			Order:       outcome.Order,
			RedirectURL: outcome.RedirectURL,
		})
	}
}
