package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/haatbari/haatbari-backend/api/responses"
	"github.com/haatbari/haatbari-backend/api/validators"
	"github.com/haatbari/haatbari-backend/internal/identity"
	ordersvc "github.com/haatbari/haatbari-backend/internal/orders"
	pkgerrors "github.com/haatbari/haatbari-backend/pkg/errors"
	"github.com/haatbari/haatbari-backend/pkg/logger"
	"github.com/haatbari/haatbari-backend/pkg/pagination"
)

// ListOrders pages through the authenticated user's order history.
func ListOrders(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := identity.FromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), w, logg,
				pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "caller identity missing"))
			return
		}
		if !id.IsUser() {
			responses.WriteError(r.Context(), w, logg,
				pkgerrors.New(pkgerrors.CodeUnauthorized, "order history requires a logged-in user"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit)
		if err != nil {
			responses.WriteError(r.Context(), w, logg, err)
			return
		}

		page, err := svc.List(r.Context(), *id.UserID, pagination.Params{
			Limit:  limit,
			Cursor: r.URL.Query().Get("cursor"),
		})
		if err != nil {
			responses.WriteError(r.Context(), w, logg, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// GetOrder serves one order after an ownership check.
func GetOrder(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := identity.FromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), w, logg,
				pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "caller identity missing"))
			return
		}

		orderID, err := uuid.Parse(chi.URLParam(r, "orderId"))
		if err != nil {
			responses.WriteError(r.Context(), w, logg,
				pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id"))
			return
		}

		order, err := svc.Get(r.Context(), id, orderID)
		if err != nil {
			responses.WriteError(r.Context(), w, logg, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

type cancelOrderRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// CancelOrder cancels an order the caller owns, releasing its stock.
func CancelOrder(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := identity.FromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), w, logg,
				pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "caller identity missing"))
			return
		}

		orderID, err := uuid.Parse(chi.URLParam(r, "orderId"))
		if err != nil {
			responses.WriteError(r.Context(), w, logg,
				pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id"))
			return
		}

		// Body is optional; cancelling without a stated reason is fine.
		var payload cancelOrderRequest
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), w, logg, err)
				return
			}
		}
		reason := payload.Reason
		if reason == "" {
			reason = "cancelled by customer"
		}

		order, err := svc.Cancel(r.Context(), id, orderID, reason)
		if err != nil {
			responses.WriteError(r.Context(), w, logg, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

type guestLookupRequest struct {
	OrderNumber  string `json:"orderNumber" validate:"required"`
	ContactEmail string `json:"contactEmail" validate:"required,email"`
}

// GuestOrderLookup resolves one order by number plus contact email for
// shoppers without an account. Rate limited upstream.
func GuestOrderLookup(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload guestLookupRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), w, logg, err)
			return
		}

		order, err := svc.GuestLookup(r.Context(), payload.OrderNumber, payload.ContactEmail)
		if err != nil {
			responses.WriteError(r.Context(), w, logg, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}
