package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/haatbari/haatbari-backend/api/responses"
	"github.com/haatbari/haatbari-backend/api/validators"
	addrsvc "github.com/haatbari/haatbari-backend/internal/addresses"
	"github.com/haatbari/haatbari-backend/internal/identity"
	"github.com/haatbari/haatbari-backend/pkg/db/models"
	pkgerrors "github.com/haatbari/haatbari-backend/pkg/errors"
	"github.com/haatbari/haatbari-backend/pkg/logger"
)

type createAddressRequest struct {
	Recipient  string `json:"recipient" validate:"required,max=120"`
	Phone      string `json:"phone" validate:"required,max=32"`
	Line1      string `json:"line1" validate:"required,max=200"`
	Line2      string `json:"line2" validate:"max=200"`
	City       string `json:"city" validate:"required,max=100"`
	District   string `json:"district" validate:"max=100"`
	PostalCode string `json:"postalCode" validate:"max=16"`
}

type addressResponse struct {
	ID         uuid.UUID `json:"id"`
	Recipient  string    `json:"recipient"`
	Phone      string    `json:"phone"`
	Line1      string    `json:"line1"`
	Line2      string    `json:"line2,omitempty"`
	City       string    `json:"city"`
	District   string    `json:"district,omitempty"`
	PostalCode string    `json:"postalCode,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

func newAddressResponse(address *models.Address) addressResponse {
	return addressResponse{
		ID:         address.ID,
		Recipient:  address.Recipient,
		Phone:      address.Phone,
		Line1:      address.Line1,
		Line2:      address.Line2,
		City:       address.City,
		District:   address.District,
		PostalCode: address.PostalCode,
		CreatedAt:  address.CreatedAt,
	}
}

// CreateAddress stores a delivery address for the caller.
func CreateAddress(svc addrsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := identity.FromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), w, logg,
				pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "caller identity missing"))
			return
		}

		var payload createAddressRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), w, logg, err)
			return
		}

		address, err := svc.Create(r.Context(), id, addrsvc.CreateInput{
			Recipient:  payload.Recipient,
			Phone:      payload.Phone,
			Line1:      payload.Line1,
			Line2:      payload.Line2,
			City:       payload.City,
			District:   payload.District,
			PostalCode: payload.PostalCode,
		})
		if err != nil {
			responses.WriteError(r.Context(), w, logg, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newAddressResponse(address))
	}
}

// ListAddresses returns the authenticated user's saved addresses.
func ListAddresses(svc addrsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := identity.FromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), w, logg,
				pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "caller identity missing"))
			return
		}
		if !id.IsUser() {
			responses.WriteError(r.Context(), w, logg,
				pkgerrors.New(pkgerrors.CodeUnauthorized, "saved addresses require a logged-in user"))
			return
		}

		addresses, err := svc.ListForUser(r.Context(), *id.UserID)
		if err != nil {
			responses.WriteError(r.Context(), w, logg, err)
			return
		}

		out := make([]addressResponse, 0, len(addresses))
		for i := range addresses {
			out = append(out, newAddressResponse(&addresses[i]))
		}
		responses.WriteSuccess(w, out)
	}
}
