package controllers

import (
	"net/http"

	"github.com/haatbari/haatbari-backend/api/responses"
	"github.com/haatbari/haatbari-backend/api/validators"
	"github.com/haatbari/haatbari-backend/internal/webhooks/hosted"
	pkgerrors "github.com/haatbari/haatbari-backend/pkg/errors"
	"github.com/haatbari/haatbari-backend/pkg/logger"
	"github.com/haatbari/haatbari-backend/pkg/metrics"
)

type paymentWebhookRequest struct {
	EventID   string `json:"eventId" validate:"required"`
	SessionID string `json:"sessionId" validate:"required"`
	Status    string `json:"status" validate:"required,oneof=success failure"`
	Reason    string `json:"reason" validate:"max=500"`
}

// PaymentWebhook receives the hosted provider's payment callbacks.
// Delivery is at-least-once, so every disposition that leaves the
// system consistent answers 200; the provider must not retry
// duplicates or callbacks for sessions we never opened.
func PaymentWebhook(handler *hosted.Handler, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload paymentWebhookRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			metrics.RecordWebhook("rejected")
			responses.WriteError(r.Context(), w, logg, err)
			return
		}

		disposition, err := handler.HandleCallback(r.Context(), hosted.Callback{
			ProviderEventID:   payload.EventID,
			ProviderSessionID: payload.SessionID,
			Outcome:           hosted.Outcome(payload.Status),
			Reason:            payload.Reason,
		})
		if err != nil {
			if pkgerrors.HasCode(err, pkgerrors.CodeInvalidTransition) {
				// The order already moved past this callback (late
				// failure after settlement, or vice versa). Absorb it:
				// retrying will never change the answer.
				metrics.RecordWebhook("rejected")
				responses.WriteSuccess(w, map[string]string{"disposition": "rejected"})
				return
			}
			metrics.RecordWebhook("error")
			responses.WriteError(r.Context(), w, logg, err)
			return
		}

		metrics.RecordWebhook(string(disposition))
		responses.WriteSuccess(w, map[string]string{"disposition": string(disposition)})
	}
}
