package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/haatbari/haatbari-backend/api/responses"
	"github.com/haatbari/haatbari-backend/internal/identity"
	"github.com/haatbari/haatbari-backend/pkg/auth"
	"github.com/haatbari/haatbari-backend/pkg/config"
	pkgerrors "github.com/haatbari/haatbari-backend/pkg/errors"
	"github.com/haatbari/haatbari-backend/pkg/logger"
)

const sessionTokenHeader = "X-Session-Token"

// Identity resolves the caller on every request. A Bearer token wins
// and must be valid; otherwise the session token header is used, and
// when neither is present a fresh guest session token is minted and
// echoed back so the client can carry it forward.
func Identity(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if header := r.Header.Get("Authorization"); header != "" {
				tokenString, ok := strings.CutPrefix(header, "Bearer ")
				if !ok {
					responses.WriteError(ctx, w, logg,
						pkgerrors.New(pkgerrors.CodeUnauthorized, "authorization header must use the Bearer scheme"))
					return
				}
				claims, err := auth.ParseAccessToken(cfg, tokenString)
				if err != nil {
					responses.WriteError(ctx, w, logg,
						pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid access token"))
					return
				}
				ctx = logg.WithUserID(ctx, claims.UserID.String())
				ctx = identity.WithContext(ctx, identity.FromUser(claims.UserID))
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			token := r.Header.Get(sessionTokenHeader)
			if token == "" {
				token = uuid.NewString()
			}
			w.Header().Set(sessionTokenHeader, token)
			ctx = logg.WithSessionID(ctx, token)
			ctx = identity.WithContext(ctx, identity.FromSession(token))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
