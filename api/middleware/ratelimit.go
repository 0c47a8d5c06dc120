package middleware

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/haatbari/haatbari-backend/api/responses"
	"github.com/haatbari/haatbari-backend/pkg/config"
	pkgerrors "github.com/haatbari/haatbari-backend/pkg/errors"
	"github.com/haatbari/haatbari-backend/pkg/logger"
)

// RateLimiter is the slice of the redis client rate limiting needs.
type RateLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// GuestLookupRateLimit caps guest order lookups per client IP. The
// endpoint is unauthenticated and enumerable, so it gets the tightest
// budget in the API.
func GuestLookupRateLimit(limiter RateLimiter, cfg config.GuestLookupConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil {
				next.ServeHTTP(w, r)
				return
			}

			scope := "guest-lookup:" + clientIP(r)
			allowed, _, err := limiter.FixedWindowAllow(r.Context(), scope, int64(cfg.Limit), cfg.Window)
			if err != nil {
				// Fail open: a redis hiccup should not block lookups.
				logg.Error(r.Context(), "rate limit check failed", err)
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				responses.WriteError(r.Context(), w, logg,
					pkgerrors.New(pkgerrors.CodeRateLimit, "too many lookup attempts"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
