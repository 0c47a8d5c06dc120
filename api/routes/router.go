// Package routes assembles the HTTP router from middleware and controllers.
package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/haatbari/haatbari-backend/api/controllers"
	"github.com/haatbari/haatbari-backend/api/middleware"
	addrsvc "github.com/haatbari/haatbari-backend/internal/addresses"
	cartsvc "github.com/haatbari/haatbari-backend/internal/cart"
	"github.com/haatbari/haatbari-backend/internal/catalog"
	checkoutsvc "github.com/haatbari/haatbari-backend/internal/checkout"
	ordersvc "github.com/haatbari/haatbari-backend/internal/orders"
	"github.com/haatbari/haatbari-backend/internal/webhooks/hosted"
	"github.com/haatbari/haatbari-backend/pkg/config"
	"github.com/haatbari/haatbari-backend/pkg/db"
	"github.com/haatbari/haatbari-backend/pkg/logger"
	"github.com/haatbari/haatbari-backend/pkg/redis"
)

// Deps carries everything the router needs. Redis may be nil in tests;
// idempotency and rate limiting then pass requests straight through.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       db.Pinger
	Redis    *redis.Client
	Catalog  catalog.Service
	Cart     cartsvc.Service
	Address  addrsvc.Service
	Orders   ordersvc.Service
	Checkout checkoutsvc.Service
	Webhook  *hosted.Handler
}

// NewRouter builds the full HTTP surface.
func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.Live())
		r.Get("/ready", controllers.Ready(deps.DB, redisPinger(deps.Redis), logg))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Identity(cfg.JWT, logg))

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ListProducts(deps.Catalog, logg))
			r.Get("/{productId}", controllers.GetProduct(deps.Catalog, logg))
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.GetCart(deps.Cart, logg))
			r.Post("/items", controllers.AddCartItem(deps.Cart, logg))
			r.Patch("/items/{itemId}", controllers.UpdateCartItem(deps.Cart, logg))
			r.Delete("/items/{itemId}", controllers.RemoveCartItem(deps.Cart, logg))
			r.Delete("/items", controllers.ClearCart(deps.Cart, logg))
			r.Post("/coupon", controllers.AttachCoupon(deps.Cart, logg))
			r.Delete("/coupon", controllers.DetachCoupon(deps.Cart, logg))
			r.Post("/merge", controllers.MergeCart(deps.Cart, logg))
		})

		r.Route("/addresses", func(r chi.Router) {
			r.Post("/", controllers.CreateAddress(deps.Address, logg))
			r.Get("/", controllers.ListAddresses(deps.Address, logg))
		})

		r.With(middleware.Idempotency(idempotencyStore(deps.Redis), logg)).
			Post("/checkout", controllers.Checkout(deps.Checkout, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.ListOrders(deps.Orders, logg))
			r.Get("/{orderId}", controllers.GetOrder(deps.Orders, logg))
			r.With(middleware.Idempotency(idempotencyStore(deps.Redis), logg)).
				Post("/{orderId}/cancel", controllers.CancelOrder(deps.Orders, logg))
			r.With(middleware.GuestLookupRateLimit(rateLimiter(deps.Redis), cfg.GuestLookup, logg)).
				Post("/lookup", controllers.GuestOrderLookup(deps.Orders, logg))
		})

		r.Post("/webhooks/payment", controllers.PaymentWebhook(deps.Webhook, logg))
	})

	return r
}

// The nil-to-interface conversions below keep a nil *redis.Client from
// becoming a non-nil interface the middleware would then call through.

func idempotencyStore(client *redis.Client) middleware.IdempotencyStore {
	if client == nil {
		return nil
	}
	return client
}

func rateLimiter(client *redis.Client) middleware.RateLimiter {
	if client == nil {
		return nil
	}
	return client
}

func redisPinger(client *redis.Client) db.Pinger {
	if client == nil {
		return nil
	}
	return client
}
