package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/haatbari/haatbari-backend/api/routes"
	addrsvc "github.com/haatbari/haatbari-backend/internal/addresses"
	cartsvc "github.com/haatbari/haatbari-backend/internal/cart"
	"github.com/haatbari/haatbari-backend/internal/catalog"
	checkoutsvc "github.com/haatbari/haatbari-backend/internal/checkout"
	"github.com/haatbari/haatbari-backend/internal/coupons"
	ordersvc "github.com/haatbari/haatbari-backend/internal/orders"
	"github.com/haatbari/haatbari-backend/internal/payments"
	"github.com/haatbari/haatbari-backend/internal/webhooks/hosted"
	"github.com/haatbari/haatbari-backend/pkg/config"
	"github.com/haatbari/haatbari-backend/pkg/db"
	"github.com/haatbari/haatbari-backend/pkg/logger"
	"github.com/haatbari/haatbari-backend/pkg/migrate"
	"github.com/haatbari/haatbari-backend/pkg/outbox"
	"github.com/haatbari/haatbari-backend/pkg/redis"
	"github.com/haatbari/haatbari-backend/pkg/sslcommerz"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	gormDB := dbClient.DB()
	emitter := outbox.NewService(outbox.NewRepository(gormDB), logg)

	catalogService, err := catalog.NewService(catalog.NewRepository(gormDB))
	exitOnError(logg, "catalog service", err)

	couponService, err := coupons.NewService(coupons.NewRepository(gormDB))
	exitOnError(logg, "coupon service", err)

	cartService, err := cartsvc.NewService(
		cartsvc.NewRepository(gormDB), dbClient, catalogService, couponService, cfg.Checkout)
	exitOnError(logg, "cart service", err)

	addressService, err := addrsvc.NewService(addrsvc.NewRepository(gormDB))
	exitOnError(logg, "address service", err)

	ordersRepo := ordersvc.NewRepository(gormDB)
	orderService, err := ordersvc.NewService(ordersRepo, dbClient, emitter, logg)
	exitOnError(logg, "order service", err)

	provider, err := sslcommerz.NewClient(
		cfg.Gateway.StoreID,
		cfg.Gateway.StorePass,
		sslcommerz.WithBaseURL(cfg.Gateway.BaseURL),
		sslcommerz.WithTimeout(cfg.Gateway.HTTPTimeout),
	)
	exitOnError(logg, "payment provider client", err)

	hostedGateway, err := payments.NewHostedGateway(provider, ordersRepo, cfg.Payment, cfg.Gateway)
	exitOnError(logg, "hosted gateway", err)

	codGateway, err := payments.NewCODGateway(ordersRepo, emitter, cfg.Payment)
	exitOnError(logg, "cod gateway", err)

	checkoutService, err := checkoutsvc.NewService(
		cartService,
		addressService,
		couponService,
		ordersRepo,
		payments.NewSelector(hostedGateway, codGateway),
		emitter,
		dbClient,
		logg,
	)
	exitOnError(logg, "checkout service", err)

	webhookHandler, err := hosted.NewHandler(
		ordersRepo, orderService, emitter, dbClient, redisClient, cfg.Payment, logg)
	exitOnError(logg, "webhook handler", err)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:   cfg,
			Logger:   logg,
			DB:       dbClient,
			Redis:    redisClient,
			Catalog:  catalogService,
			Cart:     cartService,
			Address:  addressService,
			Orders:   orderService,
			Checkout: checkoutService,
			Webhook:  webhookHandler,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func exitOnError(logg *logger.Logger, what string, err error) {
	if err != nil {
		logg.Error(context.Background(), "failed to build "+what, err)
		os.Exit(1)
	}
}
