package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/skillroads/skillroads-backend/api/routes"
	"github.com/skillroads/skillroads-backend/internal/catalog"
	"github.com/skillroads/skillroads-backend/internal/checkout"
	"github.com/skillroads/skillroads-backend/internal/coupons"
	"github.com/skillroads/skillroads-backend/internal/enrollments"
	"github.com/skillroads/skillroads-backend/internal/entitlements"
	"github.com/skillroads/skillroads-backend/internal/pricing"
	"github.com/skillroads/skillroads-backend/internal/subscriptions"
	gatewaywebhook "github.com/skillroads/skillroads-backend/internal/webhooks/gateway"
	"github.com/skillroads/skillroads-backend/pkg/config"
	"github.com/skillroads/skillroads-backend/pkg/db"
	"github.com/skillroads/skillroads-backend/pkg/gateway"
	"github.com/skillroads/skillroads-backend/pkg/logger"
	"github.com/skillroads/skillroads-backend/pkg/metrics"
	"github.com/skillroads/skillroads-backend/pkg/migrate"
	"github.com/skillroads/skillroads-backend/pkg/outbox"
	"github.com/skillroads/skillroads-backend/pkg/redis"
)

const webhookGuardScope = "webhook:gateway"

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

	gatewayClient, err := gateway.NewClient(context.Background(), cfg.Gateway, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create gateway client", err)
		os.Exit(1)
	}

	gormDB := dbClient.DB()
	catalogRepo := catalog.NewRepository(gormDB)
	couponRepo := coupons.NewRepository(gormDB)
	outboxSvc := outbox.NewService(outbox.NewRepository(gormDB), logg)

	catalogSvc, err := catalog.NewService(catalogRepo, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create catalog service", err)
		os.Exit(1)
	}

	couponSvc, err := coupons.NewService(couponRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create coupon service", err)
		os.Exit(1)
	}

	pricingEngine, err := pricing.NewEngine(couponRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create pricing engine", err)
		os.Exit(1)
	}

	subscriptionSvc, err := subscriptions.NewService(subscriptions.NewRepository(gormDB), dbClient, outboxSvc)
	if err != nil {
		logg.Error(context.Background(), "failed to create subscription service", err)
		os.Exit(1)
	}

	enrollmentSvc, err := enrollments.NewService(enrollments.NewRepository(gormDB))
	if err != nil {
		logg.Error(context.Background(), "failed to create enrollment service", err)
		os.Exit(1)
	}

	resolver, err := entitlements.NewResolver(entitlements.NewRepository(gormDB))
	if err != nil {
		logg.Error(context.Background(), "failed to create entitlement resolver", err)
		os.Exit(1)
	}

	checkoutSvc, err := checkout.NewService(checkout.Deps{
		Repo:          checkout.NewRepository(gormDB),
		DBClient:      dbClient,
		Catalog:       catalogRepo,
		Pricing:       pricingEngine,
		Gateway:       gatewayClient,
		Entitlements:  resolver,
		Subscriptions: subscriptionSvc,
		Outbox:        outboxSvc,
		Metrics:       metrics.NewCheckoutMetrics(prometheus.DefaultRegisterer),
		Logger:        logg,
		Config:        cfg.Checkout,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	webhookGuard, err := gatewaywebhook.NewIdempotencyGuard(redisClient, cfg.Checkout.WebhookGuardTTL, webhookGuardScope)
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook guard", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:         cfg,
			Logger:         logg,
			DBPinger:       dbClient,
			RedisClient:    redisClient,
			Catalog:        catalogSvc,
			Coupons:        couponSvc,
			Pricing:        pricingEngine,
			Subscriptions:  subscriptionSvc,
			Enrollments:    enrollmentSvc,
			Entitlements:   resolver,
			Checkout:       checkoutSvc,
			WebhookGuard:   webhookGuard,
			MetricsHandler: promhttp.Handler(),
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
