package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/skillroads/skillroads-backend/internal/catalog"
	"github.com/skillroads/skillroads-backend/internal/checkout"
	"github.com/skillroads/skillroads-backend/internal/coupons"
	"github.com/skillroads/skillroads-backend/internal/cron"
	"github.com/skillroads/skillroads-backend/internal/entitlements"
	"github.com/skillroads/skillroads-backend/internal/pricing"
	"github.com/skillroads/skillroads-backend/internal/subscriptions"
	"github.com/skillroads/skillroads-backend/pkg/config"
	"github.com/skillroads/skillroads-backend/pkg/db"
	"github.com/skillroads/skillroads-backend/pkg/gateway"
	"github.com/skillroads/skillroads-backend/pkg/logger"
	"github.com/skillroads/skillroads-backend/pkg/metrics"
	"github.com/skillroads/skillroads-backend/pkg/migrate"
	"github.com/skillroads/skillroads-backend/pkg/outbox"
	"github.com/skillroads/skillroads-backend/pkg/redis"
)

const lockKeyFormat = "sr:cron-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
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
	checkoutRepo := checkout.NewRepository(gormDB)
	outboxSvc := outbox.NewService(outbox.NewRepository(gormDB), logg)

	pricingEngine, err := pricing.NewEngine(coupons.NewRepository(gormDB))
	if err != nil {
		logg.Error(context.Background(), "failed to create pricing engine", err)
		os.Exit(1)
	}

	subscriptionSvc, err := subscriptions.NewService(subscriptions.NewRepository(gormDB), dbClient, outboxSvc)
	if err != nil {
		logg.Error(context.Background(), "failed to create subscription service", err)
		os.Exit(1)
	}

	resolver, err := entitlements.NewResolver(entitlements.NewRepository(gormDB))
	if err != nil {
		logg.Error(context.Background(), "failed to create entitlement resolver", err)
		os.Exit(1)
	}

	checkoutSvc, err := checkout.NewService(checkout.Deps{
		Repo:          checkoutRepo,
		DBClient:      dbClient,
		Catalog:       catalog.NewRepository(gormDB),
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

	expiryJob, err := cron.NewSubscriptionExpiryJob(cron.SubscriptionExpiryJobParams{
		Logger:        logg,
		Subscriptions: subscriptionSvc,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create subscription expiry job", err)
		os.Exit(1)
	}

	staleJob, err := cron.NewStaleTransactionJob(cron.StaleTransactionJobParams{
		Logger:           logg,
		Transactions:     checkoutRepo,
		Confirmer:        checkoutSvc,
		PendingThreshold: cfg.Checkout.PendingThreshold,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create stale transaction job", err)
		os.Exit(1)
	}

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	registry := cron.NewRegistry(expiryJob, staleJob)
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metricsCollector,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
