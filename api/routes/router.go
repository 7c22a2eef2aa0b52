package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/skillroads/skillroads-backend/api/controllers"
	webhookcontrollers "github.com/skillroads/skillroads-backend/api/controllers/webhooks"
	"github.com/skillroads/skillroads-backend/api/middleware"
	"github.com/skillroads/skillroads-backend/internal/catalog"
	checkoutsvc "github.com/skillroads/skillroads-backend/internal/checkout"
	"github.com/skillroads/skillroads-backend/internal/coupons"
	"github.com/skillroads/skillroads-backend/internal/enrollments"
	"github.com/skillroads/skillroads-backend/internal/entitlements"
	"github.com/skillroads/skillroads-backend/internal/pricing"
	subscriptionsvc "github.com/skillroads/skillroads-backend/internal/subscriptions"
	gatewaywebhook "github.com/skillroads/skillroads-backend/internal/webhooks/gateway"
	"github.com/skillroads/skillroads-backend/pkg/config"
	"github.com/skillroads/skillroads-backend/pkg/db"
	"github.com/skillroads/skillroads-backend/pkg/enums"
	"github.com/skillroads/skillroads-backend/pkg/logger"
	"github.com/skillroads/skillroads-backend/pkg/redis"
)

// Deps bundles everything the HTTP surface is wired from.
type Deps struct {
	Config         *config.Config
	Logger         *logger.Logger
	DBPinger       db.Pinger
	RedisClient    *redis.Client
	Catalog        catalog.Service
	Coupons        coupons.Service
	Pricing        *pricing.Engine
	Subscriptions  subscriptionsvc.Service
	Enrollments    enrollments.Service
	Entitlements   entitlements.Resolver
	Checkout       checkoutsvc.Service
	WebhookGuard   *gatewaywebhook.IdempotencyGuard
	MetricsHandler http.Handler
}

// NewRouter assembles the full route tree with its middleware stack.
func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	checkoutPolicy := middleware.NewRateLimitPolicy(
		"checkout",
		cfg.RateLimit.CheckoutWindow,
		cfg.RateLimit.CheckoutIPLimit,
		cfg.RateLimit.CheckoutUserLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DBPinger, deps.RedisClient))
	})

	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/gateway", webhookcontrollers.GatewayWebhook(deps.Checkout, deps.WebhookGuard, cfg.Gateway.APISecret, logg))
	})

	r.Route("/api/v1/catalog", func(r chi.Router) {
		r.Get("/items", controllers.ListItems(deps.Catalog, logg))
		r.Get("/items/{slug}", controllers.GetItem(deps.Catalog, logg))
		r.Get("/bundles", controllers.ListBundles(deps.Catalog, logg))
		r.Get("/bundles/{bundleId}", controllers.GetBundle(deps.Catalog, logg))
		r.Get("/plans", controllers.ListPlans(deps.Subscriptions, logg))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(deps.RedisClient, logg))

		r.Group(func(r chi.Router) {
			r.Get("/ping", controllers.PrivatePing())

			r.Route("/v1/checkout", func(r chi.Router) {
				r.With(middleware.RateLimit(checkoutPolicy, deps.RedisClient, logg)).
					Post("/", controllers.CheckoutStart(deps.Checkout, logg))
				r.Get("/", controllers.CheckoutHistory(deps.Checkout, logg))
				r.Post("/{transactionId}/confirm", controllers.CheckoutConfirm(deps.Checkout, logg))
			})

			r.Post("/v1/coupons/preview", controllers.CouponPreview(deps.Pricing, deps.Catalog, deps.Subscriptions, logg))

			r.Route("/v1/items/{itemId}", func(r chi.Router) {
				r.Get("/access", controllers.ItemAccess(deps.Entitlements, logg))
				r.Get("/capability", controllers.ItemCapability(deps.Entitlements, logg))
				r.Post("/view", controllers.ItemView(deps.Entitlements, deps.Enrollments, logg))
			})

			r.Get("/v1/enrollments", controllers.ListEnrollments(deps.Enrollments, logg))
			r.Get("/v1/purchases", controllers.ListPurchases(deps.Entitlements, logg))
			r.Get("/v1/subscriptions/me", controllers.MySubscription(deps.Subscriptions, logg))
		})
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(string(enums.UserRoleAdmin), logg))
		r.Use(middleware.Idempotency(deps.RedisClient, logg))

		r.Get("/ping", controllers.AdminPing())

		r.Route("/v1/items", func(r chi.Router) {
			r.Post("/", controllers.AdminCreateItem(deps.Catalog, logg))
			r.Patch("/{itemId}", controllers.AdminUpdateItem(deps.Catalog, logg))
			r.Post("/{itemId}/stages", controllers.AdminCreateStage(deps.Catalog, logg))
		})
		r.Route("/v1/stages", func(r chi.Router) {
			r.Put("/{stageId}", controllers.AdminUpdateStage(deps.Catalog, logg))
			r.Delete("/{stageId}", controllers.AdminDeleteStage(deps.Catalog, logg))
		})
		r.Post("/v1/bundles", controllers.AdminCreateBundle(deps.Catalog, logg))
		r.Route("/v1/coupons", func(r chi.Router) {
			r.Post("/", controllers.AdminCreateCoupon(deps.Coupons, logg))
			r.Get("/", controllers.AdminListCoupons(deps.Coupons, logg))
			r.Post("/{couponId}/deactivate", controllers.AdminDeactivateCoupon(deps.Coupons, logg))
		})
		r.Post("/v1/plans", controllers.AdminCreatePlan(deps.Subscriptions, logg))
	})

	return r
}
