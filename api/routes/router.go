package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hauslist/hauslist-backend/api/controllers"
	billingcontrollers "github.com/hauslist/hauslist-backend/api/controllers/billing"
	webhookcontrollers "github.com/hauslist/hauslist-backend/api/controllers/webhooks"
	"github.com/hauslist/hauslist-backend/api/middleware"
	checkoutsvc "github.com/hauslist/hauslist-backend/internal/checkout"
	"github.com/hauslist/hauslist-backend/internal/notifications"
	reconcilesvc "github.com/hauslist/hauslist-backend/internal/reconcile"
	subscriptionsvc "github.com/hauslist/hauslist-backend/internal/subscriptions"
	stripewebhook "github.com/hauslist/hauslist-backend/internal/webhooks/stripe"
	"github.com/hauslist/hauslist-backend/pkg/config"
	"github.com/hauslist/hauslist-backend/pkg/db"
	"github.com/hauslist/hauslist-backend/pkg/logger"
	"github.com/hauslist/hauslist-backend/pkg/redis"
	"github.com/hauslist/hauslist-backend/pkg/stripe"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	subscriptionsService subscriptionsvc.Service,
	checkoutService checkoutsvc.Service,
	reconcileService reconcilesvc.Service,
	notificationsService notifications.Service,
	stripeClient *stripe.Client,
	stripeWebhookService *stripewebhook.Service,
) http.Handler {
	// Typed-nil guard so nil checks behind the interface params stay honest.
	var idemStore redis.IdempotencyStore
	var limiter middleware.FixedWindowLimiter
	var redisPinger redis.Pinger
	if redisClient != nil {
		idemStore = redisClient
		limiter = redisClient
		redisPinger = redisClient
	}
	var signingClient webhookcontrollers.SigningClient
	if stripeClient != nil {
		signingClient = stripeClient
	}
	var webhookService webhookcontrollers.StripeWebhookService
	if stripeWebhookService != nil {
		webhookService = stripeWebhookService
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisPinger))
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(webhookService, signingClient, logg))
	})

	r.Route("/api/v1/host", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(idemStore, logg))

		r.Route("/billing", func(r chi.Router) {
			r.Use(middleware.RateLimit("billing", limiter, cfg.RateLimit.BillingLimit, cfg.RateLimit.BillingWindow, logg))
			r.Post("/checkout-session", billingcontrollers.CheckoutSessionCreate(subscriptionsService, logg))
			r.Post("/verify", billingcontrollers.CheckoutVerify(checkoutService, logg))
			r.Post("/sync", billingcontrollers.BillingSync(reconcileService, logg))
			r.Post("/cancel", billingcontrollers.BillingCancel(subscriptionsService, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(notificationsService, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(notificationsService, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(notificationsService, logg))
		})
	})

	return r
}
