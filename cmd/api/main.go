package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/hauslist/hauslist-backend/api/routes"
	"github.com/hauslist/hauslist-backend/internal/billing"
	"github.com/hauslist/hauslist-backend/internal/checkout"
	"github.com/hauslist/hauslist-backend/internal/hosts"
	"github.com/hauslist/hauslist-backend/internal/notifications"
	"github.com/hauslist/hauslist-backend/internal/properties"
	"github.com/hauslist/hauslist-backend/internal/reconcile"
	"github.com/hauslist/hauslist-backend/internal/subscriptions"
	stripewebhook "github.com/hauslist/hauslist-backend/internal/webhooks/stripe"
	"github.com/hauslist/hauslist-backend/pkg/config"
	"github.com/hauslist/hauslist-backend/pkg/db"
	"github.com/hauslist/hauslist-backend/pkg/logger"
	"github.com/hauslist/hauslist-backend/pkg/migrate"
	"github.com/hauslist/hauslist-backend/pkg/redis"
	pkgstripe "github.com/hauslist/hauslist-backend/pkg/stripe"
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

	stripeClient, err := pkgstripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap stripe client", err)
		os.Exit(1)
	}
	provider := subscriptions.NewProviderClient(stripeClient, cfg.Stripe.RequestTimeout)

	billingRepo := billing.NewRepository(dbClient.DB())
	hostRepo := hosts.NewRepository(dbClient.DB())
	propertyRepo := properties.NewRepository(dbClient.DB())
	ledger := billing.NewLedger(dbClient.DB())
	notificationsRepo := notifications.NewRepository(dbClient.DB())

	notificationsService, err := notifications.NewService(notificationsRepo, propertyRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create notifications service", err)
		os.Exit(1)
	}

	subscriptionsService, err := subscriptions.NewService(subscriptions.ServiceParams{
		BillingRepo:  billingRepo,
		HostRepo:     hostRepo,
		PropertyRepo: propertyRepo,
		Provider:     provider,
		Stripe:       cfg.Stripe,
		Logger:       logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create subscriptions service", err)
		os.Exit(1)
	}

	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		BillingRepo: billingRepo,
		HostRepo:    hostRepo,
		Provider:    provider,
		TxRunner:    dbClient,
		Logger:      logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	reconcileService, err := reconcile.NewService(reconcile.ServiceParams{
		BillingRepo: billingRepo,
		HostRepo:    hostRepo,
		Provider:    provider,
		Logger:      logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reconcile service", err)
		os.Exit(1)
	}

	webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		BillingRepo:       billingRepo,
		Ledger:            ledger,
		Provider:          provider,
		TxRunner:          dbClient,
		Notifier:          notificationsService,
		Logger:            logg,
		TrialNotifyWindow: cfg.Billing.TrialNotifyWindow,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create stripe webhook service", err)
		os.Exit(1)
	}

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
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			subscriptionsService,
			checkoutService,
			reconcileService,
			notificationsService,
			stripeClient,
			webhookService,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
