package main

import (
	"context"
	"net/http"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/centpay/centpay-backend/api/routes"
	"github.com/centpay/centpay-backend/internal/anticipation"
	"github.com/centpay/centpay-backend/internal/bankaccounts"
	checkoutsvc "github.com/centpay/centpay-backend/internal/checkout"
	"github.com/centpay/centpay-backend/internal/ledger"
	"github.com/centpay/centpay-backend/internal/sales"
	"github.com/centpay/centpay-backend/internal/webhooks"
	"github.com/centpay/centpay-backend/internal/withdrawal"
	"github.com/centpay/centpay-backend/pkg/config"
	"github.com/centpay/centpay-backend/pkg/db"
	"github.com/centpay/centpay-backend/pkg/logger"
	"github.com/centpay/centpay-backend/pkg/metrics"
	"github.com/centpay/centpay-backend/pkg/migrate"
	"github.com/centpay/centpay-backend/pkg/outbox"
	"github.com/centpay/centpay-backend/pkg/redis"
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

	platformUserID, err := uuid.Parse(cfg.Platform.AccountID)
	if err != nil {
		logg.Error(context.Background(), "invalid platform account id", err)
		os.Exit(1)
	}

	gormDB := dbClient.DB()
	salesRepo := sales.NewRepository(gormDB)
	outboxSvc := outbox.NewService(outbox.NewRepository(gormDB), logg)

	ledgerSvc, err := ledger.NewService(ledger.NewRepository(gormDB))
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}

	salesSvc, err := sales.NewService(salesRepo, dbClient, outboxSvc, ledgerSvc, platformUserID)
	if err != nil {
		logg.Error(context.Background(), "failed to create sales service", err)
		os.Exit(1)
	}

	checkoutSvc, err := checkoutsvc.NewService(salesRepo, dbClient, outboxSvc, cfg.Fees, cfg.Settlement, cfg.Gateway)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	anticipationSvc, err := anticipation.NewService(anticipation.NewRepository(gormDB), dbClient, outboxSvc, ledgerSvc, cfg.Anticipation)
	if err != nil {
		logg.Error(context.Background(), "failed to create anticipation service", err)
		os.Exit(1)
	}

	bankAccountsRepo := bankaccounts.NewRepository(gormDB)
	bankAccountsSvc, err := bankaccounts.NewService(bankAccountsRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create bank account service", err)
		os.Exit(1)
	}

	withdrawalSvc, err := withdrawal.NewService(withdrawal.NewRepository(gormDB), dbClient, outboxSvc, ledgerSvc, bankAccountsSvc, cfg.Withdrawal)
	if err != nil {
		logg.Error(context.Background(), "failed to create withdrawal service", err)
		os.Exit(1)
	}

	webhookSvc, err := webhooks.NewService(webhooks.NewRepository(gormDB), salesSvc, redisClient, cfg.Gateway, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}

	webhookMetrics := metrics.NewWebhookMetrics(prometheus.DefaultRegisterer)

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
			Redis:          redisClient,
			SalesRepo:      salesRepo,
			Checkout:       checkoutSvc,
			Ledger:         ledgerSvc,
			Anticipations:  anticipationSvc,
			Withdrawals:    withdrawalSvc,
			BankAccounts:   bankAccountsSvc,
			Webhooks:       webhookSvc,
			WebhookMetrics: webhookMetrics,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
