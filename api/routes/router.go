package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/centpay/centpay-backend/api/controllers"
	webhookcontrollers "github.com/centpay/centpay-backend/api/controllers/webhooks"
	"github.com/centpay/centpay-backend/api/middleware"
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
	"github.com/centpay/centpay-backend/pkg/redis"
)

// Deps carries everything the HTTP surface needs. Redis-backed middleware
// degrades gracefully when the client is nil.
type Deps struct {
	Config         *config.Config
	Logger         *logger.Logger
	DBPinger       db.Pinger
	Redis          *redis.Client
	SalesRepo      sales.Repository
	Checkout       checkoutsvc.Service
	Ledger         ledger.Service
	Anticipations  anticipation.Service
	Withdrawals    withdrawal.Service
	BankAccounts   bankaccounts.Service
	Webhooks       *webhooks.Service
	WebhookMetrics *metrics.WebhookMetrics
}

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

	apiPolicy := middleware.RateLimitPolicy{Scope: "api", Limit: 300, Window: time.Minute}
	webhookPolicy := middleware.RateLimitPolicy{Scope: "webhook", Limit: 1200, Window: time.Minute}

	var redisP redis.Pinger
	if deps.Redis != nil {
		redisP = deps.Redis
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DBPinger, redisP))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Use(rateLimitIf(deps.Redis, webhookPolicy, logg))
		r.Post("/gateway", webhookcontrollers.GatewayWebhook(deps.Webhooks, cfg.Gateway.Name, deps.WebhookMetrics, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(rateLimitIf(deps.Redis, apiPolicy, logg))
		r.Use(idempotencyIf(deps.Redis, logg))

		r.Get("/ping", controllers.PrivatePing())

		r.Post("/checkout", controllers.Checkout(deps.Checkout, logg))
		r.Get("/sales/{saleId}", controllers.SaleDetail(deps.SalesRepo, logg))

		r.Get("/balance", controllers.Balance(deps.Ledger, logg))
		r.Get("/balance/movements", controllers.Movements(deps.Ledger, logg))

		r.Post("/anticipations", controllers.AnticipationRequest(deps.Anticipations, logg))
		r.Get("/anticipations", controllers.AnticipationList(deps.Anticipations, logg))
		r.Get("/anticipations/{anticipationId}", controllers.AnticipationDetail(deps.Anticipations, logg))

		r.Post("/withdrawals", controllers.WithdrawalRequest(deps.Withdrawals, logg))
		r.Get("/withdrawals", controllers.WithdrawalList(deps.Withdrawals, logg))
		r.Get("/withdrawals/{withdrawalId}", controllers.WithdrawalDetail(deps.Withdrawals, logg))

		r.Post("/bank-accounts", controllers.BankAccountRegister(deps.BankAccounts, logg))
		r.Get("/bank-accounts", controllers.BankAccountList(deps.BankAccounts, logg))
		r.Get("/bank-accounts/{bankAccountId}", controllers.BankAccountDetail(deps.BankAccounts, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole("admin", logg))
		r.Use(rateLimitIf(deps.Redis, apiPolicy, logg))
		r.Use(idempotencyIf(deps.Redis, logg))

		r.Post("/anticipations/{anticipationId}/process", controllers.AnticipationProcess(deps.Anticipations, logg))
		r.Post("/withdrawals/{withdrawalId}/confirm", controllers.WithdrawalConfirm(deps.Withdrawals, logg))
		r.Post("/withdrawals/{withdrawalId}/fail", controllers.WithdrawalFail(deps.Withdrawals, logg))
		r.Post("/bank-accounts/{bankAccountId}/verify", controllers.BankAccountVerify(deps.BankAccounts, logg))
		r.Post("/bank-accounts/{bankAccountId}/reject", controllers.BankAccountReject(deps.BankAccounts, logg))
	})

	return r
}

func rateLimitIf(client *redis.Client, policy middleware.RateLimitPolicy, logg *logger.Logger) func(http.Handler) http.Handler {
	if client == nil {
		return passthrough
	}
	return middleware.RateLimit(policy, client, logg)
}

func idempotencyIf(client *redis.Client, logg *logger.Logger) func(http.Handler) http.Handler {
	if client == nil {
		return passthrough
	}
	return middleware.Idempotency(client, logg)
}

func passthrough(next http.Handler) http.Handler {
	return next
}
