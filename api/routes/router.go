package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/licensehub-wallet/api/controllers"
	walletcontrollers "github.com/angelmondragon/licensehub-wallet/api/controllers/wallet"
	"github.com/angelmondragon/licensehub-wallet/api/middleware"
	"github.com/angelmondragon/licensehub-wallet/internal/wallet"
	"github.com/angelmondragon/licensehub-wallet/pkg/config"
	"github.com/angelmondragon/licensehub-wallet/pkg/db"
	"github.com/angelmondragon/licensehub-wallet/pkg/enums"
	"github.com/angelmondragon/licensehub-wallet/pkg/logger"
	pkgredis "github.com/angelmondragon/licensehub-wallet/pkg/redis"
)

// RedisStore is the slice of the redis client the HTTP layer depends on.
type RedisStore interface {
	pkgredis.IdempotencyStore
	pkgredis.Pinger
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisStore RedisStore,
	gatherer prometheus.Gatherer,
	walletService wallet.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.IsDev(), cfg.App.CORSOrigins...),
	)

	paymentPolicy := middleware.NewRateLimitPolicy(
		"wallet-payments",
		cfg.Wallet.PaymentRateWindow,
		cfg.Wallet.PaymentRateLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"db":    dbP,
			"redis": redisStore,
		}))
	})

	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/wallet", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(redisStore, logg))

		r.Get("/", walletcontrollers.Balance(walletService, logg))
		r.Get("/transactions", walletcontrollers.History(walletService, logg))
		r.Get("/transactions/{transactionId}", walletcontrollers.Transaction(walletService, logg))
		r.With(middleware.RateLimit(paymentPolicy, redisStore, logg)).
			Post("/payments", walletcontrollers.Pay(walletService, logg))
	})

	r.Route("/api/admin/v1/wallets", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(logg, enums.ActorRoleAdmin))
		r.Use(middleware.Idempotency(redisStore, logg))

		r.Get("/", walletcontrollers.AdminListWallets(walletService, logg))
		r.Route("/{userId}", func(r chi.Router) {
			r.Get("/", walletcontrollers.AdminWalletDetail(walletService, logg))
			r.Get("/transactions", walletcontrollers.AdminWalletTransactions(walletService, logg))
			r.Post("/deposits", walletcontrollers.AdminDeposit(walletService, logg))
			r.Post("/credit-limit", walletcontrollers.AdminSetCreditLimit(walletService, logg))
			r.Post("/credit-payments", walletcontrollers.AdminCreditPayment(walletService, logg))
			r.Post("/refunds", walletcontrollers.AdminRefund(walletService, logg))
			r.Post("/adjustments", walletcontrollers.AdminAdjust(walletService, logg))
			r.Post("/reconcile", walletcontrollers.AdminReconcile(walletService, logg))
		})
	})

	return r
}
