// Package bootstrap assembles the wallet engine's runtime dependencies for
// the api and cron-worker binaries.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/angelmondragon/licensehub-wallet/internal/wallet"
	"github.com/angelmondragon/licensehub-wallet/pkg/config"
	"github.com/angelmondragon/licensehub-wallet/pkg/db"
	"github.com/angelmondragon/licensehub-wallet/pkg/instance"
	"github.com/angelmondragon/licensehub-wallet/pkg/logger"
	"github.com/angelmondragon/licensehub-wallet/pkg/metrics"
	"github.com/angelmondragon/licensehub-wallet/pkg/migrate"
	"github.com/angelmondragon/licensehub-wallet/pkg/redis"
)

// Stack is everything a process needs to serve wallet operations.
type Stack struct {
	Config  *config.Config
	Logger  *logger.Logger
	DB      *db.Client
	Redis   *redis.Client
	Ledger  wallet.Repository
	Wallets wallet.Service
}

// LoadConfig reads .env when present, then the environment, and returns a
// logger configured from it. The bootstrap logger is returned on failure so
// the caller can still report the error.
func LoadConfig(service string) (*config.Config, *logger.Logger, error) {
	logg := logger.New(logger.Options{ServiceName: service})
	if err := godotenv.Load(); err != nil {
		logg.Debug(context.Background(), "no .env file, using process environment")
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, logg, err
	}
	cfg.Service.Kind = service

	return cfg, logger.New(logger.Options{
		ServiceName: service,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	}), nil
}

// Open connects Postgres and Redis, applies dev migrations and builds the
// wallet service. Whatever was opened before a failure is closed again.
func Open(ctx context.Context, cfg *config.Config, logg *logger.Logger, reg prometheus.Registerer) (_ *Stack, err error) {
	stack := &Stack{Config: cfg, Logger: logg}
	defer func() {
		if err != nil {
			err = multierr.Append(err, stack.Close())
		}
	}()

	stack.DB, err = db.New(ctx, cfg.DB, cfg.FeatureFlags, logg, db.WithLockTimeout(cfg.Wallet.LockTimeout))
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	if err = migrate.MaybeRunDev(ctx, cfg, logg, stack.DB); err != nil {
		return nil, fmt.Errorf("dev migrations: %w", err)
	}

	stack.Redis, err = redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}

	cache, err := wallet.NewRedisBalanceCache(stack.Redis, cfg.Wallet.CacheTTL)
	if err != nil {
		return nil, fmt.Errorf("balance cache: %w", err)
	}

	stack.Ledger = wallet.NewRepository(stack.DB.DB())
	stack.Wallets, err = wallet.NewService(wallet.ServiceParams{
		Repo:    stack.Ledger,
		Tx:      stack.DB,
		Cache:   cache,
		Guard:   wallet.NewKeyedGuard(cfg.Wallet.LockTimeout),
		Logger:  logg,
		Metrics: metrics.NewWalletMetrics(reg),
	})
	if err != nil {
		return nil, fmt.Errorf("wallet service: %w", err)
	}
	return stack, nil
}

// Context tags ctx with the process identity used on every log line.
func (s *Stack) Context(ctx context.Context) context.Context {
	return s.Logger.WithFields(ctx, map[string]any{
		"env":          s.Config.App.Env,
		"service_kind": s.Config.Service.Kind,
		"instance":     instance.GetID(),
	})
}

// Close releases Redis and the database pool.
func (s *Stack) Close() error {
	var err error
	if s.Redis != nil {
		err = multierr.Append(err, s.Redis.Close())
	}
	if s.DB != nil {
		err = multierr.Append(err, s.DB.Close())
	}
	return err
}
