package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/licensehub-wallet/internal/bootstrap"
	"github.com/angelmondragon/licensehub-wallet/internal/cron"
	"github.com/angelmondragon/licensehub-wallet/pkg/metrics"
)

func main() {
	cfg, logg, err := bootstrap.LoadConfig("cron-worker")
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stack, err := bootstrap.Open(ctx, cfg, logg, prometheus.DefaultRegisterer)
	if err != nil {
		logg.Error(ctx, "failed to start wallet stack", err)
		os.Exit(1)
	}
	defer func() {
		if err := stack.Close(); err != nil {
			logg.Error(context.Background(), "error closing wallet stack", err)
		}
	}()
	ctx = stack.Context(ctx)

	service, err := newScheduler(stack)
	if err != nil {
		logg.Error(ctx, "failed to build reconcile scheduler", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron.started")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(context.WithoutCancel(ctx), "cron.stopped")
}

// newScheduler wires the periodic ledger reconcile behind a Redis lease so
// only one worker per environment sweeps wallets at a time.
func newScheduler(stack *bootstrap.Stack) (*cron.Service, error) {
	cfg := stack.Config

	reconcile, err := cron.NewWalletReconcileJob(cron.WalletReconcileJobParams{
		Logger:    stack.Logger,
		Keys:      stack.Ledger,
		Wallets:   stack.Wallets,
		BatchSize: cfg.Wallet.ReconcileBatchSize,
		Timeout:   cfg.Wallet.ReconcileInterval,
	})
	if err != nil {
		return nil, err
	}
	registry, err := cron.NewRegistry(reconcile)
	if err != nil {
		return nil, err
	}

	lease, err := cron.NewRedisLock(stack.Redis, stack.Redis.LockKey("cron-worker:"+lockScope(cfg.App.Env)), 0)
	if err != nil {
		return nil, err
	}

	return cron.NewService(cron.ServiceParams{
		Logger:   stack.Logger,
		Registry: registry,
		Lock:     lease,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Wallet.ReconcileInterval,
	})
}

func lockScope(env string) string {
	if env == "" {
		return "local"
	}
	return env
}
