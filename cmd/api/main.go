package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/licensehub-wallet/api/routes"
	"github.com/angelmondragon/licensehub-wallet/internal/bootstrap"
	"github.com/angelmondragon/licensehub-wallet/pkg/env"
)

const (
	shutdownTimeout   = 15 * time.Second
	readHeaderTimeout = 10 * time.Second
)

func main() {
	cfg, logg, err := bootstrap.LoadConfig("api")
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

	// platform-assigned PORT wins over config
	addr := ":" + env.Get("PORT", cfg.App.Port)
	ctx = logg.WithField(stack.Context(ctx), "addr", addr)

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, stack.DB, stack.Redis, prometheus.DefaultGatherer, stack.Wallets),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- server.ListenAndServe() }()
	logg.Info(ctx, "api.listening")

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(drainCtx); err != nil {
			logg.Error(drainCtx, "api drain incomplete", err)
			return
		}
		logg.Info(drainCtx, "api.stopped")
	}
}
