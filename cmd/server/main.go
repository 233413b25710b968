package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"crboard/internal/app"
	"crboard/internal/changerequest/handler"
	"crboard/internal/platform/config"
	"crboard/internal/platform/httpserver"
	"crboard/internal/platform/logger"
	"crboard/internal/platform/metrics"
	"crboard/internal/platform/middleware"
	"crboard/internal/platform/writetoken"
)

// main wires configuration, the registry service and the HTTP router, and
// keeps the server lifecycle small. Business logic lives in internal/changerequest.
func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	application, err := app.New(ctx, cfg, log, reg)
	if err != nil {
		return fmt.Errorf("build service: %w", err)
	}
	defer func() {
		if err := application.Close(); err != nil {
			log.Error("close resources", "error", err)
		}
	}()

	var tokens middleware.TokenVerifier
	if cfg.WriteSecret != "" {
		signer, err := writetoken.New(cfg.WriteSecret)
		if err != nil {
			return err
		}
		tokens = signer
	} else if cfg.IsProduction() {
		log.Warn("no write secret configured; mutating routes are open")
	}

	router := httpserver.NewRouter(httpserver.RouterConfig{
		Logger:         log,
		Metrics:        metrics.NewWithRegisterer(reg),
		Gatherer:       reg,
		RequestTimeout: cfg.RequestTimeout,
		Tokens:         tokens,
		Health:         application.Health,
	}, handler.New(application.Service, log, cfg.ConflictRetries).Register)

	srv := httpserver.New(cfg, router)

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting crboard", "addr", cfg.Addr, "store", cfg.Store.Backend, "env", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
