package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"staybook/internal/app/policies"
	"staybook/internal/infra/config"
	ginserver "staybook/internal/infra/http/gin"
	"staybook/internal/infra/obs"
	"staybook/internal/infra/security"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		obs.NewLogger(os.Getenv("APP_ENV"), "info").Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := obs.NewLogger(cfg.Env, cfg.LogLevel)

	rt, err := openBackends(ctx, cfg, logger)
	if err != nil {
		logger.Error("backends unavailable", "error", err)
		os.Exit(1)
	}

	metrics := obs.NewMetrics()
	verifier := security.NewTokenVerifier(cfg.JWTSecret, cfg.JWTIssuer)
	app := buildApplication(rt.backends, verifier, metrics, policies.Clock(time.Now), logger)

	if path := os.Getenv("STAYS_FIXTURES"); path != "" {
		if err := loadStayFixtures(ctx, rt.backends, path, logger); err != nil {
			logger.Warn("stay fixtures load failed", "error", err, "path", path)
		}
	}

	health := obs.HealthHandlers{Checks: rt.checks, Timeout: 2 * time.Second}
	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger, Metrics: metrics}, health, app.handlers)

	workerDone := make(chan struct{})
	if rt.worker != nil {
		go func() {
			defer close(workerDone)
			if err := rt.worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("outbox worker stopped", "error", err)
			}
		}()
	} else {
		close(workerDone)
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}()

	logger.Info("HTTP server starting", "addr", cfg.HTTPAddr, "env", cfg.Env)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server failed", "error", err)
		stop()
	}
	<-workerDone

	closeCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	rt.close(closeCtx, logger)
	logger.Info("HTTP server stopped")
}
