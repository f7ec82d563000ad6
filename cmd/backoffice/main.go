// Package main is the entry point for the racing10 back-office server.
// It exposes the operator API under /admin, protected by an IP allowlist
// and operator bearer tokens.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/qazasd2518995/racing10-lottery-website-sub005/internal/app"
	"github.com/qazasd2518995/racing10-lottery-website-sub005/internal/backoffice"
	"github.com/qazasd2518995/racing10-lottery-website-sub005/internal/config"
	"github.com/qazasd2518995/racing10-lottery-website-sub005/internal/telemetry"
)

func main() {
	// ── Config + logger ───────────────────────────────────────────────────────
	cfg := config.MustLoad()
	logger := app.NewLogger(cfg)
	logger.Info("starting racing10 backoffice server",
		"env", cfg.Server.Env, "port", cfg.Server.BackofficePort)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		logger.Error("telemetry setup failed", "err", err)
		os.Exit(1)
	}

	// ── Storage + services ────────────────────────────────────────────────────
	a, err := app.Open(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "err", err)
		os.Exit(1)
	}

	// ── Router ────────────────────────────────────────────────────────────────
	router := backoffice.SetupRouter(backoffice.Deps{
		Rounds:       a.Rounds,
		Outcomes:     a.Outcomes,
		Settlement:   a.Settlement,
		Rebates:      a.Rebates,
		Policies:     a.Policies,
		Agents:       a.Agents,
		Wagers:       a.Wagers,
		Compensation: a.Compensation,
		Cfg:          cfg,
		Logger:       logger,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.BackofficePort,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// ── Start ─────────────────────────────────────────────────────────────────
	go func() {
		logger.Info("backoffice http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("backoffice server error", "err", err)
			stop()
		}
	}()

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err = srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("backoffice shutdown error", "err", err)
	}
	_ = shutdownTracing(shutdownCtx)
	if err = a.Close(); err != nil {
		logger.Warn("close error", "err", err)
	}
	logger.Info("backoffice server stopped cleanly")
}
