// Package main is the entry point for the racing10 draw server. It runs the
// round scheduler (clock, draw, settlement, rebates, recovery) and serves
// the WebSocket feed of draw results.
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
	"github.com/qazasd2518995/racing10-lottery-website-sub005/internal/config"
	"github.com/qazasd2518995/racing10-lottery-website-sub005/internal/repository"
	"github.com/qazasd2518995/racing10-lottery-website-sub005/internal/scheduler"
	"github.com/qazasd2518995/racing10-lottery-website-sub005/internal/telemetry"
	"github.com/qazasd2518995/racing10-lottery-website-sub005/internal/ws"
)

func main() {
	// ── 1. Config + logger ────────────────────────────────────────────────────
	cfg := config.MustLoad()
	logger := app.NewLogger(cfg)
	logger.Info("starting racing10 draw server", "env", cfg.Server.Env, "port", cfg.Server.Port)

	// ── 2. Root context + signal handling ─────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── 3. Tracing ────────────────────────────────────────────────────────────
	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		logger.Error("telemetry setup failed", "err", err)
		os.Exit(1)
	}

	// ── 4. Storage + services ─────────────────────────────────────────────────
	a, err := app.Open(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "err", err)
		os.Exit(1)
	}
	logger.Info("database connected", "driver", cfg.DB.Driver)

	if err = repository.Migrate(ctx, a.DB); err != nil {
		logger.Error("migrations failed", "err", err)
		os.Exit(1)
	}
	logger.Info("migrations applied")

	// ── 5. WebSocket hub ──────────────────────────────────────────────────────
	hub := ws.NewHub(cfg.Server.WSAllowedOrigins, logger)
	go hub.Run()
	logger.Info("websocket hub started")

	// ── 6. Scheduler ──────────────────────────────────────────────────────────
	sched := scheduler.NewScheduler(scheduler.Services{
		Rounds:     a.Rounds,
		Outcomes:   a.Outcomes,
		Settlement: a.Settlement,
		Rebates:    a.Rebates,
	}, hub, cfg.Draw, cfg.Rebate.RetryBatch, logger)
	if err = sched.Start(ctx); err != nil {
		logger.Error("scheduler start failed", "err", err)
		os.Exit(1)
	}
	// Pick up whatever a previous process left behind before the first tick.
	go sched.Recover(ctx)

	// ── 7. HTTP server ────────────────────────────────────────────────────────
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.ServeWs)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	srv := &http.Server{
		Addr:        ":" + cfg.Server.Port,
		Handler:     mux,
		ReadTimeout: cfg.Server.ReadTimeout,
	}

	go func() {
		logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "err", err)
			stop() // trigger graceful shutdown
		}
	}()

	// ── 8. Graceful shutdown ──────────────────────────────────────────────────
	<-ctx.Done()
	logger.Info("shutdown signal received, draining…")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err = srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", "err", err)
	}
	sched.Wait()
	hub.Stop()
	if err = shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("tracing shutdown error", "err", err)
	}
	if err = a.Close(); err != nil {
		logger.Warn("close error", "err", err)
	}
	logger.Info("server stopped cleanly")
}
