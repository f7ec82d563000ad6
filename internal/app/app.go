// Package app wires configuration, storage and services into the object
// graph shared by the server, back-office and CLI binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/qazasd2518995/racing10-lottery-website-sub005/internal/cache"
	"github.com/qazasd2518995/racing10-lottery-website-sub005/internal/config"
	"github.com/qazasd2518995/racing10-lottery-website-sub005/internal/outcome"
	"github.com/qazasd2518995/racing10-lottery-website-sub005/internal/repository"
	"github.com/qazasd2518995/racing10-lottery-website-sub005/internal/service"
)

// App holds the database handle and every service built on it.
type App struct {
	Cfg    *config.Config
	DB     *sqlx.DB
	Logger *slog.Logger

	Rounds       *service.RoundService
	Outcomes     *service.OutcomeService
	Settlement   *service.SettlementService
	Rebates      *service.RebateService
	Policies     *service.PolicyService
	Agents       *service.AgentService
	Wagers       *service.WagerService
	Compensation *service.CompensationService

	closers []func() error
}

// NewLogger returns a JSON logger in production and a text logger
// elsewhere, and installs it as the slog default.
func NewLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler
	if cfg.IsProd() {
		h = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		h = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	logger := slog.New(h)
	slog.SetDefault(logger)
	return logger
}

// Open connects to the database and the round pointer store and builds
// the services. Call Close when done.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := repository.Open(ctx, cfg.DB.Driver, cfg.DB.DSN, repository.PoolConfig{
		MaxOpenConns:    cfg.DB.MaxOpenConns,
		MaxIdleConns:    cfg.DB.MaxIdleConns,
		ConnMaxLifetime: cfg.DB.ConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("app.Open: %w", err)
	}
	a := &App{Cfg: cfg, DB: db, Logger: logger, closers: []func() error{db.Close}}

	// ── Current-round pointer ───────────────────────────────────────────────
	var store cache.Store = cache.NewMemoryStore()
	if cfg.Redis.URL != "" {
		rs, err := cache.NewRedisStore(ctx, cfg.Redis.URL)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("app.Open: %w", err)
		}
		store = rs
		a.closers = append(a.closers, rs.Close)
		logger.Info("round pointer backed by redis")
	}
	pointer := cache.NewRoundPointer(store, cfg.Redis.CurrentKey)

	// ── Repositories ────────────────────────────────────────────────────────
	roundRepo := repository.NewRoundRepository(db)
	wagerRepo := repository.NewWagerRepository(db)
	agentRepo := repository.NewAgentRepository(db)
	walletRepo := repository.NewWalletRepository(db)
	commissionRepo := repository.NewCommissionRepository(db)
	policyRepo := repository.NewPolicyRepository(db)

	// ── Services ────────────────────────────────────────────────────────────
	controller, err := outcome.NewController()
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("app.Open: %w", err)
	}
	caps := cfg.Rebate.Caps()
	a.Policies = service.NewPolicyService(policyRepo, logger, nil)
	a.Rounds = service.NewRoundService(roundRepo, wagerRepo, pointer, logger, nil)
	a.Outcomes = service.NewOutcomeService(roundRepo, wagerRepo, a.Policies, controller, logger, nil)
	a.Settlement = service.NewSettlementService(db, roundRepo, wagerRepo, walletRepo, logger, nil)
	a.Rebates = service.NewRebateService(db, wagerRepo, agentRepo, commissionRepo, walletRepo, caps, cfg.Rebate.Workers, logger, nil)
	a.Agents = service.NewAgentService(db, agentRepo, walletRepo, caps, logger, nil)
	a.Wagers = service.NewWagerService(wagerRepo, agentRepo, logger, nil)
	a.Compensation = service.NewCompensationService(db, wagerRepo, commissionRepo, walletRepo, logger, nil)

	return a, nil
}

// Close releases the pointer store and the database, newest first.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
