package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/qazasd2518995/racing10-lottery-website-sub005/internal/domain"
	"github.com/qazasd2518995/racing10-lottery-website-sub005/internal/rebate"
	"github.com/qazasd2518995/racing10-lottery-website-sub005/internal/repository"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// RebateService distributes each settled wager's commission pool up the
// member's agent chain and records it in the commission ledger.
type RebateService struct {
	db          *sqlx.DB
	wagers      *repository.WagerRepository
	agents      *repository.AgentRepository
	commissions *repository.CommissionRepository
	wallets     *repository.WalletRepository
	caps        domain.MarketCaps
	workers     int
	log         *slog.Logger
	clock       Clock
}

// NewRebateService builds a RebateService. workers bounds AllocateBatch
// parallelism.
func NewRebateService(
	db *sqlx.DB,
	wagers *repository.WagerRepository,
	agents *repository.AgentRepository,
	commissions *repository.CommissionRepository,
	wallets *repository.WalletRepository,
	caps domain.MarketCaps,
	workers int,
	log *slog.Logger,
	clock Clock,
) *RebateService {
	if workers < 1 {
		workers = 1
	}
	return &RebateService{
		db:          db,
		wagers:      wagers,
		agents:      agents,
		commissions: commissions,
		wallets:     wallets,
		caps:        caps,
		workers:     workers,
		log:         loggerOrDefault(log),
		clock:       clock,
	}
}

// AllocateRebates allocates commission for one settled wager. Entries,
// wallet credits and the wager's rebate status are written in a single
// transaction; a retry after success writes nothing. On failure the wager is
// marked failed with the error text so RetryFailed can pick it up.
func (s *RebateService) AllocateRebates(ctx context.Context, wagerID uuid.UUID) (alloc rebate.Allocation, err error) {
	ctx, span := tracer.Start(ctx, "RebateService.AllocateRebates",
		trace.WithAttributes(attribute.String("wager.id", wagerID.String())))
	defer func() { endSpan(span, err) }()

	w, err := s.wagers.GetByID(ctx, wagerID)
	if err != nil {
		return alloc, fmt.Errorf("rebate_service.AllocateRebates: %w", err)
	}
	if !w.IsSettled() {
		return alloc, fmt.Errorf("rebate_service.AllocateRebates: wager %s: %w", wagerID, domain.ErrWagerNotSettled)
	}
	if w.RebateStatus == domain.RebateDone {
		return alloc, nil
	}

	alloc, err = s.allocate(ctx, w)
	if err != nil {
		if mErr := s.wagers.SetRebateStatus(context.WithoutCancel(ctx), s.db, w.ID, domain.RebateFailed, err.Error()); mErr != nil {
			s.log.Error("record rebate failure", "wager_id", w.ID, "err", mErr)
		}
		return alloc, err
	}
	return alloc, nil
}

func (s *RebateService) allocate(ctx context.Context, w *domain.Wager) (rebate.Allocation, error) {
	var alloc rebate.Allocation

	member, err := s.agents.GetMember(ctx, w.MemberID)
	if err != nil {
		return alloc, fmt.Errorf("rebate_service.AllocateRebates: member: %w", err)
	}

	// ── Step 1: ancestry, truncated at a dangling parent ────────────────────
	note := ""
	chain, err := s.agents.Ancestry(ctx, member.AgentID)
	var broken *domain.ChainIntegrityError
	switch {
	case err == nil:
	case errors.As(err, &broken):
		s.log.Warn("agent chain truncated", "wager_id", w.ID, "agent_id", broken.AgentID, "missing_parent", broken.ParentID)
		note = broken.Error()
	case errors.Is(err, domain.ErrAgentNotFound) && len(chain) == 0:
		s.log.Warn("member's agent is missing, no commission paid", "wager_id", w.ID, "agent_id", member.AgentID)
		note = fmt.Sprintf("agent %s not found", member.AgentID)
	default:
		return alloc, fmt.Errorf("rebate_service.AllocateRebates: ancestry: %w", err)
	}

	// ── Step 2: the pure walk ───────────────────────────────────────────────
	now := s.clock.now()
	if len(chain) > 0 {
		limit, err := s.caps.Cap(chain[len(chain)-1].MarketClass)
		if err != nil {
			return alloc, fmt.Errorf("rebate_service.AllocateRebates: %w", err)
		}
		alloc, err = rebate.Allocate(rebate.Input{
			Period:  w.Period,
			WagerID: w.ID,
			Stake:   w.Stake,
			Cap:     limit,
			Chain:   chain,
			Now:     now,
		})
		if err != nil {
			return alloc, fmt.Errorf("rebate_service.AllocateRebates: %w", err)
		}
	}

	// ── Step 3: persist atomically ──────────────────────────────────────────
	if err := s.persist(ctx, w, alloc, note, now); err != nil {
		return alloc, err
	}

	s.log.Debug("rebates allocated",
		"wager_id", w.ID, "period", w.Period, "entries", len(alloc.Entries),
		"pool", alloc.Pool.String(), "retained", alloc.Retained.String())
	return alloc, nil
}

func (s *RebateService) persist(ctx context.Context, w *domain.Wager, alloc rebate.Allocation, note string, now time.Time) error {
	tx, txErr := s.db.BeginTxx(ctx, nil)
	if txErr != nil {
		return fmt.Errorf("rebate_service.AllocateRebates: begin tx: %w", txErr)
	}
	defer func() {
		if txErr != nil {
			_ = tx.Rollback()
		}
	}()

	for i := range alloc.Entries {
		e := &alloc.Entries[i]
		inserted, err := s.commissions.Insert(ctx, tx, e)
		if err != nil {
			txErr = err
			return fmt.Errorf("rebate_service.AllocateRebates: insert entry: %w", err)
		}
		if !inserted {
			continue
		}
		if txErr = s.wallets.Ensure(ctx, tx, e.AgentID, domain.OwnerAgent, now); txErr != nil {
			return fmt.Errorf("rebate_service.AllocateRebates: ensure wallet: %w", txErr)
		}
		entryID := e.ID
		desc := fmt.Sprintf("Rebate: round %s, wager %s", w.Period, w.ID)
		if txErr = s.wallets.Credit(ctx, tx, e.AgentID, e.Amount, domain.TxCommission, &entryID, desc, now); txErr != nil {
			return fmt.Errorf("rebate_service.AllocateRebates: credit agent %s: %w", e.AgentID, txErr)
		}
	}

	if txErr = s.wagers.SetRebateStatus(ctx, tx, w.ID, domain.RebateDone, note); txErr != nil {
		return fmt.Errorf("rebate_service.AllocateRebates: %w", txErr)
	}
	if txErr = tx.Commit(); txErr != nil {
		return fmt.Errorf("rebate_service.AllocateRebates: commit: %w", txErr)
	}
	return nil
}

// AllocateBatch allocates the given wagers in parallel, at most workers at a
// time. A failing wager does not stop the others; the number of failures is
// returned and the error is only set when ctx ends first.
func (s *RebateService) AllocateBatch(ctx context.Context, ids []uuid.UUID) (int, error) {
	var failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, id := range ids {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if _, err := s.AllocateRebates(gctx, id); err != nil {
				failed.Add(1)
				s.log.Error("rebate allocation failed", "wager_id", id, "err", err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return int(failed.Load()), ctx.Err()
}

// AllocateRound allocates every settled wager of period still pending.
func (s *RebateService) AllocateRound(ctx context.Context, period domain.Period) (int, error) {
	wagers, err := s.wagers.ListByPeriod(ctx, period)
	if err != nil {
		return 0, fmt.Errorf("rebate_service.AllocateRound: %w", err)
	}
	ids := make([]uuid.UUID, 0, len(wagers))
	for i := range wagers {
		if wagers[i].IsSettled() && wagers[i].RebateStatus == domain.RebatePending {
			ids = append(ids, wagers[i].ID)
		}
	}
	return s.AllocateBatch(ctx, ids)
}

// RetryFailed re-runs allocation for up to limit failed wagers and for
// settled wagers whose allocation never ran. It returns how many were
// attempted and how many failed again.
func (s *RebateService) RetryFailed(ctx context.Context, limit int) (attempted, failed int, err error) {
	var ids []uuid.UUID
	for _, status := range []domain.RebateStatus{domain.RebateFailed, domain.RebatePending} {
		due, err := s.wagers.ListRebateDue(ctx, status, limit)
		if err != nil {
			return 0, 0, fmt.Errorf("rebate_service.RetryFailed: %w", err)
		}
		for i := range due {
			ids = append(ids, due[i].ID)
		}
	}
	if len(ids) == 0 {
		return 0, 0, nil
	}
	failed, err = s.AllocateBatch(ctx, ids)
	return len(ids), failed, err
}

// Ledger returns an agent's commission entries, newest first.
func (s *RebateService) Ledger(ctx context.Context, agentID uuid.UUID, limit, offset int) ([]domain.CommissionEntry, error) {
	entries, err := s.commissions.ListByAgent(ctx, agentID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("rebate_service.Ledger: %w", err)
	}
	return entries, nil
}
