package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/qazasd2518995/racing10-lottery-website-sub005/internal/domain"
	"github.com/qazasd2518995/racing10-lottery-website-sub005/internal/repository"
	"github.com/qazasd2518995/racing10-lottery-website-sub005/internal/settlement"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// SettlementService settles a drawn round exactly once: it claims the round,
// evaluates every open wager and, in one transaction, records the results,
// credits the payouts and marks the round settled.
type SettlementService struct {
	db      *sqlx.DB
	rounds  *repository.RoundRepository
	wagers  *repository.WagerRepository
	wallets *repository.WalletRepository
	log     *slog.Logger
	clock   Clock
}

// NewSettlementService builds a SettlementService.
func NewSettlementService(
	db *sqlx.DB,
	rounds *repository.RoundRepository,
	wagers *repository.WagerRepository,
	wallets *repository.WalletRepository,
	log *slog.Logger,
	clock Clock,
) *SettlementService {
	return &SettlementService{
		db:      db,
		rounds:  rounds,
		wagers:  wagers,
		wallets: wallets,
		log:     loggerOrDefault(log),
		clock:   clock,
	}
}

// SettleRound settles period against outcome. A nil outcome settles against
// the recorded draw. When another caller already claimed or settled the round
// the result has AlreadySettled set and the error is nil.
func (s *SettlementService) SettleRound(ctx context.Context, period domain.Period, outcome domain.Permutation) (summary domain.SettlementSummary, err error) {
	ctx, span := tracer.Start(ctx, "SettlementService.SettleRound",
		trace.WithAttributes(attribute.Int64("round.period", int64(period))))
	defer func() { endSpan(span, err) }()

	summary = domain.SettlementSummary{Period: period}

	// ── Step 1: resolve and record the outcome ──────────────────────────────
	rd, err := s.rounds.Get(ctx, period)
	if err != nil {
		return summary, fmt.Errorf("settlement_service.SettleRound: load round: %w", err)
	}
	if rd.Status == domain.RoundSettling || rd.Status == domain.RoundSettled {
		summary.AlreadySettled = true
		summary.Outcome = rd.Outcome
		return summary, nil
	}
	if outcome == nil {
		if !rd.IsDrawn() {
			return summary, fmt.Errorf("settlement_service.SettleRound: %w", domain.ErrRoundNotDrawn)
		}
		outcome = rd.Outcome
	}
	if err := outcome.Validate(); err != nil {
		return summary, fmt.Errorf("settlement_service.SettleRound: %w", err)
	}
	if err := s.rounds.SetOutcome(ctx, period, outcome, s.clock.now()); err != nil {
		if errors.Is(err, domain.ErrConcurrencyConflict) {
			summary.AlreadySettled = true
			return summary, nil
		}
		return summary, fmt.Errorf("settlement_service.SettleRound: record outcome: %w", err)
	}
	summary.Outcome = outcome

	// ── Step 2: exclusive claim ─────────────────────────────────────────────
	if err := s.rounds.ClaimForSettlement(ctx, period, s.clock.now()); err != nil {
		if errors.Is(err, domain.ErrConcurrencyConflict) {
			s.log.Debug("settlement skipped, round already claimed", "period", period)
			summary.AlreadySettled = true
			return summary, nil
		}
		return summary, fmt.Errorf("settlement_service.SettleRound: claim: %w", err)
	}

	summary, err = s.settleClaimed(ctx, period, outcome)
	if err != nil {
		// Leave the round visibly pending so recovery can retry it.
		if relErr := s.rounds.ReleaseClaim(context.WithoutCancel(ctx), period); relErr != nil {
			s.log.Error("release settlement claim failed", "period", period, "err", relErr)
		}
		return summary, err
	}

	span.SetAttributes(
		attribute.Int("settlement.wagers", summary.SettledCount),
		attribute.Int("settlement.wins", summary.WinCount),
	)
	s.log.Info("round settled",
		"period", period,
		"outcome", outcome.String(),
		"wagers", summary.SettledCount,
		"wins", summary.WinCount,
		"audited", summary.AuditCount,
		"stake", summary.TotalStake.StringFixed(domain.CurrencyPlaces),
		"payout", summary.TotalPayout.StringFixed(domain.CurrencyPlaces),
	)
	return summary, nil
}

// settleClaimed runs after the claim is held.
func (s *SettlementService) settleClaimed(ctx context.Context, period domain.Period, outcome domain.Permutation) (domain.SettlementSummary, error) {
	summary := domain.SettlementSummary{Period: period, Outcome: outcome}

	wagers, err := s.wagers.GetOpenWagers(ctx, period)
	if err != nil {
		return summary, fmt.Errorf("settlement_service.SettleRound: open wagers: %w", err)
	}
	results, _, err := settlement.EvaluateAll(period, wagers, outcome)
	if err != nil {
		return summary, fmt.Errorf("settlement_service.SettleRound: evaluate: %w", err)
	}
	for _, res := range results {
		if res.Audit {
			s.log.Warn("wager settled for audit", "period", period, "wager_id", res.WagerID, "reason", res.Reason)
		}
	}

	// ── Atomic settlement transaction ───────────────────────────────────────
	tx, txErr := s.db.BeginTxx(ctx, nil)
	if txErr != nil {
		return summary, fmt.Errorf("settlement_service.SettleRound: begin tx: %w", txErr)
	}
	defer func() {
		if txErr != nil {
			_ = tx.Rollback()
		}
	}()

	now := s.clock.now()
	for i, res := range results {
		w := &wagers[i]
		applied, err := s.wagers.MarkSettled(ctx, tx, res, now)
		if err != nil {
			txErr = err
			return summary, fmt.Errorf("settlement_service.SettleRound: mark wager %s: %w", w.ID, err)
		}
		if !applied {
			continue
		}
		summary.Tally(w.Stake, res)
		if !res.Won || !res.Payout.IsPositive() {
			continue
		}

		if txErr = s.wallets.Ensure(ctx, tx, w.MemberID, domain.OwnerMember, now); txErr != nil {
			return summary, fmt.Errorf("settlement_service.SettleRound: ensure wallet (wager %s): %w", w.ID, txErr)
		}
		wagerID := w.ID
		desc := fmt.Sprintf("Payout: round %s, %s %d %s", period, w.Category, w.Position, w.Selector)
		if txErr = s.wallets.Credit(ctx, tx, w.MemberID, res.Payout, domain.TxPayout, &wagerID, desc, now); txErr != nil {
			return summary, fmt.Errorf("settlement_service.SettleRound: credit payout (wager %s): %w", w.ID, txErr)
		}
	}

	if txErr = s.rounds.MarkSettled(ctx, tx, period, now); txErr != nil {
		return summary, fmt.Errorf("settlement_service.SettleRound: mark round: %w", txErr)
	}
	if txErr = tx.Commit(); txErr != nil {
		return summary, fmt.Errorf("settlement_service.SettleRound: commit: %w", txErr)
	}
	return summary, nil
}
