package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/qazasd2518995/racing10-lottery-website-sub005/internal/domain"
	"github.com/qazasd2518995/racing10-lottery-website-sub005/internal/outcome"
	"github.com/qazasd2518995/racing10-lottery-website-sub005/internal/repository"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// OutcomeService draws rounds: it resolves the governing control policy,
// aggregates its target's exposure, samples a permutation and records it.
type OutcomeService struct {
	rounds     *repository.RoundRepository
	wagers     *repository.WagerRepository
	policies   *PolicyService
	controller *outcome.Controller
	log        *slog.Logger
	clock      Clock
}

// NewOutcomeService builds an OutcomeService.
func NewOutcomeService(
	rounds *repository.RoundRepository,
	wagers *repository.WagerRepository,
	policies *PolicyService,
	controller *outcome.Controller,
	log *slog.Logger,
	clock Clock,
) *OutcomeService {
	return &OutcomeService{
		rounds:     rounds,
		wagers:     wagers,
		policies:   policies,
		controller: controller,
		log:        loggerOrDefault(log),
		clock:      clock,
	}
}

// GenerateOutcome draws the round and persists the permutation. A round that
// is already drawn returns its recorded outcome unchanged, so concurrent or
// repeated calls agree on a single draw.
func (s *OutcomeService) GenerateOutcome(ctx context.Context, period domain.Period) (result domain.Permutation, err error) {
	ctx, span := tracer.Start(ctx, "OutcomeService.GenerateOutcome",
		trace.WithAttributes(attribute.Int64("round.period", int64(period))))
	defer func() { endSpan(span, err) }()

	rd, err := s.rounds.Get(ctx, period)
	if err != nil {
		return nil, fmt.Errorf("outcome_service.GenerateOutcome: load round: %w", err)
	}
	if rd.IsDrawn() {
		return rd.Outcome, nil
	}

	// ── Step 1: policy and exposure, read now rather than at round start ────
	policy, err := s.policies.Authoritative(ctx, period)
	if err != nil {
		return nil, fmt.Errorf("outcome_service.GenerateOutcome: %w", err)
	}
	var exposure domain.Exposure
	if policy != nil {
		var skipped int
		exposure, skipped, err = s.wagers.GetAggregatedExposure(ctx, period, domain.TargetOf(policy))
		if err != nil {
			return nil, fmt.Errorf("outcome_service.GenerateOutcome: exposure: %w", err)
		}
		if skipped > 0 {
			s.log.Warn("exposure skipped undecodable wagers", "period", period, "skipped", skipped)
		}
		span.SetAttributes(
			attribute.String("policy.id", policy.ID.String()),
			attribute.String("policy.mode", string(policy.Mode)),
		)
	}

	// ── Step 2: sample ──────────────────────────────────────────────────────
	drawn, err := s.controller.Generate(policy, exposure)
	if err != nil {
		return nil, fmt.Errorf("outcome_service.GenerateOutcome: sample: %w", err)
	}

	// ── Step 3: record; a concurrent drawer may have won the race ───────────
	if err := s.rounds.SetOutcome(ctx, period, drawn, s.clock.now()); err != nil {
		if !errors.Is(err, domain.ErrOutcomeMismatch) {
			return nil, fmt.Errorf("outcome_service.GenerateOutcome: record: %w", err)
		}
		rd, err = s.rounds.Get(ctx, period)
		if err != nil {
			return nil, fmt.Errorf("outcome_service.GenerateOutcome: reload round: %w", err)
		}
		return rd.Outcome, nil
	}

	attrs := []any{"period", period, "outcome", drawn.String()}
	if policy != nil {
		attrs = append(attrs, "policy_id", policy.ID, "mode", policy.Mode, "win_rate", policy.WinRate.String())
	}
	s.log.Info("round drawn", attrs...)
	return drawn, nil
}
