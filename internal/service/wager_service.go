package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/qazasd2518995/racing10-lottery-website-sub005/internal/domain"
	"github.com/qazasd2518995/racing10-lottery-website-sub005/internal/repository"
	"github.com/shopspring/decimal"
)

// WagerService records wagers into the bet ledger. Labels are normalised
// here so every stored wager is canonical.
type WagerService struct {
	wagers *repository.WagerRepository
	agents *repository.AgentRepository
	log    *slog.Logger
	clock  Clock
}

// NewWagerService builds a WagerService.
func NewWagerService(
	wagers *repository.WagerRepository,
	agents *repository.AgentRepository,
	log *slog.Logger,
	clock Clock,
) *WagerService {
	return &WagerService{wagers: wagers, agents: agents, log: loggerOrDefault(log), clock: clock}
}

// RecordWagerInput is a wager as received, before normalisation.
type RecordWagerInput struct {
	Period     domain.Period
	MemberID   uuid.UUID
	Raw        domain.RawWager
	Stake      string
	Multiplier string
}

// Record normalises and stores a wager against an open round.
func (s *WagerService) Record(ctx context.Context, in RecordWagerInput) (*domain.Wager, error) {
	stake, err := parseDecimal("stake", in.Stake)
	if err != nil {
		return nil, err
	}
	if !stake.IsPositive() || !stake.Equal(domain.RoundMoney(stake)) {
		return nil, &domain.ValidationError{Field: "stake", Value: in.Stake, Reason: "must be positive with at most 2 decimals"}
	}
	mult, err := parseDecimal("multiplier", in.Multiplier)
	if err != nil {
		return nil, err
	}
	if mult.LessThan(decimal.NewFromInt(1)) || !mult.Equal(mult.Truncate(domain.MultiplierPlaces)) {
		return nil, &domain.ValidationError{Field: "multiplier", Value: in.Multiplier, Reason: "must be at least 1 with at most 4 decimals"}
	}
	if _, err := s.agents.GetMember(ctx, in.MemberID); err != nil {
		return nil, fmt.Errorf("wager_service.Record: %w", err)
	}

	w := &domain.Wager{
		ID:           uuid.New(),
		Period:       in.Period,
		MemberID:     in.MemberID,
		Stake:        stake,
		Multiplier:   mult,
		Status:       domain.WagerPending,
		Payout:       decimal.Zero,
		PlacedAt:     s.clock.now(),
		RebateStatus: domain.RebatePending,
	}
	if err := domain.NormalizeWager(w, in.Raw); err != nil {
		return nil, err
	}
	if err := s.wagers.Place(ctx, w); err != nil {
		return nil, fmt.Errorf("wager_service.Record: %w", err)
	}
	s.log.Debug("wager recorded", "wager_id", w.ID, "period", w.Period, "category", w.Category, "stake", w.Stake.String())
	return w, nil
}
