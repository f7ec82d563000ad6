package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/qazasd2518995/racing10-lottery-website-sub005/internal/domain"
	"github.com/qazasd2518995/racing10-lottery-website-sub005/internal/repository"
)

// RoundPointer publishes the period currently accepting wagers.
type RoundPointer interface {
	SetCurrent(ctx context.Context, period domain.Period) error
	Current(ctx context.Context) (domain.Period, error)
}

// RoundService drives the round clock: it closes the open round and opens
// the next one.
type RoundService struct {
	rounds  *repository.RoundRepository
	wagers  *repository.WagerRepository
	pointer RoundPointer
	log     *slog.Logger
	clock   Clock
}

// NewRoundService builds a RoundService. pointer may be nil.
func NewRoundService(rounds *repository.RoundRepository, wagers *repository.WagerRepository, pointer RoundPointer, log *slog.Logger, clock Clock) *RoundService {
	return &RoundService{rounds: rounds, wagers: wagers, pointer: pointer, log: loggerOrDefault(log), clock: clock}
}

// Rotate closes the currently open round, if any, and opens the next one
// closing at closesAt. It returns the closed round (nil when none was open)
// and the newly opened one.
func (s *RoundService) Rotate(ctx context.Context, closesAt time.Time) (closed, opened *domain.Round, err error) {
	latest, err := s.rounds.Latest(ctx)
	switch {
	case errors.Is(err, domain.ErrRoundNotFound):
		latest = nil
	case err != nil:
		return nil, nil, fmt.Errorf("round_service.Rotate: %w", err)
	}

	var prev domain.Period
	if latest != nil {
		prev = latest.Period
		if latest.IsOpen() {
			if err := s.rounds.Close(ctx, latest.Period); err != nil && !errors.Is(err, domain.ErrRoundNotOpen) {
				return nil, nil, fmt.Errorf("round_service.Rotate: %w", err)
			}
			if closed, err = s.rounds.Get(ctx, latest.Period); err != nil {
				return nil, nil, fmt.Errorf("round_service.Rotate: %w", err)
			}
		}
	}

	now := s.clock.now()
	opened = &domain.Round{
		Period:   prev.Next(now),
		Status:   domain.RoundOpen,
		OpensAt:  now,
		ClosesAt: closesAt.UTC(),
	}
	if _, err := s.rounds.Create(ctx, opened); err != nil {
		return closed, nil, fmt.Errorf("round_service.Rotate: %w", err)
	}
	if s.pointer != nil {
		if err := s.pointer.SetCurrent(ctx, opened.Period); err != nil {
			s.log.Warn("publish current round failed", "period", opened.Period, "err", err)
		}
	}

	if closed != nil {
		s.log.Info("round closed", "period", closed.Period)
	}
	s.log.Info("round opened", "period", opened.Period, "closes_at", opened.ClosesAt)
	return closed, opened, nil
}

// Current returns the period accepting wagers, from the pointer when one is
// configured, otherwise from the store.
func (s *RoundService) Current(ctx context.Context) (domain.Period, error) {
	if s.pointer != nil {
		if p, err := s.pointer.Current(ctx); err == nil && p != 0 {
			return p, nil
		}
	}
	latest, err := s.rounds.Latest(ctx)
	if err != nil {
		return 0, fmt.Errorf("round_service.Current: %w", err)
	}
	if !latest.IsOpen() {
		return 0, domain.ErrRoundNotOpen
	}
	return latest.Period, nil
}

// RoundDetail is a round together with its wagers.
type RoundDetail struct {
	Round   *domain.Round  `json:"round"`
	Wagers  []domain.Wager `json:"wagers"`
	Audited int            `json:"audited"`
}

// Get returns a round with its wagers.
func (s *RoundService) Get(ctx context.Context, period domain.Period) (*RoundDetail, error) {
	rd, err := s.rounds.Get(ctx, period)
	if err != nil {
		return nil, err
	}
	wagers, err := s.wagers.ListByPeriod(ctx, period)
	if err != nil {
		return nil, err
	}
	audited, err := s.wagers.CountAudited(ctx, period)
	if err != nil {
		return nil, err
	}
	return &RoundDetail{Round: rd, Wagers: wagers, Audited: audited}, nil
}

// List returns a page of rounds, newest first.
func (s *RoundService) List(ctx context.Context, status domain.RoundStatus, limit, offset int) ([]*domain.Round, error) {
	return s.rounds.List(ctx, status, limit, offset)
}

// Pending lists closed rounds still to be drawn and drawn rounds still to be
// settled, oldest first.
func (s *RoundService) Pending(ctx context.Context) (awaitingDraw, awaitingSettlement []*domain.Round, err error) {
	if awaitingDraw, err = s.rounds.ListAwaitingDraw(ctx); err != nil {
		return nil, nil, err
	}
	if awaitingSettlement, err = s.rounds.ListAwaitingSettlement(ctx); err != nil {
		return nil, nil, err
	}
	return awaitingDraw, awaitingSettlement, nil
}

// ReleaseStaleClaims returns rounds claimed longer than olderThan ago to
// closing, so a crashed settler does not block them forever.
func (s *RoundService) ReleaseStaleClaims(ctx context.Context, olderThan time.Duration) (int64, error) {
	n, err := s.rounds.ReleaseStaleClaims(ctx, s.clock.now().Add(-olderThan))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Warn("released stale settlement claims", "rounds", n)
	}
	return n, nil
}
