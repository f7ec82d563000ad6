package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/qazasd2518995/racing10-lottery-website-sub005/internal/domain"
	"github.com/qazasd2518995/racing10-lottery-website-sub005/internal/repository"
)

// PolicyService manages operator control policies.
type PolicyService struct {
	policies *repository.PolicyRepository
	log      *slog.Logger
	clock    Clock
}

// NewPolicyService builds a PolicyService.
func NewPolicyService(policies *repository.PolicyRepository, log *slog.Logger, clock Clock) *PolicyService {
	return &PolicyService{policies: policies, log: loggerOrDefault(log), clock: clock}
}

// CreatePolicyInput carries an operator's new policy.
type CreatePolicyInput struct {
	Scope       domain.PolicyScope
	TargetID    *uuid.UUID
	Mode        domain.PolicyMode
	WinRate     string // percent
	ActivatesAt domain.Period
	ExpiresAt   *domain.Period
	CreatedBy   string
}

// Create validates and stores a new enabled policy.
func (s *PolicyService) Create(ctx context.Context, in CreatePolicyInput) (*domain.ControlPolicy, error) {
	rate, err := parseDecimal("win_rate", in.WinRate)
	if err != nil {
		return nil, err
	}
	p := &domain.ControlPolicy{
		ID:          uuid.New(),
		Scope:       in.Scope,
		TargetID:    in.TargetID,
		Mode:        in.Mode,
		WinRate:     rate,
		ActivatesAt: in.ActivatesAt,
		ExpiresAt:   in.ExpiresAt,
		Enabled:     true,
		CreatedBy:   in.CreatedBy,
		CreatedAt:   s.clock.now(),
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := s.policies.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("policy_service.Create: %w", err)
	}
	s.log.Info("control policy created",
		"policy_id", p.ID, "scope", p.Scope, "mode", p.Mode, "win_rate", p.WinRate.String(),
		"activates_at", p.ActivatesAt, "created_by", p.CreatedBy)
	return p, nil
}

// Disable switches a policy off.
func (s *PolicyService) Disable(ctx context.Context, id uuid.UUID) error {
	if err := s.policies.Disable(ctx, id); err != nil {
		return fmt.Errorf("policy_service.Disable: %w", err)
	}
	s.log.Info("control policy disabled", "policy_id", id)
	return nil
}

// List returns policies, optionally including disabled ones.
func (s *PolicyService) List(ctx context.Context, includeDisabled bool) ([]domain.ControlPolicy, error) {
	return s.policies.List(ctx, includeDisabled)
}

// Authoritative reads the policies in force at period from the store and
// returns the one that governs it, or nil. It always hits the store so a
// policy changed mid-round applies to the next draw.
func (s *PolicyService) Authoritative(ctx context.Context, period domain.Period) (*domain.ControlPolicy, error) {
	active, err := s.policies.ListActive(ctx, period)
	if err != nil {
		return nil, fmt.Errorf("policy_service.Authoritative: %w", err)
	}
	return domain.SelectAuthoritative(active, period), nil
}
