package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/qazasd2518995/racing10-lottery-website-sub005/internal/domain"
)

// PolicyRepository stores control policies.
type PolicyRepository struct {
	db *sqlx.DB
}

// NewPolicyRepository creates a new PolicyRepository.
func NewPolicyRepository(db *sqlx.DB) *PolicyRepository {
	return &PolicyRepository{db: db}
}

// Create inserts a new policy.
func (r *PolicyRepository) Create(ctx context.Context, p *domain.ControlPolicy) error {
	query := `
		INSERT INTO control_policies
			(id, scope, target_id, mode, win_rate, activates_at, expires_at, enabled, created_by, created_at)
		VALUES
			(:id, :scope, :target_id, :mode, :win_rate, :activates_at, :expires_at, :enabled, :created_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, p); err != nil {
		return fmt.Errorf("policy_repo.Create: %w", err)
	}
	return nil
}

// GetByID fetches a policy.
func (r *PolicyRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.ControlPolicy, error) {
	var p domain.ControlPolicy
	err := r.db.GetContext(ctx, &p, r.db.Rebind(`SELECT * FROM control_policies WHERE id = ?`), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPolicyNotFound
		}
		return nil, fmt.Errorf("policy_repo.GetByID: %w", err)
	}
	return &p, nil
}

// ListActive returns enabled policies that are in force at period. The
// caller picks the authoritative one with domain.SelectAuthoritative.
func (r *PolicyRepository) ListActive(ctx context.Context, period domain.Period) ([]domain.ControlPolicy, error) {
	var policies []domain.ControlPolicy
	err := r.db.SelectContext(ctx, &policies, r.db.Rebind(`
		SELECT * FROM control_policies
		WHERE enabled = ? AND activates_at <= ? AND (expires_at IS NULL OR expires_at > ?)
		ORDER BY activates_at DESC`), true, period, period)
	if err != nil {
		return nil, fmt.Errorf("policy_repo.ListActive: %w", err)
	}
	return policies, nil
}

// List returns every policy, newest first.
func (r *PolicyRepository) List(ctx context.Context, includeDisabled bool) ([]domain.ControlPolicy, error) {
	var policies []domain.ControlPolicy
	var err error
	if includeDisabled {
		err = r.db.SelectContext(ctx, &policies,
			`SELECT * FROM control_policies ORDER BY created_at DESC`)
	} else {
		err = r.db.SelectContext(ctx, &policies, r.db.Rebind(
			`SELECT * FROM control_policies WHERE enabled = ? ORDER BY created_at DESC`), true)
	}
	if err != nil {
		return nil, fmt.Errorf("policy_repo.List: %w", err)
	}
	return policies, nil
}

// Disable switches a policy off. Disabling an already disabled policy is a
// no-op.
func (r *PolicyRepository) Disable(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(
		`UPDATE control_policies SET enabled = ? WHERE id = ?`), false, id)
	if err != nil {
		return fmt.Errorf("policy_repo.Disable: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrPolicyNotFound
	}
	return nil
}
