package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/qazasd2518995/racing10-lottery-website-sub005/internal/domain"
	"github.com/shopspring/decimal"
)

// CommissionRepository is the append-only commission ledger.
type CommissionRepository struct {
	db *sqlx.DB
}

// NewCommissionRepository creates a new CommissionRepository.
func NewCommissionRepository(db *sqlx.DB) *CommissionRepository {
	return &CommissionRepository{db: db}
}

// Insert appends an entry inside the caller's transaction. The unique
// (wager_id, agent_id, kind) constraint turns a retried allocation into a
// no-op that reports inserted=false.
func (r *CommissionRepository) Insert(ctx context.Context, tx *sqlx.Tx, e *domain.CommissionEntry) (bool, error) {
	res, err := tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO commission_ledger
			(id, period, wager_id, agent_id, amount, kind, reverses_id, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (wager_id, agent_id, kind) DO NOTHING`),
		e.ID, e.Period, e.WagerID, e.AgentID, e.Amount, e.Kind, e.ReversesID, e.Reason, e.CreatedAt.UTC())
	if err != nil {
		return false, fmt.Errorf("commission_repo.Insert: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// GetByID fetches a ledger entry.
func (r *CommissionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.CommissionEntry, error) {
	var e domain.CommissionEntry
	err := r.db.GetContext(ctx, &e, r.db.Rebind(`SELECT * FROM commission_ledger WHERE id = ?`), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrEntryNotFound
		}
		return nil, fmt.Errorf("commission_repo.GetByID: %w", err)
	}
	return &e, nil
}

// ListByWager returns every entry of a wager, rebates and reversals alike.
func (r *CommissionRepository) ListByWager(ctx context.Context, q sqlx.QueryerContext, wagerID uuid.UUID) ([]domain.CommissionEntry, error) {
	var entries []domain.CommissionEntry
	err := sqlx.SelectContext(ctx, q, &entries, r.db.Rebind(`
		SELECT * FROM commission_ledger WHERE wager_id = ? ORDER BY created_at ASC, kind ASC`), wagerID)
	if err != nil {
		return nil, fmt.Errorf("commission_repo.ListByWager: %w", err)
	}
	return entries, nil
}

// ListByAgent returns a page of an agent's entries, newest first.
func (r *CommissionRepository) ListByAgent(ctx context.Context, agentID uuid.UUID, limit, offset int) ([]domain.CommissionEntry, error) {
	var entries []domain.CommissionEntry
	err := r.db.SelectContext(ctx, &entries, r.db.Rebind(`
		SELECT * FROM commission_ledger WHERE agent_id = ?
		ORDER BY created_at DESC LIMIT ? OFFSET ?`), agentID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("commission_repo.ListByAgent: %w", err)
	}
	return entries, nil
}

// NetForWager returns rebates minus reversals for a wager.
func (r *CommissionRepository) NetForWager(ctx context.Context, wagerID uuid.UUID) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.db.GetContext(ctx, &total, r.db.Rebind(`
		SELECT COALESCE(SUM(amount), 0) FROM commission_ledger WHERE wager_id = ?`), wagerID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("commission_repo.NetForWager: %w", err)
	}
	return total, nil
}
