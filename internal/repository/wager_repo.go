package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/qazasd2518995/racing10-lottery-website-sub005/internal/domain"
)

// WagerRepository is the bet ledger: it supplies open wagers and exposure to
// the draw and settlement services and records each wager's single
// settlement.
type WagerRepository struct {
	db *sqlx.DB
}

// NewWagerRepository creates a new WagerRepository.
func NewWagerRepository(db *sqlx.DB) *WagerRepository {
	return &WagerRepository{db: db}
}

const insertWagerSQL = `
	INSERT INTO wagers
		(id, period, member_id, category, position, selector, stake, multiplier,
		 status, payout, reason, audit, placed_at, rebate_status, rebate_error)
	VALUES
		(:id, :period, :member_id, :category, :position, :selector, :stake, :multiplier,
		 :status, :payout, :reason, :audit, :placed_at, :rebate_status, :rebate_error)`

// Create inserts a wager without checking the round; imports and fixtures
// use it. Category, position and selector must already be canonical (see
// domain.NormalizeWager).
func (r *WagerRepository) Create(ctx context.Context, w *domain.Wager) error {
	if _, err := r.db.NamedExecContext(ctx, insertWagerSQL, w); err != nil {
		return fmt.Errorf("wager_repo.Create: %w", err)
	}
	return nil
}

// Place inserts a wager only while its round is open. The round row stays
// locked until the insert commits, so closing or claiming the round waits for
// it and settlement never misses the wager.
func (r *WagerRepository) Place(ctx context.Context, w *domain.Wager) error {
	tx, txErr := r.db.BeginTxx(ctx, nil)
	if txErr != nil {
		return fmt.Errorf("wager_repo.Place: begin tx: %w", txErr)
	}
	defer func() {
		if txErr != nil {
			_ = tx.Rollback()
		}
	}()

	// ── Step 1: lock the round and check it is open ──
	var status domain.RoundStatus
	txErr = tx.GetContext(ctx, &status,
		tx.Rebind(`SELECT status FROM rounds WHERE period = ?`+lockClause(tx.DriverName())), w.Period)
	if errors.Is(txErr, sql.ErrNoRows) {
		txErr = domain.ErrRoundNotFound
		return txErr
	}
	if txErr != nil {
		return fmt.Errorf("wager_repo.Place: lock round: %w", txErr)
	}
	if status != domain.RoundOpen {
		txErr = fmt.Errorf("wager_repo.Place: round %s is %s: %w", w.Period, status, domain.ErrRoundNotOpen)
		return txErr
	}

	// ── Step 2: insert ──
	if _, txErr = tx.NamedExecContext(ctx, insertWagerSQL, w); txErr != nil {
		return fmt.Errorf("wager_repo.Place: insert: %w", txErr)
	}
	if txErr = tx.Commit(); txErr != nil {
		return fmt.Errorf("wager_repo.Place: commit: %w", txErr)
	}
	return nil
}

// GetByID fetches a wager by its primary key.
func (r *WagerRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Wager, error) {
	var w domain.Wager
	err := r.db.GetContext(ctx, &w, r.db.Rebind(`SELECT * FROM wagers WHERE id = ?`), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrWagerNotFound
		}
		return nil, fmt.Errorf("wager_repo.GetByID: %w", err)
	}
	return &w, nil
}

// GetOpenWagers returns every unsettled wager of the round.
func (r *WagerRepository) GetOpenWagers(ctx context.Context, period domain.Period) ([]domain.Wager, error) {
	var wagers []domain.Wager
	err := r.db.SelectContext(ctx, &wagers, r.db.Rebind(`
		SELECT * FROM wagers
		WHERE period = ? AND settled_at IS NULL
		ORDER BY placed_at ASC, id ASC`), period)
	if err != nil {
		return nil, fmt.Errorf("wager_repo.GetOpenWagers: %w", err)
	}
	return wagers, nil
}

// GetAggregatedExposure sums the target's open stake per position and number.
// Wagers whose selection cannot be decoded are skipped and counted; settlement
// will record them as audited losses.
func (r *WagerRepository) GetAggregatedExposure(ctx context.Context, period domain.Period, target domain.ExposureTarget) (domain.Exposure, int, error) {
	query := `
		SELECT w.* FROM wagers w
		JOIN members m ON m.id = w.member_id
		WHERE w.period = ? AND w.settled_at IS NULL`
	args := []any{period}
	switch target.Scope {
	case domain.ScopeMember:
		query += ` AND w.member_id = ?`
		args = append(args, target.ID)
	case domain.ScopeGroup:
		query += ` AND m.agent_id = ?`
		args = append(args, target.ID)
	case domain.ScopeGlobal:
	default:
		return nil, 0, fmt.Errorf("wager_repo.GetAggregatedExposure: unknown scope %q", target.Scope)
	}

	var wagers []domain.Wager
	if err := r.db.SelectContext(ctx, &wagers, r.db.Rebind(query), args...); err != nil {
		return nil, 0, fmt.Errorf("wager_repo.GetAggregatedExposure: %w", err)
	}

	exposure := domain.Exposure{}
	skipped := 0
	for i := range wagers {
		sel, err := wagers[i].Selection()
		if err != nil {
			skipped++
			continue
		}
		exposure.Project(sel, wagers[i].Stake)
	}
	return exposure, skipped, nil
}

// MarkSettled records the wager's result inside the settlement transaction.
// The settled_at IS NULL guard makes a second attempt a no-op that reports
// applied=false.
func (r *WagerRepository) MarkSettled(ctx context.Context, tx *sqlx.Tx, res domain.Result, now time.Time) (bool, error) {
	out, err := tx.ExecContext(ctx, tx.Rebind(`
		UPDATE wagers
		SET status = ?, payout = ?, reason = ?, audit = ?, settled_at = ?
		WHERE id = ? AND settled_at IS NULL`),
		res.Status(), res.Payout, res.Reason, res.Audit, now.UTC(), res.WagerID)
	if err != nil {
		return false, fmt.Errorf("wager_repo.MarkSettled: %w", err)
	}
	n, _ := out.RowsAffected()
	return n > 0, nil
}

// ListByPeriod returns every wager of a round.
func (r *WagerRepository) ListByPeriod(ctx context.Context, period domain.Period) ([]domain.Wager, error) {
	var wagers []domain.Wager
	err := r.db.SelectContext(ctx, &wagers, r.db.Rebind(
		`SELECT * FROM wagers WHERE period = ? ORDER BY placed_at ASC, id ASC`), period)
	if err != nil {
		return nil, fmt.Errorf("wager_repo.ListByPeriod: %w", err)
	}
	return wagers, nil
}

// ListRebateDue returns settled wagers whose commission is pending or failed.
func (r *WagerRepository) ListRebateDue(ctx context.Context, status domain.RebateStatus, limit int) ([]domain.Wager, error) {
	var wagers []domain.Wager
	err := r.db.SelectContext(ctx, &wagers, r.db.Rebind(`
		SELECT * FROM wagers
		WHERE settled_at IS NOT NULL AND rebate_status = ?
		ORDER BY settled_at ASC
		LIMIT ?`), status, limit)
	if err != nil {
		return nil, fmt.Errorf("wager_repo.ListRebateDue: %w", err)
	}
	return wagers, nil
}

// SetRebateStatus records the outcome of a commission allocation attempt.
// q is the database or the allocation transaction.
func (r *WagerRepository) SetRebateStatus(ctx context.Context, q sqlx.ExtContext, id uuid.UUID, status domain.RebateStatus, reason string) error {
	_, err := q.ExecContext(ctx, q.Rebind(
		`UPDATE wagers SET rebate_status = ?, rebate_error = ? WHERE id = ?`),
		status, reason, id)
	if err != nil {
		return fmt.Errorf("wager_repo.SetRebateStatus: %w", err)
	}
	return nil
}

// CountAudited returns how many wagers of the round were flagged for audit.
func (r *WagerRepository) CountAudited(ctx context.Context, period domain.Period) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, r.db.Rebind(
		`SELECT COUNT(*) FROM wagers WHERE period = ? AND audit = ?`), period, true)
	if err != nil {
		return 0, fmt.Errorf("wager_repo.CountAudited: %w", err)
	}
	return n, nil
}
