package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/qazasd2518995/racing10-lottery-website-sub005/internal/domain"
)

// RoundRepository handles all database operations for Rounds. Status
// transitions are guarded UPDATEs; a zero row count means another caller
// got there first.
type RoundRepository struct {
	db *sqlx.DB
}

// NewRoundRepository creates a new RoundRepository.
func NewRoundRepository(db *sqlx.DB) *RoundRepository {
	return &RoundRepository{db: db}
}

// Create inserts a new round. Creating an existing period is a no-op and
// reports created=false.
func (r *RoundRepository) Create(ctx context.Context, rd *domain.Round) (bool, error) {
	query := r.db.Rebind(`
		INSERT INTO rounds (period, status, opens_at, closes_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (period) DO NOTHING`)
	res, err := r.db.ExecContext(ctx, query, rd.Period, rd.Status, rd.OpensAt.UTC(), rd.ClosesAt.UTC())
	if err != nil {
		return false, fmt.Errorf("round_repo.Create: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// Get fetches a round by period.
func (r *RoundRepository) Get(ctx context.Context, period domain.Period) (*domain.Round, error) {
	var rd domain.Round
	err := r.db.GetContext(ctx, &rd, r.db.Rebind(`SELECT * FROM rounds WHERE period = ?`), period)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrRoundNotFound
		}
		return nil, fmt.Errorf("round_repo.Get: %w", err)
	}
	return &rd, nil
}

// Latest returns the round with the highest period, or ErrRoundNotFound.
func (r *RoundRepository) Latest(ctx context.Context) (*domain.Round, error) {
	var rd domain.Round
	err := r.db.GetContext(ctx, &rd, `SELECT * FROM rounds ORDER BY period DESC LIMIT 1`)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrRoundNotFound
		}
		return nil, fmt.Errorf("round_repo.Latest: %w", err)
	}
	return &rd, nil
}

// Close moves an open round to closing. Closing a round that is not open
// returns ErrRoundNotOpen.
func (r *RoundRepository) Close(ctx context.Context, period domain.Period) error {
	res, err := r.db.ExecContext(ctx,
		r.db.Rebind(`UPDATE rounds SET status = 'closing' WHERE period = ? AND status = 'open'`), period)
	if err != nil {
		return fmt.Errorf("round_repo.Close: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.Get(ctx, period); err != nil {
			return err
		}
		return domain.ErrRoundNotOpen
	}
	return nil
}

// SetOutcome records the draw once. Recording the same permutation again is
// a no-op; a different one returns ErrOutcomeMismatch.
func (r *RoundRepository) SetOutcome(ctx context.Context, period domain.Period, outcome domain.Permutation, now time.Time) error {
	if err := outcome.Validate(); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE rounds SET outcome = ?, drawn_at = ?
		WHERE period = ? AND outcome IS NULL AND status IN ('open','closing')`),
		outcome, now.UTC(), period)
	if err != nil {
		return fmt.Errorf("round_repo.SetOutcome: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	rd, err := r.Get(ctx, period)
	if err != nil {
		return err
	}
	if rd.Outcome == nil {
		return domain.ErrConcurrencyConflict
	}
	if !rd.Outcome.Equal(outcome) {
		return domain.ErrOutcomeMismatch
	}
	return nil
}

// ClaimForSettlement is the settlement compare-and-set: exactly one caller
// moves the round from open/closing to settling. Losers get
// ErrConcurrencyConflict.
func (r *RoundRepository) ClaimForSettlement(ctx context.Context, period domain.Period, now time.Time) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE rounds SET status = 'settling', claimed_at = ?
		WHERE period = ? AND status IN ('open','closing')`),
		now.UTC(), period)
	if err != nil {
		return fmt.Errorf("round_repo.ClaimForSettlement: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.Get(ctx, period); err != nil {
			return err
		}
		return domain.ErrConcurrencyConflict
	}
	return nil
}

// MarkSettled completes a claimed round inside the settlement transaction.
func (r *RoundRepository) MarkSettled(ctx context.Context, tx *sqlx.Tx, period domain.Period, now time.Time) error {
	res, err := tx.ExecContext(ctx, tx.Rebind(`
		UPDATE rounds SET status = 'settled', settled_at = ?
		WHERE period = ? AND status = 'settling'`),
		now.UTC(), period)
	if err != nil {
		return fmt.Errorf("round_repo.MarkSettled: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrConcurrencyConflict
	}
	return nil
}

// ReleaseClaim returns a settling round to closing after a failed attempt so
// it stays visibly pending and can be retried.
func (r *RoundRepository) ReleaseClaim(ctx context.Context, period domain.Period) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE rounds SET status = 'closing', claimed_at = NULL
		WHERE period = ? AND status = 'settling'`), period)
	if err != nil {
		return fmt.Errorf("round_repo.ReleaseClaim: %w", err)
	}
	return nil
}

// ReleaseStaleClaims releases settling claims older than before, left
// behind by a crashed settler. It returns the number of rounds released.
func (r *RoundRepository) ReleaseStaleClaims(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE rounds SET status = 'closing', claimed_at = NULL
		WHERE status = 'settling' AND claimed_at < ?`), before.UTC())
	if err != nil {
		return 0, fmt.Errorf("round_repo.ReleaseStaleClaims: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// ListAwaitingDraw returns closing rounds that have no outcome yet.
func (r *RoundRepository) ListAwaitingDraw(ctx context.Context) ([]*domain.Round, error) {
	var rounds []*domain.Round
	err := r.db.SelectContext(ctx, &rounds,
		`SELECT * FROM rounds WHERE status = 'closing' AND outcome IS NULL ORDER BY period ASC`)
	if err != nil {
		return nil, fmt.Errorf("round_repo.ListAwaitingDraw: %w", err)
	}
	return rounds, nil
}

// ListAwaitingSettlement returns drawn rounds that are not settled or claimed.
func (r *RoundRepository) ListAwaitingSettlement(ctx context.Context) ([]*domain.Round, error) {
	var rounds []*domain.Round
	err := r.db.SelectContext(ctx, &rounds,
		`SELECT * FROM rounds WHERE status = 'closing' AND outcome IS NOT NULL ORDER BY period ASC`)
	if err != nil {
		return nil, fmt.Errorf("round_repo.ListAwaitingSettlement: %w", err)
	}
	return rounds, nil
}

// List returns a page of rounds, newest first, optionally filtered by status.
func (r *RoundRepository) List(ctx context.Context, status domain.RoundStatus, limit, offset int) ([]*domain.Round, error) {
	var rounds []*domain.Round
	var err error
	if status != "" {
		err = r.db.SelectContext(ctx, &rounds, r.db.Rebind(
			`SELECT * FROM rounds WHERE status = ? ORDER BY period DESC LIMIT ? OFFSET ?`),
			status, limit, offset)
	} else {
		err = r.db.SelectContext(ctx, &rounds, r.db.Rebind(
			`SELECT * FROM rounds ORDER BY period DESC LIMIT ? OFFSET ?`),
			limit, offset)
	}
	if err != nil {
		return nil, fmt.Errorf("round_repo.List: %w", err)
	}
	return rounds, nil
}
