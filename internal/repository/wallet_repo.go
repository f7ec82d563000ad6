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
	"github.com/shopspring/decimal"
)

// WalletRepository handles all database operations for Wallets and Transactions.
// Balances only ever change through AddBalance, an atomic in-place increment.
type WalletRepository struct {
	db *sqlx.DB
}

// NewWalletRepository creates a new WalletRepository.
func NewWalletRepository(db *sqlx.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

// Ensure creates the owner's wallet if it does not exist yet.
func (r *WalletRepository) Ensure(ctx context.Context, q sqlx.ExtContext, ownerID uuid.UUID, kind domain.OwnerKind, now time.Time) error {
	_, err := q.ExecContext(ctx, q.Rebind(`
		INSERT INTO wallets (id, owner_id, owner_kind, balance, created_at, updated_at)
		VALUES (?, ?, ?, 0, ?, ?)
		ON CONFLICT (owner_id) DO NOTHING`),
		uuid.New(), ownerID, kind, now.UTC(), now.UTC())
	if err != nil {
		return fmt.Errorf("wallet_repo.Ensure: %w", err)
	}
	return nil
}

// GetByOwner fetches the wallet belonging to a member or agent.
func (r *WalletRepository) GetByOwner(ctx context.Context, ownerID uuid.UUID) (*domain.Wallet, error) {
	var w domain.Wallet
	err := r.db.GetContext(ctx, &w, r.db.Rebind(`SELECT * FROM wallets WHERE owner_id = ?`), ownerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrWalletNotFound
		}
		return nil, fmt.Errorf("wallet_repo.GetByOwner: %w", err)
	}
	return &w, nil
}

// AddBalance credits (or, with a negative amount, debits) the owner's wallet
// inside a transaction and returns the wallet id with the balance after the
// change. The increment happens in SQL so concurrent writers never lose an
// update.
func (r *WalletRepository) AddBalance(ctx context.Context, tx *sqlx.Tx, ownerID uuid.UUID, amount decimal.Decimal, now time.Time) (uuid.UUID, decimal.Decimal, error) {
	var row struct {
		ID      uuid.UUID       `db:"id"`
		Balance decimal.Decimal `db:"balance"`
	}
	err := tx.GetContext(ctx, &row, tx.Rebind(`
		UPDATE wallets SET balance = balance + ?, updated_at = ?
		WHERE owner_id = ?
		RETURNING id, balance`),
		amount, now.UTC(), ownerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return uuid.Nil, decimal.Zero, domain.ErrWalletNotFound
		}
		return uuid.Nil, decimal.Zero, fmt.Errorf("wallet_repo.AddBalance: %w", err)
	}
	return row.ID, row.Balance, nil
}

// Credit applies amount to the owner's wallet and writes the matching audit
// transaction, both inside tx.
func (r *WalletRepository) Credit(ctx context.Context, tx *sqlx.Tx, ownerID uuid.UUID, amount decimal.Decimal, typ domain.TxType, refID *uuid.UUID, desc string, now time.Time) error {
	walletID, after, err := r.AddBalance(ctx, tx, ownerID, amount, now)
	if err != nil {
		return err
	}
	return r.LogTransaction(ctx, tx, &domain.Transaction{
		ID:            uuid.New(),
		WalletID:      walletID,
		Type:          typ,
		Amount:        amount,
		BalanceBefore: after.Sub(amount),
		BalanceAfter:  after,
		RefID:         refID,
		Description:   desc,
		CreatedAt:     now.UTC(),
	})
}

// LogTransaction inserts an audit record into wallet_transactions inside a transaction.
func (r *WalletRepository) LogTransaction(ctx context.Context, tx *sqlx.Tx, txn *domain.Transaction) error {
	query := `
		INSERT INTO wallet_transactions
			(id, wallet_id, type, amount, balance_before, balance_after, ref_id, description, created_at)
		VALUES
			(:id, :wallet_id, :type, :amount, :balance_before, :balance_after, :ref_id, :description, :created_at)`
	if _, err := tx.NamedExecContext(ctx, query, txn); err != nil {
		return fmt.Errorf("wallet_repo.LogTransaction: %w", err)
	}
	return nil
}

// GetTransactions returns paginated transaction history for an owner's wallet.
func (r *WalletRepository) GetTransactions(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*domain.Transaction, error) {
	var txns []*domain.Transaction
	err := r.db.SelectContext(ctx, &txns, r.db.Rebind(`
		SELECT wt.*
		FROM wallet_transactions wt
		JOIN wallets w ON w.id = wt.wallet_id
		WHERE w.owner_id = ?
		ORDER BY wt.created_at DESC
		LIMIT ? OFFSET ?`),
		ownerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("wallet_repo.GetTransactions: %w", err)
	}
	return txns, nil
}
