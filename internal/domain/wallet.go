package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Wallet
// ──────────────────────────────────────────────────────────────────────────────

// OwnerKind says whether a wallet belongs to a member or an agent.
type OwnerKind string

const (
	OwnerMember OwnerKind = "member"
	OwnerAgent  OwnerKind = "agent"
)

// Wallet holds the balance credited by payouts and commission.
type Wallet struct {
	ID        uuid.UUID       `json:"id"         db:"id"`
	OwnerID   uuid.UUID       `json:"owner_id"   db:"owner_id"`
	OwnerKind OwnerKind       `json:"owner_kind" db:"owner_kind"`
	Balance   decimal.Decimal `json:"balance"    db:"balance"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// ──────────────────────────────────────────────────────────────────────────────
// Transaction
// ──────────────────────────────────────────────────────────────────────────────

// TxType enumerates wallet transaction types for auditing.
type TxType string

const (
	TxPayout     TxType = "payout"
	TxCommission TxType = "commission"
	TxReversal   TxType = "reversal"   // compensating debit of a commission entry
	TxAdjustment TxType = "adjustment" // operator correction of a settled payout
)

// Transaction is an immutable audit record for every wallet balance change.
type Transaction struct {
	ID            uuid.UUID       `json:"id"             db:"id"`
	WalletID      uuid.UUID       `json:"wallet_id"      db:"wallet_id"`
	Type          TxType          `json:"type"           db:"type"`
	Amount        decimal.Decimal `json:"amount"         db:"amount"`
	BalanceBefore decimal.Decimal `json:"balance_before" db:"balance_before"`
	BalanceAfter  decimal.Decimal `json:"balance_after"  db:"balance_after"`
	RefID         *uuid.UUID      `json:"ref_id"         db:"ref_id"` // wager or ledger entry ID
	Description   string          `json:"description"    db:"description"`
	CreatedAt     time.Time       `json:"created_at"     db:"created_at"`
}
