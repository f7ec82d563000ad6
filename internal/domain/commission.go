package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EntryKind distinguishes original rebates from compensating reversals.
type EntryKind string

const (
	EntryRebate   EntryKind = "rebate"
	EntryReversal EntryKind = "reversal"
)

// CommissionEntry is one immutable commission ledger row. Corrections are
// new reversal rows pointing at the original through ReversesID.
type CommissionEntry struct {
	ID         uuid.UUID       `json:"id"          db:"id"`
	Period     Period          `json:"period"      db:"period"`
	WagerID    uuid.UUID       `json:"wager_id"    db:"wager_id"`
	AgentID    uuid.UUID       `json:"agent_id"    db:"agent_id"`
	Amount     decimal.Decimal `json:"amount"      db:"amount"`
	Kind       EntryKind       `json:"kind"        db:"kind"`
	ReversesID *uuid.UUID      `json:"reverses_id" db:"reverses_id"`
	Reason     string          `json:"reason"      db:"reason"`
	CreatedAt  time.Time       `json:"created_at"  db:"created_at"`
}

// SumEntries totals the amounts of entries.
func SumEntries(entries []CommissionEntry) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.Amount)
	}
	return total
}
