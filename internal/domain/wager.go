package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Types & constants
// ──────────────────────────────────────────────────────────────────────────────

// WagerStatus is the settlement result of a wager.
type WagerStatus string

const (
	WagerPending WagerStatus = "pending" // placed, not yet settled
	WagerWon     WagerStatus = "won"
	WagerLost    WagerStatus = "lost"
)

// RebateStatus tracks commission allocation for a settled wager. It is kept
// separate from WagerStatus so a failed allocation never touches the
// settlement result.
type RebateStatus string

const (
	RebatePending RebateStatus = "pending"
	RebateDone    RebateStatus = "done"
	RebateFailed  RebateStatus = "failed"
)

// CurrencyPlaces is the precision of stakes and commission amounts.
const CurrencyPlaces = 2

// MultiplierPlaces bounds multiplier precision so stake × multiplier always
// fits the six-place payout column exactly.
const MultiplierPlaces = 4

// RoundMoney rounds an amount to currency precision (half away from zero).
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(CurrencyPlaces)
}

// FloorMoney truncates a non-negative amount down to currency precision. Paid
// shares of a capped pool use it so their sum never exceeds the cap.
func FloorMoney(d decimal.Decimal) decimal.Decimal {
	return d.RoundFloor(CurrencyPlaces)
}

// ──────────────────────────────────────────────────────────────────────────────
// Wager
// ──────────────────────────────────────────────────────────────────────────────

// Wager is a single stake placed against a category/selector for a round.
// Category, Position and Selector hold the canonical encoding produced by
// NormalizeWager; DecodeSelection turns them back into a Selection.
type Wager struct {
	ID           uuid.UUID       `json:"id"            db:"id"`
	Period       Period          `json:"period"        db:"period"`
	MemberID     uuid.UUID       `json:"member_id"     db:"member_id"`
	Category     Category        `json:"category"      db:"category"`
	Position     int             `json:"position"      db:"position"`
	Selector     string          `json:"selector"      db:"selector"`
	Stake        decimal.Decimal `json:"stake"         db:"stake"`
	Multiplier   decimal.Decimal `json:"multiplier"    db:"multiplier"`
	Status       WagerStatus     `json:"status"        db:"status"`
	Payout       decimal.Decimal `json:"payout"        db:"payout"`
	Reason       string          `json:"reason"        db:"reason"`
	Audit        bool            `json:"audit"         db:"audit"`
	PlacedAt     time.Time       `json:"placed_at"     db:"placed_at"`
	SettledAt    *time.Time      `json:"settled_at"    db:"settled_at"`
	RebateStatus RebateStatus    `json:"rebate_status" db:"rebate_status"`
	RebateError  string          `json:"rebate_error"  db:"rebate_error"`
}

// IsSettled returns true once the wager has been resolved.
func (w *Wager) IsSettled() bool {
	return w.SettledAt != nil && w.Status != WagerPending
}

// Selection decodes the wager's canonical category/position/selector.
func (w *Wager) Selection() (Selection, error) {
	return DecodeSelection(w.Category, w.Position, w.Selector)
}

// ──────────────────────────────────────────────────────────────────────────────
// Settlement result
// ──────────────────────────────────────────────────────────────────────────────

// Result is the per-wager outcome of settlement.
type Result struct {
	WagerID uuid.UUID       `json:"wager_id"`
	Won     bool            `json:"won"`
	Payout  decimal.Decimal `json:"payout"`
	Reason  string          `json:"reason"`
	Audit   bool            `json:"audit"`
}

// Status maps the boolean result onto the persisted WagerStatus.
func (r Result) Status() WagerStatus {
	if r.Won {
		return WagerWon
	}
	return WagerLost
}

// ──────────────────────────────────────────────────────────────────────────────
// Members
// ──────────────────────────────────────────────────────────────────────────────

// Member is a wagering account attached to its direct agent.
type Member struct {
	ID        uuid.UUID `json:"id"         db:"id"`
	AgentID   uuid.UUID `json:"agent_id"   db:"agent_id"`
	Username  string    `json:"username"   db:"username"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
