// Package ws holds WebSocket message types and the Hub implementation.
// messages.go defines all message structs broadcast to connected clients.
package ws

import (
	"time"

	"github.com/qazasd2518995/racing10-lottery-website-sub005/internal/domain"
	"github.com/shopspring/decimal"
)

// MsgType identifies the kind of WS message so clients can switch on it.
type MsgType string

const (
	MsgTypeRoundOpened  MsgType = "round_opened"
	MsgTypeDrawResult   MsgType = "draw_result"
	MsgTypeRoundSettled MsgType = "round_settled"
)

// ──────────────────────────────────────────────────────────────────────────────
// RoundOpenedMessage: broadcast when a new round starts accepting wagers.
// ──────────────────────────────────────────────────────────────────────────────

// RoundOpenedMessage carries the identity and deadline of the new round.
type RoundOpenedMessage struct {
	Type      MsgType       `json:"type"`
	Period    domain.Period `json:"period"`
	OpensAt   time.Time     `json:"opens_at"`
	ClosesAt  time.Time     `json:"closes_at"`
	Timestamp time.Time     `json:"timestamp"`
}

// ──────────────────────────────────────────────────────────────────────────────
// DrawResultMessage: broadcast once a round's outcome is recorded.
// ──────────────────────────────────────────────────────────────────────────────

// DrawResultMessage carries the ten-position outcome.
type DrawResultMessage struct {
	Type      MsgType       `json:"type"`
	Period    domain.Period `json:"period"`
	Outcome   []int         `json:"outcome"`
	TopTwoSum int           `json:"top_two_sum"`
	Timestamp time.Time     `json:"timestamp"`
}

// NewDrawResult builds a DrawResultMessage for outcome.
func NewDrawResult(period domain.Period, outcome domain.Permutation, at time.Time) DrawResultMessage {
	return DrawResultMessage{
		Type:      MsgTypeDrawResult,
		Period:    period,
		Outcome:   []int(outcome),
		TopTwoSum: outcome.At(1) + outcome.At(2),
		Timestamp: at.UTC(),
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// RoundSettledMessage: broadcast after a round's settlement commits.
// ──────────────────────────────────────────────────────────────────────────────

// RoundSettledMessage summarises a settled round.
type RoundSettledMessage struct {
	Type        MsgType         `json:"type"`
	Period      domain.Period   `json:"period"`
	Wagers      int             `json:"wagers"`
	Winners     int             `json:"winners"`
	TotalStake  decimal.Decimal `json:"total_stake"`
	TotalPayout decimal.Decimal `json:"total_payout"`
	Timestamp   time.Time       `json:"timestamp"`
}

// NewRoundSettled builds a RoundSettledMessage from a settlement summary.
func NewRoundSettled(sum domain.SettlementSummary, at time.Time) RoundSettledMessage {
	return RoundSettledMessage{
		Type:        MsgTypeRoundSettled,
		Period:      sum.Period,
		Wagers:      sum.SettledCount,
		Winners:     sum.WinCount,
		TotalStake:  sum.TotalStake,
		TotalPayout: sum.TotalPayout,
		Timestamp:   at.UTC(),
	}
}

