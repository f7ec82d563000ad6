// Package domain defines the core entities of the racing10 draw and
// settlement core: rounds, wagers, control policies, the agent hierarchy and
// the commission ledger.
package domain

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Types & constants
// ──────────────────────────────────────────────────────────────────────────────

// PositionCount is the number of ranked positions in a draw; it is also the
// size of the symbol universe (numbers 1..PositionCount).
const PositionCount = 10

// RoundStatus represents the lifecycle state of a round.
type RoundStatus string

const (
	RoundOpen     RoundStatus = "open"     // accepting wagers
	RoundClosing  RoundStatus = "closing"  // wagering closed, drawn or awaiting draw
	RoundSettling RoundStatus = "settling" // exclusively claimed by one settler
	RoundSettled  RoundStatus = "settled"  // every wager resolved
)

// ──────────────────────────────────────────────────────────────────────────────
// Period
// ──────────────────────────────────────────────────────────────────────────────

// Period identifies a round: YYYYMMDD × 1000 + sequence within the day.
type Period int64

// NewPeriod builds the period for the seq-th round of day (UTC).
func NewPeriod(day time.Time, seq int) Period {
	d := day.UTC()
	ymd := int64(d.Year())*10000 + int64(d.Month())*100 + int64(d.Day())
	return Period(ymd*1000 + int64(seq))
}

// Seq returns the sequence number within the day.
func (p Period) Seq() int { return int(int64(p) % 1000) }

// Day returns the YYYYMMDD prefix.
func (p Period) Day() int64 { return int64(p) / 1000 }

// Next returns the period following p for a round opening at now. The
// sequence restarts at 1 when the UTC day changes.
func (p Period) Next(now time.Time) Period {
	first := NewPeriod(now, 1)
	if p == 0 || first.Day() != p.Day() {
		return first
	}
	return p + 1
}

func (p Period) String() string { return strconv.FormatInt(int64(p), 10) }

// ParsePeriod parses the decimal string form of a period.
func ParsePeriod(s string) (Period, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid period %q", s)
	}
	return Period(n), nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Permutation
// ──────────────────────────────────────────────────────────────────────────────

// Permutation is a draw outcome: element i is the number placed at position
// i+1. A non-nil Permutation is only valid when Validate returns nil.
type Permutation []int

// Validate checks that p is an ordering of exactly the numbers
// 1..PositionCount.
func (p Permutation) Validate() error {
	if len(p) != PositionCount {
		return newInvariant(InvariantPermutation, "expected %d positions, got %d", PositionCount, len(p))
	}
	var seen [PositionCount + 1]bool
	for i, n := range p {
		if n < 1 || n > PositionCount {
			return newInvariant(InvariantPermutation, "position %d holds out-of-range value %d", i+1, n)
		}
		if seen[n] {
			return newInvariant(InvariantPermutation, "value %d appears more than once", n)
		}
		seen[n] = true
	}
	return nil
}

// At returns the number drawn at the 1-based position.
func (p Permutation) At(position int) int {
	return p[position-1]
}

// Equal reports whether two permutations are identical.
func (p Permutation) Equal(o Permutation) bool {
	if len(p) != len(o) {
		return false
	}
	for i := range p {
		if p[i] != o[i] {
			return false
		}
	}
	return true
}

func (p Permutation) String() string {
	parts := make([]string, len(p))
	for i, n := range p {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}

// ParsePermutation parses the comma-separated storage form and validates it.
func ParsePermutation(s string) (Permutation, error) {
	fields := strings.Split(strings.TrimSpace(s), ",")
	p := make(Permutation, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return nil, newInvariant(InvariantPermutation, "non-numeric value %q", f)
		}
		p = append(p, n)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Value implements driver.Valuer; a nil permutation is stored as NULL.
func (p Permutation) Value() (driver.Value, error) {
	if p == nil {
		return nil, nil
	}
	return p.String(), nil
}

// Scan implements sql.Scanner.
func (p *Permutation) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*p = nil
		return nil
	case string:
		if v == "" {
			*p = nil
			return nil
		}
		parsed, err := ParsePermutation(v)
		if err != nil {
			return err
		}
		*p = parsed
		return nil
	case []byte:
		return p.Scan(string(v))
	default:
		return fmt.Errorf("permutation: unsupported scan type %T", src)
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Round
// ──────────────────────────────────────────────────────────────────────────────

// Round is one instance of the game with a single outcome.
type Round struct {
	Period    Period      `json:"period"     db:"period"`
	Status    RoundStatus `json:"status"     db:"status"`
	Outcome   Permutation `json:"outcome"    db:"outcome"`
	OpensAt   time.Time   `json:"opens_at"   db:"opens_at"`
	ClosesAt  time.Time   `json:"closes_at"  db:"closes_at"`
	DrawnAt   *time.Time  `json:"drawn_at"   db:"drawn_at"`
	ClaimedAt *time.Time  `json:"claimed_at" db:"claimed_at"`
	SettledAt *time.Time  `json:"settled_at" db:"settled_at"`
}

// IsOpen returns true while the round accepts wagers.
func (r *Round) IsOpen() bool { return r.Status == RoundOpen }

// IsDrawn returns true once an outcome has been recorded.
func (r *Round) IsDrawn() bool { return r.Outcome != nil }

// IsSettled returns true after every wager of the round has been resolved.
func (r *Round) IsSettled() bool { return r.Status == RoundSettled }

// SettlementSummary is the round-level result of SettleRound.
type SettlementSummary struct {
	Period         Period          `json:"period"`
	SettledCount   int             `json:"settled_count"`
	WinCount       int             `json:"win_count"`
	AuditCount     int             `json:"audit_count"`
	TotalStake     decimal.Decimal `json:"total_stake"`
	TotalPayout    decimal.Decimal `json:"total_payout"`
	AlreadySettled bool            `json:"already_settled"`
	Outcome        Permutation     `json:"outcome"`
}

// Tally adds one evaluated wager to the summary.
func (s *SettlementSummary) Tally(stake decimal.Decimal, r Result) {
	s.SettledCount++
	s.TotalStake = s.TotalStake.Add(stake)
	if r.Won {
		s.WinCount++
		s.TotalPayout = s.TotalPayout.Add(r.Payout)
	}
	if r.Audit {
		s.AuditCount++
	}
}
