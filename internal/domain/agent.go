package domain

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Market classes
// ──────────────────────────────────────────────────────────────────────────────

// MarketClass is a configuration bucket with its own global commission cap.
type MarketClass string

const (
	MarketA MarketClass = "A"
	MarketD MarketClass = "D"
)

// MarketCaps maps each market class to the fraction of stake available as
// commission pool.
type MarketCaps map[MarketClass]decimal.Decimal

// Cap returns the commission cap for class.
func (m MarketCaps) Cap(class MarketClass) (decimal.Decimal, error) {
	c, ok := m[class]
	if !ok {
		return decimal.Zero, &ValidationError{Field: "market_class", Value: string(class), Reason: "unknown market class"}
	}
	return c, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// ChainCeiling
// ──────────────────────────────────────────────────────────────────────────────

// ChainCeiling is an agent's rate: the cumulative share of stake paid to the
// agent and everyone below it, not an individual share. An agent earns the
// difference between its own ceiling and the ceiling of the child it was
// reached through.
type ChainCeiling struct {
	d decimal.Decimal
}

// NewChainCeiling wraps a fractional rate (0.011 = 1.1%).
func NewChainCeiling(rate decimal.Decimal) ChainCeiling { return ChainCeiling{d: rate} }

// Decimal returns the raw fraction.
func (c ChainCeiling) Decimal() decimal.Decimal { return c.d }

// Above returns how much of this ceiling is not already covered by below.
// The result is never negative.
func (c ChainCeiling) Above(below decimal.Decimal) decimal.Decimal {
	share := c.d.Sub(below)
	if share.IsNegative() {
		return decimal.Zero
	}
	return share
}

// Exceeds reports whether c is strictly above other.
func (c ChainCeiling) Exceeds(other ChainCeiling) bool { return c.d.GreaterThan(other.d) }

func (c ChainCeiling) String() string { return c.d.String() }

// MarshalJSON encodes the ceiling as its decimal string.
func (c ChainCeiling) MarshalJSON() ([]byte, error) { return c.d.MarshalJSON() }

// UnmarshalJSON decodes a decimal string or number.
func (c *ChainCeiling) UnmarshalJSON(b []byte) error { return c.d.UnmarshalJSON(b) }

// Value implements driver.Valuer.
func (c ChainCeiling) Value() (driver.Value, error) { return c.d.Value() }

// Scan implements sql.Scanner.
func (c *ChainCeiling) Scan(src any) error {
	if err := c.d.Scan(src); err != nil {
		return fmt.Errorf("chain ceiling: %w", err)
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Agent
// ──────────────────────────────────────────────────────────────────────────────

// Agent is a node in the hierarchy. ParentID is nil for a root.
type Agent struct {
	ID          uuid.UUID    `json:"id"           db:"id"`
	ParentID    *uuid.UUID   `json:"parent_id"    db:"parent_id"`
	Username    string       `json:"username"     db:"username"`
	Rate        ChainCeiling `json:"rate"         db:"rate"`
	MarketClass MarketClass  `json:"market_class" db:"market_class"`
	CreatedAt   time.Time    `json:"created_at"   db:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"   db:"updated_at"`
}

// IsRoot returns true for top-level agents.
func (a *Agent) IsRoot() bool { return a.ParentID == nil }

// ValidateRate checks a proposed ceiling for agent against the market cap,
// its parent (nil for a root) and its children. Child ≤ parent ≤ cap is the
// only invariant that keeps the commission walk from overpaying.
func ValidateRate(rate ChainCeiling, class MarketClass, caps MarketCaps, parent *Agent, children []Agent) error {
	if rate.Decimal().IsNegative() {
		return newInvariant(InvariantChainCeiling, "rate %s is negative", rate)
	}
	limit, err := caps.Cap(class)
	if err != nil {
		return err
	}
	if rate.Decimal().GreaterThan(limit) {
		return newInvariant(InvariantCommissionCap, "rate %s exceeds market %s cap %s", rate, class, limit)
	}
	if parent != nil {
		if parent.MarketClass != class {
			return &ValidationError{Field: "market_class", Value: string(class), Reason: "must match parent market class"}
		}
		if rate.Exceeds(parent.Rate) {
			return newInvariant(InvariantChainCeiling, "rate %s exceeds parent %s rate %s", rate, parent.ID, parent.Rate)
		}
	}
	for _, c := range children {
		if c.Rate.Exceeds(rate) {
			return newInvariant(InvariantChainCeiling, "child %s rate %s exceeds proposed rate %s", c.ID, c.Rate, rate)
		}
	}
	return nil
}
