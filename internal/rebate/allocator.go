// Package rebate splits a wager's capped commission pool across the owner's
// agent chain. Agent rates are cumulative ceilings: each agent earns the part
// of its ceiling not already paid to the agents below it.
package rebate

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/qazasd2518995/racing10-lottery-website-sub005/internal/domain"
	"github.com/shopspring/decimal"
)

// Epsilon is the remaining pool at or below which the walk stops.
var Epsilon = decimal.RequireFromString("0.005")

// Input describes one settled wager to allocate.
type Input struct {
	Period  domain.Period
	WagerID uuid.UUID
	Stake   decimal.Decimal
	Cap     decimal.Decimal // market-class commission cap, as a fraction
	// Chain runs from the member's direct agent to the root.
	Chain []domain.Agent
	Now   time.Time
}

// Allocation is the result of one walk.
type Allocation struct {
	Entries  []domain.CommissionEntry
	Pool     decimal.Decimal // stake × cap, floored to currency precision
	Retained decimal.Decimal // left with the platform
}

// Allocate walks the chain and emits one rebate entry per agent that earns a
// positive amount. Amounts are floored to the cent, so the emitted sum never
// exceeds stake × cap. A chain with a parent below its child, or with shares
// adding up to more than the cap, is corrupt configuration and is reported as
// an InvariantViolation without emitting anything.
func Allocate(in Input) (Allocation, error) {
	limit := in.Stake.Mul(in.Cap)
	pool := domain.FloorMoney(limit)
	out := Allocation{Pool: pool, Retained: pool}
	if !pool.IsPositive() {
		return out, nil
	}

	// ── Step 1: shares, checked against the cap before anything is paid ──
	shares := make([]decimal.Decimal, len(in.Chain))
	requested := decimal.Zero
	distributed := decimal.Zero
	for i, agent := range in.Chain {
		if agent.Rate.Decimal().LessThan(distributed) {
			return out, &domain.InvariantViolation{
				Invariant: domain.InvariantChainCeiling,
				Detail:    fmt.Sprintf("agent %s rate %s is below its child's %s", agent.ID, agent.Rate, distributed),
			}
		}
		shares[i] = agent.Rate.Above(distributed)
		requested = requested.Add(shares[i])
		distributed = agent.Rate.Decimal()
	}
	if requested.GreaterThan(in.Cap) {
		return out, &domain.InvariantViolation{
			Invariant: domain.InvariantCommissionCap,
			Detail:    fmt.Sprintf("chain shares %s exceed cap %s for wager %s", requested, in.Cap, in.WagerID),
		}
	}

	// ── Step 2: walk until the pool is spent ──
	remaining := pool
	for i, agent := range in.Chain {
		if remaining.LessThanOrEqual(Epsilon) {
			break
		}
		amount := domain.FloorMoney(decimal.Min(in.Stake.Mul(shares[i]), remaining))
		if !amount.IsPositive() {
			continue
		}
		out.Entries = append(out.Entries, domain.CommissionEntry{
			ID:        uuid.New(),
			Period:    in.Period,
			WagerID:   in.WagerID,
			AgentID:   agent.ID,
			Amount:    amount,
			Kind:      domain.EntryRebate,
			CreatedAt: in.Now,
		})
		remaining = remaining.Sub(amount)
	}

	out.Retained = remaining
	return out, nil
}
