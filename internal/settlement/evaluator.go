// Package settlement resolves wagers against a finalized outcome. Every
// function here is pure: the same wager and outcome always produce the same
// result.
package settlement

import (
	"errors"

	"github.com/qazasd2518995/racing10-lottery-website-sub005/internal/domain"
	"github.com/shopspring/decimal"
)

// ReasonUnrecognized is recorded for wagers whose category is not canonical.
var ReasonUnrecognized = domain.ErrUnrecognizedCategory.Error()

// Evaluate resolves one wager. outcome must be a valid permutation. A
// malformed wager never panics and never wins: it is lost with a reason and
// flagged for audit.
func Evaluate(w *domain.Wager, outcome domain.Permutation) domain.Result {
	res := domain.Result{WagerID: w.ID, Payout: decimal.Zero}

	sel, err := w.Selection()
	if err != nil {
		var ve *domain.ValidationError
		res.Audit = true
		res.Reason = err.Error()
		if errors.As(err, &ve) && ve.Field == "category" {
			res.Reason = ReasonUnrecognized
		}
		return res
	}

	if w.Stake.IsNegative() || w.Multiplier.IsNegative() {
		res.Reason = "negative stake or multiplier"
		res.Audit = true
		return res
	}

	res.Won = wins(sel, outcome)
	if res.Won {
		res.Payout = w.Stake.Mul(w.Multiplier)
	}
	return res
}

func wins(sel domain.Selection, o domain.Permutation) bool {
	switch s := sel.(type) {
	case domain.PositionNumber:
		return o.At(s.Position) == s.Number
	case domain.PositionTwoSided:
		return domain.SideMatches(s.Side, o.At(s.Position), domain.PositionBigFrom)
	case domain.TopTwoSum:
		sum := o.At(1) + o.At(2)
		if s.Variant == domain.SumExact {
			return sum == s.Value
		}
		return domain.SideMatches(s.Variant, sum, domain.SumBigFrom)
	case domain.DragonTiger:
		first, second := o.At(s.First), o.At(s.Second())
		if s.Side == domain.SideDragon {
			return first > second
		}
		return second > first
	}
	return false
}

// EvaluateAll resolves every wager of a round and builds the round summary.
// An invalid outcome aborts the whole batch.
func EvaluateAll(period domain.Period, wagers []domain.Wager, outcome domain.Permutation) ([]domain.Result, domain.SettlementSummary, error) {
	sum := domain.SettlementSummary{
		Period:      period,
		Outcome:     outcome,
		TotalStake:  decimal.Zero,
		TotalPayout: decimal.Zero,
	}
	if err := outcome.Validate(); err != nil {
		return nil, sum, err
	}

	results := make([]domain.Result, 0, len(wagers))
	for i := range wagers {
		r := Evaluate(&wagers[i], outcome)
		results = append(results, r)
		sum.Tally(wagers[i].Stake, r)
	}
	return results, sum, nil
}
