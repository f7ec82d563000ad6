package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ExposureTarget selects whose wagers are aggregated into an Exposure.
type ExposureTarget struct {
	Scope PolicyScope
	ID    *uuid.UUID
}

// TargetOf returns the exposure target governed by p.
func TargetOf(p *ControlPolicy) ExposureTarget {
	return ExposureTarget{Scope: p.Scope, ID: p.TargetID}
}

// Exposure is the aggregated stake a target has on each number at each
// position: position → number → stake.
type Exposure map[int]map[int]decimal.Decimal

// Add accumulates stake on number at position.
func (e Exposure) Add(position, number int, stake decimal.Decimal) {
	m, ok := e[position]
	if !ok {
		m = make(map[int]decimal.Decimal)
		e[position] = m
	}
	m[number] = m[number].Add(stake)
}

// Covered reports whether the target has a positive stake on number at
// position.
func (e Exposure) Covered(position, number int) bool {
	return e[position][number].IsPositive()
}

// CoveredCount returns how many of the given numbers are covered at position.
func (e Exposure) CoveredCount(position int, numbers []int) int {
	n := 0
	for _, v := range numbers {
		if e.Covered(position, v) {
			n++
		}
	}
	return n
}

// Project adds a wager's stake onto the positions and numbers it wins on.
// Sum and dragon/tiger wagers depend on more than one position and are not
// projected.
func (e Exposure) Project(sel Selection, stake decimal.Decimal) {
	switch s := sel.(type) {
	case PositionNumber:
		e.Add(s.Position, s.Number, stake)
	case PositionTwoSided:
		for n := 1; n <= PositionCount; n++ {
			if SideMatches(s.Side, n, PositionBigFrom) {
				e.Add(s.Position, n, stake)
			}
		}
	}
}

// SideMatches reports whether value falls on side given the "big" threshold.
func SideMatches(side Side, value, bigFrom int) bool {
	switch side {
	case SideBig:
		return value >= bigFrom
	case SideSmall:
		return value < bigFrom
	case SideOdd:
		return value%2 == 1
	case SideEven:
		return value%2 == 0
	}
	return false
}
