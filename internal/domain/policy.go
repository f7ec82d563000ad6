package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PolicyScope is the breadth of a control policy's target.
type PolicyScope string

const (
	ScopeMember PolicyScope = "member" // a single member
	ScopeGroup  PolicyScope = "group"  // every member of one direct agent
	ScopeGlobal PolicyScope = "global" // every member
)

// specificity orders scopes; higher wins.
func (s PolicyScope) specificity() int {
	switch s {
	case ScopeMember:
		return 3
	case ScopeGroup:
		return 2
	case ScopeGlobal:
		return 1
	}
	return 0
}

// Valid reports whether s is a known scope.
func (s PolicyScope) Valid() bool { return s.specificity() > 0 }

// PolicyMode is the direction of the bias.
type PolicyMode string

const (
	ModeWin  PolicyMode = "win"
	ModeLoss PolicyMode = "loss"
)

// ControlPolicy is an operator-configured bias toward a win or loss rate for
// a target member or group.
type ControlPolicy struct {
	ID          uuid.UUID       `json:"id"           db:"id"`
	Scope       PolicyScope     `json:"scope"        db:"scope"`
	TargetID    *uuid.UUID      `json:"target_id"    db:"target_id"`
	Mode        PolicyMode      `json:"mode"         db:"mode"`
	WinRate     decimal.Decimal `json:"win_rate"     db:"win_rate"` // percent, 0-100
	ActivatesAt Period          `json:"activates_at" db:"activates_at"`
	ExpiresAt   *Period         `json:"expires_at"   db:"expires_at"`
	Enabled     bool            `json:"enabled"      db:"enabled"`
	CreatedBy   string          `json:"created_by"   db:"created_by"`
	CreatedAt   time.Time       `json:"created_at"   db:"created_at"`
}

// IsActiveAt reports whether the policy governs the given round.
func (p *ControlPolicy) IsActiveAt(period Period) bool {
	if !p.Enabled || period < p.ActivatesAt {
		return false
	}
	return p.ExpiresAt == nil || period < *p.ExpiresAt
}

// Probability returns the target win rate as a fraction in [0, 1].
func (p *ControlPolicy) Probability() float64 {
	f := p.WinRate.Div(decimal.NewFromInt(100)).InexactFloat64()
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}

// Validate checks the policy before it is written.
func (p *ControlPolicy) Validate() error {
	if !p.Scope.Valid() {
		return &ValidationError{Field: "scope", Value: string(p.Scope), Reason: "must be member, group or global"}
	}
	if p.Mode != ModeWin && p.Mode != ModeLoss {
		return &ValidationError{Field: "mode", Value: string(p.Mode), Reason: "must be win or loss"}
	}
	if p.WinRate.IsNegative() || p.WinRate.GreaterThan(decimal.NewFromInt(100)) {
		return &ValidationError{Field: "win_rate", Value: p.WinRate.String(), Reason: "must be between 0 and 100"}
	}
	if p.Scope == ScopeGlobal && p.TargetID != nil {
		return &ValidationError{Field: "target_id", Reason: "global policies have no target"}
	}
	if p.Scope != ScopeGlobal && p.TargetID == nil {
		return &ValidationError{Field: "target_id", Reason: "required for member and group policies"}
	}
	if p.ExpiresAt != nil && *p.ExpiresAt <= p.ActivatesAt {
		return &ValidationError{Field: "expires_at", Value: p.ExpiresAt.String(), Reason: "must be after activation"}
	}
	return nil
}

// SelectAuthoritative picks the single policy that governs period: the most
// specific scope among enabled, active policies, latest activation first.
// It returns nil when none applies.
func SelectAuthoritative(policies []ControlPolicy, period Period) *ControlPolicy {
	var best *ControlPolicy
	for i := range policies {
		p := &policies[i]
		if !p.IsActiveAt(period) {
			continue
		}
		if best == nil {
			best = p
			continue
		}
		ps, bs := p.Scope.specificity(), best.Scope.specificity()
		if ps > bs || (ps == bs && p.ActivatesAt > best.ActivatesAt) {
			best = p
		}
	}
	return best
}
