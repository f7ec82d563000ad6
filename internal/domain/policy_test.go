package domain_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/qazasd2518995/racing10-lottery-website-sub005/internal/domain"
	"github.com/shopspring/decimal"
)

func policy(scope domain.PolicyScope, activates domain.Period, enabled bool) domain.ControlPolicy {
	p := domain.ControlPolicy{
		ID:          uuid.New(),
		Scope:       scope,
		Mode:        domain.ModeWin,
		WinRate:     decimal.NewFromInt(80),
		ActivatesAt: activates,
		Enabled:     enabled,
	}
	if scope != domain.ScopeGlobal {
		id := uuid.New()
		p.TargetID = &id
	}
	return p
}

func TestSelectAuthoritative_MostSpecificWins(t *testing.T) {
	const period domain.Period = 20261018010
	global := policy(domain.ScopeGlobal, 20261018001, true)
	group := policy(domain.ScopeGroup, 20261018002, true)
	member := policy(domain.ScopeMember, 20261018003, true)

	got := domain.SelectAuthoritative([]domain.ControlPolicy{global, member, group}, period)
	if got == nil || got.ID != member.ID {
		t.Fatalf("want member policy, got %+v", got)
	}

	got = domain.SelectAuthoritative([]domain.ControlPolicy{global, group}, period)
	if got == nil || got.ID != group.ID {
		t.Fatalf("want group policy, got %+v", got)
	}
}

func TestSelectAuthoritative_SkipsInactive(t *testing.T) {
	const period domain.Period = 20261018010
	disabled := policy(domain.ScopeMember, 20261018001, false)
	future := policy(domain.ScopeMember, 20261018011, true)
	expired := policy(domain.ScopeGroup, 20261018001, true)
	exp := domain.Period(20261018010)
	expired.ExpiresAt = &exp
	global := policy(domain.ScopeGlobal, 20261018001, true)

	got := domain.SelectAuthoritative([]domain.ControlPolicy{disabled, future, expired, global}, period)
	if got == nil || got.ID != global.ID {
		t.Fatalf("want global fallback, got %+v", got)
	}
	if domain.SelectAuthoritative([]domain.ControlPolicy{disabled, future}, period) != nil {
		t.Error("no active policy should yield nil")
	}
}

func TestSelectAuthoritative_LatestActivationBreaksTies(t *testing.T) {
	older := policy(domain.ScopeGlobal, 20261018001, true)
	newer := policy(domain.ScopeGlobal, 20261018005, true)
	got := domain.SelectAuthoritative([]domain.ControlPolicy{newer, older}, 20261018009)
	if got == nil || got.ID != newer.ID {
		t.Fatalf("want newer policy, got %+v", got)
	}
}

func TestControlPolicy_Validate(t *testing.T) {
	ok := policy(domain.ScopeMember, 20261018001, true)
	if err := ok.Validate(); err != nil {
		t.Fatalf("valid policy rejected: %v", err)
	}

	overRate := ok
	overRate.WinRate = decimal.NewFromInt(101)
	noTarget := ok
	noTarget.TargetID = nil
	badMode := ok
	badMode.Mode = "draw"
	globalWithTarget := policy(domain.ScopeGlobal, 20261018001, true)
	globalWithTarget.TargetID = ok.TargetID

	for name, p := range map[string]domain.ControlPolicy{
		"rate over 100":      overRate,
		"member w/o target":  noTarget,
		"unknown mode":       badMode,
		"global with target": globalWithTarget,
	} {
		if err := p.Validate(); !domain.IsValidation(err) {
			t.Errorf("%s: want ValidationError, got %v", name, err)
		}
	}

	if got := ok.Probability(); got != 0.8 {
		t.Errorf("Probability() = %v, want 0.8", got)
	}
}
