package rebate_test

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/qazasd2518995/racing10-lottery-website-sub005/internal/domain"
	"github.com/qazasd2518995/racing10-lottery-website-sub005/internal/rebate"
	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func agent(rate string) domain.Agent {
	return domain.Agent{ID: uuid.New(), Rate: domain.NewChainCeiling(d(rate)), MarketClass: domain.MarketA}
}

func input(stake, limit string, chain ...domain.Agent) rebate.Input {
	return rebate.Input{
		Period:  20261018001,
		WagerID: uuid.New(),
		Stake:   d(stake),
		Cap:     d(limit),
		Chain:   chain,
		Now:     time.Now(),
	}
}

func TestAllocate_TwoLevelScenario(t *testing.T) {
	a1 := agent("0.005")
	a2 := agent("0.011")
	got, err := rebate.Allocate(input("1000", "0.011", a1, a2))
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(got.Entries))
	}
	if e := got.Entries[0]; e.AgentID != a1.ID || !e.Amount.Equal(d("5.00")) {
		t.Errorf("agent1 entry = %s %s, want 5.00", e.AgentID, e.Amount)
	}
	if e := got.Entries[1]; e.AgentID != a2.ID || !e.Amount.Equal(d("6.00")) {
		t.Errorf("agent2 entry = %s %s, want 6.00", e.AgentID, e.Amount)
	}
	if !got.Retained.IsZero() {
		t.Errorf("platform retained %s, want 0", got.Retained)
	}
	for _, e := range got.Entries {
		if e.Kind != domain.EntryRebate {
			t.Errorf("kind = %s", e.Kind)
		}
	}
}

func TestAllocate_NeverExceedsCap(t *testing.T) {
	chains := map[string][]domain.Agent{
		"flat at cap":    {agent("0.011"), agent("0.011"), agent("0.011")},
		"root below cap": {agent("0.002"), agent("0.004"), agent("0.009")},
		"uneven steps":   {agent("0.0013"), agent("0.0047"), agent("0.011")},
		"deep chain":     {agent("0.001"), agent("0.002"), agent("0.003"), agent("0.004"), agent("0.005"), agent("0.006"), agent("0.011")},
		"empty":          {},
	}
	for _, stake := range []string{"1", "7.77", "33.33", "100", "1234.56", "50000"} {
		for name, chain := range chains {
			in := input(stake, "0.011", chain...)
			got, err := rebate.Allocate(in)
			if err != nil {
				t.Fatalf("%s/%s: %v", name, stake, err)
			}
			limit := in.Stake.Mul(in.Cap)
			total := domain.SumEntries(got.Entries)
			if total.GreaterThan(limit) {
				t.Errorf("%s/%s: allocated %s > stake×cap %s", name, stake, total, limit)
			}
			if !total.Add(got.Retained).Equal(got.Pool) {
				t.Errorf("%s/%s: allocated %s + retained %s != pool %s", name, stake, total, got.Retained, got.Pool)
			}
			for _, e := range got.Entries {
				if !e.Amount.Equal(e.Amount.Truncate(domain.CurrencyPlaces)) {
					t.Errorf("%s/%s: amount %s has sub-cent digits", name, stake, e.Amount)
				}
			}
		}
	}
}

func TestAllocate_FloorsToTheCent(t *testing.T) {
	// 7.77 × 1.1% = 0.08547; rounding to nearest would pay 0.09.
	got, err := rebate.Allocate(input("7.77", "0.011", agent("0.011")))
	if err != nil {
		t.Fatal(err)
	}
	if !got.Pool.Equal(d("0.08")) {
		t.Errorf("pool = %s, want 0.08", got.Pool)
	}
	if len(got.Entries) != 1 || !got.Entries[0].Amount.Equal(d("0.08")) {
		t.Fatalf("entries = %+v", got.Entries)
	}
}

func TestAllocate_RejectsCorruptChain(t *testing.T) {
	cases := []struct {
		name      string
		chain     []domain.Agent
		invariant string
	}{
		{"over cap", []domain.Agent{agent("0.02"), agent("0.03")}, domain.InvariantCommissionCap},
		{"root over cap", []domain.Agent{agent("0.005"), agent("0.012")}, domain.InvariantCommissionCap},
		{"parent below child", []domain.Agent{agent("0.010"), agent("0.003"), agent("0.011")}, domain.InvariantChainCeiling},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := rebate.Allocate(input("1000", "0.011", tc.chain...))
			var iv *domain.InvariantViolation
			if !errors.As(err, &iv) || iv.Invariant != tc.invariant {
				t.Fatalf("err = %v, want %s violation", err, tc.invariant)
			}
			if len(got.Entries) != 0 {
				t.Errorf("corrupt chain emitted %+v", got.Entries)
			}
		})
	}
}

func TestAllocate_RootAtCapExhaustsPool(t *testing.T) {
	got, err := rebate.Allocate(input("2500", "0.041", agent("0.01"), agent("0.025"), agent("0.041")))
	if err != nil {
		t.Fatal(err)
	}
	if total := domain.SumEntries(got.Entries); !total.Equal(got.Pool) {
		t.Errorf("allocated %s, want full pool %s", total, got.Pool)
	}
	want := []string{"25", "37.5", "40"}
	for i, e := range got.Entries {
		if !e.Amount.Equal(d(want[i])) {
			t.Errorf("entry %d = %s, want %s", i, e.Amount, want[i])
		}
	}
}

func TestAllocate_RootBelowCapLeavesRemainder(t *testing.T) {
	got, err := rebate.Allocate(input("1000", "0.011", agent("0.003"), agent("0.008")))
	if err != nil {
		t.Fatal(err)
	}
	if !got.Retained.Equal(d("3")) {
		t.Errorf("retained = %s, want 3", got.Retained)
	}
}

func TestAllocate_SkipsZeroShares(t *testing.T) {
	// Parent with the same ceiling as its child earns nothing.
	a1, a2, a3 := agent("0.005"), agent("0.005"), agent("0.011")
	got, err := rebate.Allocate(input("1000", "0.011", a1, a2, a3))
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Entries) != 2 || got.Entries[0].AgentID != a1.ID || got.Entries[1].AgentID != a3.ID {
		t.Fatalf("entries = %+v", got.Entries)
	}
}

func TestAllocate_StopsWhenPoolExhausted(t *testing.T) {
	// The first agent takes the full pool; later agents get no entry.
	got, err := rebate.Allocate(input("100", "0.011", agent("0.011"), agent("0.011"), agent("0.011")))
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Entries) != 1 || !got.Entries[0].Amount.Equal(d("1.1")) {
		t.Fatalf("entries = %+v", got.Entries)
	}
}

func TestAllocate_TinyStake(t *testing.T) {
	got, err := rebate.Allocate(input("0.1", "0.011", agent("0.011")))
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Entries) != 0 {
		t.Errorf("a pool that rounds to zero should emit nothing, got %+v", got.Entries)
	}
}
