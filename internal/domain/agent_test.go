package domain_test

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/qazasd2518995/racing10-lottery-website-sub005/internal/domain"
	"github.com/shopspring/decimal"
)

var testCaps = domain.MarketCaps{
	domain.MarketA: decimal.RequireFromString("0.011"),
	domain.MarketD: decimal.RequireFromString("0.041"),
}

func ceiling(s string) domain.ChainCeiling {
	return domain.NewChainCeiling(decimal.RequireFromString(s))
}

func TestChainCeiling_Above(t *testing.T) {
	c := ceiling("0.011")
	if got := c.Above(decimal.RequireFromString("0.005")); !got.Equal(decimal.RequireFromString("0.006")) {
		t.Errorf("Above = %s, want 0.006", got)
	}
	if got := c.Above(decimal.RequireFromString("0.02")); !got.IsZero() {
		t.Errorf("Above a higher ceiling = %s, want 0", got)
	}
}

func TestValidateRate(t *testing.T) {
	parent := &domain.Agent{ID: uuid.New(), Rate: ceiling("0.008"), MarketClass: domain.MarketA}
	child := domain.Agent{ID: uuid.New(), Rate: ceiling("0.004"), MarketClass: domain.MarketA}

	tests := []struct {
		name      string
		rate      string
		class     domain.MarketClass
		parent    *domain.Agent
		children  []domain.Agent
		invariant string
		valid     bool
	}{
		{name: "root at cap", rate: "0.011", class: domain.MarketA, valid: true},
		{name: "class D root", rate: "0.041", class: domain.MarketD, valid: true},
		{name: "root over cap", rate: "0.012", class: domain.MarketA, invariant: domain.InvariantCommissionCap},
		{name: "child under parent", rate: "0.006", class: domain.MarketA, parent: parent, children: []domain.Agent{child}, valid: true},
		{name: "child equal parent", rate: "0.008", class: domain.MarketA, parent: parent, valid: true},
		{name: "child over parent", rate: "0.009", class: domain.MarketA, parent: parent, invariant: domain.InvariantChainCeiling},
		{name: "below own child", rate: "0.003", class: domain.MarketA, parent: parent, children: []domain.Agent{child}, invariant: domain.InvariantChainCeiling},
		{name: "negative", rate: "-0.001", class: domain.MarketA, invariant: domain.InvariantChainCeiling},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := domain.ValidateRate(ceiling(tt.rate), tt.class, testCaps, tt.parent, tt.children)
			if tt.valid {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var iv *domain.InvariantViolation
			if !errors.As(err, &iv) {
				t.Fatalf("want InvariantViolation, got %v", err)
			}
			if iv.Invariant != tt.invariant {
				t.Errorf("Invariant = %q, want %q", iv.Invariant, tt.invariant)
			}
		})
	}

	err := domain.ValidateRate(ceiling("0.005"), domain.MarketD, testCaps, parent, nil)
	if !domain.IsValidation(err) {
		t.Errorf("class mismatch with parent: want ValidationError, got %v", err)
	}
}

func TestChainCeiling_Scan(t *testing.T) {
	var c domain.ChainCeiling
	if err := c.Scan("0.0110"); err != nil {
		t.Fatal(err)
	}
	if !c.Decimal().Equal(decimal.RequireFromString("0.011")) {
		t.Errorf("Scan = %s", c)
	}
	if err := c.Scan(0.005); err != nil {
		t.Fatal(err)
	}
	if !c.Decimal().Equal(decimal.RequireFromString("0.005")) {
		t.Errorf("Scan(float) = %s", c)
	}
}
