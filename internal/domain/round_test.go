package domain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/qazasd2518995/racing10-lottery-website-sub005/internal/domain"
)

// ── Period ────────────────────────────────────────────────────────────────────

func TestNewPeriod(t *testing.T) {
	day := time.Date(2026, 10, 18, 13, 0, 0, 0, time.UTC)
	p := domain.NewPeriod(day, 42)
	if p != 20261018042 {
		t.Fatalf("NewPeriod = %d, want 20261018042", p)
	}
	if p.Seq() != 42 {
		t.Errorf("Seq() = %d, want 42", p.Seq())
	}
	if p.Day() != 20261018 {
		t.Errorf("Day() = %d, want 20261018", p.Day())
	}
}

func TestPeriod_Next(t *testing.T) {
	day := time.Date(2026, 10, 18, 23, 59, 0, 0, time.UTC)
	p := domain.NewPeriod(day, 7)

	if got := p.Next(day); got != p+1 {
		t.Errorf("same-day Next = %d, want %d", got, p+1)
	}
	tomorrow := day.Add(2 * time.Minute)
	if got := p.Next(tomorrow); got != 20261019001 {
		t.Errorf("next-day Next = %d, want 20261019001", got)
	}
	var zero domain.Period
	if got := zero.Next(day); got != 20261018001 {
		t.Errorf("zero.Next = %d, want 20261018001", got)
	}
}

func TestParsePeriod(t *testing.T) {
	p, err := domain.ParsePeriod(" 20261018001 ")
	if err != nil || p != 20261018001 {
		t.Fatalf("ParsePeriod = %d, %v", p, err)
	}
	for _, bad := range []string{"", "abc", "-5", "0"} {
		if _, err := domain.ParsePeriod(bad); err == nil {
			t.Errorf("ParsePeriod(%q) should fail", bad)
		}
	}
}

// ── Permutation ───────────────────────────────────────────────────────────────

func TestPermutation_Validate(t *testing.T) {
	tests := []struct {
		name string
		p    domain.Permutation
		ok   bool
	}{
		{"identity", domain.Permutation{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, true},
		{"shuffled", domain.Permutation{7, 2, 3, 4, 5, 6, 8, 9, 10, 1}, true},
		{"short", domain.Permutation{1, 2, 3}, false},
		{"duplicate", domain.Permutation{1, 1, 3, 4, 5, 6, 7, 8, 9, 10}, false},
		{"out of range", domain.Permutation{0, 2, 3, 4, 5, 6, 7, 8, 9, 10}, false},
		{"eleven", domain.Permutation{11, 2, 3, 4, 5, 6, 7, 8, 9, 10}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.p.Validate()
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok {
				var iv *domain.InvariantViolation
				if !errors.As(err, &iv) {
					t.Fatalf("want InvariantViolation, got %v", err)
				}
				if iv.Invariant != domain.InvariantPermutation {
					t.Errorf("Invariant = %q", iv.Invariant)
				}
			}
		})
	}
}

func TestPermutation_ScanValue(t *testing.T) {
	p := domain.Permutation{7, 2, 3, 4, 5, 6, 8, 9, 10, 1}
	v, err := p.Value()
	if err != nil {
		t.Fatal(err)
	}
	if v != "7,2,3,4,5,6,8,9,10,1" {
		t.Fatalf("Value() = %v", v)
	}

	var back domain.Permutation
	if err := back.Scan([]byte(v.(string))); err != nil {
		t.Fatal(err)
	}
	if !back.Equal(p) {
		t.Errorf("Scan = %v, want %v", back, p)
	}
	if back.At(1) != 7 || back.At(10) != 1 {
		t.Errorf("At(1)=%d At(10)=%d", back.At(1), back.At(10))
	}

	var null domain.Permutation
	if err := null.Scan(nil); err != nil || null != nil {
		t.Errorf("Scan(nil) = %v, %v", null, err)
	}
	if v, _ := null.Value(); v != nil {
		t.Errorf("nil Value() = %v, want nil", v)
	}

	var corrupt domain.Permutation
	if err := corrupt.Scan("1,1,3,4,5,6,7,8,9,10"); !domain.IsInvariantViolation(err) {
		t.Errorf("Scan of duplicate values: %v", err)
	}
}
