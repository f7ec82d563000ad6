// Package testutil holds helpers shared by package tests.
package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/qazasd2518995/racing10-lottery-website-sub005/internal/domain"
	"github.com/qazasd2518995/racing10-lottery-website-sub005/internal/repository"
	"github.com/shopspring/decimal"
)

// NewDB opens a migrated SQLite database in the test's temp dir.
func NewDB(t testing.TB) *sqlx.DB {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "racing10.db")
	db, err := repository.Open(ctx, repository.DriverSQLite, path, repository.PoolConfig{})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := repository.Migrate(ctx, db); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

// Clock is a settable time source.
type Clock struct{ T time.Time }

// Now returns the current fake time.
func (c *Clock) Now() time.Time { return c.T }

// Advance moves the clock forward.
func (c *Clock) Advance(d time.Duration) { c.T = c.T.Add(d) }

// Day is the fixed test day used for periods.
var Day = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

// Fixture seeds a two-level agent chain with one member.
type Fixture struct {
	Root   domain.Agent
	Child  domain.Agent
	Member domain.Member
}

// SeedChain creates root (rootRate) → child (childRate) → member, all in
// market class A, with wallets.
func SeedChain(t testing.TB, db *sqlx.DB, rootRate, childRate string) Fixture {
	t.Helper()
	ctx := context.Background()
	agents := repository.NewAgentRepository(db)
	wallets := repository.NewWalletRepository(db)

	root := domain.Agent{
		ID:          uuid.New(),
		Username:    "root-" + uuid.NewString()[:8],
		Rate:        domain.NewChainCeiling(decimal.RequireFromString(rootRate)),
		MarketClass: domain.MarketA,
		CreatedAt:   Day,
		UpdatedAt:   Day,
	}
	child := domain.Agent{
		ID:          uuid.New(),
		ParentID:    &root.ID,
		Username:    "agent-" + uuid.NewString()[:8],
		Rate:        domain.NewChainCeiling(decimal.RequireFromString(childRate)),
		MarketClass: domain.MarketA,
		CreatedAt:   Day,
		UpdatedAt:   Day,
	}
	member := domain.Member{ID: uuid.New(), AgentID: child.ID, Username: "member-" + uuid.NewString()[:8], CreatedAt: Day}

	for _, a := range []*domain.Agent{&root, &child} {
		if err := agents.Create(ctx, db, a); err != nil {
			t.Fatalf("seed agent: %v", err)
		}
		if err := wallets.Ensure(ctx, db, a.ID, domain.OwnerAgent, Day); err != nil {
			t.Fatalf("seed wallet: %v", err)
		}
	}
	if err := agents.CreateMember(ctx, &member); err != nil {
		t.Fatalf("seed member: %v", err)
	}
	if err := wallets.Ensure(ctx, db, member.ID, domain.OwnerMember, Day); err != nil {
		t.Fatalf("seed wallet: %v", err)
	}
	return Fixture{Root: root, Child: child, Member: member}
}

// NewWager builds a canonical pending wager.
func NewWager(period domain.Period, memberID uuid.UUID, cat domain.Category, pos int, selector, stake, multiplier string) *domain.Wager {
	return &domain.Wager{
		ID:           uuid.New(),
		Period:       period,
		MemberID:     memberID,
		Category:     cat,
		Position:     pos,
		Selector:     selector,
		Stake:        decimal.RequireFromString(stake),
		Multiplier:   decimal.RequireFromString(multiplier),
		Status:       domain.WagerPending,
		Payout:       decimal.Zero,
		PlacedAt:     Day,
		RebateStatus: domain.RebatePending,
	}
}
