package repository_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/qazasd2518995/racing10-lottery-website-sub005/internal/domain"
	"github.com/qazasd2518995/racing10-lottery-website-sub005/internal/repository"
	"github.com/qazasd2518995/racing10-lottery-website-sub005/internal/testutil"
	"github.com/shopspring/decimal"
)

var period = domain.NewPeriod(testutil.Day, 1)

func createRound(t *testing.T, rounds *repository.RoundRepository) {
	t.Helper()
	created, err := rounds.Create(context.Background(), &domain.Round{
		Period:   period,
		Status:   domain.RoundOpen,
		OpensAt:  testutil.Day,
		ClosesAt: testutil.Day.Add(5 * time.Minute),
	})
	if err != nil || !created {
		t.Fatalf("create round: created=%v err=%v", created, err)
	}
}

// ── Migrations ────────────────────────────────────────────────────────────────

func TestMigrate_Idempotent(t *testing.T) {
	db := testutil.NewDB(t)
	if err := repository.Migrate(context.Background(), db); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	var n int
	if err := db.Get(&n, `SELECT COUNT(*) FROM schema_migrations`); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("schema_migrations rows = %d, want 1", n)
	}
}

// ── Rounds ────────────────────────────────────────────────────────────────────

func TestRoundRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	rounds := repository.NewRoundRepository(db)
	createRound(t, rounds)

	if created, err := rounds.Create(ctx, &domain.Round{Period: period, Status: domain.RoundOpen,
		OpensAt: testutil.Day, ClosesAt: testutil.Day}); err != nil || created {
		t.Fatalf("duplicate create: created=%v err=%v", created, err)
	}

	if err := rounds.Close(ctx, period); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := rounds.Close(ctx, period); !errors.Is(err, domain.ErrRoundNotOpen) {
		t.Fatalf("second Close: want ErrRoundNotOpen, got %v", err)
	}

	outcome := domain.Permutation{7, 2, 3, 4, 5, 6, 8, 9, 10, 1}
	if err := rounds.SetOutcome(ctx, period, outcome, testutil.Day); err != nil {
		t.Fatalf("SetOutcome: %v", err)
	}
	if err := rounds.SetOutcome(ctx, period, outcome, testutil.Day); err != nil {
		t.Fatalf("same outcome again should be a no-op: %v", err)
	}
	other := domain.Permutation{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	if err := rounds.SetOutcome(ctx, period, other, testutil.Day); !errors.Is(err, domain.ErrOutcomeMismatch) {
		t.Fatalf("different outcome: want ErrOutcomeMismatch, got %v", err)
	}

	rd, err := rounds.Get(ctx, period)
	if err != nil {
		t.Fatal(err)
	}
	if rd.Status != domain.RoundClosing || !rd.Outcome.Equal(outcome) || rd.DrawnAt == nil {
		t.Fatalf("round after draw = %+v", rd)
	}

	pending, err := rounds.ListAwaitingSettlement(ctx)
	if err != nil || len(pending) != 1 {
		t.Fatalf("ListAwaitingSettlement = %d, %v", len(pending), err)
	}

	if _, err := rounds.Get(ctx, period+1); !domain.IsNotFound(err) {
		t.Errorf("Get missing: %v", err)
	}
}

func TestRoundRepository_ClaimIsExclusive(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	rounds := repository.NewRoundRepository(db)
	createRound(t, rounds)

	const workers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins, conflicts := 0, 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := rounds.ClaimForSettlement(ctx, period, testutil.Day)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, domain.ErrConcurrencyConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	if wins != 1 || conflicts != workers-1 {
		t.Fatalf("wins=%d conflicts=%d, want 1/%d", wins, conflicts, workers-1)
	}

	if err := rounds.ReleaseClaim(ctx, period); err != nil {
		t.Fatal(err)
	}
	if err := rounds.ClaimForSettlement(ctx, period, testutil.Day); err != nil {
		t.Fatalf("claim after release: %v", err)
	}
	n, err := rounds.ReleaseStaleClaims(ctx, testutil.Day.Add(time.Hour))
	if err != nil || n != 1 {
		t.Fatalf("ReleaseStaleClaims = %d, %v", n, err)
	}
}

// ── Wagers & exposure ─────────────────────────────────────────────────────────

func TestWagerRepository_ExposureAndSettle(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	fx := testutil.SeedChain(t, db, "0.011", "0.005")
	other := testutil.SeedChain(t, db, "0.011", "0.005")
	wagers := repository.NewWagerRepository(db)

	mine := []*domain.Wager{
		testutil.NewWager(period, fx.Member.ID, domain.CategoryPositionNumber, 1, "3", "100", "9.8"),
		testutil.NewWager(period, fx.Member.ID, domain.CategoryPositionNumber, 1, "3", "50", "9.8"),
		testutil.NewWager(period, fx.Member.ID, domain.CategoryPositionTwoSided, 2, "odd", "20", "1.98"),
		testutil.NewWager(period, fx.Member.ID, domain.CategoryTopTwoSum, 0, "big", "10", "2"),
	}
	theirs := testutil.NewWager(period, other.Member.ID, domain.CategoryPositionNumber, 1, "4", "70", "9.8")
	for _, w := range append(mine, theirs) {
		if err := wagers.Create(ctx, w); err != nil {
			t.Fatal(err)
		}
	}

	exp, skipped, err := wagers.GetAggregatedExposure(ctx, period, domain.ExposureTarget{Scope: domain.ScopeMember, ID: &fx.Member.ID})
	if err != nil || skipped != 0 {
		t.Fatalf("member exposure: skipped=%d err=%v", skipped, err)
	}
	if got := exp[1][3]; !got.Equal(decimal.NewFromInt(150)) {
		t.Errorf("member exposure at 1/3 = %s, want 150", got)
	}
	if exp.Covered(1, 4) {
		t.Error("member exposure must not include other members")
	}
	if exp.CoveredCount(2, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}) != 5 {
		t.Error("odd wager should cover five numbers at position 2")
	}

	group, _, err := wagers.GetAggregatedExposure(ctx, period, domain.ExposureTarget{Scope: domain.ScopeGroup, ID: &other.Child.ID})
	if err != nil {
		t.Fatal(err)
	}
	if !group.Covered(1, 4) || group.Covered(1, 3) {
		t.Errorf("group exposure = %v", group)
	}

	global, _, err := wagers.GetAggregatedExposure(ctx, period, domain.ExposureTarget{Scope: domain.ScopeGlobal})
	if err != nil {
		t.Fatal(err)
	}
	if !global.Covered(1, 3) || !global.Covered(1, 4) {
		t.Errorf("global exposure = %v", global)
	}

	open, err := wagers.GetOpenWagers(ctx, period)
	if err != nil || len(open) != 5 {
		t.Fatalf("GetOpenWagers = %d, %v", len(open), err)
	}

	res := domain.Result{WagerID: mine[0].ID, Won: true, Payout: decimal.NewFromInt(980)}
	tx := db.MustBeginTx(ctx, nil)
	applied, err := wagers.MarkSettled(ctx, tx, res, testutil.Day)
	if err != nil || !applied {
		t.Fatalf("MarkSettled = %v, %v", applied, err)
	}
	again, err := wagers.MarkSettled(ctx, tx, res, testutil.Day)
	if err != nil || again {
		t.Fatalf("second MarkSettled = %v, %v", again, err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}

	got, err := wagers.GetByID(ctx, mine[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.WagerWon || !got.Payout.Equal(decimal.NewFromInt(980)) || got.SettledAt == nil {
		t.Errorf("settled wager = %+v", got)
	}
	open, _ = wagers.GetOpenWagers(ctx, period)
	if len(open) != 4 {
		t.Errorf("open after settle = %d, want 4", len(open))
	}

	due, err := wagers.ListRebateDue(ctx, domain.RebatePending, 10)
	if err != nil || len(due) != 1 {
		t.Fatalf("ListRebateDue = %d, %v", len(due), err)
	}
	if err := wagers.SetRebateStatus(ctx, db, mine[0].ID, domain.RebateFailed, "boom"); err != nil {
		t.Fatal(err)
	}
	failed, _ := wagers.ListRebateDue(ctx, domain.RebateFailed, 10)
	if len(failed) != 1 || failed[0].RebateError != "boom" {
		t.Errorf("failed rebates = %+v", failed)
	}
}

func TestWagerRepository_ExposureCountsUndecodable(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	fx := testutil.SeedChain(t, db, "0.011", "0.005")
	wagers := repository.NewWagerRepository(db)

	good := testutil.NewWager(period, fx.Member.ID, domain.CategoryPositionNumber, 3, "8", "40", "9.8")
	bad := testutil.NewWager(period, fx.Member.ID, domain.CategoryPositionNumber, 3, "eleven", "40", "9.8")
	for _, w := range []*domain.Wager{good, bad} {
		if err := wagers.Create(ctx, w); err != nil {
			t.Fatal(err)
		}
	}
	exp, skipped, err := wagers.GetAggregatedExposure(ctx, period, domain.ExposureTarget{Scope: domain.ScopeGlobal})
	if err != nil {
		t.Fatal(err)
	}
	if skipped != 1 || !exp.Covered(3, 8) {
		t.Errorf("skipped=%d exposure=%v, want 1 skipped and 3/8 covered", skipped, exp)
	}
}

func TestWagerRepository_PlaceRequiresOpenRound(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	fx := testutil.SeedChain(t, db, "0.011", "0.005")
	rounds := repository.NewRoundRepository(db)
	wagers := repository.NewWagerRepository(db)
	newWager := func() *domain.Wager {
		return testutil.NewWager(period, fx.Member.ID, domain.CategoryPositionNumber, 1, "3", "100", "9.8")
	}

	if err := wagers.Place(ctx, newWager()); !errors.Is(err, domain.ErrRoundNotFound) {
		t.Fatalf("place before round exists: %v", err)
	}

	createRound(t, rounds)
	if err := wagers.Place(ctx, newWager()); err != nil {
		t.Fatalf("place into open round: %v", err)
	}

	// Once settlement has claimed the round nothing may slip in behind it.
	if err := rounds.ClaimForSettlement(ctx, period, testutil.Day); err != nil {
		t.Fatal(err)
	}
	late := newWager()
	if err := wagers.Place(ctx, late); !errors.Is(err, domain.ErrRoundNotOpen) {
		t.Fatalf("place after claim: %v, want ErrRoundNotOpen", err)
	}
	if _, err := wagers.GetByID(ctx, late.ID); !errors.Is(err, domain.ErrWagerNotFound) {
		t.Errorf("rejected wager was stored: %v", err)
	}
	if open, err := wagers.GetOpenWagers(ctx, period); err != nil || len(open) != 1 {
		t.Errorf("GetOpenWagers = %d, %v, want 1", len(open), err)
	}
}

// ── Agents ────────────────────────────────────────────────────────────────────

func TestAgentRepository_Ancestry(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	fx := testutil.SeedChain(t, db, "0.011", "0.005")
	agents := repository.NewAgentRepository(db)

	chain, err := agents.Ancestry(ctx, fx.Child.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(chain) != 2 || chain[0].ID != fx.Child.ID || chain[1].ID != fx.Root.ID {
		t.Fatalf("chain = %+v", chain)
	}
	if !chain[1].Rate.Decimal().Equal(decimal.RequireFromString("0.011")) {
		t.Errorf("root rate = %s", chain[1].Rate)
	}

	missing := uuid.New()
	orphan := domain.Agent{ID: uuid.New(), ParentID: &missing, Username: "orphan",
		Rate: domain.NewChainCeiling(decimal.RequireFromString("0.003")), MarketClass: domain.MarketA,
		CreatedAt: testutil.Day, UpdatedAt: testutil.Day}
	if err := agents.Create(ctx, db, &orphan); err != nil {
		t.Fatal(err)
	}
	chain, err = agents.Ancestry(ctx, orphan.ID)
	var ce *domain.ChainIntegrityError
	if !errors.As(err, &ce) {
		t.Fatalf("want ChainIntegrityError, got %v", err)
	}
	if len(chain) != 1 || ce.ParentID != missing.String() {
		t.Errorf("truncated chain = %+v, err = %v", chain, ce)
	}

	// Two agents pointing at each other.
	a, b := uuid.New(), uuid.New()
	for _, ag := range []domain.Agent{
		{ID: a, ParentID: &b, Username: "loop-a", Rate: orphan.Rate, MarketClass: domain.MarketA, CreatedAt: testutil.Day, UpdatedAt: testutil.Day},
		{ID: b, ParentID: &a, Username: "loop-b", Rate: orphan.Rate, MarketClass: domain.MarketA, CreatedAt: testutil.Day, UpdatedAt: testutil.Day},
	} {
		if err := agents.Create(ctx, db, &ag); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := agents.Ancestry(ctx, a); !domain.IsInvariantViolation(err) {
		t.Errorf("cycle: want InvariantViolation, got %v", err)
	}
}

func TestAgentRepository_LockFamily(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	fx := testutil.SeedChain(t, db, "0.011", "0.005")
	agents := repository.NewAgentRepository(db)

	tx := db.MustBeginTx(ctx, nil)
	defer tx.Rollback()
	for _, id := range []uuid.UUID{fx.Root.ID, fx.Child.ID} {
		if err := agents.LockFamily(ctx, tx, id); err != nil {
			t.Errorf("lock family of %s: %v", id, err)
		}
	}
	if err := agents.LockFamily(ctx, tx, uuid.New()); !errors.Is(err, domain.ErrAgentNotFound) {
		t.Errorf("unknown agent: err = %v", err)
	}
}

// ── Ledger & wallets ──────────────────────────────────────────────────────────

func TestCommissionRepository_UniquePerWagerAgent(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	ledger := repository.NewCommissionRepository(db)
	wagerID, agentID := uuid.New(), uuid.New()

	entry := func() *domain.CommissionEntry {
		return &domain.CommissionEntry{ID: uuid.New(), Period: period, WagerID: wagerID, AgentID: agentID,
			Amount: decimal.NewFromInt(5), Kind: domain.EntryRebate, CreatedAt: testutil.Day}
	}

	tx := db.MustBeginTx(ctx, nil)
	first, err := ledger.Insert(ctx, tx, entry())
	if err != nil || !first {
		t.Fatalf("first insert = %v, %v", first, err)
	}
	dup, err := ledger.Insert(ctx, tx, entry())
	if err != nil || dup {
		t.Fatalf("duplicate insert = %v, %v", dup, err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}

	entries, err := ledger.ListByWager(ctx, db, wagerID)
	if err != nil || len(entries) != 1 {
		t.Fatalf("entries = %d, %v", len(entries), err)
	}
	net, err := ledger.NetForWager(ctx, wagerID)
	if err != nil || !net.Equal(decimal.NewFromInt(5)) {
		t.Errorf("NetForWager = %s, %v", net, err)
	}
}

func TestWalletRepository_CreditIsAtomic(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	wallets := repository.NewWalletRepository(db)
	owner := uuid.New()
	if err := wallets.Ensure(ctx, db, owner, domain.OwnerAgent, testutil.Day); err != nil {
		t.Fatal(err)
	}
	if err := wallets.Ensure(ctx, db, owner, domain.OwnerAgent, testutil.Day); err != nil {
		t.Fatalf("second Ensure: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tx, err := db.BeginTxx(ctx, nil)
			if err != nil {
				t.Error(err)
				return
			}
			if err := wallets.Credit(ctx, tx, owner, decimal.NewFromInt(5), domain.TxCommission, nil, "test", testutil.Day); err != nil {
				tx.Rollback()
				t.Error(err)
				return
			}
			if err := tx.Commit(); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	w, err := wallets.GetByOwner(ctx, owner)
	if err != nil {
		t.Fatal(err)
	}
	if !w.Balance.Equal(decimal.NewFromInt(100)) {
		t.Errorf("balance = %s, want 100", w.Balance)
	}
	txns, err := wallets.GetTransactions(ctx, owner, 50, 0)
	if err != nil || len(txns) != 20 {
		t.Fatalf("transactions = %d, %v", len(txns), err)
	}

	tx := db.MustBeginTx(ctx, nil)
	defer tx.Rollback()
	if _, _, err := wallets.AddBalance(ctx, tx, uuid.New(), decimal.NewFromInt(1), testutil.Day); !errors.Is(err, domain.ErrWalletNotFound) {
		t.Errorf("missing wallet: want ErrWalletNotFound, got %v", err)
	}
}
