package scheduler_test

import (
	"context"
	"io"
	"log/slog"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/qazasd2518995/racing10-lottery-website-sub005/internal/cache"
	"github.com/qazasd2518995/racing10-lottery-website-sub005/internal/config"
	"github.com/qazasd2518995/racing10-lottery-website-sub005/internal/domain"
	"github.com/qazasd2518995/racing10-lottery-website-sub005/internal/outcome"
	"github.com/qazasd2518995/racing10-lottery-website-sub005/internal/repository"
	"github.com/qazasd2518995/racing10-lottery-website-sub005/internal/scheduler"
	"github.com/qazasd2518995/racing10-lottery-website-sub005/internal/service"
	"github.com/qazasd2518995/racing10-lottery-website-sub005/internal/testutil"
	"github.com/qazasd2518995/racing10-lottery-website-sub005/internal/ws"
	"github.com/shopspring/decimal"
)

type recorder struct {
	mu      sync.Mutex
	opened  []domain.Period
	draws   []domain.Period
	settled []domain.Period
}

func (r *recorder) BroadcastRoundOpened(m ws.RoundOpenedMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opened = append(r.opened, m.Period)
}

func (r *recorder) BroadcastDrawResult(m ws.DrawResultMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.draws = append(r.draws, m.Period)
}

func (r *recorder) BroadcastRoundSettled(m ws.RoundSettledMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settled = append(r.settled, m.Period)
}

func (r *recorder) settledCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.settled)
}

type fixture struct {
	fx      testutil.Fixture
	rounds  *repository.RoundRepository
	wagers  *repository.WagerRepository
	wallets *repository.WalletRepository
	pointer *cache.RoundPointer
	hub     *recorder
	sched   *scheduler.Scheduler
}

func start(t *testing.T) (*fixture, context.Context) {
	t.Helper()
	db := testutil.NewDB(t)
	clock := &testutil.Clock{T: testutil.Day}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	caps := domain.MarketCaps{domain.MarketA: decimal.RequireFromString("0.011")}

	f := &fixture{
		fx:      testutil.SeedChain(t, db, "0.011", "0.005"),
		rounds:  repository.NewRoundRepository(db),
		wagers:  repository.NewWagerRepository(db),
		wallets: repository.NewWalletRepository(db),
		pointer: cache.NewRoundPointer(cache.NewMemoryStore(), "current"),
		hub:     &recorder{},
	}
	agents := repository.NewAgentRepository(db)
	policies := service.NewPolicyService(repository.NewPolicyRepository(db), log, clock.Now)
	svc := scheduler.Services{
		Rounds:     service.NewRoundService(f.rounds, f.wagers, f.pointer, log, clock.Now),
		Outcomes:   service.NewOutcomeService(f.rounds, f.wagers, policies, outcome.NewControllerWithSource(rand.NewPCG(3, 4)), log, clock.Now),
		Settlement: service.NewSettlementService(db, f.rounds, f.wagers, f.wallets, log, clock.Now),
		Rebates: service.NewRebateService(db, f.wagers, agents, repository.NewCommissionRepository(db), f.wallets,
			caps, 2, log, clock.Now),
	}
	cfg := config.DrawConfig{
		RoundSchedule:    "@yearly",
		RecoverySchedule: "@yearly",
		StaleClaimAfter:  time.Minute,
		SettleTimeout:    5 * time.Second,
		PipelineBuffer:   4,
	}
	f.sched = scheduler.NewScheduler(svc, f.hub, cfg, 100, log)

	ctx, cancel := context.WithCancel(context.Background())
	if err := f.sched.Start(ctx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		cancel()
		f.sched.Wait()
	})
	return f, ctx
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestScheduler_TickDrivesRoundThroughPipeline(t *testing.T) {
	f, ctx := start(t)

	f.sched.Tick(ctx)
	first := domain.NewPeriod(testutil.Day, 1)
	if cur, err := f.pointer.Current(ctx); err != nil || cur != first {
		t.Fatalf("pointer = %v, %v", cur, err)
	}

	w := testutil.NewWager(first, f.fx.Member.ID, domain.CategoryTopTwoSum, 0, "big", "1000", "2")
	if err := f.wagers.Create(ctx, w); err != nil {
		t.Fatal(err)
	}

	f.sched.Tick(ctx)
	waitFor(t, "round settled", func() bool {
		rd, err := f.rounds.Get(ctx, first)
		return err == nil && rd.IsSettled()
	})
	waitFor(t, "rebates allocated", func() bool {
		got, err := f.wagers.GetByID(ctx, w.ID)
		return err == nil && got.RebateStatus == domain.RebateDone
	})

	child, err := f.wallets.GetByOwner(ctx, f.fx.Child.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !child.Balance.Equal(decimal.NewFromInt(5)) {
		t.Errorf("child commission = %s, want 5", child.Balance)
	}

	waitFor(t, "settled broadcast", func() bool { return f.hub.settledCount() == 1 })
	f.hub.mu.Lock()
	defer f.hub.mu.Unlock()
	if len(f.hub.opened) != 2 || len(f.hub.draws) != 1 || f.hub.draws[0] != first {
		t.Errorf("broadcasts: opened=%v draws=%v", f.hub.opened, f.hub.draws)
	}
}

func TestScheduler_RecoverFinishesPendingRounds(t *testing.T) {
	f, ctx := start(t)

	// One closed round never drawn, one drawn but never settled.
	undrawn := domain.NewPeriod(testutil.Day, 1)
	unsettled := domain.NewPeriod(testutil.Day, 2)
	for _, p := range []domain.Period{undrawn, unsettled} {
		if _, err := f.rounds.Create(ctx, &domain.Round{Period: p, Status: domain.RoundOpen, OpensAt: testutil.Day, ClosesAt: testutil.Day}); err != nil {
			t.Fatal(err)
		}
		if err := f.rounds.Close(ctx, p); err != nil {
			t.Fatal(err)
		}
	}
	if err := f.rounds.SetOutcome(ctx, unsettled, domain.Permutation{10, 9, 8, 7, 6, 5, 4, 3, 2, 1}, testutil.Day); err != nil {
		t.Fatal(err)
	}

	f.sched.Recover(ctx)
	for _, p := range []domain.Period{undrawn, unsettled} {
		waitFor(t, "round "+p.String()+" settled", func() bool {
			rd, err := f.rounds.Get(ctx, p)
			return err == nil && rd.IsSettled()
		})
	}
	rd, _ := f.rounds.Get(ctx, unsettled)
	if !rd.Outcome.Equal(domain.Permutation{10, 9, 8, 7, 6, 5, 4, 3, 2, 1}) {
		t.Errorf("recorded outcome replaced: %s", rd.Outcome)
	}
}
