// Package scheduler runs the round lifecycle in the background:
//  1. the round clock (cron) closes the open round and opens the next;
//  2. the draw stage samples each closed round's outcome;
//  3. the settle stage settles drawn rounds and dispatches their rebates;
//  4. the recovery job (cron) re-feeds rounds left pending and retries
//     failed rebates.
//
// Stages are connected by channels, so settling round N overlaps drawing
// round N+1.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/qazasd2518995/racing10-lottery-website-sub005/internal/config"
	"github.com/qazasd2518995/racing10-lottery-website-sub005/internal/domain"
	"github.com/qazasd2518995/racing10-lottery-website-sub005/internal/service"
	"github.com/qazasd2518995/racing10-lottery-website-sub005/internal/ws"
	"github.com/robfig/cron/v3"
)

// ──────────────────────────────────────────────────────────────────────────────
// Notifier interface: minimally required from the Hub
// ──────────────────────────────────────────────────────────────────────────────

// Notifier defines the broadcast operations the Scheduler needs from the
// WebSocket hub. Declared here so the scheduler does not depend on the hub
// implementation.
type Notifier interface {
	BroadcastRoundOpened(msg ws.RoundOpenedMessage)
	BroadcastDrawResult(msg ws.DrawResultMessage)
	BroadcastRoundSettled(msg ws.RoundSettledMessage)
}

// Services bundles what the pipeline drives.
type Services struct {
	Rounds     *service.RoundService
	Outcomes   *service.OutcomeService
	Settlement *service.SettlementService
	Rebates    *service.RebateService
}

// drawn is a round handed from the draw stage to the settle stage. A nil
// outcome settles against the recorded draw.
type drawn struct {
	period  domain.Period
	outcome domain.Permutation
}

// ──────────────────────────────────────────────────────────────────────────────
// Scheduler
// ──────────────────────────────────────────────────────────────────────────────

// Scheduler wires together the services and runs the round pipeline.
// Call Start(ctx) once from main(); cancel the context and call Wait to shut
// it down gracefully.
type Scheduler struct {
	svc         Services
	hub         Notifier
	cfg         config.DrawConfig
	retryBatch  int
	logger      *slog.Logger
	parser      cron.Parser
	cron        *cron.Cron
	roundSched  cron.Schedule
	drawQueue   chan domain.Period
	settleQueue chan drawn
	wg          sync.WaitGroup
}

// NewScheduler creates a Scheduler. hub may be nil.
func NewScheduler(svc Services, hub Notifier, cfg config.DrawConfig, retryBatch int, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	buf := cfg.PipelineBuffer
	if buf < 1 {
		buf = 1
	}
	return &Scheduler{
		svc:         svc,
		hub:         hub,
		cfg:         cfg,
		retryBatch:  retryBatch,
		logger:      logger,
		parser:      cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		drawQueue:   make(chan domain.Period, buf),
		settleQueue: make(chan drawn, buf),
	}
}

// Start launches the pipeline stages and the cron jobs. It returns
// immediately; everything runs until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	var err error
	if s.roundSched, err = s.parser.Parse(s.cfg.RoundSchedule); err != nil {
		return fmt.Errorf("scheduler.Start: round schedule: %w", err)
	}
	recovery, err := s.parser.Parse(s.cfg.RecoverySchedule)
	if err != nil {
		return fmt.Errorf("scheduler.Start: recovery schedule: %w", err)
	}

	s.cron = cron.New(cron.WithParser(s.parser), cron.WithLocation(time.UTC))
	s.cron.Schedule(s.roundSched, cron.FuncJob(func() { s.Tick(ctx) }))
	s.cron.Schedule(recovery, cron.FuncJob(func() { s.Recover(ctx) }))

	s.wg.Add(2)
	go s.drawStage(ctx)
	go s.settleStage(ctx)
	s.cron.Start()

	go func() {
		<-ctx.Done()
		<-s.cron.Stop().Done()
	}()

	s.logger.Info("scheduler started", "rounds", s.cfg.RoundSchedule, "recovery", s.cfg.RecoverySchedule)
	return nil
}

// Wait blocks until the pipeline stages and in-flight rebate batches have
// returned after ctx was cancelled.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// ──────────────────────────────────────────────────────────────────────────────
// Round clock
// ──────────────────────────────────────────────────────────────────────────────

// Tick closes the open round, opens the next one and queues the closed
// round for drawing. The cron job calls it on every round boundary.
func (s *Scheduler) Tick(ctx context.Context) {
	defer s.recoverAndLog("tick")

	now := time.Now().UTC()
	closesAt := now.Add(5 * time.Minute)
	if s.roundSched != nil {
		closesAt = s.roundSched.Next(now)
	}

	closed, opened, err := s.svc.Rounds.Rotate(ctx, closesAt)
	if err != nil {
		s.logger.Error("tick: rotate rounds", "err", err)
		if closed == nil {
			return
		}
	}
	if opened != nil && s.hub != nil {
		s.hub.BroadcastRoundOpened(ws.RoundOpenedMessage{
			Type:      ws.MsgTypeRoundOpened,
			Period:    opened.Period,
			OpensAt:   opened.OpensAt,
			ClosesAt:  opened.ClosesAt,
			Timestamp: now,
		})
	}
	if closed != nil {
		s.enqueueDraw(ctx, closed.Period)
	}
}

func (s *Scheduler) enqueueDraw(ctx context.Context, period domain.Period) {
	select {
	case s.drawQueue <- period:
	case <-ctx.Done():
	default:
		s.logger.Warn("draw queue full, recovery will pick the round up", "period", period)
	}
}

func (s *Scheduler) enqueueSettle(ctx context.Context, d drawn) {
	select {
	case s.settleQueue <- d:
	case <-ctx.Done():
	default:
		s.logger.Warn("settle queue full, recovery will pick the round up", "period", d.period)
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Pipeline stages
// ──────────────────────────────────────────────────────────────────────────────

func (s *Scheduler) drawStage(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("draw stage: shutting down")
			return
		case period := <-s.drawQueue:
			s.draw(ctx, period)
		}
	}
}

func (s *Scheduler) draw(ctx context.Context, period domain.Period) {
	defer s.recoverAndLog("draw")

	ctx, cancel := context.WithTimeout(ctx, s.stageTimeout())
	defer cancel()

	outcome, err := s.svc.Outcomes.GenerateOutcome(ctx, period)
	if err != nil {
		s.logger.Error("draw failed", "period", period, "err", err)
		return
	}
	if s.hub != nil {
		s.hub.BroadcastDrawResult(ws.NewDrawResult(period, outcome, time.Now()))
	}
	s.enqueueSettle(ctx, drawn{period: period, outcome: outcome})
}

func (s *Scheduler) settleStage(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("settle stage: shutting down")
			return
		case d := <-s.settleQueue:
			s.settle(ctx, d)
		}
	}
}

func (s *Scheduler) settle(ctx context.Context, d drawn) {
	defer s.recoverAndLog("settle")

	sctx, cancel := context.WithTimeout(ctx, s.stageTimeout())
	defer cancel()

	sum, err := s.svc.Settlement.SettleRound(sctx, d.period, d.outcome)
	if err != nil {
		s.logger.Error("settlement failed", "period", d.period, "err", err)
		return
	}
	if sum.AlreadySettled {
		return
	}
	if s.hub != nil {
		s.hub.BroadcastRoundSettled(ws.NewRoundSettled(sum, time.Now()))
	}

	// Commission runs off the settle stage so the next round is not held up.
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.recoverAndLog("rebates")
		failed, err := s.svc.Rebates.AllocateRound(ctx, d.period)
		if err != nil {
			s.logger.Warn("rebate batch interrupted", "period", d.period, "err", err)
		}
		if failed > 0 {
			s.logger.Warn("rebates failed, queued for retry", "period", d.period, "failed", failed)
		}
	}()
}

func (s *Scheduler) stageTimeout() time.Duration {
	if s.cfg.SettleTimeout > 0 {
		return s.cfg.SettleTimeout
	}
	return time.Minute
}

// ──────────────────────────────────────────────────────────────────────────────
// Recovery
// ──────────────────────────────────────────────────────────────────────────────

// Recover releases stale settlement claims, re-queues rounds that are still
// waiting for a draw or a settlement, and retries failed rebates.
func (s *Scheduler) Recover(ctx context.Context) {
	defer s.recoverAndLog("recover")

	if s.cfg.StaleClaimAfter > 0 {
		if _, err := s.svc.Rounds.ReleaseStaleClaims(ctx, s.cfg.StaleClaimAfter); err != nil {
			s.logger.Error("recover: release stale claims", "err", err)
		}
	}

	awaitDraw, awaitSettle, err := s.svc.Rounds.Pending(ctx)
	if err != nil {
		s.logger.Error("recover: list pending rounds", "err", err)
	} else {
		for _, rd := range awaitDraw {
			s.enqueueDraw(ctx, rd.Period)
		}
		for _, rd := range awaitSettle {
			s.enqueueSettle(ctx, drawn{period: rd.Period})
		}
		if n := len(awaitDraw) + len(awaitSettle); n > 0 {
			s.logger.Info("recover: re-queued pending rounds", "awaiting_draw", len(awaitDraw), "awaiting_settlement", len(awaitSettle))
		}
	}

	attempted, failed, err := s.svc.Rebates.RetryFailed(ctx, s.retryBatch)
	if err != nil {
		s.logger.Error("recover: retry rebates", "err", err)
		return
	}
	if attempted > 0 {
		s.logger.Info("recover: retried rebates", "attempted", attempted, "failed", failed)
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Panic recovery
// ──────────────────────────────────────────────────────────────────────────────

// recoverAndLog is deferred inside each job to catch unexpected panics, log
// them, and allow the scheduler to continue running.
func (s *Scheduler) recoverAndLog(job string) {
	if r := recover(); r != nil {
		s.logger.Error("PANIC recovered in scheduler job", "job", job, "panic", r)
	}
}
