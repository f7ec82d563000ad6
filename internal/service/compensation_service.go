package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/qazasd2518995/racing10-lottery-website-sub005/internal/domain"
	"github.com/qazasd2518995/racing10-lottery-website-sub005/internal/repository"
)

// CompensationService corrects settled money without editing history: every
// correction is a new ledger row or wallet transaction.
type CompensationService struct {
	db          *sqlx.DB
	wagers      *repository.WagerRepository
	commissions *repository.CommissionRepository
	wallets     *repository.WalletRepository
	log         *slog.Logger
	clock       Clock
}

// NewCompensationService builds a CompensationService.
func NewCompensationService(
	db *sqlx.DB,
	wagers *repository.WagerRepository,
	commissions *repository.CommissionRepository,
	wallets *repository.WalletRepository,
	log *slog.Logger,
	clock Clock,
) *CompensationService {
	return &CompensationService{
		db:          db,
		wagers:      wagers,
		commissions: commissions,
		wallets:     wallets,
		log:         loggerOrDefault(log),
		clock:       clock,
	}
}

// ReverseCommission writes a reversal entry that cancels entryID and debits
// the agent's wallet by the same amount. Each rebate can be reversed once.
func (s *CompensationService) ReverseCommission(ctx context.Context, entryID uuid.UUID, reason string) (*domain.CommissionEntry, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, &domain.ValidationError{Field: "reason", Reason: "required"}
	}
	orig, err := s.commissions.GetByID(ctx, entryID)
	if err != nil {
		return nil, fmt.Errorf("compensation_service.ReverseCommission: %w", err)
	}
	if orig.Kind != domain.EntryRebate {
		return nil, &domain.ValidationError{Field: "entry", Value: entryID.String(), Reason: "only rebate entries can be reversed"}
	}

	now := s.clock.now()
	rev := &domain.CommissionEntry{
		ID:         uuid.New(),
		Period:     orig.Period,
		WagerID:    orig.WagerID,
		AgentID:    orig.AgentID,
		Amount:     orig.Amount.Neg(),
		Kind:       domain.EntryReversal,
		ReversesID: &orig.ID,
		Reason:     reason,
		CreatedAt:  now,
	}

	tx, txErr := s.db.BeginTxx(ctx, nil)
	if txErr != nil {
		return nil, fmt.Errorf("compensation_service.ReverseCommission: begin tx: %w", txErr)
	}
	defer func() {
		if txErr != nil {
			_ = tx.Rollback()
		}
	}()

	inserted, err := s.commissions.Insert(ctx, tx, rev)
	if err != nil {
		txErr = err
		return nil, fmt.Errorf("compensation_service.ReverseCommission: %w", err)
	}
	if !inserted {
		txErr = domain.ErrAlreadyReversed
		return nil, txErr
	}
	desc := fmt.Sprintf("Reversal of commission %s: %s", orig.ID, reason)
	if txErr = s.wallets.Credit(ctx, tx, orig.AgentID, rev.Amount, domain.TxReversal, &rev.ID, desc, now); txErr != nil {
		return nil, fmt.Errorf("compensation_service.ReverseCommission: debit agent: %w", txErr)
	}
	if txErr = tx.Commit(); txErr != nil {
		return nil, fmt.Errorf("compensation_service.ReverseCommission: commit: %w", txErr)
	}

	s.log.Info("commission reversed",
		"entry_id", orig.ID, "reversal_id", rev.ID, "agent_id", orig.AgentID,
		"amount", rev.Amount.String(), "reason", reason)
	return rev, nil
}

// AdjustPayout credits (or, when negative, debits) a settled wager's owner
// with an adjustment transaction. The wager row itself is not changed.
func (s *CompensationService) AdjustPayout(ctx context.Context, wagerID uuid.UUID, amountStr, reason string) error {
	amount, err := parseDecimal("amount", amountStr)
	if err != nil {
		return err
	}
	amount = domain.RoundMoney(amount)
	if amount.IsZero() {
		return &domain.ValidationError{Field: "amount", Value: amountStr, Reason: "must not be zero"}
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return &domain.ValidationError{Field: "reason", Reason: "required"}
	}

	w, err := s.wagers.GetByID(ctx, wagerID)
	if err != nil {
		return fmt.Errorf("compensation_service.AdjustPayout: %w", err)
	}
	if !w.IsSettled() {
		return fmt.Errorf("compensation_service.AdjustPayout: %w", domain.ErrWagerNotSettled)
	}

	tx, txErr := s.db.BeginTxx(ctx, nil)
	if txErr != nil {
		return fmt.Errorf("compensation_service.AdjustPayout: begin tx: %w", txErr)
	}
	defer func() {
		if txErr != nil {
			_ = tx.Rollback()
		}
	}()

	now := s.clock.now()
	if txErr = s.wallets.Ensure(ctx, tx, w.MemberID, domain.OwnerMember, now); txErr != nil {
		return fmt.Errorf("compensation_service.AdjustPayout: %w", txErr)
	}
	desc := fmt.Sprintf("Adjustment of wager %s: %s", w.ID, reason)
	if txErr = s.wallets.Credit(ctx, tx, w.MemberID, amount, domain.TxAdjustment, &w.ID, desc, now); txErr != nil {
		return fmt.Errorf("compensation_service.AdjustPayout: %w", txErr)
	}
	if txErr = tx.Commit(); txErr != nil {
		return fmt.Errorf("compensation_service.AdjustPayout: commit: %w", txErr)
	}

	s.log.Info("payout adjusted", "wager_id", w.ID, "member_id", w.MemberID, "amount", amount.String(), "reason", reason)
	return nil
}
