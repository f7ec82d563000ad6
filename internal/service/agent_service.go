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
	"github.com/shopspring/decimal"
)

// AgentService is the only writer of agent rates. Every write is checked
// against the market cap, the parent's ceiling and the children's ceilings
// inside one transaction.
type AgentService struct {
	db      *sqlx.DB
	agents  *repository.AgentRepository
	wallets *repository.WalletRepository
	caps    domain.MarketCaps
	log     *slog.Logger
	clock   Clock
}

// NewAgentService builds an AgentService.
func NewAgentService(
	db *sqlx.DB,
	agents *repository.AgentRepository,
	wallets *repository.WalletRepository,
	caps domain.MarketCaps,
	log *slog.Logger,
	clock Clock,
) *AgentService {
	return &AgentService{db: db, agents: agents, wallets: wallets, caps: caps, log: loggerOrDefault(log), clock: clock}
}

// CreateAgentInput describes a new agent. A root (ParentID nil) without Rate
// gets its market's full cap; a sub-agent must state its rate. MarketClass
// defaults to the parent's.
type CreateAgentInput struct {
	ParentID    *uuid.UUID
	Username    string
	Rate        string
	MarketClass domain.MarketClass
}

// CreateAgent validates and inserts an agent together with its wallet.
func (s *AgentService) CreateAgent(ctx context.Context, in CreateAgentInput) (*domain.Agent, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" {
		return nil, &domain.ValidationError{Field: "username", Reason: "required"}
	}

	tx, txErr := s.db.BeginTxx(ctx, nil)
	if txErr != nil {
		return nil, fmt.Errorf("agent_service.CreateAgent: begin tx: %w", txErr)
	}
	defer func() {
		if txErr != nil {
			_ = tx.Rollback()
		}
	}()

	var parent *domain.Agent
	class := in.MarketClass
	if in.ParentID != nil {
		if txErr = s.agents.LockFamily(ctx, tx, *in.ParentID); txErr != nil {
			return nil, fmt.Errorf("agent_service.CreateAgent: lock parent: %w", txErr)
		}
		if parent, txErr = s.agents.GetByID(ctx, tx, *in.ParentID); txErr != nil {
			return nil, fmt.Errorf("agent_service.CreateAgent: parent: %w", txErr)
		}
		if class == "" {
			class = parent.MarketClass
		}
	}

	var rate decimal.Decimal
	switch {
	case strings.TrimSpace(in.Rate) != "":
		if rate, txErr = parseDecimal("rate", in.Rate); txErr != nil {
			return nil, txErr
		}
	case parent == nil:
		if rate, txErr = s.caps.Cap(class); txErr != nil {
			return nil, txErr
		}
	default:
		txErr = &domain.ValidationError{Field: "rate", Reason: "required for sub-agents"}
		return nil, txErr
	}

	now := s.clock.now()
	a := &domain.Agent{
		ID:          uuid.New(),
		ParentID:    in.ParentID,
		Username:    username,
		Rate:        domain.NewChainCeiling(rate),
		MarketClass: class,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if txErr = domain.ValidateRate(a.Rate, class, s.caps, parent, nil); txErr != nil {
		return nil, txErr
	}
	if txErr = s.agents.Create(ctx, tx, a); txErr != nil {
		return nil, txErr
	}
	if txErr = s.wallets.Ensure(ctx, tx, a.ID, domain.OwnerAgent, now); txErr != nil {
		return nil, fmt.Errorf("agent_service.CreateAgent: %w", txErr)
	}
	if txErr = tx.Commit(); txErr != nil {
		return nil, fmt.Errorf("agent_service.CreateAgent: commit: %w", txErr)
	}

	s.log.Info("agent created", "agent_id", a.ID, "username", a.Username, "rate", a.Rate.String(), "market", a.MarketClass)
	return a, nil
}

// SetRate changes an agent's ceiling. It fails with an InvariantViolation when
// the rate is above the market cap or the parent's rate, or below a child's.
func (s *AgentService) SetRate(ctx context.Context, agentID uuid.UUID, rateStr string) (*domain.Agent, error) {
	rate, err := parseDecimal("rate", rateStr)
	if err != nil {
		return nil, err
	}

	tx, txErr := s.db.BeginTxx(ctx, nil)
	if txErr != nil {
		return nil, fmt.Errorf("agent_service.SetRate: begin tx: %w", txErr)
	}
	defer func() {
		if txErr != nil {
			_ = tx.Rollback()
		}
	}()

	// ── Step 1: lock, then read the rates the new ceiling is checked against ──
	if txErr = s.agents.LockFamily(ctx, tx, agentID); txErr != nil {
		return nil, fmt.Errorf("agent_service.SetRate: %w", txErr)
	}
	var a *domain.Agent
	if a, txErr = s.agents.GetByID(ctx, tx, agentID); txErr != nil {
		return nil, fmt.Errorf("agent_service.SetRate: %w", txErr)
	}
	var parent *domain.Agent
	if a.ParentID != nil {
		if parent, txErr = s.agents.GetByID(ctx, tx, *a.ParentID); txErr != nil {
			return nil, fmt.Errorf("agent_service.SetRate: parent: %w", txErr)
		}
	}
	var children []domain.Agent
	if children, txErr = s.agents.ListChildren(ctx, tx, a.ID); txErr != nil {
		return nil, fmt.Errorf("agent_service.SetRate: %w", txErr)
	}

	ceiling := domain.NewChainCeiling(rate)
	if txErr = domain.ValidateRate(ceiling, a.MarketClass, s.caps, parent, children); txErr != nil {
		return nil, txErr
	}
	now := s.clock.now()
	if txErr = s.agents.UpdateRate(ctx, tx, a.ID, ceiling, now); txErr != nil {
		return nil, fmt.Errorf("agent_service.SetRate: %w", txErr)
	}
	if txErr = tx.Commit(); txErr != nil {
		return nil, fmt.Errorf("agent_service.SetRate: commit: %w", txErr)
	}

	s.log.Info("agent rate changed", "agent_id", a.ID, "from", a.Rate.String(), "to", ceiling.String())
	a.Rate = ceiling
	a.UpdatedAt = now
	return a, nil
}

// CreateMember registers a member under an existing agent with a wallet.
func (s *AgentService) CreateMember(ctx context.Context, agentID uuid.UUID, username string) (*domain.Member, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, &domain.ValidationError{Field: "username", Reason: "required"}
	}
	if _, err := s.agents.GetByID(ctx, s.db, agentID); err != nil {
		return nil, fmt.Errorf("agent_service.CreateMember: %w", err)
	}
	now := s.clock.now()
	m := &domain.Member{ID: uuid.New(), AgentID: agentID, Username: username, CreatedAt: now}
	if err := s.agents.CreateMember(ctx, m); err != nil {
		return nil, err
	}
	if err := s.wallets.Ensure(ctx, s.db, m.ID, domain.OwnerMember, now); err != nil {
		return nil, fmt.Errorf("agent_service.CreateMember: %w", err)
	}
	return m, nil
}

// Chain returns an agent's ancestry, direct agent first.
func (s *AgentService) Chain(ctx context.Context, agentID uuid.UUID) ([]domain.Agent, error) {
	return s.agents.Ancestry(ctx, agentID)
}

// List returns every agent.
func (s *AgentService) List(ctx context.Context) ([]domain.Agent, error) {
	return s.agents.List(ctx)
}
