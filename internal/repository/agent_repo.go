package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/qazasd2518995/racing10-lottery-website-sub005/internal/domain"
)

// maxChainDepth bounds ancestry walks so corrupt data cannot loop forever.
const maxChainDepth = 64

// AgentRepository handles the agent hierarchy and members.
type AgentRepository struct {
	db *sqlx.DB
}

// NewAgentRepository creates a new AgentRepository.
func NewAgentRepository(db *sqlx.DB) *AgentRepository {
	return &AgentRepository{db: db}
}

// Create inserts a new agent.
func (r *AgentRepository) Create(ctx context.Context, q sqlx.ExtContext, a *domain.Agent) error {
	query := q.Rebind(`
		INSERT INTO agents (id, parent_id, username, rate, market_class, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	_, err := q.ExecContext(ctx, query,
		a.ID, a.ParentID, a.Username, a.Rate, a.MarketClass, a.CreatedAt.UTC(), a.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("agent_repo.Create: %w", err)
	}
	return nil
}

// LockFamily locks an agent's row together with its parent's and its direct
// children's for the rest of tx. Rate writes take it before validating, so two
// writes touching the same parent/child pair cannot both pass the checks.
func (r *AgentRepository) LockFamily(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) error {
	var ids []string
	err := tx.SelectContext(ctx, &ids, tx.Rebind(`
		SELECT id FROM agents
		WHERE id = ?
		   OR parent_id = ?
		   OR id = (SELECT parent_id FROM agents WHERE id = ?)
		ORDER BY id`+lockClause(tx.DriverName())), id, id, id)
	if err != nil {
		return fmt.Errorf("agent_repo.LockFamily: %w", err)
	}
	if len(ids) == 0 {
		return domain.ErrAgentNotFound
	}
	return nil
}

// GetByID fetches an agent. q is the database or an open transaction.
func (r *AgentRepository) GetByID(ctx context.Context, q sqlx.QueryerContext, id uuid.UUID) (*domain.Agent, error) {
	var a domain.Agent
	err := sqlx.GetContext(ctx, q, &a, r.db.Rebind(`SELECT * FROM agents WHERE id = ?`), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAgentNotFound
		}
		return nil, fmt.Errorf("agent_repo.GetByID: %w", err)
	}
	return &a, nil
}

// ListChildren returns the direct child agents of parentID.
func (r *AgentRepository) ListChildren(ctx context.Context, q sqlx.QueryerContext, parentID uuid.UUID) ([]domain.Agent, error) {
	var agents []domain.Agent
	err := sqlx.SelectContext(ctx, q, &agents,
		r.db.Rebind(`SELECT * FROM agents WHERE parent_id = ? ORDER BY username ASC`), parentID)
	if err != nil {
		return nil, fmt.Errorf("agent_repo.ListChildren: %w", err)
	}
	return agents, nil
}

// List returns every agent ordered by username.
func (r *AgentRepository) List(ctx context.Context) ([]domain.Agent, error) {
	var agents []domain.Agent
	if err := r.db.SelectContext(ctx, &agents, `SELECT * FROM agents ORDER BY username ASC`); err != nil {
		return nil, fmt.Errorf("agent_repo.List: %w", err)
	}
	return agents, nil
}

// UpdateRate writes a new ceiling inside the caller's transaction. The caller
// validates child ≤ parent ≤ cap before calling.
func (r *AgentRepository) UpdateRate(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, rate domain.ChainCeiling, now time.Time) error {
	res, err := tx.ExecContext(ctx, tx.Rebind(
		`UPDATE agents SET rate = ?, updated_at = ? WHERE id = ?`), rate, now.UTC(), id)
	if err != nil {
		return fmt.Errorf("agent_repo.UpdateRate: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrAgentNotFound
	}
	return nil
}

// Ancestry returns the chain from agentID up to its root. When a parent
// reference dangles, the chain found so far is returned together with a
// *domain.ChainIntegrityError. A cycle is an InvariantViolation.
func (r *AgentRepository) Ancestry(ctx context.Context, agentID uuid.UUID) ([]domain.Agent, error) {
	var chain []domain.Agent
	seen := make(map[uuid.UUID]bool)
	next := agentID
	for depth := 0; ; depth++ {
		if seen[next] || depth >= maxChainDepth {
			return chain, &domain.InvariantViolation{
				Invariant: domain.InvariantAgentCycle,
				Detail:    fmt.Sprintf("agent %s revisited while walking ancestry of %s", next, agentID),
			}
		}
		seen[next] = true

		a, err := r.GetByID(ctx, r.db, next)
		if err != nil {
			if errors.Is(err, domain.ErrAgentNotFound) && len(chain) > 0 {
				last := chain[len(chain)-1]
				return chain, &domain.ChainIntegrityError{AgentID: last.ID.String(), ParentID: next.String()}
			}
			return chain, err
		}
		chain = append(chain, *a)
		if a.IsRoot() {
			return chain, nil
		}
		next = *a.ParentID
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Members
// ──────────────────────────────────────────────────────────────────────────────

// CreateMember inserts a member under its direct agent.
func (r *AgentRepository) CreateMember(ctx context.Context, m *domain.Member) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO members (id, agent_id, username, created_at) VALUES (?, ?, ?, ?)`),
		m.ID, m.AgentID, m.Username, m.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("agent_repo.CreateMember: %w", err)
	}
	return nil
}

// GetMember fetches a member by id.
func (r *AgentRepository) GetMember(ctx context.Context, id uuid.UUID) (*domain.Member, error) {
	var m domain.Member
	err := r.db.GetContext(ctx, &m, r.db.Rebind(`SELECT * FROM members WHERE id = ?`), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrMemberNotFound
		}
		return nil, fmt.Errorf("agent_repo.GetMember: %w", err)
	}
	return &m, nil
}
