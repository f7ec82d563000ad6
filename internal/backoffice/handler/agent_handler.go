package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/qazasd2518995/racing10-lottery-website-sub005/internal/domain"
	"github.com/qazasd2518995/racing10-lottery-website-sub005/internal/service"
)

// AgentHandler serves /admin/agents endpoints.
type AgentHandler struct {
	agents *service.AgentService
}

// NewAgentHandler creates an AgentHandler.
func NewAgentHandler(agents *service.AgentService) *AgentHandler {
	return &AgentHandler{agents: agents}
}

// List godoc
// GET /admin/agents
func (h *AgentHandler) List(c *gin.Context) {
	agents, err := h.agents.List(c.Request.Context())
	if err != nil {
		respondDomainError(c, err)
		return
	}
	if agents == nil {
		agents = []domain.Agent{}
	}
	respondSuccess(c, http.StatusOK, agents)
}

// Create godoc
// POST /admin/agents
//
// A root agent without a rate receives its market's cap.
func (h *AgentHandler) Create(c *gin.Context) {
	var body struct {
		ParentID    *uuid.UUID         `json:"parent_id"`
		Username    string             `json:"username"     binding:"required"`
		Rate        string             `json:"rate"`
		MarketClass domain.MarketClass `json:"market_class"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}
	agent, err := h.agents.CreateAgent(c.Request.Context(), service.CreateAgentInput{
		ParentID:    body.ParentID,
		Username:    body.Username,
		Rate:        body.Rate,
		MarketClass: body.MarketClass,
	})
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, agent)
}

// Chain godoc
// GET /admin/agents/:id/chain
func (h *AgentHandler) Chain(c *gin.Context) {
	id, ok := agentID(c)
	if !ok {
		return
	}
	chain, err := h.agents.Chain(c.Request.Context(), id)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, chain)
}

// SetRate godoc
// PUT /admin/agents/:id/rate   body: {"rate": "0.008"}
func (h *AgentHandler) SetRate(c *gin.Context) {
	id, ok := agentID(c)
	if !ok {
		return
	}
	var body struct {
		Rate string `json:"rate" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}
	agent, err := h.agents.SetRate(c.Request.Context(), id, body.Rate)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, agent)
}

// CreateMember godoc
// POST /admin/agents/:id/members   body: {"username": "..."}
func (h *AgentHandler) CreateMember(c *gin.Context) {
	id, ok := agentID(c)
	if !ok {
		return
	}
	var body struct {
		Username string `json:"username" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}
	member, err := h.agents.CreateMember(c.Request.Context(), id, body.Username)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, member)
}

func agentID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid agent id")
		return uuid.Nil, false
	}
	return id, true
}
