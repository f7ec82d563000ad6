package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/qazasd2518995/racing10-lottery-website-sub005/internal/domain"
	"github.com/qazasd2518995/racing10-lottery-website-sub005/internal/service"
)

// PolicyHandler serves /admin/policies endpoints.
type PolicyHandler struct {
	policies *service.PolicyService
}

// NewPolicyHandler creates a PolicyHandler.
func NewPolicyHandler(policies *service.PolicyService) *PolicyHandler {
	return &PolicyHandler{policies: policies}
}

// List godoc
// GET /admin/policies?all=true
func (h *PolicyHandler) List(c *gin.Context) {
	policies, err := h.policies.List(c.Request.Context(), c.Query("all") == "true")
	if err != nil {
		respondDomainError(c, err)
		return
	}
	if policies == nil {
		policies = []domain.ControlPolicy{}
	}
	respondSuccess(c, http.StatusOK, policies)
}

// Create godoc
// POST /admin/policies
func (h *PolicyHandler) Create(c *gin.Context) {
	var body struct {
		Scope       domain.PolicyScope `json:"scope"        binding:"required"`
		TargetID    *uuid.UUID         `json:"target_id"`
		Mode        domain.PolicyMode  `json:"mode"         binding:"required"`
		WinRate     string             `json:"win_rate"     binding:"required"`
		ActivatesAt domain.Period      `json:"activates_at" binding:"required"`
		ExpiresAt   *domain.Period     `json:"expires_at"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}

	p, err := h.policies.Create(c.Request.Context(), service.CreatePolicyInput{
		Scope:       body.Scope,
		TargetID:    body.TargetID,
		Mode:        body.Mode,
		WinRate:     body.WinRate,
		ActivatesAt: body.ActivatesAt,
		ExpiresAt:   body.ExpiresAt,
		CreatedBy:   operator(c),
	})
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, p)
}

// Disable godoc
// POST /admin/policies/:id/disable
func (h *PolicyHandler) Disable(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid policy id")
		return
	}
	if err = h.policies.Disable(c.Request.Context(), id); err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"status": "disabled", "policy_id": id})
}
