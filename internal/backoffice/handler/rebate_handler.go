package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/qazasd2518995/racing10-lottery-website-sub005/internal/domain"
	"github.com/qazasd2518995/racing10-lottery-website-sub005/internal/service"
)

// RebateHandler serves commission retry and reversal endpoints.
type RebateHandler struct {
	rebates      *service.RebateService
	compensation *service.CompensationService
}

// NewRebateHandler creates a RebateHandler.
func NewRebateHandler(rebates *service.RebateService, compensation *service.CompensationService) *RebateHandler {
	return &RebateHandler{rebates: rebates, compensation: compensation}
}

// Retry godoc
// POST /admin/rebates/retry?limit=200
func (h *RebateHandler) Retry(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "200"))
	if limit < 1 || limit > 5000 {
		limit = 200
	}
	attempted, failed, err := h.rebates.RetryFailed(c.Request.Context(), limit)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"attempted": attempted, "failed": failed})
}

// Ledger godoc
// GET /admin/agents/:id/commission?page=1&limit=50
func (h *RebateHandler) Ledger(c *gin.Context) {
	id, ok := agentID(c)
	if !ok {
		return
	}
	page, limit := adminPagination(c)
	entries, err := h.rebates.Ledger(c.Request.Context(), id, limit, (page-1)*limit)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	if entries == nil {
		entries = []domain.CommissionEntry{}
	}
	respondList(c, entries, page, limit)
}

// Reverse godoc
// POST /admin/commission/:id/reverse   body: {"reason": "..."}
func (h *RebateHandler) Reverse(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid entry id")
		return
	}
	var body struct {
		Reason string `json:"reason" binding:"required"`
	}
	if err = c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}
	entry, err := h.compensation.ReverseCommission(c.Request.Context(), id, body.Reason+" (by "+operator(c)+")")
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, entry)
}
