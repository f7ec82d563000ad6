package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/qazasd2518995/racing10-lottery-website-sub005/internal/domain"
	"github.com/qazasd2518995/racing10-lottery-website-sub005/internal/service"
)

// RoundHandler serves /admin/rounds endpoints.
type RoundHandler struct {
	rounds     *service.RoundService
	outcomes   *service.OutcomeService
	settlement *service.SettlementService
}

// NewRoundHandler creates a RoundHandler.
func NewRoundHandler(
	rounds *service.RoundService,
	outcomes *service.OutcomeService,
	settlement *service.SettlementService,
) *RoundHandler {
	return &RoundHandler{rounds: rounds, outcomes: outcomes, settlement: settlement}
}

// List godoc
// GET /admin/rounds?status=closing&page=1&limit=20
func (h *RoundHandler) List(c *gin.Context) {
	page, limit := adminPagination(c)
	rounds, err := h.rounds.List(c.Request.Context(), domain.RoundStatus(c.Query("status")), limit, (page-1)*limit)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	if rounds == nil {
		rounds = []*domain.Round{}
	}
	respondList(c, rounds, page, limit)
}

// Current godoc
// GET /admin/rounds/current
func (h *RoundHandler) Current(c *gin.Context) {
	period, err := h.rounds.Current(c.Request.Context())
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"period": period})
}

// Detail godoc
// GET /admin/rounds/:period
func (h *RoundHandler) Detail(c *gin.Context) {
	period, ok := periodParam(c)
	if !ok {
		return
	}
	detail, err := h.rounds.Get(c.Request.Context(), period)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, detail)
}

// Draw godoc
// POST /admin/rounds/:period/draw
//
// Returns the recorded outcome when the round was already drawn.
func (h *RoundHandler) Draw(c *gin.Context) {
	period, ok := periodParam(c)
	if !ok {
		return
	}
	outcome, err := h.outcomes.GenerateOutcome(c.Request.Context(), period)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"period": period, "outcome": outcome})
}

// Settle godoc
// POST /admin/rounds/:period/settle   body: {"outcome": [..10 numbers..]} (optional)
//
// Without an outcome the round settles against its recorded draw.
func (h *RoundHandler) Settle(c *gin.Context) {
	period, ok := periodParam(c)
	if !ok {
		return
	}
	var body struct {
		Outcome domain.Permutation `json:"outcome"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
			return
		}
	}

	summary, err := h.settlement.SettleRound(c.Request.Context(), period, body.Outcome)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, summary)
}
