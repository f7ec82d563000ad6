package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/qazasd2518995/racing10-lottery-website-sub005/internal/domain"
	"github.com/qazasd2518995/racing10-lottery-website-sub005/internal/service"
)

// WagerHandler serves wager ingestion and per-wager operator actions.
type WagerHandler struct {
	wagers       *service.WagerService
	rebates      *service.RebateService
	compensation *service.CompensationService
}

// NewWagerHandler creates a WagerHandler.
func NewWagerHandler(
	wagers *service.WagerService,
	rebates *service.RebateService,
	compensation *service.CompensationService,
) *WagerHandler {
	return &WagerHandler{wagers: wagers, rebates: rebates, compensation: compensation}
}

// Record godoc
// POST /admin/rounds/:period/wagers
//
// Ingests a wager forwarded by the betting front end. Category, position
// and selector may use any accepted label; they are stored canonically.
func (h *WagerHandler) Record(c *gin.Context) {
	period, ok := periodParam(c)
	if !ok {
		return
	}
	var body struct {
		MemberID   uuid.UUID `json:"member_id"  binding:"required"`
		Category   string    `json:"category"   binding:"required"`
		Position   string    `json:"position"`
		Selector   string    `json:"selector"   binding:"required"`
		Stake      string    `json:"stake"      binding:"required"`
		Multiplier string    `json:"multiplier" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}

	w, err := h.wagers.Record(c.Request.Context(), service.RecordWagerInput{
		Period:   period,
		MemberID: body.MemberID,
		Raw: domain.RawWager{
			Category: body.Category,
			Position: body.Position,
			Selector: body.Selector,
		},
		Stake:      body.Stake,
		Multiplier: body.Multiplier,
	})
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, w)
}

// AllocateRebates godoc
// POST /admin/wagers/:id/rebates
func (h *WagerHandler) AllocateRebates(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid wager id")
		return
	}
	alloc, err := h.rebates.AllocateRebates(c.Request.Context(), id)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{
		"wager_id": id,
		"entries":  alloc.Entries,
		"pool":     alloc.Pool,
		"retained": alloc.Retained,
	})
}

// AdjustPayout godoc
// POST /admin/wagers/:id/adjust   body: {"amount": "-12.50", "reason": "..."}
func (h *WagerHandler) AdjustPayout(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid wager id")
		return
	}
	var body struct {
		Amount string `json:"amount" binding:"required"`
		Reason string `json:"reason" binding:"required"`
	}
	if err = c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}
	reason := body.Reason + " (by " + operator(c) + ")"
	if err = h.compensation.AdjustPayout(c.Request.Context(), id, body.Amount, reason); err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"wager_id": id, "amount": body.Amount})
}
