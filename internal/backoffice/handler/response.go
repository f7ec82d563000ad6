package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/qazasd2518995/racing10-lottery-website-sub005/internal/domain"
)

// Context keys written by the back-office auth middleware.
const (
	CtxOperator = "operator"
	CtxRole     = "role"
)

// ──────────────────────────────────────────────────────────────────────────────
// Standard admin response helpers
// ──────────────────────────────────────────────────────────────────────────────

func respondSuccess(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

func respondError(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error":   msg,
		"code":    code,
	})
}

func respondList(c *gin.Context, items any, page, limit int) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    items,
		"meta": gin.H{
			"page":  page,
			"limit": limit,
		},
	})
}

// respondDomainError maps the error taxonomy onto HTTP statuses.
func respondDomainError(c *gin.Context, err error) {
	var (
		ve *domain.ValidationError
		iv *domain.InvariantViolation
	)
	switch {
	case errors.As(err, &ve):
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
	case errors.As(err, &iv):
		respondError(c, http.StatusUnprocessableEntity, "ERR_INVARIANT", err.Error())
	case domain.IsNotFound(err):
		respondError(c, http.StatusNotFound, "ERR_NOT_FOUND", err.Error())
	case domain.IsConflict(err):
		respondError(c, http.StatusConflict, "ERR_CONFLICT", err.Error())
	case errors.Is(err, domain.ErrRoundNotDrawn), errors.Is(err, domain.ErrWagerNotSettled):
		respondError(c, http.StatusConflict, "ERR_NOT_READY", err.Error())
	default:
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
	}
}

// adminPagination reads page/limit query params with sane defaults for admin views.
func adminPagination(c *gin.Context) (page, limit int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 500 {
		limit = 50
	}
	return
}

func periodParam(c *gin.Context) (domain.Period, bool) {
	p, err := domain.ParsePeriod(c.Param("period"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_PERIOD", err.Error())
		return 0, false
	}
	return p, true
}

func operator(c *gin.Context) string {
	if v := c.GetString(CtxOperator); v != "" {
		return v
	}
	return "unknown"
}
