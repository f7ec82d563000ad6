// Package backoffice exposes the operator API under /admin: manual draw
// and settlement, rebate retries, control policies, agent configuration
// and compensation.
package backoffice

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/qazasd2518995/racing10-lottery-website-sub005/internal/backoffice/handler"
	"github.com/qazasd2518995/racing10-lottery-website-sub005/internal/config"
	"github.com/qazasd2518995/racing10-lottery-website-sub005/internal/service"
)

// Deps bundles every dependency needed for the admin router.
type Deps struct {
	Rounds       *service.RoundService
	Outcomes     *service.OutcomeService
	Settlement   *service.SettlementService
	Rebates      *service.RebateService
	Policies     *service.PolicyService
	Agents       *service.AgentService
	Wagers       *service.WagerService
	Compensation *service.CompensationService
	Cfg          *config.Config
	Logger       *slog.Logger
}

// SetupRouter creates the admin Gin engine.
func SetupRouter(deps Deps) *gin.Engine {
	if deps.Cfg.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	r := gin.New()
	r.Use(requestLogger(log))
	r.Use(gin.Recovery())
	r.Use(ipAllowlistMiddleware(deps.Cfg.Server.BackofficeAllowedIPs))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	roundH := handler.NewRoundHandler(deps.Rounds, deps.Outcomes, deps.Settlement)
	wagerH := handler.NewWagerHandler(deps.Wagers, deps.Rebates, deps.Compensation)
	rebateH := handler.NewRebateHandler(deps.Rebates, deps.Compensation)
	policyH := handler.NewPolicyHandler(deps.Policies)
	agentH := handler.NewAgentHandler(deps.Agents)

	admin := r.Group("/admin")
	admin.Use(operatorJWTMiddleware(deps.Cfg.JWT.AccessSecret, deps.Cfg.JWT.Issuer))
	admin.Use(writeAccessMiddleware())
	admin.Use(writeRateLimitMiddleware(deps.Cfg.Server.AdminWriteRPS))
	{
		// Rounds
		rd := admin.Group("/rounds")
		{
			rd.GET("", roundH.List)
			rd.GET("/current", roundH.Current)
			rd.GET("/:period", roundH.Detail)
			rd.POST("/:period/draw", roundH.Draw)
			rd.POST("/:period/settle", roundH.Settle)
			rd.POST("/:period/wagers", wagerH.Record)
		}

		// Wagers
		w := admin.Group("/wagers")
		{
			w.POST("/:id/rebates", wagerH.AllocateRebates)
			w.POST("/:id/adjust", wagerH.AdjustPayout)
		}

		// Commission
		admin.POST("/rebates/retry", rebateH.Retry)
		admin.POST("/commission/:id/reverse", rebateH.Reverse)

		// Control policies
		p := admin.Group("/policies")
		{
			p.GET("", policyH.List)
			p.POST("", policyH.Create)
			p.POST("/:id/disable", policyH.Disable)
		}

		// Agents
		a := admin.Group("/agents")
		{
			a.GET("", agentH.List)
			a.POST("", agentH.Create)
			a.GET("/:id/chain", agentH.Chain)
			a.GET("/:id/commission", rebateH.Ledger)
			a.PUT("/:id/rate", agentH.SetRate)
			a.POST("/:id/members", agentH.CreateMember)
		}
	}

	return r
}

// requestLogger logs one line per request through slog.
func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		log.Info("admin request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"operator", c.GetString(handler.CtxOperator),
			"ip", c.ClientIP())
	}
}
