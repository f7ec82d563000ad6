package backoffice

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/qazasd2518995/racing10-lottery-website-sub005/internal/backoffice/handler"
	"github.com/qazasd2518995/racing10-lottery-website-sub005/internal/domain"
)

// Operator roles. Read-only operators may only issue GET requests.
const (
	RoleAdmin    = "admin"
	RoleOps      = "ops"
	RoleRisk     = "risk"
	RoleFinance  = "finance"
	RoleReadonly = "readonly"
)

var backofficeRoles = map[string]bool{
	RoleAdmin:    true,
	RoleOps:      true,
	RoleRisk:     true,
	RoleFinance:  true,
	RoleReadonly: true,
}

// OperatorClaims is the token body accepted by the back-office. Tokens are
// issued elsewhere; this service only verifies them.
type OperatorClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// ParseOperatorToken verifies an HMAC-signed operator token.
func ParseOperatorToken(secret, issuer, tokenString string) (*OperatorClaims, error) {
	claims := &OperatorClaims{}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTokenInvalid, err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, domain.ErrTokenInvalid
	}
	return claims, nil
}

// ── IP allowlist middleware ───────────────────────────────────────────────────

// ipAllowlistMiddleware blocks requests from IPs not in allowedIPs. An empty
// list allows everyone.
func ipAllowlistMiddleware(allowedIPs []string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(allowedIPs))
	for _, ip := range allowedIPs {
		if ip = strings.TrimSpace(ip); ip != "" {
			allowed[ip] = true
		}
	}
	if len(allowed) == 0 {
		return func(c *gin.Context) { c.Next() } // dev mode: no restriction
	}

	return func(c *gin.Context) {
		if !allowed[c.ClientIP()] {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false,
				"error":   "access denied: your IP is not allowlisted",
				"code":    "ERR_IP_DENIED",
			})
			return
		}
		c.Next()
	}
}

// ── Operator JWT middleware ───────────────────────────────────────────────────

// operatorJWTMiddleware validates the bearer token and requires a
// back-office role. The operator's subject is stored under handler.CtxOperator.
func operatorJWTMiddleware(secret, issuer string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			abortAuth(c, http.StatusUnauthorized, domain.ErrUnauthorized)
			return
		}

		claims, err := ParseOperatorToken(secret, issuer, strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			abortAuth(c, http.StatusUnauthorized, domain.ErrTokenInvalid)
			return
		}
		if !backofficeRoles[claims.Role] {
			abortAuth(c, http.StatusForbidden, domain.ErrForbidden)
			return
		}

		c.Set(handler.CtxOperator, claims.Subject)
		c.Set(handler.CtxRole, claims.Role)
		c.Next()
	}
}

// writeAccessMiddleware rejects mutating requests from read-only operators.
func writeAccessMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet && c.GetString(handler.CtxRole) == RoleReadonly {
			abortAuth(c, http.StatusForbidden, domain.ErrForbidden)
			return
		}
		c.Next()
	}
}

func abortAuth(c *gin.Context, status int, err error) {
	code := "ERR_UNAUTHORIZED"
	if errors.Is(err, domain.ErrForbidden) {
		code = "ERR_FORBIDDEN"
	}
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error": err.Error(), "code": code})
}
