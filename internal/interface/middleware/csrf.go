package middleware

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/promptash/promptash/internal/domain/entity"
	"github.com/promptash/promptash/pkg/audit"
	"github.com/promptash/promptash/pkg/helpers"
	"github.com/promptash/promptash/pkg/response"
)

// SeedCSRF hands a double-submit cookie to clients that do not hold one yet,
// so the token exists before the first login or registration POST. Only safe
// methods mint; a state-changing request without a cookie is a CSRF failure,
// not a mint opportunity.
func SeedCSRF(cookies *helpers.Manager, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			if v, err := c.Cookie("csrf_token"); err != nil || v == "" {
				if tok, gerr := helpers.GenToken(16); gerr == nil {
					cookies.SetCSRF(c, tok, ttl)
				}
			}
		}
		c.Next()
	}
}

// CSRF enforces the double-submit cookie pattern on state-changing methods:
// the X-CSRF-Token header must match the csrf_token cookie set at login.
// Mismatches are audited.
func CSRF(auditLog *audit.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}

		cookie, err := c.Cookie("csrf_token")
		header := c.GetHeader("X-CSRF-Token")
		if err != nil || cookie == "" || header == "" ||
			subtle.ConstantTimeCompare([]byte(cookie), []byte(header)) != 1 {
			if auditLog != nil {
				auditLog.Record(c.Request.Context(), entity.EventCSRFRejected, c.GetString(CtxUserIDKey), ipFromCtx(c), map[string]any{
					"path":   c.Request.URL.Path,
					"method": c.Request.Method,
				})
			}
			response.Error[any](c, http.StatusForbidden, "csrf token mismatch", nil)
			c.Abort()
			return
		}
		c.Next()
	}
}
