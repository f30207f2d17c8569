package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/promptash/promptash/internal/container"
	handlers "github.com/promptash/promptash/internal/interface/http"
	"github.com/promptash/promptash/internal/interface/middleware"
	"github.com/promptash/promptash/pkg/audit"
	"github.com/promptash/promptash/pkg/helpers"
)

type AuthModule struct {
	Handler *handlers.AuthHandler
	JWT     *helpers.JWTManager
	Audit   *audit.Logger
}

func NewAuthModule(h *handlers.AuthHandler, jwt *helpers.JWTManager, auditLog *audit.Logger) *AuthModule {
	return &AuthModule{Handler: h, JWT: jwt, Audit: auditLog}
}

func (m *AuthModule) Register(rg *gin.RouterGroup) {
	// Public endpoints with tight IP-based rate limits. Login and code
	// verification are the brute-force targets.
	loginLimiter := middleware.RateLimit(container.GetRedis(), 10, time.Minute, middleware.KeyByIP(), nil)
	verifyLimiter := middleware.RateLimit(container.GetRedis(), 10, time.Minute, middleware.KeyByIPAndPath(), nil)
	refreshLimiter := middleware.RateLimit(container.GetRedis(), 60, time.Minute, middleware.KeyByIP(), nil)
	resetInitLimiter := middleware.RateLimit(container.GetRedis(), 5, time.Minute, middleware.KeyByIPAndPath(), nil)
	resetConfirmLimiter := middleware.RateLimit(container.GetRedis(), 30, time.Minute, middleware.KeyByIPAndPath(), nil)

	// Login and verification are state-changing even without a session, so
	// they carry the CSRF check; the cookie is seeded on any prior safe
	// request.
	csrf := middleware.CSRF(m.Audit)
	rg.POST("/auth/login", loginLimiter, csrf, m.Handler.Login)
	rg.POST("/auth/2fa/verify", verifyLimiter, csrf, m.Handler.TwoFactorVerify)
	rg.POST("/auth/refresh", refreshLimiter, m.Handler.Refresh)
	rg.POST("/auth/reset/init", resetInitLimiter, m.Handler.ResetInit)
	rg.POST("/auth/reset/confirm", resetConfirmLimiter, m.Handler.ResetConfirm)

	// Protected account endpoints. State changes require the CSRF header.
	auth := rg.Group("/")
	auth.Use(middleware.Auth(container.GetRedis(), m.JWT))
	auth.Use(middleware.CSRF(m.Audit))
	auth.Use(middleware.RateLimit(container.GetRedis(), 120, time.Minute, middleware.KeyByUserID(), nil))
	{
		auth.POST("/auth/logout", m.Handler.Logout)
		auth.GET("/profile", m.Handler.Me)
		auth.PUT("/profile", m.Handler.UpdateProfile)
		auth.POST("/profile/password", m.Handler.ChangePassword)
		auth.POST("/profile/2fa/setup", m.Handler.TwoFactorSetup)
		auth.POST("/profile/2fa/confirm", m.Handler.TwoFactorConfirm)
		auth.POST("/profile/2fa/disable", m.Handler.TwoFactorDisable)
		auth.POST("/profile/2fa/recovery-codes", m.Handler.RecoveryCodes)
	}
}
