package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/promptash/promptash/internal/container"
	handlers "github.com/promptash/promptash/internal/interface/http"
	"github.com/promptash/promptash/internal/interface/middleware"
)

// CheckoutModule exposes the pre-account purchase flow. Everything here is
// public: checkouts exist before the user does.
type CheckoutModule struct {
	Handler *handlers.CheckoutHandler
}

func NewCheckoutModule(h *handlers.CheckoutHandler) *CheckoutModule {
	return &CheckoutModule{Handler: h}
}

func (m *CheckoutModule) Register(rg *gin.RouterGroup) {
	createLimiter := middleware.RateLimit(container.GetRedis(), 10, time.Minute, middleware.KeyByIP(), nil)
	statusLimiter := middleware.RateLimit(container.GetRedis(), 60, time.Minute, middleware.KeyByIP(), nil)

	rg.GET("/checkout/tiers", statusLimiter, m.Handler.Tiers)
	rg.POST("/checkout", createLimiter, m.Handler.Create)
	rg.GET("/checkout/callback", statusLimiter, m.Handler.Callback)
	// Webhook authenticates by signature, not by session or rate limit
	// (provider retries must not be throttled away).
	rg.POST("/checkout/webhook", m.Handler.Webhook)
	rg.GET("/checkout/:token", statusLimiter, m.Handler.Status)
}
