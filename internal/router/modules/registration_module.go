package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/promptash/promptash/internal/container"
	handlers "github.com/promptash/promptash/internal/interface/http"
	"github.com/promptash/promptash/internal/interface/middleware"
	"github.com/promptash/promptash/pkg/audit"
)

type RegistrationModule struct {
	Handler *handlers.RegistrationHandler
	Audit   *audit.Logger
}

func NewRegistrationModule(h *handlers.RegistrationHandler, auditLog *audit.Logger) *RegistrationModule {
	return &RegistrationModule{Handler: h, Audit: auditLog}
}

func (m *RegistrationModule) Register(rg *gin.RouterGroup) {
	limiter := middleware.RateLimit(container.GetRedis(), 10, time.Minute, middleware.KeyByIPAndPath(), nil)

	// The resolve GET seeds the CSRF cookie (global middleware); the POST
	// requires it.
	rg.GET("/register/:token", limiter, m.Handler.Resolve)
	rg.POST("/register", limiter, middleware.CSRF(m.Audit), m.Handler.Register)
}
