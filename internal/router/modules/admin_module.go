package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/promptash/promptash/internal/container"
	handlers "github.com/promptash/promptash/internal/interface/http"
	"github.com/promptash/promptash/internal/interface/middleware"
	"github.com/promptash/promptash/pkg/helpers"
)

type AdminModule struct {
	Security *handlers.SecurityHandler
	JWT      *helpers.JWTManager
}

func NewAdminModule(sec *handlers.SecurityHandler, jwt *helpers.JWTManager) *AdminModule {
	return &AdminModule{Security: sec, JWT: jwt}
}

func (m *AdminModule) Register(rg *gin.RouterGroup) {
	admin := rg.Group("/admin")
	admin.Use(middleware.Auth(container.GetRedis(), m.JWT))
	admin.Use(middleware.RequireAdmin())
	admin.Use(middleware.RateLimit(container.GetRedis(), 60, time.Minute, middleware.KeyByUserID(), nil))
	{
		admin.GET("/security-events", m.Security.Events)
	}
}
