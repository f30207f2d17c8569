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

// LibraryModule carries all content routes: categories, prompts, items,
// sharing, usage and backup. Everything requires a session.
type LibraryModule struct {
	Library *handlers.LibraryHandler
	Backup  *handlers.BackupHandler
	JWT     *helpers.JWTManager
	Audit   *audit.Logger
}

func NewLibraryModule(lib *handlers.LibraryHandler, backup *handlers.BackupHandler, jwt *helpers.JWTManager, auditLog *audit.Logger) *LibraryModule {
	return &LibraryModule{Library: lib, Backup: backup, JWT: jwt, Audit: auditLog}
}

func (m *LibraryModule) Register(rg *gin.RouterGroup) {
	auth := rg.Group("/")
	auth.Use(middleware.Auth(container.GetRedis(), m.JWT))
	auth.Use(middleware.CSRF(m.Audit))
	auth.Use(middleware.RateLimit(container.GetRedis(), 300, time.Minute, middleware.KeyByUserID(), nil))
	{
		auth.POST("/categories", m.Library.CreateCategory)
		auth.GET("/categories", m.Library.ListCategories)
		auth.PUT("/categories/:id", m.Library.UpdateCategory)
		auth.DELETE("/categories/:id", m.Library.DeleteCategory)

		auth.POST("/prompts", m.Library.CreatePrompt)
		auth.GET("/prompts", m.Library.ListPrompts)
		auth.GET("/prompts/search", m.Library.SearchPrompts)
		auth.GET("/prompts/:id", m.Library.GetPrompt)
		auth.PUT("/prompts/:id", m.Library.UpdatePrompt)
		auth.DELETE("/prompts/:id", m.Library.DeletePrompt)

		auth.POST("/items/document/upload", m.Library.UploadDocument)
		auth.POST("/items/:kind", m.Library.CreateItem)
		auth.GET("/items/:kind", m.Library.ListItems)
		auth.GET("/items/:kind/:id", m.Library.GetItem)
		auth.PUT("/items/:kind/:id", m.Library.UpdateItem)
		auth.DELETE("/items/:kind/:id", m.Library.DeleteItem)

		auth.POST("/shares", m.Library.Share)
		auth.DELETE("/shares", m.Library.Unshare)
		auth.GET("/shares/:kind/:id", m.Library.ListShares)
		auth.GET("/shared/:kind", m.Library.SharedWithMe)

		auth.GET("/usage", m.Library.Usage)

		auth.GET("/backup/export", m.Backup.Export)
		auth.POST("/backup/import", m.Backup.Import)
	}
}
