package handlers

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/promptash/promptash/internal/application"
	"github.com/promptash/promptash/internal/interface/middleware"
	"github.com/promptash/promptash/pkg/response"
)

// maxImportBytes caps backup uploads at 10 MiB.
const maxImportBytes = 10 << 20

// importErrorsShown is how many per-entry errors the response lists before
// collapsing the rest into a count.
const importErrorsShown = 3

type BackupHandler struct {
	Svc *application.BackupService
}

func NewBackupHandler(svc *application.BackupService) *BackupHandler {
	return &BackupHandler{Svc: svc}
}

// Export GET /api/backup/export?format=json|text
// Responds with a file download.
func (h *BackupHandler) Export(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	stamp := time.Now().Format("2006-01-02")

	switch c.DefaultQuery("format", "json") {
	case "text":
		raw, err := h.Svc.ExportText(c.Request.Context(), userID)
		if err != nil {
			svcError(c, err)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=promptash-backup-%s.txt", stamp))
		c.Data(http.StatusOK, "text/plain; charset=utf-8", raw)
	case "json":
		raw, err := h.Svc.ExportJSON(c.Request.Context(), userID)
		if err != nil {
			svcError(c, err)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=promptash-backup-%s.json", stamp))
		c.Data(http.StatusOK, "application/json", raw)
	default:
		response.Error[any](c, http.StatusBadRequest, "format must be json or text", nil)
	}
}

// Import POST /api/backup/import
// Accepts either a multipart "file" field or a raw JSON body.
func (h *BackupHandler) Import(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxImportBytes)

	var raw []byte
	if fileHeader, err := c.FormFile("file"); err == nil {
		f, err := fileHeader.Open()
		if err != nil {
			response.Error[any](c, http.StatusBadRequest, "unreadable file", nil)
			return
		}
		defer func() { _ = f.Close() }()
		raw, err = io.ReadAll(f)
		if err != nil {
			response.Error[any](c, http.StatusBadRequest, "unreadable file", nil)
			return
		}
	} else {
		var rerr error
		raw, rerr = io.ReadAll(c.Request.Body)
		if rerr != nil || len(raw) == 0 {
			response.Error[any](c, http.StatusBadRequest, "missing backup payload", nil)
			return
		}
	}

	report, err := h.Svc.Import(c.Request.Context(), c.GetString(middleware.CtxUserIDKey), raw)
	if err != nil {
		svcError(c, err)
		return
	}

	shown := report.Errors
	var more int
	if len(shown) > importErrorsShown {
		more = len(shown) - importErrorsShown
		shown = shown[:importErrorsShown]
	}
	data := gin.H{
		"categories_created": report.CategoriesCreated,
		"categories_merged":  report.CategoriesMerged,
		"prompts_imported":   report.PromptsImported,
		"prompts_skipped":    report.PromptsSkipped,
		"errors":             shown,
	}
	if more > 0 {
		data["errors_omitted"] = more
	}
	response.Success(c, http.StatusOK, data, "import finished", nil)
}
