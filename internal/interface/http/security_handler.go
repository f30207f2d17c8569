package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/promptash/promptash/internal/domain/repository"
	"github.com/promptash/promptash/pkg/response"
)

// SecurityHandler exposes the audit trail to admins.
type SecurityHandler struct {
	Repo repository.AuditRepository
}

func NewSecurityHandler(repo repository.AuditRepository) *SecurityHandler {
	return &SecurityHandler{Repo: repo}
}

// Events GET /api/admin/security-events?limit=
func (h *SecurityHandler) Events(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	events, err := h.Repo.List(c.Request.Context(), limit)
	if err != nil {
		svcError(c, err)
		return
	}
	response.Success(c, http.StatusOK, events, "security events", nil)
}
