package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/promptash/promptash/internal/application"
	"github.com/promptash/promptash/pkg/response"
	"github.com/promptash/promptash/pkg/validation"
)

type RegistrationHandler struct {
	Svc *application.RegistrationService
}

func NewRegistrationHandler(svc *application.RegistrationService) *RegistrationHandler {
	return &RegistrationHandler{Svc: svc}
}

// Resolve GET /api/register/:token
// The registration page calls this to decide whether to show the form.
func (h *RegistrationHandler) Resolve(c *gin.Context) {
	co, err := h.Svc.ResolveCheckout(c.Request.Context(), c.Param("token"))
	if err != nil {
		svcError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"plan":   co.PlanName,
		"cycle":  co.BillingCycle,
		"trial":  co.Trial,
		"status": co.Status,
	}, "checkout ready for registration", nil)
}

// Register POST /api/register
func (h *RegistrationHandler) Register(c *gin.Context) {
	var req struct {
		Token           string `json:"token" binding:"required"`
		Username        string `json:"username" binding:"required"`
		Email           string `json:"email" binding:"required,email"`
		Password        string `json:"password" binding:"required"`
		PasswordConfirm string `json:"password_confirm" binding:"required,eqfield=Password"`
		FirstName       string `json:"first_name"`
		LastName        string `json:"last_name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}

	u, err := h.Svc.Register(c.Request.Context(), application.RegisterInput{
		CheckoutToken: req.Token,
		Username:      req.Username,
		Email:         req.Email,
		Password:      req.Password,
		FirstName:     req.FirstName,
		LastName:      req.LastName,
	}, clientIP(c))
	if err != nil {
		svcError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, viewOf(u), "account created, you can log in now", nil)
}
