package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/promptash/promptash/internal/application"
	"github.com/promptash/promptash/pkg/response"
	"github.com/promptash/promptash/pkg/validation"
)

type CheckoutHandler struct {
	Svc    *application.CheckoutService
	Logger *logrus.Logger
}

func NewCheckoutHandler(svc *application.CheckoutService, logger *logrus.Logger) *CheckoutHandler {
	return &CheckoutHandler{Svc: svc, Logger: logger}
}

// Tiers GET /api/checkout/tiers
func (h *CheckoutHandler) Tiers(c *gin.Context) {
	tiers, err := h.Svc.ListTiers(c.Request.Context())
	if err != nil {
		svcError(c, err)
		return
	}
	out := make([]gin.H, 0, len(tiers))
	for _, t := range tiers {
		out = append(out, gin.H{
			"name":          t.Name,
			"display_name":  t.DisplayName,
			"monthly_cents": t.MonthlyCents,
			"annual_cents":  t.AnnualCents,
			"item_limit":    t.ItemLimit,
		})
	}
	response.Success(c, http.StatusOK, out, "membership tiers", nil)
}

// Create POST /api/checkout {plan, cycle, trial, email}
func (h *CheckoutHandler) Create(c *gin.Context) {
	var req struct {
		Plan  string `json:"plan" binding:"required"`
		Cycle string `json:"cycle" binding:"required,cycle"`
		Trial bool   `json:"trial"`
		Email string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	res, err := h.Svc.Create(c.Request.Context(), application.CreateCheckoutInput{
		Plan:  req.Plan,
		Cycle: req.Cycle,
		Trial: req.Trial,
		Email: req.Email,
	})
	if err != nil {
		svcError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{
		"token":             res.Token,
		"authorization_url": res.AuthorizationURL,
		"amount_cents":      res.AmountCents,
	}, "checkout created", nil)
}

// Status GET /api/checkout/:token
func (h *CheckoutHandler) Status(c *gin.Context) {
	token := c.Param("token")
	co, err := h.Svc.Resolve(c.Request.Context(), token)
	if err != nil {
		svcError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"token":          co.Token,
		"plan":           co.PlanName,
		"cycle":          co.BillingCycle,
		"trial":          co.Trial,
		"status":         co.Status,
		"amount_cents":   co.AmountCents,
		"expires_at":     co.ExpiresAt,
		"just_completed": h.Svc.ConsumeFlash(c.Request.Context(), token),
	}, "checkout status", nil)
}

// Callback GET /api/checkout/callback?reference=...
// The provider redirects the browser here after payment.
func (h *CheckoutHandler) Callback(c *gin.Context) {
	reference := c.Query("reference")
	if reference == "" {
		reference = c.Query("trxref") // paystack sends both
	}
	if reference == "" {
		response.Error[any](c, http.StatusBadRequest, "missing reference", nil)
		return
	}
	next, err := h.Svc.HandleCallback(c.Request.Context(), reference)
	if err != nil {
		svcError(c, err)
		return
	}
	c.Redirect(http.StatusFound, next)
}

// Webhook POST /api/checkout/webhook
// Raw-body endpoint: the signature covers the exact bytes received.
func (h *CheckoutHandler) Webhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.Error[any](c, http.StatusBadRequest, "unreadable body", nil)
		return
	}
	out, err := h.Svc.HandleWebhook(c.Request.Context(), body, c.GetHeader("x-paystack-signature"), clientIP(c))
	if err != nil {
		svcError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"handled": out.Handled}, out.Message, nil)
}
