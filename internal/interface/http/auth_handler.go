package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/promptash/promptash/config"
	"github.com/promptash/promptash/internal/application"
	"github.com/promptash/promptash/internal/domain/entity"
	"github.com/promptash/promptash/internal/interface/middleware"
	"github.com/promptash/promptash/pkg/helpers"
	"github.com/promptash/promptash/pkg/response"
	"github.com/promptash/promptash/pkg/validation"
)

type AuthHandler struct {
	Svc     *application.AuthService
	Cookies *helpers.Manager
	Cfg     *config.Config
}

func NewAuthHandler(svc *application.AuthService, cookies *helpers.Manager, cfg *config.Config) *AuthHandler {
	return &AuthHandler{Svc: svc, Cookies: cookies, Cfg: cfg}
}

// userView is the profile shape returned to clients. Secrets never leave the
// server.
type userView struct {
	ID               string `json:"id"`
	Username         string `json:"username"`
	Email            string `json:"email"`
	FirstName        string `json:"first_name,omitempty"`
	LastName         string `json:"last_name,omitempty"`
	Role             string `json:"role"`
	Plan             string `json:"plan"`
	TwoFactorEnabled bool   `json:"two_factor_enabled"`
}

func viewOf(u *entity.User) userView {
	return userView{
		ID:               u.ID,
		Username:         u.Username,
		Email:            u.Email,
		FirstName:        u.FirstName,
		LastName:         u.LastName,
		Role:             u.Role,
		Plan:             u.Plan,
		TwoFactorEnabled: u.TwoFactorEnabled,
	}
}

// setSession writes the token cookies plus a fresh CSRF cookie.
func (h *AuthHandler) setSession(c *gin.Context, pair application.TokenPair) {
	h.Cookies.SetPair(c, pair.AccessToken, pair.AccessTokenExpiry, pair.RefreshToken, pair.RefreshTokenExpiry)
	if csrf, err := helpers.GenToken(16); err == nil {
		h.Cookies.SetCSRF(c, csrf, time.Until(pair.RefreshTokenExpiry))
	}
}

// Login POST /api/auth/login {username, password}
// A client that already holds a live session gets a no-op response instead of
// a second credential check.
func (h *AuthHandler) Login(c *gin.Context) {
	if access, err := c.Cookie("access_token"); err == nil && h.Svc.SessionActive(c.Request.Context(), access) {
		response.Success[any](c, http.StatusOK, gin.H{"already_authenticated": true}, "already logged in", nil)
		return
	}

	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}

	res, err := h.Svc.Login(c.Request.Context(), req.Username, req.Password, clientIP(c))
	if err != nil {
		svcError(c, err)
		return
	}
	if res.TwoFactorRequired {
		response.Success(c, http.StatusOK, gin.H{
			"two_factor_required": true,
			"challenge_token":     res.ChallengeToken,
		}, "verification code required", nil)
		return
	}

	h.setSession(c, res.Pair)
	response.Success(c, http.StatusOK, viewOf(res.User), "logged in", nil)
}

// TwoFactorVerify POST /api/auth/2fa/verify {challenge_token, code}
func (h *AuthHandler) TwoFactorVerify(c *gin.Context) {
	var req struct {
		ChallengeToken string `json:"challenge_token" binding:"required"`
		Code           string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}

	res, err := h.Svc.VerifyTwoFactor(c.Request.Context(), req.ChallengeToken, req.Code, clientIP(c))
	if err != nil {
		svcError(c, err)
		return
	}
	h.setSession(c, res.Pair)
	if res.RecoveryCodeUsed {
		// The spent code is gone for good; nudge the user to mint a new set.
		response.Success(c, http.StatusOK, gin.H{
			"user":                      viewOf(res.User),
			"regenerate_recovery_codes": true,
		}, "logged in with a recovery code", nil)
		return
	}
	response.Success(c, http.StatusOK, viewOf(res.User), "logged in", nil)
}

// Refresh POST /api/auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	token, err := c.Cookie("refresh_token")
	if err != nil || token == "" {
		response.Error[any](c, http.StatusUnauthorized, "missing refresh token", nil)
		return
	}
	pair, _, err := h.Svc.Refresh(c.Request.Context(), token)
	if err != nil {
		svcError(c, err)
		return
	}
	h.setSession(c, pair)
	response.Success[any](c, http.StatusOK, gin.H{"refreshed": true}, "tokens refreshed", nil)
}

// Logout POST /api/auth/logout (auth required)
func (h *AuthHandler) Logout(c *gin.Context) {
	uid := c.GetString(middleware.CtxUserIDKey)
	if err := h.Svc.Logout(c.Request.Context(), uid); err != nil {
		svcError(c, err)
		return
	}
	h.Cookies.Clear(c)
	response.Success[any](c, http.StatusOK, gin.H{"logged_out": true}, "logged out", nil)
}

// Me GET /api/profile (auth required)
func (h *AuthHandler) Me(c *gin.Context) {
	u, err := h.Svc.GetProfile(c.Request.Context(), c.GetString(middleware.CtxUserIDKey))
	if err != nil {
		svcError(c, err)
		return
	}
	response.Success(c, http.StatusOK, viewOf(u), "profile", nil)
}

// UpdateProfile PUT /api/profile {email, first_name, last_name}
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	var req struct {
		Email     string `json:"email" binding:"omitempty,email"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	u, err := h.Svc.UpdateProfile(c.Request.Context(), c.GetString(middleware.CtxUserIDKey), application.UpdateProfileInput{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		svcError(c, err)
		return
	}
	response.Success(c, http.StatusOK, viewOf(u), "profile updated", nil)
}

// ChangePassword POST /api/profile/password {current_password, new_password}
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req struct {
		CurrentPassword string `json:"current_password" binding:"required"`
		NewPassword     string `json:"new_password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	if err := h.Svc.ChangePassword(c.Request.Context(), c.GetString(middleware.CtxUserIDKey), req.CurrentPassword, req.NewPassword); err != nil {
		svcError(c, err)
		return
	}
	response.Success[any](c, http.StatusOK, gin.H{"changed": true}, "password updated", nil)
}

// TwoFactorSetup POST /api/profile/2fa/setup
func (h *AuthHandler) TwoFactorSetup(c *gin.Context) {
	setup, err := h.Svc.SetupTwoFactor(c.Request.Context(), c.GetString(middleware.CtxUserIDKey))
	if err != nil {
		svcError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"secret":      setup.Secret,
		"otpauth_url": setup.URL,
	}, "scan the code, then confirm", nil)
}

// TwoFactorConfirm POST /api/profile/2fa/confirm {code}
func (h *AuthHandler) TwoFactorConfirm(c *gin.Context) {
	var req struct {
		Code string `json:"code" binding:"required,totpcode"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	codes, err := h.Svc.ConfirmTwoFactor(c.Request.Context(), c.GetString(middleware.CtxUserIDKey), req.Code, clientIP(c))
	if err != nil {
		svcError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"recovery_codes": codes}, "two-factor enabled; store these codes now", nil)
}

// TwoFactorDisable POST /api/profile/2fa/disable {password}
func (h *AuthHandler) TwoFactorDisable(c *gin.Context) {
	var req struct {
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	if err := h.Svc.DisableTwoFactor(c.Request.Context(), c.GetString(middleware.CtxUserIDKey), req.Password); err != nil {
		svcError(c, err)
		return
	}
	response.Success[any](c, http.StatusOK, gin.H{"disabled": true}, "two-factor disabled", nil)
}

// RecoveryCodes POST /api/profile/2fa/recovery-codes {password}
func (h *AuthHandler) RecoveryCodes(c *gin.Context) {
	var req struct {
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	codes, err := h.Svc.RegenerateRecoveryCodes(c.Request.Context(), c.GetString(middleware.CtxUserIDKey), req.Password, clientIP(c))
	if err != nil {
		svcError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"recovery_codes": codes}, "previous codes are now invalid", nil)
}

// ResetInit POST /api/auth/reset/init {email}
// Always returns OK so addresses cannot be probed.
func (h *AuthHandler) ResetInit(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	if err := h.Svc.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		svcError(c, err)
		return
	}
	response.Success[any](c, http.StatusOK, gin.H{"sent": true}, "if the address exists, a reset email is on its way", nil)
}

// ResetConfirm POST /api/auth/reset/confirm {token, new_password}
func (h *AuthHandler) ResetConfirm(c *gin.Context) {
	var req struct {
		Token       string `json:"token" binding:"required"`
		NewPassword string `json:"new_password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	if err := h.Svc.ConfirmPasswordReset(c.Request.Context(), req.Token, req.NewPassword, clientIP(c)); err != nil {
		svcError(c, err)
		return
	}
	response.Success[any](c, http.StatusOK, gin.H{"reset": true}, "password updated", nil)
}
