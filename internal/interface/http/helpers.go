package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/promptash/promptash/internal/application"
	"github.com/promptash/promptash/internal/infrastructure/postgres"
	"github.com/promptash/promptash/pkg/payment"
	"github.com/promptash/promptash/pkg/response"
)

func clientIP(c *gin.Context) string {
	if ip := c.GetString("real_ip"); ip != "" {
		return ip
	}
	return c.ClientIP()
}

// svcError maps application errors onto HTTP statuses with the standard
// envelope. Unknown errors become opaque 500s.
func svcError(c *gin.Context, err error) {
	var verr *application.ValidationError
	if errors.As(err, &verr) {
		response.Error[any](c, http.StatusUnprocessableEntity, "validation failed", verr.Violations)
		return
	}

	switch {
	case errors.Is(err, application.ErrInvalidCredentials),
		errors.Is(err, application.ErrInvalidCode):
		response.Error[any](c, http.StatusUnauthorized, err.Error(), nil)
	case errors.Is(err, application.ErrChallengeExpired):
		response.Error[any](c, http.StatusGone, err.Error(), nil)
	case errors.Is(err, application.ErrForbidden),
		errors.Is(err, application.ErrBadSignature):
		response.Error[any](c, http.StatusForbidden, err.Error(), nil)
	case errors.Is(err, application.ErrUserNotFound),
		errors.Is(err, application.ErrCheckoutNotFound),
		errors.Is(err, postgres.ErrNotFound):
		response.Error[any](c, http.StatusNotFound, "not found", nil)
	case errors.Is(err, application.ErrCheckoutExpired),
		errors.Is(err, application.ErrCheckoutConsumed),
		errors.Is(err, application.ErrCheckoutUnusable),
		errors.Is(err, application.ErrCheckoutNotPaid),
		errors.Is(err, application.ErrCheckoutNotAuthorized):
		response.Error[any](c, http.StatusConflict, err.Error(), nil)
	case errors.Is(err, application.ErrUsernameTaken),
		errors.Is(err, application.ErrEmailTaken):
		response.Error[any](c, http.StatusConflict, err.Error(), nil)
	case errors.Is(err, application.ErrQuotaExceeded):
		response.Error[any](c, http.StatusForbidden, err.Error(), nil)
	case errors.Is(err, application.ErrUnknownPlan),
		errors.Is(err, application.ErrInvalidBackup),
		errors.Is(err, application.ErrTwoFactorNotSetup):
		response.Error[any](c, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, payment.ErrVerifyFailed):
		response.Error[any](c, http.StatusBadGateway, "payment verification failed", nil)
	default:
		response.Error[any](c, http.StatusInternalServerError, "internal error", nil)
	}
}
