package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/promptash/promptash/internal/application"
	"github.com/promptash/promptash/internal/infrastructure/postgres"
	"github.com/promptash/promptash/pkg/payment"
)

func TestSvcErrorStatusMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name string
		err  error
		want int
	}{
		{"invalid credentials", application.ErrInvalidCredentials, http.StatusUnauthorized},
		{"invalid code", application.ErrInvalidCode, http.StatusUnauthorized},
		{"challenge expired", application.ErrChallengeExpired, http.StatusGone},
		{"forbidden", application.ErrForbidden, http.StatusForbidden},
		{"bad signature", application.ErrBadSignature, http.StatusForbidden},
		{"quota exceeded", application.ErrQuotaExceeded, http.StatusForbidden},
		{"user not found", application.ErrUserNotFound, http.StatusNotFound},
		{"checkout not found", application.ErrCheckoutNotFound, http.StatusNotFound},
		{"row not found", postgres.ErrNotFound, http.StatusNotFound},
		{"checkout expired", application.ErrCheckoutExpired, http.StatusConflict},
		{"checkout consumed", application.ErrCheckoutConsumed, http.StatusConflict},
		{"checkout not paid", application.ErrCheckoutNotPaid, http.StatusConflict},
		{"username taken", application.ErrUsernameTaken, http.StatusConflict},
		{"email taken", application.ErrEmailTaken, http.StatusConflict},
		{"unknown plan", application.ErrUnknownPlan, http.StatusBadRequest},
		{"invalid backup", application.ErrInvalidBackup, http.StatusBadRequest},
		{"verify failed", payment.ErrVerifyFailed, http.StatusBadGateway},
		{"wrapped", errors.Join(errors.New("ctx"), application.ErrQuotaExceeded), http.StatusForbidden},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			svcError(c, tt.err)
			require.Equal(t, tt.want, w.Code)
		})
	}
}

func TestSvcErrorValidation(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	svcError(c, &application.ValidationError{Violations: map[string][]string{
		"password": {"password too short"},
	}})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	require.Contains(t, w.Body.String(), "password too short")
}

func TestSvcErrorHidesInternalDetail(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	svcError(c, errors.New("pq: connection refused host=10.0.0.3"))
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.NotContains(t, w.Body.String(), "10.0.0.3")
	require.Contains(t, w.Body.String(), "internal error")
}
