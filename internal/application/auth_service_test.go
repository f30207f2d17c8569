package application

import (
	"context"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptash/promptash/config"
	"github.com/promptash/promptash/internal/domain/entity"
	"github.com/promptash/promptash/pkg/helpers"
)

func testConfig() *config.Config {
	return &config.Config{
		ChallengeTTL:     5 * time.Minute,
		ResetTokenTTL:    30 * time.Minute,
		ResetPasswordURL: "http://localhost/reset",
		TOTPIssuer:       "Promptash",
		CompanyName:      "Promptash",
		AccessTTL:        time.Hour,
		RefreshTTL:       24 * time.Hour,
	}
}

func newAuthService(t *testing.T, users *memUsers) (*AuthService, *memTokenStore, *captureMail) {
	t.Helper()
	tokens := newMemTokenStore()
	mail := &captureMail{}
	jwt := helpers.NewJWTManager("access", "refresh", time.Hour, 24*time.Hour)
	return NewAuthService(users, jwt, nil, tokens, mail, nil, nil, testConfig()), tokens, mail
}

func seedUser(t *testing.T, users *memUsers, username, password string) *entity.User {
	t.Helper()
	hash, err := helpers.HashPassword(password)
	require.NoError(t, err)
	u := &entity.User{Username: username, Email: username + "@example.com", Password: hash, Role: entity.RoleUser, Plan: "basic"}
	require.NoError(t, users.Create(context.Background(), u))
	return u
}

func totpCodeForTest(t *testing.T, secret string) string {
	t.Helper()
	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	return code
}

func TestLoginWrongPassword(t *testing.T) {
	users := newMemUsers()
	seedUser(t, users, "ada", "Str0ng!pass")
	svc, _, _ := newAuthService(t, users)

	_, err := svc.Login(context.Background(), "ada", "wrong", "127.0.0.1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), "nobody", "Str0ng!pass", "127.0.0.1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginIssuesTokensWithoutTwoFactor(t *testing.T) {
	users := newMemUsers()
	seedUser(t, users, "ada", "Str0ng!pass")
	svc, _, _ := newAuthService(t, users)

	res, err := svc.Login(context.Background(), "ada", "Str0ng!pass", "127.0.0.1")
	require.NoError(t, err)
	assert.False(t, res.TwoFactorRequired)
	assert.NotEmpty(t, res.Pair.AccessToken)
	assert.NotEmpty(t, res.Pair.RefreshToken)

	claims, err := svc.JWT.ParseAccessToken(res.Pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, claims.UserID)
}

func TestLoginWithTwoFactorParksChallenge(t *testing.T) {
	users := newMemUsers()
	u := seedUser(t, users, "ada", "Str0ng!pass")
	u.TwoFactorEnabled = true
	u.TOTPSecret = "JBSWY3DPEHPK3PXP"
	require.NoError(t, users.Update(context.Background(), u))

	svc, tokens, _ := newAuthService(t, users)

	res, err := svc.Login(context.Background(), "ada", "Str0ng!pass", "127.0.0.1")
	require.NoError(t, err)
	assert.True(t, res.TwoFactorRequired)
	assert.NotEmpty(t, res.ChallengeToken)
	assert.Empty(t, res.Pair.AccessToken, "no session before the code is verified")

	stored, found, err := tokens.Get(context.Background(), helpers.KeyTwoFactorChallenge(res.ChallengeToken))
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, u.ID, stored)
}

func TestVerifyTwoFactorExpiredChallenge(t *testing.T) {
	users := newMemUsers()
	seedUser(t, users, "ada", "Str0ng!pass")
	svc, _, _ := newAuthService(t, users)

	_, err := svc.VerifyTwoFactor(context.Background(), "gone", "123456", "127.0.0.1")
	assert.ErrorIs(t, err, ErrChallengeExpired)
}

func TestVerifyTwoFactorWithTOTPCode(t *testing.T) {
	users := newMemUsers()
	u := seedUser(t, users, "ada", "Str0ng!pass")
	u.TwoFactorEnabled = true
	u.TOTPSecret = "JBSWY3DPEHPK3PXP"
	require.NoError(t, users.Update(context.Background(), u))

	svc, tokens, _ := newAuthService(t, users)
	require.NoError(t, tokens.Set(context.Background(), helpers.KeyTwoFactorChallenge("ch1"), u.ID, time.Minute))

	res, err := svc.VerifyTwoFactor(context.Background(), "ch1", totpCodeForTest(t, u.TOTPSecret), "127.0.0.1")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Pair.AccessToken)
	assert.False(t, res.RecoveryCodeUsed)
}

func TestVerifyTwoFactorWithRecoveryCode(t *testing.T) {
	users := newMemUsers()
	u := seedUser(t, users, "ada", "Str0ng!pass")
	u.TwoFactorEnabled = true
	u.TOTPSecret = "JBSWY3DPEHPK3PXP"
	require.NoError(t, users.Update(context.Background(), u))

	code := "ABCD2345"
	hash, err := helpers.HashPassword(code)
	require.NoError(t, err)
	require.NoError(t, users.ReplaceRecoveryCodes(context.Background(), u.ID, []string{hash}))

	svc, tokens, _ := newAuthService(t, users)
	require.NoError(t, tokens.Set(context.Background(), helpers.KeyTwoFactorChallenge("ch1"), u.ID, time.Minute))

	res, err := svc.VerifyTwoFactor(context.Background(), "ch1", code, "127.0.0.1")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Pair.AccessToken)
	assert.True(t, res.RecoveryCodeUsed, "client is told to regenerate codes")

	// The code is single use.
	require.NoError(t, tokens.Set(context.Background(), helpers.KeyTwoFactorChallenge("ch2"), u.ID, time.Minute))
	_, err = svc.VerifyTwoFactor(context.Background(), "ch2", code, "127.0.0.1")
	assert.ErrorIs(t, err, ErrInvalidCode)
}

func TestConfirmTwoFactorEnablesAndIssuesRecoveryCodes(t *testing.T) {
	users := newMemUsers()
	u := seedUser(t, users, "ada", "Str0ng!pass")
	svc, tokens, mail := newAuthService(t, users)

	setup, err := svc.SetupTwoFactor(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Contains(t, setup.URL, "otpauth://")

	// Simulate the authenticator by computing a code for the pending secret.
	code := totpCodeForTest(t, setup.Secret)
	codes, err := svc.ConfirmTwoFactor(context.Background(), u.ID, code, "127.0.0.1")
	require.NoError(t, err)
	assert.Len(t, codes, helpers.RecoveryCodeCount)

	got, err := users.GetByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.True(t, got.TwoFactorEnabled)
	assert.Equal(t, setup.Secret, got.TOTPSecret)

	_, found, _ := tokens.Get(context.Background(), keyTwoFactorSetup(u.ID))
	assert.False(t, found, "pending secret is discarded after confirm")
	assert.Equal(t, 1, mail.count(), "recovery codes email enqueued")
}

func TestDisableTwoFactorRequiresPassword(t *testing.T) {
	users := newMemUsers()
	u := seedUser(t, users, "ada", "Str0ng!pass")
	u.TwoFactorEnabled = true
	u.TOTPSecret = "JBSWY3DPEHPK3PXP"
	require.NoError(t, users.Update(context.Background(), u))

	svc, _, _ := newAuthService(t, users)

	err := svc.DisableTwoFactor(context.Background(), u.ID, "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	require.NoError(t, svc.DisableTwoFactor(context.Background(), u.ID, "Str0ng!pass"))
	got, err := users.GetByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.False(t, got.TwoFactorEnabled)
	assert.Empty(t, got.TOTPSecret)
}

func TestPasswordResetFlow(t *testing.T) {
	users := newMemUsers()
	u := seedUser(t, users, "ada", "Str0ng!pass")
	svc, tokens, mail := newAuthService(t, users)

	// Unknown email succeeds without sending anything.
	require.NoError(t, svc.RequestPasswordReset(context.Background(), "nobody@example.com"))
	assert.Equal(t, 0, mail.count())

	require.NoError(t, svc.RequestPasswordReset(context.Background(), u.Email))
	assert.Equal(t, 1, mail.count())

	// Find the stored token.
	var token string
	for k := range tokens.data {
		token = k[len("pwreset:"):]
	}
	require.NotEmpty(t, token)

	err := svc.ConfirmPasswordReset(context.Background(), token, "weak", "127.0.0.1")
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)

	require.NoError(t, svc.ConfirmPasswordReset(context.Background(), token, "N3w!passw0rd", "127.0.0.1"))

	_, err = svc.Login(context.Background(), "ada", "Str0ng!pass", "127.0.0.1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(context.Background(), "ada", "N3w!passw0rd", "127.0.0.1")
	assert.NoError(t, err)

	// The token is single use.
	err = svc.ConfirmPasswordReset(context.Background(), token, "N3w!passw0rd2", "127.0.0.1")
	assert.ErrorIs(t, err, ErrChallengeExpired)
}

func TestUpdateProfileKeepsUsername(t *testing.T) {
	users := newMemUsers()
	u := seedUser(t, users, "ada", "Str0ng!pass")
	other := seedUser(t, users, "bob", "Str0ng!pass")
	svc, _, _ := newAuthService(t, users)

	_, err := svc.UpdateProfile(context.Background(), u.ID, UpdateProfileInput{Email: other.Email})
	assert.ErrorIs(t, err, ErrEmailTaken)

	got, err := svc.UpdateProfile(context.Background(), u.ID, UpdateProfileInput{FirstName: "Ada", LastName: "Lovelace"})
	require.NoError(t, err)
	assert.Equal(t, "ada", got.Username)
	assert.Equal(t, "Ada", got.FirstName)
}
