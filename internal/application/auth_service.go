package application

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/promptash/promptash/config"
	"github.com/promptash/promptash/internal/domain/entity"
	"github.com/promptash/promptash/internal/domain/repository"
	"github.com/promptash/promptash/internal/infrastructure/postgres"
	"github.com/promptash/promptash/pkg/audit"
	"github.com/promptash/promptash/pkg/helpers"
	"github.com/promptash/promptash/pkg/mailer"
	"github.com/promptash/promptash/pkg/mailer/templates"
	"github.com/promptash/promptash/pkg/validation"
)

// EmailPublisher enqueues email jobs for the worker. Satisfied by
// helpers.RabbitPublisher.
type EmailPublisher interface {
	PublishJSON(ctx context.Context, body any) error
}

type AuthService struct {
	Users  repository.UserRepository
	JWT    *helpers.JWTManager
	Redis  *redis.Client
	Tokens TokenStore
	Mail   EmailPublisher
	Audit  *audit.Logger
	Logger *logrus.Logger
	Cfg    *config.Config
}

func NewAuthService(users repository.UserRepository, jwt *helpers.JWTManager, rdb *redis.Client, tokens TokenStore, mail EmailPublisher, auditLog *audit.Logger, logger *logrus.Logger, cfg *config.Config) *AuthService {
	return &AuthService{Users: users, JWT: jwt, Redis: rdb, Tokens: tokens, Mail: mail, Audit: auditLog, Logger: logger, Cfg: cfg}
}

type TokenPair struct {
	AccessToken        string
	AccessTokenExpiry  time.Time
	RefreshToken       string
	RefreshTokenExpiry time.Time
}

func sessionKey(userID string) string { return "user:session:" + userID }

func keyTwoFactorSetup(userID string) string { return "2fa:setup:" + userID }

func keyPasswordReset(token string) string { return "pwreset:" + token }

func nowRFC3339() string { return time.Now().UTC().Format(time.RFC3339Nano) }

// LoginResult is either an issued session or a pending two-factor challenge,
// never both.
type LoginResult struct {
	User              *entity.User
	Pair              TokenPair
	TwoFactorRequired bool
	ChallengeToken    string

	// RecoveryCodeUsed is set when the login was completed with a recovery
	// code rather than a TOTP code, so clients can prompt for regeneration.
	RecoveryCodeUsed bool
}

// Login checks the password and, when the account has two-factor enabled,
// parks the login behind a short-lived challenge token instead of issuing a
// session.
func (s *AuthService) Login(ctx context.Context, username, password, ip string) (*LoginResult, error) {
	u, err := s.Users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			s.record(ctx, entity.EventLoginFailure, "", ip, map[string]any{"username": username, "reason": "unknown user"})
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !helpers.CompareHashAndPassword(u.Password, password) {
		s.record(ctx, entity.EventLoginFailure, u.ID, ip, map[string]any{"username": username, "reason": "bad password"})
		return nil, ErrInvalidCredentials
	}

	if u.TwoFactorEnabled {
		token, err := helpers.GenToken(24)
		if err != nil {
			return nil, err
		}
		if err := s.Tokens.Set(ctx, helpers.KeyTwoFactorChallenge(token), u.ID, s.Cfg.ChallengeTTL); err != nil {
			return nil, err
		}
		return &LoginResult{User: u, TwoFactorRequired: true, ChallengeToken: token}, nil
	}

	pair, err := s.IssueTokens(ctx, u)
	if err != nil {
		return nil, err
	}
	s.record(ctx, entity.EventLoginSuccess, u.ID, ip, map[string]any{"username": u.Username})
	return &LoginResult{User: u, Pair: pair}, nil
}

// VerifyTwoFactor completes a challenged login with either a TOTP code or a
// single-use recovery code.
func (s *AuthService) VerifyTwoFactor(ctx context.Context, challengeToken, code, ip string) (*LoginResult, error) {
	key := helpers.KeyTwoFactorChallenge(challengeToken)
	userID, found, err := s.Tokens.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrChallengeExpired
	}

	u, err := s.Users.GetByID(ctx, userID)
	if err != nil {
		return nil, ErrChallengeExpired
	}

	code = strings.TrimSpace(code)
	ok := false
	recovery := false
	if len(code) == 6 && helpers.ValidateTOTP(code, u.TOTPSecret) {
		ok = true
		s.record(ctx, entity.EventTwoFactorSuccess, u.ID, ip, nil)
	} else if matched := s.consumeRecoveryCode(ctx, u.ID, code); matched {
		ok = true
		recovery = true
		s.record(ctx, entity.EventRecoveryCodeUsed, u.ID, ip, nil)
	}
	if !ok {
		s.record(ctx, entity.EventTwoFactorFailure, u.ID, ip, nil)
		return nil, ErrInvalidCode
	}

	_ = s.Tokens.Del(ctx, key)

	pair, err := s.IssueTokens(ctx, u)
	if err != nil {
		return nil, err
	}
	s.record(ctx, entity.EventLoginSuccess, u.ID, ip, map[string]any{"username": u.Username, "two_factor": true})
	return &LoginResult{User: u, Pair: pair, RecoveryCodeUsed: recovery}, nil
}

// consumeRecoveryCode marks a matching unused recovery code as spent.
func (s *AuthService) consumeRecoveryCode(ctx context.Context, userID, code string) bool {
	code = strings.ToUpper(code)
	if len(code) != helpers.RecoveryCodeLen {
		return false
	}
	codes, err := s.Users.ListUnusedRecoveryCodes(ctx, userID)
	if err != nil {
		return false
	}
	for _, rc := range codes {
		if helpers.CompareHashAndPassword(rc.CodeHash, code) {
			if err := s.Users.MarkRecoveryCodeUsed(ctx, rc.ID); err != nil {
				return false
			}
			return true
		}
	}
	return false
}

// IssueTokens generates the access/refresh pair and records the session in
// Redis keyed by user id.
func (s *AuthService) IssueTokens(ctx context.Context, u *entity.User) (TokenPair, error) {
	sid := uuid.NewString()
	access, aexp, err := s.JWT.GenerateAccessToken(u.ID, sid)
	if err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("user_id", u.ID).Error("generate access token failed")
		}
		return TokenPair{}, err
	}
	refresh, rexp, err := s.JWT.GenerateRefreshToken(u.ID, sid)
	if err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("user_id", u.ID).Error("generate refresh token failed")
		}
		return TokenPair{}, err
	}

	if s.Redis != nil {
		key := sessionKey(u.ID)
		pipe := s.Redis.Pipeline()
		pipe.HSet(ctx, key, map[string]any{
			"user_id":    u.ID,
			"username":   u.Username,
			"email":      u.Email,
			"role":       u.Role,
			"plan":       u.Plan,
			"sid":        sid,
			"created_at": nowRFC3339(),
		})
		pipe.Expire(ctx, key, s.Cfg.RefreshTTL)
		if _, rErr := pipe.Exec(ctx); rErr != nil && s.Logger != nil {
			s.Logger.WithError(rErr).WithField("key", key).Warn("redis pipeline failed")
		}
	}

	return TokenPair{AccessToken: access, AccessTokenExpiry: aexp, RefreshToken: refresh, RefreshTokenExpiry: rexp}, nil
}

// Refresh rotates the session id and both tokens. The refresh token's sid must
// match the current session.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (TokenPair, string, error) {
	claims, err := s.JWT.ParseRefreshToken(refreshToken)
	if err != nil {
		return TokenPair{}, "", ErrInvalidCredentials
	}
	u, err := s.Users.GetByID(ctx, claims.UserID)
	if err != nil {
		return TokenPair{}, "", ErrInvalidCredentials
	}
	if s.Redis != nil {
		data, rErr := s.Redis.HGetAll(ctx, sessionKey(u.ID)).Result()
		if rErr != nil || len(data) == 0 || data["sid"] != claims.SessionID {
			return TokenPair{}, "", ErrInvalidCredentials
		}
	}
	pair, err := s.IssueTokens(ctx, u)
	if err != nil {
		return TokenPair{}, "", err
	}
	return pair, u.ID, nil
}

// Logout drops the Redis session. Cookies are cleared by the handler.
// SessionActive reports whether an access token still maps to a live session.
// Used to short-circuit login for clients that already hold valid cookies.
func (s *AuthService) SessionActive(ctx context.Context, accessToken string) bool {
	if accessToken == "" || s.Redis == nil {
		return false
	}
	claims, err := s.JWT.ParseAccessToken(accessToken)
	if err != nil {
		return false
	}
	sid, err := s.Redis.HGet(ctx, sessionKey(claims.UserID), "sid").Result()
	return err == nil && sid == claims.SessionID
}

func (s *AuthService) Logout(ctx context.Context, userID string) error {
	if s.Redis == nil {
		return nil
	}
	return s.Redis.Del(ctx, sessionKey(userID)).Err()
}

func (s *AuthService) GetProfile(ctx context.Context, userID string) (*entity.User, error) {
	u, err := s.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

type UpdateProfileInput struct {
	Email     string
	FirstName string
	LastName  string
}

// UpdateProfile changes mutable profile fields. The username never changes.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, in UpdateProfileInput) (*entity.User, error) {
	u, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if in.Email != "" && in.Email != u.Email {
		if other, err := s.Users.GetByEmail(ctx, in.Email); err == nil && other.ID != u.ID {
			return nil, ErrEmailTaken
		} else if err != nil && !errors.Is(err, postgres.ErrNotFound) {
			return nil, err
		}
		u.Email = in.Email
	}
	if in.FirstName != "" {
		u.FirstName = in.FirstName
	}
	if in.LastName != "" {
		u.LastName = in.LastName
	}
	if err := s.Users.Update(ctx, u); err != nil {
		return nil, err
	}

	if s.Redis != nil {
		key := sessionKey(u.ID)
		pipe := s.Redis.Pipeline()
		pipe.HSet(ctx, key, map[string]any{
			"email":      u.Email,
			"updated_at": nowRFC3339(),
		})
		if ttl, tErr := s.Redis.TTL(ctx, key).Result(); tErr == nil && ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		if _, pErr := pipe.Exec(ctx); pErr != nil && s.Logger != nil {
			s.Logger.WithError(pErr).WithField("key", key).Warn("redis pipeline failed")
		}
	}
	return u, nil
}

// ChangePassword verifies the current password before setting a new one.
func (s *AuthService) ChangePassword(ctx context.Context, userID, current, next string) error {
	u, err := s.GetProfile(ctx, userID)
	if err != nil {
		return err
	}
	if !helpers.CompareHashAndPassword(u.Password, current) {
		return ErrInvalidCredentials
	}
	if v := passwordViolations(next); v != nil {
		return v
	}
	hash, err := helpers.HashPassword(next)
	if err != nil {
		return err
	}
	return s.Users.UpdatePassword(ctx, u.ID, hash)
}

// TwoFactorSetup provisions a TOTP secret and holds it aside until the user
// confirms with a valid code. Nothing is enabled yet.
type TwoFactorSetup struct {
	Secret string
	URL    string
}

func (s *AuthService) SetupTwoFactor(ctx context.Context, userID string) (*TwoFactorSetup, error) {
	u, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	secret, url, err := helpers.GenerateTOTPSecret(s.Cfg.TOTPIssuer, u.Username)
	if err != nil {
		return nil, err
	}
	if err := s.Tokens.Set(ctx, keyTwoFactorSetup(u.ID), secret, 15*time.Minute); err != nil {
		return nil, err
	}
	return &TwoFactorSetup{Secret: secret, URL: url}, nil
}

// ConfirmTwoFactor enables two-factor once the user proves they can produce a
// code for the pending secret, and returns the plaintext recovery codes. The
// codes are shown exactly once; only bcrypt hashes are stored.
func (s *AuthService) ConfirmTwoFactor(ctx context.Context, userID, code, ip string) ([]string, error) {
	secret, found, err := s.Tokens.Get(ctx, keyTwoFactorSetup(userID))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrTwoFactorNotSetup
	}
	if !helpers.ValidateTOTP(strings.TrimSpace(code), secret) {
		return nil, ErrInvalidCode
	}

	u, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	u.TOTPSecret = secret
	u.TwoFactorEnabled = true
	if err := s.Users.Update(ctx, u); err != nil {
		return nil, err
	}
	_ = s.Tokens.Del(ctx, keyTwoFactorSetup(userID))

	codes, err := s.replaceRecoveryCodes(ctx, u, ip)
	if err != nil {
		return nil, err
	}
	return codes, nil
}

// DisableTwoFactor turns off two-factor after a password check and discards
// all recovery codes.
func (s *AuthService) DisableTwoFactor(ctx context.Context, userID, password string) error {
	u, err := s.GetProfile(ctx, userID)
	if err != nil {
		return err
	}
	if !helpers.CompareHashAndPassword(u.Password, password) {
		return ErrInvalidCredentials
	}
	u.TOTPSecret = ""
	u.TwoFactorEnabled = false
	if err := s.Users.Update(ctx, u); err != nil {
		return err
	}
	return s.Users.ReplaceRecoveryCodes(ctx, u.ID, nil)
}

// RegenerateRecoveryCodes invalidates the old set and issues a fresh one.
func (s *AuthService) RegenerateRecoveryCodes(ctx context.Context, userID, password, ip string) ([]string, error) {
	u, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !helpers.CompareHashAndPassword(u.Password, password) {
		return nil, ErrInvalidCredentials
	}
	if !u.TwoFactorEnabled {
		return nil, ErrTwoFactorNotSetup
	}
	return s.replaceRecoveryCodes(ctx, u, ip)
}

func (s *AuthService) replaceRecoveryCodes(ctx context.Context, u *entity.User, ip string) ([]string, error) {
	codes, err := helpers.GenRecoveryCodes()
	if err != nil {
		return nil, err
	}
	hashes := make([]string, 0, len(codes))
	for _, c := range codes {
		h, err := helpers.HashPassword(c)
		if err != nil {
			return nil, err
		}
		hashes = append(hashes, h)
	}
	if err := s.Users.ReplaceRecoveryCodes(ctx, u.ID, hashes); err != nil {
		return nil, err
	}
	s.enqueueEmail(ctx, mailer.EmailJob{
		To:       u.Email,
		Template: templates.RecoveryCodes,
		Data: map[string]any{
			"Name": u.Username,
			"Time": nowRFC3339(),
			"IP":   ip,
		},
	})
	return codes, nil
}

// RequestPasswordReset stores a reset token and emails the link. It reports
// success regardless of whether the email exists so addresses cannot be
// probed.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	u, err := s.Users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			return nil
		}
		return err
	}
	token, err := helpers.GenToken(24)
	if err != nil {
		return err
	}
	if err := s.Tokens.Set(ctx, keyPasswordReset(token), u.ID, s.Cfg.ResetTokenTTL); err != nil {
		return err
	}
	s.enqueueEmail(ctx, mailer.EmailJob{
		To:       u.Email,
		Template: templates.PasswordReset,
		Data: map[string]any{
			"Name":      u.Username,
			"ResetURL":  s.Cfg.ResetPasswordURL + "?token=" + token,
			"ExpiresIn": s.Cfg.ResetTokenTTL.String(),
		},
	})
	return nil
}

// ConfirmPasswordReset sets a new password for a valid reset token and kills
// the current session so old cookies stop working.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, token, newPassword, ip string) error {
	userID, found, err := s.Tokens.Get(ctx, keyPasswordReset(token))
	if err != nil {
		return err
	}
	if !found {
		return ErrChallengeExpired
	}
	if v := passwordViolations(newPassword); v != nil {
		return v
	}
	hash, err := helpers.HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.Users.UpdatePassword(ctx, userID, hash); err != nil {
		return err
	}
	_ = s.Tokens.Del(ctx, keyPasswordReset(token))
	if s.Redis != nil {
		_ = s.Redis.Del(ctx, sessionKey(userID)).Err()
	}
	s.record(ctx, entity.EventPasswordReset, userID, ip, nil)
	return nil
}

func (s *AuthService) record(ctx context.Context, event, userID, ip string, details map[string]any) {
	if s.Audit != nil {
		s.Audit.Record(ctx, event, userID, ip, details)
	}
}

func (s *AuthService) enqueueEmail(ctx context.Context, job mailer.EmailJob) {
	if s.Mail == nil {
		return
	}
	if err := s.Mail.PublishJSON(ctx, job); err != nil && s.Logger != nil {
		s.Logger.WithError(err).WithField("to", job.To).Warn("email enqueue failed")
	}
}

func passwordViolations(pw string) *ValidationError {
	if msgs := validation.PasswordViolations(pw); len(msgs) > 0 {
		v := newValidationError()
		v.add("password", msgs...)
		return v
	}
	return nil
}
