package application

import (
	"context"
	"errors"
	"strings"
	"time"

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

// RegistrationService turns a settled checkout into an account. Registration
// is the only way accounts are created.
type RegistrationService struct {
	Users     repository.UserRepository
	Checkouts *CheckoutService
	Mail      EmailPublisher
	Audit     *audit.Logger
	Logger    *logrus.Logger
	Cfg       *config.Config
}

func NewRegistrationService(users repository.UserRepository, checkouts *CheckoutService, mail EmailPublisher, auditLog *audit.Logger, logger *logrus.Logger, cfg *config.Config) *RegistrationService {
	return &RegistrationService{Users: users, Checkouts: checkouts, Mail: mail, Audit: auditLog, Logger: logger, Cfg: cfg}
}

// ResolveCheckout gates the registration form: it loads the checkout and
// reports whether it is ready to be consumed.
func (s *RegistrationService) ResolveCheckout(ctx context.Context, token string) (*entity.PendingCheckout, error) {
	co, err := s.Checkouts.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	switch co.Status {
	case entity.CheckoutExpired:
		return co, ErrCheckoutExpired
	case entity.CheckoutCompleted:
		return co, ErrCheckoutConsumed
	case co.ConsumableStatus():
		return co, nil
	case entity.CheckoutPending:
		if co.Trial {
			return co, ErrCheckoutNotAuthorized
		}
		return co, ErrCheckoutNotPaid
	default:
		return co, ErrCheckoutUnusable
	}
}

type RegisterInput struct {
	CheckoutToken string
	Username      string
	Email         string
	Password      string
	FirstName     string
	LastName      string
}

// Register validates the input, creates the account and consumes the
// checkout. If consuming fails after the user row was created, the row is
// deleted again so a losing racer leaves nothing behind.
func (s *RegistrationService) Register(ctx context.Context, in RegisterInput, ip string) (*entity.User, error) {
	co, err := s.ResolveCheckout(ctx, in.CheckoutToken)
	if err != nil {
		details := map[string]any{"username": in.Username, "reason": err.Error()}
		if co != nil {
			details["plan"] = co.PlanName
			details["billing_cycle"] = co.BillingCycle
		}
		s.record(ctx, entity.EventRegisterFailure, "", ip, details)
		return nil, err
	}

	if verr := s.validate(ctx, in); verr != nil {
		s.record(ctx, entity.EventRegisterFailure, "", ip, map[string]any{
			"username":      in.Username,
			"reason":        "validation",
			"plan":          co.PlanName,
			"billing_cycle": co.BillingCycle,
		})
		return nil, verr
	}

	hash, err := helpers.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	u := &entity.User{
		Username:  in.Username,
		Email:     strings.ToLower(in.Email),
		Password:  hash,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Role:      entity.RoleUser,
		Plan:      co.PlanName,
	}
	if err := s.Users.Create(ctx, u); err != nil {
		return nil, err
	}

	if err := s.Checkouts.Checkouts.Consume(ctx, co.Token, co.ConsumableStatus(), u.ID); err != nil {
		// The checkout was expired or consumed by a concurrent registration
		// between our read and the conditional update. Roll the account back.
		if dErr := s.Users.Delete(ctx, u.ID); dErr != nil && s.Logger != nil {
			s.Logger.WithError(dErr).WithField("user_id", u.ID).Error("compensating user delete failed")
		}
		s.record(ctx, entity.EventCheckoutFinalizeErr, "", ip, map[string]any{"token": co.Token})
		if errors.Is(err, postgres.ErrNotFound) {
			return nil, ErrCheckoutConsumed
		}
		return nil, err
	}

	s.record(ctx, entity.EventRegisterSuccess, u.ID, ip, map[string]any{"username": u.Username, "plan": u.Plan, "billing_cycle": co.BillingCycle})
	s.welcome(ctx, u)
	return u, nil
}

// validate collects all user-fixable violations instead of failing on the
// first one.
func (s *RegistrationService) validate(ctx context.Context, in RegisterInput) *ValidationError {
	verr := newValidationError()

	if !validation.ValidUsername(in.Username) {
		verr.add("username", "must be 3-30 characters: letters, digits, underscore, dot or hyphen")
	} else if _, err := s.Users.GetByUsername(ctx, in.Username); err == nil {
		verr.add("username", ErrUsernameTaken.Error())
	}

	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || !strings.Contains(email, "@") {
		verr.add("email", "must be a valid email address")
	} else if _, err := s.Users.GetByEmail(ctx, email); err == nil {
		verr.add("email", ErrEmailTaken.Error())
	}

	for _, msg := range validation.PasswordViolations(in.Password) {
		verr.add("password", msg)
	}

	if verr.empty() {
		return nil
	}
	return verr
}

func (s *RegistrationService) welcome(ctx context.Context, u *entity.User) {
	if s.Mail == nil {
		return
	}
	job := mailer.EmailJob{
		To:       u.Email,
		Template: templates.Welcome,
		Data: map[string]any{
			"Name": u.Username,
			"Plan": u.Plan,
		},
	}
	cctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := s.Mail.PublishJSON(cctx, job); err != nil && s.Logger != nil {
		s.Logger.WithError(err).WithField("to", u.Email).Warn("welcome email enqueue failed")
	}
}

func (s *RegistrationService) record(ctx context.Context, event, userID, ip string, details map[string]any) {
	if s.Audit != nil {
		s.Audit.Record(ctx, event, userID, ip, details)
	}
}
