package application

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/promptash/promptash/config"
	"github.com/promptash/promptash/internal/domain/entity"
	"github.com/promptash/promptash/internal/domain/repository"
	"github.com/promptash/promptash/internal/infrastructure/postgres"
	"github.com/promptash/promptash/pkg/audit"
	"github.com/promptash/promptash/pkg/helpers"
	"github.com/promptash/promptash/pkg/payment"
)

// Provider is the slice of the payment client the checkout flow needs.
type Provider interface {
	Initialize(ctx context.Context, email, reference string, amountCents int64, callbackURL string) (*payment.InitializeResult, error)
	Verify(ctx context.Context, reference string) (*payment.Transaction, error)
	VerifySignature(body []byte, signature string) bool
}

type CheckoutService struct {
	Checkouts repository.CheckoutRepository
	Tiers     repository.TierRepository
	Provider  Provider
	Tokens    TokenStore
	Audit     *audit.Logger
	Logger    *logrus.Logger
	Cfg       *config.Config
}

func NewCheckoutService(checkouts repository.CheckoutRepository, tiers repository.TierRepository, provider Provider, tokens TokenStore, auditLog *audit.Logger, logger *logrus.Logger, cfg *config.Config) *CheckoutService {
	return &CheckoutService{Checkouts: checkouts, Tiers: tiers, Provider: provider, Tokens: tokens, Audit: auditLog, Logger: logger, Cfg: cfg}
}

func keyCheckoutFlash(token string) string { return "checkout:flash:" + token }

type CreateCheckoutInput struct {
	Plan  string
	Cycle string
	Trial bool
	Email string // payer email, required by the provider
}

type CreateCheckoutResult struct {
	Token            string
	AuthorizationURL string
	AmountCents      int64
}

// Create opens a pending checkout and starts a provider transaction keyed by
// the checkout token. Trials authorize a zero-amount charge.
func (s *CheckoutService) Create(ctx context.Context, in CreateCheckoutInput) (*CreateCheckoutResult, error) {
	tier, err := s.Tiers.GetByName(ctx, in.Plan)
	if err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			return nil, ErrUnknownPlan
		}
		return nil, err
	}

	amount := tier.PriceFor(in.Cycle)
	if in.Trial {
		amount = 0
	}

	token, err := helpers.GenToken(24)
	if err != nil {
		return nil, err
	}

	co := &entity.PendingCheckout{
		Token:        token,
		PlanName:     tier.Name,
		BillingCycle: in.Cycle,
		Trial:        in.Trial,
		Status:       entity.CheckoutPending,
		AmountCents:  amount,
		ExpiresAt:    time.Now().Add(s.Cfg.CheckoutTTL),
	}
	if err := s.Checkouts.Create(ctx, co); err != nil {
		return nil, err
	}

	init, err := s.Provider.Initialize(ctx, in.Email, token, amount, s.Cfg.CheckoutReturnURL)
	if err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("token", token).Error("provider initialize failed")
		}
		return nil, err
	}

	return &CreateCheckoutResult{Token: token, AuthorizationURL: init.AuthorizationURL, AmountCents: amount}, nil
}

// Resolve loads a checkout by token and applies read-time expiry.
func (s *CheckoutService) Resolve(ctx context.Context, token string) (*entity.PendingCheckout, error) {
	co, err := s.Checkouts.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			return nil, ErrCheckoutNotFound
		}
		return nil, err
	}
	if co.Status != entity.CheckoutExpired && co.Status != entity.CheckoutCompleted && co.Expired(time.Now()) {
		if ValidCheckoutTransition("expire", co.Status) {
			if err := s.Checkouts.UpdateStatus(ctx, co.Token, entity.CheckoutExpired); err != nil && s.Logger != nil {
				s.Logger.WithError(err).WithField("token", token).Warn("expire update failed")
			}
			co.Status = entity.CheckoutExpired
		}
	}
	return co, nil
}

// HandleCallback settles a checkout on the browser-redirect path: the
// transaction is verified against the provider before anything changes.
// Returns the registration URL the browser should continue to.
func (s *CheckoutService) HandleCallback(ctx context.Context, reference string) (string, error) {
	co, err := s.Resolve(ctx, reference)
	if err != nil {
		return "", err
	}

	tx, err := s.Provider.Verify(ctx, reference)
	if err != nil {
		return "", err
	}
	if tx.Status != "success" {
		return "", payment.ErrVerifyFailed
	}

	if err := s.settle(ctx, co); err != nil {
		return "", err
	}

	// One-shot flag for the page that resumes after the redirect.
	if s.Tokens != nil {
		_ = s.Tokens.Set(ctx, keyCheckoutFlash(co.Token), "1", 15*time.Minute)
	}
	return s.Cfg.CheckoutReturnURL + "?token=" + co.Token, nil
}

// WebhookOutcome reports what a webhook delivery did.
type WebhookOutcome struct {
	Handled bool
	Message string
}

// HandleWebhook processes an asynchronous provider event. Only
// charge.success settles a checkout; every other event is acknowledged and
// ignored. A bad signature is rejected and audited.
func (s *CheckoutService) HandleWebhook(ctx context.Context, body []byte, signature, ip string) (*WebhookOutcome, error) {
	if !s.Provider.VerifySignature(body, signature) {
		if s.Audit != nil {
			s.Audit.Record(ctx, entity.EventWebhookRejected, "", ip, nil)
		}
		return nil, ErrBadSignature
	}

	var ev payment.WebhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, err
	}
	if ev.Event != payment.EventChargeSuccess {
		return &WebhookOutcome{Handled: false, Message: "event ignored"}, nil
	}

	co, err := s.Resolve(ctx, ev.Data.Reference)
	if err != nil {
		return nil, err
	}
	if err := s.settle(ctx, co); err != nil {
		return nil, err
	}
	return &WebhookOutcome{Handled: true, Message: "checkout settled"}, nil
}

// settle moves a pending checkout to authorized (trial) or paid. A checkout
// already in its settled state is a no-op so provider retries stay
// idempotent.
func (s *CheckoutService) settle(ctx context.Context, co *entity.PendingCheckout) error {
	target := entity.CheckoutPaid
	action := "settle"
	if co.Trial {
		target = entity.CheckoutAuthorized
		action = "authorize"
	}
	if co.Status == target {
		return nil
	}
	if !ValidCheckoutTransition(action, co.Status) {
		return ErrCheckoutUnusable
	}
	if err := s.Checkouts.UpdateStatus(ctx, co.Token, target); err != nil {
		return err
	}
	co.Status = target
	if s.Logger != nil {
		s.Logger.WithFields(logrus.Fields{"token": co.Token, "status": target}).Info("checkout settled")
	}
	return nil
}

// ConsumeFlash reads and clears the one-shot post-payment flag.
func (s *CheckoutService) ConsumeFlash(ctx context.Context, token string) bool {
	if s.Tokens == nil {
		return false
	}
	_, ok, err := s.Tokens.Get(ctx, keyCheckoutFlash(token))
	if err != nil || !ok {
		return false
	}
	_ = s.Tokens.Del(ctx, keyCheckoutFlash(token))
	return true
}

// ListTiers exposes membership tier reference data.
func (s *CheckoutService) ListTiers(ctx context.Context) ([]entity.MembershipTier, error) {
	return s.Tiers.List(ctx)
}
