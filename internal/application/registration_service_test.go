package application

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptash/promptash/internal/domain/entity"
	"github.com/promptash/promptash/internal/infrastructure/postgres"
	"github.com/promptash/promptash/pkg/audit"
)

func newRegistrationService(users *memUsers, checkouts *memCheckouts) (*RegistrationService, *captureMail) {
	cfg := testConfig()
	cfg.CheckoutReturnURL = "http://localhost/register"
	coSvc := NewCheckoutService(checkouts, newMemTiers(basicTier()), &fakeProvider{}, newMemTokenStore(), nil, nil, cfg)
	mail := &captureMail{}
	return NewRegistrationService(users, coSvc, mail, nil, nil, cfg), mail
}

func paidCheckout(t *testing.T, checkouts *memCheckouts, token string) {
	t.Helper()
	co := &entity.PendingCheckout{Token: token, PlanName: "basic", BillingCycle: entity.CycleMonthly, Status: entity.CheckoutPaid, AmountCents: 500, ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, checkouts.Create(context.Background(), co))
}

func validInput(token string) RegisterInput {
	return RegisterInput{
		CheckoutToken: token,
		Username:      "ada",
		Email:         "ada@example.com",
		Password:      "Str0ng!pass",
		FirstName:     "Ada",
		LastName:      "Lovelace",
	}
}

func TestRegisterHappyPath(t *testing.T) {
	users := newMemUsers()
	checkouts := newMemCheckouts()
	svc, mail := newRegistrationService(users, checkouts)
	paidCheckout(t, checkouts, "t1")

	u, err := svc.Register(context.Background(), validInput("t1"), "127.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "basic", u.Plan)
	assert.Equal(t, entity.RoleUser, u.Role)

	co, err := checkouts.GetByToken(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, entity.CheckoutCompleted, co.Status)
	require.NotNil(t, co.UserID)
	assert.Equal(t, u.ID, *co.UserID)

	assert.Equal(t, 1, mail.count(), "welcome email enqueued")
}

func TestRegisterRequiresSettledCheckout(t *testing.T) {
	users := newMemUsers()
	checkouts := newMemCheckouts()
	svc, _ := newRegistrationService(users, checkouts)

	co := &entity.PendingCheckout{Token: "t1", PlanName: "basic", BillingCycle: entity.CycleMonthly, Status: entity.CheckoutPending, ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, checkouts.Create(context.Background(), co))

	_, err := svc.Register(context.Background(), validInput("t1"), "127.0.0.1")
	assert.ErrorIs(t, err, ErrCheckoutNotPaid)

	_, err = svc.Register(context.Background(), validInput("missing"), "127.0.0.1")
	assert.ErrorIs(t, err, ErrCheckoutNotFound)
}

func TestRegisterTrialNeedsAuthorization(t *testing.T) {
	users := newMemUsers()
	checkouts := newMemCheckouts()
	svc, _ := newRegistrationService(users, checkouts)

	co := &entity.PendingCheckout{Token: "t1", PlanName: "basic", BillingCycle: entity.CycleMonthly, Trial: true, Status: entity.CheckoutPending, ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, checkouts.Create(context.Background(), co))

	_, err := svc.Register(context.Background(), validInput("t1"), "127.0.0.1")
	assert.ErrorIs(t, err, ErrCheckoutNotAuthorized)

	require.NoError(t, checkouts.UpdateStatus(context.Background(), "t1", entity.CheckoutAuthorized))
	_, err = svc.Register(context.Background(), validInput("t1"), "127.0.0.1")
	assert.NoError(t, err)
}

func TestRegisterExpiredCheckout(t *testing.T) {
	users := newMemUsers()
	checkouts := newMemCheckouts()
	svc, _ := newRegistrationService(users, checkouts)

	co := &entity.PendingCheckout{Token: "t1", PlanName: "basic", BillingCycle: entity.CycleMonthly, Status: entity.CheckoutPaid, ExpiresAt: time.Now().Add(-time.Minute)}
	require.NoError(t, checkouts.Create(context.Background(), co))

	_, err := svc.Register(context.Background(), validInput("t1"), "127.0.0.1")
	assert.ErrorIs(t, err, ErrCheckoutExpired)
}

func TestRegisterCollectsAllViolations(t *testing.T) {
	users := newMemUsers()
	checkouts := newMemCheckouts()
	svc, _ := newRegistrationService(users, checkouts)
	paidCheckout(t, checkouts, "t1")

	in := RegisterInput{CheckoutToken: "t1", Username: "x", Email: "bad", Password: "weak"}
	_, err := svc.Register(context.Background(), in, "127.0.0.1")

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Violations, "username")
	assert.Contains(t, verr.Violations, "email")
	assert.Contains(t, verr.Violations, "password")
}

func TestRegisterRejectsTakenUsernameAndEmail(t *testing.T) {
	users := newMemUsers()
	checkouts := newMemCheckouts()
	svc, _ := newRegistrationService(users, checkouts)
	paidCheckout(t, checkouts, "t1")
	paidCheckout(t, checkouts, "t2")

	_, err := svc.Register(context.Background(), validInput("t1"), "127.0.0.1")
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), validInput("t2"), "127.0.0.1")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Violations, "username")
	assert.Contains(t, verr.Violations, "email")
}

func TestRegisterConsumedCheckoutRefused(t *testing.T) {
	users := newMemUsers()
	checkouts := newMemCheckouts()
	svc, _ := newRegistrationService(users, checkouts)
	paidCheckout(t, checkouts, "t1")

	_, err := svc.Register(context.Background(), validInput("t1"), "127.0.0.1")
	require.NoError(t, err)

	// A second registration against the consumed checkout is refused up
	// front.
	in := validInput("t1")
	in.Username = "bob"
	in.Email = "bob@example.com"
	_, err = svc.Register(context.Background(), in, "127.0.0.1")
	assert.ErrorIs(t, err, ErrCheckoutConsumed)
	assert.Empty(t, users.deleted)

}

func TestRegisterAuditsCheckoutGateFailure(t *testing.T) {
	users := newMemUsers()
	checkouts := newMemCheckouts()

	var buf bytes.Buffer
	log := logrus.New()
	log.SetOutput(&buf)
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true, DisableQuote: true})

	cfg := testConfig()
	coSvc := NewCheckoutService(checkouts, newMemTiers(basicTier()), &fakeProvider{}, newMemTokenStore(), nil, nil, cfg)
	svc := NewRegistrationService(users, coSvc, &captureMail{}, audit.NewLogger(log, nil), nil, cfg)

	co := &entity.PendingCheckout{Token: "t1", PlanName: "basic", BillingCycle: entity.CycleMonthly, Status: entity.CheckoutPending, ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, checkouts.Create(context.Background(), co))

	_, err := svc.Register(context.Background(), validInput("t1"), "10.0.0.9")
	require.ErrorIs(t, err, ErrCheckoutNotPaid)

	e, ok := audit.ParseLine(buf.String())
	require.True(t, ok, "gate failure emits a security event")
	assert.Equal(t, entity.EventRegisterFailure, e.Event)
	assert.Equal(t, "basic", e.Details["plan"])
	assert.Equal(t, entity.CycleMonthly, e.Details["billing_cycle"])
}

// losingConsume reads like a paid checkout but always loses the conditional
// consume, simulating a concurrent registration finishing first.
type losingConsume struct {
	*memCheckouts
}

func (l *losingConsume) Consume(context.Context, string, string, string) error {
	return postgres.ErrNotFound
}

func TestRegisterLostRaceRollsBackAccount(t *testing.T) {
	users := newMemUsers()
	checkouts := newMemCheckouts()
	paidCheckout(t, checkouts, "t1")

	cfg := testConfig()
	coSvc := NewCheckoutService(&losingConsume{checkouts}, newMemTiers(basicTier()), &fakeProvider{}, newMemTokenStore(), nil, nil, cfg)
	svc := NewRegistrationService(users, coSvc, &captureMail{}, nil, nil, cfg)

	_, err := svc.Register(context.Background(), validInput("t1"), "127.0.0.1")
	assert.ErrorIs(t, err, ErrCheckoutConsumed)

	_, err = users.GetByUsername(context.Background(), "ada")
	assert.Error(t, err, "losing account does not survive")
	assert.Len(t, users.deleted, 1)
}
