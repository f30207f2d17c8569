package router

import (
	"github.com/promptash/promptash/internal/application"
	"github.com/promptash/promptash/internal/container"
	pginfra "github.com/promptash/promptash/internal/infrastructure/postgres"
	handlers "github.com/promptash/promptash/internal/interface/http"
	"github.com/promptash/promptash/internal/router/modules"
	"github.com/promptash/promptash/pkg/audit"
	"github.com/promptash/promptash/pkg/helpers"
	"github.com/promptash/promptash/pkg/payment"
)

// emailPublisher avoids a typed-nil interface when RabbitMQ is not wired.
func emailPublisher() application.EmailPublisher {
	if pub := container.GetRabbitPub(); pub != nil {
		return pub
	}
	return nil
}

// InitModules builds the full dependency graph and registers every feature
// module on the registry. Called once at startup.
func InitModules(r *Registry) {
	cfg := container.GetConfig()
	pool := container.GetPGPool()
	logger := container.GetLogger()

	users := pginfra.NewUserRepository(pool)
	checkouts := pginfra.NewCheckoutRepository(pool)
	tiers := pginfra.NewTierRepository(pool)
	prompts := pginfra.NewPromptRepository(pool)
	categories := pginfra.NewCategoryRepository(pool)
	items := pginfra.NewItemRepository(pool)
	shares := pginfra.NewShareRepository(pool)
	audits := pginfra.NewAuditRepository(pool)

	auditLog := audit.NewLogger(logger, audits)
	tokens := application.NewRedisTokenStore(container.GetRedis())
	cookies := helpers.NewCookie(cfg.CookieDomain, cfg.CookieSecure)
	provider := payment.NewClient(cfg.PaystackBaseURL, cfg.PaystackSecretKey, cfg.PaystackWebhookKey)

	mail := emailPublisher()

	authSvc := application.NewAuthService(users, container.GetJWT(), container.GetRedis(), tokens, mail, auditLog, logger, cfg)
	checkoutSvc := application.NewCheckoutService(checkouts, tiers, provider, tokens, auditLog, logger, cfg)
	registrationSvc := application.NewRegistrationService(users, checkoutSvc, mail, auditLog, logger, cfg)
	librarySvc := &application.LibraryService{
		Prompts:    prompts,
		Categories: categories,
		Items:      items,
		Shares:     shares,
		Users:      users,
		Tiers:      tiers,
		Tokens:     tokens,
		Mail:       mail,
		ES:         container.GetES(),
		GCS:        container.GetGCS(),
		Logger:     logger,
		Cfg:        cfg,
	}
	backupSvc := &application.BackupService{Prompts: prompts, Categories: categories, Library: librarySvc, Logger: logger}

	r.Add(modules.NewAuthModule(handlers.NewAuthHandler(authSvc, cookies, cfg), container.GetJWT(), auditLog))
	r.Add(modules.NewCheckoutModule(handlers.NewCheckoutHandler(checkoutSvc, logger)))
	r.Add(modules.NewRegistrationModule(handlers.NewRegistrationHandler(registrationSvc), auditLog))
	r.Add(modules.NewLibraryModule(handlers.NewLibraryHandler(librarySvc), handlers.NewBackupHandler(backupSvc), container.GetJWT(), auditLog))
	r.Add(modules.NewAdminModule(handlers.NewSecurityHandler(audits), container.GetJWT()))
	if cfg.DebugMetricsEnabled {
		r.Add(modules.NewDebugModule())
	}
}
