// Package templates renders the transactional email bodies.
package templates

import (
	"bytes"
	"fmt"
	htmpl "html/template"
	texttpl "text/template"
)

// Template names.
const (
	PasswordReset = "password_reset"
	UsageAlert    = "usage_alert"
	Welcome       = "welcome"
	RecoveryCodes = "recovery_codes"
)

type emailTemplate struct {
	Subject string
	Text    string
	HTML    string
}

var registry = map[string]emailTemplate{
	PasswordReset: {
		Subject: "Reset your Promptash password",
		Text: `Hi {{.Name}},

We received a request to reset your password. Use the link below within {{.ExpiresIn}}:

{{.ResetURL}}

If you did not request this, you can ignore this email.`,
		HTML: `<p>Hi {{.Name}},</p>
<p>We received a request to reset your password. The link is valid for {{.ExpiresIn}}.</p>
<p><a href="{{.ResetURL}}">Reset password</a></p>
<p>If you did not request this, you can ignore this email.</p>`,
	},
	UsageAlert: {
		Subject: "You are close to your Promptash storage limit",
		Text: `Hi {{.Name}},

You are using {{.Used}} of {{.Limit}} items on the {{.Plan}} plan. Once the limit is reached, new items cannot be added until you free space or upgrade.`,
		HTML: `<p>Hi {{.Name}},</p>
<p>You are using <strong>{{.Used}}</strong> of <strong>{{.Limit}}</strong> items on the {{.Plan}} plan. Once the limit is reached, new items cannot be added until you free space or upgrade.</p>`,
	},
	Welcome: {
		Subject: "Welcome to Promptash",
		Text: `Hi {{.Name}},

Your {{.Plan}} membership is active. Log in and start building your library.`,
		HTML: `<p>Hi {{.Name}},</p>
<p>Your <strong>{{.Plan}}</strong> membership is active. Log in and start building your library.</p>`,
	},
	RecoveryCodes: {
		Subject: "Your two-factor recovery codes were regenerated",
		Text: `Hi {{.Name}},

A new set of two-factor recovery codes was generated for your account at {{.Time}} from {{.IP}}. If this was not you, reset your password immediately.`,
		HTML: `<p>Hi {{.Name}},</p>
<p>A new set of two-factor recovery codes was generated for your account at {{.Time}} from {{.IP}}. If this was not you, reset your password immediately.</p>`,
	},
}

// Render produces subject, text and HTML bodies for a named template.
func Render(name string, data map[string]any) (subject, text, html string, err error) {
	tpl, ok := registry[name]
	if !ok {
		return "", "", "", fmt.Errorf("unknown email template %q", name)
	}

	t, err := texttpl.New(name).Parse(tpl.Text)
	if err != nil {
		return "", "", "", err
	}
	var tb bytes.Buffer
	if err := t.Execute(&tb, data); err != nil {
		return "", "", "", err
	}

	h, err := htmpl.New(name).Parse(tpl.HTML)
	if err != nil {
		return "", "", "", err
	}
	var hb bytes.Buffer
	if err := h.Execute(&hb, data); err != nil {
		return "", "", "", err
	}

	return tpl.Subject, tb.String(), hb.String(), nil
}

// Known reports whether a template name is registered.
func Known(name string) bool {
	_, ok := registry[name]
	return ok
}
