// Package audit records security-relevant occurrences both as structured
// "SECURITY: {json}" log lines and as rows in the security_events table.
package audit

import (
	"context"
	"encoding/json"
	"regexp"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/promptash/promptash/internal/domain/entity"
	"github.com/promptash/promptash/internal/domain/repository"
)

// Event is the wire shape of one SECURITY: log line.
type Event struct {
	Event     string         `json:"event"`
	Timestamp time.Time      `json:"timestamp"`
	IP        string         `json:"ip"`
	Details   map[string]any `json:"details,omitempty"`
}

// Logger emits security events. Repo may be nil (log-only mode, used by
// tests and the email worker).
type Logger struct {
	Log  *logrus.Logger
	Repo repository.AuditRepository
}

func NewLogger(log *logrus.Logger, repo repository.AuditRepository) *Logger {
	return &Logger{Log: log, Repo: repo}
}

// Record logs the event line and persists it. Persistence failures are
// logged and swallowed: an audit insert must never fail the request.
func (l *Logger) Record(ctx context.Context, event, userID, ip string, details map[string]any) {
	e := Event{Event: event, Timestamp: time.Now().UTC(), IP: ip, Details: details}
	if l.Log != nil {
		b, _ := json.Marshal(e)
		l.Log.Infof("SECURITY: %s", b)
	}
	if l.Repo == nil {
		return
	}
	row := &entity.SecurityEvent{Event: event, IP: ip, Details: details}
	if userID != "" {
		row.UserID = &userID
	}
	if err := l.Repo.Insert(ctx, row); err != nil && l.Log != nil {
		l.Log.WithError(err).WithField("event", event).Warn("audit insert failed")
	}
}

var linePattern = regexp.MustCompile(`SECURITY: (\{.*\})`)

// ParseLine extracts an Event from a free-text log line containing the
// SECURITY: marker. Returns false when the line does not match or the JSON
// payload is malformed.
func ParseLine(line string) (Event, bool) {
	m := linePattern.FindStringSubmatch(line)
	if m == nil {
		return Event{}, false
	}
	var e Event
	if err := json.Unmarshal([]byte(m[1]), &e); err != nil {
		return Event{}, false
	}
	if e.Event == "" {
		return Event{}, false
	}
	return e, true
}
