package logging

import (
	"context"
	"log/slog"

	pkgstrings "nebula-gateway/pkg/strings"
)

// AuditEvent describes a security relevant action such as a completed login.
// Fields must never carry token values, codes, or passwords.
type AuditEvent struct {
	Action   string
	Outcome  string
	TenantID string
	// SessionKey is truncated before it is written.
	SessionKey string
	Grant      string
	Detail     string
}

// Audit writes the event at INFO level with an [AUDIT] prefix so log
// pipelines can route it separately.
func Audit(event AuditEvent) {
	attrs := []slog.Attr{
		slog.String("subsystem", "Audit"),
		slog.String("action", event.Action),
		slog.String("outcome", event.Outcome),
	}
	if event.TenantID != "" {
		attrs = append(attrs, slog.String("tenant_id", event.TenantID))
	}
	if event.SessionKey != "" {
		attrs = append(attrs, slog.String("session", pkgstrings.TruncateID(event.SessionKey)))
	}
	if event.Grant != "" {
		attrs = append(attrs, slog.String("grant", event.Grant))
	}
	if event.Detail != "" {
		attrs = append(attrs, slog.String("detail", event.Detail))
	}

	Logger().LogAttrs(context.Background(), slog.LevelInfo, "[AUDIT] "+event.Action, attrs...)
}
