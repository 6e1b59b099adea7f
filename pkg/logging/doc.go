// Package logging provides the subsystem-tagged logger used across
// nebula-gateway.
//
// It is a thin layer over log/slog: every entry carries a "subsystem"
// attribute so output from the OAuth core, the HTTP service and the MCP
// tools can be filtered independently.
//
//	logging.InitForCLI(logging.LevelInfo, os.Stderr)
//
//	logging.Info("OAuth", "Token acquired for tenant=%s", tenantID)
//	logging.Error("Server", err, "Failed to start listener")
//
// Subsystems in use: OAuth, Server, MCP, Fenergo, Config, CLI.
//
// # Secrets
//
// Client secrets, passwords, access and refresh tokens, authorization codes
// and PKCE verifiers are never logged. State tokens and session keys are only
// written truncated (see pkg/strings.TruncateID).
//
// # Audit Logging
//
// Logins and token grants are recorded with Audit:
//
//	logging.Audit(logging.AuditEvent{
//	    Action:     "sso_login",
//	    Outcome:    "success",
//	    TenantID:   tenantID,
//	    SessionKey: key,
//	})
//
// Audit events are logged at INFO level with an [AUDIT] prefix.
package logging
