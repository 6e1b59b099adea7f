package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"gopkg.in/yaml.v3"

	"nebula-gateway/internal/oauth"
	pkgoauth "nebula-gateway/pkg/oauth"
)

// OutputFormat represents the supported output formats.
type OutputFormat string

const (
	// OutputFormatTable renders a go-pretty table.
	OutputFormatTable OutputFormat = "table"
	// OutputFormatJSON renders indented JSON.
	OutputFormatJSON OutputFormat = "json"
	// OutputFormatYAML renders YAML.
	OutputFormatYAML OutputFormat = "yaml"
)

// ParseOutputFormat validates a --output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputFormatTable, OutputFormatJSON, OutputFormatYAML:
		return OutputFormat(s), nil
	case "":
		return OutputFormatTable, nil
	default:
		return "", fmt.Errorf("unsupported output format %q (use table, json or yaml)", s)
	}
}

// TokenView is what the token and login commands print.
type TokenView struct {
	SessionKey  string    `json:"sessionKey,omitempty" yaml:"sessionKey,omitempty"`
	TenantID    string    `json:"tenantId" yaml:"tenantId"`
	Grant       string    `json:"grant" yaml:"grant"`
	TokenType   string    `json:"tokenType" yaml:"tokenType"`
	Scope       string    `json:"scope,omitempty" yaml:"scope,omitempty"`
	ExpiresAt   time.Time `json:"expiresAt" yaml:"expiresAt"`
	AccessToken string    `json:"accessToken" yaml:"accessToken"`
	Refreshable bool      `json:"refreshable" yaml:"refreshable"`
}

// redacted is shown instead of the access token unless it was asked for.
const redacted = "[REDACTED]"

// NewTokenView builds the printable view of token. The access token is only
// included when showToken is set.
func NewTokenView(sessionKey, tenantID string, grant pkgoauth.GrantType, token *pkgoauth.Token, showToken bool) TokenView {
	view := TokenView{
		SessionKey:  sessionKey,
		TenantID:    tenantID,
		Grant:       string(grant),
		TokenType:   token.TokenType,
		Scope:       token.Scope,
		ExpiresAt:   token.ExpiresAt(),
		AccessToken: redacted,
		Refreshable: token.RefreshToken != "",
	}
	if showToken {
		view.AccessToken = token.AccessToken
	}
	return view
}

// Printer writes command results in the selected format.
type Printer struct {
	out    io.Writer
	format OutputFormat
}

// NewPrinter creates a printer writing to out.
func NewPrinter(out io.Writer, format OutputFormat) *Printer {
	return &Printer{out: out, format: format}
}

// PrintToken prints a token view.
func (p *Printer) PrintToken(view TokenView) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(view)
	case OutputFormatYAML:
		return p.printYAML(view)
	}

	t := p.newTable()
	t.AppendHeader(table.Row{text.FgHiCyan.Sprint("FIELD"), text.FgHiCyan.Sprint("VALUE")})
	if view.SessionKey != "" {
		t.AppendRow(table.Row{"Session", view.SessionKey})
	}
	t.AppendRow(table.Row{"Tenant", view.TenantID})
	t.AppendRow(table.Row{"Grant", view.Grant})
	t.AppendRow(table.Row{"Token type", view.TokenType})
	if view.Scope != "" {
		t.AppendRow(table.Row{"Scope", view.Scope})
	}
	t.AppendRow(table.Row{"Expires", view.ExpiresAt.Local().Format(time.RFC3339)})
	t.AppendRow(table.Row{"Refreshable", view.Refreshable})
	t.AppendRow(table.Row{"Access token", view.AccessToken})
	t.Render()
	return nil
}

// PrintSessions prints cached sessions.
func (p *Printer) PrintSessions(sessions []oauth.SessionInfo) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(sessions)
	case OutputFormatYAML:
		return p.printYAML(sessions)
	}

	if len(sessions) == 0 {
		fmt.Fprintln(p.out, text.FgYellow.Sprint("No cached sessions"))
		return nil
	}

	t := p.newTable()
	t.AppendHeader(table.Row{"SESSION", "TENANT", "KIND", "EXPIRES", "REFRESHABLE"})
	for _, s := range sessions {
		t.AppendRow(table.Row{s.ID, s.TenantID, s.Kind, s.ExpiresAt.Local().Format(time.RFC3339), s.Refreshable})
	}
	t.Render()
	return nil
}

func (p *Printer) newTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(p.out)
	t.SetStyle(table.StyleRounded)
	return t
}

func (p *Printer) printJSON(v interface{}) error {
	enc := json.NewEncoder(p.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (p *Printer) printYAML(v interface{}) error {
	enc := yaml.NewEncoder(p.out)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
