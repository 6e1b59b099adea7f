package fenergo

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	pkgoauth "nebula-gateway/pkg/oauth"
)

// Investigation scopes accepted by JourneyRequest.
const (
	ScopeDocuments    = "documents"
	ScopeRequirements = "requirements"

	// ContextLevelJourney is the only context level the gateway sends.
	ContextLevelJourney = "Journey"
)

// Context pins a question to one entity in Fenergo.
type Context struct {
	ContextLevel string `json:"contextLevel"`
	ContextID    string `json:"contextId"`
}

// Scope selects what the question is about. At least one context is set.
type Scope struct {
	DocumentContext            *Context `json:"documentContext,omitempty"`
	DocumentRequirementContext *Context `json:"documentRequirementContext,omitempty"`
}

// Message is one turn of earlier conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// InsightsRequest is the body of an insights query, sent wrapped in {"data": ...}.
type InsightsRequest struct {
	Message             string    `json:"message"`
	Scope               *Scope    `json:"scope"`
	ConversationHistory []Message `json:"conversationHistory"`
}

type envelope struct {
	Data InsightsRequest `json:"data"`
}

// Validate checks that the request names a question and a scope.
func (r InsightsRequest) Validate() error {
	if strings.TrimSpace(r.Message) == "" {
		return pkgoauth.NewValidationError("data.message", "is required")
	}
	if r.Scope == nil || (r.Scope.DocumentContext == nil && r.Scope.DocumentRequirementContext == nil) {
		return pkgoauth.NewValidationError("data.scope", "is required")
	}
	return nil
}

// MarshalJSON always emits conversationHistory as an array.
func (r InsightsRequest) MarshalJSON() ([]byte, error) {
	type alias InsightsRequest
	if r.ConversationHistory == nil {
		r.ConversationHistory = []Message{}
	}
	return json.Marshal(alias(r))
}

// ValidJourneyID reports whether id is a lowercase hyphenated GUID.
func ValidJourneyID(id string) bool {
	if len(id) != 36 || strings.ToLower(id) != id {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

// JourneyRequest builds a question about journeyID. scope is "documents" or
// "requirements".
func JourneyRequest(journeyID, query, scope string) (InsightsRequest, error) {
	if !ValidJourneyID(journeyID) {
		return InsightsRequest{}, pkgoauth.NewValidationError("journeyId", "must be a GUID")
	}
	if strings.TrimSpace(query) == "" {
		return InsightsRequest{}, pkgoauth.NewValidationError("query", "is required")
	}

	ctx := &Context{ContextLevel: ContextLevelJourney, ContextID: journeyID}
	var s Scope
	switch scope {
	case ScopeDocuments:
		s.DocumentContext = ctx
	case ScopeRequirements:
		s.DocumentRequirementContext = ctx
	default:
		return InsightsRequest{}, pkgoauth.NewValidationError("scope", "must be documents or requirements")
	}

	return InsightsRequest{Message: query, Scope: &s}, nil
}

// InsightsResponse is a successful answer from the insights endpoint.
type InsightsResponse struct {
	StatusCode int
	// Body is the response as JSON. A body that was not JSON is held as a
	// JSON string and Raw is set.
	Body json.RawMessage
	Raw  bool
}

// Result returns the "result" member of the body when there is one, and the
// whole body otherwise.
func (r *InsightsResponse) Result() json.RawMessage {
	if r.Raw {
		return r.Body
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(r.Body, &obj); err == nil {
		if result, ok := obj["result"]; ok && string(result) != "null" {
			return result
		}
	}
	return r.Body
}

// Text renders Result for display: JSON strings are unquoted, anything else
// is indented JSON.
func (r *InsightsResponse) Text() string {
	result := r.Result()
	var s string
	if err := json.Unmarshal(result, &s); err == nil {
		return s
	}
	var v interface{}
	if err := json.Unmarshal(result, &v); err != nil {
		return string(result)
	}
	pretty, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return string(result)
	}
	return string(pretty)
}
