package fenergo

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidJourneyID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{testJourneyID, true},
		{"3F2B8C1E-9A4D-4E6F-8B7A-1C2D3E4F5A6B", false},
		{"3f2b8c1e9a4d4e6f8b7a1c2d3e4f5a6b", false},
		{"{3f2b8c1e-9a4d-4e6f-8b7a-1c2d3e4f5a6b}", false},
		{"not-a-guid", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidJourneyID(tt.id))
		})
	}
}

func TestJourneyRequest_Requirements(t *testing.T) {
	req, err := JourneyRequest(testJourneyID, "What is outstanding?", ScopeRequirements)
	require.NoError(t, err)

	assert.Nil(t, req.Scope.DocumentContext)
	require.NotNil(t, req.Scope.DocumentRequirementContext)
	assert.Equal(t, ContextLevelJourney, req.Scope.DocumentRequirementContext.ContextLevel)
	assert.Equal(t, testJourneyID, req.Scope.DocumentRequirementContext.ContextID)
}

func TestJourneyRequest_Invalid(t *testing.T) {
	_, err := JourneyRequest("bad", "q", ScopeDocuments)
	assert.Error(t, err)

	_, err = JourneyRequest(testJourneyID, " ", ScopeDocuments)
	assert.Error(t, err)

	_, err = JourneyRequest(testJourneyID, "q", "everything")
	assert.Error(t, err)
}

func TestInsightsResponse_Result(t *testing.T) {
	tests := []struct {
		name string
		resp InsightsResponse
		want string
		text string
	}{
		{
			name: "result member",
			resp: InsightsResponse{Body: json.RawMessage(`{"result":"the answer","traceId":"x"}`)},
			want: `"the answer"`,
			text: "the answer",
		},
		{
			name: "whole body",
			resp: InsightsResponse{Body: json.RawMessage(`{"answer":1}`)},
			want: `{"answer":1}`,
			text: "{\n  \"answer\": 1\n}",
		},
		{
			name: "null result",
			resp: InsightsResponse{Body: json.RawMessage(`{"result":null,"a":1}`)},
			want: `{"result":null,"a":1}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.JSONEq(t, tt.want, string(tt.resp.Result()))
			if tt.text != "" {
				assert.Equal(t, tt.text, tt.resp.Text())
			}
		})
	}
}
