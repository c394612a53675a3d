package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nulzo/llm-gateway/internal/auth"
	"github.com/nulzo/llm-gateway/internal/provider"
	"github.com/nulzo/llm-gateway/pkg/api"
)

func newSSEServer(t *testing.T, captured *generateRequest, chunks ...string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "sse", r.URL.Query().Get("alt"))
		assert.Equal(t, "k-test", r.URL.Query().Get("key"))
		if captured != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(captured))
		}
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, chunk := range chunks {
			fmt.Fprintf(w, "data: %s\n\n", chunk)
			flusher.Flush()
		}
	}))
}

func newTestAdapter(t *testing.T, srv *httptest.Server) provider.Provider {
	t.Helper()
	resolver := auth.NewResolver(api.AuthAPIKey, auth.EnvVars{})
	require.NoError(t, resolver.Apply(api.CredentialUpdate{APIKey: "k-test"}))
	p, err := New(provider.Config{
		Name:     "gemini",
		BaseURL:  srv.URL,
		Resolver: resolver,
		Client:   srv.Client(),
	})
	require.NoError(t, err)
	return p
}

func collect(ch <-chan api.Event) []api.Event {
	var events []api.Event
	for ev := range ch {
		events = append(events, ev)
	}
	return events
}

func TestStreamTextParts(t *testing.T) {
	srv := newSSEServer(t, nil,
		`{"candidates":[{"content":{"role":"model","parts":[{"text":"He"}]}}]}`,
		`{"candidates":[{"content":{"role":"model","parts":[{"text":"llo"}]},"finishReason":"STOP"}],"usageMetadata":{"promptTokenCount":5,"candidatesTokenCount":2}}`,
	)
	defer srv.Close()

	events := collect(newTestAdapter(t, srv).StreamResponse(context.Background(), &api.StreamRequest{
		Model:    "gemini-2.5-flash",
		Messages: []api.Message{{Role: api.RoleUser, Content: api.Content{Text: "hi"}}},
	}))

	require.Len(t, events, 4)
	assert.Equal(t, "He", events[0].Delta)
	assert.Equal(t, api.EventUsageUpdate, events[1].Type)
	assert.Equal(t, 5, events[1].Usage.PromptTokens)
	assert.Equal(t, "llo", events[2].Delta)
	assert.Equal(t, api.EventComplete, events[3].Type)
	assert.Equal(t, "stop", events[3].StopReason)
}

func TestStreamFunctionCallLifecycle(t *testing.T) {
	srv := newSSEServer(t, nil,
		`{"candidates":[{"content":{"role":"model","parts":[{"functionCall":{"name":"lookup","args":{"id":7}}}]},"finishReason":"STOP"}]}`,
	)
	defer srv.Close()

	events := collect(newTestAdapter(t, srv).StreamResponse(context.Background(), &api.StreamRequest{
		Model:    "gemini-2.5-pro",
		Messages: []api.Message{{Role: api.RoleUser, Content: api.Content{Text: "lookup 7"}}},
	}))

	var types []api.EventType
	for _, ev := range events {
		types = append(types, ev.Type)
	}
	assert.Equal(t, []api.EventType{
		api.EventToolUseStart,
		api.EventToolUseDelta,
		api.EventToolUseStop,
		api.EventComplete,
	}, types)

	start, stop := events[0], events[2]
	assert.Equal(t, "lookup", start.ToolCall.Name)
	assert.NotEmpty(t, start.ToolCall.ID)
	assert.Equal(t, start.ToolCall.ID, stop.ToolCall.ID)
	assert.Equal(t, map[string]any{"id": float64(7)}, stop.ToolCall.Arguments)
	assert.Equal(t, "tool_use", events[3].StopReason)
}

func TestStreamThoughtParts(t *testing.T) {
	srv := newSSEServer(t, nil,
		`{"candidates":[{"content":{"role":"model","parts":[{"thought":true,"text":"mulling"}]}}]}`,
		`{"candidates":[{"content":{"role":"model","parts":[{"text":"done"}]},"finishReason":"STOP"}],"usageMetadata":{"promptTokenCount":3,"candidatesTokenCount":1,"thoughtsTokenCount":40}}`,
	)
	defer srv.Close()

	events := collect(newTestAdapter(t, srv).StreamResponse(context.Background(), &api.StreamRequest{
		Model:     "gemini-2.5-pro",
		Reasoning: api.ReasoningEffort{Level: api.EffortLow},
		Messages:  []api.Message{{Role: api.RoleUser, Content: api.Content{Text: "think"}}},
	}))

	assert.Equal(t, api.EventThinkingDelta, events[0].Type)
	assert.Equal(t, "mulling", events[0].Delta)

	usage := events[1]
	assert.Equal(t, api.EventUsageUpdate, usage.Type)
	assert.Equal(t, 40, usage.Usage.ReasoningTokens)
}

func TestBuildRequestThinkingBudgetInflation(t *testing.T) {
	req, err := buildRequest(&api.StreamRequest{
		Model:     "gemini-2.5-pro",
		MaxTokens: 1000,
		Reasoning: api.ReasoningEffort{Level: api.EffortHigh},
		Messages:  []api.Message{{Role: api.RoleUser, Content: api.Content{Text: "x"}}},
	})
	require.NoError(t, err)

	require.NotNil(t, req.GenerationConfig)
	require.NotNil(t, req.GenerationConfig.ThinkingConfig)
	assert.Equal(t, provider.BudgetHigh, req.GenerationConfig.ThinkingConfig.ThinkingBudget)
	assert.GreaterOrEqual(t, req.GenerationConfig.MaxOutputTokens, 1000+provider.BudgetHigh)
}

func TestBuildRequestToolResultUsesCallName(t *testing.T) {
	req, err := buildRequest(&api.StreamRequest{
		Model: "gemini-2.5-pro",
		Messages: []api.Message{
			{Role: api.RoleAssistant, Content: api.Content{Blocks: []api.ContentBlock{{
				Type:    api.BlockToolUse,
				ToolUse: &api.ToolUseBlock{ID: "call_abc", Name: "lookup", Arguments: map[string]any{"id": 7}},
			}}}},
			{Role: api.RoleTool, Content: api.Content{Blocks: []api.ContentBlock{{
				Type:       api.BlockToolResult,
				ToolResult: &api.ToolResultBlock{CallID: "call_abc", Output: "found"},
			}}}},
		},
	})
	require.NoError(t, err)

	require.Len(t, req.Contents, 2)
	call := req.Contents[0].Parts[0].FunctionCall
	require.NotNil(t, call)
	assert.Equal(t, "lookup", call.Name)

	resp := req.Contents[1].Parts[0].FunctionResponse
	require.NotNil(t, resp)
	assert.Equal(t, "lookup", resp.Name, "result must reference the call's function name")
	assert.Equal(t, map[string]any{"output": "found"}, resp.Response)
}

func TestBuildRequestSystemInstruction(t *testing.T) {
	req, err := buildRequest(&api.StreamRequest{
		Model:  "gemini-2.5-flash",
		System: "short answers",
		Messages: []api.Message{
			{Role: api.RoleUser, Content: api.Content{Text: "hi"}},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, req.SystemInstruction)
	assert.Equal(t, "short answers", req.SystemInstruction.Parts[0].Text)
}
