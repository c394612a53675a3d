package provider

import (
	"context"
	"net/http"
	"time"

	"github.com/nulzo/llm-gateway/internal/auth"
	"github.com/nulzo/llm-gateway/internal/httpclient"
	"github.com/nulzo/llm-gateway/pkg/api"
)

// Provider adapts one vendor protocol to the canonical event stream.
type Provider interface {
	Name() string

	// StreamResponse translates the request into the vendor's wire shape and
	// streams canonical events. The channel ends with exactly one complete or
	// error event, except on context cancellation, where it closes without a
	// terminal event. Transport and auth failures surface as error events,
	// never as a second return value.
	StreamResponse(ctx context.Context, req *api.StreamRequest) <-chan api.Event

	// ListModels fetches the vendor's live model ids.
	ListModels(ctx context.Context) ([]string, error)

	// Verify performs a cheap authenticated round trip.
	Verify(ctx context.Context) error
}

// Config carries everything a factory needs to build an adapter.
type Config struct {
	// Name is the gateway-facing provider name ("openai", "groq", ...), not
	// the factory type.
	Name     string
	BaseURL  string
	Resolver *auth.Resolver
	Client   httpclient.HTTPClient
	// Extra holds vendor-specific knobs such as API version headers.
	Extra map[string]string
}

func (c Config) HTTPClient() httpclient.HTTPClient {
	if c.Client != nil {
		return c.Client
	}
	return &http.Client{Timeout: 120 * time.Second}
}

// Budget tokens for the symbolic reasoning levels. A raw token request always
// wins over the symbolic mapping.
const (
	BudgetLow    = 4096
	BudgetMedium = 8192
	BudgetHigh   = 16384
	BudgetMax    = 32768
)

// ReasoningBudget resolves a reasoning request to a concrete token budget.
// Zero means reasoning off.
func ReasoningBudget(r api.ReasoningEffort) int {
	if r.Tokens > 0 {
		return r.Tokens
	}
	switch r.Level {
	case api.EffortLow:
		return BudgetLow
	case api.EffortMedium:
		return BudgetMedium
	case api.EffortHigh:
		return BudgetHigh
	case api.EffortMax:
		return BudgetMax
	}
	return 0
}

// InflateMaxTokens grows an output budget for vendors that count thinking
// tokens against it, so the requested reasoning budget never eats into the
// caller's output allowance.
func InflateMaxTokens(maxTokens, reasoningBudget int) int {
	if reasoningBudget <= 0 {
		return maxTokens
	}
	return maxTokens + reasoningBudget
}
