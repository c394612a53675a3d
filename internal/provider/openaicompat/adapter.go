package openaicompat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/nulzo/llm-gateway/internal/auth"
	"github.com/nulzo/llm-gateway/internal/httpclient"
	"github.com/nulzo/llm-gateway/internal/provider"
	"github.com/nulzo/llm-gateway/pkg/api"
)

func init() {
	provider.Register("openaicompat", New)
}

// Adapter speaks the OpenAI chat-completions dialect. Several vendors expose
// it verbatim (groq, mistral, deepseek, xai, openrouter, ollama), so one
// adapter covers them all, parameterized by name and base URL.
type Adapter struct {
	name     string
	baseURL  string
	resolver *auth.Resolver
	client   httpclient.HTTPClient
}

func New(cfg provider.Config) (provider.Provider, error) {
	if cfg.Resolver == nil {
		return nil, fmt.Errorf("openaicompat: resolver is required")
	}
	return &Adapter{
		name:     cfg.Name,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		resolver: cfg.Resolver,
		client:   cfg.HTTPClient(),
	}, nil
}

func (a *Adapter) Name() string { return a.name }

func (a *Adapter) endpoint(cred auth.Credential, path string) string {
	base := a.baseURL
	if cred.BaseURL != "" {
		base = strings.TrimRight(cred.BaseURL, "/")
	}
	return base + path
}

func (a *Adapter) headers(cred auth.Credential) map[string]string {
	token := cred.APIKey
	if token == "" {
		token = cred.AuthToken
	}
	if token == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + token}
}

func (a *Adapter) StreamResponse(ctx context.Context, req *api.StreamRequest) <-chan api.Event {
	ch := make(chan api.Event)
	go func() {
		defer close(ch)

		cred, err := a.resolver.Resolve(ctx)
		if err != nil {
			emit(ctx, ch, api.ErrorEvent(err))
			return
		}

		payload, err := a.buildRequest(req)
		if err != nil {
			emit(ctx, ch, api.ErrorEvent(err))
			return
		}

		acc := newToolCallAccumulator()
		stopReason := ""

		streamErr := httpclient.StreamSSE(ctx, a.client, a.endpoint(cred, "/chat/completions"), a.headers(cred), payload, func(data []byte) error {
			var chunk streamChunk
			if err := json.Unmarshal(data, &chunk); err != nil {
				return nil
			}
			if chunk.Usage != nil {
				if !emit(ctx, ch, api.UsageUpdate(api.Usage{
					PromptTokens:     chunk.Usage.PromptTokens,
					CompletionTokens: chunk.Usage.CompletionTokens,
					ReasoningTokens:  chunk.Usage.CompletionTokensDetails.ReasoningTokens,
				})) {
					return context.Canceled
				}
			}
			if len(chunk.Choices) == 0 {
				return nil
			}
			choice := chunk.Choices[0]
			if choice.Delta.Content != "" {
				if !emit(ctx, ch, api.ContentDelta(choice.Delta.Content)) {
					return context.Canceled
				}
			}
			if choice.Delta.ReasoningContent != "" {
				if !emit(ctx, ch, api.ThinkingDelta(choice.Delta.ReasoningContent)) {
					return context.Canceled
				}
			}
			for _, tc := range choice.Delta.ToolCalls {
				for _, ev := range acc.feed(tc) {
					if !emit(ctx, ch, ev) {
						return context.Canceled
					}
				}
			}
			if choice.FinishReason != "" {
				stopReason = choice.FinishReason
			}
			return nil
		})

		if streamErr != nil {
			if ctx.Err() != nil {
				return
			}
			emit(ctx, ch, api.ErrorEvent(streamErr))
			return
		}

		events, ok := acc.finish()
		for _, ev := range events {
			if !emit(ctx, ch, ev) {
				return
			}
		}
		if !ok {
			// The failure above was the terminal event.
			return
		}
		emit(ctx, ch, api.Complete(mapStopReason(stopReason)))
	}()
	return ch
}

func emit(ctx context.Context, ch chan<- api.Event, ev api.Event) bool {
	select {
	case ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func mapStopReason(finish string) string {
	switch finish {
	case "", "stop":
		return "stop"
	case "tool_calls", "function_call":
		return "tool_use"
	case "length":
		return "max_tokens"
	default:
		return finish
	}
}

type modelList struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

func (a *Adapter) ListModels(ctx context.Context) ([]string, error) {
	cred, err := a.resolver.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	var list modelList
	if err := httpclient.SendRequest(ctx, a.client, http.MethodGet, a.endpoint(cred, "/models"), a.headers(cred), nil, &list); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(list.Data))
	for _, m := range list.Data {
		ids = append(ids, m.ID)
	}
	sort.Strings(ids)
	return ids, nil
}

func (a *Adapter) Verify(ctx context.Context) error {
	_, err := a.ListModels(ctx)
	return err
}
