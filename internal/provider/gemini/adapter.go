package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/nulzo/llm-gateway/internal/auth"
	"github.com/nulzo/llm-gateway/internal/httpclient"
	"github.com/nulzo/llm-gateway/internal/provider"
	"github.com/nulzo/llm-gateway/pkg/api"
)

func init() {
	provider.Register("gemini", New)
}

// Adapter speaks the generateContent dialect. It also serves keyless
// deployments (Extra["keyless"]) where auth is ambient in the environment and
// no key query parameter is sent.
type Adapter struct {
	name     string
	baseURL  string
	keyless  bool
	resolver *auth.Resolver
	client   httpclient.HTTPClient
}

func New(cfg provider.Config) (provider.Provider, error) {
	if cfg.Resolver == nil {
		return nil, fmt.Errorf("gemini: resolver is required")
	}
	return &Adapter{
		name:     cfg.Name,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		keyless:  cfg.Extra["keyless"] == "true",
		resolver: cfg.Resolver,
		client:   cfg.HTTPClient(),
	}, nil
}

func (a *Adapter) Name() string { return a.name }

func (a *Adapter) streamURL(cred auth.Credential, model string) string {
	base := a.baseURL
	if cred.BaseURL != "" {
		base = strings.TrimRight(cred.BaseURL, "/")
	}
	url := fmt.Sprintf("%s/models/%s:streamGenerateContent?alt=sse", base, model)
	if !a.keyless && cred.APIKey != "" {
		url += "&key=" + cred.APIKey
	}
	return url
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
		payload, err := buildRequest(req)
		if err != nil {
			emit(ctx, ch, api.ErrorEvent(err))
			return
		}

		state := newStreamState()
		url := a.streamURL(cred, upstreamModel(req.Model))

		streamErr := httpclient.StreamSSE(ctx, a.client, url, nil, payload, func(data []byte) error {
			var chunk streamChunk
			if err := json.Unmarshal(data, &chunk); err != nil {
				return nil
			}
			for _, ev := range state.consume(chunk) {
				if !emit(ctx, ch, ev) {
					return context.Canceled
				}
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
		emit(ctx, ch, api.Complete(state.stopReason()))
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

func upstreamModel(id string) string {
	if _, rest, found := strings.Cut(id, "/"); found {
		return rest
	}
	return id
}

type modelList struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

func (a *Adapter) ListModels(ctx context.Context) ([]string, error) {
	cred, err := a.resolver.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	base := a.baseURL
	if cred.BaseURL != "" {
		base = strings.TrimRight(cred.BaseURL, "/")
	}
	url := base + "/models"
	if !a.keyless && cred.APIKey != "" {
		url += "?key=" + cred.APIKey
	}
	var list modelList
	if err := httpclient.SendRequest(ctx, a.client, http.MethodGet, url, nil, nil, &list); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		// Names come back as "models/gemini-2.5-pro".
		ids = append(ids, strings.TrimPrefix(m.Name, "models/"))
	}
	return ids, nil
}

func (a *Adapter) Verify(ctx context.Context) error {
	_, err := a.ListModels(ctx)
	return err
}
