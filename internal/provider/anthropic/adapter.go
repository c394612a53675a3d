package anthropic

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

const defaultVersion = "2023-06-01"

func init() {
	provider.Register("anthropic", New)
}

type Adapter struct {
	name     string
	baseURL  string
	version  string
	resolver *auth.Resolver
	client   httpclient.HTTPClient
}

func New(cfg provider.Config) (provider.Provider, error) {
	if cfg.Resolver == nil {
		return nil, fmt.Errorf("anthropic: resolver is required")
	}
	version := defaultVersion
	if v, ok := cfg.Extra["version"]; ok {
		version = v
	}
	return &Adapter{
		name:     cfg.Name,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		version:  version,
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

// headers picks the auth header by credential kind: API keys go in x-api-key,
// OAuth-style tokens in Authorization.
func (a *Adapter) headers(cred auth.Credential) map[string]string {
	h := map[string]string{"anthropic-version": a.version}
	switch {
	case cred.APIKey != "":
		h["x-api-key"] = cred.APIKey
	case cred.AuthToken != "":
		h["Authorization"] = "Bearer " + cred.AuthToken
	}
	return h
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

		streamErr := httpclient.StreamSSE(ctx, a.client, a.endpoint(cred, "/messages"), a.headers(cred), payload, func(data []byte) error {
			var event streamEvent
			if err := json.Unmarshal(data, &event); err != nil {
				return nil
			}
			for _, ev := range state.consume(event) {
				if !emit(ctx, ch, ev) {
					return context.Canceled
				}
			}
			if state.failed {
				// An error event is terminal; nothing after it may be forwarded.
				return httpclient.ErrStopStream
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
		for _, ev := range state.finish() {
			if !emit(ctx, ch, ev) {
				return
			}
		}
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
	return ids, nil
}

func (a *Adapter) Verify(ctx context.Context) error {
	_, err := a.ListModels(ctx)
	return err
}
