package auth

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/nulzo/llm-gateway/pkg/api"
)

// Source records which layer produced a resolved credential.
type Source string

const (
	SourceRuntime     Source = "runtime"
	SourceConfig      Source = "config"
	SourceEnv         Source = "env"
	SourceSideChannel Source = "side_channel"
)

// Credential is a resolved set of connection material for one provider.
type Credential struct {
	APIKey    string
	AuthToken string
	BaseURL   string
	Source    Source
}

func (c Credential) empty() bool {
	return c.APIKey == "" && c.AuthToken == "" && c.BaseURL == ""
}

// SideChannel discovers credentials outside the explicit layers, such as a
// vendor CLI's cache file or an OAuth exchange. Lookups must be cheap or
// internally cached; the resolver consults them on every resolve.
type SideChannel interface {
	Name() string
	Lookup(ctx context.Context) (Credential, bool)
}

// EnvVars names the environment variables a provider's credentials may live
// in. Empty entries are skipped.
type EnvVars struct {
	APIKey    string
	AuthToken string
	BaseURL   string
	// Ambient names variables whose mere presence authenticates the
	// provider under AuthEnvAmbient, e.g. GOOGLE_APPLICATION_CREDENTIALS.
	Ambient []string
}

// Resolver resolves credentials for a single provider, walking runtime
// updates, file config, environment variables, then side channels in that
// order. The first layer that satisfies the provider's auth mode wins whole;
// layers are never merged field by field.
type Resolver struct {
	mode     api.AuthMode
	env      EnvVars
	channels []SideChannel

	mu      sync.RWMutex
	runtime Credential
	config  Credential

	// getenv is swapped in tests.
	getenv func(string) string
}

func NewResolver(mode api.AuthMode, env EnvVars, channels ...SideChannel) *Resolver {
	return &Resolver{
		mode:     mode,
		env:      env,
		channels: channels,
		getenv:   os.Getenv,
	}
}

func (r *Resolver) Mode() api.AuthMode { return r.mode }

// SetConfig installs credentials read from file configuration.
func (r *Resolver) SetConfig(cred Credential) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cred.Source = SourceConfig
	r.config = cred
}

// Apply validates a runtime credential update against the provider's auth
// mode and installs it. On error nothing changes.
func (r *Resolver) Apply(update api.CredentialUpdate) error {
	if err := r.Validate(update); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runtime = Credential{
		APIKey:    strings.TrimSpace(update.APIKey),
		AuthToken: strings.TrimSpace(update.AuthToken),
		BaseURL:   strings.TrimSpace(update.BaseURL),
		Source:    SourceRuntime,
	}
	return nil
}

// Validate checks a credential update against the provider's auth mode
// without applying it.
func (r *Resolver) Validate(update api.CredentialUpdate) error {
	apiKey := strings.TrimSpace(update.APIKey)
	authToken := strings.TrimSpace(update.AuthToken)
	baseURL := strings.TrimSpace(update.BaseURL)

	switch r.mode {
	case api.AuthAPIKey:
		if apiKey == "" {
			return fmt.Errorf("auth: provider requires an API key")
		}
	case api.AuthTokenOnly:
		if apiKey != "" {
			return fmt.Errorf("auth: provider authenticates with an auth token, not an API key")
		}
		if authToken == "" {
			return fmt.Errorf("auth: provider requires an auth token")
		}
	case api.AuthAPIKeyOrToken:
		if apiKey == "" && authToken == "" {
			return fmt.Errorf("auth: provider requires an API key or an auth token")
		}
	case api.AuthEnvAmbient:
		if apiKey != "" || authToken != "" {
			return fmt.Errorf("auth: provider reads credentials from the environment and does not accept explicit keys")
		}
	case api.AuthBaseURLOnly:
		if apiKey != "" || authToken != "" {
			return fmt.Errorf("auth: provider takes no credentials, only a base URL")
		}
		if baseURL == "" {
			return fmt.Errorf("auth: provider requires a base URL")
		}
	default:
		return fmt.Errorf("auth: unknown auth mode %q", r.mode)
	}
	return nil
}

// Resolve walks the credential layers and returns the first one that
// satisfies the provider's auth mode.
func (r *Resolver) Resolve(ctx context.Context) (Credential, error) {
	r.mu.RLock()
	runtime, config := r.runtime, r.config
	r.mu.RUnlock()

	if r.satisfies(runtime) {
		return runtime, nil
	}
	if r.satisfies(config) {
		return config, nil
	}
	if cred, ok := r.fromEnv(); ok {
		return cred, nil
	}
	for _, ch := range r.channels {
		if cred, ok := ch.Lookup(ctx); ok && r.satisfies(cred) {
			cred.Source = SourceSideChannel
			return cred, nil
		}
	}
	return Credential{}, fmt.Errorf("auth: no credentials resolved for mode %q", r.mode)
}

// Authenticated reports whether Resolve would succeed.
func (r *Resolver) Authenticated(ctx context.Context) bool {
	_, err := r.Resolve(ctx)
	return err == nil
}

func (r *Resolver) satisfies(cred Credential) bool {
	switch r.mode {
	case api.AuthAPIKey:
		return cred.APIKey != ""
	case api.AuthTokenOnly:
		return cred.AuthToken != ""
	case api.AuthAPIKeyOrToken:
		return cred.APIKey != "" || cred.AuthToken != ""
	case api.AuthEnvAmbient:
		// Explicit layers cannot satisfy ambient auth.
		return false
	case api.AuthBaseURLOnly:
		return cred.BaseURL != ""
	default:
		return false
	}
}

func (r *Resolver) fromEnv() (Credential, bool) {
	if r.mode == api.AuthEnvAmbient {
		for _, name := range r.env.Ambient {
			if r.getenv(name) != "" {
				return Credential{Source: SourceEnv}, true
			}
		}
		return Credential{}, false
	}

	cred := Credential{Source: SourceEnv}
	if r.env.APIKey != "" {
		cred.APIKey = strings.TrimSpace(r.getenv(r.env.APIKey))
	}
	if r.env.AuthToken != "" {
		cred.AuthToken = strings.TrimSpace(r.getenv(r.env.AuthToken))
	}
	if r.env.BaseURL != "" {
		cred.BaseURL = strings.TrimSpace(r.getenv(r.env.BaseURL))
	}
	if cred.empty() || !r.satisfies(cred) {
		return Credential{}, false
	}
	return cred, true
}
