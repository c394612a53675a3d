package provider

import (
	"fmt"
	"sort"
	"sync"

	"github.com/nulzo/llm-gateway/internal/auth"
	"github.com/nulzo/llm-gateway/pkg/api"
)

// Def declares one vendor: which protocol adapter drives it, where it lives,
// and how it authenticates. The gateway is configured from a table of these.
type Def struct {
	Name     string
	Type     string
	BaseURL  string
	AuthMode api.AuthMode
	Env      auth.EnvVars
	Extra    map[string]string

	// SideChannels builds the def's credential side channels, if any.
	SideChannels func() []auth.SideChannel
}

// The claude CLI's OAuth token endpoint and public client id, used to trade
// a cached refresh token for a fresh access token when the cached one has
// expired.
const (
	claudeTokenURL = "https://console.anthropic.com/v1/oauth/token"
	claudeClientID = "9d1c250a-e61b-44d9-88ed-5944d1962f5e"
)

// claudeSideChannels chains the CLI credential cache with an OAuth exchange
// over its refresh token, so a user whose cached access token expired still
// resolves without re-running the CLI login.
func claudeSideChannels() []auth.SideChannel {
	cache := auth.NewCLICache("claude", "anthropic")
	return []auth.SideChannel{
		cache,
		auth.NewTokenExchangerFromSource(nil, claudeTokenURL, claudeClientID, cache.RefreshToken),
	}
}

// Defaults is the built-in vendor table. File config may override base URLs
// and add or disable entries.
func Defaults() []Def {
	return []Def{
		{
			Name:     "openai",
			Type:     "openaicompat",
			BaseURL:  "https://api.openai.com/v1",
			AuthMode: api.AuthAPIKey,
			Env:      auth.EnvVars{APIKey: "OPENAI_API_KEY", BaseURL: "OPENAI_BASE_URL"},
		},
		{
			Name:         "anthropic",
			Type:         "anthropic",
			BaseURL:      "https://api.anthropic.com/v1",
			AuthMode:     api.AuthAPIKeyOrToken,
			Env:          auth.EnvVars{APIKey: "ANTHROPIC_API_KEY", AuthToken: "ANTHROPIC_AUTH_TOKEN", BaseURL: "ANTHROPIC_BASE_URL"},
			SideChannels: claudeSideChannels,
		},
		{
			Name:         "claude-cli",
			Type:         "clicmd",
			AuthMode:     api.AuthTokenOnly,
			Env:          auth.EnvVars{AuthToken: "CLAUDE_CODE_OAUTH_TOKEN"},
			Extra:        map[string]string{"binary": "claude", "min_version": "1.0.0"},
			SideChannels: claudeSideChannels,
		},
		{
			Name:     "gemini",
			Type:     "gemini",
			BaseURL:  "https://generativelanguage.googleapis.com/v1beta",
			AuthMode: api.AuthAPIKey,
			Env:      auth.EnvVars{APIKey: "GEMINI_API_KEY"},
		},
		{
			Name:     "vertex",
			Type:     "gemini",
			BaseURL:  "https://aiplatform.googleapis.com/v1",
			AuthMode: api.AuthEnvAmbient,
			Env:      auth.EnvVars{Ambient: []string{"GOOGLE_APPLICATION_CREDENTIALS", "GOOGLE_CLOUD_PROJECT"}},
			Extra:    map[string]string{"keyless": "true"},
		},
		{
			Name:     "groq",
			Type:     "openaicompat",
			BaseURL:  "https://api.groq.com/openai/v1",
			AuthMode: api.AuthAPIKey,
			Env:      auth.EnvVars{APIKey: "GROQ_API_KEY"},
		},
		{
			Name:     "mistral",
			Type:     "openaicompat",
			BaseURL:  "https://api.mistral.ai/v1",
			AuthMode: api.AuthAPIKey,
			Env:      auth.EnvVars{APIKey: "MISTRAL_API_KEY"},
		},
		{
			Name:     "deepseek",
			Type:     "openaicompat",
			BaseURL:  "https://api.deepseek.com/v1",
			AuthMode: api.AuthAPIKey,
			Env:      auth.EnvVars{APIKey: "DEEPSEEK_API_KEY"},
		},
		{
			Name:     "xai",
			Type:     "openaicompat",
			BaseURL:  "https://api.x.ai/v1",
			AuthMode: api.AuthAPIKey,
			Env:      auth.EnvVars{APIKey: "XAI_API_KEY"},
		},
		{
			Name:     "openrouter",
			Type:     "openaicompat",
			BaseURL:  "https://openrouter.ai/api/v1",
			AuthMode: api.AuthAPIKey,
			Env:      auth.EnvVars{APIKey: "OPENROUTER_API_KEY"},
		},
		{
			Name:     "ollama",
			Type:     "openaicompat",
			BaseURL:  "http://localhost:11434/v1",
			AuthMode: api.AuthBaseURLOnly,
			Env:      auth.EnvVars{BaseURL: "OLLAMA_HOST"},
		},
	}
}

// Registry holds the built adapters and their credential resolvers.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	resolvers map[string]*auth.Resolver
}

// NewRegistry instantiates every def through its registered factory.
func NewRegistry(defs []Def) (*Registry, error) {
	r := &Registry{
		providers: make(map[string]Provider, len(defs)),
		resolvers: make(map[string]*auth.Resolver, len(defs)),
	}
	for _, def := range defs {
		if _, dup := r.providers[def.Name]; dup {
			return nil, fmt.Errorf("provider: duplicate def %q", def.Name)
		}
		factory, err := Get(def.Type)
		if err != nil {
			return nil, fmt.Errorf("provider %q: %w", def.Name, err)
		}
		var channels []auth.SideChannel
		if def.SideChannels != nil {
			channels = def.SideChannels()
		}
		resolver := auth.NewResolver(def.AuthMode, def.Env, channels...)
		if def.AuthMode == api.AuthBaseURLOnly && def.BaseURL != "" {
			resolver.SetConfig(auth.Credential{BaseURL: def.BaseURL})
		}
		p, err := factory(Config{
			Name:     def.Name,
			BaseURL:  def.BaseURL,
			Resolver: resolver,
			Extra:    def.Extra,
		})
		if err != nil {
			return nil, fmt.Errorf("provider %q: %w", def.Name, err)
		}
		r.providers[def.Name] = p
		r.resolvers[def.Name] = resolver
	}
	return r, nil
}

func (r *Registry) Provider(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("provider: %q not configured", name)
	}
	return p, nil
}

func (r *Registry) Resolver(name string) (*auth.Resolver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.resolvers[name]
	if !ok {
		return nil, fmt.Errorf("provider: %q not configured", name)
	}
	return res, nil
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
