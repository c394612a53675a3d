package catalog

import (
	"strings"
	"sync"
)

// Tier buckets models by capability for same-provider degradation.
type Tier string

const (
	TierFlagship Tier = "flagship"
	TierStandard Tier = "standard"
	TierLight    Tier = "light"
)

// Model describes one addressable model id.
type Model struct {
	ID         string `json:"id"`
	Provider   string `json:"provider"`
	UpstreamID string `json:"upstream_id,omitempty"` // vendor-specific alias, defaults to ID
	Name       string `json:"name,omitempty"`

	ContextWindow   int `json:"context_window"`
	MaxOutputTokens int `json:"max_output_tokens"`

	// Costs are USD per million tokens.
	InputCostPerMTok  float64 `json:"input_cost_per_mtok"`
	OutputCostPerMTok float64 `json:"output_cost_per_mtok"`

	CanReason           bool `json:"can_reason"`
	SupportsAttachments bool `json:"supports_attachments"`

	Tier    Tier `json:"tier"`
	Legacy  bool `json:"legacy"`
	Generic bool `json:"generic"`
}

// Upstream returns the vendor-facing model id.
func (m Model) Upstream() string {
	if m.UpstreamID != "" {
		return m.UpstreamID
	}
	return m.ID
}

// Catalog holds model metadata. It is an explicitly constructed value owned by
// the gateway instance, never a package-level global, so tests can fabricate
// their own. It is thread-safe.
type Catalog struct {
	mu     sync.RWMutex
	models map[string]Model
}

// New builds a catalog from the given descriptors.
func New(models ...Model) *Catalog {
	c := &Catalog{models: make(map[string]Model, len(models))}
	for _, m := range models {
		c.Add(m)
	}
	return c
}

// Default builds a catalog from the static model table.
func Default() *Catalog {
	return New(knownModels...)
}

func (c *Catalog) Add(m Model) {
	if m.Legacy || isLegacyID(m.ID) || hasLegacyMarker(m.Name) {
		m.Legacy = true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.models[m.ID] = m
}

// Resolve looks up a model id, accepting the bare id or a provider-prefixed
// alias ("anthropic/claude-sonnet-4").
func (c *Catalog) Resolve(id string) (Model, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if m, ok := c.models[id]; ok {
		return m, true
	}
	if provider, bare, ok := strings.Cut(id, "/"); ok {
		if m, found := c.models[bare]; found && strings.EqualFold(m.Provider, provider) {
			return m, true
		}
	}
	return Model{}, false
}

func (c *Catalog) ListForProvider(provider string) []Model {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []Model
	for _, m := range c.models {
		if strings.EqualFold(m.Provider, provider) {
			out = append(out, m)
		}
	}
	return out
}

func (c *Catalog) List() []Model {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Model, 0, len(c.models))
	for _, m := range c.models {
		out = append(out, m)
	}
	return out
}

// CreateGeneric registers a runtime-discovered id with conservative unknown
// defaults: zero cost, unknown context, no attachments, no reasoning.
func (c *Catalog) CreateGeneric(id, provider string) Model {
	m := Model{
		ID:       id,
		Provider: provider,
		Name:     id,
		Tier:     TierStandard,
		Generic:  true,
	}
	c.Add(m)
	return m
}

// IsLegacy reports whether the id names a legacy model, by explicit list,
// naming convention, or display-name marker. Legacy models stay addressable by
// explicit id but are excluded from automatic selection.
func (c *Catalog) IsLegacy(id string) bool {
	if m, ok := c.Resolve(id); ok {
		return m.Legacy
	}
	return isLegacyID(id)
}

// FindAlternative returns another non-legacy model from the same provider and
// capability tier, for same-provider degradation before crossing providers.
func (c *Catalog) FindAlternative(failedID string) (Model, bool) {
	failed, ok := c.Resolve(failedID)
	if !ok {
		return Model{}, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, m := range c.models {
		if m.ID == failed.ID || m.Legacy || m.Generic {
			continue
		}
		if strings.EqualFold(m.Provider, failed.Provider) && m.Tier == failed.Tier {
			return m, true
		}
	}
	return Model{}, false
}

// legacyIDs is the explicit exclusion list; naming conventions below catch the
// rest of the retired families.
var legacyIDs = map[string]bool{
	"gpt-3.5-turbo":      true,
	"gpt-4-32k":          true,
	"claude-2.1":         true,
	"claude-instant-1.2": true,
	"gemini-1.0-pro":     true,
}

var legacyPrefixes = []string{
	"gpt-3.5",
	"text-davinci",
	"claude-2",
	"claude-instant",
	"gemini-1.0",
}

func isLegacyID(id string) bool {
	lowered := strings.ToLower(id)
	if legacyIDs[lowered] {
		return true
	}
	for _, prefix := range legacyPrefixes {
		if strings.HasPrefix(lowered, prefix) {
			return true
		}
	}
	return false
}

func hasLegacyMarker(name string) bool {
	return strings.Contains(strings.ToLower(name), "(legacy)")
}
