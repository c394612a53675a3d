package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	c := New(
		Model{ID: "alpha-large", Provider: "alpha", Tier: TierFlagship},
		Model{ID: "alpha-small", Provider: "alpha", Tier: TierLight},
	)

	m, ok := c.Resolve("alpha-large")
	assert.True(t, ok)
	assert.Equal(t, "alpha", m.Provider)

	// Provider-prefixed alias
	m, ok = c.Resolve("alpha/alpha-small")
	assert.True(t, ok)
	assert.Equal(t, "alpha-small", m.ID)

	// Prefix must match the owning provider
	_, ok = c.Resolve("beta/alpha-small")
	assert.False(t, ok)

	_, ok = c.Resolve("unknown")
	assert.False(t, ok)
}

func TestCreateGenericDefaults(t *testing.T) {
	c := New()
	m := c.CreateGeneric("mystery-model", "alpha")

	assert.True(t, m.Generic)
	assert.Zero(t, m.ContextWindow)
	assert.Zero(t, m.InputCostPerMTok)
	assert.Zero(t, m.OutputCostPerMTok)
	assert.False(t, m.CanReason)
	assert.False(t, m.SupportsAttachments)

	resolved, ok := c.Resolve("mystery-model")
	assert.True(t, ok)
	assert.Equal(t, m, resolved)
}

func TestIsLegacy(t *testing.T) {
	c := New(
		Model{ID: "old-model", Provider: "alpha", Name: "Old Model (Legacy)"},
		Model{ID: "new-model", Provider: "alpha", Name: "New Model"},
	)

	// Display-name marker
	assert.True(t, c.IsLegacy("old-model"))
	assert.False(t, c.IsLegacy("new-model"))

	// Explicit id list and naming convention, even for uncataloged ids
	assert.True(t, c.IsLegacy("gpt-3.5-turbo"))
	assert.True(t, c.IsLegacy("claude-instant-1.1"))
	assert.False(t, c.IsLegacy("claude-sonnet-4"))
}

func TestFindAlternative(t *testing.T) {
	c := New(
		Model{ID: "alpha-big", Provider: "alpha", Tier: TierFlagship},
		Model{ID: "alpha-big-2", Provider: "alpha", Tier: TierFlagship},
		Model{ID: "alpha-big-old", Provider: "alpha", Tier: TierFlagship, Legacy: true},
		Model{ID: "alpha-small", Provider: "alpha", Tier: TierLight},
		Model{ID: "beta-big", Provider: "beta", Tier: TierFlagship},
	)

	alt, ok := c.FindAlternative("alpha-big")
	assert.True(t, ok)
	assert.Equal(t, "alpha-big-2", alt.ID, "alternative must share provider and tier and skip legacy models")

	// Only legacy/cross-tier/cross-provider remain: no alternative
	_, ok = c.FindAlternative("alpha-small")
	assert.False(t, ok)

	_, ok = c.FindAlternative("unknown")
	assert.False(t, ok)
}

func TestDefaultTableLegacyFlags(t *testing.T) {
	c := Default()

	assert.True(t, c.IsLegacy("gpt-3.5-turbo"))
	assert.True(t, c.IsLegacy("claude-2.1"))

	m, ok := c.Resolve("claude-sonnet-4")
	assert.True(t, ok)
	assert.False(t, m.Legacy)
	assert.Equal(t, "claude-sonnet-4-20250514", m.Upstream())
}
