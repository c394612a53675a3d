package catalog

// knownModels is the static model table. Runtime-discovered ids are merged on
// top of it as generic descriptors; vendor list fetches never remove entries.
var knownModels = []Model{
	// OpenAI
	{
		ID:                  "gpt-4o",
		Provider:            "openai",
		Name:                "GPT-4o",
		ContextWindow:       128000,
		MaxOutputTokens:     16384,
		InputCostPerMTok:    2.5,
		OutputCostPerMTok:   10,
		SupportsAttachments: true,
		Tier:                TierFlagship,
	},
	{
		ID:                  "gpt-4o-mini",
		Provider:            "openai",
		Name:                "GPT-4o mini",
		ContextWindow:       128000,
		MaxOutputTokens:     16384,
		InputCostPerMTok:    0.15,
		OutputCostPerMTok:   0.6,
		SupportsAttachments: true,
		Tier:                TierLight,
	},
	{
		ID:                "o3",
		Provider:          "openai",
		Name:              "o3",
		ContextWindow:     200000,
		MaxOutputTokens:   100000,
		InputCostPerMTok:  2,
		OutputCostPerMTok: 8,
		CanReason:         true,
		Tier:              TierFlagship,
	},
	{
		ID:                "o4-mini",
		Provider:          "openai",
		Name:              "o4-mini",
		ContextWindow:     200000,
		MaxOutputTokens:   100000,
		InputCostPerMTok:  1.1,
		OutputCostPerMTok: 4.4,
		CanReason:         true,
		Tier:              TierStandard,
	},
	{
		ID:                "gpt-3.5-turbo",
		Provider:          "openai",
		Name:              "GPT-3.5 Turbo (Legacy)",
		ContextWindow:     16385,
		MaxOutputTokens:   4096,
		InputCostPerMTok:  0.5,
		OutputCostPerMTok: 1.5,
		Tier:              TierLight,
		Legacy:            true,
	},

	// Anthropic
	{
		ID:                  "claude-opus-4",
		Provider:            "anthropic",
		UpstreamID:          "claude-opus-4-20250514",
		Name:                "Claude Opus 4",
		ContextWindow:       200000,
		MaxOutputTokens:     32000,
		InputCostPerMTok:    15,
		OutputCostPerMTok:   75,
		CanReason:           true,
		SupportsAttachments: true,
		Tier:                TierFlagship,
	},
	{
		ID:                  "claude-sonnet-4",
		Provider:            "anthropic",
		UpstreamID:          "claude-sonnet-4-20250514",
		Name:                "Claude Sonnet 4",
		ContextWindow:       200000,
		MaxOutputTokens:     64000,
		InputCostPerMTok:    3,
		OutputCostPerMTok:   15,
		CanReason:           true,
		SupportsAttachments: true,
		Tier:                TierStandard,
	},
	{
		ID:                  "claude-3-5-haiku",
		Provider:            "anthropic",
		UpstreamID:          "claude-3-5-haiku-20241022",
		Name:                "Claude 3.5 Haiku",
		ContextWindow:       200000,
		MaxOutputTokens:     8192,
		InputCostPerMTok:    0.8,
		OutputCostPerMTok:   4,
		SupportsAttachments: true,
		Tier:                TierLight,
	},
	{
		ID:                "claude-2.1",
		Provider:          "anthropic",
		Name:              "Claude 2.1",
		ContextWindow:     200000,
		MaxOutputTokens:   4096,
		InputCostPerMTok:  8,
		OutputCostPerMTok: 24,
		Tier:              TierStandard,
		Legacy:            true,
	},

	// Google Gemini
	{
		ID:                  "gemini-2.5-pro",
		Provider:            "gemini",
		Name:                "Gemini 2.5 Pro",
		ContextWindow:       1048576,
		MaxOutputTokens:     65536,
		InputCostPerMTok:    1.25,
		OutputCostPerMTok:   10,
		CanReason:           true,
		SupportsAttachments: true,
		Tier:                TierFlagship,
	},
	{
		ID:                  "gemini-2.5-flash",
		Provider:            "gemini",
		Name:                "Gemini 2.5 Flash",
		ContextWindow:       1048576,
		MaxOutputTokens:     65536,
		InputCostPerMTok:    0.3,
		OutputCostPerMTok:   2.5,
		CanReason:           true,
		SupportsAttachments: true,
		Tier:                TierStandard,
	},

	// Groq
	{
		ID:                "llama-3.3-70b-versatile",
		Provider:          "groq",
		Name:              "Llama 3.3 70B",
		ContextWindow:     131072,
		MaxOutputTokens:   32768,
		InputCostPerMTok:  0.59,
		OutputCostPerMTok: 0.79,
		Tier:              TierStandard,
	},

	// Mistral
	{
		ID:                "mistral-large-latest",
		Provider:          "mistral",
		Name:              "Mistral Large",
		ContextWindow:     131072,
		MaxOutputTokens:   32768,
		InputCostPerMTok:  2,
		OutputCostPerMTok: 6,
		Tier:              TierFlagship,
	},
	{
		ID:                "mistral-small-latest",
		Provider:          "mistral",
		Name:              "Mistral Small",
		ContextWindow:     131072,
		MaxOutputTokens:   32768,
		InputCostPerMTok:  0.1,
		OutputCostPerMTok: 0.3,
		Tier:              TierLight,
	},

	// DeepSeek
	{
		ID:                "deepseek-chat",
		Provider:          "deepseek",
		Name:              "DeepSeek V3",
		ContextWindow:     64000,
		MaxOutputTokens:   8192,
		InputCostPerMTok:  0.27,
		OutputCostPerMTok: 1.1,
		Tier:              TierStandard,
	},
	{
		ID:                "deepseek-reasoner",
		Provider:          "deepseek",
		Name:              "DeepSeek R1",
		ContextWindow:     64000,
		MaxOutputTokens:   65536,
		InputCostPerMTok:  0.55,
		OutputCostPerMTok: 2.19,
		CanReason:         true,
		Tier:              TierFlagship,
	},

	// xAI
	{
		ID:                "grok-3",
		Provider:          "xai",
		Name:              "Grok 3",
		ContextWindow:     131072,
		MaxOutputTokens:   32768,
		InputCostPerMTok:  3,
		OutputCostPerMTok: 15,
		CanReason:         true,
		Tier:              TierFlagship,
	},
	{
		ID:                "grok-3-mini",
		Provider:          "xai",
		Name:              "Grok 3 Mini",
		ContextWindow:     131072,
		MaxOutputTokens:   32768,
		InputCostPerMTok:  0.3,
		OutputCostPerMTok: 0.5,
		CanReason:         true,
		Tier:              TierLight,
	},

	// Vertex (ambient-credential Gemini)
	{
		ID:                  "vertex-gemini-2.5-pro",
		Provider:            "vertex",
		UpstreamID:          "gemini-2.5-pro",
		Name:                "Gemini 2.5 Pro (Vertex)",
		ContextWindow:       1048576,
		MaxOutputTokens:     65536,
		InputCostPerMTok:    1.25,
		OutputCostPerMTok:   10,
		CanReason:           true,
		SupportsAttachments: true,
		Tier:                TierFlagship,
	},

	// Claude Code CLI (subprocess-wrapped backend)
	{
		ID:         "claude-code",
		Provider:   "claude-cli",
		UpstreamID: "sonnet",
		Name:       "Claude Code CLI",
		Tier:       TierStandard,
		CanReason:  true,
	},

	// Ollama (local runtime, discovered ids land as generics)
	{
		ID:              "llama3.1",
		Provider:        "ollama",
		Name:            "Llama 3.1 8B",
		ContextWindow:   131072,
		MaxOutputTokens: 8192,
		Tier:            TierLight,
	},
}
