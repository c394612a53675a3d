package api

import (
	"encoding/json"
	"fmt"
	"strings"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// StreamRequest is the canonical "stream a model response" request. Adapters
// translate it into each vendor's wire shape; nothing vendor-specific may leak
// into this type.
type StreamRequest struct {
	// Model is the catalog model id, optionally provider-prefixed
	// (e.g. "anthropic/claude-sonnet-4").
	Model string `json:"model" binding:"required"`

	Messages []Message `json:"messages" binding:"required,min=1,dive"`

	// System is the system prompt. Adapters move it into whatever
	// vendor-specific field represents it.
	System string `json:"system,omitempty"`

	Tools []ToolDefinition `json:"tools,omitempty"`

	MaxTokens   int      `json:"max_tokens,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`

	// Reasoning is the requested thinking budget. Adapters map it to the
	// vendor's native parameter and must never silently reduce it.
	Reasoning ReasoningEffort `json:"reasoning,omitempty"`

	// Provider optionally pins a preferred provider for resolution.
	Provider string `json:"provider,omitempty"`

	// FallbackModels is the ordered candidate chain tried after Model.
	FallbackModels []string `json:"fallback_models,omitempty"`
}

type Message struct {
	Role    Role    `json:"role" binding:"required,oneof=system user assistant tool"`
	Content Content `json:"content"`
}

// Content is the union type string | []ContentBlock.
type Content struct {
	Text   string
	Blocks []ContentBlock
}

func (c *Content) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &c.Text)
	}
	if len(data) > 0 && data[0] == '[' {
		return json.Unmarshal(data, &c.Blocks)
	}
	return nil
}

func (c Content) MarshalJSON() ([]byte, error) {
	if c.Blocks != nil {
		return json.Marshal(c.Blocks)
	}
	return json.Marshal(c.Text)
}

type BlockType string

const (
	BlockText       BlockType = "text"
	BlockImage      BlockType = "image"
	BlockToolUse    BlockType = "tool_use"
	BlockToolResult BlockType = "tool_result"
)

type ContentBlock struct {
	Type       BlockType        `json:"type"`
	Text       string           `json:"text,omitempty"`
	Image      *ImageBlock      `json:"image,omitempty"`
	ToolUse    *ToolUseBlock    `json:"tool_use,omitempty"`
	ToolResult *ToolResultBlock `json:"tool_result,omitempty"`
}

type ImageBlock struct {
	// MediaType is the MIME type, e.g. "image/png".
	MediaType string `json:"media_type"`
	// Data is the base64-encoded image payload.
	Data string `json:"data"`
}

type ToolUseBlock struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

type ToolResultBlock struct {
	CallID  string `json:"call_id"`
	IsError bool   `json:"is_error,omitempty"`
	Output  string `json:"output"`
}

type ToolDefinition struct {
	Name        string         `json:"name" binding:"required"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"` // JSON Schema object
}

// ReasoningEffort is the union type "off"|"low"|"medium"|"high"|"max" | <raw token count>.
type ReasoningEffort struct {
	Level  string
	Tokens int
}

const (
	EffortOff    = "off"
	EffortLow    = "low"
	EffortMedium = "medium"
	EffortHigh   = "high"
	EffortMax    = "max"
)

func (r ReasoningEffort) IsZero() bool {
	return r.Level == "" && r.Tokens == 0
}

// Enabled reports whether any reasoning budget was requested at all.
func (r ReasoningEffort) Enabled() bool {
	return r.Tokens > 0 || (r.Level != "" && r.Level != EffortOff)
}

func (r *ReasoningEffort) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var level string
		if err := json.Unmarshal(data, &level); err != nil {
			return err
		}
		level = strings.ToLower(strings.TrimSpace(level))
		switch level {
		case EffortOff, EffortLow, EffortMedium, EffortHigh, EffortMax:
			r.Level = level
			return nil
		}
		return fmt.Errorf("api: unknown reasoning effort %q", level)
	}
	return json.Unmarshal(data, &r.Tokens)
}

func (r ReasoningEffort) MarshalJSON() ([]byte, error) {
	if r.Tokens > 0 {
		return json.Marshal(r.Tokens)
	}
	if r.Level == "" {
		return json.Marshal(EffortOff)
	}
	return json.Marshal(r.Level)
}
