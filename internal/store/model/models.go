package model

import (
	"database/sql"
	"time"
)

// RequestLog captures one stream request after it terminated.
type RequestLog struct {
	ID               string         `db:"id" json:"id"`
	Provider         string         `db:"provider" json:"provider"`
	Model            string         `db:"model" json:"model"`
	Outcome          string         `db:"outcome" json:"outcome"` // 'complete', 'error', 'cancelled'
	StopReason       sql.NullString `db:"stop_reason" json:"stop_reason,omitempty"`
	ErrorMessage     sql.NullString `db:"error_message" json:"error_message,omitempty"`
	PromptTokens     int            `db:"prompt_tokens" json:"prompt_tokens"`
	CompletionTokens int            `db:"completion_tokens" json:"completion_tokens"`
	ReasoningTokens  int            `db:"reasoning_tokens" json:"reasoning_tokens"`
	// FallbackDepth is how many candidates were consumed before this one:
	// zero when the primary model answered.
	FallbackDepth int       `db:"fallback_depth" json:"fallback_depth"`
	LatencyMS     int64     `db:"latency_ms" json:"latency_ms"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// ProviderState is the persisted half of a provider's runtime configuration:
// whether it is enabled and which catalog models the operator allowed.
type ProviderState struct {
	Name string `db:"name" json:"name"`
	// Enabled distinguishes an operator disable from missing credentials.
	Enabled bool `db:"enabled" json:"enabled"`
	// SelectedModels is a JSON array of catalog model ids; empty means all.
	SelectedModels string    `db:"selected_models" json:"selected_models"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// DailyStats is an aggregate row for the usage endpoint.
type DailyStats struct {
	Day              string `db:"day" json:"day"`
	Requests         int    `db:"requests" json:"requests"`
	Errors           int    `db:"errors" json:"errors"`
	PromptTokens     int    `db:"prompt_tokens" json:"prompt_tokens"`
	CompletionTokens int    `db:"completion_tokens" json:"completion_tokens"`
}
