package store

import (
	"context"

	"github.com/nulzo/llm-gateway/internal/store/model"
)

// Repository is the contract for the data layer.
type Repository interface {
	Requests() RequestRepository
	ProviderStates() ProviderStateRepository

	WithTx(ctx context.Context, fn func(repo Repository) error) error

	Close() error
}

type RequestRepository interface {
	// Log stores one completed (or failed) stream request.
	Log(ctx context.Context, log *model.RequestLog) error
	// GetRecent returns the last N logs, newest first.
	GetRecent(ctx context.Context, limit int) ([]model.RequestLog, error)
	// GetDailyStats aggregates token counts and request outcomes by day.
	GetDailyStats(ctx context.Context, days int) ([]model.DailyStats, error)
}

type ProviderStateRepository interface {
	// Upsert persists a provider's enablement and model allow-list.
	Upsert(ctx context.Context, state *model.ProviderState) error
	// Get returns a provider's persisted state, or nil when none exists.
	Get(ctx context.Context, name string) (*model.ProviderState, error)
	// List returns every persisted provider state.
	List(ctx context.Context) ([]model.ProviderState, error)
}
