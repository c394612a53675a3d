package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/nulzo/llm-gateway/internal/store"
	"github.com/nulzo/llm-gateway/internal/store/model"
)

// DB is satisfied by *sqlx.DB and *sqlx.Tx.
type DB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// SqliteRepository implements store.Repository.
type SqliteRepository struct {
	db       *sqlx.DB
	executor DB
}

func NewSqliteRepository(db *sqlx.DB) *SqliteRepository {
	return &SqliteRepository{db: db, executor: db}
}

func (r *SqliteRepository) Close() error {
	return r.db.Close()
}

func (r *SqliteRepository) WithTx(ctx context.Context, fn func(repo store.Repository) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	txRepo := &SqliteRepository{db: r.db, executor: tx}
	if err := fn(txRepo); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (r *SqliteRepository) Requests() store.RequestRepository {
	return &requestRepo{db: r.executor}
}

func (r *SqliteRepository) ProviderStates() store.ProviderStateRepository {
	return &providerStateRepo{db: r.executor}
}

type requestRepo struct {
	db DB
}

func (r *requestRepo) Log(ctx context.Context, log *model.RequestLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO request_logs (
			id, provider, model, outcome, stop_reason, error_message,
			prompt_tokens, completion_tokens, reasoning_tokens,
			fallback_depth, latency_ms, created_at
		) VALUES (
			:id, :provider, :model, :outcome, :stop_reason, :error_message,
			:prompt_tokens, :completion_tokens, :reasoning_tokens,
			:fallback_depth, :latency_ms, :created_at
		)`, log)
	if err != nil {
		return fmt.Errorf("insert request log: %w", err)
	}
	return nil
}

func (r *requestRepo) GetRecent(ctx context.Context, limit int) ([]model.RequestLog, error) {
	if limit <= 0 {
		limit = 50
	}
	var logs []model.RequestLog
	err := r.db.SelectContext(ctx, &logs, `
		SELECT * FROM request_logs
		ORDER BY created_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("select recent request logs: %w", err)
	}
	return logs, nil
}

func (r *requestRepo) GetDailyStats(ctx context.Context, days int) ([]model.DailyStats, error) {
	if days <= 0 {
		days = 7
	}
	var stats []model.DailyStats
	err := r.db.SelectContext(ctx, &stats, `
		SELECT
			DATE(created_at) AS day,
			COUNT(*) AS requests,
			SUM(CASE WHEN outcome = 'error' THEN 1 ELSE 0 END) AS errors,
			SUM(prompt_tokens) AS prompt_tokens,
			SUM(completion_tokens) AS completion_tokens
		FROM request_logs
		WHERE created_at >= DATE('now', ?)
		GROUP BY DATE(created_at)
		ORDER BY day DESC`, fmt.Sprintf("-%d days", days))
	if err != nil {
		return nil, fmt.Errorf("select daily stats: %w", err)
	}
	return stats, nil
}

type providerStateRepo struct {
	db DB
}

func (r *providerStateRepo) Upsert(ctx context.Context, state *model.ProviderState) error {
	state.UpdatedAt = time.Now().UTC()
	if state.SelectedModels == "" {
		state.SelectedModels = "[]"
	}
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO provider_states (name, enabled, selected_models, updated_at)
		VALUES (:name, :enabled, :selected_models, :updated_at)
		ON CONFLICT(name) DO UPDATE SET
			enabled = excluded.enabled,
			selected_models = excluded.selected_models,
			updated_at = excluded.updated_at`, state)
	if err != nil {
		return fmt.Errorf("upsert provider state: %w", err)
	}
	return nil
}

func (r *providerStateRepo) Get(ctx context.Context, name string) (*model.ProviderState, error) {
	var state model.ProviderState
	err := r.db.GetContext(ctx, &state, `SELECT * FROM provider_states WHERE name = ?`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get provider state: %w", err)
	}
	return &state, nil
}

func (r *providerStateRepo) List(ctx context.Context) ([]model.ProviderState, error) {
	var states []model.ProviderState
	if err := r.db.SelectContext(ctx, &states, `SELECT * FROM provider_states ORDER BY name`); err != nil {
		return nil, fmt.Errorf("list provider states: %w", err)
	}
	return states, nil
}
