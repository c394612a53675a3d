package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nulzo/llm-gateway/internal/store"
	"github.com/nulzo/llm-gateway/internal/store/model"
)

func newTestRepo(t *testing.T) *SqliteRepository {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?cache=shared&mode=rwc", filepath.Join(t.TempDir(), "gateway.db"))
	repo, err := NewSQLiteStorage(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo.(*SqliteRepository)
}

func TestRequestLogRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	err := repo.Requests().Log(ctx, &model.RequestLog{
		Provider:         "openai",
		Model:            "gpt-4o",
		Outcome:          "complete",
		StopReason:       sql.NullString{String: "stop", Valid: true},
		PromptTokens:     120,
		CompletionTokens: 40,
		FallbackDepth:    1,
		LatencyMS:        830,
	})
	require.NoError(t, err)

	logs, err := repo.Requests().GetRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.NotEmpty(t, logs[0].ID)
	assert.Equal(t, "openai", logs[0].Provider)
	assert.Equal(t, 120, logs[0].PromptTokens)
	assert.Equal(t, 1, logs[0].FallbackDepth)
}

func TestDailyStatsAggregation(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Requests().Log(ctx, &model.RequestLog{
			Provider:     "anthropic",
			Model:        "claude-sonnet-4",
			Outcome:      "complete",
			PromptTokens: 10,
		}))
	}
	require.NoError(t, repo.Requests().Log(ctx, &model.RequestLog{
		Provider: "anthropic",
		Model:    "claude-sonnet-4",
		Outcome:  "error",
	}))

	stats, err := repo.Requests().GetDailyStats(ctx, 7)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, 4, stats[0].Requests)
	assert.Equal(t, 1, stats[0].Errors)
	assert.Equal(t, 30, stats[0].PromptTokens)
}

func TestProviderStateUpsert(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	missing, err := repo.ProviderStates().Get(ctx, "openai")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, repo.ProviderStates().Upsert(ctx, &model.ProviderState{
		Name:           "openai",
		Enabled:        true,
		SelectedModels: `["gpt-4o"]`,
	}))
	require.NoError(t, repo.ProviderStates().Upsert(ctx, &model.ProviderState{
		Name:           "openai",
		Enabled:        false,
		SelectedModels: `["gpt-4o","o3"]`,
	}))

	state, err := repo.ProviderStates().Get(ctx, "openai")
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.False(t, state.Enabled)
	assert.Equal(t, `["gpt-4o","o3"]`, state.SelectedModels)

	states, err := repo.ProviderStates().List(ctx)
	require.NoError(t, err)
	assert.Len(t, states, 1)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	err := repo.WithTx(ctx, func(tx store.Repository) error {
		if err := tx.Requests().Log(ctx, &model.RequestLog{
			Provider: "openai",
			Model:    "gpt-4o",
			Outcome:  "complete",
		}); err != nil {
			return err
		}
		return errors.New("boom")
	})
	require.Error(t, err)

	logs, err := repo.Requests().GetRecent(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, logs)
}
