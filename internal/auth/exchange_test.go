package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nulzo/llm-gateway/pkg/api"
)

func newExchangeServer(t *testing.T, hits *atomic.Int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		var req exchangeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "refresh_token", req.GrantType)
		assert.Equal(t, "rt-long-lived", req.RefreshToken)
		_ = json.NewEncoder(w).Encode(exchangeResponse{
			AccessToken: "at-short-lived",
			TokenType:   "Bearer",
			ExpiresIn:   3600,
		})
	}))
}

func TestTokenExchangeCachesWithinTTL(t *testing.T) {
	var hits atomic.Int64
	srv := newExchangeServer(t, &hits)
	defer srv.Close()

	ex := NewTokenExchanger(srv.Client(), srv.URL, "client-1", "rt-long-lived")

	for i := 0; i < 5; i++ {
		token, err := ex.Token(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "at-short-lived", token)
	}
	assert.Equal(t, int64(1), hits.Load())
}

func TestTokenExchangeRefreshesNearExpiry(t *testing.T) {
	var hits atomic.Int64
	srv := newExchangeServer(t, &hits)
	defer srv.Close()

	now := time.Now()
	ex := NewTokenExchanger(srv.Client(), srv.URL, "client-1", "rt-long-lived")
	ex.now = func() time.Time { return now }

	_, err := ex.Token(context.Background())
	require.NoError(t, err)

	now = now.Add(3600*time.Second - expiryMargin)
	_, err = ex.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), hits.Load())
}

func TestTokenExchangeConcurrentCallersShareOneRoundTrip(t *testing.T) {
	var hits atomic.Int64
	srv := newExchangeServer(t, &hits)
	defer srv.Close()

	ex := NewTokenExchanger(srv.Client(), srv.URL, "client-1", "rt-long-lived")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			token, err := ex.Token(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, "at-short-lived", token)
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(1), hits.Load())
}

func TestExpiredCLICacheResolvesThroughExchange(t *testing.T) {
	var hits atomic.Int64
	srv := newExchangeServer(t, &hits)
	defer srv.Close()

	root := t.TempDir()
	writeCLICacheFile(t, root, "claude", cliCacheFile{
		Version: 1,
		Credentials: map[string]cliCacheRecord{
			"anthropic": {
				Type:         "oauth",
				Token:        "stale",
				RefreshToken: "rt-long-lived",
				ExpiryUnix:   time.Now().Add(-time.Hour).Unix(),
			},
		},
	})
	cache := newTestCLICache(t, root)
	ex := NewTokenExchangerFromSource(srv.Client(), srv.URL, "client-1", cache.RefreshToken)

	r := NewResolver(api.AuthAPIKeyOrToken, EnvVars{}, cache, ex)
	cred, err := r.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "at-short-lived", cred.AuthToken)
	assert.Equal(t, SourceSideChannel, cred.Source)
	assert.Equal(t, int64(1), hits.Load())
}

func TestTokenExchangeWithoutRefreshToken(t *testing.T) {
	ex := NewTokenExchanger(nil, "http://unused", "client-1", "")
	_, err := ex.Token(context.Background())
	assert.Error(t, err)

	_, ok := ex.Lookup(context.Background())
	assert.False(t, ok)
}
