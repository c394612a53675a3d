package v1_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/nulzo/llm-gateway/internal/catalog"
	"github.com/nulzo/llm-gateway/internal/config"
	"github.com/nulzo/llm-gateway/internal/server"
	"github.com/nulzo/llm-gateway/internal/store/model"
	"github.com/nulzo/llm-gateway/pkg/api"
)

// MockGateway is a testify mock over the v1.Gateway interface.
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) Stream(ctx context.Context, req *api.StreamRequest) <-chan api.Event {
	args := m.Called(ctx, req)
	return args.Get(0).(<-chan api.Event)
}

func (m *MockGateway) ListProviders(ctx context.Context) []api.ProviderInfo {
	args := m.Called(ctx)
	return args.Get(0).([]api.ProviderInfo)
}

func (m *MockGateway) SetCredentials(ctx context.Context, name string, update api.CredentialUpdate) api.UpdateResult {
	args := m.Called(ctx, name, update)
	return args.Get(0).(api.UpdateResult)
}

func (m *MockGateway) SetEnabled(ctx context.Context, name string, enabled bool) error {
	args := m.Called(ctx, name, enabled)
	return args.Error(0)
}

func (m *MockGateway) VerifyConnection(ctx context.Context, name string) error {
	args := m.Called(ctx, name)
	return args.Error(0)
}

func (m *MockGateway) ListModels(ctx context.Context, name string) ([]string, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockGateway) CatalogModels() []catalog.Model {
	args := m.Called()
	return args.Get(0).([]catalog.Model)
}

func (m *MockGateway) RecentRequests(ctx context.Context, limit int) ([]model.RequestLog, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.RequestLog), args.Error(1)
}

func (m *MockGateway) DailyStats(ctx context.Context, days int) ([]model.DailyStats, error) {
	args := m.Called(ctx, days)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.DailyStats), args.Error(1)
}

func testConfig() *config.Config {
	return &config.Config{
		Server:    config.ServerConfig{Port: "0", Env: "test"},
		RateLimit: config.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000},
	}
}

func setupServer(svc *MockGateway, cfg *config.Config) http.Handler {
	gin.SetMode(gin.TestMode)
	return server.New(cfg, zap.NewNop(), svc).Handler()
}

// closeNotifyRecorder adds the http.CloseNotifier interface that gin's
// c.Stream requires, which httptest.ResponseRecorder does not implement.
type closeNotifyRecorder struct {
	*httptest.ResponseRecorder
	closed chan bool
}

func (r *closeNotifyRecorder) CloseNotify() <-chan bool { return r.closed }

func doJSON(handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var reader bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&reader).Encode(body)
	}
	req, _ := http.NewRequest(method, path, &reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler.ServeHTTP(&closeNotifyRecorder{w, make(chan bool)}, req)
	return w
}

func TestStream_SSE(t *testing.T) {
	svc := new(MockGateway)

	ch := make(chan api.Event, 3)
	ch <- api.ContentDelta("Hel")
	ch <- api.ContentDelta("lo")
	ch <- api.Complete("stop")
	close(ch)

	svc.On("Stream", mock.Anything, mock.MatchedBy(func(req *api.StreamRequest) bool {
		return req.Model == "claude-sonnet-4"
	})).Return((<-chan api.Event)(ch))

	handler := setupServer(svc, testConfig())

	w := doJSON(handler, "POST", "/v1/stream", api.StreamRequest{
		Model:    "claude-sonnet-4",
		Messages: []api.Message{{Role: api.RoleUser, Content: api.Content{Text: "Hi"}}},
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/event-stream")

	body := w.Body.String()
	assert.Contains(t, body, `"content_delta"`)
	assert.Contains(t, body, "Hel")
	assert.Contains(t, body, `"complete"`)
	assert.Contains(t, body, "[DONE]")
}

func TestStream_ErrorEventIsSerializedWithoutErrField(t *testing.T) {
	svc := new(MockGateway)

	ch := make(chan api.Event, 1)
	ch <- api.ErrorEvent(errors.New("upstream exploded"))
	close(ch)

	svc.On("Stream", mock.Anything, mock.Anything).Return((<-chan api.Event)(ch))

	handler := setupServer(svc, testConfig())
	w := doJSON(handler, "POST", "/v1/stream", api.StreamRequest{
		Model:    "m",
		Messages: []api.Message{{Role: api.RoleUser, Content: api.Content{Text: "Hi"}}},
	})

	body := w.Body.String()
	assert.Contains(t, body, "upstream exploded")
	assert.NotContains(t, body, `"Err"`)
}

func TestStream_InvalidBody(t *testing.T) {
	svc := new(MockGateway)
	handler := setupServer(svc, testConfig())

	req, _ := http.NewRequest("POST", "/v1/stream", bytes.NewBufferString("{invalid-json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStream_MissingMessages(t *testing.T) {
	svc := new(MockGateway)
	handler := setupServer(svc, testConfig())

	w := doJSON(handler, "POST", "/v1/stream", map[string]any{"model": "m"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "messages")
}

func TestListProviders(t *testing.T) {
	svc := new(MockGateway)
	svc.On("ListProviders", mock.Anything).Return([]api.ProviderInfo{
		{Name: "anthropic", Enabled: true, Authenticated: true, AuthMode: api.AuthAPIKeyOrToken},
	})

	handler := setupServer(svc, testConfig())
	w := doJSON(handler, "GET", "/v1/providers", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"anthropic"`)
	assert.Contains(t, w.Body.String(), `"api_key_or_auth"`)
}

func TestSetCredentials_Rejected(t *testing.T) {
	svc := new(MockGateway)
	svc.On("SetCredentials", mock.Anything, "claude-cli", mock.Anything).
		Return(api.UpdateResult{Success: false, Error: "provider expects an auth token, not an API key"})

	handler := setupServer(svc, testConfig())
	w := doJSON(handler, "PUT", "/v1/providers/claude-cli/credentials", api.CredentialUpdate{APIKey: "sk-nope"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "auth token")
}

func TestSetCredentials_Accepted(t *testing.T) {
	svc := new(MockGateway)
	svc.On("SetCredentials", mock.Anything, "openai", mock.MatchedBy(func(u api.CredentialUpdate) bool {
		return u.APIKey == "sk-new"
	})).Return(api.Success())

	handler := setupServer(svc, testConfig())
	w := doJSON(handler, "PUT", "/v1/providers/openai/credentials", api.CredentialUpdate{APIKey: "sk-new"})

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestVerify_ReportsFailureInBody(t *testing.T) {
	svc := new(MockGateway)
	svc.On("VerifyConnection", mock.Anything, "openai").Return(errors.New("401 unauthorized"))

	handler := setupServer(svc, testConfig())
	w := doJSON(handler, "POST", "/v1/providers/openai/verify", nil)

	assert.Equal(t, http.StatusOK, w.Code)

	var result api.UpdateResult
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "401")
}

func TestVerify_StoresCandidateCredentialsFirst(t *testing.T) {
	svc := new(MockGateway)
	svc.On("SetCredentials", mock.Anything, "openai", mock.MatchedBy(func(u api.CredentialUpdate) bool {
		return u.APIKey == "sk-candidate"
	})).Return(api.Success())
	svc.On("VerifyConnection", mock.Anything, "openai").Return(nil)

	handler := setupServer(svc, testConfig())
	w := doJSON(handler, "POST", "/v1/providers/openai/verify", api.CredentialUpdate{APIKey: "sk-candidate"})

	assert.Equal(t, http.StatusOK, w.Code)

	var result api.UpdateResult
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.True(t, result.Success)
	svc.AssertExpectations(t)
}

func TestVerify_RejectedCredentialsSkipProbe(t *testing.T) {
	svc := new(MockGateway)
	svc.On("SetCredentials", mock.Anything, "anthropic", mock.Anything).
		Return(api.UpdateResult{Success: false, Error: "anthropic expects an auth token, not an API key"})

	handler := setupServer(svc, testConfig())
	w := doJSON(handler, "POST", "/v1/providers/anthropic/verify", api.CredentialUpdate{APIKey: "sk-ant"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "auth token")
	svc.AssertNotCalled(t, "VerifyConnection", mock.Anything, mock.Anything)
}

func TestSetEnabled(t *testing.T) {
	svc := new(MockGateway)
	svc.On("SetEnabled", mock.Anything, "ollama", false).Return(nil)

	handler := setupServer(svc, testConfig())
	w := doJSON(handler, "PUT", "/v1/providers/ollama/enabled", map[string]any{"enabled": false})

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestRecentRequests_DefaultLimit(t *testing.T) {
	svc := new(MockGateway)
	svc.On("RecentRequests", mock.Anything, 50).Return([]model.RequestLog{}, nil)

	handler := setupServer(svc, testConfig())
	w := doJSON(handler, "GET", "/v1/requests", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestAuth_RequiresBearerKeyWhenConfigured(t *testing.T) {
	svc := new(MockGateway)
	svc.On("ListProviders", mock.Anything).Return([]api.ProviderInfo{})

	cfg := testConfig()
	cfg.Auth.APIKeys = []string{"sk-gateway-admin"}
	handler := setupServer(svc, cfg)

	w := doJSON(handler, "GET", "/v1/providers", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req, _ := http.NewRequest("GET", "/v1/providers", nil)
	req.Header.Set("Authorization", "Bearer sk-gateway-admin")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHealth(t *testing.T) {
	svc := new(MockGateway)
	handler := setupServer(svc, testConfig())

	w := doJSON(handler, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")
}
