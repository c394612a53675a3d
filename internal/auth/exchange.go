package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/nulzo/llm-gateway/internal/httpclient"
)

// expiryMargin is subtracted from a token's lifetime so we refresh before the
// upstream actually rejects it.
const expiryMargin = 30 * time.Second

type exchangeRequest struct {
	GrantType    string `json:"grant_type"`
	RefreshToken string `json:"refresh_token"`
	ClientID     string `json:"client_id,omitempty"`
}

type exchangeResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// TokenExchanger trades a long-lived refresh token for short-lived access
// tokens. Exchanges are idempotent within the token's lifetime: concurrent
// callers share one upstream round trip and the cached result is reused
// until it nears expiry.
type TokenExchanger struct {
	client   httpclient.HTTPClient
	url      string
	clientID string
	refresh  func() string

	mu      sync.Mutex
	token   string
	expires time.Time
	now     func() time.Time
}

func NewTokenExchanger(client httpclient.HTTPClient, url, clientID, refreshToken string) *TokenExchanger {
	return NewTokenExchangerFromSource(client, url, clientID, func() string { return refreshToken })
}

// NewTokenExchangerFromSource reads the refresh token lazily on each
// exchange, so it can chain off another credential store such as a vendor
// CLI's cache file.
func NewTokenExchangerFromSource(client httpclient.HTTPClient, url, clientID string, refresh func() string) *TokenExchanger {
	if client == nil {
		client = http.DefaultClient
	}
	return &TokenExchanger{
		client:   client,
		url:      url,
		clientID: clientID,
		refresh:  refresh,
		now:      time.Now,
	}
}

func (t *TokenExchanger) Name() string { return "oauth_exchange" }

// Lookup implements SideChannel.
func (t *TokenExchanger) Lookup(ctx context.Context) (Credential, bool) {
	token, err := t.Token(ctx)
	if err != nil || token == "" {
		return Credential{}, false
	}
	return Credential{AuthToken: token}, true
}

// Token returns a valid access token, exchanging the refresh token only when
// the cached one is missing or about to expire.
func (t *TokenExchanger) Token(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.token != "" && t.now().Add(expiryMargin).Before(t.expires) {
		return t.token, nil
	}
	refreshToken := strings.TrimSpace(t.refresh())
	if refreshToken == "" {
		return "", fmt.Errorf("auth: no refresh token to exchange")
	}

	var resp exchangeResponse
	err := httpclient.SendRequest(ctx, t.client, http.MethodPost, t.url, nil, exchangeRequest{
		GrantType:    "refresh_token",
		RefreshToken: refreshToken,
		ClientID:     t.clientID,
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("auth: token exchange: %w", err)
	}
	if resp.AccessToken == "" {
		return "", fmt.Errorf("auth: token exchange returned no access token")
	}

	t.token = resp.AccessToken
	t.expires = t.now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	return t.token, nil
}
