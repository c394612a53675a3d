package api

// AuthMode declares which credential shapes a provider accepts.
type AuthMode string

const (
	// AuthAPIKey requires an API key.
	AuthAPIKey AuthMode = "api_key"
	// AuthTokenOnly accepts a bearer/OAuth token and rejects API keys outright.
	AuthTokenOnly AuthMode = "auth_token_only"
	// AuthAPIKeyOrToken accepts either credential kind; at least one is required.
	AuthAPIKeyOrToken AuthMode = "api_key_or_auth"
	// AuthEnvAmbient relies on an externally verifiable ambient credential
	// (cloud SDK default chain, instance metadata) rather than a stored secret.
	AuthEnvAmbient AuthMode = "env_ambient"
	// AuthBaseURLOnly needs only a reachable endpoint (local runtimes).
	AuthBaseURLOnly AuthMode = "base_url_only"
)

// ProviderInfo is the management-surface view of one configured provider.
type ProviderInfo struct {
	Name            string   `json:"name"`
	Enabled         bool     `json:"enabled"`
	Authenticated   bool     `json:"authenticated"`
	AuthMode        AuthMode `json:"auth_mode"`
	AllModelIDs     []string `json:"all_model_ids"`
	EnabledModelIDs []string `json:"enabled_model_ids"`
}

// CredentialUpdate is the payload of the credential-update operation. It is
// validated against the provider's declared auth mode before any state mutates.
type CredentialUpdate struct {
	APIKey           string   `json:"api_key,omitempty"`
	AuthToken        string   `json:"auth_token,omitempty"`
	BaseURL          string   `json:"base_url,omitempty" binding:"omitempty,url"`
	SelectedModelIDs []string `json:"selected_model_ids,omitempty"`
}

// UpdateResult reports the outcome of SetCredentials / VerifyConnection.
type UpdateResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func Success() UpdateResult {
	return UpdateResult{Success: true}
}

func Failure(err error) UpdateResult {
	return UpdateResult{Success: false, Error: err.Error()}
}
