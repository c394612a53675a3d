package auth

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nulzo/llm-gateway/internal/platform/logger"
)

// cliCacheFile mirrors the credential file vendor CLIs maintain under the
// user config dir: a versioned envelope of named records.
type cliCacheFile struct {
	Version     int                       `json:"version"`
	Credentials map[string]cliCacheRecord `json:"credentials,omitempty"`
}

type cliCacheRecord struct {
	Type         string `json:"type,omitempty"`
	Token        string `json:"token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiryUnix   int64  `json:"expiry_unix,omitempty"`
}

// CLICache reads credentials a vendor CLI already negotiated, so a user who
// is logged in through the CLI needs no separate gateway configuration.
type CLICache struct {
	appName string
	key     string
	now     func() time.Time

	// configDir is swapped in tests; defaults to os.UserConfigDir.
	configDir func() (string, error)
}

func NewCLICache(appName, key string) *CLICache {
	return &CLICache{
		appName:   appName,
		key:       key,
		now:       time.Now,
		configDir: os.UserConfigDir,
	}
}

func (c *CLICache) Name() string { return "cli_cache:" + c.appName }

// Lookup reads the CLI's credential file and returns its token for our key.
// Expired records are skipped; a missing or malformed file is not an error,
// merely an absent credential.
func (c *CLICache) Lookup(_ context.Context) (Credential, bool) {
	record, ok := c.record()
	if !ok {
		return Credential{}, false
	}
	token := strings.TrimSpace(record.Token)
	if token == "" {
		return Credential{}, false
	}
	if record.ExpiryUnix > 0 && !c.now().Before(time.Unix(record.ExpiryUnix, 0)) {
		return Credential{}, false
	}
	return Credential{AuthToken: token}, true
}

// RefreshToken returns the record's long-lived refresh token, if any. Unlike
// Lookup it ignores expiry: the refresh token is exactly what outlives the
// access token.
func (c *CLICache) RefreshToken() string {
	record, ok := c.record()
	if !ok {
		return ""
	}
	return strings.TrimSpace(record.RefreshToken)
}

func (c *CLICache) record() (cliCacheRecord, bool) {
	path, err := c.path()
	if err != nil {
		return cliCacheRecord{}, false
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cliCacheRecord{}, false
	}
	var file cliCacheFile
	if err := json.Unmarshal(raw, &file); err != nil {
		logger.Get().Sugar().Debugw("cli credential cache unreadable", "path", path, "error", err)
		return cliCacheRecord{}, false
	}
	record, ok := file.Credentials[c.key]
	return record, ok
}

func (c *CLICache) path() (string, error) {
	root, err := c.configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, c.appName, c.appName+"_credentials.json"), nil
}
