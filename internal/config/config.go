package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig     `mapstructure:"server"`
	Log       LogConfig        `mapstructure:"log"`
	Database  DatabaseConfig   `mapstructure:"database"`
	Redis     RedisConfig      `mapstructure:"redis"`
	RateLimit RateLimitConfig  `mapstructure:"rate_limit"`
	Auth      AuthConfig       `mapstructure:"auth"`
	Retry     RetryConfig      `mapstructure:"retry"`
	Breaker   BreakerConfig    `mapstructure:"breaker"`
	Quota     QuotaConfig      `mapstructure:"quota"`
	Tracing   TracingConfig    `mapstructure:"tracing"`
	Providers []ProviderConfig `mapstructure:"providers"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Env  string `mapstructure:"env"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DatabaseConfig struct {
	// DSN is the sqlite connection string, e.g. "file:gateway.db".
	DSN string `mapstructure:"dsn"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Enabled  bool   `mapstructure:"enabled"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// AuthConfig guards the gateway's own HTTP surface; provider credentials live
// in ProviderConfig.
type AuthConfig struct {
	// APIKeys are the bearer keys accepted by the server. Empty disables the
	// check, for local use.
	APIKeys []string `mapstructure:"api_keys"`
}

type RetryConfig struct {
	InitialDelay time.Duration `mapstructure:"initial_delay"`
	MaxRetries   int           `mapstructure:"max_retries"`
	JitterFactor float64       `mapstructure:"jitter_factor"`
}

type BreakerConfig struct {
	Threshold int           `mapstructure:"threshold"`
	Cooldown  time.Duration `mapstructure:"cooldown"`
}

type QuotaConfig struct {
	// Markers extends the built-in rate-limit/quota error-text fragments.
	Markers []string `mapstructure:"markers"`
}

type TracingConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// ProviderConfig overrides one vendor entry from the built-in registry table.
// Credentials support the "ENV:VAR_NAME" indirection so config files never
// hold secrets.
type ProviderConfig struct {
	Name           string   `mapstructure:"name"`
	BaseURL        string   `mapstructure:"base_url"`
	APIKey         string   `mapstructure:"api_key"`
	AuthToken      string   `mapstructure:"auth_token"`
	Disabled       bool     `mapstructure:"disabled"`
	SelectedModels []string `mapstructure:"selected_models"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig() (*Config, error) {
	// Load .env file if present
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("./internal/config")

	// Default Values
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.env", "development")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("database.dsn", "file:gateway.db")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("rate_limit.requests_per_second", 10.0)
	v.SetDefault("rate_limit.burst", 20)
	v.SetDefault("retry.initial_delay", 2*time.Second)
	v.SetDefault("retry.max_retries", 8)
	v.SetDefault("retry.jitter_factor", 0.2)
	v.SetDefault("breaker.threshold", 5)
	v.SetDefault("breaker.cooldown", time.Minute)
	v.SetDefault("tracing.enabled", false)

	// Environment Variables
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	// Resolve credential indirections.
	for i, p := range cfg.Providers {
		cfg.Providers[i].APIKey = resolveEnvRef(v, p.APIKey)
		cfg.Providers[i].AuthToken = resolveEnvRef(v, p.AuthToken)
	}

	return &cfg, nil
}

// resolveEnvRef expands an "ENV:VAR_NAME" value from the process environment,
// checking the explicit environment before viper's merged sources.
func resolveEnvRef(v *viper.Viper, value string) string {
	if !strings.HasPrefix(value, "ENV:") {
		return value
	}
	envVar := strings.TrimPrefix(value, "ENV:")
	if val := os.Getenv(envVar); val != "" {
		return val
	}
	return v.GetString(envVar)
}
