package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/nulzo/llm-gateway/internal/auth"
	"github.com/nulzo/llm-gateway/internal/breaker"
	"github.com/nulzo/llm-gateway/internal/config"
	"github.com/nulzo/llm-gateway/internal/gateway"
	"github.com/nulzo/llm-gateway/internal/platform/logger"
	"github.com/nulzo/llm-gateway/internal/platform/otel"
	"github.com/nulzo/llm-gateway/internal/provider"
	"github.com/nulzo/llm-gateway/internal/retry"
	"github.com/nulzo/llm-gateway/internal/server"
	"github.com/nulzo/llm-gateway/internal/store/cache"
	"github.com/nulzo/llm-gateway/internal/store/sqlite"

	// Protocol adapters register themselves via init().
	_ "github.com/nulzo/llm-gateway/internal/provider/anthropic"
	_ "github.com/nulzo/llm-gateway/internal/provider/clicmd"
	_ "github.com/nulzo/llm-gateway/internal/provider/gemini"
	_ "github.com/nulzo/llm-gateway/internal/provider/openaicompat"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger.Initialize(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	log := logger.Get()
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Tracing.Enabled {
		shutdown, err := otel.InitTracer("llm-gateway", log, os.Stdout)
		if err != nil {
			log.Fatal("tracer init failed", zap.Error(err))
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(shutdownCtx)
		}()
	}

	repo, err := sqlite.NewSQLiteStorage(cfg.Database.DSN)
	if err != nil {
		log.Fatal("database init failed", zap.Error(err))
	}
	defer repo.Close()

	var cacheService cache.CacheService = cache.NewMemoryCache()
	if cfg.Redis.Enabled {
		redisCache, err := cache.NewRedisCache(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Warn("redis unavailable, using in-memory cache", zap.Error(err))
		} else {
			cacheService = redisCache
			defer redisCache.Close()
		}
	}

	registry, err := provider.NewRegistry(provider.Defaults())
	if err != nil {
		log.Fatal("provider registry init failed", zap.Error(err))
	}

	svc := gateway.New(gateway.Params{
		Registry: registry,
		Breaker:  newBreaker(cfg.Breaker),
		Retry:    newRetry(cfg.Retry),
		Quota:    newQuota(cfg.Quota),
		Repo:     repo,
		Cache:    cacheService,
		Logger:   log,
	})

	if err := svc.LoadStates(ctx); err != nil {
		log.Warn("provider state restore failed", zap.Error(err))
	}
	applyProviderOverrides(ctx, cfg, registry, svc, log)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           server.New(cfg, log, svc).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("gateway listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown incomplete", zap.Error(err))
	}
}

func newBreaker(cfg config.BreakerConfig) *breaker.Breaker {
	var opts []breaker.Option
	if cfg.Threshold > 0 {
		opts = append(opts, breaker.WithThreshold(cfg.Threshold))
	}
	if cfg.Cooldown > 0 {
		opts = append(opts, breaker.WithCooldown(cfg.Cooldown))
	}
	return breaker.New(opts...)
}

func newRetry(cfg config.RetryConfig) *retry.Executor {
	exec := retry.New()
	if cfg.InitialDelay > 0 {
		exec.InitialDelay = cfg.InitialDelay
	}
	if cfg.MaxRetries > 0 {
		exec.MaxRetries = cfg.MaxRetries
	}
	if cfg.JitterFactor > 0 {
		exec.JitterFactor = cfg.JitterFactor
	}
	return exec
}

func newQuota(cfg config.QuotaConfig) *gateway.QuotaClassifier {
	if len(cfg.Markers) == 0 {
		return gateway.NewQuotaClassifier()
	}
	markers := append([]string{}, retry.DefaultRateLimitMarkers...)
	markers = append(markers, cfg.Markers...)
	return gateway.NewQuotaClassifier(markers...)
}

// applyProviderOverrides layers file-config credentials and enablement onto
// the built-in registry. Config credentials sit below runtime updates and
// above plain environment variables.
func applyProviderOverrides(ctx context.Context, cfg *config.Config, registry *provider.Registry, svc *gateway.Service, log *zap.Logger) {
	for _, p := range cfg.Providers {
		resolver, err := registry.Resolver(p.Name)
		if err != nil {
			log.Warn("config names unknown provider", zap.String("provider", p.Name))
			continue
		}
		if p.APIKey != "" || p.AuthToken != "" || p.BaseURL != "" {
			resolver.SetConfig(auth.Credential{
				APIKey:    p.APIKey,
				AuthToken: p.AuthToken,
				BaseURL:   p.BaseURL,
			})
		}
		if len(p.SelectedModels) > 0 {
			if err := svc.SetAllowedModels(ctx, p.Name, p.SelectedModels); err != nil {
				log.Warn("could not apply model allow-list", zap.String("provider", p.Name), zap.Error(err))
			}
		}
		if p.Disabled {
			if err := svc.SetEnabled(ctx, p.Name, false); err != nil {
				log.Warn("could not disable provider", zap.String("provider", p.Name), zap.Error(err))
			}
		}
	}
}
