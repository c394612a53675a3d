package server

import (
	"github.com/nulzo/llm-gateway/internal/server/middleware"
	v1 "github.com/nulzo/llm-gateway/internal/server/v1"
)

func (s *Server) setupRoutes() {
	s.router.Use(middleware.ErrorHandler(s.logger))
	if s.config.Tracing.Enabled {
		s.router.Use(middleware.Tracing("llm-gateway"))
	}

	healthHandler := v1.NewHealthHandler()
	s.router.GET("/health", healthHandler.Health)

	limiter := middleware.NewRateLimiter(
		s.config.RateLimit.RequestsPerSecond,
		s.config.RateLimit.Burst,
		s.logger,
	)

	api := s.router.Group("/v1")
	api.Use(middleware.Auth(s.config.Auth.APIKeys))
	api.Use(limiter.Middleware())
	{
		streamHandler := v1.NewStreamHandler(s.service)
		api.POST("/stream", streamHandler.Stream)

		modelHandler := v1.NewModelHandler(s.service)
		api.GET("/models", modelHandler.List)

		providerHandler := v1.NewProviderHandler(s.service)
		api.GET("/providers", providerHandler.List)
		api.PUT("/providers/:name/credentials", providerHandler.SetCredentials)
		api.PUT("/providers/:name/enabled", providerHandler.SetEnabled)
		api.POST("/providers/:name/verify", providerHandler.Verify)
		api.GET("/providers/:name/models", providerHandler.Models)

		statsHandler := v1.NewStatsHandler(s.service)
		api.GET("/requests", statsHandler.Requests)
		api.GET("/stats/daily", statsHandler.Daily)
	}
}
