package server

import (
	"github.com/gin-gonic/gin"
	"github.com/nulzo/tier-router/internal/server/middleware"
	v1 "github.com/nulzo/tier-router/internal/server/v1"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) SetupRoutes() {
	// Public
	healthHandler := v1.NewHealthHandler(s.deps.Service)
	s.router.GET("/health", healthHandler.Health)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.router.Group("/v1")
	api.Use(middleware.Auth(s.config.Server.APIKeys))
	if s.config.RateLimit.Enabled && s.deps.Limiter != nil {
		api.Use(middleware.RateLimit(s.deps.Limiter, s.logger))
	}
	{
		chatHandler := v1.NewChatHandler(s.deps.Service, s.logger)
		api.POST("/chat/completions", chatHandler.CreateCompletion)

		modelHandler := v1.NewModelHandler(s.deps.Service)
		api.GET("/models", modelHandler.ListModels)
		api.GET("/models/:id", modelHandler.GetModel)

		routingHandler := v1.NewRoutingHandler(s.deps.Service)
		api.GET("/routing", routingHandler.Get)
		api.POST("/routing/classify", routingHandler.Classify)

		if s.deps.Analytics != nil {
			analyticsHandler := v1.NewAnalyticsHandler(s.deps.Analytics)
			api.GET("/analytics/usage", analyticsHandler.GetUsage)
		}
		if s.deps.Repo != nil {
			generationHandler := v1.NewGenerationHandler(s.deps.Repo)
			api.GET("/generation", generationHandler.GetGeneration)
		}
	}
}
