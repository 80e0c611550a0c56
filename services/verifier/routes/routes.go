// Copyright (C) 2026 Rama Labs (oss@rama-labs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rama-labs/rama/services/verifier/handlers"
	"github.com/rama-labs/rama/services/verifier/middleware"
)

// Deps carries the handler dependencies routes need.
type Deps struct {
	Verifier   handlers.Verifier
	Runner     handlers.IngestRunner
	Logs       handlers.LogReader
	Feedback   handlers.FeedbackStore
	Sampler    handlers.HealthSampler
	LastRun    handlers.LastRunReader
	Limiter    *middleware.RateLimiter
	AdminToken string
	Version    string
}

// SetupRoutes registers the verifier API on the router.
func SetupRoutes(router *gin.Engine, deps Deps) {
	router.GET("/", handlers.HandleRoot(deps.Version))
	router.GET("/health", handlers.HandleHealth(deps.Sampler, deps.LastRun))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	public := router.Group("/")
	public.Use(middleware.Fingerprint())
	if deps.Limiter != nil {
		public.Use(deps.Limiter.Middleware())
	}
	{
		public.POST("/verify", handlers.HandleVerifyClaim(deps.Verifier))
		public.POST("/feedback", handlers.HandleFeedback(deps.Feedback))
		public.GET("/user/history", handlers.HandleUserHistory(deps.Logs))
	}

	admin := router.Group("/admin")
	admin.Use(middleware.AdminAuth(deps.AdminToken))
	{
		admin.POST("/ingest", handlers.HandleTriggerIngest(deps.Runner))
		admin.GET("/logs", handlers.HandleRecentLogs(deps.Logs))
	}
}
