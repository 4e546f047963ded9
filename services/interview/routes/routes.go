// Copyright (C) 2025 Elenchus AI (dev@elenchus.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/elenchus-ai/elenchus/services/interview/engine"
	"github.com/elenchus-ai/elenchus/services/interview/handlers"
	"github.com/elenchus-ai/elenchus/services/interview/observability"
	"github.com/elenchus-ai/elenchus/services/interview/store"
)

// SetupRoutes wires the interview API onto the router.
func SetupRoutes(router *gin.Engine, st store.Store, orch *engine.Orchestrator,
	metrics *observability.InterviewMetrics) {

	router.GET("/health", handlers.HealthCheck)
	if metrics != nil {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	// API version 1 group
	v1 := router.Group("/v1")
	{
		v1.POST("/materials", handlers.CreateMaterial(st))
		v1.GET("/materials", handlers.ListMaterials(st))
		v1.GET("/materials/:materialId", handlers.GetMaterial(st))

		v1.POST("/interview/step", handlers.HandleInterviewStep(st, orch, metrics))

		// Session administration routes
		sessions := v1.Group("/sessions")
		{
			sessions.POST("", handlers.CreateSession(st, metrics))
			sessions.GET("", handlers.ListSessions(st))
			sessions.GET("/:sessionId", handlers.GetSession(st))
			sessions.DELETE("/:sessionId", handlers.DeleteSession(st, metrics))
		}
	}
}
