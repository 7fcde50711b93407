// Copyright (C) 2026 HealthBridge Technologies (platform@healthbridge.sa)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/healthbridge-sa/nphies-gateway/services/gateway/handlers"
	"github.com/healthbridge-sa/nphies-gateway/services/gateway/middleware"
)

// SetupRoutes registers all gateway endpoints.
//
// The token endpoint and the liveness/metrics surfaces are open; every
// business endpoint sits behind the admission guard. WebSocket routes
// run the same check inside the handler because the failure must be
// signaled with a close code, not an HTTP status.
func SetupRoutes(router *gin.Engine, h *handlers.Handlers, guard *middleware.Guard, enableMetrics bool) {
	router.GET("/health", h.HandleHealth)
	router.POST("/auth/token", h.HandleToken)
	if enableMetrics {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	protected := router.Group("/", guard.RequireAuth())
	{
		protected.POST("/chat", h.HandleChat)
		protected.POST("/agent/chat", h.HandleAgentChat)
		protected.POST("/nphies/claim", h.HandleClaim)
	}

	router.GET("/ws/chat", h.HandleChatWebSocket)
	router.GET("/ws/monitoring", h.HandleMonitoringWebSocket)
}
