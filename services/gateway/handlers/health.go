// Copyright (C) 2026 HealthBridge Technologies (platform@healthbridge.sa)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// serviceVersion is reported by the health endpoint.
const serviceVersion = "1.0.0"

// HandleHealth implements GET /health. Unprotected liveness probe with
// lifetime counters for dashboards that poll it.
func (h *Handlers) HandleHealth(c *gin.Context) {
	total, succeeded := h.Stats.Totals()
	c.JSON(http.StatusOK, gin.H{
		"status":         "healthy",
		"service":        "nphies-gateway",
		"version":        serviceVersion,
		"connections":    h.Hub.Len(),
		"uptime_seconds": math.Round(h.Stats.Uptime().Seconds()*100) / 100,
		"performance": gin.H{
			"total_requests":      total,
			"successful_requests": succeeded,
			"success_rate":        h.Stats.SuccessRate(),
		},
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
