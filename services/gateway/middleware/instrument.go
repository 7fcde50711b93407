// Copyright (C) 2026 HealthBridge Technologies (platform@healthbridge.sa)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/healthbridge-sa/nphies-gateway/services/gateway/observability"
)

// Instrument stamps each response with X-Request-ID and X-Process-Time
// headers, writes an access log line with the processing time, and
// records the request counter, latency histogram, and lifetime stats.
// metrics, log, and stats may be nil.
//
// The request id is echoed from the client when supplied, so callers can
// correlate gateway logs with their own. X-Process-Time is stamped just
// before the first byte of the response goes out (headers cannot be
// amended later), so on streaming routes it measures time to first byte.
func Instrument(metrics *observability.GatewayMetrics, log *slog.Logger, stats *observability.RequestStats) gin.HandlerFunc {
	if log == nil {
		log = slog.Default()
	}
	return func(c *gin.Context) {
		start := time.Now()
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header("X-Request-ID", requestID)
		c.Writer = &timedWriter{ResponseWriter: c.Writer, start: start}

		c.Next()

		elapsed := time.Since(start)
		log.Info("request completed",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", elapsed.Milliseconds(),
			"request_id", requestID,
		)

		if metrics != nil {
			route := c.FullPath()
			if route == "" {
				route = "unmatched"
			}
			metrics.RequestsTotal.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Inc()
			metrics.RequestDurationSeconds.WithLabelValues(route).Observe(elapsed.Seconds())
		}
		if stats != nil {
			stats.Record(c.Writer.Status())
		}
	}
}

// timedWriter injects the X-Process-Time header just before the status
// line is committed, the last moment a header can still be set.
type timedWriter struct {
	gin.ResponseWriter
	start   time.Time
	stamped bool
}

func (w *timedWriter) stamp() {
	if w.stamped {
		return
	}
	w.stamped = true
	elapsed := time.Since(w.start).Seconds()
	w.Header().Set("X-Process-Time", strconv.FormatFloat(elapsed, 'f', 6, 64))
}

func (w *timedWriter) WriteHeader(code int) {
	w.stamp()
	w.ResponseWriter.WriteHeader(code)
}

func (w *timedWriter) WriteHeaderNow() {
	w.stamp()
	w.ResponseWriter.WriteHeaderNow()
}

func (w *timedWriter) Write(b []byte) (int, error) {
	w.stamp()
	return w.ResponseWriter.Write(b)
}

func (w *timedWriter) WriteString(s string) (int, error) {
	w.stamp()
	return w.ResponseWriter.WriteString(s)
}

// Recovery converts panics into a structured 500 payload carrying a
// timestamp and the request path. The panic is logged with full context;
// the client sees nothing internal.
func Recovery(log *slog.Logger) gin.HandlerFunc {
	if log == nil {
		log = slog.Default()
	}
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("handler panicked",
					"panic", r,
					"path", c.Request.URL.Path,
					"method", c.Request.Method,
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error":     "internal server error",
					"status":    http.StatusInternalServerError,
					"timestamp": time.Now().UTC().Format(time.RFC3339),
					"path":      c.Request.URL.Path,
				})
			}
		}()
		c.Next()
	}
}
