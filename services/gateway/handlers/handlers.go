// Copyright (C) 2026 HealthBridge Technologies (platform@healthbridge.sa)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"log/slog"
	"time"

	"github.com/healthbridge-sa/nphies-gateway/services/gateway/assistant"
	"github.com/healthbridge-sa/nphies-gateway/services/gateway/auth"
	"github.com/healthbridge-sa/nphies-gateway/services/gateway/hub"
	"github.com/healthbridge-sa/nphies-gateway/services/gateway/middleware"
	"github.com/healthbridge-sa/nphies-gateway/services/gateway/observability"
	"github.com/healthbridge-sa/nphies-gateway/services/gateway/stream"
)

// Handlers bundles the gateway endpoints with their collaborators.
//
// # Fields
//
//   - Tokens: token service backing POST /auth/token.
//   - Guard: admission guard for streaming endpoints that cannot use the
//     middleware form (WebSocket handshakes).
//   - Hub: WebSocket connection registry.
//   - Generator: the response generator boundary.
//   - Metrics: gateway Prometheus metrics; may be nil in tests.
//   - Stats: lifetime request counters surfaced by GET /health.
//   - Log: structured logger; a nil logger falls back to slog.Default().
//   - ChunkSize: words per partial_response event.
//   - Pace: delay between partial emissions; zero disables pacing.
type Handlers struct {
	Tokens    *auth.Service
	Guard     *middleware.Guard
	Hub       *hub.Hub
	Generator stream.Generator
	Metrics   *observability.GatewayMetrics
	Stats     *observability.RequestStats
	Log       *slog.Logger
	ChunkSize int
	Pace      time.Duration
}

// New creates the handler set. Nil Log falls back to slog.Default();
// ChunkSize below 1 falls back to stream.DefaultChunkSize.
func New(h Handlers) *Handlers {
	if h.Log == nil {
		h.Log = slog.Default()
	}
	if h.ChunkSize < 1 {
		h.ChunkSize = stream.DefaultChunkSize
	}
	if h.Generator == nil {
		h.Generator = assistant.NewKnowledgeBase()
	}
	if h.Stats == nil {
		h.Stats = observability.NewRequestStats()
	}
	return &h
}

// newSession builds a stream session for one chat interaction.
func (h *Handlers) newSession(id, language, message, contextTag string) *stream.Session {
	return &stream.Session{
		ID:        id,
		Language:  language,
		Message:   message,
		Context:   contextTag,
		ChunkSize: h.ChunkSize,
		Pace:      h.Pace,
		Generator: h.Generator,
	}
}

// countEvent records one emitted stream event.
func (h *Handlers) countEvent(ev stream.Event) {
	if h.Metrics != nil {
		h.Metrics.StreamEventsTotal.WithLabelValues(string(ev.Type)).Inc()
	}
}

// observeSession records a finished session's outcome and duration.
func (h *Handlers) observeSession(transport, outcome string, start time.Time) {
	if h.Metrics == nil {
		return
	}
	h.Metrics.SessionsTotal.WithLabelValues(transport, outcome).Inc()
	h.Metrics.SessionDurationSeconds.WithLabelValues(transport).Observe(time.Since(start).Seconds())
}
