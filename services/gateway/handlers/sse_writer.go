// Copyright (C) 2026 HealthBridge Technologies (platform@healthbridge.sa)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers implements the gateway's HTTP and WebSocket endpoints.
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/healthbridge-sa/nphies-gateway/services/gateway/datatypes"
	"github.com/healthbridge-sa/nphies-gateway/services/gateway/stream"
)

// =============================================================================
// Interface Definition
// =============================================================================

// SSEWriter defines the contract for writing Server-Sent Events to HTTP
// responses.
//
// # Description
//
// SSEWriter abstracts SSE event serialization and writing, enabling
// testability and separation from HTTP response mechanics. Implementations
// handle the SSE wire format (event: type\ndata: json\n\n) internally and
// flush after every frame so the client observes incremental delivery.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use: the session producer
// and the keepalive ticker may write from different goroutines.
//
// # Limitations
//
//   - Must be used with an http.Flusher-compatible ResponseWriter
//   - Response headers must be set before the first write
//
// # Assumptions
//
//   - Caller has set SSE headers via SetSSEHeaders()
type SSEWriter interface {
	// WriteEvent writes one session stream event as an SSE frame.
	WriteEvent(event stream.Event) error

	// WriteAgentEvent writes one AG-UI agent event as an SSE frame.
	WriteAgentEvent(event datatypes.AgentEvent) error

	// WriteKeepAlive sends a comment line (": ping") to prevent
	// connection timeouts from intermediaries. Comments are ignored by
	// SSE clients but reset load-balancer idle counters.
	WriteKeepAlive() error
}

// =============================================================================
// Implementation
// =============================================================================

// sseWriter implements SSEWriter over an http.ResponseWriter.
//
// # Fields
//
//   - writer: underlying ResponseWriter
//   - flusher: http.Flusher for immediate send
//   - mu: serializes writes from producer and keepalive goroutines
//
// # Limitations
//
//   - Cannot be reused across requests
type sseWriter struct {
	writer  http.ResponseWriter
	flusher http.Flusher
	mu      sync.Mutex
}

var _ SSEWriter = (*sseWriter)(nil)

// NewSSEWriter creates an SSEWriter for the given ResponseWriter.
//
// # Outputs
//
//   - SSEWriter: ready to write SSE frames.
//   - error: non-nil if the ResponseWriter does not support flushing.
func NewSSEWriter(w http.ResponseWriter) (SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("ResponseWriter does not support http.Flusher")
	}
	return &sseWriter{writer: w, flusher: flusher}, nil
}

// WriteEvent serializes the event and writes it as one SSE frame,
// flushing immediately.
func (w *sseWriter) WriteEvent(event stream.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return w.writeFrame(string(event.Type), data)
}

// WriteAgentEvent serializes the agent event and writes it as one SSE
// frame, flushing immediately.
func (w *sseWriter) WriteAgentEvent(event datatypes.AgentEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal agent event: %w", err)
	}
	return w.writeFrame(string(event.Type), data)
}

// WriteKeepAlive sends an SSE comment line.
func (w *sseWriter) WriteKeepAlive() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := fmt.Fprintf(w.writer, ": ping\n\n"); err != nil {
		return fmt.Errorf("write keepalive: %w", err)
	}
	w.flusher.Flush()
	return nil
}

// writeFrame writes "event: type\ndata: json\n\n" and flushes.
func (w *sseWriter) writeFrame(eventType string, data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := fmt.Fprintf(w.writer, "event: %s\ndata: %s\n\n", eventType, data); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	w.flusher.Flush()
	return nil
}

// =============================================================================
// Helper Functions
// =============================================================================

// SetSSEHeaders configures HTTP response headers for SSE streaming.
//
// # Description
//
// Sets the required headers for Server-Sent Events:
//   - Content-Type: text/event-stream
//   - Cache-Control: no-cache
//   - Connection: keep-alive
//   - X-Accel-Buffering: no (disables nginx buffering)
//
// Must be called before writing any response body.
func SetSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}
