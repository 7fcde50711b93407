// Copyright (C) 2026 HealthBridge Technologies (platform@healthbridge.sa)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package hub tracks live WebSocket connections so the gateway can push
// targeted or broadcast frames to authenticated clients.
package hub

import (
	"errors"
	"log/slog"
	"sync"
)

// ErrDisconnected is returned by Send when the connection is no longer
// registered or its underlying write fails.
var ErrDisconnected = errors.New("hub: connection disconnected")

// Conn is the minimal surface the hub needs from a WebSocket connection.
// *websocket.Conn satisfies it via a thin adapter in the handlers layer.
type Conn interface {
	// WriteJSON encodes payload as JSON and writes it as one text frame.
	WriteJSON(payload any) error
	// Close tears down the underlying transport.
	Close() error
}

// =============================================================================
// Hub
// =============================================================================

// Hub is the connection registry.
//
// # Thread Safety
//
// Safe for concurrent use. Register/Unregister run from per-connection
// handler goroutines; Broadcast snapshots the registry under the lock
// and writes outside it, so a slow peer cannot stall registration.
// Writes to an individual connection are serialized by a per-entry
// mutex because gorilla/websocket permits at most one concurrent writer.
type Hub struct {
	mu    sync.RWMutex
	conns map[Conn]*entry
	log   *slog.Logger
}

type entry struct {
	writeMu sync.Mutex
	subject string
}

// New creates an empty hub. A nil logger falls back to slog.Default().
func New(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		conns: make(map[Conn]*entry),
		log:   log,
	}
}

// Register adds a connection under the authenticated subject. Registering
// an already-registered connection replaces its subject.
func (h *Hub) Register(c Conn, subject string) {
	h.mu.Lock()
	h.conns[c] = &entry{subject: subject}
	h.mu.Unlock()
	h.log.Debug("connection registered", "subject", subject, "connections", h.Len())
}

// Unregister removes a connection. Idempotent: a second call for the
// same connection is a no-op, so close handlers and error paths can both
// call it without coordination.
func (h *Hub) Unregister(c Conn) {
	h.mu.Lock()
	_, present := h.conns[c]
	delete(h.conns, c)
	h.mu.Unlock()
	if present {
		h.log.Debug("connection unregistered", "connections", h.Len())
	}
}

// Send writes payload to one registered connection.
func (h *Hub) Send(c Conn, payload any) error {
	h.mu.RLock()
	e, ok := h.conns[c]
	h.mu.RUnlock()
	if !ok {
		return ErrDisconnected
	}

	e.writeMu.Lock()
	err := c.WriteJSON(payload)
	e.writeMu.Unlock()
	if err != nil {
		return ErrDisconnected
	}
	return nil
}

// Broadcast writes payload to every registered connection, best-effort.
// A failed write is logged and the offending connection unregistered;
// delivery to the remaining connections proceeds. Returns the number of
// successful deliveries.
func (h *Hub) Broadcast(payload any) int {
	h.mu.RLock()
	snapshot := make(map[Conn]*entry, len(h.conns))
	for c, e := range h.conns {
		snapshot[c] = e
	}
	h.mu.RUnlock()

	delivered := 0
	for c, e := range snapshot {
		e.writeMu.Lock()
		err := c.WriteJSON(payload)
		e.writeMu.Unlock()
		if err != nil {
			h.log.Warn("broadcast delivery failed", "subject", e.subject, "error", err)
			h.Unregister(c)
			continue
		}
		delivered++
	}
	return delivered
}

// Len reports the number of registered connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}
