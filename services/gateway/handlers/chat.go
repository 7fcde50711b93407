// Copyright (C) 2026 HealthBridge Technologies (platform@healthbridge.sa)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/healthbridge-sa/nphies-gateway/services/gateway/datatypes"
	"github.com/healthbridge-sa/nphies-gateway/services/gateway/stream"
)

var chatTracer = otel.Tracer("nphies.gateway.handlers")

// HandleChat implements POST /chat (SSE).
//
// # Description
//
// Validates the chat request, opens an event-stream response, and pumps
// the session's events over it. The client disconnecting cancels the
// request context, which stops the session at its next emission; the
// handler then returns without writing further frames.
//
// # Limitations
//
//   - One session per request; multi-turn state lives client-side in the
//     session id the client chooses to reuse.
func (h *Handlers) HandleChat(c *gin.Context) {
	ctx, span := chatTracer.Start(c.Request.Context(), "HandleChat")
	defer span.End()

	var req datatypes.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request body")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := req.Validate(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation failed")
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	req.EnsureDefaults()

	span.SetAttributes(
		attribute.String("session.id", req.SessionID),
		attribute.String("request.language", req.Language),
		attribute.Int("request.message_length", len(req.Message)),
	)

	SetSSEHeaders(c.Writer)
	writer, err := NewSSEWriter(c.Writer)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
		return
	}
	c.Status(http.StatusOK)

	if h.Metrics != nil {
		h.Metrics.ActiveSessions.WithLabelValues("sse").Inc()
		defer h.Metrics.ActiveSessions.WithLabelValues("sse").Dec()
	}

	start := time.Now()
	outcome := "success"
	session := h.newSession(req.SessionID, req.Language, req.Message, req.Context)
	for ev := range session.Run(ctx) {
		h.countEvent(ev)
		if ev.Type == stream.EventError {
			outcome = "error"
		}
		if err := writer.WriteEvent(ev); err != nil {
			h.Log.Debug("client disconnected mid-stream", "session_id", req.SessionID)
			outcome = "cancelled"
			break
		}
	}
	if ctx.Err() != nil {
		outcome = "cancelled"
	}
	if outcome == "error" {
		span.SetStatus(codes.Error, "generation failed")
	}
	span.SetAttributes(attribute.String("session.outcome", outcome))

	h.observeSession("sse", outcome, start)
	h.Log.Info("chat session finished",
		"session_id", req.SessionID,
		"language", req.Language,
		"outcome", outcome,
	)
}
