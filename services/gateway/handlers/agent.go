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
)

var agentTracer = otel.Tracer("nphies.gateway.handlers")

// HandleAgentChat implements POST /agent/chat (SSE, AG-UI protocol).
//
// # Description
//
// Role-gated agent stream for claims workflows. The caller's role must
// permit the "chat" action; auditors and unknown roles get 403 before
// any stream is opened. The stream wraps the generator call in AG-UI
// tool-call framing: tool_call_start, a state_delta announcing the step,
// the generated text as text_message_content, tool_call_end, then
// complete. A generation failure emits an error event and ends the
// stream without the complete marker.
func (h *Handlers) HandleAgentChat(c *gin.Context) {
	ctx, span := agentTracer.Start(c.Request.Context(), "HandleAgentChat")
	defer span.End()

	var req datatypes.AgentRequest
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
		attribute.String("user.id", req.UserID),
		attribute.String("user.role", string(req.UserRole)),
		attribute.String("session.id", req.SessionID),
	)

	if !req.UserRole.Permitted("chat") {
		span.SetStatus(codes.Error, "authorization denied")
		h.Log.Warn("agent chat denied", "user_id", req.UserID, "role", req.UserRole)
		c.JSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
		return
	}

	// Audit line for every accepted agent interaction.
	h.Log.Info("agent chat started",
		"user_id", req.UserID,
		"role", req.UserRole,
		"session_id", req.SessionID,
	)

	SetSSEHeaders(c.Writer)
	writer, err := NewSSEWriter(c.Writer)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
		return
	}
	c.Status(http.StatusOK)

	send := func(kind datatypes.AgentEventType, data map[string]any) bool {
		return writer.WriteAgentEvent(datatypes.NewAgentEvent(kind, req.SessionID, data)) == nil
	}

	if !send(datatypes.AgentEventToolCallStart, map[string]any{
		"tool_name":   "nphies_claim_processor",
		"description": "معالجة طلب المطالبة عبر نظام نفيس / Processing NPHIES claim request",
	}) {
		return
	}
	if !send(datatypes.AgentEventStateDelta, map[string]any{
		"step": "generate_response",
	}) {
		return
	}

	start := time.Now()
	reply, err := h.Generator.Generate(ctx, req.Message, req.Language, "claims")
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation failed")
		h.Log.Error("agent generation failed", "session_id", req.SessionID, "error", err)
		send(datatypes.AgentEventError, map[string]any{
			"message": "Agent processing failed. Please retry.",
		})
		h.observeSession("agent", "error", start)
		return
	}

	if !send(datatypes.AgentEventTextMessage, map[string]any{
		"content":    reply.Text,
		"confidence": reply.Confidence,
		"category":   reply.Category,
		"language":   req.Language,
	}) {
		return
	}
	if !send(datatypes.AgentEventToolCallEnd, map[string]any{
		"tool_name": "nphies_claim_processor",
	}) {
		return
	}
	send(datatypes.AgentEventComplete, map[string]any{
		"session_id": req.SessionID,
	})
	h.observeSession("agent", "success", start)
}
