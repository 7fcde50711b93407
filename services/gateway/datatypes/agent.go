// Copyright (C) 2026 HealthBridge Technologies (platform@healthbridge.sa)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import "time"

// =============================================================================
// Agent Stream Types (AG-UI protocol)
// =============================================================================

// AgentEventType identifies an AG-UI protocol event kind.
type AgentEventType string

const (
	AgentEventToolCallStart AgentEventType = "tool_call_start"
	AgentEventToolCallEnd   AgentEventType = "tool_call_end"
	AgentEventStateDelta    AgentEventType = "state_delta"
	AgentEventTextMessage   AgentEventType = "text_message_content"
	AgentEventThinking      AgentEventType = "thinking"
	AgentEventError         AgentEventType = "error"
	AgentEventComplete      AgentEventType = "complete"
)

// Role is the caller's position in the claims workflow. Roles gate which
// agent actions the caller may trigger.
type Role string

const (
	RoleProvider Role = "provider"
	RolePayer    Role = "payer"
	RolePatient  Role = "patient"
	RoleAuditor  Role = "auditor"
)

// rolePermissions maps each role to the agent actions it may trigger.
// Auditors get read-only access to audit surfaces and cannot open chat
// sessions.
var rolePermissions = map[Role][]string{
	RoleProvider: {"chat", "create_claim", "upload_images", "view_status"},
	RolePayer:    {"chat", "review_claim", "approve_claim", "audit_trail"},
	RolePatient:  {"chat", "view_claim", "upload_consent"},
	RoleAuditor:  {"view_all", "audit_trail", "compliance_report"},
}

// Permitted reports whether the role may perform the action. Unknown
// roles are permitted nothing.
func (r Role) Permitted(action string) bool {
	for _, a := range rolePermissions[r] {
		if a == action {
			return true
		}
	}
	return false
}

// AgentRequest is the body of POST /agent/chat.
//
// # Fields
//
//   - Message: Required. The user's request text.
//   - UserID: Required. Caller identity for the audit trail.
//   - UserRole: Required. One of provider, payer, patient, auditor.
//   - SessionID: Required. Stream session identifier.
//   - Language: Optional. "en" or "ar"; defaults to "ar" for agent
//     workflows.
type AgentRequest struct {
	Message   string `json:"message" validate:"required,min=1,max=1000"`
	UserID    string `json:"user_id" validate:"required,max=100"`
	UserRole  Role   `json:"user_role" validate:"required,oneof=provider payer patient auditor"`
	SessionID string `json:"session_id" validate:"required,session_id"`
	Language  string `json:"language,omitempty" validate:"omitempty,oneof=en ar"`
}

// Validate checks the request against its declared field constraints.
func (r *AgentRequest) Validate() error {
	return gatewayValidate.Struct(r)
}

// EnsureDefaults fills optional fields. Agent workflows default to
// Arabic.
func (r *AgentRequest) EnsureDefaults() {
	if r.Language == "" {
		r.Language = "ar"
	}
}

// AgentEvent is the wire envelope for one AG-UI stream frame. Data is an
// open map because each tool defines its own payload shape.
type AgentEvent struct {
	Type      AgentEventType `json:"type"`
	Data      map[string]any `json:"data"`
	SessionID string         `json:"session_id"`
	Timestamp time.Time      `json:"timestamp"`
}

// NewAgentEvent stamps an event with the current time.
func NewAgentEvent(kind AgentEventType, sessionID string, data map[string]any) AgentEvent {
	return AgentEvent{
		Type:      kind,
		Data:      data,
		SessionID: sessionID,
		Timestamp: time.Now().UTC(),
	}
}
