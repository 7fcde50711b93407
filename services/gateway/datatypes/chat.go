// Copyright (C) 2026 HealthBridge Technologies (platform@healthbridge.sa)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes provides request and response types for the gateway
// service.
//
// This file contains the chat and token-endpoint types. For claim
// submission types, see claims.go; for agent stream types, see agent.go.
package datatypes

import (
	"regexp"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// =============================================================================
// Field Limits
// =============================================================================

const (
	// MaxMessageLength is the maximum chat message length in characters.
	MaxMessageLength = 1000

	// MaxContextLength is the maximum context tag length in characters.
	MaxContextLength = 500

	// MaxSessionIDLength is the maximum client-supplied session id length.
	MaxSessionIDLength = 50
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

// gatewayValidate is the validator instance for gateway datatypes.
// Initialized in init() with custom validators.
var gatewayValidate *validator.Validate

var sessionIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,50}$`)

func init() {
	gatewayValidate = validator.New()

	_ = gatewayValidate.RegisterValidation("session_id", validateSessionID)
	_ = gatewayValidate.RegisterValidation("provider_id", validateProviderID)
}

// validateSessionID accepts client-supplied session identifiers:
// 1-50 characters from [a-zA-Z0-9_-]. Keeps session ids safe to echo
// into logs and event frames without escaping.
func validateSessionID(fl validator.FieldLevel) bool {
	return sessionIDPattern.MatchString(fl.Field().String())
}

// =============================================================================
// Chat Request
// =============================================================================

// ChatRequest is the body of POST /chat and of inbound WebSocket chat
// frames.
//
// # Fields
//
//   - Message: Required. The user's question, 1-1000 characters.
//   - Language: Optional. "en" or "ar"; defaults to "en".
//   - SessionID: Optional. Client-supplied session identifier; a UUID is
//     generated when absent.
//   - Context: Optional. Free-form context tag forwarded to the
//     generator, up to 500 characters.
type ChatRequest struct {
	Message   string `json:"message" validate:"required,min=1,max=1000"`
	Language  string `json:"language,omitempty" validate:"omitempty,oneof=en ar"`
	SessionID string `json:"session_id,omitempty" validate:"omitempty,session_id"`
	Context   string `json:"context,omitempty" validate:"omitempty,max=500"`
}

// Validate checks the request against its declared field constraints.
func (r *ChatRequest) Validate() error {
	return gatewayValidate.Struct(r)
}

// EnsureDefaults fills optional fields: language defaults to "en" and a
// missing session id gets a fresh UUID.
func (r *ChatRequest) EnsureDefaults() {
	if r.Language == "" {
		r.Language = "en"
	}
	if r.SessionID == "" {
		r.SessionID = uuid.NewString()
	}
}

// =============================================================================
// Token Endpoint Types
// =============================================================================

// TokenRequest is the form body of POST /auth/token.
type TokenRequest struct {
	Username string `form:"username" validate:"required"`
	Password string `form:"password" validate:"required"`
}

// Validate checks the request against its declared field constraints.
func (r *TokenRequest) Validate() error {
	return gatewayValidate.Struct(r)
}

// TokenResponse is the success body of POST /auth/token.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}
