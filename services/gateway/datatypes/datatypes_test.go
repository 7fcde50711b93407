// Copyright (C) 2026 HealthBridge Technologies (platform@healthbridge.sa)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validClaim() ClaimSubmission {
	return ClaimSubmission{
		PatientID:      "1023456789",
		ProviderID:     "PRV00123",
		ProcedureCodes: []string{"99213"},
		DiagnosisCodes: []string{"J06.9"},
		Amount:         450.0,
		ServiceDate:    "2026-08-01",
	}
}

func TestChatRequestValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ChatRequest)
		wantErr bool
	}{
		{"valid minimal", func(r *ChatRequest) {}, false},
		{"valid full", func(r *ChatRequest) {
			r.Language = "ar"
			r.SessionID = "sess_42-a"
			r.Context = "claims"
		}, false},
		{"empty message", func(r *ChatRequest) { r.Message = "" }, true},
		{"message too long", func(r *ChatRequest) { r.Message = strings.Repeat("x", 1001) }, true},
		{"bad language", func(r *ChatRequest) { r.Language = "fr" }, true},
		{"session id with spaces", func(r *ChatRequest) { r.SessionID = "my session" }, true},
		{"session id too long", func(r *ChatRequest) { r.SessionID = strings.Repeat("a", 51) }, true},
		{"context too long", func(r *ChatRequest) { r.Context = strings.Repeat("x", 501) }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := ChatRequest{Message: "Am I eligible?"}
			tt.mutate(&req)
			err := req.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestChatRequestEnsureDefaults(t *testing.T) {
	req := ChatRequest{Message: "hi"}
	req.EnsureDefaults()
	assert.Equal(t, "en", req.Language)
	require.NotEmpty(t, req.SessionID)
	assert.NoError(t, req.Validate(), "generated session id must pass validation")

	keep := ChatRequest{Message: "hi", Language: "ar", SessionID: "client-1"}
	keep.EnsureDefaults()
	assert.Equal(t, "ar", keep.Language)
	assert.Equal(t, "client-1", keep.SessionID)
}

func TestClaimSubmissionValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ClaimSubmission)
		wantErr bool
	}{
		{"valid", func(c *ClaimSubmission) {}, false},
		{"patient id too short", func(c *ClaimSubmission) { c.PatientID = "12345" }, true},
		{"patient id non numeric", func(c *ClaimSubmission) { c.PatientID = "12345abcde" }, true},
		{"provider id lowercase", func(c *ClaimSubmission) { c.ProviderID = "prv00123" }, true},
		{"provider id too short", func(c *ClaimSubmission) { c.ProviderID = "AB1" }, true},
		{"no procedure codes", func(c *ClaimSubmission) { c.ProcedureCodes = nil }, true},
		{"too many procedure codes", func(c *ClaimSubmission) {
			c.ProcedureCodes = make([]string, 11)
			for i := range c.ProcedureCodes {
				c.ProcedureCodes[i] = "99213"
			}
		}, true},
		{"too many diagnosis codes", func(c *ClaimSubmission) {
			c.DiagnosisCodes = []string{"a", "b", "c", "d", "e", "f"}
		}, true},
		{"zero amount", func(c *ClaimSubmission) { c.Amount = 0 }, true},
		{"amount over cap", func(c *ClaimSubmission) { c.Amount = 100001 }, true},
		{"bad service date", func(c *ClaimSubmission) { c.ServiceDate = "01-08-2026" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claim := validClaim()
			tt.mutate(&claim)
			err := claim.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRolePermissions(t *testing.T) {
	assert.True(t, RoleProvider.Permitted("chat"))
	assert.True(t, RolePayer.Permitted("chat"))
	assert.True(t, RolePatient.Permitted("chat"))
	assert.False(t, RoleAuditor.Permitted("chat"), "auditors are read-only")
	assert.True(t, RoleAuditor.Permitted("audit_trail"))
	assert.False(t, Role("intruder").Permitted("chat"))
}

func TestAgentRequestValidation(t *testing.T) {
	req := AgentRequest{
		Message:   "Submit this claim",
		UserID:    "user-7",
		UserRole:  RoleProvider,
		SessionID: "sess-1",
	}
	require.NoError(t, req.Validate())

	req.EnsureDefaults()
	assert.Equal(t, "ar", req.Language)

	req.UserRole = "superuser"
	assert.Error(t, req.Validate())
}
