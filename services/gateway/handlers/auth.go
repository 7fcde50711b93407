// Copyright (C) 2026 HealthBridge Technologies (platform@healthbridge.sa)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/healthbridge-sa/nphies-gateway/services/gateway/datatypes"
)

// HandleToken implements POST /auth/token.
//
// # Description
//
// Accepts form fields username and password, verifies them against the
// configured service account, and returns a bearer token. The endpoint
// is itself rate-limited, keyed by the attempted username, so credential
// stuffing burns the attacker's own quota. Bad credentials produce 400
// with a generic message; the reason is never distinguished.
func (h *Handlers) HandleToken(c *gin.Context) {
	var req datatypes.TokenRequest
	if err := c.ShouldBind(&req); err != nil || req.Validate() != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	if !h.Guard.AdmitCredential(req.Username) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
		return
	}

	token, err := h.Tokens.Issue(req.Username, req.Password)
	if err != nil {
		h.Log.Warn("credential check failed", "username", req.Username)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid credentials"})
		return
	}

	c.JSON(http.StatusOK, datatypes.TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
	})
}
