// Copyright (C) 2026 HealthBridge Technologies (platform@healthbridge.sa)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthbridge-sa/nphies-gateway/services/gateway/auth"
)

func newTestService(t *testing.T) Service {
	t.Helper()
	gin.SetMode(gin.TestMode)
	svc, err := New(Config{
		Auth:       auth.Config{Secret: "test-secret", TTL: time.Hour},
		RateLimit:  100,
		RateWindow: time.Minute,
		Pace:       time.Nanosecond, // effectively unpaced, but non-zero to skip the default
		GinMode:    gin.TestMode,
	})
	require.NoError(t, err)
	return svc
}

func obtainToken(t *testing.T, router *gin.Engine) string {
	t.Helper()
	form := url.Values{
		"username": {auth.DefaultServiceAccount},
		"password": {auth.DefaultPassword},
	}
	req := httptest.NewRequest(http.MethodPost, "/auth/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp["access_token"])
	return resp["access_token"]
}

func TestServiceHealthEndpoint(t *testing.T) {
	svc := newTestService(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	svc.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.NotEmpty(t, w.Header().Get("X-Process-Time"))
	assert.Contains(t, w.Body.String(), `"uptime_seconds"`)
}

func TestServiceTokenThenChatFlow(t *testing.T) {
	svc := newTestService(t)
	token := obtainToken(t, svc.Router())

	req := httptest.NewRequest(http.MethodPost, "/chat",
		strings.NewReader(`{"message": "Am I eligible?", "language": "en"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	svc.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "event: session_start")
	assert.Contains(t, body, "event: partial_response")
	assert.Contains(t, body, "event: final_response")
	assert.Contains(t, body, "event: session_end")
}

func TestServiceRejectsMissingAuth(t *testing.T) {
	svc := newTestService(t)

	req := httptest.NewRequest(http.MethodPost, "/chat",
		strings.NewReader(`{"message": "hello"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	svc.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestApplyConfigDefaults(t *testing.T) {
	cfg := applyConfigDefaults(Config{})
	assert.Equal(t, 8000, cfg.Port)
	assert.Equal(t, 60, cfg.RateLimit)
	assert.Equal(t, 60*time.Second, cfg.RateWindow)
	assert.Equal(t, 10, cfg.ChunkSize)
	assert.Equal(t, "canned", cfg.AIBackend)
}
