// Copyright (C) 2026 HealthBridge Technologies (platform@healthbridge.sa)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthbridge-sa/nphies-gateway/services/gateway/auth"
	"github.com/healthbridge-sa/nphies-gateway/services/gateway/observability"
	"github.com/healthbridge-sa/nphies-gateway/services/gateway/ratelimit"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestGuard(t *testing.T, limit int) (*Guard, string) {
	t.Helper()
	tokens, err := auth.NewService(auth.Config{Secret: "test-secret", TTL: time.Hour})
	require.NoError(t, err)

	token, err := tokens.Issue(auth.DefaultServiceAccount, auth.DefaultPassword)
	require.NoError(t, err)

	return NewGuard(tokens, ratelimit.NewLimiter(limit, time.Minute), nil), token
}

func protectedRouter(g *Guard) *gin.Engine {
	r := gin.New()
	r.GET("/protected", g.RequireAuth(), func(c *gin.Context) {
		id, ok := GetIdentity(c)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "identity missing"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"subject": id.Subject})
	})
	return r
}

func TestRequireAuthAcceptsValidToken(t *testing.T) {
	g, token := newTestGuard(t, 10)
	r := protectedRouter(g)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), auth.DefaultServiceAccount)
}

func TestRequireAuthRejectsMissingOrBadToken(t *testing.T) {
	g, _ := newTestGuard(t, 10)
	r := protectedRouter(g)

	tests := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"not bearer", "Basic dXNlcjpwYXNz"},
		{"garbage token", "Bearer not-a-token"},
		{"empty bearer", "Bearer "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))
		})
	}
}

func TestRequireAuthRateLimits(t *testing.T) {
	g, token := newTestGuard(t, 2)
	r := protectedRouter(g)

	call := func() int {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, call())
	assert.Equal(t, http.StatusOK, call())
	assert.Equal(t, http.StatusTooManyRequests, call())
}

func TestUnauthenticatedCallsDoNotConsumeQuota(t *testing.T) {
	g, token := newTestGuard(t, 1)
	r := protectedRouter(g)

	// Burn several unauthenticated attempts first.
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusUnauthorized, w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthorizeAcceptsQueryParameterToken(t *testing.T) {
	g, token := newTestGuard(t, 10)

	r := gin.New()
	r.GET("/ws", func(c *gin.Context) {
		id, err := g.Authorize(c)
		if err != nil {
			c.Status(http.StatusUnauthorized)
			return
		}
		c.String(http.StatusOK, id.Subject)
	})

	req := httptest.NewRequest(http.MethodGet, "/ws?token="+token, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, auth.DefaultServiceAccount, w.Body.String())
}

func TestExtractToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		query  string
		want   string
	}{
		{"bearer header", "Bearer abc123", "", "abc123"},
		{"lowercase bearer", "bearer abc123", "", "abc123"},
		{"header beats query", "Bearer fromheader", "fromquery", "fromheader"},
		{"malformed header ignores query", "abc123", "fromquery", ""},
		{"query only", "", "fromquery", "fromquery"},
		{"nothing", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			url := "/x"
			if tt.query != "" {
				url += "?token=" + tt.query
			}
			c.Request = httptest.NewRequest(http.MethodGet, url, nil)
			if tt.header != "" {
				c.Request.Header.Set("Authorization", tt.header)
			}
			assert.Equal(t, tt.want, extractToken(c))
		})
	}
}

func TestRateKey(t *testing.T) {
	assert.Equal(t, "svc", rateKey("svc", "10.0.0.1"))
	assert.Equal(t, "10.0.0.1", rateKey("", "10.0.0.1"))
	assert.Equal(t, "anonymous", rateKey("", ""))
}

func TestAdmitCredentialKeyedByUsername(t *testing.T) {
	g, _ := newTestGuard(t, 2)

	assert.True(t, g.AdmitCredential("alice"))
	assert.True(t, g.AdmitCredential("alice"))
	assert.False(t, g.AdmitCredential("alice"))
	assert.True(t, g.AdmitCredential("bob"), "limits are per username")
}

func TestRecoveryProducesStructured500(t *testing.T) {
	r := gin.New()
	r.Use(Recovery(nil))
	r.GET("/boom", func(c *gin.Context) { panic("kaboom") })

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `"path":"/boom"`)
	assert.Contains(t, body, `"timestamp"`)
	assert.NotContains(t, body, "kaboom", "panic detail must not leak to the client")
}

func TestInstrumentSetsHeaders(t *testing.T) {
	r := gin.New()
	r.Use(Instrument(nil, nil, nil))
	r.GET("/x", func(c *gin.Context) {
		c.String(http.StatusOK, "body")
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	// X-Process-Time is stamped before the body starts, so it survives
	// handlers that write output.
	elapsed, err := strconv.ParseFloat(w.Header().Get("X-Process-Time"), 64)
	require.NoError(t, err, "X-Process-Time should be a float, got %q", w.Header().Get("X-Process-Time"))
	assert.GreaterOrEqual(t, elapsed, 0.0)
}

func TestInstrumentEchoesClientRequestID(t *testing.T) {
	r := gin.New()
	r.Use(Instrument(nil, nil, nil))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Request-ID", "client-supplied-id")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "client-supplied-id", w.Header().Get("X-Request-ID"))
}

func TestInstrumentRecordsLifetimeStats(t *testing.T) {
	stats := observability.NewRequestStats()
	r := gin.New()
	r.Use(Instrument(nil, nil, stats))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	for _, path := range []string{"/ok", "/ok", "/ok", "/boom"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	}

	total, succeeded := stats.Totals()
	assert.Equal(t, int64(4), total)
	assert.Equal(t, int64(3), succeeded)
	assert.InDelta(t, 75.0, stats.SuccessRate(), 0.001)
}
