// Copyright (C) 2026 HealthBridge Technologies (platform@healthbridge.sa)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package middleware provides HTTP middleware for the gateway service.
//
// This package contains the auth guard — the single admission check every
// protected endpoint passes through — plus request instrumentation and
// panic recovery.
//
// # Admission Flow
//
// The guard resolves a bearer token from the Authorization header (or the
// "token" query parameter during WebSocket handshakes), validates it with
// the token service, derives a rate-limit key, and consults the rate
// limiter. Only then does business logic run.
//
//	Request
//	   │
//	   ▼
//	Guard
//	   │
//	   ├─► Extract token (header, then query parameter)
//	   │
//	   ├─► tokens.Validate(token)        → 401 / close 4401 on failure
//	   │
//	   ├─► limiter.Admit(rate key)       → 429 / close 4429 on failure
//	   │
//	   └─► Store Identity in context
//	           │
//	           ▼
//	       Handler (retrieves via GetIdentity)
//
// The rate-limit key is the token subject when present, else the client
// network address, else "anonymous". Address fallback can over-throttle
// clients behind a shared NAT; accepted for this deployment.
package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/healthbridge-sa/nphies-gateway/services/gateway/auth"
	"github.com/healthbridge-sa/nphies-gateway/services/gateway/observability"
	"github.com/healthbridge-sa/nphies-gateway/services/gateway/ratelimit"
)

// ErrRateLimited is returned by Authorize when the caller's window quota
// is exhausted.
var ErrRateLimited = errors.New("middleware: rate limited")

// WebSocket close codes distinguishing the two admission failures.
// Non-standard application codes in the 4000 range, mirroring the HTTP
// statuses they correspond to.
const (
	CloseUnauthenticated = 4401
	CloseRateLimited     = 4429
)

// =============================================================================
// Context Keys
// =============================================================================

// identityKey is the context key for storing the authenticated Identity.
// Using a typed key prevents collisions with other context values.
const identityKey = "gateway_identity"

// SetIdentity stores the authenticated identity in the Gin context.
func SetIdentity(c *gin.Context, id auth.Identity) {
	c.Set(identityKey, id)
}

// GetIdentity retrieves the authenticated identity from the Gin context.
// The second return is false when the request did not pass the guard.
func GetIdentity(c *gin.Context) (auth.Identity, bool) {
	v, exists := c.Get(identityKey)
	if !exists {
		return auth.Identity{}, false
	}
	id, ok := v.(auth.Identity)
	return id, ok
}

// =============================================================================
// Guard
// =============================================================================

// Guard composes the token service and the rate limiter into the single
// admission check used by both request/response and streaming endpoints.
//
// # Thread Safety
//
// Safe for concurrent use; both collaborators are concurrency-safe.
type Guard struct {
	tokens  *auth.Service
	limiter *ratelimit.Limiter
	metrics *observability.GatewayMetrics
}

// NewGuard creates the admission guard. metrics may be nil (no-op).
func NewGuard(tokens *auth.Service, limiter *ratelimit.Limiter, metrics *observability.GatewayMetrics) *Guard {
	return &Guard{tokens: tokens, limiter: limiter, metrics: metrics}
}

// Authorize runs the full admission check for the current request:
// token validation, then rate-limit admission under the derived key.
//
// # Outputs
//
//   - auth.Identity: the validated caller, on success.
//   - error: auth.ErrUnauthenticated or ErrRateLimited. The order is
//     fixed — an unauthenticated caller is never counted against a
//     rate-limit bucket.
func (g *Guard) Authorize(c *gin.Context) (auth.Identity, error) {
	token := extractToken(c)
	id, err := g.tokens.Validate(token)
	if err != nil {
		g.countDecision("unauthenticated")
		return auth.Identity{}, auth.ErrUnauthenticated
	}

	if !g.limiter.Admit(rateKey(id.Subject, c.ClientIP())) {
		g.countDecision("rate_limited")
		return auth.Identity{}, ErrRateLimited
	}

	g.countDecision("admitted")
	return id, nil
}

// RequireAuth is the guard as Gin middleware for request/response
// endpoints. On success the identity is attached to the context; on
// failure the request is aborted with 401 (plus WWW-Authenticate) or 429
// before any handler runs.
func (g *Guard) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := g.Authorize(c)
		if err != nil {
			if errors.Is(err, ErrRateLimited) {
				c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
					"error": "rate limit exceeded",
				})
				return
			}
			c.Header("WWW-Authenticate", "Bearer")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "unauthorized",
			})
			return
		}

		SetIdentity(c, id)
		c.Next()
	}
}

// AdmitCredential rate-limits the credential endpoint itself, keyed by
// the attempted username so a brute-force run cannot sidestep the limit
// by rotating source addresses.
func (g *Guard) AdmitCredential(username string) bool {
	if username == "" {
		username = "anonymous"
	}
	return g.limiter.Admit("cred:" + username)
}

func (g *Guard) countDecision(decision string) {
	if g.metrics != nil {
		g.metrics.AuthDecisionsTotal.WithLabelValues(decision).Inc()
	}
}

// =============================================================================
// Helper Functions
// =============================================================================

// extractToken resolves the bearer token for the current request. The
// Authorization header wins; the "token" query parameter is accepted for
// WebSocket handshakes, where browsers cannot set headers. Returns empty
// string when neither carries a token. The "Bearer" prefix is
// case-insensitive per RFC 7235.
func extractToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	return c.Query("token")
}

// rateKey derives the limiter key: subject, else peer address, else a
// shared anonymous bucket.
func rateKey(subject, clientIP string) string {
	if subject != "" {
		return subject
	}
	if clientIP != "" {
		return clientIP
	}
	return "anonymous"
}

// StartLimiterJanitor prunes stale limiter buckets every interval until
// stop is closed. Keeps limiter memory bounded by active keys rather
// than total calls.
func StartLimiterJanitor(l *ratelimit.Limiter, interval time.Duration, stop <-chan struct{}) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				l.Prune()
			case <-stop:
				return
			}
		}
	}()
}
