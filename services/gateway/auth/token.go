// Copyright (C) 2026 HealthBridge Technologies (platform@healthbridge.sa)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package auth implements the gateway token service.
//
// The token service issues and validates signed bearer tokens for the
// single configured service account. Tokens are stateless: everything a
// downstream check needs (subject, scopes, expiry) is embedded in the
// signed claims, and validity derives solely from the signature and the
// expiry timestamp. There is no revocation list — a leaked token remains
// valid until it expires, which is why the default TTL is short.
//
// # Credential verification
//
// Two modes, selected by configuration:
//
//   - Hash mode: when a bcrypt password hash is configured, the supplied
//     password is verified against it with bcrypt.
//   - Plaintext mode: when no hash is configured, the supplied password is
//     compared against the configured plaintext password with a
//     constant-time comparison to avoid timing side channels.
//
// Both failure paths surface the same ErrUnauthenticated so a caller can
// never distinguish "unknown subject" from "wrong password".
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// ErrUnauthenticated is returned for every credential or token failure:
// bad username/password on Issue, and malformed, tampered, expired, or
// subject-less tokens on Validate. The single error kind is deliberate —
// distinguishing reasons to the client would create a probing oracle.
var ErrUnauthenticated = errors.New("auth: unauthenticated")

// =============================================================================
// Configuration
// =============================================================================

// Config holds the token service configuration.
//
// # Fields
//
//   - Secret: HMAC signing secret shared by issue and validate.
//   - Algorithm: JWT signing algorithm name (e.g. "HS256").
//   - TTL: lifetime of issued tokens.
//   - ServiceAccount: the only subject Issue will authenticate.
//   - ServicePassword: plaintext credential, used when ServicePasswordHash
//     is empty.
//   - ServicePasswordHash: optional bcrypt hash; takes precedence over
//     ServicePassword when set.
//
// # Limitations
//
//   - The default secret is fixed and publicly known. It exists so the
//     gateway works out of the box; production deployments must override
//     JWT_SECRET.
type Config struct {
	Secret              string
	Algorithm           string
	TTL                 time.Duration
	ServiceAccount      string
	ServicePassword     string
	ServicePasswordHash string
}

// Insecure development defaults. Every one of these must be overridden
// via environment for any deployment that matters.
const (
	DefaultSecret         = "change-me-in-production"
	DefaultAlgorithm      = "HS256"
	DefaultTTL            = 60 * time.Minute
	DefaultServiceAccount = "nphies_service"
	DefaultPassword       = "nphies-dev-password"
)

// DefaultConfig returns the insecure development configuration.
func DefaultConfig() Config {
	return Config{
		Secret:          DefaultSecret,
		Algorithm:       DefaultAlgorithm,
		TTL:             DefaultTTL,
		ServiceAccount:  DefaultServiceAccount,
		ServicePassword: DefaultPassword,
	}
}

// =============================================================================
// Identity
// =============================================================================

// Identity is the validated result of a bearer token: who the caller is
// and which scopes the token grants. Scope order is not significant.
type Identity struct {
	Subject string
	Scopes  []string
}

// =============================================================================
// Service
// =============================================================================

// Service issues and validates bearer tokens.
//
// # Thread Safety
//
// Safe for concurrent use. All fields are read-only after construction.
type Service struct {
	cfg    Config
	method jwt.SigningMethod
	now    func() time.Time
}

// NewService creates a token service for the given configuration.
//
// # Description
//
// Resolves the signing method from cfg.Algorithm and captures the wall
// clock. Unknown algorithm names fail construction rather than silently
// downgrading to a default.
//
// # Inputs
//
//   - cfg: token configuration. Zero-valued fields are filled from
//     DefaultConfig().
//
// # Outputs
//
//   - *Service: ready for Issue/Validate.
//   - error: non-nil if cfg.Algorithm does not name a known HMAC method.
func NewService(cfg Config) (*Service, error) {
	def := DefaultConfig()
	if cfg.Secret == "" {
		cfg.Secret = def.Secret
	}
	if cfg.Algorithm == "" {
		cfg.Algorithm = def.Algorithm
	}
	if cfg.TTL == 0 {
		cfg.TTL = def.TTL
	}
	if cfg.ServiceAccount == "" {
		cfg.ServiceAccount = def.ServiceAccount
	}
	if cfg.ServicePassword == "" && cfg.ServicePasswordHash == "" {
		cfg.ServicePassword = def.ServicePassword
	}

	method := jwt.GetSigningMethod(cfg.Algorithm)
	if method == nil {
		return nil, fmt.Errorf("auth: unknown signing algorithm %q", cfg.Algorithm)
	}
	if _, ok := method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("auth: algorithm %q is not an HMAC method", cfg.Algorithm)
	}

	return &Service{
		cfg:    cfg,
		method: method,
		now:    time.Now,
	}, nil
}

// WithClock replaces the service clock. Test hook; not for production use.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// claims is the JWT claim set embedded in issued tokens.
type claims struct {
	Scopes []string `json:"scopes,omitempty"`
	jwt.RegisteredClaims
}

// Issue authenticates the service-account credential and mints a signed token.
//
// # Description
//
// Verifies username and password against the configured service account,
// then produces a token with subject, scopes, and exp = now + TTL. The
// credential check is constant-time in plaintext mode and bcrypt in hash
// mode.
//
// # Inputs
//
//   - username: must match the configured service account.
//   - password: the credential to verify.
//   - scopes: scope strings to embed; may be nil.
//
// # Outputs
//
//   - string: the signed compact token.
//   - error: ErrUnauthenticated on any credential failure.
func (s *Service) Issue(username, password string, scopes ...string) (string, error) {
	if !s.authenticate(username, password) {
		return "", ErrUnauthenticated
	}

	now := s.now()
	tok := jwt.NewWithClaims(s.method, claims{
		Scopes: scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TTL)),
		},
	})

	signed, err := tok.SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

// Validate verifies a bearer token and extracts the caller identity.
//
// # Description
//
// Checks the signature against the shared secret (accepting only the
// configured algorithm, which blocks alg-substitution tokens), checks
// expiry against the injected clock, and requires a non-empty subject.
//
// # Outputs
//
//   - Identity: subject and scopes from the verified claims.
//   - error: ErrUnauthenticated for any malformed, tampered, expired, or
//     subject-less token.
func (s *Service) Validate(token string) (Identity, error) {
	var cl claims
	parsed, err := jwt.ParseWithClaims(token, &cl,
		func(t *jwt.Token) (any, error) {
			return []byte(s.cfg.Secret), nil
		},
		jwt.WithValidMethods([]string{s.cfg.Algorithm}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return Identity{}, ErrUnauthenticated
	}
	if cl.Subject == "" {
		return Identity{}, ErrUnauthenticated
	}
	return Identity{Subject: cl.Subject, Scopes: cl.Scopes}, nil
}

// authenticate checks the supplied credential against the configured
// service account. Returns false for any mismatch; never reveals which
// part failed.
func (s *Service) authenticate(username, password string) bool {
	if subtle.ConstantTimeCompare([]byte(username), []byte(s.cfg.ServiceAccount)) != 1 {
		return false
	}
	if s.cfg.ServicePasswordHash != "" {
		return bcrypt.CompareHashAndPassword(
			[]byte(s.cfg.ServicePasswordHash), []byte(password)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(password), []byte(s.cfg.ServicePassword)) == 1
}
