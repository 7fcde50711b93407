// Copyright (C) 2026 HealthBridge Technologies (platform@healthbridge.sa)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command gateway starts the NPHIES chat/claims gateway HTTP server.
//
// This is the main entry point for the containerized gateway service.
// It reads configuration from environment variables and starts the server.
//
// # Environment Variables
//
//   - GATEWAY_PORT: HTTP server port (default: 8000)
//   - JWT_SECRET: token signing secret (default: insecure dev secret —
//     MUST be overridden in production)
//   - JWT_ALGORITHM: token signing algorithm (default: HS256)
//   - JWT_ACCESS_TOKEN_EXPIRE_MINUTES: token TTL in minutes (default: 60)
//   - SERVICE_ACCOUNT_USERNAME: service account subject (default: nphies_service)
//   - SERVICE_ACCOUNT_PASSWORD: plaintext credential (dev only)
//   - SERVICE_ACCOUNT_PASSWORD_HASH: bcrypt hash; overrides the plaintext
//     credential when set
//   - API_RATE_LIMIT: admitted requests per key per window (default: 60)
//   - API_RATE_LIMIT_WINDOW: window length in seconds (default: 60)
//   - STREAM_CHUNK_SIZE: words per partial_response event (default: 10)
//   - AI_BACKEND: response generator - canned, openai (default: canned)
//   - OPENAI_API_KEY, OPENAI_MODEL: hosted model settings (openai backend)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OpenTelemetry collector (optional)
//   - METRICS_ENABLED: expose /metrics (default: true)
//   - GIN_MODE: debug, release, test
//
// # Usage
//
//	# Build
//	go build -o gateway ./cmd/gateway
//
//	# Run
//	./gateway
package main

import (
	"log"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/healthbridge-sa/nphies-gateway/services/gateway"
	"github.com/healthbridge-sa/nphies-gateway/services/gateway/auth"
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Build configuration from environment variables
	cfg := gateway.Config{
		Port: getEnvInt("GATEWAY_PORT", 8000),
		Auth: auth.Config{
			Secret:              getEnvString("JWT_SECRET", auth.DefaultSecret),
			Algorithm:           getEnvString("JWT_ALGORITHM", auth.DefaultAlgorithm),
			TTL:                 time.Duration(getEnvInt("JWT_ACCESS_TOKEN_EXPIRE_MINUTES", 60)) * time.Minute,
			ServiceAccount:      getEnvString("SERVICE_ACCOUNT_USERNAME", auth.DefaultServiceAccount),
			ServicePassword:     getEnvString("SERVICE_ACCOUNT_PASSWORD", auth.DefaultPassword),
			ServicePasswordHash: os.Getenv("SERVICE_ACCOUNT_PASSWORD_HASH"),
		},
		RateLimit:     getEnvInt("API_RATE_LIMIT", 60),
		RateWindow:    time.Duration(getEnvInt("API_RATE_LIMIT_WINDOW", 60)) * time.Second,
		ChunkSize:     getEnvInt("STREAM_CHUNK_SIZE", 10),
		AIBackend:     getEnvString("AI_BACKEND", "canned"),
		OTelEndpoint:  os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		EnableMetrics: getEnvBool("METRICS_ENABLED", true),
		GinMode:       os.Getenv("GIN_MODE"),
	}

	if cfg.Auth.Secret == auth.DefaultSecret {
		slog.Warn("JWT_SECRET is the insecure development default, override it for production")
	}

	slog.Info("Starting gateway",
		"port", cfg.Port,
		"ai_backend", cfg.AIBackend,
		"rate_limit", cfg.RateLimit,
		"rate_window", cfg.RateWindow.String(),
	)

	svc, err := gateway.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create gateway: %v", err)
	}

	// Run the server (blocks until shutdown)
	if err := svc.Run(); err != nil {
		log.Fatalf("Gateway error: %v", err)
	}
}

// getEnvString returns the environment variable value or a default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvBool returns the environment variable as bool or a default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
