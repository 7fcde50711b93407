// Copyright (C) 2026 HealthBridge Technologies (platform@healthbridge.sa)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package gateway provides the NPHIES chat/claims gateway service.
//
// The gateway fronts the healthcare-insurance assistant: it issues and
// validates bearer tokens, rate-limits every caller, streams generated
// responses over SSE and WebSocket, and accepts NPHIES claim submissions.
// The service type here wires the components together; the behavior
// lives in the subpackages (auth, ratelimit, stream, assistant, hub,
// middleware, handlers).
//
// # Usage
//
//	cfg := gateway.Config{Port: 8000}
//	svc, err := gateway.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(svc.Run())
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/healthbridge-sa/nphies-gateway/services/gateway/assistant"
	"github.com/healthbridge-sa/nphies-gateway/services/gateway/auth"
	"github.com/healthbridge-sa/nphies-gateway/services/gateway/handlers"
	"github.com/healthbridge-sa/nphies-gateway/services/gateway/hub"
	"github.com/healthbridge-sa/nphies-gateway/services/gateway/middleware"
	"github.com/healthbridge-sa/nphies-gateway/services/gateway/observability"
	"github.com/healthbridge-sa/nphies-gateway/services/gateway/ratelimit"
	"github.com/healthbridge-sa/nphies-gateway/services/gateway/routes"
	"github.com/healthbridge-sa/nphies-gateway/services/gateway/stream"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Service defines the contract for the gateway service.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use. Run() blocks and
// should only be called once per instance.
type Service interface {
	// Run starts the HTTP server and blocks until shutdown or error.
	Run() error

	// Router returns the underlying Gin engine for testing.
	Router() *gin.Engine
}

// =============================================================================
// Configuration
// =============================================================================

// Config holds gateway configuration options.
//
// # Description
//
// Config centralizes all configuration for the gateway service. Values
// are typically populated from environment variables in cmd/gateway, or
// programmatically for testing. Zero values use defaults applied by New().
//
// # Fields
//
//   - Port: HTTP server port. Default: 8000.
//   - Auth: token service configuration; insecure development defaults
//     apply when zero-valued (see auth.DefaultConfig).
//   - RateLimit: admitted requests per key per window. Default: 60.
//   - RateWindow: rate-limit window. Default: 60s.
//   - ChunkSize: words per partial_response stream event. Default: 10.
//   - Pace: delay between partial emissions. Default: 10ms.
//   - AIBackend: response generator. "canned" (default) uses the built-in
//     knowledge base; "openai" uses the hosted model with canned fallback.
//   - OTelEndpoint: OpenTelemetry collector endpoint. Empty disables
//     tracing.
//   - EnableMetrics: expose Prometheus metrics at /metrics. Off by
//     default here so tests can build multiple services without double
//     registration; cmd/gateway turns it on unless disabled via env.
//   - GinMode: Gin framework mode; empty uses the GIN_MODE env var.
type Config struct {
	Port          int
	Auth          auth.Config
	RateLimit     int
	RateWindow    time.Duration
	ChunkSize     int
	Pace          time.Duration
	AIBackend     string
	OTelEndpoint  string
	EnableMetrics bool
	GinMode       string
}

// =============================================================================
// Implementation
// =============================================================================

// service implements Service for production use.
//
// # Fields
//
//   - config: service configuration, defaults applied.
//   - router: Gin HTTP engine with all routes registered.
//   - limiter: shared sliding-window rate limiter.
//   - registry: WebSocket connection registry.
//   - tracerCleanup: shuts down the OTel exporter on exit; may be nil.
//   - janitorStop: stops the limiter prune loop on exit.
//
// # Thread Safety
//
// Thread-safe after construction. All fields are read-only after New()
// returns.
type service struct {
	config        Config
	router        *gin.Engine
	limiter       *ratelimit.Limiter
	registry      *hub.Hub
	tracerCleanup func(context.Context)
	janitorStop   chan struct{}
}

var _ Service = (*service)(nil)

// New creates a gateway Service with the given configuration.
//
// # Description
//
// New initializes all gateway components:
//  1. Applies default configuration for missing values
//  2. Initializes OpenTelemetry tracing (when an endpoint is configured)
//  3. Initializes Prometheus metrics
//  4. Builds the token service, rate limiter, and admission guard
//  5. Selects the response generator backend
//  6. Registers HTTP and WebSocket routes
//
// # Outputs
//
//   - Service: ready-to-run gateway service.
//   - error: non-nil if initialization fails (bad auth config, OpenAI
//     backend selected without an API key, unreachable tracer setup).
func New(cfg Config) (Service, error) {
	s := &service{
		config:      applyConfigDefaults(cfg),
		janitorStop: make(chan struct{}),
	}

	if s.config.GinMode != "" {
		gin.SetMode(s.config.GinMode)
	}

	if s.config.OTelEndpoint != "" {
		cleanup, err := s.initTracer()
		if err != nil {
			return nil, fmt.Errorf("failed to initialize tracer: %w", err)
		}
		s.tracerCleanup = cleanup
	}

	var metrics *observability.GatewayMetrics
	if s.config.EnableMetrics {
		metrics = observability.InitMetrics()
		slog.Info("Initialized Prometheus metrics")
	}

	tokens, err := auth.NewService(s.config.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}

	s.limiter = ratelimit.NewLimiter(s.config.RateLimit, s.config.RateWindow)
	middleware.StartLimiterJanitor(s.limiter, s.config.RateWindow, s.janitorStop)

	guard := middleware.NewGuard(tokens, s.limiter, metrics)
	s.registry = hub.New(slog.Default())

	generator, err := s.initGenerator()
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize generator: %w", err)
	}

	stats := observability.NewRequestStats()
	h := handlers.New(handlers.Handlers{
		Tokens:    tokens,
		Guard:     guard,
		Hub:       s.registry,
		Generator: generator,
		Metrics:   metrics,
		Stats:     stats,
		Log:       slog.Default(),
		ChunkSize: s.config.ChunkSize,
		Pace:      s.config.Pace,
	})

	s.initRouter(h, guard, metrics, stats)
	return s, nil
}

// Run starts the HTTP server and blocks until shutdown or error.
func (s *service) Run() error {
	defer s.cleanup()

	addr := fmt.Sprintf(":%d", s.config.Port)
	slog.Info("Starting gateway server", "port", s.config.Port)

	return s.router.Run(addr)
}

// Router returns the underlying Gin engine for testing.
func (s *service) Router() *gin.Engine {
	return s.router
}

// =============================================================================
// Private Initialization Methods
// =============================================================================

// applyConfigDefaults fills in missing configuration values.
func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 8000
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 60
	}
	if cfg.RateWindow == 0 {
		cfg.RateWindow = 60 * time.Second
	}
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = stream.DefaultChunkSize
	}
	if cfg.Pace == 0 {
		cfg.Pace = 10 * time.Millisecond
	}
	if cfg.AIBackend == "" {
		cfg.AIBackend = "canned"
	}
	return cfg
}

// initGenerator selects the response generator backend. The knowledge
// base always exists; the OpenAI backend wraps it as a fallback.
func (s *service) initGenerator() (stream.Generator, error) {
	kb := assistant.NewKnowledgeBase()

	switch s.config.AIBackend {
	case "canned":
		slog.Info("Using canned knowledge-base backend")
		return kb, nil
	case "openai":
		slog.Info("Using OpenAI backend with canned fallback")
		return assistant.NewOpenAIGenerator(kb)
	default:
		slog.Warn("Unknown AI backend, defaulting to canned", "backend", s.config.AIBackend)
		return kb, nil
	}
}

// initTracer initializes OpenTelemetry distributed tracing.
//
// # Limitations
//
//   - Uses an insecure gRPC connection (appropriate for internal
//     networks).
func (s *service) initTracer() (func(context.Context), error) {
	ctx := context.Background()

	conn, err := grpc.NewClient(s.config.OTelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("nphies-gateway")))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))

	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	cleanup := func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}

	return cleanup, nil
}

// initRouter sets up the Gin HTTP router with middleware and routes.
func (s *service) initRouter(h *handlers.Handlers, guard *middleware.Guard, metrics *observability.GatewayMetrics, stats *observability.RequestStats) {
	s.router = gin.New()
	s.router.Use(middleware.Recovery(slog.Default()))
	s.router.Use(middleware.Instrument(metrics, slog.Default(), stats))
	if s.config.OTelEndpoint != "" {
		s.router.Use(otelgin.Middleware("nphies-gateway"))
	}

	routes.SetupRoutes(s.router, h, guard, s.config.EnableMetrics)
}

// cleanup releases resources held by the service.
func (s *service) cleanup() {
	close(s.janitorStop)
	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
	}
}
