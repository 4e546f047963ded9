// Copyright (C) 2025 Elenchus AI (dev@elenchus.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package interview provides the core interview service for Elenchus.
//
// This package contains the main service type that coordinates all
// components: HTTP routing, the LLM-backed oracle, the orchestration
// engine, persistence, and observability infrastructure.
//
// # Usage
//
//	cfg := interview.Config{Port: 12310, LLMBackend: "openai"}
//	svc, err := interview.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(svc.Run())
package interview

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

	"github.com/elenchus-ai/elenchus/services/interview/engine"
	"github.com/elenchus-ai/elenchus/services/interview/observability"
	"github.com/elenchus-ai/elenchus/services/interview/oracle"
	"github.com/elenchus-ai/elenchus/services/interview/routes"
	"github.com/elenchus-ai/elenchus/services/interview/store"
	"github.com/elenchus-ai/elenchus/services/llm"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Service defines the contract for the interview service.
//
// # Description
//
// Service abstracts the service lifecycle, enabling testing and
// alternative implementations. Only essential lifecycle methods are
// exposed.
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

// Config holds interview service configuration options.
//
// # Description
//
// Config centralizes all configuration for the service. Values can be
// populated from a config file, environment variables, or
// programmatically for testing. All fields have sensible defaults.
type Config struct {
	// Port is the HTTP server port. Default: 12310
	Port int

	// LLMBackend specifies the LLM provider behind the oracle.
	// Valid values: "openai", "ollama", "claude". Default: "openai"
	LLMBackend string

	// DataDir is the directory for the embedded store.
	// Default: "./data/interview"
	DataDir string

	// InMemoryStore keeps all state in memory; nothing survives a
	// restart. Used by tests and demo deployments. Default: false
	InMemoryStore bool

	// OTelEndpoint is the OpenTelemetry collector endpoint.
	// Default: "elenchus-otel-collector:4317"
	OTelEndpoint string

	// DisableMetrics turns off the Prometheus /metrics endpoint.
	// Default: false (metrics on)
	DisableMetrics bool

	// GinMode sets the Gin framework mode.
	// Valid values: "debug", "release", "test"
	GinMode string

	// PassThreshold, MaxStage and MaxConsecFails tune the orchestration
	// engine; zero values take the engine defaults (3, 3, 3).
	PassThreshold  int
	MaxStage       int
	MaxConsecFails int
}

// =============================================================================
// Implementation
// =============================================================================

// service implements Service for production use.
type service struct {
	config        Config
	router        *gin.Engine
	llmClient     llm.LLMClient
	store         store.Store
	orchestrator  *engine.Orchestrator
	metrics       *observability.InterviewMetrics
	tracerCleanup func(context.Context)
}

var _ Service = (*service)(nil)

// =============================================================================
// Constructor
// =============================================================================

// New creates a new interview Service with the given configuration.
//
// # Description
//
// New initializes all components:
//  1. Applies default configuration for missing values
//  2. Initializes OpenTelemetry tracing
//  3. Initializes Prometheus metrics
//  4. Opens the embedded store
//  5. Creates the LLM client and wraps it in the oracle
//  6. Builds the orchestration engine
//  7. Sets up HTTP routes
//
// # Outputs
//
//   - Service: Ready-to-run interview service
//   - error: Non-nil if initialization fails
//
// # Assumptions
//
//   - Environment variables are set for the LLM provider (API keys, URLs)
//   - The OTel collector is reachable at the configured endpoint
func New(cfg Config) (Service, error) {
	s := &service{
		config: applyConfigDefaults(cfg),
	}

	// Initialize OpenTelemetry tracer
	cleanup, err := s.initTracer()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}
	s.tracerCleanup = cleanup

	// Initialize Prometheus metrics
	if !s.config.DisableMetrics {
		s.metrics = observability.InitMetrics()
		slog.Info("Initialized Prometheus metrics for interviews")
	}

	// Open the store
	if err := s.initStore(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	// Initialize LLM client and oracle
	if err := s.initLLMClient(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
	}
	var judge oracle.Oracle = oracle.NewLLMOracle(s.llmClient)
	if s.metrics != nil {
		judge = observability.NewInstrumentedOracle(judge, s.metrics)
	}

	// Build the orchestration engine
	s.orchestrator = engine.New(judge, engine.Config{
		PassThreshold:  s.config.PassThreshold,
		MaxStage:       s.config.MaxStage,
		MaxConsecFails: s.config.MaxConsecFails,
	})

	// Setup HTTP router
	s.initRouter()

	return s, nil
}

// =============================================================================
// Service Interface Methods
// =============================================================================

// Run starts the HTTP server and blocks until shutdown or error.
func (s *service) Run() error {
	defer s.cleanup()

	addr := fmt.Sprintf(":%d", s.config.Port)
	slog.Info("Starting interview server", "port", s.config.Port)

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
		cfg.Port = 12310
	}
	if cfg.LLMBackend == "" {
		cfg.LLMBackend = "openai"
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "./data/interview"
	}
	if cfg.OTelEndpoint == "" {
		cfg.OTelEndpoint = "elenchus-otel-collector:4317"
	}
	return cfg
}

// initTracer initializes OpenTelemetry distributed tracing.
//
// # Limitations
//
//   - Uses insecure gRPC connection (appropriate for internal networks)
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
		resource.WithAttributes(semconv.ServiceNameKey.String("interview-service")))
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

// initStore opens the persistence layer.
func (s *service) initStore() error {
	if s.config.InMemoryStore {
		slog.Info("Using in-memory store, state will not survive restarts")
		st, err := store.OpenInMemory()
		if err != nil {
			return err
		}
		s.store = st
		return nil
	}
	st, err := store.Open(s.config.DataDir)
	if err != nil {
		return err
	}
	s.store = st
	return nil
}

// initLLMClient initializes the LLM provider client.
func (s *service) initLLMClient() error {
	var err error

	switch s.config.LLMBackend {
	case "openai":
		s.llmClient, err = llm.NewOpenAIClient()
		slog.Info("Using OpenAI LLM backend")
	case "ollama":
		s.llmClient, err = llm.NewOllamaClient()
		slog.Info("Using Ollama LLM backend")
	case "claude":
		s.llmClient, err = llm.NewAnthropicClient()
		slog.Info("Using Anthropic LLM backend")
	default:
		slog.Warn("Unknown LLM backend, defaulting to openai", "backend", s.config.LLMBackend)
		s.llmClient, err = llm.NewOpenAIClient()
	}

	return err
}

// initRouter sets up the Gin HTTP router with all routes.
func (s *service) initRouter() {
	if s.config.GinMode != "" {
		gin.SetMode(s.config.GinMode)
	}
	s.router = gin.Default()
	s.router.Use(otelgin.Middleware("interview-service"))

	routes.SetupRoutes(s.router, s.store, s.orchestrator, s.metrics)
}

// cleanup releases all resources held by the service.
func (s *service) cleanup() {
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			slog.Warn("Store close error", "error", err)
		}
	}
	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
	}
}
