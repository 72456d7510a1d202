// Copyright (C) 2025 The FIR Legal Analysis System Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/agpl-3.0.html> for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding attribution.

// Package orchestrator assembles and runs the FIR analysis service.
//
// The orchestrator wires every component together: the HTTP router, the
// analysis pipeline, the LLM backend, the Weaviate statute corpus, the
// results store, the policy engine, and observability infrastructure.
//
// # Extension Integration
//
// The service supports dependency injection via extensions.ServiceOptions,
// so hardened deployments can provide their own implementations of:
//   - AuthProvider: authentication in front of uploads and results
//   - AuthzProvider: role-based access control
//   - AuditLogger: chain-of-custody audit logging
//   - MessageFilter: PII redaction before text reaches an LLM backend
//
// # Usage
//
// Open source (no-op extensions):
//
//	cfg := orchestrator.Config{Port: 8080, LLMBackend: "ollama"}
//	svc, err := orchestrator.New(cfg, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(svc.Run())
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/bleedingrockk/FIR-legal-analysis-system/pkg/extensions"
	"github.com/bleedingrockk/FIR-legal-analysis-system/pkg/resilience"
	"github.com/bleedingrockk/FIR-legal-analysis-system/services/llm"
	"github.com/bleedingrockk/FIR-legal-analysis-system/services/orchestrator/handlers"
	"github.com/bleedingrockk/FIR-legal-analysis-system/services/orchestrator/observability"
	"github.com/bleedingrockk/FIR-legal-analysis-system/services/orchestrator/routes"
	"github.com/bleedingrockk/FIR-legal-analysis-system/services/orchestrator/store"
	"github.com/bleedingrockk/FIR-legal-analysis-system/services/pipeline"
	"github.com/bleedingrockk/FIR-legal-analysis-system/services/policy_engine"
	"github.com/bleedingrockk/FIR-legal-analysis-system/services/retrieval"
	"github.com/bleedingrockk/FIR-legal-analysis-system/services/search"
	"github.com/bleedingrockk/FIR-legal-analysis-system/services/translator"
)

// Service defines the orchestrator lifecycle.
//
// Run blocks until the server stops; Router exposes the configured Gin
// engine for integration tests.
type Service interface {
	Run() error
	Router() *gin.Engine
}

// Config holds orchestrator configuration. All fields have defaults
// applied by New; values usually come from the environment (see
// cmd/orchestrator).
type Config struct {
	// Port is the HTTP server port. Default: 8080.
	Port int

	// LLMBackend selects the provider: "local", "openai", "ollama",
	// "claude"/"anthropic", or "mock". Default: "local".
	LLMBackend string

	// WeaviateURL is the statute corpus database. Empty disables
	// retrieval; mapping nodes degrade to corpus-less answers.
	WeaviateURL string

	// OTelEndpoint is the OTLP gRPC collector for traces. Empty writes
	// spans to stdout, which suits local development.
	OTelEndpoint string

	// GinMode sets the Gin framework mode ("debug", "release", "test").
	// Default: the GIN_MODE environment variable, or "debug".
	GinMode string

	// ResultsBackend selects the results store: "memory" (default) or
	// "badger" for results that survive a restart.
	ResultsBackend string

	// ResultsPath is the Badger database directory. Default:
	// "./data/results". Ignored for the memory backend.
	ResultsPath string

	// ResultsTTL is how long finished results stay retrievable.
	// Default: store.DefaultTTL (24h).
	ResultsTTL time.Duration

	// UploadMaxBytes caps uploaded PDFs. Default: 25 MiB.
	UploadMaxBytes int64

	// RunTimeout bounds one analysis run. Default: handlers.DefaultRunTimeout.
	RunTimeout time.Duration
}

func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.LLMBackend == "" {
		cfg.LLMBackend = "local"
	}
	if cfg.ResultsBackend == "" {
		cfg.ResultsBackend = "memory"
	}
	if cfg.ResultsPath == "" {
		cfg.ResultsPath = "./data/results"
	}
	if cfg.ResultsTTL <= 0 {
		cfg.ResultsTTL = store.DefaultTTL
	}
	if cfg.UploadMaxBytes <= 0 {
		cfg.UploadMaxBytes = handlers.DefaultUploadMaxBytes
	}
	return cfg
}

var meterOnce sync.Once

// service implements Service for production use.
type service struct {
	config Config
	opts   extensions.ServiceOptions
	logger *slog.Logger

	router         *gin.Engine
	llmClient      llm.LLMClient
	policyEngine   *policy_engine.PolicyEngine
	weaviateClient *weaviate.Client
	resultsStore   store.Store
	runner         *handlers.Runner

	tracerCleanup func(context.Context)
}

// New creates the orchestrator service.
//
// Initialization order matters: observability first so every later
// component records into it, then external clients, then the pipeline
// and store, and the router last. A missing Weaviate, translator, or
// search key is not fatal; the affected sections degrade. A missing LLM
// backend is fatal because nothing works without it.
//
// If opts is nil, DefaultOptions() is used (no-op implementations).
func New(cfg Config, opts *extensions.ServiceOptions) (Service, error) {
	s := &service{
		config: applyConfigDefaults(cfg),
		logger: slog.Default(),
	}

	if opts != nil {
		s.opts = opts.Normalize()
	} else {
		s.opts = extensions.DefaultOptions()
	}

	cleanup, err := s.initTelemetry()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	s.tracerCleanup = cleanup

	metrics := observability.InitMetrics()

	s.policyEngine, err = policy_engine.NewPolicyEngine()
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize policy engine: %w", err)
	}
	// The policy engine backs the default classifier and PII filter
	// unless the deployment injected its own.
	if _, ok := s.opts.DataClassifier.(*extensions.NopDataClassifier); ok {
		s.opts.DataClassifier = policy_engine.NewClassifier(s.policyEngine)
	}
	if _, ok := s.opts.MessageFilter.(*extensions.NopMessageFilter); ok {
		s.opts.MessageFilter = policy_engine.NewPIIFilter(s.policyEngine)
	}

	if err := s.initLLMClient(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
	}

	if err := s.initWeaviate(); err != nil {
		s.logger.Warn("Weaviate initialization failed, statute retrieval disabled",
			"error", err)
	}

	if err := s.initStore(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize results store: %w", err)
	}

	s.initRouter(metrics)

	return s, nil
}

// Run starts the HTTP server and blocks until it stops.
func (s *service) Run() error {
	defer s.cleanup()

	addr := fmt.Sprintf(":%d", s.config.Port)
	s.logger.Info("starting FIR analysis server",
		"port", s.config.Port,
		"llm_backend", s.config.LLMBackend,
		"results_backend", s.config.ResultsBackend,
	)

	return s.router.Run(addr)
}

// Router returns the underlying Gin engine for testing.
func (s *service) Router() *gin.Engine {
	return s.router
}

// initTelemetry sets up tracing and the Prometheus metrics bridge.
//
// Traces go to the OTLP collector when one is configured and to stdout
// otherwise. The OTel meter provider is backed by the Prometheus
// exporter so instrument readings surface on /metrics alongside the
// native collectors.
func (s *service) initTelemetry() (func(context.Context), error) {
	ctx := context.Background()

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("fir-orchestrator")))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	var exporter sdktrace.SpanExporter
	if s.config.OTelEndpoint != "" {
		conn, err := grpc.NewClient(s.config.OTelEndpoint,
			grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
		}
		exporter, err = otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
		if err != nil {
			return nil, fmt.Errorf("failed to create trace exporter: %w", err)
		}
	} else {
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout trace exporter: %w", err)
		}
		s.logger.Info("no OTLP endpoint configured, tracing to stdout")
	}

	bsp := sdktrace.NewBatchSpanProcessor(exporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))

	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	// The exporter registers a collector on the default Prometheus
	// registry; install the meter provider once per process.
	var promErr error
	meterOnce.Do(func() {
		promExporter, err := prometheus.New()
		if err != nil {
			promErr = fmt.Errorf("failed to create prometheus exporter: %w", err)
			return
		}
		otel.SetMeterProvider(sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(promExporter)))
	})
	if promErr != nil {
		return nil, promErr
	}

	cleanup := func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceProvider.Shutdown(ctx); err != nil {
			s.logger.Error("failed to shutdown trace provider", "error", err)
		}
	}
	return cleanup, nil
}

// initLLMClient creates the configured LLM backend client.
func (s *service) initLLMClient() error {
	var err error

	switch s.config.LLMBackend {
	case "local":
		s.llmClient, err = llm.NewLocalLlamaCppClient()
		s.logger.Info("using local llama.cpp LLM backend")
	case "openai":
		s.llmClient, err = llm.NewOpenAIClient()
		s.logger.Info("using OpenAI LLM backend")
	case "ollama":
		s.llmClient, err = llm.NewOllamaClient()
		s.logger.Info("using Ollama LLM backend")
	case "claude", "anthropic":
		s.llmClient, err = llm.NewAnthropicClient()
		s.logger.Info("using Anthropic (Claude) LLM backend")
	case "mock":
		s.llmClient = llm.NewMockClient()
		s.logger.Warn("using mock LLM backend; analysis output is canned")
	default:
		s.logger.Warn("unknown LLM backend, defaulting to local", "backend", s.config.LLMBackend)
		s.llmClient, err = llm.NewLocalLlamaCppClient()
	}

	return err
}

// initWeaviate connects to the statute corpus database. Optional: an
// empty URL leaves the client nil and retrieval disabled.
func (s *service) initWeaviate() error {
	weaviateURL := strings.Trim(s.config.WeaviateURL, "\"' ")

	if weaviateURL == "" || !strings.Contains(weaviateURL, "http") {
		s.logger.Info("Weaviate URL not configured, statute retrieval disabled")
		return nil
	}

	parsedURL, err := url.Parse(weaviateURL)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		return fmt.Errorf("invalid Weaviate URL: %s", weaviateURL)
	}

	s.weaviateClient, err = weaviate.NewClient(weaviate.Config{
		Host:   parsedURL.Host,
		Scheme: parsedURL.Scheme,
	})
	if err != nil {
		return fmt.Errorf("failed to create Weaviate client: %w", err)
	}

	retrieval.EnsureSchema(s.weaviateClient)
	s.logger.Info("Weaviate client initialized", "url", weaviateURL)

	return nil
}

// initStore opens the configured results backend.
func (s *service) initStore() error {
	switch s.config.ResultsBackend {
	case "memory":
		s.resultsStore = store.NewMemoryStore(s.config.ResultsTTL, s.logger)
	case "badger":
		st, err := store.NewBadgerStore(store.BadgerConfig{
			Path:   s.config.ResultsPath,
			TTL:    s.config.ResultsTTL,
			Logger: s.logger,
		})
		if err != nil {
			return err
		}
		s.resultsStore = st
	default:
		return fmt.Errorf("unknown results backend %q", s.config.ResultsBackend)
	}
	s.logger.Info("results store initialized",
		"backend", s.config.ResultsBackend,
		"ttl", s.config.ResultsTTL.String(),
	)
	return nil
}

// initRouter assembles the pipeline and registers the HTTP API.
func (s *service) initRouter(metrics *observability.AnalysisMetrics) {
	if s.config.GinMode != "" {
		gin.SetMode(s.config.GinMode)
	}

	var embedder llm.Embedder
	var retriever retrieval.Retriever
	var ingestor *retrieval.Ingestor
	if s.weaviateClient != nil {
		var err error
		embedder, err = s.initEmbedder()
		if err != nil {
			s.logger.Warn("no embedder available, statute retrieval disabled", "error", err)
		} else {
			retriever = retrieval.NewWeaviateRetriever(s.weaviateClient, embedder)
			ingestor = retrieval.NewIngestor(s.weaviateClient, embedder)
		}
	}

	var trans translator.Translator
	if gt, err := translator.New(context.Background(), translator.FromEnv()); err == nil {
		trans = gt
		s.logger.Info("Cloud Translation enabled")
	} else if !errors.Is(err, translator.ErrTranslatorDisabled) {
		s.logger.Warn("translator initialization failed, documents assumed English", "error", err)
	}

	var searcher search.Searcher
	if tc, err := search.NewTavilyClient(); err == nil {
		searcher = tc
		s.logger.Info("Tavily case search enabled")
	} else {
		s.logger.Info("Tavily not configured, historical case search disabled")
	}

	p := pipeline.New(pipeline.Deps{
		LLM:        s.llmClient,
		Retriever:  retriever,
		Translator: trans,
		Searcher:   searcher,
		Resilience: resilience.NewExecutorWithLogger(resilience.DefaultConfig(), s.logger),
		Filter:     s.opts.MessageFilter,
		Logger:     s.logger,
	})

	hub := handlers.NewHub()
	s.runner = handlers.NewRunner(s.resultsStore, p, hub, metrics, s.policyEngine, s.logger).
		WithTimeout(s.config.RunTimeout).
		WithExtensions(s.opts)

	deps := &handlers.Deps{
		Store:          s.resultsStore,
		Pipeline:       p,
		Runner:         s.runner,
		Hub:            hub,
		Metrics:        metrics,
		Policy:         s.policyEngine,
		Weaviate:       s.weaviateClient,
		Ingestor:       ingestor,
		Logger:         s.logger,
		Ext:            &s.opts,
		LLMBackend:     s.config.LLMBackend,
		UploadMaxBytes: s.config.UploadMaxBytes,
	}

	s.router = gin.Default()
	s.router.Use(otelgin.Middleware("fir-orchestrator"))

	routes.SetupRoutes(s.router, deps, &s.opts)
}

// initEmbedder picks the embedding backend matching the LLM provider.
func (s *service) initEmbedder() (llm.Embedder, error) {
	if s.config.LLMBackend == "openai" {
		return llm.NewOpenAIEmbedder()
	}
	if emb, err := llm.NewOllamaEmbedder(); err == nil {
		return emb, nil
	}
	return llm.NewOpenAIEmbedder()
}

// cleanup releases resources on Run exit or a failed New.
func (s *service) cleanup() {
	if s.runner != nil {
		s.runner.Wait()
	}
	if s.resultsStore != nil {
		if err := s.resultsStore.Close(); err != nil {
			s.logger.Warn("results store close error", "error", err)
		}
	}
	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
	}
}

var _ Service = (*service)(nil)
