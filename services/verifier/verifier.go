// Copyright (C) 2026 Rama Labs (oss@rama-labs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package verifier wires the claim verification service: the HTTP API, the
// verification engine, the model gateway, the embedding chain, the vector
// index, the document store, and the ingestion pipeline.
package verifier

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/rama-labs/rama/services/connectors"
	"github.com/rama-labs/rama/services/docstore"
	"github.com/rama-labs/rama/services/embeddings"
	"github.com/rama-labs/rama/services/engine"
	"github.com/rama-labs/rama/services/ingestion"
	"github.com/rama-labs/rama/services/llm"
	"github.com/rama-labs/rama/services/vectorstore"
	"github.com/rama-labs/rama/services/verifier/datatypes"
	"github.com/rama-labs/rama/services/verifier/middleware"
	"github.com/rama-labs/rama/services/verifier/observability"
	"github.com/rama-labs/rama/services/verifier/routes"
)

// Service is the verifier lifecycle contract.
type Service interface {
	// Run starts the HTTP server and blocks until it stops.
	Run() error

	// Router returns the configured gin engine for testing.
	Router() *gin.Engine
}

// Config holds verifier configuration. Zero values use defaults; only
// MongoURI and WeaviateURL are required.
type Config struct {
	// Port is the HTTP server port. Default: 8080.
	Port int

	// MongoURI is the MongoDB connection string. Required.
	MongoURI string

	// WeaviateURL is the vector database URL. Required.
	WeaviateURL string

	// GeminiAPIKey enables the Gemini backend and embedding provider.
	GeminiAPIKey string
	// GeminiModel overrides the default generation model.
	GeminiModel string
	// GeminiEmbedModel overrides the default embedding model.
	GeminiEmbedModel string

	// OpenRouterAPIKey enables the OpenRouter backend and embeddings.
	OpenRouterAPIKey string
	// OpenRouterModel overrides the default generation model.
	OpenRouterModel string

	// OllamaEndpoint enables the local Ollama backend, e.g.
	// "http://localhost:11434".
	OllamaEndpoint string
	// OllamaModel overrides the default generation model.
	OllamaModel string
	// OllamaEmbedModel overrides the default embedding model.
	OllamaEmbedModel string

	// ForceOffline skips all remote model and embedding providers.
	ForceOffline bool

	// AdminToken guards /admin routes. Empty disables the admin API.
	AdminToken string

	// SourceConnectorURL is the source connector service. Empty disables
	// ingestion and live news evidence.
	SourceConnectorURL string

	// GoogleFactCheckAPIKey enables live fact check lookups.
	GoogleFactCheckAPIKey string

	// CredibilityConfigPath points at a YAML trust-list override file.
	CredibilityConfigPath string

	// CORSOrigins lists allowed origins. Empty allows all.
	CORSOrigins []string

	// MinSimilarity is the evidence retrieval floor. Default: 0.65.
	MinSimilarity float64

	// RequestTimeout caps a single verification when the gateway is
	// online; offline verification gets five extra seconds. Default: 15s.
	RequestTimeout time.Duration

	// ChunkSize and ChunkOverlap tune the ingestion chunker (characters).
	ChunkSize    int
	ChunkOverlap int

	// IngestCooldown is the minimum gap between ingestion runs.
	// Default: 10m.
	IngestCooldown time.Duration

	// RateRPS and RateBurst tune the per-client limiter.
	// Defaults: 2 rps, burst 10.
	RateRPS   float64
	RateBurst int

	// OTelEndpoint is the OTLP collector. Default: "rama-otel-collector:4317".
	OTelEndpoint string

	// EnableMetrics registers Prometheus metrics. Default: true.
	EnableMetrics bool

	// GinMode sets the gin framework mode.
	GinMode string

	// Version is reported by GET /.
	Version string
}

func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.OTelEndpoint == "" {
		cfg.OTelEndpoint = "rama-otel-collector:4317"
	}
	if cfg.MinSimilarity <= 0 {
		cfg.MinSimilarity = 0.65
	}
	if cfg.IngestCooldown <= 0 {
		cfg.IngestCooldown = 10 * time.Minute
	}
	if cfg.RateRPS <= 0 {
		cfg.RateRPS = 2
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 10
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	cfg.EnableMetrics = true
	return cfg
}

type service struct {
	config        Config
	router        *gin.Engine
	store         *docstore.MongoStore
	logQueue      *docstore.LogQueue
	sampler       *llm.Sampler
	samplerCancel context.CancelFunc
	tracerCleanup func(context.Context)
}

var _ Service = (*service)(nil)

// New wires all verifier components. It connects to MongoDB and Weaviate,
// ensures schema and indexes, builds the embedding chain and the model
// gateway from whichever providers are configured, and registers routes.
func New(ctx context.Context, cfg Config) (Service, error) {
	s := &service{config: applyConfigDefaults(cfg)}

	cleanup, err := s.initTracer()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}
	s.tracerCleanup = cleanup

	var metrics *observability.VerifierMetrics
	if s.config.EnableMetrics {
		metrics = observability.InitMetrics()
		slog.Info("Initialized Prometheus metrics")
	}

	s.store, err = docstore.NewMongoStore(ctx, s.config.MongoURI)
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize document store: %w", err)
	}
	if err := s.store.EnsureIndexes(ctx); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to ensure document store indexes: %w", err)
	}

	index, err := s.initWeaviate(ctx)
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize vector index: %w", err)
	}

	chain, err := s.buildEmbeddingChain()
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to build embedding chain: %w", err)
	}

	backends, err := s.buildBackends()
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to build model backends: %w", err)
	}
	gateway := llm.NewGateway(llm.GatewayConfig{ForceOffline: s.config.ForceOffline}, backends...)
	s.sampler = llm.NewSampler(backends, time.Minute, s.config.ForceOffline)
	samplerCtx, cancel := context.WithCancel(context.Background())
	s.samplerCancel = cancel
	s.sampler.Start(samplerCtx)

	creds, err := s.loadCredibilityTable()
	if err != nil {
		s.cleanup()
		return nil, err
	}

	var onDrop func()
	if metrics != nil {
		onDrop = func() { metrics.DroppedLogEntriesTotal.Inc() }
	}
	s.logQueue = docstore.NewLogQueue(s.store, 0, onDrop)

	var (
		source   *connectors.Client
		liveNews engine.LiveNews
		runner   *ingestion.Orchestrator
	)
	if s.config.SourceConnectorURL != "" {
		source, err = connectors.NewClient(s.config.SourceConnectorURL, nil)
		if err != nil {
			s.cleanup()
			return nil, fmt.Errorf("failed to create source connector client: %w", err)
		}
		liveNews = source
		runner = ingestion.NewOrchestrator(s.store, index, chain, source, creds, ingestion.Config{
			Cooldown:     s.config.IngestCooldown,
			ChunkSize:    s.config.ChunkSize,
			ChunkOverlap: s.config.ChunkOverlap,
		})
	} else {
		slog.Warn("Source connector URL not configured, ingestion and live news are disabled")
	}

	var liveFC engine.LiveFactCheck
	if s.config.GoogleFactCheckAPIKey != "" {
		fc, err := connectors.NewGoogleFactCheckClient(s.config.GoogleFactCheckAPIKey, nil)
		if err != nil {
			s.cleanup()
			return nil, fmt.Errorf("failed to create fact check client: %w", err)
		}
		liveFC = fc
	}

	engineCfg := engine.Config{MinSimilarity: s.config.MinSimilarity}
	if s.config.RequestTimeout > 0 {
		engineCfg.OnlineTimeout = s.config.RequestTimeout
		engineCfg.OfflineTimeout = s.config.RequestTimeout + 5*time.Second
	}
	verifyEngine := engine.New(chain, index, gateway, s.sampler.Mode, liveNews, liveFC,
		creds, s.logQueue, engineCfg)

	s.initRouter(verifyEngine, runner, metrics)
	return s, nil
}

// Run starts the HTTP server and blocks until it stops. Resources are
// released when it returns.
func (s *service) Run() error {
	defer s.cleanup()

	addr := fmt.Sprintf(":%d", s.config.Port)
	slog.Info("Starting verifier server", "port", s.config.Port)
	return s.router.Run(addr)
}

// Router returns the configured gin engine for testing.
func (s *service) Router() *gin.Engine {
	return s.router
}

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
		resource.WithAttributes(semconv.ServiceNameKey.String("verifier-service")))
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
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}
	return cleanup, nil
}

func (s *service) initWeaviate(ctx context.Context) (vectorstore.Index, error) {
	raw := strings.Trim(s.config.WeaviateURL, "\"' ")
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid Weaviate URL: %q", raw)
	}

	client, err := weaviate.NewClient(weaviate.Config{
		Host:   parsed.Host,
		Scheme: parsed.Scheme,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Weaviate client: %w", err)
	}
	if err := vectorstore.EnsureSchema(ctx, client); err != nil {
		return nil, err
	}
	slog.Info("Weaviate client initialized", "url", raw)
	return vectorstore.NewWeaviateIndex(client), nil
}

// buildEmbeddingChain assembles the provider fallback chain in preference
// order. The deterministic local provider is always last, so embedding
// never fails outright.
func (s *service) buildEmbeddingChain() (*embeddings.Chain, error) {
	var providers []embeddings.Provider

	if s.config.GeminiAPIKey != "" && !s.config.ForceOffline {
		p, err := embeddings.NewGeminiProvider(s.config.GeminiAPIKey, s.config.GeminiEmbedModel)
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	if s.config.OpenRouterAPIKey != "" && !s.config.ForceOffline {
		p, err := embeddings.NewOpenAIProvider(s.config.OpenRouterAPIKey, "https://openrouter.ai/api/v1", "")
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	if s.config.OllamaEndpoint != "" {
		p, err := embeddings.NewOllamaProvider(s.config.OllamaEndpoint, s.config.OllamaEmbedModel)
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	providers = append(providers, embeddings.NewLocalProvider())

	slog.Info("Embedding chain assembled", "providers", len(providers))
	return embeddings.NewChain(providers...), nil
}

// buildBackends assembles the model chain: Gemini, then OpenRouter, then
// Ollama. At least one backend must be configured.
func (s *service) buildBackends() ([]llm.Backend, error) {
	var backends []llm.Backend

	if s.config.GeminiAPIKey != "" {
		b, err := llm.NewGeminiBackend(s.config.GeminiAPIKey, s.config.GeminiModel)
		if err != nil {
			return nil, err
		}
		backends = append(backends, b)
	}
	if s.config.OpenRouterAPIKey != "" {
		b, err := llm.NewOpenRouterBackend(s.config.OpenRouterAPIKey, "", s.config.OpenRouterModel)
		if err != nil {
			return nil, err
		}
		backends = append(backends, b)
	}
	if s.config.OllamaEndpoint != "" {
		b, err := llm.NewOllamaBackend(s.config.OllamaEndpoint, s.config.OllamaModel)
		if err != nil {
			return nil, err
		}
		backends = append(backends, b)
	}
	if len(backends) == 0 {
		return nil, fmt.Errorf("no model backend configured: set a Gemini or OpenRouter API key or an Ollama endpoint")
	}

	ids := make([]string, len(backends))
	for i, b := range backends {
		ids[i] = b.ID()
	}
	slog.Info("Model backend chain assembled", "backends", ids)
	return backends, nil
}

func (s *service) loadCredibilityTable() (*datatypes.CredibilityTable, error) {
	if s.config.CredibilityConfigPath == "" {
		return datatypes.DefaultCredibilityTable(), nil
	}
	table, err := datatypes.LoadCredibilityTable(s.config.CredibilityConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load credibility config: %w", err)
	}
	slog.Info("Loaded credibility overrides", "path", s.config.CredibilityConfigPath)
	return table, nil
}

func (s *service) initRouter(verifyEngine *engine.Engine, runner *ingestion.Orchestrator,
	metrics *observability.VerifierMetrics) {

	if s.config.GinMode != "" {
		gin.SetMode(s.config.GinMode)
	}
	datatypes.RegisterValidations()

	s.router = gin.New()
	s.router.Use(gin.Logger(), gin.Recovery())
	s.router.Use(otelgin.Middleware("verifier-service"))

	corsConfig := cors.DefaultConfig()
	if len(s.config.CORSOrigins) > 0 {
		corsConfig.AllowOrigins = s.config.CORSOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders,
		middleware.AdminTokenHeader, middleware.UserIDHeader)
	s.router.Use(cors.New(corsConfig))

	var onReject func()
	if metrics != nil {
		onReject = func() { metrics.RateLimitedTotal.Inc() }
	}
	limiter := middleware.NewRateLimiter(s.config.RateRPS, s.config.RateBurst, onReject)

	deps := routes.Deps{
		Verifier:   verifyEngine,
		Logs:       s.store,
		Feedback:   s.store,
		Sampler:    s.sampler,
		LastRun:    s.store,
		Limiter:    limiter,
		AdminToken: s.config.AdminToken,
		Version:    s.config.Version,
	}
	if runner != nil {
		deps.Runner = runner
	}
	routes.SetupRoutes(s.router, deps)
}

func (s *service) cleanup() {
	if s.samplerCancel != nil {
		s.samplerCancel()
	}
	if s.logQueue != nil {
		s.logQueue.Close()
	}
	if s.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.store.Close(ctx); err != nil {
			slog.Warn("Document store close error", "error", err)
		}
		cancel()
	}
	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
	}
}
