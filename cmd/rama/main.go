// Copyright (C) 2026 Rama Labs (oss@rama-labs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command rama starts the Rama claim verification server.
//
// It reads configuration from environment variables and serves the
// verification API over HTTP.
//
// # Environment Variables
//
//   - RAMA_PORT: HTTP server port (default: 8080)
//   - MONGODB_URI: MongoDB connection string (required)
//   - WEAVIATE_URL: Weaviate vector DB URL (required)
//   - GEMINI_API_KEY: enables the Gemini backend and embeddings
//   - OPENROUTER_API_KEY, OPENROUTER_MODEL: OpenRouter fallback backend
//   - OLLAMA_ENDPOINT, OLLAMA_MODEL, OLLAMA_EMBED_MODEL: local Ollama backend
//   - FORCE_OFFLINE_MODE: "true" skips all remote providers
//   - X_ADMIN_TOKEN: admin API token (empty disables /admin)
//   - SOURCE_CONNECTOR_URL: source connector service (empty disables ingestion)
//   - GOOGLE_FACTCHECK_API_KEY: enables live fact check lookups
//   - CREDIBILITY_CONFIG_PATH: YAML trust-list override file
//   - CORS_ORIGINS: comma-separated allowed origins (default: all)
//   - MIN_SIMILARITY: evidence retrieval floor (default: 0.65)
//   - CHUNK_SIZE, CHUNK_OVERLAP: ingestion chunker tuning
//   - T_COOLDOWN_SEC: minimum gap between ingestion runs (default: 600)
//   - T_REQUEST_SEC: per-request verification deadline (default: 15)
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST: per-client limiter tuning
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OpenTelemetry collector (default: rama-otel-collector:4317)
//
// # Usage
//
//	# Build
//	go build -o rama ./cmd/rama
//
//	# Run
//	./rama serve
//
//	# Or via container
//	podman-compose up verifier
package main

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rama-labs/rama/services/verifier"
)

var version = "dev"

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	rootCmd := &cobra.Command{
		Use:          "rama",
		Short:        "Rama claim verification service",
		Version:      version,
		SilenceUsage: true,
	}
	rootCmd.AddCommand(newServeCmd())

	if err := rootCmd.Execute(); err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

func newServeCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the verification HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := configFromEnv()
			if port != 0 {
				cfg.Port = port
			}

			slog.Info("Starting verifier",
				"port", cfg.Port,
				"weaviate_url", cfg.WeaviateURL,
				"force_offline", cfg.ForceOffline,
				"ingestion_enabled", cfg.SourceConnectorURL != "",
			)

			svc, err := verifier.New(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			return svc.Run()
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "HTTP server port (overrides RAMA_PORT)")
	return cmd
}

func configFromEnv() verifier.Config {
	return verifier.Config{
		Port:                  getEnvInt("RAMA_PORT", 8080),
		MongoURI:              getEnvString("MONGODB_URI", "mongodb://localhost:27017"),
		WeaviateURL:           getEnvString("WEAVIATE_URL", "http://localhost:8090"),
		GeminiAPIKey:          os.Getenv("GEMINI_API_KEY"),
		GeminiModel:           os.Getenv("GEMINI_MODEL"),
		GeminiEmbedModel:      os.Getenv("GEMINI_EMBED_MODEL"),
		OpenRouterAPIKey:      os.Getenv("OPENROUTER_API_KEY"),
		OpenRouterModel:       os.Getenv("OPENROUTER_MODEL"),
		OllamaEndpoint:        os.Getenv("OLLAMA_ENDPOINT"),
		OllamaModel:           os.Getenv("OLLAMA_MODEL"),
		OllamaEmbedModel:      os.Getenv("OLLAMA_EMBED_MODEL"),
		ForceOffline:          getEnvBool("FORCE_OFFLINE_MODE", false),
		AdminToken:            os.Getenv("X_ADMIN_TOKEN"),
		SourceConnectorURL:    os.Getenv("SOURCE_CONNECTOR_URL"),
		GoogleFactCheckAPIKey: os.Getenv("GOOGLE_FACTCHECK_API_KEY"),
		CredibilityConfigPath: os.Getenv("CREDIBILITY_CONFIG_PATH"),
		CORSOrigins:           splitList(os.Getenv("CORS_ORIGINS")),
		MinSimilarity:         getEnvFloat("MIN_SIMILARITY", 0.65),
		ChunkSize:             getEnvInt("CHUNK_SIZE", 0),
		ChunkOverlap:          getEnvInt("CHUNK_OVERLAP", 0),
		IngestCooldown:        time.Duration(getEnvInt("T_COOLDOWN_SEC", 600)) * time.Second,
		RequestTimeout:        time.Duration(getEnvInt("T_REQUEST_SEC", 0)) * time.Second,
		RateRPS:               getEnvFloat("RATE_LIMIT_RPS", 2),
		RateBurst:             getEnvInt("RATE_LIMIT_BURST", 10),
		OTelEndpoint:          getEnvString("OTEL_EXPORTER_OTLP_ENDPOINT", "rama-otel-collector:4317"),
		GinMode:               os.Getenv("GIN_MODE"),
		Version:               version,
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

// getEnvFloat returns the environment variable as float64 or a default.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
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

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
