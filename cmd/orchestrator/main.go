// Copyright (C) 2025 The FIR Legal Analysis System Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/agpl-3.0.html> for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding attribution.

// Command orchestrator starts the FIR analysis HTTP server.
//
// This is the main entry point for the containerized service. It reads
// configuration from environment variables and starts the server.
//
// # Environment Variables
//
//   - ORCHESTRATOR_PORT: HTTP server port (default: 8080)
//   - LLM_BACKEND_TYPE: LLM provider - local, openai, ollama, claude, mock (default: local)
//   - WEAVIATE_SERVICE_URL: statute corpus database URL (optional)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OpenTelemetry collector (optional; stdout traces when unset)
//   - RESULTS_BACKEND: results store - memory or badger (default: memory)
//   - RESULTS_PATH: Badger database directory (default: ./data/results)
//   - RESULTS_TTL: result retention, Go duration (default: 24h)
//   - UPLOAD_MAX_BYTES: maximum accepted PDF size (default: 26214400)
//   - LOG_LEVEL: debug, info, warn, or error (default: info)
//   - LOG_DIR: directory for rotating JSON log files (optional; stderr/stdout only when unset)
//
// # Usage
//
//	# Build
//	go build -o orchestrator ./cmd/orchestrator
//
//	# Run
//	./orchestrator
//
//	# Or via container
//	podman-compose up orchestrator
package main

import (
	"log"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/bleedingrockk/FIR-legal-analysis-system/pkg/logging"
	"github.com/bleedingrockk/FIR-legal-analysis-system/services/orchestrator"
)

func main() {
	// Structured logging for the whole process: JSON on stderr, plus a
	// rotating file when LOG_DIR is set.
	logger := logging.New(logging.Config{
		Level:   logLevel(os.Getenv("LOG_LEVEL")),
		LogDir:  os.Getenv("LOG_DIR"),
		Service: "orchestrator",
		JSON:    true,
	})
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	// Build configuration from environment variables
	cfg := orchestrator.Config{
		Port:           getEnvInt("ORCHESTRATOR_PORT", 8080),
		LLMBackend:     getEnvString("LLM_BACKEND_TYPE", "local"),
		WeaviateURL:    os.Getenv("WEAVIATE_SERVICE_URL"),
		OTelEndpoint:   os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		GinMode:        os.Getenv("GIN_MODE"),
		ResultsBackend: getEnvString("RESULTS_BACKEND", "memory"),
		ResultsPath:    getEnvString("RESULTS_PATH", "./data/results"),
		ResultsTTL:     getEnvDuration("RESULTS_TTL", 24*time.Hour),
		UploadMaxBytes: int64(getEnvInt("UPLOAD_MAX_BYTES", 25<<20)),
	}

	slog.Info("Starting FIR orchestrator",
		"port", cfg.Port,
		"llm_backend", cfg.LLMBackend,
		"weaviate_url", cfg.WeaviateURL,
		"results_backend", cfg.ResultsBackend,
	)

	// Create orchestrator with default (no-op) extension options.
	// Hardened builds pass custom ServiceOptions here.
	svc, err := orchestrator.New(cfg, nil)
	if err != nil {
		log.Fatalf("Failed to create orchestrator: %v", err)
	}

	// Run the server (blocks until shutdown)
	if err := svc.Run(); err != nil {
		log.Fatalf("Orchestrator error: %v", err)
	}
}

// logLevel maps the LOG_LEVEL value to a logging level. Unknown values
// fall back to info.
func logLevel(v string) logging.Level {
	switch v {
	case "debug":
		return logging.LevelDebug
	case "warn":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
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

// getEnvDuration returns the environment variable as a duration or a default.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
