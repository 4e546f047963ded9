// Copyright (C) 2025 Elenchus AI (dev@elenchus.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command interview starts the Elenchus oral examination HTTP server.
//
// Configuration is resolved in three layers, later layers winning:
// a YAML config file (optional), environment variables, command flags.
//
// # Environment Variables
//
//   - INTERVIEW_PORT: HTTP server port (default: 12310)
//   - LLM_BACKEND_TYPE: LLM provider - openai, ollama, claude (default: openai)
//   - INTERVIEW_DATA_DIR: embedded store directory (default: ./data/interview)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OpenTelemetry collector (default: elenchus-otel-collector:4317)
//   - INTERVIEW_LOG_DIR: directory for JSON log files (default: stderr only)
//
// # Usage
//
//	go build -o interview ./cmd/interview
//	./interview serve --config elenchus.yaml
package main

import (
	"log"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/elenchus-ai/elenchus/pkg/logging"
	"github.com/elenchus-ai/elenchus/services/interview"
)

var (
	configPath string

	rootCmd = &cobra.Command{
		Use:   "interview",
		Short: "Elenchus adaptive oral examination service",
		Long: `Elenchus examines a learner over a hierarchical map of lecture
material, escalating question depth Socratically and skipping topics the
learner has already demonstrated.`,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the interview HTTP server",
		Run:   runServe,
	}
)

func init() {
	serveCmd.Flags().StringVar(&configPath, "config", "", "path to a YAML config file")
	serveCmd.Flags().Int("port", 0, "HTTP server port (overrides config and env)")
	serveCmd.Flags().String("llm-backend", "", "LLM backend: openai, ollama, or claude")
	serveCmd.Flags().Bool("in-memory", false, "keep all state in memory")
	serveCmd.Flags().Bool("no-metrics", false, "disable the Prometheus /metrics endpoint")
	rootCmd.AddCommand(serveCmd)
}

func main() {
	logger := logging.New(logging.Config{
		Level:   logging.LevelInfo,
		LogDir:  getEnvString("INTERVIEW_LOG_DIR", ""),
		Service: "interview",
		JSON:    true,
	})
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}

func runServe(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if port, _ := cmd.Flags().GetInt("port"); port != 0 {
		cfg.Port = port
	}
	if backend, _ := cmd.Flags().GetString("llm-backend"); backend != "" {
		cfg.LLMBackend = backend
	}
	if inMem, _ := cmd.Flags().GetBool("in-memory"); inMem {
		cfg.InMemoryStore = true
	}
	if noMetrics, _ := cmd.Flags().GetBool("no-metrics"); noMetrics {
		cfg.DisableMetrics = true
	}

	slog.Info("Starting interview service",
		"port", cfg.Port,
		"llm_backend", cfg.LLMBackend,
		"in_memory", cfg.InMemoryStore,
	)

	svc, err := interview.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create interview service: %v", err)
	}
	if err := svc.Run(); err != nil {
		log.Fatalf("Interview service error: %v", err)
	}
}
