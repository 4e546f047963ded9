// Copyright (C) 2025 Elenchus AI (dev@elenchus.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/elenchus-ai/elenchus/services/interview"
)

// fileConfig mirrors interview.Config for YAML decoding.
type fileConfig struct {
	Port           int    `yaml:"port"`
	LLMBackend     string `yaml:"llm_backend"`
	DataDir        string `yaml:"data_dir"`
	InMemoryStore  bool   `yaml:"in_memory_store"`
	OTelEndpoint   string `yaml:"otel_endpoint"`
	DisableMetrics bool   `yaml:"disable_metrics"`
	GinMode        string `yaml:"gin_mode"`

	Engine struct {
		PassThreshold  int `yaml:"pass_threshold"`
		MaxStage       int `yaml:"max_stage"`
		MaxConsecFails int `yaml:"max_consec_fails"`
	} `yaml:"engine"`
}

// loadConfig builds the service configuration from an optional YAML file
// plus environment variable overrides. A missing file is only an error
// when the caller asked for one explicitly.
func loadConfig(path string) (interview.Config, error) {
	var fc fileConfig

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return interview.Config{}, fmt.Errorf("reading %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &fc); err != nil {
			return interview.Config{}, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	cfg := interview.Config{
		Port:           fc.Port,
		LLMBackend:     fc.LLMBackend,
		DataDir:        fc.DataDir,
		InMemoryStore:  fc.InMemoryStore,
		OTelEndpoint:   fc.OTelEndpoint,
		DisableMetrics: fc.DisableMetrics,
		GinMode:        fc.GinMode,
		PassThreshold:  fc.Engine.PassThreshold,
		MaxStage:       fc.Engine.MaxStage,
		MaxConsecFails: fc.Engine.MaxConsecFails,
	}

	// Environment variables override the file.
	cfg.Port = getEnvInt("INTERVIEW_PORT", cfg.Port)
	cfg.LLMBackend = getEnvString("LLM_BACKEND_TYPE", cfg.LLMBackend)
	cfg.DataDir = getEnvString("INTERVIEW_DATA_DIR", cfg.DataDir)
	cfg.OTelEndpoint = getEnvString("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OTelEndpoint)
	cfg.GinMode = getEnvString("GIN_MODE", cfg.GinMode)

	return cfg, nil
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
