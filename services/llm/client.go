// Copyright (C) 2025 Elenchus AI (dev@elenchus.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package llm wraps the model backends behind a single text-in/text-out
// client interface. The oracle layer owns prompts and output parsing;
// backends here only move bytes.
package llm

import "context"

type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopK        *int     `json:"top_k"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`

	// SystemPrompt overrides the backend's default persona when set.
	SystemPrompt string `json:"system_prompt,omitempty"`

	// JSONMode asks the backend to constrain output to a JSON object.
	// Backends that cannot enforce it treat this as a hint.
	JSONMode bool `json:"json_mode,omitempty"`
}

// LLMClient defines the standard interface for any LLM backend.
type LLMClient interface {
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)
}

// Helpers for building params literals.

func Float32Ptr(v float32) *float32 { return &v }
func IntPtr(v int) *int             { return &v }
