// Copyright (C) 2025 Elenchus AI (dev@elenchus.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/elenchus-ai/elenchus/services/interview/datatypes"
	"github.com/elenchus-ai/elenchus/services/llm"
)

var tracer = otel.Tracer("elenchus.interview.oracle")

// LLMOracle implements Oracle over any llm.LLMClient.
//
// Judgment calls run at temperature 0 with JSON mode; question generation
// runs at 0.7 with a short token budget. Unparseable model output is an
// error, never a silent default.
type LLMOracle struct {
	client llm.LLMClient
}

var _ Oracle = (*LLMOracle)(nil)

func NewLLMOracle(client llm.LLMClient) *LLMOracle {
	return &LLMOracle{client: client}
}

func (o *LLMOracle) judge(ctx context.Context, op, system, prompt string, out any) error {
	ctx, span := tracer.Start(ctx, "LLMOracle."+op)
	defer span.End()

	raw, err := o.client.Generate(ctx, prompt, llm.GenerationParams{
		Temperature:  llm.Float32Ptr(0.0),
		SystemPrompt: system,
		JSONMode:     true,
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := json.Unmarshal([]byte(stripFences(raw)), out); err != nil {
		span.RecordError(err)
		slog.Error("Oracle returned unparseable JSON", "op", op, "raw", raw)
		return fmt.Errorf("%s: unparseable model output: %w", op, err)
	}
	return nil
}

func (o *LLMOracle) CompareRelevance(ctx context.Context, answer string, optionA, optionB *datatypes.KnowledgeNode) (Choice, error) {
	var out struct {
		Option string `json:"option"`
	}
	if err := o.judge(ctx, "CompareRelevance", compareSystem,
		comparePrompt(answer, optionA, optionB), &out); err != nil {
		return "", err
	}
	switch strings.ToUpper(strings.TrimSpace(out.Option)) {
	case "A":
		return ChoiceA, nil
	case "B":
		return ChoiceB, nil
	default:
		return "", fmt.Errorf("CompareRelevance: model returned option %q, want A or B", out.Option)
	}
}

func (o *LLMOracle) EvaluateAnswer(ctx context.Context, rootTitle string, node *datatypes.KnowledgeNode, question, answer string) (int, error) {
	var out struct {
		Evaluation *int `json:"evaluation"`
	}
	if err := o.judge(ctx, "EvaluateAnswer", evaluateSystem,
		evaluatePrompt(rootTitle, node, question, answer), &out); err != nil {
		return 0, err
	}
	if out.Evaluation == nil {
		return 0, fmt.Errorf("EvaluateAnswer: model returned no evaluation field")
	}
	score := *out.Evaluation
	if score < 1 {
		score = 1
	}
	if score > 5 {
		score = 5
	}
	return score, nil
}

func (o *LLMOracle) JudgeCoverage(ctx context.Context, rootTitle string, history []datatypes.QARecord, node *datatypes.KnowledgeNode) (bool, error) {
	var out struct {
		IsSufficient *bool `json:"is_sufficient"`
	}
	if err := o.judge(ctx, "JudgeCoverage", coverageSystem,
		coveragePrompt(rootTitle, history, node), &out); err != nil {
		return false, err
	}
	if out.IsSufficient == nil {
		return false, fmt.Errorf("JudgeCoverage: model returned no is_sufficient field")
	}
	return *out.IsSufficient, nil
}

func (o *LLMOracle) JudgeCoverageBatch(ctx context.Context, history []datatypes.QARecord, candidates []*datatypes.KnowledgeNode) ([]string, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	var out struct {
		PrunedIDs []string `json:"pruned_ids"`
	}
	if err := o.judge(ctx, "JudgeCoverageBatch", pruneSystem,
		prunePrompt(history, candidates), &out); err != nil {
		return nil, err
	}
	// Keep only ids that were actually candidates; models occasionally
	// invent ids or echo the history.
	allowed := make(map[string]struct{}, len(candidates))
	for _, n := range candidates {
		allowed[n.ID] = struct{}{}
	}
	var ids []string
	for _, id := range out.PrunedIDs {
		if _, ok := allowed[id]; ok {
			ids = append(ids, id)
		} else {
			slog.Warn("Oracle pruned an id outside the candidate set", "id", id)
		}
	}
	return ids, nil
}

func (o *LLMOracle) GenerateQuestion(ctx context.Context, in GenerationInput) (string, error) {
	ctx, span := tracer.Start(ctx, "LLMOracle.GenerateQuestion")
	defer span.End()
	span.SetAttributes(
		attribute.String("interview.node_id", in.Node.ID),
		attribute.Int("interview.stage", in.Stage),
		attribute.Int("interview.fail_count", in.FailCount),
	)

	raw, err := o.client.Generate(ctx, generatePrompt(in), llm.GenerationParams{
		Temperature:  llm.Float32Ptr(0.7),
		MaxTokens:    llm.IntPtr(250),
		SystemPrompt: generateSystem(in.Stage, in.FailCount),
	})
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("GenerateQuestion: %w", err)
	}
	question := strings.TrimSpace(raw)
	if question == "" {
		return "", fmt.Errorf("GenerateQuestion: model returned empty question")
	}
	return question, nil
}

// stripFences removes a markdown code fence if the model wrapped its JSON
// in one despite JSON mode.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
