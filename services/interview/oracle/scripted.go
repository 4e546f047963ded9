// Copyright (C) 2025 Elenchus AI (dev@elenchus.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package oracle

import (
	"context"
	"fmt"
	"sync"

	"github.com/elenchus-ai/elenchus/services/interview/datatypes"
)

// ScriptedOracle is a deterministic Oracle for tests. Each operation has a
// pluggable func; unset funcs fall back to fixed defaults (prefer A, score
// 5, nothing covered). Every call is appended to Calls.
type ScriptedOracle struct {
	CompareFn  func(answer string, a, b *datatypes.KnowledgeNode) (Choice, error)
	ScoreFn    func(node *datatypes.KnowledgeNode, question, answer string) (int, error)
	CoverFn    func(history []datatypes.QARecord, node *datatypes.KnowledgeNode) (bool, error)
	BatchFn    func(history []datatypes.QARecord, candidates []*datatypes.KnowledgeNode) ([]string, error)
	QuestionFn func(in GenerationInput) (string, error)

	mu    sync.Mutex
	Calls []string
}

var _ Oracle = (*ScriptedOracle)(nil)

func (s *ScriptedOracle) record(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = append(s.Calls, fmt.Sprintf(format, args...))
}

// CallCount returns how many recorded calls have the given prefix.
func (s *ScriptedOracle) CallCount(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.Calls {
		if len(c) >= len(prefix) && c[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

func (s *ScriptedOracle) CompareRelevance(_ context.Context, answer string, a, b *datatypes.KnowledgeNode) (Choice, error) {
	s.record("compare %s vs %s", a.ID, b.ID)
	if s.CompareFn != nil {
		return s.CompareFn(answer, a, b)
	}
	return ChoiceA, nil
}

func (s *ScriptedOracle) EvaluateAnswer(_ context.Context, _ string, node *datatypes.KnowledgeNode, question, answer string) (int, error) {
	s.record("evaluate %s", node.ID)
	if s.ScoreFn != nil {
		return s.ScoreFn(node, question, answer)
	}
	return 5, nil
}

func (s *ScriptedOracle) JudgeCoverage(_ context.Context, _ string, history []datatypes.QARecord, node *datatypes.KnowledgeNode) (bool, error) {
	s.record("cover %s", node.ID)
	if s.CoverFn != nil {
		return s.CoverFn(history, node)
	}
	return false, nil
}

func (s *ScriptedOracle) JudgeCoverageBatch(_ context.Context, history []datatypes.QARecord, candidates []*datatypes.KnowledgeNode) ([]string, error) {
	ids := make([]string, 0, len(candidates))
	for _, n := range candidates {
		ids = append(ids, n.ID)
	}
	s.record("batch %v", ids)
	if s.BatchFn != nil {
		return s.BatchFn(history, candidates)
	}
	return nil, nil
}

func (s *ScriptedOracle) GenerateQuestion(_ context.Context, in GenerationInput) (string, error) {
	s.record("question %s stage=%d fails=%d", in.Node.ID, in.Stage, in.FailCount)
	if s.QuestionFn != nil {
		return s.QuestionFn(in)
	}
	return fmt.Sprintf("Tell me about %s (stage %d).", in.Node.Title, in.Stage), nil
}
