// Copyright (C) 2025 Elenchus AI (dev@elenchus.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package observability

import (
	"context"
	"time"

	"github.com/elenchus-ai/elenchus/services/interview/datatypes"
	"github.com/elenchus-ai/elenchus/services/interview/oracle"
)

// InstrumentedOracle decorates any Oracle with call counters and latency
// histograms. The engine stays metrics-free; wiring happens at service
// construction.
type InstrumentedOracle struct {
	inner   oracle.Oracle
	metrics *InterviewMetrics
}

var _ oracle.Oracle = (*InstrumentedOracle)(nil)

func NewInstrumentedOracle(inner oracle.Oracle, metrics *InterviewMetrics) *InstrumentedOracle {
	return &InstrumentedOracle{inner: inner, metrics: metrics}
}

func (o *InstrumentedOracle) observe(op string, start time.Time, err error) {
	o.metrics.RecordOracleCall(op, time.Since(start).Seconds(), err)
}

func (o *InstrumentedOracle) CompareRelevance(ctx context.Context, answer string, optionA, optionB *datatypes.KnowledgeNode) (oracle.Choice, error) {
	start := time.Now()
	choice, err := o.inner.CompareRelevance(ctx, answer, optionA, optionB)
	o.observe("compare_relevance", start, err)
	o.metrics.TournamentComparisonsTotal.Inc()
	return choice, err
}

func (o *InstrumentedOracle) EvaluateAnswer(ctx context.Context, rootTitle string, node *datatypes.KnowledgeNode, question, answer string) (int, error) {
	start := time.Now()
	score, err := o.inner.EvaluateAnswer(ctx, rootTitle, node, question, answer)
	o.observe("evaluate_answer", start, err)
	return score, err
}

func (o *InstrumentedOracle) JudgeCoverage(ctx context.Context, rootTitle string, history []datatypes.QARecord, node *datatypes.KnowledgeNode) (bool, error) {
	start := time.Now()
	ok, err := o.inner.JudgeCoverage(ctx, rootTitle, history, node)
	o.observe("judge_coverage", start, err)
	return ok, err
}

func (o *InstrumentedOracle) JudgeCoverageBatch(ctx context.Context, history []datatypes.QARecord, candidates []*datatypes.KnowledgeNode) ([]string, error) {
	start := time.Now()
	ids, err := o.inner.JudgeCoverageBatch(ctx, history, candidates)
	o.observe("judge_coverage_batch", start, err)
	return ids, err
}

func (o *InstrumentedOracle) GenerateQuestion(ctx context.Context, in oracle.GenerationInput) (string, error) {
	start := time.Now()
	q, err := o.inner.GenerateQuestion(ctx, in)
	o.observe("generate_question", start, err)
	return q, err
}
