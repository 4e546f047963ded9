// Copyright (C) 2025 Elenchus AI (dev@elenchus.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package oracle is the judgment layer of the interview engine. Every
// decision that needs semantic understanding of the learner's words goes
// through the Oracle interface; the traversal code treats its answers as
// ground truth and contains no language understanding of its own.
package oracle

import (
	"context"

	"github.com/elenchus-ai/elenchus/services/interview/datatypes"
)

// Choice is the outcome of a pairwise relevance comparison.
type Choice string

const (
	ChoiceA Choice = "A"
	ChoiceB Choice = "B"
)

// GenerationInput carries everything question generation may draw on.
type GenerationInput struct {
	Node      *datatypes.KnowledgeNode
	RootTitle string

	// Stage is the Socratic escalation stage, 1..3.
	Stage int

	// FailCount is the consecutive failures on this node at this stage.
	// Nonzero means the previous question must be rephrased or simplified.
	FailCount int

	// NodeHistory is the prior exchanges on this node only.
	NodeHistory []datatypes.QARecord

	// Excerpts are the source chunks linked to the node. For leaf nodes
	// the generated question must be answerable from these alone.
	Excerpts []datatypes.ContentChunk
}

// Oracle abstracts the five judgment operations the engine needs.
//
// # Description
//
//	Implementations must be deterministic enough to trust: judgment
//	operations run the model at temperature zero, generation runs warm.
//	Every method returns an error rather than a guess when the backend
//	fails or produces unparseable output; the engine aborts the turn on
//	any oracle error and persists nothing.
//
// # Limitations
//
//   - No retry logic here or in implementations. Callers decide.
type Oracle interface {
	// CompareRelevance decides which of two topics an answer speaks to
	// more directly.
	CompareRelevance(ctx context.Context, answer string, optionA, optionB *datatypes.KnowledgeNode) (Choice, error)

	// EvaluateAnswer scores an answer against a topic on a 1..5 scale.
	// rootTitle names the material as a whole and sets the expert persona.
	EvaluateAnswer(ctx context.Context, rootTitle string, node *datatypes.KnowledgeNode, question, answer string) (int, error)

	// JudgeCoverage reports whether the conversation so far already
	// demonstrates understanding of the topic.
	JudgeCoverage(ctx context.Context, rootTitle string, history []datatypes.QARecord, node *datatypes.KnowledgeNode) (bool, error)

	// JudgeCoverageBatch returns the ids of the candidate topics already
	// covered by the conversation. Returned ids not in candidates are
	// discarded by the caller.
	JudgeCoverageBatch(ctx context.Context, history []datatypes.QARecord, candidates []*datatypes.KnowledgeNode) ([]string, error)

	// GenerateQuestion produces exactly one question for the node at the
	// given stage.
	GenerateQuestion(ctx context.Context, in GenerationInput) (string, error)
}
