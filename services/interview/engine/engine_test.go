// Copyright (C) 2025 Elenchus AI (dev@elenchus.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elenchus-ai/elenchus/services/interview/datatypes"
	"github.com/elenchus-ai/elenchus/services/interview/oracle"
	"github.com/elenchus-ai/elenchus/services/interview/tree"
)

// newTestTree builds the fixture used across engine tests:
//
//	root
//	├── a (Paging)
//	│   ├── a1 (Page Tables, leaf, chunk c1)
//	│   └── a2 (TLBs, leaf)
//	└── b (Segmentation)
//	    └── b1 (Segment Faults, leaf)
func newTestTree(t *testing.T) (*tree.Tree, map[string]datatypes.ContentChunk) {
	t.Helper()
	m := &datatypes.Material{
		ID:     "mat-1",
		Title:  "Operating Systems Week 4",
		RootID: "root",
		Nodes: []datatypes.KnowledgeNode{
			{ID: "root", Title: "Virtual Memory", Level: 0, Order: 0},
			{ID: "a", Title: "Paging", Level: 1, Order: 0, ParentID: "root"},
			{ID: "b", Title: "Segmentation", Level: 1, Order: 1, ParentID: "root"},
			{ID: "a1", Title: "Page Tables", Level: 2, Order: 0, ParentID: "a", ChunkIDs: []string{"c1"}},
			{ID: "a2", Title: "TLBs", Level: 2, Order: 1, ParentID: "a"},
			{ID: "b1", Title: "Segment Faults", Level: 2, Order: 0, ParentID: "b"},
		},
		Chunks: []datatypes.ContentChunk{
			{ID: "c1", Content: "A page table maps virtual page numbers to frames.", Page: 12},
		},
	}
	tr, err := tree.New(m)
	require.NoError(t, err)
	return tr, m.ChunkByID()
}

func allIDs(tr *tree.Tree) []string { return tr.IDs() }

func newTurn(tr *tree.Tree, chunks map[string]datatypes.ContentChunk,
	answer, question string, state datatypes.TraversalState) Turn {
	return Turn{Tree: tr, Chunks: chunks, Answer: answer, CurrentQuestion: question, State: state}
}

func TestFirstTurn_RootPrecleared(t *testing.T) {
	tr, chunks := newTestTree(t)
	scripted := &oracle.ScriptedOracle{}
	orch := New(scripted, Config{})

	res, err := orch.DetermineNextStep(context.Background(),
		newTurn(tr, chunks, "I know a lot about paging.", "", datatypes.TraversalState{}))
	require.NoError(t, err)

	assert.False(t, res.Completed)
	assert.NotContains(t, res.State.UnclearedNodeIDs, "root")
	assert.Equal(t, 1, res.State.SocraticStage)
	assert.Equal(t, 0, res.State.ConsecFailCount)
	assert.NotEmpty(t, res.Question)
	// The opening answer is routed, not evaluated, but it is kept in the
	// history as an unscored record against the root.
	assert.Zero(t, scripted.CallCount("evaluate"))
	require.Len(t, res.State.History, 1)
	rec := res.State.History[0]
	assert.Equal(t, "root", rec.NodeID)
	assert.Empty(t, rec.Question)
	assert.Equal(t, "I know a lot about paging.", rec.Answer)
	assert.Zero(t, rec.Score)
}

func TestFirstTurn_OpeningAnswerVisibleToCoverageJudgments(t *testing.T) {
	// root -> A -> B, so the first turn runs a skip-cascade coverage
	// judgment on B. The learner's opening explanation must be in the
	// history that judgment sees.
	m := &datatypes.Material{
		ID: "mat-chain", Title: "Chain", RootID: "root",
		Nodes: []datatypes.KnowledgeNode{
			{ID: "root", Title: "Root", Level: 0},
			{ID: "A", Title: "First", Level: 1, ParentID: "root"},
			{ID: "B", Title: "Second", Level: 2, ParentID: "A"},
		},
	}
	tr, err := tree.New(m)
	require.NoError(t, err)

	var judged [][]datatypes.QARecord
	scripted := &oracle.ScriptedOracle{
		CoverFn: func(history []datatypes.QARecord, _ *datatypes.KnowledgeNode) (bool, error) {
			judged = append(judged, history)
			return false, nil
		},
	}
	orch := New(scripted, Config{})

	res, err := orch.DetermineNextStep(context.Background(),
		newTurn(tr, nil, "Here is everything I know up front.", "", datatypes.TraversalState{}))
	require.NoError(t, err)

	require.NotEmpty(t, judged, "expected a coverage judgment on the first turn")
	require.Len(t, judged[0], 1)
	assert.Equal(t, "root", judged[0][0].NodeID)
	assert.Equal(t, "Here is everything I know up front.", judged[0][0].Answer)

	require.Len(t, res.State.History, 1)
	assert.Equal(t, "Here is everything I know up front.", res.State.History[0].Answer)
}

func TestFirstTurn_SingleChildDescendsWithoutTournament(t *testing.T) {
	// root -> A -> B, each the only child of its parent.
	m := &datatypes.Material{
		ID: "mat-chain", Title: "Chain", RootID: "root",
		Nodes: []datatypes.KnowledgeNode{
			{ID: "root", Title: "Root", Level: 0},
			{ID: "A", Title: "First", Level: 1, ParentID: "root"},
			{ID: "B", Title: "Second", Level: 2, ParentID: "A"},
		},
	}
	tr, err := tree.New(m)
	require.NoError(t, err)

	scripted := &oracle.ScriptedOracle{}
	orch := New(scripted, Config{})

	res, err := orch.DetermineNextStep(context.Background(),
		newTurn(tr, nil, "let me explain", "", datatypes.TraversalState{}))
	require.NoError(t, err)

	assert.Equal(t, "A", res.State.CurrentNodeID)
	assert.ElementsMatch(t, []string{"A", "B"}, res.State.UnclearedNodeIDs)
	assert.Zero(t, scripted.CallCount("compare"), "single uncleared child needs no tournament")
}

func TestStageEscalationOnPass(t *testing.T) {
	tr, chunks := newTestTree(t)
	scripted := &oracle.ScriptedOracle{
		ScoreFn: func(*datatypes.KnowledgeNode, string, string) (int, error) { return 4, nil },
	}
	orch := New(scripted, Config{})

	res, err := orch.DetermineNextStep(context.Background(), newTurn(tr, chunks,
		"pages map to frames", "What is paging?", datatypes.TraversalState{
			CurrentNodeID:    "a",
			UnclearedNodeIDs: []string{"a", "b", "a1", "a2", "b1"},
			SocraticStage:    1,
		}))
	require.NoError(t, err)

	assert.Equal(t, "a", res.State.CurrentNodeID)
	assert.Equal(t, 2, res.State.SocraticStage)
	assert.Equal(t, 0, res.State.ConsecFailCount)

	require.Len(t, res.State.History, 1)
	rec := res.State.History[0]
	assert.Equal(t, "a", rec.NodeID)
	assert.Equal(t, "What is paging?", rec.Question)
	assert.Equal(t, 4, rec.Score)
	assert.Equal(t, 1, rec.Stage)
}

func TestPassThresholdIsInclusive(t *testing.T) {
	tr, chunks := newTestTree(t)
	scripted := &oracle.ScriptedOracle{
		ScoreFn: func(*datatypes.KnowledgeNode, string, string) (int, error) { return 3, nil },
	}
	orch := New(scripted, Config{})

	res, err := orch.DetermineNextStep(context.Background(), newTurn(tr, chunks,
		"an answer", "a question", datatypes.TraversalState{
			CurrentNodeID:    "a",
			UnclearedNodeIDs: []string{"a", "b", "a1", "a2", "b1"},
			SocraticStage:    1,
		}))
	require.NoError(t, err)
	assert.Equal(t, 2, res.State.SocraticStage, "score of exactly 3 counts as a pass")
}

func TestRemedialLoop(t *testing.T) {
	tr, chunks := newTestTree(t)
	scripted := &oracle.ScriptedOracle{
		ScoreFn: func(*datatypes.KnowledgeNode, string, string) (int, error) { return 2, nil },
	}
	orch := New(scripted, Config{})

	res, err := orch.DetermineNextStep(context.Background(), newTurn(tr, chunks,
		"not sure", "Why do we page?", datatypes.TraversalState{
			CurrentNodeID:    "a",
			UnclearedNodeIDs: []string{"a", "b", "a1", "a2", "b1"},
			SocraticStage:    2,
		}))
	require.NoError(t, err)

	assert.Equal(t, "a", res.State.CurrentNodeID)
	assert.Equal(t, 2, res.State.SocraticStage, "stage unchanged on fail")
	assert.Equal(t, 1, res.State.ConsecFailCount)
	assert.NotEmpty(t, res.Question)
	assert.Equal(t, 1, scripted.CallCount("question a stage=2 fails=1"))
}

func TestRemedialPassExitsLoopAtSameStage(t *testing.T) {
	tr, chunks := newTestTree(t)
	scripted := &oracle.ScriptedOracle{
		ScoreFn: func(*datatypes.KnowledgeNode, string, string) (int, error) { return 3, nil },
	}
	orch := New(scripted, Config{})

	res, err := orch.DetermineNextStep(context.Background(), newTurn(tr, chunks,
		"better answer", "Why do we page?", datatypes.TraversalState{
			CurrentNodeID:    "a",
			UnclearedNodeIDs: []string{"a", "b", "a1", "a2", "b1"},
			SocraticStage:    2,
			ConsecFailCount:  2,
		}))
	require.NoError(t, err)

	assert.Equal(t, "a", res.State.CurrentNodeID)
	assert.Equal(t, 2, res.State.SocraticStage, "remedial pass stays at the same stage")
	assert.Equal(t, 0, res.State.ConsecFailCount)
}

func TestFinalStagePassClearsNodeAndPrunesSibling(t *testing.T) {
	tr, chunks := newTestTree(t)
	scripted := &oracle.ScriptedOracle{
		ScoreFn: func(*datatypes.KnowledgeNode, string, string) (int, error) { return 5, nil },
		BatchFn: func(_ []datatypes.QARecord, candidates []*datatypes.KnowledgeNode) ([]string, error) {
			return []string{"a2"}, nil
		},
	}
	orch := New(scripted, Config{})

	res, err := orch.DetermineNextStep(context.Background(), newTurn(tr, chunks,
		"page tables and TLBs work together", "Apply page tables.", datatypes.TraversalState{
			CurrentNodeID:    "a1",
			UnclearedNodeIDs: []string{"a", "b", "a1", "a2", "b1"},
			SocraticStage:    3,
		}))
	require.NoError(t, err)

	// a1 cleared by the pass, a2 pruned in the same turn, a cleared during
	// ascent once its subtree finished. Traversal lands on b.
	assert.NotContains(t, res.State.UnclearedNodeIDs, "a1")
	assert.NotContains(t, res.State.UnclearedNodeIDs, "a2")
	assert.NotContains(t, res.State.UnclearedNodeIDs, "a")
	assert.ElementsMatch(t, []string{"b", "b1"}, res.State.UnclearedNodeIDs)
	assert.Equal(t, "b", res.State.CurrentNodeID)
	assert.Equal(t, 1, res.State.SocraticStage, "stage resets after a node change")
	assert.Equal(t, 0, res.State.ConsecFailCount)
}

func TestFinalNodeClearedCompletesInterview(t *testing.T) {
	tr, chunks := newTestTree(t)
	scripted := &oracle.ScriptedOracle{
		ScoreFn: func(*datatypes.KnowledgeNode, string, string) (int, error) { return 5, nil },
	}
	orch := New(scripted, Config{})

	res, err := orch.DetermineNextStep(context.Background(), newTurn(tr, chunks,
		"a segment fault is an out-of-bounds access", "Apply segment faults.", datatypes.TraversalState{
			CurrentNodeID:    "b1",
			UnclearedNodeIDs: []string{"b1"},
			SocraticStage:    3,
		}))
	require.NoError(t, err)

	assert.True(t, res.Completed)
	assert.Empty(t, res.Question)
	assert.Empty(t, res.State.UnclearedNodeIDs)
}

func TestForcedAdvanceWhenRemedialBudgetExhausted(t *testing.T) {
	tr, chunks := newTestTree(t)
	scripted := &oracle.ScriptedOracle{
		ScoreFn: func(*datatypes.KnowledgeNode, string, string) (int, error) { return 1, nil },
	}
	orch := New(scripted, Config{MaxConsecFails: 2})

	res, err := orch.DetermineNextStep(context.Background(), newTurn(tr, chunks,
		"still wrong", "What is paging?", datatypes.TraversalState{
			CurrentNodeID:    "a",
			UnclearedNodeIDs: []string{"a", "b", "a1", "a2", "b1"},
			SocraticStage:    1,
			ConsecFailCount:  1,
		}))
	require.NoError(t, err)

	assert.Equal(t, "a", res.State.CurrentNodeID)
	assert.Equal(t, 2, res.State.SocraticStage, "budget exhaustion advances the stage")
	assert.Equal(t, 0, res.State.ConsecFailCount)
}

func TestUnlimitedRemediationWhenConfigured(t *testing.T) {
	tr, chunks := newTestTree(t)
	scripted := &oracle.ScriptedOracle{
		ScoreFn: func(*datatypes.KnowledgeNode, string, string) (int, error) { return 1, nil },
	}
	orch := New(scripted, Config{MaxConsecFails: -1})

	state := datatypes.TraversalState{
		CurrentNodeID:    "a",
		UnclearedNodeIDs: []string{"a", "b", "a1", "a2", "b1"},
		SocraticStage:    1,
		ConsecFailCount:  7,
	}
	res, err := orch.DetermineNextStep(context.Background(),
		newTurn(tr, chunks, "wrong again", "What is paging?", state))
	require.NoError(t, err)
	assert.Equal(t, 8, res.State.ConsecFailCount)
	assert.Equal(t, 1, res.State.SocraticStage)
}

func TestOracleFailureAbortsTurn(t *testing.T) {
	tr, chunks := newTestTree(t)
	scripted := &oracle.ScriptedOracle{
		ScoreFn: func(*datatypes.KnowledgeNode, string, string) (int, error) {
			return 0, errors.New("model timeout")
		},
	}
	orch := New(scripted, Config{})

	before := []string{"a", "b", "a1", "a2", "b1"}
	_, err := orch.DetermineNextStep(context.Background(), newTurn(tr, chunks,
		"an answer", "a question", datatypes.TraversalState{
			CurrentNodeID:    "a",
			UnclearedNodeIDs: before,
			SocraticStage:    1,
		}))
	require.Error(t, err)
	assert.True(t, IsOracleError(err))
	assert.Equal(t, []string{"a", "b", "a1", "a2", "b1"}, before, "input state untouched on failure")
}

func TestUnknownCurrentNodeRejected(t *testing.T) {
	tr, chunks := newTestTree(t)
	orch := New(&oracle.ScriptedOracle{}, Config{})

	_, err := orch.DetermineNextStep(context.Background(), newTurn(tr, chunks,
		"an answer", "a question", datatypes.TraversalState{
			CurrentNodeID:    "ghost",
			UnclearedNodeIDs: []string{"a"},
			SocraticStage:    1,
		}))
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestForeignUnclearedIDRejected(t *testing.T) {
	tr, chunks := newTestTree(t)
	orch := New(&oracle.ScriptedOracle{}, Config{})

	_, err := orch.DetermineNextStep(context.Background(), newTurn(tr, chunks,
		"an answer", "a question", datatypes.TraversalState{
			CurrentNodeID:    "a",
			UnclearedNodeIDs: []string{"a", "other-material-node"},
			SocraticStage:    1,
		}))
	require.Error(t, err)
	assert.True(t, IsInvalidState(err))
}

func TestStageOutOfRangeRejected(t *testing.T) {
	tr, chunks := newTestTree(t)
	orch := New(&oracle.ScriptedOracle{}, Config{})

	_, err := orch.DetermineNextStep(context.Background(), newTurn(tr, chunks,
		"an answer", "a question", datatypes.TraversalState{
			CurrentNodeID:    "a",
			UnclearedNodeIDs: []string{"a"},
			SocraticStage:    4,
		}))
	require.Error(t, err)
	assert.True(t, IsInvalidState(err))
}

func TestLeafQuestionsConstrainedToLinkedExcerpts(t *testing.T) {
	tr, chunks := newTestTree(t)
	var leafInputs []oracle.GenerationInput
	scripted := &oracle.ScriptedOracle{
		ScoreFn: func(*datatypes.KnowledgeNode, string, string) (int, error) { return 2, nil },
		QuestionFn: func(in oracle.GenerationInput) (string, error) {
			leafInputs = append(leafInputs, in)
			return "q", nil
		},
	}
	orch := New(scripted, Config{})

	// Leaf with a linked chunk: excerpts must be exactly that chunk.
	_, err := orch.DetermineNextStep(context.Background(), newTurn(tr, chunks,
		"hmm", "What is a page table?", datatypes.TraversalState{
			CurrentNodeID:    "a1",
			UnclearedNodeIDs: []string{"a1"},
			SocraticStage:    1,
		}))
	require.NoError(t, err)
	require.Len(t, leafInputs, 1)
	require.Len(t, leafInputs[0].Excerpts, 1)
	assert.Equal(t, "c1", leafInputs[0].Excerpts[0].ID)

	// Internal node: no excerpt grounding even if descendants link chunks.
	leafInputs = nil
	_, err = orch.DetermineNextStep(context.Background(), newTurn(tr, chunks,
		"hmm", "What is paging?", datatypes.TraversalState{
			CurrentNodeID:    "a",
			UnclearedNodeIDs: []string{"a", "a1"},
			SocraticStage:    1,
		}))
	require.NoError(t, err)
	require.Len(t, leafInputs, 1)
	assert.Empty(t, leafInputs[0].Excerpts)
}

// TestInterviewTermination drives a whole session with a pass-everything
// oracle and checks the global properties: the uncleared set only ever
// shrinks, the stage stays in range, and completion arrives within the
// stage budget times the node count.
func TestInterviewTermination(t *testing.T) {
	tr, chunks := newTestTree(t)
	scripted := &oracle.ScriptedOracle{}
	orch := New(scripted, Config{})

	res, err := orch.DetermineNextStep(context.Background(),
		newTurn(tr, chunks, "here is what I know", "", datatypes.TraversalState{}))
	require.NoError(t, err)

	maxTurns := tr.Len() * 3
	turns := 0
	for !res.Completed {
		turns++
		require.LessOrEqual(t, turns, maxTurns, "interview did not terminate")

		before := len(res.State.UnclearedNodeIDs)
		assert.GreaterOrEqual(t, res.State.SocraticStage, 1)
		assert.LessOrEqual(t, res.State.SocraticStage, 3)

		res, err = orch.DetermineNextStep(context.Background(), newTurn(tr, chunks,
			"a thorough answer", res.Question, res.State))
		require.NoError(t, err)
		assert.LessOrEqual(t, len(res.State.UnclearedNodeIDs), before, "uncleared set grew")
	}
	assert.Empty(t, res.State.UnclearedNodeIDs)
}

// TestInterviewTerminationUnderConstantFailure exercises the remedial
// budget: even a learner who never passes reaches completion.
func TestInterviewTerminationUnderConstantFailure(t *testing.T) {
	tr, chunks := newTestTree(t)
	scripted := &oracle.ScriptedOracle{
		ScoreFn: func(*datatypes.KnowledgeNode, string, string) (int, error) { return 1, nil },
	}
	orch := New(scripted, Config{MaxConsecFails: 2})

	res, err := orch.DetermineNextStep(context.Background(),
		newTurn(tr, chunks, "um", "", datatypes.TraversalState{}))
	require.NoError(t, err)

	maxTurns := tr.Len() * 3 * 2
	turns := 0
	for !res.Completed {
		turns++
		require.LessOrEqual(t, turns, maxTurns, "interview did not terminate under constant failure")
		res, err = orch.DetermineNextStep(context.Background(),
			newTurn(tr, chunks, "um", res.Question, res.State))
		require.NoError(t, err)
	}
}
