// Copyright (C) 2025 Elenchus AI (dev@elenchus.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package engine implements the interview orchestration state machine:
// answer evaluation, the three-stage Socratic escalation, and the
// traversal that decides which topic the learner faces next.
//
// The engine is stateless between turns. Each call takes the session's
// traversal state, runs exactly one turn against the oracle, and returns
// the updated state; on any error the input state remains the system of
// record and nothing is persisted.
package engine

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/elenchus-ai/elenchus/services/interview/datatypes"
	"github.com/elenchus-ai/elenchus/services/interview/oracle"
	"github.com/elenchus-ai/elenchus/services/interview/tree"
)

var tracer = otel.Tracer("elenchus.interview.engine")

// Config carries the orchestration thresholds.
type Config struct {
	// PassThreshold is the minimum score (inclusive) that counts as a
	// pass on the 1..5 scale. Default 3.
	PassThreshold int

	// MaxStage is the number of Socratic stages per node. Default 3.
	MaxStage int

	// MaxConsecFails caps remedial questions at one node+stage. When the
	// cap is hit the learner is advanced anyway, so a struggling learner
	// cannot be pinned on one topic forever. Default 3; negative means
	// unlimited remediation.
	MaxConsecFails int
}

func applyConfigDefaults(cfg *Config) {
	if cfg.PassThreshold == 0 {
		cfg.PassThreshold = 3
	}
	if cfg.MaxStage == 0 {
		cfg.MaxStage = 3
	}
	if cfg.MaxConsecFails == 0 {
		cfg.MaxConsecFails = 3
	}
}

// Orchestrator runs interview turns. Safe for concurrent use across
// sessions; turns within one session must be serialized by the caller.
type Orchestrator struct {
	oracle oracle.Oracle
	cfg    Config
}

func New(o oracle.Oracle, cfg Config) *Orchestrator {
	applyConfigDefaults(&cfg)
	return &Orchestrator{oracle: o, cfg: cfg}
}

// Turn is the input to one orchestrator invocation.
type Turn struct {
	Tree   *tree.Tree
	Chunks map[string]datatypes.ContentChunk

	// Answer is the learner's free-text answer this turn.
	Answer string

	// CurrentQuestion is the question Answer responds to. Empty means
	// this is the session's first turn: the answer is the learner's free
	// opening explanation and is routed, not evaluated.
	CurrentQuestion string

	State datatypes.TraversalState
}

// StepResult is the outcome of one turn.
type StepResult struct {
	Completed bool
	Question  string
	State     datatypes.TraversalState
}

// DetermineNextStep runs one interview turn.
//
// # Description
//
//	First turn: the root is cleared unconditionally (it frames the
//	material, it is never examined) and the opening answer steers the
//	descent toward the most relevant topic. Later turns: the answer is
//	scored; a pass exits remediation, advances the stage, or on a final-
//	stage pass clears the node and triggers skip-cascade, sibling-pruning
//	and the shift to the next topic. A fail stays put and asks a remedial
//	question at the same depth.
//
// # Outputs
//
//   - *StepResult: Completed, or the next question plus updated state.
//   - error: OracleError, NotFoundError or InvalidStateError. The input
//     state is untouched on error.
func (e *Orchestrator) DetermineNextStep(ctx context.Context, turn Turn) (*StepResult, error) {
	ctx, span := tracer.Start(ctx, "Orchestrator.DetermineNextStep")
	defer span.End()

	if err := e.validate(&turn); err != nil {
		span.RecordError(err)
		return nil, err
	}

	w := &walker{
		tree:      turn.Tree,
		rootTitle: turn.Tree.Root().Title,
		set:       newIDSet(turn.State.UnclearedNodeIDs),
		answer:    turn.Answer,
		history:   turn.State.History,
		oracle:    e.oracle,
	}

	var (
		next  *datatypes.KnowledgeNode
		stage = turn.State.SocraticStage
		fails = turn.State.ConsecFailCount
		err   error
	)

	if turn.CurrentQuestion == "" {
		// First turn. The root is never examined, but the opening
		// explanation enters the history unevaluated so coverage and
		// pruning judgments can see what the learner volunteered.
		root := turn.Tree.Root()
		w.set.remove(root.ID)
		stage, fails = 1, 0
		w.history = append(w.history, datatypes.QARecord{
			NodeID: root.ID,
			Answer: turn.Answer,
		})
		next, err = w.shiftNextNode(ctx, root)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
	} else {
		current, _ := turn.Tree.Node(turn.State.CurrentNodeID)
		score, oerr := e.oracle.EvaluateAnswer(ctx, w.rootTitle, current, turn.CurrentQuestion, turn.Answer)
		if oerr != nil {
			span.RecordError(oerr)
			return nil, &OracleError{Op: "EvaluateAnswer", Err: oerr}
		}
		span.SetAttributes(attribute.Int("interview.score", score))
		w.history = append(w.history, datatypes.QARecord{
			NodeID:   current.ID,
			Question: turn.CurrentQuestion,
			Answer:   turn.Answer,
			Stage:    stage,
			Score:    score,
		})

		pass := score >= e.cfg.PassThreshold
		forced := false
		if !pass {
			fails++
			if e.cfg.MaxConsecFails > 0 && fails >= e.cfg.MaxConsecFails {
				slog.Warn("Remedial budget exhausted, advancing anyway",
					"node_id", current.ID, "stage", stage, "fails", fails)
				pass, forced = true, true
			}
		}

		switch {
		case !pass:
			// Remedial question at the same node and stage.
			slog.Debug("Answer failed", "node_id", current.ID, "score", score, "fails", fails)
			next = current
		case !forced && turn.State.ConsecFailCount > 0:
			// Remedial loop exited. Same node, same stage.
			slog.Debug("Remedial pass", "node_id", current.ID, "score", score)
			fails = 0
			next = current
		case stage < e.cfg.MaxStage:
			slog.Debug("Stage advance", "node_id", current.ID, "score", score, "stage", stage+1)
			fails = 0
			stage++
			next = current
		default:
			// Final-stage pass: the node is cleared.
			slog.Debug("Node cleared", "node_id", current.ID, "score", score)
			fails = 0
			stage = 1
			w.set.remove(current.ID)

			pointer, cerr := w.skipCascade(ctx, current)
			if cerr != nil {
				span.RecordError(cerr)
				return nil, cerr
			}
			if perr := w.pruneSiblings(ctx, pointer); perr != nil {
				span.RecordError(perr)
				return nil, perr
			}
			next, err = w.shiftNextNode(ctx, pointer)
			if err != nil {
				span.RecordError(err)
				return nil, err
			}
		}
	}

	if next == nil {
		slog.Info("Interview completed, all topics cleared")
		return &StepResult{Completed: true, State: datatypes.TraversalState{
			UnclearedNodeIDs: w.set.slice(),
			History:          w.history,
		}}, nil
	}

	question, err := e.generateQuestion(ctx, turn, w, next, stage, fails)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	return &StepResult{
		Question: question,
		State: datatypes.TraversalState{
			CurrentNodeID:    next.ID,
			UnclearedNodeIDs: w.set.slice(),
			SocraticStage:    stage,
			ConsecFailCount:  fails,
			History:          w.history,
		},
	}, nil
}

func (e *Orchestrator) validate(turn *Turn) error {
	if turn.Tree == nil {
		return &InvalidStateError{Reason: "no tree"}
	}
	if turn.CurrentQuestion == "" {
		// First turn: seed the state from the tree.
		if turn.State.CurrentNodeID == "" {
			turn.State.CurrentNodeID = turn.Tree.Root().ID
		}
		if len(turn.State.UnclearedNodeIDs) == 0 {
			turn.State.UnclearedNodeIDs = turn.Tree.IDs()
		}
		if turn.State.SocraticStage == 0 {
			turn.State.SocraticStage = 1
		}
	}
	if _, ok := turn.Tree.Node(turn.State.CurrentNodeID); !ok {
		return &NotFoundError{Kind: "node", ID: turn.State.CurrentNodeID}
	}
	for _, id := range turn.State.UnclearedNodeIDs {
		if _, ok := turn.Tree.Node(id); !ok {
			return &InvalidStateError{Reason: fmt.Sprintf("uncleared id %q is not in the material's tree", id)}
		}
	}
	if s := turn.State.SocraticStage; turn.CurrentQuestion != "" && (s < 1 || s > e.cfg.MaxStage) {
		return &InvalidStateError{Reason: fmt.Sprintf("socratic stage %d out of range 1..%d", s, e.cfg.MaxStage)}
	}
	if turn.State.ConsecFailCount < 0 {
		return &InvalidStateError{Reason: "negative consecutive fail count"}
	}
	return nil
}

func (e *Orchestrator) generateQuestion(ctx context.Context, turn Turn, w *walker,
	node *datatypes.KnowledgeNode, stage, fails int) (string, error) {

	in := oracle.GenerationInput{
		Node:      node,
		RootTitle: turn.Tree.Root().Title,
		Stage:     stage,
		FailCount: fails,
	}
	for _, rec := range w.history {
		if rec.NodeID == node.ID {
			in.NodeHistory = append(in.NodeHistory, rec)
		}
	}
	// Leaf questions are grounded in the source excerpts: the material has
	// concrete statements there, so the question must not stray from them.
	if turn.Tree.IsLeaf(node.ID) {
		for _, cid := range node.ChunkIDs {
			if c, ok := turn.Chunks[cid]; ok {
				in.Excerpts = append(in.Excerpts, c)
			}
		}
	}

	question, err := e.oracle.GenerateQuestion(ctx, in)
	if err != nil {
		return "", &OracleError{Op: "GenerateQuestion", Err: err}
	}
	return question, nil
}
