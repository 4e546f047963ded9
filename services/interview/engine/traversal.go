// Copyright (C) 2025 Elenchus AI (dev@elenchus.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import (
	"context"
	"log/slog"

	"github.com/elenchus-ai/elenchus/services/interview/datatypes"
	"github.com/elenchus-ai/elenchus/services/interview/oracle"
	"github.com/elenchus-ai/elenchus/services/interview/tree"
)

// idSet tracks uncleared node ids. Membership lives in the map; the
// original insertion order is kept so slice() emits ids in a stable order
// and only ever shrinks relative to the input.
type idSet struct {
	members map[string]struct{}
	order   []string
}

func newIDSet(ids []string) *idSet {
	s := &idSet{members: make(map[string]struct{}, len(ids)), order: ids}
	for _, id := range ids {
		s.members[id] = struct{}{}
	}
	return s
}

func (s *idSet) has(id string) bool {
	_, ok := s.members[id]
	return ok
}

func (s *idSet) remove(id string) {
	delete(s.members, id)
}

func (s *idSet) slice() []string {
	out := make([]string, 0, len(s.members))
	for _, id := range s.order {
		if s.has(id) {
			out = append(out, id)
		}
	}
	return out
}

// walker bundles the per-turn traversal context: the tree is read-only,
// the set shrinks as nodes clear, and the answer steers relevance calls.
type walker struct {
	tree      *tree.Tree
	rootTitle string
	set       *idSet
	answer    string
	history   []datatypes.QARecord
	oracle    oracle.Oracle
}

// shiftNextNode finds the next uncleared node to examine, starting from
// the node just vacated.
//
// Descend first: toward the uncleared child most relevant to the learner's
// answer. If nothing lies below, ascend, clearing ancestors whose subtrees
// are done, and descend from the first ancestor that still has work. The
// skip-cascade runs at every landing; if it leaves the pointer on a node
// that is itself cleared (a waypoint on the path to deeper work), the
// search continues from there. Returns nil when the whole tree is cleared.
func (w *walker) shiftNextNode(ctx context.Context, from *datatypes.KnowledgeNode) (*datatypes.KnowledgeNode, error) {
	for {
		landing, err := w.descend(ctx, from)
		if err != nil {
			return nil, err
		}
		if landing == nil {
			landing, err = w.ascend(ctx, from)
			if err != nil {
				return nil, err
			}
		}
		if landing == nil {
			return nil, nil
		}

		landing, err = w.skipCascade(ctx, landing)
		if err != nil {
			return nil, err
		}
		if w.set.has(landing.ID) {
			return landing, nil
		}
		// Cleared waypoint: the uncleared work is deeper down.
		from = landing
	}
}

// descend picks the most relevant node below from.
//
// One uncleared direct child: take it, no oracle call. Several candidates:
// run a relevance tournament over every uncleared descendant and map the
// winner back to the direct child whose subtree contains it. That child is
// returned even when it is itself cleared, so a pocket of uncleared nodes
// under a cleared child is still reachable. Returns nil when the subtree
// below from is fully cleared.
func (w *walker) descend(ctx context.Context, from *datatypes.KnowledgeNode) (*datatypes.KnowledgeNode, error) {
	var unclearedKids []*datatypes.KnowledgeNode
	for _, kid := range w.tree.Children(from.ID) {
		if w.set.has(kid.ID) {
			unclearedKids = append(unclearedKids, kid)
		}
	}
	if len(unclearedKids) == 1 {
		return unclearedKids[0], nil
	}

	var candidates []*datatypes.KnowledgeNode
	for _, d := range w.tree.Descendants(from.ID) {
		if w.set.has(d.ID) {
			candidates = append(candidates, d)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	winner := candidates[0]
	if len(candidates) > 1 {
		var err error
		winner, err = w.tournament(ctx, candidates)
		if err != nil {
			return nil, err
		}
	}
	if winner.ParentID == from.ID {
		return winner, nil
	}
	child, ok := w.tree.ChildContaining(from.ID, winner.ID)
	if !ok {
		// Structurally impossible: winner came from Descendants(from).
		return nil, &InvalidStateError{Reason: "tournament winner " + winner.ID + " is not below " + from.ID}
	}
	return child, nil
}

// tournament runs single-elimination relevance rounds until one candidate
// remains. Pairs are taken in slice order; an odd trailing candidate gets
// a bye. Pairwise comparison is the judgment primitive: asking the oracle
// to rank a full list at once is far less reliable.
func (w *walker) tournament(ctx context.Context, candidates []*datatypes.KnowledgeNode) (*datatypes.KnowledgeNode, error) {
	round := candidates
	for len(round) > 1 {
		next := make([]*datatypes.KnowledgeNode, 0, (len(round)+1)/2)
		for i := 0; i+1 < len(round); i += 2 {
			a, b := round[i], round[i+1]
			choice, err := w.oracle.CompareRelevance(ctx, w.answer, a, b)
			if err != nil {
				return nil, &OracleError{Op: "CompareRelevance", Err: err}
			}
			if choice == oracle.ChoiceA {
				next = append(next, a)
			} else {
				next = append(next, b)
			}
		}
		if len(round)%2 == 1 {
			next = append(next, round[len(round)-1])
		}
		round = next
	}
	return round[0], nil
}

// ascend walks up from a finished subtree. Every ancestor whose descendant
// subtree is fully cleared is cleared itself; the climb stops at the first
// ancestor with uncleared work below it, and descent resumes from there.
// Returns nil when the root's own subtree is done.
func (w *walker) ascend(ctx context.Context, from *datatypes.KnowledgeNode) (*datatypes.KnowledgeNode, error) {
	cur := from
	for {
		parent, ok := w.tree.Parent(cur.ID)
		if !ok {
			// cur is the root. The root is cleared on turn one; finding it
			// still in the set means the bookkeeping broke somewhere, so
			// complete rather than loop.
			if w.set.has(cur.ID) {
				slog.Error("Root still marked uncleared during ascent, forcing completion",
					"node_id", cur.ID, "remaining", len(w.set.slice()))
				w.set.remove(cur.ID)
			}
			return nil, nil
		}
		if w.subtreeCleared(parent) {
			if parent.ParentID == "" && w.set.has(parent.ID) {
				slog.Error("Root still marked uncleared during ascent, forcing completion",
					"node_id", parent.ID)
			}
			w.set.remove(parent.ID)
			cur = parent
			continue
		}
		return w.descend(ctx, parent)
	}
}

// subtreeCleared reports whether no descendant of n remains uncleared.
// n itself is not considered.
func (w *walker) subtreeCleared(n *datatypes.KnowledgeNode) bool {
	for _, d := range w.tree.Descendants(n.ID) {
		if w.set.has(d.ID) {
			return false
		}
	}
	return true
}

// skipCascade advances the pointer through a chain of single uncleared
// children the learner has already covered in conversation. Each covered
// child is cleared and becomes the new pointer; the cascade stops at zero
// or several uncleared children, or at the first not-covered judgment.
func (w *walker) skipCascade(ctx context.Context, pointer *datatypes.KnowledgeNode) (*datatypes.KnowledgeNode, error) {
	for {
		var unclearedKids []*datatypes.KnowledgeNode
		for _, kid := range w.tree.Children(pointer.ID) {
			if w.set.has(kid.ID) {
				unclearedKids = append(unclearedKids, kid)
			}
		}
		if len(unclearedKids) != 1 {
			return pointer, nil
		}
		child := unclearedKids[0]
		covered, err := w.oracle.JudgeCoverage(ctx, w.rootTitle, w.history, child)
		if err != nil {
			return nil, &OracleError{Op: "JudgeCoverage", Err: err}
		}
		if !covered {
			return pointer, nil
		}
		slog.Debug("Skipping already-covered topic", "node_id", child.ID, "title", child.Title)
		w.set.remove(child.ID)
		pointer = child
	}
}

// pruneSiblings bulk-clears uncleared leaf siblings of a just-cleared node
// that the learner's history already covers. One batch judgment for all
// candidates; only ids that were actually candidates are honored.
func (w *walker) pruneSiblings(ctx context.Context, node *datatypes.KnowledgeNode) error {
	var candidates []*datatypes.KnowledgeNode
	for _, sib := range w.tree.Siblings(node.ID) {
		if w.set.has(sib.ID) && w.tree.IsLeaf(sib.ID) {
			candidates = append(candidates, sib)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	pruned, err := w.oracle.JudgeCoverageBatch(ctx, w.history, candidates)
	if err != nil {
		return &OracleError{Op: "JudgeCoverageBatch", Err: err}
	}
	allowed := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		allowed[c.ID] = struct{}{}
	}
	for _, id := range pruned {
		if _, ok := allowed[id]; !ok {
			continue
		}
		slog.Debug("Pruning covered sibling topic", "node_id", id)
		w.set.remove(id)
	}
	return nil
}
