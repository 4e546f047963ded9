// Copyright (C) 2025 Elenchus AI (dev@elenchus.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package tree provides an immutable index over a material's knowledge
// nodes: O(1) lookup plus the parent/children/descendant queries the
// traversal algorithms need.
//
// # Invariants enforced at build time
//
//   - exactly one root (empty parent id), matching the material's root_id
//   - every parent id resolves, the tree is acyclic and connected
//   - level(child) = level(parent) + 1, root level 0
//   - sibling orders are unique
//   - chunk references resolve to chunks shipped with the material
//
// # Thread Safety
//
// A Tree is read-only after New returns and safe for concurrent use.
package tree

import (
	"fmt"
	"sort"

	"github.com/elenchus-ai/elenchus/services/interview/datatypes"
)

// Tree is the indexed form of a material's knowledge tree.
type Tree struct {
	rootID   string
	nodes    map[string]*datatypes.KnowledgeNode
	children map[string][]string
}

// New builds and validates the index for a material.
//
// # Inputs
//
//   - m: A registered material with at least one node.
//
// # Outputs
//
//   - *Tree: Ready-to-query index.
//   - error: Non-nil if any structural invariant is violated.
func New(m *datatypes.Material) (*Tree, error) {
	t := &Tree{
		nodes:    make(map[string]*datatypes.KnowledgeNode, len(m.Nodes)),
		children: make(map[string][]string),
	}

	chunks := make(map[string]struct{}, len(m.Chunks))
	for _, c := range m.Chunks {
		chunks[c.ID] = struct{}{}
	}

	for i := range m.Nodes {
		n := &m.Nodes[i]
		if _, dup := t.nodes[n.ID]; dup {
			return nil, fmt.Errorf("duplicate node id %q", n.ID)
		}
		t.nodes[n.ID] = n
		if n.ParentID == "" {
			if t.rootID != "" {
				return nil, fmt.Errorf("multiple roots: %q and %q", t.rootID, n.ID)
			}
			t.rootID = n.ID
		}
		for _, cid := range n.ChunkIDs {
			if _, ok := chunks[cid]; !ok {
				return nil, fmt.Errorf("node %q references unknown chunk %q", n.ID, cid)
			}
		}
	}

	if t.rootID == "" {
		return nil, fmt.Errorf("no root node (every node has a parent)")
	}
	if m.RootID != "" && m.RootID != t.rootID {
		return nil, fmt.Errorf("material root_id %q does not match tree root %q", m.RootID, t.rootID)
	}
	if root := t.nodes[t.rootID]; root.Level != 0 {
		return nil, fmt.Errorf("root %q has level %d, want 0", t.rootID, root.Level)
	}

	for _, n := range t.nodes {
		if n.ParentID == "" {
			continue
		}
		parent, ok := t.nodes[n.ParentID]
		if !ok {
			return nil, fmt.Errorf("node %q references unknown parent %q", n.ID, n.ParentID)
		}
		if n.Level != parent.Level+1 {
			return nil, fmt.Errorf("node %q has level %d, parent %q has level %d",
				n.ID, n.Level, parent.ID, parent.Level)
		}
		t.children[n.ParentID] = append(t.children[n.ParentID], n.ID)
	}

	for pid, kids := range t.children {
		sort.Slice(kids, func(i, j int) bool {
			a, b := t.nodes[kids[i]], t.nodes[kids[j]]
			if a.Order != b.Order {
				return a.Order < b.Order
			}
			return a.ID < b.ID
		})
		seen := make(map[int]string, len(kids))
		for _, kid := range kids {
			ord := t.nodes[kid].Order
			if other, dup := seen[ord]; dup {
				return nil, fmt.Errorf("children of %q share order %d (%q, %q)", pid, ord, other, kid)
			}
			seen[ord] = kid
		}
	}

	// Connectivity doubles as the acyclicity check: with exactly one root
	// and single parents, reaching every node from the root rules out
	// detached cycles.
	if reached := len(t.Descendants(t.rootID)) + 1; reached != len(t.nodes) {
		return nil, fmt.Errorf("tree is not connected: %d of %d nodes reachable from root",
			reached, len(t.nodes))
	}

	return t, nil
}

// Root returns the root node.
func (t *Tree) Root() *datatypes.KnowledgeNode {
	return t.nodes[t.rootID]
}

// Node returns the node with the given id, if present.
func (t *Tree) Node(id string) (*datatypes.KnowledgeNode, bool) {
	n, ok := t.nodes[id]
	return n, ok
}

// Len returns the total node count, root included.
func (t *Tree) Len() int {
	return len(t.nodes)
}

// IDs returns every node id in deterministic preorder.
func (t *Tree) IDs() []string {
	out := make([]string, 0, len(t.nodes))
	out = append(out, t.rootID)
	for _, d := range t.Descendants(t.rootID) {
		out = append(out, d.ID)
	}
	return out
}

// Children returns the direct children of id in sibling order.
func (t *Tree) Children(id string) []*datatypes.KnowledgeNode {
	kids := t.children[id]
	out := make([]*datatypes.KnowledgeNode, 0, len(kids))
	for _, kid := range kids {
		out = append(out, t.nodes[kid])
	}
	return out
}

// Parent returns the parent of id, or false for the root.
func (t *Tree) Parent(id string) (*datatypes.KnowledgeNode, bool) {
	n, ok := t.nodes[id]
	if !ok || n.ParentID == "" {
		return nil, false
	}
	return t.nodes[n.ParentID], true
}

// IsLeaf reports whether id has no children.
func (t *Tree) IsLeaf(id string) bool {
	return len(t.children[id]) == 0
}

// Descendants returns every node below id in deterministic preorder
// (children visited in sibling order), excluding id itself.
func (t *Tree) Descendants(id string) []*datatypes.KnowledgeNode {
	var out []*datatypes.KnowledgeNode
	var walk func(string)
	walk = func(cur string) {
		for _, kid := range t.children[cur] {
			out = append(out, t.nodes[kid])
			walk(kid)
		}
	}
	walk(id)
	return out
}

// Ancestors returns the chain of ancestors of id, nearest first, ending at
// the root. Empty for the root itself.
func (t *Tree) Ancestors(id string) []*datatypes.KnowledgeNode {
	var out []*datatypes.KnowledgeNode
	cur, ok := t.nodes[id]
	if !ok {
		return nil
	}
	for cur.ParentID != "" {
		cur = t.nodes[cur.ParentID]
		out = append(out, cur)
	}
	return out
}

// Siblings returns the other children of id's parent, in sibling order.
// The root has no siblings.
func (t *Tree) Siblings(id string) []*datatypes.KnowledgeNode {
	n, ok := t.nodes[id]
	if !ok || n.ParentID == "" {
		return nil
	}
	var out []*datatypes.KnowledgeNode
	for _, kid := range t.children[n.ParentID] {
		if kid != id {
			out = append(out, t.nodes[kid])
		}
	}
	return out
}

// ChildContaining maps a descendant of ancestorID back to the direct child
// of ancestorID whose subtree contains it. Returns false if descID is not
// strictly below ancestorID.
func (t *Tree) ChildContaining(ancestorID, descID string) (*datatypes.KnowledgeNode, bool) {
	cur, ok := t.nodes[descID]
	if !ok || cur.ID == ancestorID {
		return nil, false
	}
	for cur.ParentID != "" {
		if cur.ParentID == ancestorID {
			return cur, true
		}
		cur = t.nodes[cur.ParentID]
	}
	return nil, false
}
