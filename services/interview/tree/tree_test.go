// Copyright (C) 2025 Elenchus AI (dev@elenchus.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elenchus-ai/elenchus/services/interview/datatypes"
)

// testMaterial builds the reference tree used across traversal tests:
//
//	root
//	├── a (order 0)
//	│   ├── a1 (order 0)
//	│   └── a2 (order 1)
//	└── b (order 1)
//	    └── b1 (order 0)
func testMaterial() *datatypes.Material {
	return &datatypes.Material{
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
			{ID: "c1", Content: "A page table maps virtual page numbers to frames.", Page: 12, Index: 0},
		},
	}
}

func TestNew_ValidTree(t *testing.T) {
	tr, err := New(testMaterial())
	require.NoError(t, err)
	assert.Equal(t, 6, tr.Len())
	assert.Equal(t, "root", tr.Root().ID)
}

func TestNew_RejectsInvalidStructures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(m *datatypes.Material)
	}{
		{
			name: "duplicate node id",
			mutate: func(m *datatypes.Material) {
				m.Nodes = append(m.Nodes, datatypes.KnowledgeNode{ID: "a", Title: "dup", Level: 1, Order: 5, ParentID: "root"})
			},
		},
		{
			name: "multiple roots",
			mutate: func(m *datatypes.Material) {
				m.Nodes = append(m.Nodes, datatypes.KnowledgeNode{ID: "root2", Title: "second", Level: 0, Order: 0})
			},
		},
		{
			name: "no root",
			mutate: func(m *datatypes.Material) {
				m.Nodes[0].ParentID = "a"
			},
		},
		{
			name: "unknown parent",
			mutate: func(m *datatypes.Material) {
				m.Nodes[5].ParentID = "ghost"
			},
		},
		{
			name: "level mismatch",
			mutate: func(m *datatypes.Material) {
				m.Nodes[3].Level = 5
			},
		},
		{
			name: "duplicate sibling order",
			mutate: func(m *datatypes.Material) {
				m.Nodes[4].Order = 0 // collides with a1
			},
		},
		{
			name: "unknown chunk reference",
			mutate: func(m *datatypes.Material) {
				m.Nodes[3].ChunkIDs = []string{"nope"}
			},
		},
		{
			name: "root_id mismatch",
			mutate: func(m *datatypes.Material) {
				m.RootID = "a"
			},
		},
		{
			name: "root level nonzero",
			mutate: func(m *datatypes.Material) {
				m.Nodes[0].Level = 1
				m.Nodes[1].Level = 2
				m.Nodes[2].Level = 2
				m.Nodes[3].Level = 3
				m.Nodes[4].Level = 3
				m.Nodes[5].Level = 3
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m := testMaterial()
			tc.mutate(m)
			_, err := New(m)
			assert.Error(t, err)
		})
	}
}

func TestChildren_SiblingOrder(t *testing.T) {
	tr, err := New(testMaterial())
	require.NoError(t, err)

	kids := tr.Children("root")
	require.Len(t, kids, 2)
	assert.Equal(t, "a", kids[0].ID)
	assert.Equal(t, "b", kids[1].ID)

	assert.Empty(t, tr.Children("a1"))
	assert.True(t, tr.IsLeaf("a1"))
	assert.False(t, tr.IsLeaf("a"))
}

func TestDescendants_Preorder(t *testing.T) {
	tr, err := New(testMaterial())
	require.NoError(t, err)

	var ids []string
	for _, n := range tr.Descendants("root") {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []string{"a", "a1", "a2", "b", "b1"}, ids)

	ids = nil
	for _, n := range tr.Descendants("a") {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []string{"a1", "a2"}, ids)

	assert.Empty(t, tr.Descendants("b1"))
}

func TestAncestors_NearestFirst(t *testing.T) {
	tr, err := New(testMaterial())
	require.NoError(t, err)

	var ids []string
	for _, n := range tr.Ancestors("a1") {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []string{"a", "root"}, ids)
	assert.Empty(t, tr.Ancestors("root"))
}

func TestSiblings(t *testing.T) {
	tr, err := New(testMaterial())
	require.NoError(t, err)

	sibs := tr.Siblings("a1")
	require.Len(t, sibs, 1)
	assert.Equal(t, "a2", sibs[0].ID)

	assert.Empty(t, tr.Siblings("root"))
	assert.Empty(t, tr.Siblings("b1"))
}

func TestParent(t *testing.T) {
	tr, err := New(testMaterial())
	require.NoError(t, err)

	p, ok := tr.Parent("a2")
	require.True(t, ok)
	assert.Equal(t, "a", p.ID)

	_, ok = tr.Parent("root")
	assert.False(t, ok)
}

func TestChildContaining(t *testing.T) {
	tr, err := New(testMaterial())
	require.NoError(t, err)

	c, ok := tr.ChildContaining("root", "a2")
	require.True(t, ok)
	assert.Equal(t, "a", c.ID)

	c, ok = tr.ChildContaining("root", "b")
	require.True(t, ok)
	assert.Equal(t, "b", c.ID)

	_, ok = tr.ChildContaining("root", "root")
	assert.False(t, ok)

	_, ok = tr.ChildContaining("a", "b1")
	assert.False(t, ok)
}

func TestIDs_StartsAtRoot(t *testing.T) {
	tr, err := New(testMaterial())
	require.NoError(t, err)
	assert.Equal(t, []string{"root", "a", "a1", "a2", "b", "b1"}, tr.IDs())
}
