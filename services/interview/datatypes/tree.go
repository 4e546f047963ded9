// Copyright (C) 2025 Elenchus AI (dev@elenchus.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes holds the wire and store types shared by the interview
// service: knowledge-tree material, per-session traversal state, and the
// step request/response envelopes.
package datatypes

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// KnowledgeNode is one examinable topic in a material's knowledge tree.
//
// Nodes are produced in bulk by the ingestion pipeline and never change
// during an interview. Children are derived from ParentID; Order ranks
// siblings for deterministic display and iteration, it does not influence
// which topic is visited next.
type KnowledgeNode struct {
	// ID is unique within the material.
	ID string `json:"id" validate:"required"`

	// Title is the short topic name shown to the learner.
	Title string `json:"title" validate:"required,max=200"`

	// Description is the topic summary the oracle judges against.
	Description string `json:"description"`

	// Level is the depth from the root. Root is 0.
	Level int `json:"level" validate:"gte=0"`

	// Order is the sibling rank, unique among siblings.
	Order int `json:"order" validate:"gte=0"`

	// ParentID is empty for the root node only.
	ParentID string `json:"parent_id,omitempty"`

	// ChunkIDs reference the source excerpts backing this topic.
	// Leaf-node question generation is restricted to these.
	ChunkIDs []string `json:"chunk_ids,omitempty"`
}

// ContentChunk is a source excerpt extracted from the lecture document by
// the (external) ingestion pipeline.
type ContentChunk struct {
	ID      string `json:"id" validate:"required"`
	Content string `json:"content" validate:"required"`
	Page    int    `json:"page"`
	Index   int    `json:"index"`
}

// Material is a fully materialized knowledge tree plus its chunk store,
// registered once before any interview on it can start.
type Material struct {
	ID     string          `json:"id" validate:"required"`
	Title  string          `json:"title" validate:"required,max=200"`
	RootID string          `json:"root_id" validate:"required"`
	Nodes  []KnowledgeNode `json:"nodes" validate:"required,min=1,dive"`
	Chunks []ContentChunk  `json:"chunks,omitempty" validate:"dive"`
}

var validate = validator.New()

// Validate checks field-level constraints on the material payload.
// Structural tree invariants (acyclicity, levels, sibling orders) are
// enforced separately when the tree index is built.
func (m *Material) Validate() error {
	if err := validate.Struct(m); err != nil {
		return fmt.Errorf("invalid material: %w", err)
	}
	return nil
}

// ChunkByID returns a lookup map over the material's chunks.
func (m *Material) ChunkByID() map[string]ContentChunk {
	out := make(map[string]ContentChunk, len(m.Chunks))
	for _, c := range m.Chunks {
		out[c.ID] = c
	}
	return out
}
