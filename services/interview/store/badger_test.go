// Copyright (C) 2025 Elenchus AI (dev@elenchus.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elenchus-ai/elenchus/services/interview/datatypes"
)

// storeImpls lets every test run against both implementations.
func storeImpls(t *testing.T) map[string]Store {
	t.Helper()
	b, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return map[string]Store{
		"badger": b,
		"memory": NewMemoryStore(),
	}
}

func sampleMaterial(id string) *datatypes.Material {
	return &datatypes.Material{
		ID:     id,
		Title:  "Sample",
		RootID: "root",
		Nodes: []datatypes.KnowledgeNode{
			{ID: "root", Title: "Root", Level: 0},
			{ID: "n1", Title: "Topic", Level: 1, ParentID: "root"},
		},
	}
}

func TestMaterialRoundTrip(t *testing.T) {
	for name, s := range storeImpls(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.PutMaterial(ctx, sampleMaterial("m1")))

			got, err := s.GetMaterial(ctx, "m1")
			require.NoError(t, err)
			assert.Equal(t, "m1", got.ID)
			assert.Len(t, got.Nodes, 2)

			ids, err := s.ListMaterialIDs(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"m1"}, ids)
		})
	}
}

func TestMaterialIsWriteOnce(t *testing.T) {
	for name, s := range storeImpls(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.PutMaterial(ctx, sampleMaterial("m1")))
			err := s.PutMaterial(ctx, sampleMaterial("m1"))
			assert.ErrorIs(t, err, ErrAlreadyExists)
		})
	}
}

func TestGetMaterial_Missing(t *testing.T) {
	for name, s := range storeImpls(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.GetMaterial(context.Background(), "nope")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestSessionLifecycle(t *testing.T) {
	for name, s := range storeImpls(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			sess := &datatypes.InterviewSession{
				SessionID:  "s1",
				MaterialID: "m1",
				Status:     datatypes.SessionQuestioning,
				State: datatypes.TraversalState{
					CurrentNodeID:    "n1",
					UnclearedNodeIDs: []string{"n1"},
					SocraticStage:    2,
					History: []datatypes.QARecord{
						{NodeID: "n1", Question: "q", Answer: "a", Stage: 1, Score: 4},
					},
				},
				StartedAt: time.Now().UTC().Truncate(time.Second),
			}
			require.NoError(t, s.PutSession(ctx, sess))

			got, err := s.GetSession(ctx, "s1")
			require.NoError(t, err)
			assert.Equal(t, "m1", got.MaterialID)
			assert.Equal(t, 2, got.State.SocraticStage)
			require.Len(t, got.State.History, 1)
			assert.Equal(t, 4, got.State.History[0].Score)

			// Sessions are overwritten turn by turn.
			sess.State.SocraticStage = 3
			require.NoError(t, s.PutSession(ctx, sess))
			got, err = s.GetSession(ctx, "s1")
			require.NoError(t, err)
			assert.Equal(t, 3, got.State.SocraticStage)

			all, err := s.ListSessions(ctx)
			require.NoError(t, err)
			require.Len(t, all, 1)
			assert.Equal(t, "s1", all[0].SessionID)

			require.NoError(t, s.DeleteSession(ctx, "s1"))
			_, err = s.GetSession(ctx, "s1")
			assert.ErrorIs(t, err, ErrNotFound)
			assert.ErrorIs(t, s.DeleteSession(ctx, "s1"), ErrNotFound)
		})
	}
}
