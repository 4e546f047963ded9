// Copyright (C) 2025 Elenchus AI (dev@elenchus.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import (
	"context"
	"sort"
	"sync"

	"github.com/elenchus-ai/elenchus/services/interview/datatypes"
)

// MemoryStore is a map-backed Store for handler tests that do not want a
// badger directory. Values are stored by struct copy; callers must not
// mutate slices they handed in.
type MemoryStore struct {
	mu        sync.RWMutex
	materials map[string]datatypes.Material
	sessions  map[string]datatypes.InterviewSession
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		materials: make(map[string]datatypes.Material),
		sessions:  make(map[string]datatypes.InterviewSession),
	}
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) PutMaterial(_ context.Context, m *datatypes.Material) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.materials[m.ID]; ok {
		return ErrAlreadyExists
	}
	s.materials[m.ID] = *m
	return nil
}

func (s *MemoryStore) GetMaterial(_ context.Context, id string) (*datatypes.Material, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.materials[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &m, nil
}

func (s *MemoryStore) ListMaterialIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.materials))
	for id := range s.materials {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryStore) PutSession(_ context.Context, sess *datatypes.InterviewSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.SessionID] = *sess
	return nil
}

func (s *MemoryStore) GetSession(_ context.Context, id string) (*datatypes.InterviewSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &sess, nil
}

func (s *MemoryStore) ListSessions(_ context.Context) ([]*datatypes.InterviewSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*datatypes.InterviewSession, 0, len(s.sessions))
	for _, sess := range s.sessions {
		copied := sess
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out, nil
}

func (s *MemoryStore) DeleteSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(s.sessions, id)
	return nil
}
