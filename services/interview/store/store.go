// Copyright (C) 2025 Elenchus AI (dev@elenchus.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package store persists materials and interview sessions. The handlers
// are the only writers; the engine never touches storage.
package store

import (
	"context"
	"errors"

	"github.com/elenchus-ai/elenchus/services/interview/datatypes"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)

// MaterialStore holds registered knowledge-tree materials. Materials are
// write-once: registration either succeeds whole or fails whole.
type MaterialStore interface {
	PutMaterial(ctx context.Context, m *datatypes.Material) error
	GetMaterial(ctx context.Context, id string) (*datatypes.Material, error)
	ListMaterialIDs(ctx context.Context) ([]string, error)
}

// SessionStore holds interview sessions. Sessions are overwritten on
// every turn with the latest traversal state.
type SessionStore interface {
	PutSession(ctx context.Context, s *datatypes.InterviewSession) error
	GetSession(ctx context.Context, id string) (*datatypes.InterviewSession, error)
	ListSessions(ctx context.Context) ([]*datatypes.InterviewSession, error)
	DeleteSession(ctx context.Context, id string) error
}

// Store is the combined persistence surface the service wires in.
type Store interface {
	MaterialStore
	SessionStore
	Close() error
}
