// Copyright (C) 2025 Elenchus AI (dev@elenchus.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/elenchus-ai/elenchus/services/interview/datatypes"
)

const (
	materialPrefix = "material/"
	sessionPrefix  = "session/"
)

// BadgerStore is the embedded persistence layer. One key space, two
// prefixes, JSON values. Badger gives crash-safe local durability without
// an external database to operate.
type BadgerStore struct {
	db *badger.DB
}

var _ Store = (*BadgerStore)(nil)

// Open opens (or creates) the store under dir.
func Open(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger store at %s: %w", dir, err)
	}
	slog.Info("Opened interview store", "dir", dir)
	return &BadgerStore{db: db}, nil
}

// OpenInMemory opens a store that lives and dies with the process.
// Used by tests and by ephemeral deployments.
func OpenInMemory() (*BadgerStore, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening in-memory badger store: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func (b *BadgerStore) Close() error {
	return b.db.Close()
}

func (b *BadgerStore) put(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", key, err)
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), raw)
	})
}

func (b *BadgerStore) get(key string, out any) error {
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, out)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	return err
}

func (b *BadgerStore) PutMaterial(ctx context.Context, m *datatypes.Material) error {
	key := materialPrefix + m.ID
	// Write-once: a registered material is immutable.
	err := b.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(key)); err == nil {
			return ErrAlreadyExists
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		raw, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("marshaling material %s: %w", m.ID, err)
		}
		return txn.Set([]byte(key), raw)
	})
	return err
}

func (b *BadgerStore) GetMaterial(ctx context.Context, id string) (*datatypes.Material, error) {
	var m datatypes.Material
	if err := b.get(materialPrefix+id, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (b *BadgerStore) ListMaterialIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		prefix := []byte(materialPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			ids = append(ids, string(it.Item().Key()[len(prefix):]))
		}
		return nil
	})
	return ids, err
}

func (b *BadgerStore) PutSession(ctx context.Context, s *datatypes.InterviewSession) error {
	return b.put(sessionPrefix+s.SessionID, s)
}

func (b *BadgerStore) GetSession(ctx context.Context, id string) (*datatypes.InterviewSession, error) {
	var s datatypes.InterviewSession
	if err := b.get(sessionPrefix+id, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (b *BadgerStore) ListSessions(ctx context.Context) ([]*datatypes.InterviewSession, error) {
	var sessions []*datatypes.InterviewSession
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()
		prefix := []byte(sessionPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var s datatypes.InterviewSession
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &s)
			})
			if err != nil {
				return err
			}
			sessions = append(sessions, &s)
		}
		return nil
	})
	return sessions, err
}

func (b *BadgerStore) DeleteSession(ctx context.Context, id string) error {
	key := []byte(sessionPrefix + id)
	return b.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNotFound
			}
			return err
		}
		return txn.Delete(key)
	})
}
