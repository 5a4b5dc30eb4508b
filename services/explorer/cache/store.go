// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cache

import (
	"encoding/json"
	"errors"
	"sync"
)

// SchemaVersion is the current cache schema version. A stored document or
// entry carrying a different version is treated as absent and the store is
// reset to empty on the next write.
const SchemaVersion = 1

// Entry is a single cached payload with its write timestamp.
type Entry struct {
	// Version is the entry-level schema version.
	Version int `json:"version"`

	// TimestampMilli is the epoch-millisecond write time. Eviction removes
	// the entry with the smallest timestamp first.
	TimestampMilli int64 `json:"timestamp"`

	// Payload is the opaque cached response body.
	Payload json.RawMessage `json:"payload"`
}

// Document is the persisted per-resource store: a version plus the entry
// map keyed by canonical query key.
type Document struct {
	Version int              `json:"version"`
	Entries map[string]Entry `json:"entries"`
}

// Store persists one Document per logical resource.
//
// Implementations do not need to be transactional: writes are idempotent
// last-write-wins per resource, and eviction is a pure function of stored
// timestamps, so concurrent non-conflicting writes are safe without
// coordination beyond the implementation's own internal locking.
type Store interface {
	// Load returns the document for a resource, or ErrResourceNotFound.
	Load(resource string) (Document, error)

	// Save replaces the document for a resource.
	Save(resource string, doc Document) error

	// Delete removes the document for a resource. Deleting a missing
	// resource is not an error.
	Delete(resource string) error

	// Close releases underlying resources.
	Close() error
}

// MemoryStore is an in-memory Store for tests and cache-less operation.
type MemoryStore struct {
	mu     sync.Mutex
	docs   map[string]Document
	closed bool

	// FailSaves forces Save to return an error. Used by tests to exercise
	// the defensive clear-on-write-failure path.
	FailSaves bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]Document)}
}

// Load implements Store.
func (s *MemoryStore) Load(resource string) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Document{}, ErrStoreClosed
	}
	doc, ok := s.docs[resource]
	if !ok {
		return Document{}, ErrResourceNotFound
	}
	// Deep-copy the entry map so callers can mutate freely.
	cp := Document{Version: doc.Version, Entries: make(map[string]Entry, len(doc.Entries))}
	for k, e := range doc.Entries {
		cp.Entries[k] = e
	}
	return cp, nil
}

// Save implements Store.
func (s *MemoryStore) Save(resource string, doc Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	if s.FailSaves {
		return errSaveRejected
	}
	cp := Document{Version: doc.Version, Entries: make(map[string]Entry, len(doc.Entries))}
	for k, e := range doc.Entries {
		cp.Entries[k] = e
	}
	s.docs[resource] = cp
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(resource string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	delete(s.docs, resource)
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.docs = nil
	return nil
}

var errSaveRejected = errors.New("save rejected")
