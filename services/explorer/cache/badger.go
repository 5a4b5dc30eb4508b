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
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
)

// badgerKeyPrefix namespaces cache documents inside the shared database.
const badgerKeyPrefix = "constellation/cache/"

// BadgerStore persists cache documents in a local BadgerDB.
//
// One document per logical resource, stored as JSON under a prefixed key.
// The documents are tiny (at most MaxEntries payloads), so whole-document
// reads and writes are cheaper than per-entry keys and keep eviction a
// pure function of the loaded state.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadgerStore opens (or creates) a BadgerDB-backed store at dir.
//
// Badger's own logger is silenced; store-level failures are reported to
// the caller and logged by the RequestCache instead.
func OpenBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open cache store: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// Load implements Store.
func (s *BadgerStore) Load(resource string) (Document, error) {
	var doc Document
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(badgerKeyPrefix + resource))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &doc)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Document{}, ErrResourceNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("load cache document %q: %w", resource, err)
	}
	return doc, nil
}

// Save implements Store.
func (s *BadgerStore) Save(resource string, doc Document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode cache document %q: %w", resource, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(badgerKeyPrefix+resource), raw)
	})
	if err != nil {
		return fmt.Errorf("save cache document %q: %w", resource, err)
	}
	return nil
}

// Delete implements Store.
func (s *BadgerStore) Delete(resource string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(badgerKeyPrefix + resource))
	})
	if err != nil {
		return fmt.Errorf("delete cache document %q: %w", resource, err)
	}
	return nil
}

// Close implements Store.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
