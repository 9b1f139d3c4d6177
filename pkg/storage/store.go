/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package storage wraps a bbolt database file shared by the directory,
// preferences and history stores.
package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

const openTimeout = time.Second

// Store is a single bbolt file.
type Store struct {
	db   *bolt.DB
	path string
}

// Open opens (or creates) the database at path and ensures the given buckets exist.
func Open(path string, buckets ...string) (*Store, error) {
	if path == "" {
		return nil, ErrPathRequired
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFailedOpenDB, err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFailedOpenDB, path, err)
	}

	s := &Store{db: db, path: path}

	if err := s.CreateBuckets(buckets...); err != nil {
		_ = db.Close()

		return nil, err
	}

	return s, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// CreateBuckets creates any missing top-level buckets.
func (s *Store) CreateBuckets(names ...string) error {
	if len(names) == 0 {
		return nil
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		for _, name := range names {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}

		return nil
	})
}

// View runs fn in a read-only transaction.
func (s *Store) View(fn func(tx *bolt.Tx) error) error {
	return s.db.View(fn)
}

// Update runs fn in a read-write transaction.
func (s *Store) Update(fn func(tx *bolt.Tx) error) error {
	return s.db.Update(fn)
}

// Close releases the file lock.
func (s *Store) Close() error {
	return s.db.Close()
}

// Bucket returns the named top-level bucket or ErrBucketNotFound.
func Bucket(tx *bolt.Tx, name string) (*bolt.Bucket, error) {
	b := tx.Bucket([]byte(name))
	if b == nil {
		return nil, fmt.Errorf("%w: %s", ErrBucketNotFound, name)
	}

	return b, nil
}

// GetJSON decodes the value at key into v. It reports false when the key is absent.
func GetJSON(b *bolt.Bucket, key string, v interface{}) (bool, error) {
	raw := b.Get([]byte(key))
	if raw == nil {
		return false, nil
	}

	if err := json.Unmarshal(raw, v); err != nil {
		return true, fmt.Errorf("%w: %s: %w", ErrCorruptValue, key, err)
	}

	return true, nil
}

// PutJSON encodes v and stores it at key.
func PutJSON(b *bolt.Bucket, key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}

	return b.Put([]byte(key), raw)
}

// Itob encodes v as 8 big-endian bytes so keys sort numerically.
func Itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)

	return b
}

// Btoi is the inverse of Itob.
func Btoi(b []byte) uint64 {
	if len(b) < 8 {
		return 0
	}

	return binary.BigEndian.Uint64(b[:8])
}
