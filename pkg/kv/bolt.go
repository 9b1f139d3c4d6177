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

package kv

import (
	"context"
	"fmt"
	"sync"

	bolt "go.etcd.io/bbolt"

	"github.com/carverauto/aqualevel/pkg/storage"
)

// BoltStore keeps keys in a single bucket of a shared storage.Store.
type BoltStore struct {
	store  *storage.Store
	bucket string

	mu       sync.Mutex
	watchers map[string]map[*watcher]struct{}
	closed   bool
	done     chan struct{}
}

type watcher struct {
	ch chan []byte
}

// NewBoltStore creates the bucket if needed.
func NewBoltStore(store *storage.Store, bucket string) (*BoltStore, error) {
	if store == nil {
		return nil, errStoreRequired
	}

	if bucket == "" {
		return nil, errBucketRequired
	}

	if err := store.CreateBuckets(bucket); err != nil {
		return nil, err
	}

	return &BoltStore{
		store:    store,
		bucket:   bucket,
		watchers: make(map[string]map[*watcher]struct{}),
		done:     make(chan struct{}),
	}, nil
}

func (s *BoltStore) Get(ctx context.Context, key string) (value []byte, found bool, err error) {
	if err = ctx.Err(); err != nil {
		return nil, false, err
	}

	err = s.store.View(func(tx *bolt.Tx) error {
		b, err := storage.Bucket(tx, s.bucket)
		if err != nil {
			return err
		}

		if raw := b.Get([]byte(key)); raw != nil {
			value = append([]byte(nil), raw...)
			found = true
		}

		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to get key %s: %w", key, err)
	}

	return value, found, nil
}

func (s *BoltStore) Put(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.store.Update(func(tx *bolt.Tx) error {
		b, err := storage.Bucket(tx, s.bucket)
		if err != nil {
			return err
		}

		return b.Put([]byte(key), value)
	})
	if err != nil {
		return fmt.Errorf("failed to put key %s: %w", key, err)
	}

	s.notify(key, value)

	return nil
}

func (s *BoltStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.store.Update(func(tx *bolt.Tx) error {
		b, err := storage.Bucket(tx, s.bucket)
		if err != nil {
			return err
		}

		return b.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}

	s.notify(key, nil)

	return nil
}

func (s *BoltStore) Watch(ctx context.Context, key string) (<-chan []byte, error) {
	current, found, err := s.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to watch key %s: %w", key, err)
	}

	w := &watcher{ch: make(chan []byte, 1)}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()

		return nil, errStoreClosed
	}

	if s.watchers[key] == nil {
		s.watchers[key] = make(map[*watcher]struct{})
	}

	s.watchers[key][w] = struct{}{}

	if found {
		w.ch <- current
	}
	s.mu.Unlock()

	out := make(chan []byte, 1)

	go s.handleWatchUpdates(ctx, key, w, out)

	return out, nil
}

// handleWatchUpdates forwards values from the internal mailbox until ctx ends or the store closes.
func (s *BoltStore) handleWatchUpdates(ctx context.Context, key string, w *watcher, out chan<- []byte) {
	defer func() {
		s.mu.Lock()
		delete(s.watchers[key], w)

		if len(s.watchers[key]) == 0 {
			delete(s.watchers, key)
		}
		s.mu.Unlock()

		close(out)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case value := <-w.ch:
			select {
			case out <- value:
			case <-ctx.Done():
				return
			case <-s.done:
				return
			}
		}
	}
}

// notify replaces any undelivered value so slow watchers only see the latest one.
func (s *BoltStore) notify(key string, value []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for w := range s.watchers[key] {
		select {
		case <-w.ch:
		default:
		}

		w.ch <- value
	}
}

func (s *BoltStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.done)
	}

	return nil
}

var _ KVStore = (*BoltStore)(nil)
