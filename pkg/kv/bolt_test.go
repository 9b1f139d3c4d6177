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
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/aqualevel/pkg/storage"
)

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()

	db, err := storage.Open(filepath.Join(t.TempDir(), "kv.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s, err := NewBoltStore(db, "prefs")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s
}

func receive(t *testing.T, ch <-chan []byte) []byte {
	t.Helper()

	select {
	case v, ok := <-ch:
		require.True(t, ok, "watch channel closed early")
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for watch update")
	}

	return nil
}

func TestBoltStoreGetPutDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, found, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.Put(ctx, "k", []byte("v")))

	v, found, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("v"), v)

	require.NoError(t, s.Delete(ctx, "k"))
	require.NoError(t, s.Delete(ctx, "k"))

	_, found, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestBoltStoreWatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := newTestStore(t)

	require.NoError(t, s.Put(ctx, "interval", []byte("60")))

	ch, err := s.Watch(ctx, "interval")
	require.NoError(t, err)

	assert.Equal(t, []byte("60"), receive(t, ch))

	require.NoError(t, s.Put(ctx, "interval", []byte("30")))
	assert.Equal(t, []byte("30"), receive(t, ch))

	require.NoError(t, s.Delete(ctx, "interval"))
	assert.Nil(t, receive(t, ch))

	cancel()

	select {
	case _, ok := <-ch:
		for ok {
			_, ok = <-ch
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watch channel not closed after cancel")
	}
}

func TestBoltStoreWatchAfterClose(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Close())

	_, err := s.Watch(context.Background(), "k")
	require.ErrorIs(t, err, errStoreClosed)
}

func TestNewBoltStoreValidation(t *testing.T) {
	_, err := NewBoltStore(nil, "b")
	require.ErrorIs(t, err, errStoreRequired)
}
