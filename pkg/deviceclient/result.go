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

package deviceclient

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Result is the settled outcome of a device call.
type Result[T any] struct {
	Value T
	Err   error
	At    time.Time
}

// ResultOf wraps a (value, error) pair.
func ResultOf[T any](v T, err error) Result[T] {
	return Result[T]{Value: v, Err: err, At: time.Now()}
}

func (r Result[T]) OK() bool { return r.Err == nil }

// Message is the display message for a failed result.
func (r Result[T]) Message() string {
	if r.Err == nil {
		return ""
	}

	var derr *Error
	if errors.As(r.Err, &derr) {
		return derr.Message
	}

	return r.Err.Error()
}

// Code is the HTTP status of a failed result, or zero.
func (r Result[T]) Code() int {
	var derr *Error
	if errors.As(r.Err, &derr) {
		return derr.Code
	}

	return 0
}

// LoadState reports whether a tracked call is in flight.
type LoadState int

const (
	StateIdle LoadState = iota
	StateLoading
	StateDone
)

func (s LoadState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Tracker keeps the load state and last result of a repeated call.
type Tracker[T any] struct {
	mu    sync.RWMutex
	state LoadState
	last  Result[T]
}

// Run marks the tracker loading, invokes fn and stores its result.
func (t *Tracker[T]) Run(ctx context.Context, fn func(context.Context) (T, error)) Result[T] {
	t.mu.Lock()
	t.state = StateLoading
	t.mu.Unlock()

	v, err := fn(ctx)
	res := ResultOf(v, err)

	t.mu.Lock()
	t.state = StateDone
	t.last = res
	t.mu.Unlock()

	return res
}

// Snapshot returns the current state and the last settled result.
func (t *Tracker[T]) Snapshot() (LoadState, Result[T]) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.state, t.last
}
