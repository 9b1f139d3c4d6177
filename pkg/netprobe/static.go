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

package netprobe

import (
	"context"
	"sync"
)

// StaticSource reports a fixed SSID that can be changed at runtime.
type StaticSource struct {
	mu   sync.Mutex
	ssid string
	err  error
	subs map[chan struct{}]struct{}
}

// NewStaticSource returns a source joined to ssid. An empty ssid means no WiFi.
func NewStaticSource(ssid string) *StaticSource {
	return &StaticSource{ssid: ssid, subs: make(map[chan struct{}]struct{})}
}

func (s *StaticSource) SSID(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return "", s.err
	}

	if s.ssid == "" {
		return "", ErrNoWiFi
	}

	return s.ssid, nil
}

// Set changes the reported SSID and notifies subscribers.
func (s *StaticSource) Set(ssid string) {
	s.mu.Lock()
	s.ssid = ssid
	s.err = nil
	s.mu.Unlock()

	s.notify()
}

// Fail makes every SSID call return err until the next Set.
func (s *StaticSource) Fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()

	s.notify()
}

func (s *StaticSource) notify() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (s *StaticSource) Subscribe(ctx context.Context) (<-chan struct{}, error) {
	in := make(chan struct{}, 1)

	s.mu.Lock()
	s.subs[in] = struct{}{}
	s.mu.Unlock()

	out := make(chan struct{}, 1)

	go func() {
		defer close(out)
		defer func() {
			s.mu.Lock()
			delete(s.subs, in)
			s.mu.Unlock()
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case <-in:
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()

	return out, nil
}
