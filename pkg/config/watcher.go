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

package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/carverauto/aqualevel/pkg/logger"
)

const reloadDebounce = 100 * time.Millisecond

// Watcher reloads an AppConfig whenever its file is written.
type Watcher struct {
	path   string
	logger logger.Logger

	mu      sync.RWMutex
	current *AppConfig
}

// NewWatcher loads path once. Reloads that fail validation keep the previous config.
func NewWatcher(ctx context.Context, path string, log logger.Logger) (*Watcher, error) {
	if log == nil {
		log = logger.NewTestLogger()
	}

	cfg, err := LoadApp(ctx, path, log)
	if err != nil {
		return nil, err
	}

	return &Watcher{path: path, logger: log, current: cfg}, nil
}

// Current returns the last successfully loaded config.
func (w *Watcher) Current() *AppConfig {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return w.current
}

// Run watches the config directory until ctx ends, sending each accepted
// reload on the returned channel. The channel is closed when watching stops.
func (w *Watcher) Run(ctx context.Context) (<-chan *AppConfig, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		_ = fw.Close()

		return nil, fmt.Errorf("watch directory: %w", err)
	}

	out := make(chan *AppConfig, 1)

	go w.loop(ctx, fw, out)

	return out, nil
}

func (w *Watcher) loop(ctx context.Context, fw *fsnotify.Watcher, out chan *AppConfig) {
	defer close(out)
	defer func() { _ = fw.Close() }()

	var debounce <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fw.Events:
			if !ok {
				return
			}

			if filepath.Base(event.Name) != filepath.Base(w.path) {
				continue
			}

			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			debounce = time.After(reloadDebounce)
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}

			w.logger.Warn().Err(err).Str("path", w.path).Msg("Config watcher error")
		case <-debounce:
			debounce = nil

			cfg, err := LoadApp(ctx, w.path, w.logger)
			if err != nil {
				w.logger.Warn().Err(err).Str("path", w.path).Msg("Ignoring invalid config reload")

				continue
			}

			w.mu.Lock()
			w.current = cfg
			w.mu.Unlock()

			w.logger.Info().Str("path", w.path).Msg("Configuration reloaded")

			select {
			case <-out:
			default:
			}

			out <- cfg
		}
	}
}
