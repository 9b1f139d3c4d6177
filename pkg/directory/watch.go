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

package directory

import (
	"context"
	"sync"

	"github.com/carverauto/aqualevel/pkg/models"
)

// broadcaster wakes every subscriber after a mutation. Each subscriber has a
// one-slot mailbox so bursts of writes collapse into a single wakeup.
type broadcaster struct {
	mu   sync.Mutex
	subs map[chan struct{}]struct{}
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[chan struct{}]struct{})}
}

func (b *broadcaster) subscribe() chan struct{} {
	ch := make(chan struct{}, 1)

	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	return ch
}

func (b *broadcaster) unsubscribe(ch chan struct{}) {
	b.mu.Lock()
	delete(b.subs, ch)
	b.mu.Unlock()
}

func (b *broadcaster) notify() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for ch := range b.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// WatchAll streams ListAll snapshots: one immediately, then after each change.
func (d *Directory) WatchAll(ctx context.Context) <-chan []*models.Device {
	return d.watch(ctx, d.ListAll)
}

// WatchFavorites streams ListFavorites snapshots.
func (d *Directory) WatchFavorites(ctx context.Context) <-chan []*models.Device {
	return d.watch(ctx, d.ListFavorites)
}

func (d *Directory) watch(
	ctx context.Context, query func(context.Context) ([]*models.Device, error)) <-chan []*models.Device {
	out := make(chan []*models.Device, 1)
	wake := d.bcast.subscribe()

	go func() {
		defer close(out)
		defer d.bcast.unsubscribe(wake)

		for {
			devices, err := query(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}

				d.logger.Warn().Err(err).Msg("Directory watch query failed")
			} else {
				select {
				case out <- devices:
				case <-ctx.Done():
					return
				}
			}

			select {
			case <-wake:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}
