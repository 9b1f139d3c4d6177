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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/carverauto/aqualevel/pkg/models"
	"github.com/carverauto/aqualevel/pkg/storage"
)

// History rows live in history/<device id>/ keyed by
// big-endian unix millis followed by a big-endian sequence number.

func historyKey(ts time.Time, seq uint64) []byte {
	return append(storage.Itob(uint64(ts.UnixMilli())), storage.Itob(seq)...)
}

func decodeReading(v []byte) (*models.WaterLevelHistory, error) {
	r := &models.WaterLevelHistory{}
	if err := json.Unmarshal(v, r); err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrCorruptValue, err)
	}

	return r, nil
}

func deviceHistory(tx *bolt.Tx, id string) (*bolt.Bucket, error) {
	root, err := storage.Bucket(tx, historyBucket)
	if err != nil {
		return nil, err
	}

	return root.Bucket([]byte(id)), nil
}

// InsertReading appends a reading for an existing device and returns its id.
func (d *Directory) InsertReading(ctx context.Context, reading *models.WaterLevelHistory) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var id uint64

	err := d.store.Update(func(tx *bolt.Tx) error {
		devices, err := storage.Bucket(tx, devicesBucket)
		if err != nil {
			return err
		}

		if devices.Get([]byte(reading.DeviceID)) == nil {
			return fmt.Errorf("%w: %s", ErrDeviceNotFound, reading.DeviceID)
		}

		root, err := storage.Bucket(tx, historyBucket)
		if err != nil {
			return err
		}

		b, err := root.CreateBucketIfNotExists([]byte(reading.DeviceID))
		if err != nil {
			return err
		}

		id, err = b.NextSequence()
		if err != nil {
			return err
		}

		row := *reading
		row.ID = id

		raw, err := json.Marshal(&row)
		if err != nil {
			return err
		}

		return b.Put(historyKey(row.Timestamp, id), raw)
	})
	if err != nil {
		return 0, fmt.Errorf("insert reading for %s: %w", reading.DeviceID, err)
	}

	return id, nil
}

// LatestReading returns the newest reading for id, or nil when there is none.
func (d *Directory) LatestReading(ctx context.Context, id string) (*models.WaterLevelHistory, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var latest *models.WaterLevelHistory

	err := d.store.View(func(tx *bolt.Tx) error {
		b, err := deviceHistory(tx, id)
		if err != nil || b == nil {
			return err
		}

		_, v := b.Cursor().Last()
		if v == nil {
			return nil
		}

		latest, err = decodeReading(v)

		return err
	})
	if err != nil {
		return nil, fmt.Errorf("latest reading for %s: %w", id, err)
	}

	return latest, nil
}

// History returns every reading for id, newest first.
func (d *Directory) History(ctx context.Context, id string) ([]*models.WaterLevelHistory, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rows []*models.WaterLevelHistory

	err := d.store.View(func(tx *bolt.Tx) error {
		b, err := deviceHistory(tx, id)
		if err != nil || b == nil {
			return err
		}

		c := b.Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			r, err := decodeReading(v)
			if err != nil {
				return err
			}

			rows = append(rows, r)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("history for %s: %w", id, err)
	}

	return rows, nil
}

// HistoryRange returns readings with from <= timestamp <= to, oldest first.
func (d *Directory) HistoryRange(ctx context.Context, id string, from, to time.Time) ([]*models.WaterLevelHistory, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rows []*models.WaterLevelHistory

	err := d.store.View(func(tx *bolt.Tx) error {
		b, err := deviceHistory(tx, id)
		if err != nil || b == nil {
			return err
		}

		return scanRange(b, from, to, func(r *models.WaterLevelHistory) {
			rows = append(rows, r)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("history range for %s: %w", id, err)
	}

	return rows, nil
}

func scanRange(b *bolt.Bucket, from, to time.Time, fn func(*models.WaterLevelHistory)) error {
	upper := storage.Itob(uint64(to.UnixMilli()))

	c := b.Cursor()
	for k, v := c.Seek(storage.Itob(uint64(from.UnixMilli()))); k != nil; k, v = c.Next() {
		if bytes.Compare(k[:8], upper) > 0 {
			break
		}

		r, err := decodeReading(v)
		if err != nil {
			return err
		}

		fn(r)
	}

	return nil
}

// HistoryStats aggregates percentage over [from, to]. Count is zero when there are no rows.
func (d *Directory) HistoryStats(ctx context.Context, id string, from, to time.Time) (models.HistoryStats, error) {
	var stats models.HistoryStats

	if err := ctx.Err(); err != nil {
		return stats, err
	}

	sum := 0.0
	minV, maxV := math.Inf(1), math.Inf(-1)

	err := d.store.View(func(tx *bolt.Tx) error {
		b, err := deviceHistory(tx, id)
		if err != nil || b == nil {
			return err
		}

		return scanRange(b, from, to, func(r *models.WaterLevelHistory) {
			stats.Count++
			sum += r.Percentage
			minV = math.Min(minV, r.Percentage)
			maxV = math.Max(maxV, r.Percentage)
		})
	})
	if err != nil {
		return stats, fmt.Errorf("history stats for %s: %w", id, err)
	}

	if stats.Count > 0 {
		stats.Average = sum / float64(stats.Count)
		stats.Min = minV
		stats.Max = maxV
	}

	return stats, nil
}

// PruneReadings deletes readings for id older than cutoff and returns how many were removed.
func (d *Directory) PruneReadings(ctx context.Context, id string, cutoff time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var removed int

	err := d.store.Update(func(tx *bolt.Tx) error {
		b, err := deviceHistory(tx, id)
		if err != nil || b == nil {
			return err
		}

		removed, err = pruneBucket(b, cutoff)

		return err
	})
	if err != nil {
		return 0, fmt.Errorf("prune history for %s: %w", id, err)
	}

	return removed, nil
}

// PruneAllReadings applies PruneReadings to every device.
func (d *Directory) PruneAllReadings(ctx context.Context, cutoff time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var removed int

	err := d.store.Update(func(tx *bolt.Tx) error {
		root, err := storage.Bucket(tx, historyBucket)
		if err != nil {
			return err
		}

		var names [][]byte

		if err := root.ForEachBucket(func(k []byte) error {
			names = append(names, append([]byte(nil), k...))

			return nil
		}); err != nil {
			return err
		}

		for _, name := range names {
			n, err := pruneBucket(root.Bucket(name), cutoff)
			if err != nil {
				return err
			}

			removed += n
		}

		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}

	return removed, nil
}

// pruneBucket collects keys before deleting; bbolt cursors must not be
// advanced across deletes.
func pruneBucket(b *bolt.Bucket, cutoff time.Time) (int, error) {
	limit := storage.Itob(uint64(cutoff.UnixMilli()))

	var stale [][]byte

	c := b.Cursor()
	for k, _ := c.First(); k != nil && bytes.Compare(k[:8], limit) < 0; k, _ = c.Next() {
		stale = append(stale, append([]byte(nil), k...))
	}

	for _, k := range stale {
		if err := b.Delete(k); err != nil {
			return 0, err
		}
	}

	return len(stale), nil
}
