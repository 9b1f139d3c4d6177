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

// Package directory is the durable store of known devices and their water
// level history. Devices are keyed by hostname.
package directory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/carverauto/aqualevel/pkg/logger"
	"github.com/carverauto/aqualevel/pkg/models"
	"github.com/carverauto/aqualevel/pkg/storage"
)

const (
	devicesBucket = "devices"
	historyBucket = "history"
)

// Buckets lists the top-level buckets the directory owns.
func Buckets() []string {
	return []string{devicesBucket, historyBucket}
}

type Directory struct {
	store  *storage.Store
	logger logger.Logger
	now    func() time.Time
	bcast  *broadcaster
}

// Option customizes a Directory.
type Option func(*Directory)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(d *Directory) { d.now = now }
}

// New creates the directory buckets on store.
func New(store *storage.Store, log logger.Logger, opts ...Option) (*Directory, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}

	if log == nil {
		log = logger.NewTestLogger()
	}

	if err := store.CreateBuckets(Buckets()...); err != nil {
		return nil, err
	}

	d := &Directory{
		store:  store,
		logger: log,
		now:    time.Now,
		bcast:  newBroadcaster(),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d, nil
}

// ListAll returns every device, most recently seen first.
func (d *Directory) ListAll(ctx context.Context) ([]*models.Device, error) {
	devices, err := d.list(ctx, func(*models.Device) bool { return true })
	if err != nil {
		return nil, err
	}

	sort.SliceStable(devices, func(i, j int) bool {
		return devices[i].LastSeen.After(devices[j].LastSeen)
	})

	return devices, nil
}

// ListFavorites returns favorite devices ordered by name.
func (d *Directory) ListFavorites(ctx context.Context) ([]*models.Device, error) {
	devices, err := d.list(ctx, func(dev *models.Device) bool { return dev.IsFavorite })
	if err != nil {
		return nil, err
	}

	sort.SliceStable(devices, func(i, j int) bool {
		return devices[i].Name < devices[j].Name
	})

	return devices, nil
}

func (d *Directory) list(ctx context.Context, keep func(*models.Device) bool) ([]*models.Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var devices []*models.Device

	err := d.store.View(func(tx *bolt.Tx) error {
		b, err := storage.Bucket(tx, devicesBucket)
		if err != nil {
			return err
		}

		return b.ForEach(func(k, _ []byte) error {
			dev := &models.Device{}

			if _, err := storage.GetJSON(b, string(k), dev); err != nil {
				d.logger.Warn().Err(err).Str("device_id", string(k)).Msg("Skipping unreadable device record")

				return nil
			}

			if keep(dev) {
				devices = append(devices, dev)
			}

			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}

	return devices, nil
}

// Get returns the device or ErrDeviceNotFound.
func (d *Directory) Get(ctx context.Context, id string) (*models.Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dev := &models.Device{}

	var found bool

	err := d.store.View(func(tx *bolt.Tx) error {
		b, err := storage.Bucket(tx, devicesBucket)
		if err != nil {
			return err
		}

		found, err = storage.GetJSON(b, id, dev)

		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get device %s: %w", id, err)
	}

	if !found {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}

	return dev, nil
}

// Exists reports whether id is a known device.
func (d *Directory) Exists(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	var exists bool

	err := d.store.View(func(tx *bolt.Tx) error {
		b, err := storage.Bucket(tx, devicesBucket)
		if err != nil {
			return err
		}

		exists = b.Get([]byte(id)) != nil

		return nil
	})

	return exists, err
}

// UpsertFromDiscovery creates or refreshes the record for d.Hostname.
// Existing records keep everything except address, last seen and, when
// customName is non-empty, name.
func (d *Directory) UpsertFromDiscovery(
	ctx context.Context, found *models.DiscoveredDevice, customName string) (string, error) {
	if found == nil || strings.TrimSpace(found.Hostname) == "" {
		return "", ErrInvalidDevice
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	id := found.Hostname
	now := d.now()

	created := false

	err := d.updateDevice(id, func(dev *models.Device, exists bool) (*models.Device, error) {
		if !exists {
			created = true
			name := customName

			if name == "" {
				name = models.DefaultDeviceName(found.ServiceName)
			}

			return models.NewDevice(id, name, found.IPAddress, now), nil
		}

		dev.IPAddress = found.IPAddress
		dev.LastSeen = now

		if customName != "" {
			dev.Name = customName
		}

		return dev, nil
	})
	if err != nil {
		return "", fmt.Errorf("upsert device %s: %w", id, err)
	}

	d.logger.Debug().
		Str("device_id", id).
		Str("ip", found.IPAddress).
		Bool("created", created).
		Msg("Upserted device from discovery")

	return id, nil
}

// RecordTelemetry stores the latest reading snapshot on the device.
func (d *Directory) RecordTelemetry(ctx context.Context, id string, percentage, volume float64, ts time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return d.updateExisting(id, func(dev *models.Device) {
		dev.LastPercentage = models.Float(percentage)
		dev.LastVolume = models.Float(volume)
		dev.LastSeen = ts
	})
}

// ApplyTankData caches tank geometry and alert thresholds reported by the device.
func (d *Directory) ApplyTankData(ctx context.Context, id string, data *models.TankData) error {
	if data == nil {
		return nil
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	return d.updateExisting(id, func(dev *models.Device) {
		dev.TankHeight = models.Float(data.TankHeight)
		dev.TankDiameter = models.Float(data.TankDiameter)
		dev.TankVolume = models.Float(data.TankVolume)
		dev.AlertLevelLow = models.Int(data.AlertLevelLow)
		dev.AlertLevelHigh = models.Int(data.AlertLevelHigh)
		dev.AlertsEnabled = data.AlertsEnabled
	})
}

// Rename sets a device's display name. Unknown ids are ignored.
func (d *Directory) Rename(ctx context.Context, id, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return ignoreMissing(d.updateExisting(id, func(dev *models.Device) { dev.Name = name }))
}

// SetFavorite toggles the favorite flag. Unknown ids are ignored.
func (d *Directory) SetFavorite(ctx context.Context, id string, favorite bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return ignoreMissing(d.updateExisting(id, func(dev *models.Device) { dev.IsFavorite = favorite }))
}

// Delete removes a device and all of its history. Unknown ids are ignored.
func (d *Directory) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var removed bool

	err := d.store.Update(func(tx *bolt.Tx) error {
		devices, err := storage.Bucket(tx, devicesBucket)
		if err != nil {
			return err
		}

		if devices.Get([]byte(id)) == nil {
			return nil
		}

		removed = true

		if err := devices.Delete([]byte(id)); err != nil {
			return err
		}

		history, err := storage.Bucket(tx, historyBucket)
		if err != nil {
			return err
		}

		if history.Bucket([]byte(id)) != nil {
			return history.DeleteBucket([]byte(id))
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("delete device %s: %w", id, err)
	}

	if removed {
		d.logger.Info().Str("device_id", id).Msg("Deleted device")
		d.bcast.notify()
	}

	return nil
}

func (d *Directory) updateExisting(id string, mutate func(*models.Device)) error {
	return d.updateDevice(id, func(dev *models.Device, exists bool) (*models.Device, error) {
		if !exists {
			return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
		}

		mutate(dev)

		return dev, nil
	})
}

// updateDevice runs a read-modify-write of one record in a single transaction
// and wakes watchers on success.
func (d *Directory) updateDevice(
	id string, fn func(dev *models.Device, exists bool) (*models.Device, error)) error {
	err := d.store.Update(func(tx *bolt.Tx) error {
		b, err := storage.Bucket(tx, devicesBucket)
		if err != nil {
			return err
		}

		dev := &models.Device{}

		exists, err := storage.GetJSON(b, id, dev)
		if err != nil {
			return err
		}

		next, err := fn(dev, exists)
		if err != nil {
			return err
		}

		return storage.PutJSON(b, id, next)
	})
	if err != nil {
		return err
	}

	d.bcast.notify()

	return nil
}

func ignoreMissing(err error) error {
	if err != nil && isNotFound(err) {
		return nil
	}

	return err
}
