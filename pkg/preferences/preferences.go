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

// Package preferences stores user preferences as string values in a KV bucket.
// Reads never fail: a missing or unreadable value yields the default.
package preferences

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/carverauto/aqualevel/pkg/kv"
	"github.com/carverauto/aqualevel/pkg/logger"
)

// Bucket is the storage bucket preferences live in.
const Bucket = "preferences"

const (
	KeyLastUsedDevice       = "last_used_device"
	KeyFirstTimeLaunch      = "first_time_launch"
	KeyRefreshInterval      = "refresh_interval"
	KeyNotificationsEnabled = "notifications_enabled"
	KeyDarkMode             = "dark_mode"
	KeyOnboardingCompleted  = "onboarding_completed"
)

const DefaultRefreshInterval = 60 * time.Second

// DarkMode values.
const (
	DarkModeSystem = "system"
	DarkModeLight  = "light"
	DarkModeDark   = "dark"
)

// Snapshot is every preference with defaults applied.
type Snapshot struct {
	LastUsedDevice       string        `json:"last_used_device,omitempty"`
	FirstTimeLaunch      bool          `json:"first_time_launch"`
	RefreshInterval      time.Duration `json:"refresh_interval"`
	NotificationsEnabled bool          `json:"notifications_enabled"`
	DarkMode             string        `json:"dark_mode"`
	OnboardingCompleted  bool          `json:"onboarding_completed"`
}

type Store struct {
	kv     kv.KVStore
	logger logger.Logger
}

func New(store kv.KVStore, log logger.Logger) *Store {
	if log == nil {
		log = logger.NewTestLogger()
	}

	return &Store{kv: store, logger: log}
}

func (s *Store) read(ctx context.Context, key string) (string, bool) {
	raw, found, err := s.kv.Get(ctx, key)
	if err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("Error reading preference")

		return "", false
	}

	if !found {
		return "", false
	}

	return string(raw), true
}

func (s *Store) readBool(ctx context.Context, key string, def bool) bool {
	raw, ok := s.read(ctx, key)
	if !ok {
		return def
	}

	v, err := strconv.ParseBool(raw)
	if err != nil {
		s.logger.Warn().Str("key", key).Str("value", raw).Msg("Ignoring malformed boolean preference")

		return def
	}

	return v
}

func (s *Store) write(ctx context.Context, key, value string) error {
	if err := s.kv.Put(ctx, key, []byte(value)); err != nil {
		return fmt.Errorf("save preference %s: %w", key, err)
	}

	return nil
}

// LastUsedDevice returns the id of the last selected device.
func (s *Store) LastUsedDevice(ctx context.Context) (string, bool) {
	v, ok := s.read(ctx, KeyLastUsedDevice)
	if !ok || v == "" {
		return "", false
	}

	return v, true
}

func (s *Store) SetLastUsedDevice(ctx context.Context, id string) error {
	return s.write(ctx, KeyLastUsedDevice, id)
}

// ClearLastUsedDevice is called when the remembered device is deleted.
func (s *Store) ClearLastUsedDevice(ctx context.Context) error {
	if err := s.kv.Delete(ctx, KeyLastUsedDevice); err != nil {
		return fmt.Errorf("clear preference %s: %w", KeyLastUsedDevice, err)
	}

	return nil
}

func (s *Store) FirstTimeLaunch(ctx context.Context) bool {
	return s.readBool(ctx, KeyFirstTimeLaunch, true)
}

func (s *Store) SetFirstTimeLaunch(ctx context.Context, v bool) error {
	return s.write(ctx, KeyFirstTimeLaunch, strconv.FormatBool(v))
}

// RefreshInterval is stored in whole seconds.
func (s *Store) RefreshInterval(ctx context.Context) time.Duration {
	raw, ok := s.read(ctx, KeyRefreshInterval)
	if !ok {
		return DefaultRefreshInterval
	}

	return parseInterval(raw, s.logger)
}

func (s *Store) SetRefreshInterval(ctx context.Context, d time.Duration) error {
	secs := int64(d / time.Second)
	if secs <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidRefreshInterval, d)
	}

	return s.write(ctx, KeyRefreshInterval, strconv.FormatInt(secs, 10))
}

// WatchRefreshInterval emits the interval now and after every change.
func (s *Store) WatchRefreshInterval(ctx context.Context) (<-chan time.Duration, error) {
	raw, err := s.kv.Watch(ctx, KeyRefreshInterval)
	if err != nil {
		return nil, err
	}

	out := make(chan time.Duration, 1)

	go func() {
		defer close(out)

		for v := range raw {
			d := DefaultRefreshInterval
			if v != nil {
				d = parseInterval(string(v), s.logger)
			}

			select {
			case out <- d:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

func parseInterval(raw string, log logger.Logger) time.Duration {
	secs, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || secs <= 0 {
		log.Warn().Str("value", raw).Msg("Ignoring invalid refresh interval preference")

		return DefaultRefreshInterval
	}

	return time.Duration(secs) * time.Second
}

func (s *Store) NotificationsEnabled(ctx context.Context) bool {
	return s.readBool(ctx, KeyNotificationsEnabled, true)
}

func (s *Store) SetNotificationsEnabled(ctx context.Context, v bool) error {
	return s.write(ctx, KeyNotificationsEnabled, strconv.FormatBool(v))
}

func (s *Store) DarkMode(ctx context.Context) string {
	v, ok := s.read(ctx, KeyDarkMode)
	if !ok || !validDarkMode(v) {
		return DarkModeSystem
	}

	return v
}

func (s *Store) SetDarkMode(ctx context.Context, mode string) error {
	if !validDarkMode(mode) {
		return fmt.Errorf("%w: %q", ErrInvalidDarkMode, mode)
	}

	return s.write(ctx, KeyDarkMode, mode)
}

func validDarkMode(mode string) bool {
	return mode == DarkModeSystem || mode == DarkModeLight || mode == DarkModeDark
}

func (s *Store) OnboardingCompleted(ctx context.Context) bool {
	return s.readBool(ctx, KeyOnboardingCompleted, false)
}

func (s *Store) SetOnboardingCompleted(ctx context.Context, v bool) error {
	return s.write(ctx, KeyOnboardingCompleted, strconv.FormatBool(v))
}

// Snapshot reads every preference.
func (s *Store) Snapshot(ctx context.Context) Snapshot {
	last, _ := s.LastUsedDevice(ctx)

	return Snapshot{
		LastUsedDevice:       last,
		FirstTimeLaunch:      s.FirstTimeLaunch(ctx),
		RefreshInterval:      s.RefreshInterval(ctx),
		NotificationsEnabled: s.NotificationsEnabled(ctx),
		DarkMode:             s.DarkMode(ctx),
		OnboardingCompleted:  s.OnboardingCompleted(ctx),
	}
}

// Set parses value for key and stores it. Used by the CLI.
func (s *Store) Set(ctx context.Context, key, value string) error {
	switch key {
	case KeyLastUsedDevice:
		return s.SetLastUsedDevice(ctx, value)
	case KeyRefreshInterval:
		d, err := parseDurationOrSeconds(value)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidRefreshInterval, err)
		}

		return s.SetRefreshInterval(ctx, d)
	case KeyDarkMode:
		return s.SetDarkMode(ctx, value)
	case KeyFirstTimeLaunch, KeyNotificationsEnabled, KeyOnboardingCompleted:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}

		return s.write(ctx, key, strconv.FormatBool(b))
	default:
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
}

func parseDurationOrSeconds(value string) (time.Duration, error) {
	if secs, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Duration(secs) * time.Second, nil
	}

	return time.ParseDuration(value)
}
