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

// Package session tracks which device the client is currently bound to.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/carverauto/aqualevel/pkg/deviceclient"
	"github.com/carverauto/aqualevel/pkg/logger"
)

// Session owns the current device selection. Every rebind produces a new
// target generation so callers can tell whether a response still belongs to
// the device that is bound now.
type Session struct {
	dir    Directory
	prefs  Preferences
	prober Prober
	logger logger.Logger

	mu         sync.RWMutex
	currentID  string
	target     deviceclient.Target
	bound      bool
	generation uint64
}

var _ deviceclient.TargetProvider = (*Session)(nil)

func New(dir Directory, prefs Preferences, prober Prober, log logger.Logger) *Session {
	return &Session{
		dir:    dir,
		prefs:  prefs,
		prober: prober,
		logger: log,
	}
}

// SelectCurrent binds the session to a known device and remembers it as the
// last used device. An unknown id leaves the session untouched.
func (s *Session) SelectCurrent(ctx context.Context, id string) error {
	_, err := s.selectCurrent(ctx, id)

	return err
}

func (s *Session) selectCurrent(ctx context.Context, id string) (deviceclient.Target, error) {
	if s.dir == nil {
		return deviceclient.Target{}, errDirectoryUnset
	}

	dev, err := s.dir.Get(ctx, id)
	if err != nil {
		return deviceclient.Target{}, fmt.Errorf("select device %s: %w", id, err)
	}

	baseURL := deviceclient.NormalizeBaseURL(dev.IPAddress)
	if baseURL == "" {
		return deviceclient.Target{}, fmt.Errorf("select device %s: %w", id, ErrNoAddress)
	}

	s.mu.Lock()
	s.generation++
	s.currentID = dev.ID
	s.target = deviceclient.Target{DeviceID: dev.ID, BaseURL: baseURL, Generation: s.generation}
	s.bound = true
	target := s.target
	s.mu.Unlock()

	s.logger.Info().Str("device_id", dev.ID).Str("base_url", baseURL).Msg("Selected device")

	if s.prefs != nil {
		if err := s.prefs.SetLastUsedDevice(ctx, dev.ID); err != nil {
			s.logger.Warn().Err(err).Str("device_id", dev.ID).Msg("Failed to persist last used device")
		}
	}

	return target, nil
}

// BindSetupAccessPoint points the client at a device's setup access point.
// There is no device id and nothing is persisted.
func (s *Session) BindSetupAccessPoint(address string) (deviceclient.Target, error) {
	baseURL := deviceclient.NormalizeBaseURL(address)
	if baseURL == "" {
		return deviceclient.Target{}, errSetupAddress
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.generation++
	s.currentID = ""
	s.target = deviceclient.Target{BaseURL: baseURL, Generation: s.generation}
	s.bound = true

	s.logger.Debug().Str("base_url", baseURL).Msg("Bound to setup access point")

	return s.target, nil
}

// Clear unbinds the session without touching the persisted preference.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.generation++
	s.currentID = ""
	s.target = deviceclient.Target{}
	s.bound = false
}

func (s *Session) CurrentDeviceID() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.currentID, s.currentID != ""
}

// Target implements deviceclient.TargetProvider.
func (s *Session) Target() (deviceclient.Target, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.target, s.bound
}

// IsCurrent reports whether target is still the bound generation.
func (s *Session) IsCurrent(target deviceclient.Target) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.bound && target.Generation == s.target.Generation
}

// ReconnectToLast selects the last used device and checks it answers.
// It returns the id only when both steps succeed.
func (s *Session) ReconnectToLast(ctx context.Context) (string, bool) {
	if s.prefs == nil {
		return "", false
	}

	id, ok := s.prefs.LastUsedDevice(ctx)
	if !ok {
		return "", false
	}

	if !s.ProbeDevice(ctx, id) {
		return "", false
	}

	return id, true
}

// ProbeDevice selects id and issues one liveness request against the target
// that selection bound, even if the session is rebound meanwhile.
func (s *Session) ProbeDevice(ctx context.Context, id string) bool {
	target, err := s.selectCurrent(ctx, id)
	if err != nil {
		s.logger.Debug().Err(err).Str("device_id", id).Msg("Device not selectable")

		return false
	}

	if s.prober == nil {
		return false
	}

	if err := s.prober.Probe(ctx, target); err != nil {
		s.logger.Info().Err(err).Str("device_id", id).Msg("Device did not respond")

		return false
	}

	return true
}
