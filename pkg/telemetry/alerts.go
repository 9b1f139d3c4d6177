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

package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/carverauto/aqualevel/pkg/logger"
	"github.com/carverauto/aqualevel/pkg/models"
)

// AlertKind classifies an alert.
type AlertKind string

const (
	AlertLow     AlertKind = "low"
	AlertHigh    AlertKind = "high"
	AlertOffline AlertKind = "offline"
)

type Alert struct {
	Kind       AlertKind
	DeviceID   string
	DeviceName string
	Percentage float64
	Threshold  int
	At         time.Time
}

func (a Alert) String() string {
	switch a.Kind {
	case AlertLow:
		return fmt.Sprintf("%s is low: %.0f%% (threshold %d%%)", a.DeviceName, a.Percentage, a.Threshold)
	case AlertHigh:
		return fmt.Sprintf("%s is high: %.0f%% (threshold %d%%)", a.DeviceName, a.Percentage, a.Threshold)
	case AlertOffline:
		return fmt.Sprintf("%s is not responding", a.DeviceName)
	default:
		return string(a.Kind)
	}
}

// LogNotifier writes alerts to the log.
type LogNotifier struct {
	Logger logger.Logger
}

func (n LogNotifier) Notify(_ context.Context, alert Alert) error {
	n.Logger.Warn().
		Str("kind", string(alert.Kind)).
		Str("device_id", alert.DeviceID).
		Float64("percentage", alert.Percentage).
		Msg(alert.String())

	return nil
}

// levelFor returns the alert a reading falls into, or "" when it is in range.
func levelFor(data *models.TankData) (AlertKind, int) {
	switch {
	case data.Percentage <= float64(data.AlertLevelLow):
		return AlertLow, data.AlertLevelLow
	case data.Percentage >= float64(data.AlertLevelHigh):
		return AlertHigh, data.AlertLevelHigh
	default:
		return "", 0
	}
}

// alertState remembers per device what was last raised so a level alert fires
// once when the tank crosses a threshold, and offline fires once per outage.
type alertState struct {
	mu        sync.Mutex
	level     map[string]AlertKind
	reachable map[string]bool
}

func newAlertState() *alertState {
	return &alertState{
		level:     make(map[string]AlertKind),
		reachable: make(map[string]bool),
	}
}

// crossed records kind for id and reports whether it differs from last time.
func (s *alertState) crossed(id string, kind AlertKind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.level[id]
	s.level[id] = kind

	return kind != "" && kind != prev
}

// markReachable records reachability and reports whether id just went offline.
func (s *alertState) markReachable(id string, ok bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, known := s.reachable[id]
	s.reachable[id] = ok

	return known && prev && !ok
}

func (s *alertState) forget(id string) {
	s.mu.Lock()
	delete(s.level, id)
	delete(s.reachable, id)
	s.mu.Unlock()
}
