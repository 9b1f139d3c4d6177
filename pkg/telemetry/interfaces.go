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

//go:generate mockgen -destination=mock_telemetry.go -package=telemetry github.com/carverauto/aqualevel/pkg/telemetry Notifier

package telemetry

import (
	"context"
	"time"

	"github.com/carverauto/aqualevel/pkg/models"
)

// Directory is the subset of the device directory telemetry writes to.
type Directory interface {
	Get(ctx context.Context, id string) (*models.Device, error)
	ListAll(ctx context.Context) ([]*models.Device, error)
	RecordTelemetry(ctx context.Context, id string, percentage, volume float64, ts time.Time) error
	ApplyTankData(ctx context.Context, id string, data *models.TankData) error
	LatestReading(ctx context.Context, id string) (*models.WaterLevelHistory, error)
	InsertReading(ctx context.Context, reading *models.WaterLevelHistory) (uint64, error)
	PruneReadings(ctx context.Context, id string, cutoff time.Time) (int, error)
	PruneAllReadings(ctx context.Context, cutoff time.Time) (int, error)
}

// Preferences supplies the refresh cadence and the notification switch.
type Preferences interface {
	RefreshInterval(ctx context.Context) time.Duration
	WatchRefreshInterval(ctx context.Context) (<-chan time.Duration, error)
	NotificationsEnabled(ctx context.Context) bool
}

// Notifier delivers alerts to the user.
type Notifier interface {
	Notify(ctx context.Context, alert Alert) error
}
