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

//go:generate mockgen -destination=mock_session.go -package=session github.com/carverauto/aqualevel/pkg/session Directory,Preferences,Prober

package session

import (
	"context"

	"github.com/carverauto/aqualevel/pkg/deviceclient"
	"github.com/carverauto/aqualevel/pkg/models"
)

// Directory looks up devices by id.
type Directory interface {
	Get(ctx context.Context, id string) (*models.Device, error)
}

// Preferences persists the last selected device.
type Preferences interface {
	LastUsedDevice(ctx context.Context) (string, bool)
	SetLastUsedDevice(ctx context.Context, id string) error
}

// Prober performs one liveness request against an explicit target.
type Prober interface {
	Probe(ctx context.Context, target deviceclient.Target) error
}
