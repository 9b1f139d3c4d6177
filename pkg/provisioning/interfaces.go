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

package provisioning

import (
	"context"
	"errors"
	"time"

	"github.com/carverauto/aqualevel/pkg/deviceclient"
	"github.com/carverauto/aqualevel/pkg/models"
)

var (
	ErrNotOnSetupNetwork  = errors.New("not connected to a device setup network")
	ErrSSIDRequired       = errors.New("home network SSID is required")
	ErrDeviceNameRequired = errors.New("device name is required")
	ErrDeviceNotFound     = errors.New("device did not appear on the home network")
)

// NetworkProbe reports whether the host is joined to a setup access point.
type NetworkProbe interface {
	IsOnDeviceSetupNetwork(ctx context.Context) bool
	SetupDeviceName(ctx context.Context) (string, bool)
}

// Session binds the device client.
type Session interface {
	BindSetupAccessPoint(address string) (deviceclient.Target, error)
	SelectCurrent(ctx context.Context, id string) error
	Clear()
}

// Finder locates a device on the home network after it reboots.
type Finder interface {
	FindByHostname(ctx context.Context, hostname string, timeout time.Duration) (*models.DiscoveredDevice, error)
}

// Registry records the device once found.
type Registry interface {
	UpsertFromDiscovery(ctx context.Context, d *models.DiscoveredDevice, customName string) (string, error)
}
