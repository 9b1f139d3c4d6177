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

// Package netprobe answers questions about the WiFi network the host is joined to.
// Every query fails closed: errors are logged and reported as "absent".
package netprobe

import (
	"context"

	"github.com/carverauto/aqualevel/pkg/logger"
	"github.com/carverauto/aqualevel/pkg/models"
)

// Source reads the current SSID from the platform.
type Source interface {
	// SSID returns the joined network, or ErrNoWiFi when not on WiFi.
	SSID(ctx context.Context) (string, error)
	// Subscribe signals whenever connectivity may have changed. The channel
	// is closed when ctx ends.
	Subscribe(ctx context.Context) (<-chan struct{}, error)
}

type Probe struct {
	src    Source
	logger logger.Logger
}

func New(src Source, log logger.Logger) *Probe {
	return &Probe{src: src, logger: log}
}

// CurrentSSID returns the joined SSID, or false when it cannot be determined.
func (p *Probe) CurrentSSID(ctx context.Context) (string, bool) {
	if p.src == nil {
		return "", false
	}

	ssid, err := p.src.SSID(ctx)
	if err != nil {
		p.logger.Debug().Err(err).Msg("Could not determine current SSID")

		return "", false
	}

	if ssid == "" {
		return "", false
	}

	return ssid, true
}

// IsOnDeviceSetupNetwork reports whether the host is joined to a device's setup access point.
func (p *Probe) IsOnDeviceSetupNetwork(ctx context.Context) bool {
	ssid, ok := p.CurrentSSID(ctx)

	return ok && models.IsSetupSSID(ssid)
}

// SetupDeviceName extracts the device name from a setup SSID such as "AquaLevel-Kitchen-Setup".
func (p *Probe) SetupDeviceName(ctx context.Context) (string, bool) {
	ssid, ok := p.CurrentSSID(ctx)
	if !ok {
		return "", false
	}

	return models.DeviceNameFromSetupSSID(ssid)
}

// Changes emits WiFi availability now and again whenever it flips.
func (p *Probe) Changes(ctx context.Context) (<-chan bool, error) {
	if p.src == nil {
		return nil, ErrNoSource
	}

	notify, err := p.src.Subscribe(ctx)
	if err != nil {
		return nil, err
	}

	out := make(chan bool, 1)

	go func() {
		defer close(out)

		_, last := p.CurrentSSID(ctx)
		if !send(ctx, out, last) {
			return
		}

		for range notify {
			_, cur := p.CurrentSSID(ctx)
			if cur == last {
				continue
			}

			last = cur

			if !send(ctx, out, cur) {
				return
			}
		}
	}()

	return out, nil
}

func send(ctx context.Context, out chan<- bool, v bool) bool {
	select {
	case out <- v:
		return true
	case <-ctx.Done():
		return false
	}
}
