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

// Package provisioning moves a device from its setup access point onto the home network.
package provisioning

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/carverauto/aqualevel/pkg/config"
	"github.com/carverauto/aqualevel/pkg/deviceclient"
	"github.com/carverauto/aqualevel/pkg/logger"
	"github.com/carverauto/aqualevel/pkg/models"
)

const (
	defaultInitialBackoff = 2 * time.Second
	defaultMaxBackoff     = 15 * time.Second
)

// Option customizes a Provisioner.
type Option func(*Provisioner)

// WithInitialBackoff sets the first wait between find attempts.
func WithInitialBackoff(d time.Duration) Option {
	return func(p *Provisioner) { p.initialBackoff = d }
}

type Provisioner struct {
	probe    NetworkProbe
	session  Session
	client   *deviceclient.Client
	finder   Finder
	registry Registry
	cfg      config.ProvisioningConfig
	logger   logger.Logger

	initialBackoff time.Duration
}

func New(
	probe NetworkProbe,
	sess Session,
	client *deviceclient.Client,
	finder Finder,
	registry Registry,
	cfg config.ProvisioningConfig,
	log logger.Logger,
	opts ...Option,
) *Provisioner {
	if cfg.SetupAddress == "" {
		cfg.SetupAddress = models.SetupAccessPointAddress
	}

	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}

	if cfg.FindTimeout <= 0 {
		cfg.FindTimeout = config.Duration(30 * time.Second)
	}

	p := &Provisioner{
		probe:          probe,
		session:        sess,
		client:         client,
		finder:         finder,
		registry:       registry,
		cfg:            cfg,
		logger:         log,
		initialBackoff: defaultInitialBackoff,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// setupEndpoint binds the session to the setup access point.
func (p *Provisioner) setupEndpoint(ctx context.Context) (*deviceclient.Endpoint, error) {
	if !p.probe.IsOnDeviceSetupNetwork(ctx) {
		return nil, ErrNotOnSetupNetwork
	}

	target, err := p.session.BindSetupAccessPoint(p.cfg.SetupAddress)
	if err != nil {
		return nil, err
	}

	return p.client.Endpoint(target), nil
}

// ScanNetworks lists the networks the device in setup mode can see.
func (p *Provisioner) ScanNetworks(ctx context.Context) ([]models.WiFiNetwork, error) {
	ep, err := p.setupEndpoint(ctx)
	if err != nil {
		return nil, err
	}

	return ep.ScanNetworks(ctx)
}

// Provision sends home network credentials to the device on its setup access
// point, waits for it to reappear on the home network, records it and selects
// it. An empty deviceName falls back to the name in the setup SSID.
func (p *Provisioner) Provision(ctx context.Context, ssid, password, deviceName string) (string, error) {
	if strings.TrimSpace(ssid) == "" {
		return "", ErrSSIDRequired
	}

	deviceName = strings.TrimSpace(deviceName)
	if deviceName == "" {
		name, ok := p.probe.SetupDeviceName(ctx)
		if !ok {
			return "", ErrDeviceNameRequired
		}

		deviceName = name
	}

	ep, err := p.setupEndpoint(ctx)
	if err != nil {
		return "", err
	}

	id, err := p.handOff(ctx, ep, ssid, password, deviceName)
	if err != nil {
		p.session.Clear()

		return id, err
	}

	return id, nil
}

// handOff runs with the session bound to the setup access point. It returns
// once the device is selected on the home network.
func (p *Provisioner) handOff(ctx context.Context, ep *deviceclient.Endpoint, ssid, password, deviceName string) (string, error) {
	err := ep.ConfigureNetwork(ctx, &models.NetworkSettingsRequest{
		SSID:       ssid,
		Password:   password,
		DeviceName: deviceName,
	})
	if err != nil {
		return "", fmt.Errorf("send network settings: %w", err)
	}

	hostname := models.HostnameForDeviceName(deviceName)

	p.logger.Info().
		Str("ssid", ssid).
		Str("hostname", hostname).
		Dur("settle", p.cfg.SettleDelay.Std()).
		Msg("Network settings sent; waiting for device to join")

	if err := sleep(ctx, p.cfg.SettleDelay.Std()); err != nil {
		return "", err
	}

	dev, err := p.find(ctx, hostname)
	if err != nil {
		return "", err
	}

	id, err := p.registry.UpsertFromDiscovery(ctx, dev, deviceName)
	if err != nil {
		return "", fmt.Errorf("record device: %w", err)
	}

	if err := p.session.SelectCurrent(ctx, id); err != nil {
		return id, fmt.Errorf("select device: %w", err)
	}

	p.logger.Info().Str("device_id", id).Str("ip", dev.IPAddress).Msg("Device provisioned")

	return id, nil
}

func (p *Provisioner) find(ctx context.Context, hostname string) (*models.DiscoveredDevice, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.initialBackoff
	bo.MaxInterval = defaultMaxBackoff

	attempt := 0

	operation := func() (*models.DiscoveredDevice, error) {
		attempt++

		dev, err := p.finder.FindByHostname(ctx, hostname, p.cfg.FindTimeout.Std())
		if err == nil {
			return dev, nil
		}

		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}

		p.logger.Debug().Err(err).Int("attempt", attempt).Str("hostname", hostname).Msg("Device not found yet")

		return nil, err
	}

	dev, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(uint(p.cfg.MaxAttempts)),
	)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}

		return nil, fmt.Errorf("%w: %s after %d attempts: %w", ErrDeviceNotFound, hostname, attempt, err)
	}

	return dev, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
