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

package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/carverauto/aqualevel/pkg/logger"
)

var (
	errDataPathRequired     = errors.New("data_path is required")
	errInvalidServiceType   = errors.New("discovery.service_type must start with '_'")
	errInvalidBufferSize    = errors.New("discovery.buffer_size must be > 0")
	errInvalidTimeout       = errors.New("timeout must be > 0")
	errInvalidConcurrency   = errors.New("telemetry.concurrency must be > 0")
	errInvalidSetupAddress  = errors.New("provisioning.setup_address must be an IP address")
	errInvalidMaxAttempts   = errors.New("provisioning.max_attempts must be > 0")
	errConnectExceedsTotal  = errors.New("client.connect_timeout must not exceed client.request_timeout")
	errScheduleRequired     = errors.New("telemetry.maintenance_schedule is required")
	errInvalidMetricsListen = errors.New("metrics_addr must be host:port")
)

// DiscoveryConfig tunes the mDNS browser.
type DiscoveryConfig struct {
	ServiceType    string   `json:"service_type" toml:"service_type"`
	Domain         string   `json:"domain" toml:"domain"`
	NameFilter     string   `json:"name_filter" toml:"name_filter"`
	BufferSize     int      `json:"buffer_size" toml:"buffer_size"`
	ResolveTimeout Duration `json:"resolve_timeout" toml:"resolve_timeout"`
	ScanTimeout    Duration `json:"scan_timeout" toml:"scan_timeout"`
}

// ClientConfig bounds device API calls.
type ClientConfig struct {
	ConnectTimeout Duration `json:"connect_timeout" toml:"connect_timeout"`
	RequestTimeout Duration `json:"request_timeout" toml:"request_timeout"`
}

// TelemetryConfig tunes background refresh and maintenance.
type TelemetryConfig struct {
	Concurrency         int    `json:"concurrency" toml:"concurrency"`
	MaintenanceSchedule string `json:"maintenance_schedule" toml:"maintenance_schedule"`
}

// ProvisioningConfig tunes the setup-AP handoff.
type ProvisioningConfig struct {
	SetupAddress string   `json:"setup_address" toml:"setup_address"`
	SettleDelay  Duration `json:"settle_delay" toml:"settle_delay"`
	FindTimeout  Duration `json:"find_timeout" toml:"find_timeout"`
	MaxAttempts  int      `json:"max_attempts" toml:"max_attempts"`
}

// AppConfig is the top-level configuration shared by the CLI and simulator.
type AppConfig struct {
	DataPath     string             `json:"data_path" toml:"data_path"`
	MetricsAddr  string             `json:"metrics_addr" toml:"metrics_addr"`
	SSIDOverride string             `json:"ssid_override" toml:"ssid_override"`
	Logging      *logger.Config     `json:"logging" toml:"logging"`
	Discovery    DiscoveryConfig    `json:"discovery" toml:"discovery"`
	Client       ClientConfig       `json:"client" toml:"client"`
	Telemetry    TelemetryConfig    `json:"telemetry" toml:"telemetry"`
	Provisioning ProvisioningConfig `json:"provisioning" toml:"provisioning"`
}

// DefaultDataPath is ~/.aqualevel/aqualevel.db, or a relative path when no home exists.
func DefaultDataPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "aqualevel.db"
	}

	return filepath.Join(home, ".aqualevel", "aqualevel.db")
}

// DefaultAppConfig returns the built-in defaults.
func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		DataPath: DefaultDataPath(),
		Logging:  logger.DefaultConfig(),
		Discovery: DiscoveryConfig{
			ServiceType:    "_http._tcp",
			Domain:         "local.",
			NameFilter:     "aqualevel",
			BufferSize:     32,
			ResolveTimeout: Duration(5 * time.Second),
			ScanTimeout:    Duration(10 * time.Second),
		},
		Client: ClientConfig{
			ConnectTimeout: Duration(10 * time.Second),
			RequestTimeout: Duration(30 * time.Second),
		},
		Telemetry: TelemetryConfig{
			Concurrency:         4,
			MaintenanceSchedule: "@hourly",
		},
		Provisioning: ProvisioningConfig{
			SetupAddress: "192.168.4.1",
			SettleDelay:  Duration(5 * time.Second),
			FindTimeout:  Duration(30 * time.Second),
			MaxAttempts:  3,
		},
	}
}

// Validate implements Validator.
func (c *AppConfig) Validate() error {
	if c.DataPath == "" {
		return errDataPathRequired
	}

	if err := c.Discovery.validate(); err != nil {
		return err
	}

	if c.Client.ConnectTimeout <= 0 || c.Client.RequestTimeout <= 0 {
		return fmt.Errorf("client: %w", errInvalidTimeout)
	}

	if c.Client.ConnectTimeout > c.Client.RequestTimeout {
		return errConnectExceedsTotal
	}

	if c.Telemetry.Concurrency <= 0 {
		return errInvalidConcurrency
	}

	if c.Telemetry.MaintenanceSchedule == "" {
		return errScheduleRequired
	}

	if net.ParseIP(c.Provisioning.SetupAddress) == nil {
		return errInvalidSetupAddress
	}

	if c.Provisioning.MaxAttempts <= 0 {
		return errInvalidMaxAttempts
	}

	if c.Provisioning.FindTimeout <= 0 {
		return fmt.Errorf("provisioning.find_timeout: %w", errInvalidTimeout)
	}

	if c.MetricsAddr != "" {
		if _, _, err := net.SplitHostPort(c.MetricsAddr); err != nil {
			return fmt.Errorf("%w: %w", errInvalidMetricsListen, err)
		}
	}

	return nil
}

func (d *DiscoveryConfig) validate() error {
	if d.ServiceType == "" || d.ServiceType[0] != '_' {
		return errInvalidServiceType
	}

	if d.BufferSize <= 0 {
		return errInvalidBufferSize
	}

	if d.ResolveTimeout <= 0 || d.ScanTimeout <= 0 {
		return fmt.Errorf("discovery: %w", errInvalidTimeout)
	}

	return nil
}
