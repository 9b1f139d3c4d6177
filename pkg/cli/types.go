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

package cli

import (
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/carverauto/aqualevel/pkg/models"
)

// CmdConfig holds parsed command-line configuration.
type CmdConfig struct {
	Help       bool
	Version    bool
	SubCmd     string
	ConfigFile string
	EnvFile    string
	JSON       bool
	Args       []string

	DeviceID      string
	Timeout       time.Duration
	Save          bool
	FavoritesOnly bool
	All           bool
	Unfavorite    bool
	Hostname      string
	Since         time.Duration
	Limit         int
	Calibration   string

	SSID       string
	Password   string
	DeviceName string

	Tank   models.TankSettingsRequest
	Sensor models.SensorSettingsRequest
	Alerts models.AlertSettingsRequest
}

// logStyles defines styles for logging messages
type logStyles struct {
	info, success, warning, error lipgloss.Style
}

// viewStyles defines styles for rendered device output.
type viewStyles struct {
	title, label, value, muted, favorite, low, high, ok, border lipgloss.Style
}
