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

// Package cli implements the aqualevel command-line tool.
package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Dracula theme colors.
const (
	draculaForeground = "#F8F8F2"
	draculaCyan       = "#8BE9FD"
	draculaGreen      = "#50FA7B"
	draculaOrange     = "#FFB86C"
	draculaPink       = "#FF79C6"
	draculaPurple     = "#BD93F9"
	draculaRed        = "#FF5555"
	draculaYellow     = "#F1FA8C"
	draculaComment    = "#6272A4"
)

const (
	defaultScanTimeout = 10 * time.Second
	defaultSince       = 24 * time.Hour
	defaultLimit       = 20
)

func newLogStyles() logStyles {
	return logStyles{
		info: lipgloss.NewStyle().
			Foreground(lipgloss.Color(draculaCyan)),
		success: lipgloss.NewStyle().
			Foreground(lipgloss.Color(draculaGreen)),
		warning: lipgloss.NewStyle().
			Foreground(lipgloss.Color(draculaYellow)),
		error: lipgloss.NewStyle().
			Foreground(lipgloss.Color(draculaRed)).
			Bold(true),
	}
}

func newViewStyles() viewStyles {
	return viewStyles{
		title: lipgloss.NewStyle().
			Foreground(lipgloss.Color(draculaPink)).
			Bold(true),
		label: lipgloss.NewStyle().
			Foreground(lipgloss.Color(draculaPurple)).
			Width(22),
		value: lipgloss.NewStyle().
			Foreground(lipgloss.Color(draculaForeground)),
		muted: lipgloss.NewStyle().
			Foreground(lipgloss.Color(draculaComment)),
		favorite: lipgloss.NewStyle().
			Foreground(lipgloss.Color(draculaYellow)),
		low: lipgloss.NewStyle().
			Foreground(lipgloss.Color(draculaRed)),
		high: lipgloss.NewStyle().
			Foreground(lipgloss.Color(draculaOrange)),
		ok: lipgloss.NewStyle().
			Foreground(lipgloss.Color(draculaGreen)),
		border: lipgloss.NewStyle().
			Foreground(lipgloss.Color(draculaCyan)),
	}
}

// SubcommandHandler defines the interface for parsing subcommand flags.
type SubcommandHandler interface {
	Parse(args []string, cfg *CmdConfig) error
}

var _ SubcommandHandler = command{}

// command couples a subcommand's flags with its action.
type command struct {
	flags   func(fs *flag.FlagSet, cfg *CmdConfig)
	maxArgs int
	run     func(ctx context.Context, app *App, cfg *CmdConfig) error
}

func (c command) Parse(args []string, cfg *CmdConfig) error {
	fs := flag.NewFlagSet(cfg.SubCmd, flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	if c.flags != nil {
		c.flags(fs, cfg)
	}

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%s: %w", cfg.SubCmd, err)
	}

	cfg.Args = fs.Args()
	if len(cfg.Args) > c.maxArgs {
		return fmt.Errorf("%s: %w", cfg.SubCmd, errTooManyArgs)
	}

	return nil
}

func deviceFlag(fs *flag.FlagSet, cfg *CmdConfig) {
	fs.StringVar(&cfg.DeviceID, "device", "", "device id or name (defaults to the current device)")
}

func commands() map[string]command {
	return map[string]command{
		"discover": {
			flags: func(fs *flag.FlagSet, cfg *CmdConfig) {
				fs.DurationVar(&cfg.Timeout, "timeout", 0, "how long to browse")
				fs.BoolVar(&cfg.Save, "save", false, "add found devices to the directory")
			},
			run: runDiscover,
		},
		"find": {
			flags: func(fs *flag.FlagSet, cfg *CmdConfig) {
				fs.StringVar(&cfg.Hostname, "hostname", "", "hostname such as aqualevel-kitchen.local")
				fs.DurationVar(&cfg.Timeout, "timeout", 0, "how long to browse")
				fs.BoolVar(&cfg.Save, "save", false, "add the device to the directory")
			},
			run: runFind,
		},
		"list": {
			flags: func(fs *flag.FlagSet, cfg *CmdConfig) {
				fs.BoolVar(&cfg.FavoritesOnly, "favorites", false, "only favorites")
			},
			run: runList,
		},
		"select": {maxArgs: 1, run: runSelect},
		"rename": {maxArgs: 2, run: runRename},
		"delete": {maxArgs: 1, run: runDelete},
		"favorite": {
			flags: func(fs *flag.FlagSet, cfg *CmdConfig) {
				fs.BoolVar(&cfg.Unfavorite, "off", false, "remove from favorites")
			},
			maxArgs: 1,
			run:     runFavorite,
		},
		"status":   {flags: deviceFlag, run: runStatus},
		"settings": {flags: deviceFlag, run: runSettings},
		"refresh": {
			flags: func(fs *flag.FlagSet, cfg *CmdConfig) {
				deviceFlag(fs, cfg)
				fs.BoolVar(&cfg.All, "all", false, "refresh every known device")
			},
			run: runRefresh,
		},
		"watch": {flags: deviceFlag, run: runWatch},
		"history": {
			flags: func(fs *flag.FlagSet, cfg *CmdConfig) {
				deviceFlag(fs, cfg)
				fs.DurationVar(&cfg.Since, "since", defaultSince, "how far back to look")
				fs.IntVar(&cfg.Limit, "limit", defaultLimit, "maximum rows to print")
			},
			run: runHistory,
		},
		"set-tank": {
			flags: func(fs *flag.FlagSet, cfg *CmdConfig) {
				deviceFlag(fs, cfg)
				fs.Var(optFloat{&cfg.Tank.TankHeight}, "height", "tank height in cm")
				fs.Var(optFloat{&cfg.Tank.TankDiameter}, "diameter", "tank diameter in cm")
				fs.Var(optFloat{&cfg.Tank.TankVolume}, "volume", "tank volume in litres")
			},
			run: runSetTank,
		},
		"set-sensor": {
			flags: func(fs *flag.FlagSet, cfg *CmdConfig) {
				deviceFlag(fs, cfg)
				fs.Var(optFloat{&cfg.Sensor.SensorOffset}, "offset", "sensor offset in cm")
				fs.Var(optFloat{&cfg.Sensor.EmptyDistance}, "empty", "distance reading of an empty tank")
				fs.Var(optFloat{&cfg.Sensor.FullDistance}, "full", "distance reading of a full tank")
				fs.Var(optInt{&cfg.Sensor.MeasurementInterval}, "interval", "seconds between measurements")
				fs.Var(optInt{&cfg.Sensor.ReadingSmoothing}, "smoothing", "readings averaged together")
			},
			run: runSetSensor,
		},
		"set-alerts": {
			flags: func(fs *flag.FlagSet, cfg *CmdConfig) {
				deviceFlag(fs, cfg)
				fs.Var(optInt{&cfg.Alerts.AlertLevelLow}, "low", "low alert percentage")
				fs.Var(optInt{&cfg.Alerts.AlertLevelHigh}, "high", "high alert percentage")
				fs.Var(optBool{&cfg.Alerts.AlertsEnabled}, "enabled", "enable or disable alerts")
			},
			run: runSetAlerts,
		},
		"calibrate": {
			flags: func(fs *flag.FlagSet, cfg *CmdConfig) {
				deviceFlag(fs, cfg)
				fs.StringVar(&cfg.Calibration, "type", "", "empty or full")
			},
			run: runCalibrate,
		},
		"reset-wifi":    {flags: deviceFlag, run: runResetWiFi},
		"scan-networks": {run: runScanNetworks},
		"setup": {
			flags: func(fs *flag.FlagSet, cfg *CmdConfig) {
				fs.StringVar(&cfg.SSID, "ssid", "", "home network SSID")
				fs.StringVar(&cfg.Password, "password", "", "home network password")
				fs.StringVar(&cfg.DeviceName, "name", "", "device name (defaults to the name in the setup SSID)")
			},
			run: runSetup,
		},
		"wifi":  {run: runWiFi},
		"prefs": {maxArgs: 2, run: runPrefs},
	}
}

// ParseArgs parses global options, the subcommand and its options.
func ParseArgs(args []string) (*CmdConfig, error) {
	cfg := &CmdConfig{}

	fs := flag.NewFlagSet("aqualevel", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.BoolVar(&cfg.Help, "help", false, "show help message")
	fs.StringVar(&cfg.ConfigFile, "config", "", "config file")
	fs.StringVar(&cfg.EnvFile, "env", ".env", ".env file")
	fs.BoolVar(&cfg.JSON, "json", false, "JSON output")
	fs.BoolVar(&cfg.Version, "version", false, "print the version")

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	rest := fs.Args()
	if cfg.Version {
		return cfg, nil
	}

	if cfg.Help || len(rest) == 0 {
		cfg.Help = true
		return cfg, nil
	}

	cfg.SubCmd = rest[0]

	cmd, ok := commands()[cfg.SubCmd]
	if !ok {
		return cfg, fmt.Errorf("%w: %s", errUnknownCommand, cfg.SubCmd)
	}

	if err := cmd.Parse(rest[1:], cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// ParseFlags parses os.Args.
func ParseFlags() (*CmdConfig, error) {
	return ParseArgs(os.Args[1:])
}

// Run executes the parsed subcommand against app.
func Run(ctx context.Context, app *App, cfg *CmdConfig) error {
	cmd, ok := commands()[cfg.SubCmd]
	if !ok {
		return fmt.Errorf("%w: %s", errUnknownCommand, cfg.SubCmd)
	}

	return cmd.run(ctx, app, cfg)
}
