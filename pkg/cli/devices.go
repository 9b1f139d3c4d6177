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
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/carverauto/aqualevel/pkg/directory"
	"github.com/carverauto/aqualevel/pkg/models"
)

// resolveDevice finds a device by id or, failing that, by case-insensitive name.
func (a *App) resolveDevice(ctx context.Context, ref string) (*models.Device, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, errDeviceArgRequired
	}

	dev, err := a.Directory.Get(ctx, ref)
	if err == nil {
		return dev, nil
	}

	if !errors.Is(err, directory.ErrDeviceNotFound) {
		return nil, err
	}

	devices, err := a.Directory.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	var matches []*models.Device

	for _, d := range devices {
		if strings.EqualFold(d.Name, ref) {
			matches = append(matches, d)
		}
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: %s", directory.ErrDeviceNotFound, ref)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("%w: %s", errAmbiguousDevice, ref)
	}
}

// bindDevice selects ref, or the last used device when ref is empty.
func (a *App) bindDevice(ctx context.Context, ref string) (*models.Device, error) {
	if ref == "" {
		last, ok := a.Preferences.LastUsedDevice(ctx)
		if !ok {
			return nil, errNoDeviceSelected
		}

		ref = last
	}

	dev, err := a.resolveDevice(ctx, ref)
	if err != nil {
		return nil, err
	}

	if err := a.Session.SelectCurrent(ctx, dev.ID); err != nil {
		return nil, err
	}

	return dev, nil
}

func (a *App) scanTimeout(flagValue time.Duration) time.Duration {
	if flagValue > 0 {
		return flagValue
	}

	if d := a.Config.Discovery.ScanTimeout.Std(); d > 0 {
		return d
	}

	return defaultScanTimeout
}

func runDiscover(ctx context.Context, app *App, cfg *CmdConfig) error {
	timeout := app.scanTimeout(cfg.Timeout)

	scanCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if !app.json {
		app.infof("Browsing for devices for %s...", timeout)
	}

	scan := app.Discovery.Discover(scanCtx)
	defer scan.Stop()

	var found []*models.DiscoveredDevice

	for dev := range scan.Devices() {
		found = append(found, dev)

		if !app.json {
			app.successf("Found %s at %s (%s)", dev.Hostname, dev.IPAddress, dev.ServiceName)
		}

		if cfg.Save {
			if _, err := app.Directory.UpsertFromDiscovery(ctx, dev, ""); err != nil {
				return err
			}
		}
	}

	if err := scan.Err(); err != nil {
		return err
	}

	if app.json {
		return app.printJSON(found)
	}

	if len(found) == 0 {
		app.warnf("No devices found.")
	} else if cfg.Save {
		app.infof("Saved %d device(s).", len(found))
	}

	return nil
}

func runFind(ctx context.Context, app *App, cfg *CmdConfig) error {
	if cfg.Hostname == "" {
		return errHostnameRequired
	}

	dev, err := app.Discovery.FindByHostname(ctx, cfg.Hostname, app.scanTimeout(cfg.Timeout))
	if err != nil {
		return err
	}

	if cfg.Save {
		if _, err := app.Directory.UpsertFromDiscovery(ctx, dev, ""); err != nil {
			return err
		}
	}

	if app.json {
		return app.printJSON(dev)
	}

	app.successf("Found %s at %s", dev.Hostname, dev.IPAddress)

	return nil
}

func runList(ctx context.Context, app *App, cfg *CmdConfig) error {
	var (
		devices []*models.Device
		err     error
	)

	if cfg.FavoritesOnly {
		devices, err = app.Directory.ListFavorites(ctx)
	} else {
		devices, err = app.Directory.ListAll(ctx)
	}

	if err != nil {
		return err
	}

	if app.json {
		return app.printJSON(devices)
	}

	current, _ := app.Preferences.LastUsedDevice(ctx)
	app.renderDevices(devices, current)

	return nil
}

func firstArg(cfg *CmdConfig) string {
	if len(cfg.Args) == 0 {
		return ""
	}

	return cfg.Args[0]
}

func runSelect(ctx context.Context, app *App, cfg *CmdConfig) error {
	ref := firstArg(cfg)
	if ref == "" {
		return errDeviceArgRequired
	}

	dev, err := app.bindDevice(ctx, ref)
	if err != nil {
		return err
	}

	target, _ := app.Session.Target()
	reachable := app.Client.Probe(ctx, target) == nil

	if app.json {
		return app.printJSON(map[string]interface{}{"device": dev, "reachable": reachable})
	}

	app.successf("Selected %s (%s)", dev.DisplayName(), dev.ID)

	if !reachable {
		app.warnf("%s is not responding right now.", dev.DisplayName())
	}

	return nil
}

func runRename(ctx context.Context, app *App, cfg *CmdConfig) error {
	if len(cfg.Args) < 2 || strings.TrimSpace(cfg.Args[1]) == "" {
		return errNameRequired
	}

	dev, err := app.resolveDevice(ctx, cfg.Args[0])
	if err != nil {
		return err
	}

	name := strings.TrimSpace(cfg.Args[1])
	if err := app.Directory.Rename(ctx, dev.ID, name); err != nil {
		return err
	}

	app.successf("Renamed %s to %s", dev.DisplayName(), name)

	return nil
}

func runFavorite(ctx context.Context, app *App, cfg *CmdConfig) error {
	dev, err := app.resolveDevice(ctx, firstArg(cfg))
	if err != nil {
		return err
	}

	if err := app.Directory.SetFavorite(ctx, dev.ID, !cfg.Unfavorite); err != nil {
		return err
	}

	if cfg.Unfavorite {
		app.successf("Removed %s from favorites", dev.DisplayName())
	} else {
		app.successf("Added %s to favorites", dev.DisplayName())
	}

	return nil
}

func runDelete(ctx context.Context, app *App, cfg *CmdConfig) error {
	dev, err := app.resolveDevice(ctx, firstArg(cfg))
	if err != nil {
		return err
	}

	if err := app.Directory.Delete(ctx, dev.ID); err != nil {
		return err
	}

	app.Metrics.ForgetDevice(dev.ID)

	if last, ok := app.Preferences.LastUsedDevice(ctx); ok && last == dev.ID {
		app.Session.Clear()

		if err := app.Preferences.ClearLastUsedDevice(ctx); err != nil {
			return err
		}
	}

	app.successf("Deleted %s and its history", dev.DisplayName())

	return nil
}
