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

import "context"

func runScanNetworks(ctx context.Context, app *App, _ *CmdConfig) error {
	networks, err := app.Provisioner.ScanNetworks(ctx)
	if err != nil {
		return err
	}

	if app.json {
		return app.printJSON(networks)
	}

	app.renderNetworks(networks)

	return nil
}

func runSetup(ctx context.Context, app *App, cfg *CmdConfig) error {
	if !app.json {
		app.infof("Sending network settings to the device...")
	}

	id, err := app.Provisioner.Provision(ctx, cfg.SSID, cfg.Password, cfg.DeviceName)
	if err != nil {
		return err
	}

	if err := app.Preferences.SetOnboardingCompleted(ctx, true); err != nil {
		app.Logger.Warn().Err(err).Msg("Failed to record onboarding")
	}

	if app.json {
		return app.printJSON(map[string]string{"device_id": id})
	}

	app.successf("%s joined %s and is now selected", id, cfg.SSID)

	return nil
}

func runWiFi(ctx context.Context, app *App, _ *CmdConfig) error {
	ssid, connected := app.Network.CurrentSSID(ctx)
	name, setup := app.Network.SetupDeviceName(ctx)

	if app.json {
		return app.printJSON(map[string]interface{}{
			"connected":     connected,
			"ssid":          ssid,
			"setup_network": setup,
			"setup_device":  name,
		})
	}

	switch {
	case !connected:
		app.warnf("Not connected to WiFi")
	case setup:
		app.successf("Connected to %s, the setup network of %q", ssid, name)
		app.infof("Run 'aqualevel scan-networks' then 'aqualevel setup -ssid <home network>'.")
	default:
		app.successf("Connected to %s", ssid)
	}

	return nil
}

func runPrefs(ctx context.Context, app *App, cfg *CmdConfig) error {
	switch len(cfg.Args) {
	case 0:
		snap := app.Preferences.Snapshot(ctx)
		if app.json {
			return app.printJSON(snap)
		}

		app.renderPrefs(snap)

		return nil
	case 1:
		return errValueRequired
	}

	key, value := cfg.Args[0], cfg.Args[1]
	if err := app.Preferences.Set(ctx, key, value); err != nil {
		return err
	}

	app.successf("%s = %s", key, value)

	return nil
}
