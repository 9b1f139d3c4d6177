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
	"fmt"

	"github.com/carverauto/aqualevel/pkg/deviceclient"
	"github.com/carverauto/aqualevel/pkg/models"
)

// boundEndpoint selects ref (or the last used device) and pins an endpoint to it.
func (a *App) boundEndpoint(ctx context.Context, ref string) (*models.Device, *deviceclient.Endpoint, error) {
	dev, err := a.bindDevice(ctx, ref)
	if err != nil {
		return nil, nil, err
	}

	ep, err := a.Client.Bound()
	if err != nil {
		return nil, nil, err
	}

	return dev, ep, nil
}

func runSettings(ctx context.Context, app *App, cfg *CmdConfig) error {
	dev, ep, err := app.boundEndpoint(ctx, cfg.DeviceID)
	if err != nil {
		return err
	}

	settings, err := ep.Settings(ctx)
	if err != nil {
		return err
	}

	if app.json {
		return app.printJSON(settings)
	}

	app.renderSettings(dev, settings)

	return nil
}

func runSetTank(ctx context.Context, app *App, cfg *CmdConfig) error {
	req := cfg.Tank
	if req.TankHeight == nil && req.TankDiameter == nil && req.TankVolume == nil {
		return errNothingToSet
	}

	dev, ep, err := app.boundEndpoint(ctx, cfg.DeviceID)
	if err != nil {
		return err
	}

	if err := ep.UpdateTankSettings(ctx, &req); err != nil {
		return err
	}

	app.successf("Updated tank dimensions on %s", dev.DisplayName())

	return nil
}

func runSetSensor(ctx context.Context, app *App, cfg *CmdConfig) error {
	req := cfg.Sensor
	if req.SensorOffset == nil && req.EmptyDistance == nil && req.FullDistance == nil &&
		req.MeasurementInterval == nil && req.ReadingSmoothing == nil {
		return errNothingToSet
	}

	dev, ep, err := app.boundEndpoint(ctx, cfg.DeviceID)
	if err != nil {
		return err
	}

	if err := ep.UpdateSensorSettings(ctx, &req); err != nil {
		return err
	}

	app.successf("Updated sensor settings on %s", dev.DisplayName())

	return nil
}

func validLevel(v *int) bool {
	return v == nil || (*v >= 0 && *v <= 100)
}

func runSetAlerts(ctx context.Context, app *App, cfg *CmdConfig) error {
	req := cfg.Alerts
	if req.AlertLevelLow == nil && req.AlertLevelHigh == nil && req.AlertsEnabled == nil {
		return errNothingToSet
	}

	if !validLevel(req.AlertLevelLow) || !validLevel(req.AlertLevelHigh) {
		return errInvalidLevel
	}

	dev, ep, err := app.boundEndpoint(ctx, cfg.DeviceID)
	if err != nil {
		return err
	}

	if err := ep.UpdateAlertSettings(ctx, &req); err != nil {
		return err
	}

	// the directory mirrors alert settings from the next tank-data read
	if _, err := app.Telemetry.RefreshCurrent(ctx); err != nil {
		app.Logger.Debug().Err(err).Str("device_id", dev.ID).Msg("Refresh after alert update failed")
	}

	app.successf("Updated alert settings on %s", dev.DisplayName())

	return nil
}

func runCalibrate(ctx context.Context, app *App, cfg *CmdConfig) error {
	kind := models.CalibrationType(cfg.Calibration)
	if !kind.Valid() {
		return fmt.Errorf("calibrate: -type must be %q or %q", models.CalibrateEmpty, models.CalibrateFull)
	}

	_, ep, err := app.boundEndpoint(ctx, cfg.DeviceID)
	if err != nil {
		return err
	}

	msg, err := ep.Calibrate(ctx, kind)
	if err != nil {
		return err
	}

	if app.json {
		return app.printJSON(map[string]string{"message": msg})
	}

	app.successf("%s", msg)

	return nil
}

func runResetWiFi(ctx context.Context, app *App, cfg *CmdConfig) error {
	dev, ep, err := app.boundEndpoint(ctx, cfg.DeviceID)
	if err != nil {
		return err
	}

	if err := ep.ResetWiFi(ctx); err != nil {
		return err
	}

	app.successf("%s is restarting into setup mode", dev.DisplayName())
	app.infof("Join its AquaLevel-...-Setup network and run 'aqualevel setup' to configure it again.")

	return nil
}
