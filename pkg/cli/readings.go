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
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/carverauto/aqualevel/pkg/config"
	"github.com/carverauto/aqualevel/pkg/deviceclient"
	aqhttp "github.com/carverauto/aqualevel/pkg/http"
	"github.com/carverauto/aqualevel/pkg/models"
	"github.com/carverauto/aqualevel/pkg/telemetry"
)

const shutdownTimeout = 5 * time.Second

func runStatus(ctx context.Context, app *App, cfg *CmdConfig) error {
	dev, err := app.bindDevice(ctx, cfg.DeviceID)
	if err != nil {
		return err
	}

	data, err := app.Telemetry.RefreshCurrent(ctx)
	if err != nil {
		return err
	}

	if app.json {
		return app.printJSON(data)
	}

	app.renderTank(dev, data)

	return nil
}

func runRefresh(ctx context.Context, app *App, cfg *CmdConfig) error {
	if cfg.All {
		summary, err := app.Telemetry.RefreshAll(ctx)
		if err != nil {
			return err
		}

		if app.json {
			return app.printJSON(summary)
		}

		app.successf("Refreshed %d device(s)", summary.Refreshed)

		if summary.Failed > 0 {
			app.warnf("%d device(s) did not respond", summary.Failed)
		}

		if summary.Skipped > 0 {
			app.warnf("%d device(s) have no address", summary.Skipped)
		}

		return nil
	}

	dev, err := app.bindDevice(ctx, cfg.DeviceID)
	if err != nil {
		return err
	}

	data, err := app.Telemetry.RefreshCurrent(ctx)
	if err != nil {
		return err
	}

	if app.json {
		return app.printJSON(data)
	}

	app.successf("%s: %s, %s", dev.DisplayName(), percent(data.Percentage), litres(data.Volume))

	return nil
}

// runWatch refreshes the current device on the preferred interval and keeps
// the background jobs running until interrupted.
func runWatch(ctx context.Context, app *App, cfg *CmdConfig) error {
	dev, err := app.bindDevice(ctx, cfg.DeviceID)
	if err != nil {
		return err
	}

	svc := app.newTelemetry(telemetry.WithRefreshHook(func(res deviceclient.Result[*models.TankData]) {
		app.printWatchLine(dev, res)
	}))

	if !app.json {
		app.infof("Watching %s every %s. Press Ctrl+C to stop.",
			dev.DisplayName(), app.Preferences.RefreshInterval(ctx))
	}

	if _, err := svc.StartMaintenance(ctx, app.Config.Telemetry.MaintenanceSchedule); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return svc.Run(gctx) })

	if app.Config.MetricsAddr != "" {
		g.Go(func() error { return app.serveMetrics(gctx, app.Config.MetricsAddr) })
	}

	if app.configPath != "" {
		g.Go(func() error { return app.followConfig(gctx) })
	}

	g.Go(func() error { return app.followNetwork(gctx) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}

func (a *App) printWatchLine(dev *models.Device, res deviceclient.Result[*models.TankData]) {
	if a.json {
		_ = a.printJSON(map[string]interface{}{
			"device_id": dev.ID,
			"at":        res.At,
			"data":      res.Value,
			"error":     res.Message(),
		})

		return
	}

	stamp := a.view.muted.Render(res.At.Format("15:04:05"))

	if !res.OK() {
		fmt.Fprintln(a.out, stamp+" "+a.log.error.Render(res.Message()))
		return
	}

	data := res.Value
	fmt.Fprintln(a.out, stamp+" "+a.gauge(data.Percentage, data.AlertLevelLow, data.AlertLevelHigh)+
		" "+a.view.muted.Render(litres(data.Volume)))
}

func (a *App) serveMetrics(ctx context.Context, addr string) error {
	r := mux.NewRouter()
	r.Handle("/metrics", a.Metrics.Handler()).Methods(http.MethodGet)

	srv := &http.Server{
		Addr:              addr,
		Handler:           aqhttp.RecoveryMiddleware(a.Logger)(r),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		a.Logger.Info().Str("addr", addr).Msg("Serving metrics")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("metrics server: %w", err)
		}

		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

// followConfig applies log level changes from the config file.
func (a *App) followConfig(ctx context.Context) error {
	w, err := config.NewWatcher(ctx, a.configPath, a.Logger)
	if err != nil {
		return err
	}

	updates, err := w.Run(ctx)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("Config changes will not be picked up")

		return nil
	}

	for cfg := range updates {
		if cfg.Logging == nil {
			continue
		}

		level, err := zerolog.ParseLevel(cfg.Logging.Level)
		if err != nil || level == zerolog.NoLevel {
			continue
		}

		a.Logger.SetLevel(level)
		a.Logger.Info().Str("level", level.String()).Msg("Applied log level")
	}

	return nil
}

func (a *App) followNetwork(ctx context.Context) error {
	changes, err := a.Network.Changes(ctx)
	if err != nil {
		a.Logger.Debug().Err(err).Msg("WiFi changes unavailable")

		return nil
	}

	for online := range changes {
		if online {
			a.Logger.Info().Msg("WiFi connected")
		} else {
			a.Logger.Warn().Msg("WiFi disconnected")
		}
	}

	return nil
}

func runHistory(ctx context.Context, app *App, cfg *CmdConfig) error {
	ref := cfg.DeviceID
	if ref == "" {
		last, ok := app.Preferences.LastUsedDevice(ctx)
		if !ok {
			return errNoDeviceSelected
		}

		ref = last
	}

	dev, err := app.resolveDevice(ctx, ref)
	if err != nil {
		return err
	}

	to := time.Now()
	from := to.Add(-cfg.Since)

	rows, err := app.Directory.HistoryRange(ctx, dev.ID, from, to)
	if err != nil {
		return err
	}

	stats, err := app.Directory.HistoryStats(ctx, dev.ID, from, to)
	if err != nil {
		return err
	}

	if cfg.Limit > 0 && len(rows) > cfg.Limit {
		rows = rows[len(rows)-cfg.Limit:]
	}

	if app.json {
		return app.printJSON(map[string]interface{}{"stats": stats, "readings": rows})
	}

	app.renderHistory(dev, rows, stats)

	return nil
}
