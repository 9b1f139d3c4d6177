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

// Package telemetry polls tank readings, keeps history and raises alerts.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/carverauto/aqualevel/pkg/deviceclient"
	"github.com/carverauto/aqualevel/pkg/directory"
	"github.com/carverauto/aqualevel/pkg/logger"
	"github.com/carverauto/aqualevel/pkg/metrics"
	"github.com/carverauto/aqualevel/pkg/models"
)

const (
	// HistoryWindow is the minimum spacing between stored history rows.
	HistoryWindow = 15 * time.Minute
	// HistoryRetention is how long history rows are kept.
	HistoryRetention = 30 * 24 * time.Hour

	defaultConcurrency = 4
	defaultInterval    = 60 * time.Second
)

// Option customizes a Service.
type Option func(*Service)

func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithRefreshHook is called after every refresh Run performs.
func WithRefreshHook(fn func(deviceclient.Result[*models.TankData])) Option {
	return func(s *Service) { s.onRefresh = fn }
}

type Service struct {
	client      *deviceclient.Client
	dir         Directory
	prefs       Preferences
	notifier    Notifier
	metrics     *metrics.Metrics
	logger      logger.Logger
	now         func() time.Time
	concurrency int
	onRefresh   func(deviceclient.Result[*models.TankData])

	alerts  *alertState
	current deviceclient.Tracker[*models.TankData]
}

func NewService(client *deviceclient.Client, dir Directory, prefs Preferences, log logger.Logger, opts ...Option) *Service {
	s := &Service{
		client:      client,
		dir:         dir,
		prefs:       prefs,
		notifier:    LogNotifier{Logger: log},
		logger:      log,
		now:         time.Now,
		concurrency: defaultConcurrency,
		alerts:      newAlertState(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Status reports whether a refresh of the current device is in flight and its last result.
func (s *Service) Status() (deviceclient.LoadState, deviceclient.Result[*models.TankData]) {
	return s.current.Snapshot()
}

// RefreshCurrent fetches tank data from the bound device. The reading is
// attributed to the device the request was sent to, even if the selection
// changes while it is in flight.
func (s *Service) RefreshCurrent(ctx context.Context) (*models.TankData, error) {
	ep, err := s.client.Bound()
	if err != nil {
		return nil, err
	}

	res := s.current.Run(ctx, func(ctx context.Context) (*models.TankData, error) {
		return s.refresh(ctx, ep)
	})

	return res.Value, res.Err
}

// Summary counts the outcome of a RefreshAll pass.
type Summary struct {
	Refreshed int
	Failed    int
	Skipped   int
}

// RefreshAll refreshes every known device through its own endpoint. It never
// touches the session binding; per-device failures are logged and counted.
func (s *Service) RefreshAll(ctx context.Context) (Summary, error) {
	devices, err := s.dir.ListAll(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("list devices: %w", err)
	}

	var refreshed, failed, skipped atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, dev := range devices {
		baseURL := deviceclient.NormalizeBaseURL(dev.IPAddress)
		if baseURL == "" {
			skipped.Add(1)
			continue
		}

		ep := s.client.Endpoint(deviceclient.Target{DeviceID: dev.ID, BaseURL: baseURL})

		g.Go(func() error {
			if _, err := s.refresh(gctx, ep); err != nil {
				failed.Add(1)
				s.logger.Warn().Err(err).Str("device_id", dev.ID).Msg("Refresh failed")

				return nil
			}

			refreshed.Add(1)

			return nil
		})
	}

	_ = g.Wait()

	return Summary{
		Refreshed: int(refreshed.Load()),
		Failed:    int(failed.Load()),
		Skipped:   int(skipped.Load()),
	}, ctx.Err()
}

func (s *Service) refresh(ctx context.Context, ep *deviceclient.Endpoint) (*models.TankData, error) {
	id := ep.DeviceID()

	data, err := ep.TankData(ctx)
	if err != nil {
		s.metrics.Refresh(outcomeFor(err))

		if id != "" && s.alerts.markReachable(id, false) {
			s.raise(ctx, Alert{Kind: AlertOffline, DeviceID: id, At: s.now()})
		}

		return nil, err
	}

	s.metrics.Refresh(metrics.OutcomeSuccess)

	// setup access point: nothing to record
	if id == "" {
		return data, nil
	}

	s.alerts.markReachable(id, true)
	s.metrics.SetPercentage(id, data.Percentage)

	now := s.now()

	if err := s.dir.RecordTelemetry(ctx, id, data.Percentage, data.Volume, now); err != nil {
		if errors.Is(err, directory.ErrDeviceNotFound) {
			s.logger.Info().Str("device_id", id).Msg("Device removed while refreshing; reading dropped")
			s.alerts.forget(id)
			s.metrics.ForgetDevice(id)

			return data, nil
		}

		return data, fmt.Errorf("record telemetry: %w", err)
	}

	if err := s.dir.ApplyTankData(ctx, id, data); err != nil {
		s.logger.Warn().Err(err).Str("device_id", id).Msg("Failed to cache tank settings")
	}

	if err := s.recordHistory(ctx, id, data, now); err != nil {
		s.logger.Warn().Err(err).Str("device_id", id).Msg("Failed to record history")
	}

	s.evaluate(ctx, id, data, now)

	return data, nil
}

// recordHistory stores at most one reading per HistoryWindow and drops rows
// older than HistoryRetention.
func (s *Service) recordHistory(ctx context.Context, id string, data *models.TankData, now time.Time) error {
	latest, err := s.dir.LatestReading(ctx, id)
	if err != nil {
		return err
	}

	if latest != nil && now.Sub(latest.Timestamp) < HistoryWindow {
		return nil
	}

	_, err = s.dir.InsertReading(ctx, &models.WaterLevelHistory{
		DeviceID:   id,
		Timestamp:  now,
		Percentage: data.Percentage,
		Volume:     data.Volume,
		Distance:   data.Distance,
		WaterLevel: data.WaterLevel,
	})
	if err != nil {
		return err
	}

	pruned, err := s.dir.PruneReadings(ctx, id, now.Add(-HistoryRetention))
	if err != nil {
		return err
	}

	s.metrics.HistoryPruned(pruned)

	return nil
}

func (s *Service) evaluate(ctx context.Context, id string, data *models.TankData, now time.Time) {
	kind, threshold := levelFor(data)
	if !s.alerts.crossed(id, kind) {
		return
	}

	if !data.AlertsEnabled || !s.prefs.NotificationsEnabled(ctx) {
		return
	}

	s.raise(ctx, Alert{
		Kind:       kind,
		DeviceID:   id,
		Percentage: data.Percentage,
		Threshold:  threshold,
		At:         now,
	})
}

func (s *Service) raise(ctx context.Context, alert Alert) {
	if alert.Kind == AlertOffline && !s.prefs.NotificationsEnabled(ctx) {
		return
	}

	alert.DeviceName = alert.DeviceID
	if dev, err := s.dir.Get(ctx, alert.DeviceID); err == nil {
		alert.DeviceName = dev.DisplayName()
	}

	s.metrics.Alert(string(alert.Kind))

	if err := s.notifier.Notify(ctx, alert); err != nil {
		s.logger.Warn().Err(err).Str("kind", string(alert.Kind)).Msg("Failed to deliver alert")
	}
}

func outcomeFor(err error) string {
	if errors.Is(err, deviceclient.ErrTimeout) {
		return metrics.OutcomeTimeout
	}

	return metrics.OutcomeError
}

// Run refreshes the current device until ctx ends. The interval is read from
// preferences before every wait, and a changed interval restarts the wait.
func (s *Service) Run(ctx context.Context) error {
	changes, err := s.prefs.WatchRefreshInterval(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Refresh interval changes will apply after the next refresh")
	}

	for {
		s.tick(ctx)

		if !s.wait(ctx, changes) {
			return ctx.Err()
		}
	}
}

func (s *Service) tick(ctx context.Context) {
	data, err := s.RefreshCurrent(ctx)

	if errors.Is(err, deviceclient.ErrNotConfigured) {
		s.logger.Debug().Msg("No device selected; skipping refresh")
	} else if err != nil {
		s.logger.Info().Err(err).Msg("Refresh of current device failed")
	}

	if s.onRefresh != nil {
		s.onRefresh(deviceclient.ResultOf(data, err))
	}
}

// wait blocks for one refresh interval. It returns false when ctx ends.
func (s *Service) wait(ctx context.Context, changes <-chan time.Duration) bool {
	interval := s.prefs.RefreshInterval(ctx)
	if interval <= 0 {
		interval = defaultInterval
	}

	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-timer.C:
			return true
		case d, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}

			if d <= 0 || d == interval {
				continue
			}

			s.logger.Debug().Dur("interval", d).Msg("Refresh interval changed")

			interval = d

			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}

			timer.Reset(interval)
		}
	}
}
