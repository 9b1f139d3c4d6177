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

package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/carverauto/aqualevel/pkg/deviceclient"
	"github.com/carverauto/aqualevel/pkg/devicesim"
	"github.com/carverauto/aqualevel/pkg/directory"
	"github.com/carverauto/aqualevel/pkg/kv"
	"github.com/carverauto/aqualevel/pkg/logger"
	"github.com/carverauto/aqualevel/pkg/models"
	"github.com/carverauto/aqualevel/pkg/preferences"
	"github.com/carverauto/aqualevel/pkg/session"
	"github.com/carverauto/aqualevel/pkg/storage"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testEnv struct {
	dir    *directory.Directory
	prefs  *preferences.Store
	sess   *session.Session
	client *deviceclient.Client
	clock  *fakeClock
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := storage.Open(filepath.Join(t.TempDir(), "telemetry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	dir, err := directory.New(db, logger.NewTestLogger())
	require.NoError(t, err)

	backend, err := kv.NewBoltStore(db, preferences.Bucket)
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })

	prefs := preferences.New(backend, logger.NewTestLogger())

	env := &testEnv{
		dir:   dir,
		prefs: prefs,
		clock: &fakeClock{now: time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)},
	}

	env.sess = session.New(dir, prefs, nil, logger.NewTestLogger())
	env.client = deviceclient.NewClient(env.sess, deviceclient.Options{RequestTimeout: 5 * time.Second})

	return env
}

func (e *testEnv) service(opts ...Option) *Service {
	opts = append([]Option{WithClock(e.clock.Now)}, opts...)

	return NewService(e.client, e.dir, e.prefs, logger.NewTestLogger(), opts...)
}

// addDevice serves sim on a local port and records it in the directory.
func (e *testEnv) addDevice(t *testing.T, name string, sim *devicesim.Simulator) string {
	t.Helper()

	srv := httptest.NewServer(sim.Router())
	t.Cleanup(srv.Close)

	id, err := e.dir.UpsertFromDiscovery(context.Background(), &models.DiscoveredDevice{
		ServiceName: "aqualevel-" + name,
		Hostname:    "aqualevel-" + name + ".local",
		IPAddress:   strings.TrimPrefix(srv.URL, "http://"),
		Port:        80,
	}, "")
	require.NoError(t, err)

	return id
}

func TestRefreshCurrentNotConfigured(t *testing.T) {
	env := newEnv(t)

	_, err := env.service().RefreshCurrent(context.Background())
	assert.ErrorIs(t, err, deviceclient.ErrNotConfigured)
}

func TestRefreshCurrentRecordsTelemetryAndHistory(t *testing.T) {
	ctx := context.Background()
	env := newEnv(t)

	id := env.addDevice(t, "kitchen", devicesim.New(devicesim.WithDistance(110)))
	require.NoError(t, env.sess.SelectCurrent(ctx, id))

	svc := env.service()

	data, err := svc.RefreshCurrent(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 50.0, data.Percentage, 0.001)

	dev, err := env.dir.Get(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, dev.LastPercentage)
	assert.InDelta(t, 50.0, *dev.LastPercentage, 0.001)
	assert.Equal(t, env.clock.Now().Unix(), dev.LastSeen.Unix())
	require.NotNil(t, dev.TankHeight)
	assert.InDelta(t, 200.0, *dev.TankHeight, 0.001)

	state, last := svc.Status()
	assert.Equal(t, deviceclient.StateDone, state)
	assert.True(t, last.OK())

	env.clock.Advance(5 * time.Minute)
	_, err = svc.RefreshCurrent(ctx)
	require.NoError(t, err)

	rows, err := env.dir.History(ctx, id)
	require.NoError(t, err)
	assert.Len(t, rows, 1, "readings inside the window are not stored")

	env.clock.Advance(HistoryWindow)
	_, err = svc.RefreshCurrent(ctx)
	require.NoError(t, err)

	rows, err = env.dir.History(ctx, id)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestHistoryWindowBoundary(t *testing.T) {
	ctx := context.Background()
	env := newEnv(t)

	id := env.addDevice(t, "cellar", devicesim.New(devicesim.WithDistance(110)))
	require.NoError(t, env.sess.SelectCurrent(ctx, id))

	svc := env.service()
	start := env.clock.Now()

	for _, minute := range []int{0, 5, 10} {
		if minute > 0 {
			env.clock.Advance(5 * time.Minute)
		}

		_, err := svc.RefreshCurrent(ctx)
		require.NoError(t, err)

		rows, err := env.dir.History(ctx, id)
		require.NoError(t, err)
		require.Len(t, rows, 1, "minute %d", minute)
		assert.Equal(t, start.Unix(), rows[0].Timestamp.Unix())
	}

	env.clock.Advance(5 * time.Minute)
	require.Equal(t, HistoryWindow, env.clock.Now().Sub(start))

	_, err := svc.RefreshCurrent(ctx)
	require.NoError(t, err)

	rows, err := env.dir.History(ctx, id)
	require.NoError(t, err)
	require.Len(t, rows, 2, "a reading exactly one window later is stored")

	var stamps []int64
	for _, r := range rows {
		stamps = append(stamps, r.Timestamp.Unix())
	}

	assert.ElementsMatch(t, []int64{start.Unix(), start.Add(HistoryWindow).Unix()}, stamps)
}

func TestRetentionPrunesOldRows(t *testing.T) {
	ctx := context.Background()
	env := newEnv(t)

	id := env.addDevice(t, "garden", devicesim.New())
	require.NoError(t, env.sess.SelectCurrent(ctx, id))

	_, err := env.dir.InsertReading(ctx, &models.WaterLevelHistory{
		DeviceID:   id,
		Timestamp:  env.clock.Now().Add(-31 * 24 * time.Hour),
		Percentage: 80,
	})
	require.NoError(t, err)

	_, err = env.service().RefreshCurrent(ctx)
	require.NoError(t, err)

	rows, err := env.dir.History(ctx, id)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, env.clock.Now().Unix(), rows[0].Timestamp.Unix())
}

func TestSwitchingDeviceMidFlight(t *testing.T) {
	ctx := context.Background()
	env := newEnv(t)

	slow := devicesim.New(devicesim.WithDistance(110))
	slow.SetDelay(300 * time.Millisecond)

	a := env.addDevice(t, "tank-a", slow)
	b := env.addDevice(t, "tank-b", devicesim.New(devicesim.WithDistance(20)))

	require.NoError(t, env.sess.SelectCurrent(ctx, a))

	svc := env.service()

	done := make(chan error, 1)

	go func() {
		_, err := svc.RefreshCurrent(ctx)
		done <- err
	}()

	require.Eventually(t, func() bool { return slow.Requests("/tank-data") == 1 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, env.sess.SelectCurrent(ctx, b))

	require.NoError(t, <-done)

	devA, err := env.dir.Get(ctx, a)
	require.NoError(t, err)
	require.NotNil(t, devA.LastPercentage)
	assert.InDelta(t, 50.0, *devA.LastPercentage, 0.001)

	devB, err := env.dir.Get(ctx, b)
	require.NoError(t, err)
	assert.Nil(t, devB.LastPercentage)
}

func TestAlertsFireOnceWhenCrossingThreshold(t *testing.T) {
	ctx := context.Background()
	env := newEnv(t)

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	sim := devicesim.New(devicesim.WithDistance(180))
	id := env.addDevice(t, "cistern", sim)
	require.NoError(t, env.sess.SelectCurrent(ctx, id))

	notifier := NewMockNotifier(ctrl)

	var kinds []AlertKind

	notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, a Alert) error {
		assert.Equal(t, id, a.DeviceID)
		assert.Equal(t, "aqualevel-cistern", a.DeviceName)
		kinds = append(kinds, a.Kind)

		return nil
	}).Times(3)

	svc := env.service(WithNotifier(notifier))

	// low twice, one alert
	_, err := svc.RefreshCurrent(ctx)
	require.NoError(t, err)
	_, err = svc.RefreshCurrent(ctx)
	require.NoError(t, err)

	// back in range, then high
	sim.SetDistance(110)
	_, err = svc.RefreshCurrent(ctx)
	require.NoError(t, err)

	sim.SetDistance(20)
	_, err = svc.RefreshCurrent(ctx)
	require.NoError(t, err)

	// went offline
	sim.Fail(http.StatusServiceUnavailable, "")
	_, err = svc.RefreshCurrent(ctx)
	require.Error(t, err)
	_, err = svc.RefreshCurrent(ctx)
	require.Error(t, err)

	assert.Equal(t, []AlertKind{AlertLow, AlertHigh, AlertOffline}, kinds)
}

func TestAlertsRespectPreferencesAndDeviceSwitch(t *testing.T) {
	ctx := context.Background()
	env := newEnv(t)

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	require.NoError(t, env.prefs.SetNotificationsEnabled(ctx, false))

	id := env.addDevice(t, "roof", devicesim.New(devicesim.WithDistance(190)))
	require.NoError(t, env.sess.SelectCurrent(ctx, id))

	notifier := NewMockNotifier(ctrl)
	notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Times(0)

	_, err := env.service(WithNotifier(notifier)).RefreshCurrent(ctx)
	require.NoError(t, err)

	require.NoError(t, env.prefs.SetNotificationsEnabled(ctx, true))

	settings := devicesim.DefaultSettings()
	settings.AlertsEnabled = false

	quiet := env.addDevice(t, "quiet", devicesim.New(devicesim.WithSettings(settings), devicesim.WithDistance(190)))
	require.NoError(t, env.sess.SelectCurrent(ctx, quiet))

	_, err = env.service(WithNotifier(notifier)).RefreshCurrent(ctx)
	require.NoError(t, err)
}

func TestRefreshAllUsesExplicitEndpoints(t *testing.T) {
	ctx := context.Background()
	env := newEnv(t)

	broken := devicesim.New()
	broken.Fail(http.StatusInternalServerError, "sensor fault")

	a := env.addDevice(t, "one", devicesim.New(devicesim.WithDistance(110)))
	b := env.addDevice(t, "two", devicesim.New(devicesim.WithDistance(20)))
	env.addDevice(t, "three", broken)

	require.NoError(t, env.sess.SelectCurrent(ctx, a))
	before, _ := env.sess.Target()

	summary, err := env.service(WithConcurrency(2)).RefreshAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, Summary{Refreshed: 2, Failed: 1}, summary)

	devB, err := env.dir.Get(ctx, b)
	require.NoError(t, err)
	require.NotNil(t, devB.LastPercentage)
	assert.InDelta(t, 100.0, *devB.LastPercentage, 0.001)

	assert.True(t, env.sess.IsCurrent(before))
}

func TestRunRefreshesUntilCanceled(t *testing.T) {
	env := newEnv(t)

	id := env.addDevice(t, "loop", devicesim.New())
	require.NoError(t, env.sess.SelectCurrent(context.Background(), id))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	results := make(chan deviceclient.Result[*models.TankData], 4)

	svc := env.service(WithRefreshHook(func(res deviceclient.Result[*models.TankData]) {
		results <- res
		cancel()
	}))

	err := svc.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	res := <-results
	require.True(t, res.OK())
	assert.InDelta(t, 50.0, res.Value.Percentage, 0.001)
}

func TestPruneHistoryAndMaintenance(t *testing.T) {
	ctx := context.Background()
	env := newEnv(t)

	id := env.addDevice(t, "vat", devicesim.New())

	for _, age := range []time.Duration{40 * 24 * time.Hour, 31 * 24 * time.Hour, time.Hour} {
		_, err := env.dir.InsertReading(ctx, &models.WaterLevelHistory{DeviceID: id, Timestamp: env.clock.Now().Add(-age)})
		require.NoError(t, err)
	}

	svc := env.service()

	n, err := svc.PruneHistory(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = svc.StartMaintenance(ctx, "not a schedule")
	assert.Error(t, err)

	mctx, cancel := context.WithCancel(ctx)
	c, err := svc.StartMaintenance(mctx, "@hourly")
	require.NoError(t, err)
	assert.Len(t, c.Entries(), 1)
	cancel()
}

func TestLevelFor(t *testing.T) {
	data := &models.TankData{AlertLevelLow: 20, AlertLevelHigh: 90}

	for pct, want := range map[float64]AlertKind{0: AlertLow, 20: AlertLow, 20.5: "", 89.9: "", 90: AlertHigh, 100: AlertHigh} {
		data.Percentage = pct
		kind, _ := levelFor(data)
		assert.Equal(t, want, kind, "percentage %v", pct)
	}
}
