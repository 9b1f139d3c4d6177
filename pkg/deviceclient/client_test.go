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

package deviceclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/aqualevel/pkg/devicesim"
	"github.com/carverauto/aqualevel/pkg/models"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func newSimClient(t *testing.T, sim *devicesim.Simulator, opts Options) (*Client, *Endpoint) {
	t.Helper()

	srv := httptest.NewServer(sim.Router())
	t.Cleanup(srv.Close)

	c := NewClient(StaticTarget{DeviceID: "dev-1", BaseURL: NormalizeBaseURL(srv.URL)}, opts)

	ep, err := c.Bound()
	require.NoError(t, err)

	return c, ep
}

func TestBoundWithoutTargetDoesNoIO(t *testing.T) {
	noIO := &http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
		t.Fatal("unexpected request")
		return nil, nil
	})}

	c := NewClient(StaticTarget{}, Options{HTTPClient: noIO})

	_, err := c.Bound()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.Equal(t, "Device address not configured", err.Error())

	_, err = c.Endpoint(Target{}).TankData(context.Background())
	assert.ErrorIs(t, err, ErrNotConfigured)

	assert.ErrorIs(t, NewClient(nil, Options{HTTPClient: noIO}).Probe(context.Background(), Target{}), ErrNotConfigured)
}

func TestTankDataAndSettings(t *testing.T) {
	sim := devicesim.New(devicesim.WithDistance(110))
	_, ep := newSimClient(t, sim, Options{})

	assert.Equal(t, "dev-1", ep.DeviceID())

	data, err := ep.TankData(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 50.0, data.Percentage, 0.001)
	assert.Equal(t, 20, data.AlertLevelLow)

	settings, err := ep.Settings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, devicesim.DefaultSettings(), *settings)
}

func TestSetOmitsAbsentFields(t *testing.T) {
	sim := devicesim.New()
	_, ep := newSimClient(t, sim, Options{})

	err := ep.UpdateTankSettings(context.Background(), &models.TankSettingsRequest{TankHeight: models.Float(150)})
	require.NoError(t, err)

	q := sim.LastQuery("/set")
	assert.Equal(t, "150", q.Get("tankHeight"))
	assert.False(t, q.Has("tankDiameter"))
	assert.False(t, q.Has("tankVolume"))

	err = ep.UpdateAlertSettings(context.Background(), &models.AlertSettingsRequest{
		AlertLevelLow: models.Int(10),
		AlertsEnabled: models.Bool(false),
	})
	require.NoError(t, err)

	q = sim.LastQuery("/set")
	assert.Equal(t, "10", q.Get("alertLevelLow"))
	assert.Equal(t, "false", q.Get("alertsEnabled"))
	assert.False(t, q.Has("alertLevelHigh"))

	st := sim.Settings()
	assert.InDelta(t, 150.0, st.TankHeight, 0.001)
	assert.Equal(t, 10, st.AlertLevelLow)
	assert.False(t, st.AlertsEnabled)

	err = ep.UpdateSensorSettings(context.Background(), &models.SensorSettingsRequest{ReadingSmoothing: models.Int(3)})
	require.NoError(t, err)
	assert.Equal(t, 3, sim.Settings().ReadingSmoothing)
}

func TestStatusErrorCarriesBodyAndCode(t *testing.T) {
	sim := devicesim.New()
	_, ep := newSimClient(t, sim, Options{})

	sim.Fail(http.StatusInternalServerError, "sensor fault")

	_, err := ep.TankData(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrHTTPStatus)

	var derr *Error
	require.True(t, errors.As(err, &derr))
	assert.Equal(t, "sensor fault", derr.Message)
	assert.Equal(t, http.StatusInternalServerError, derr.Code)

	sim.Fail(http.StatusBadGateway, "")

	_, err = ep.Settings(context.Background())
	require.True(t, errors.As(err, &derr))
	assert.Equal(t, "Unknown error", derr.Message)
	assert.Equal(t, "Unknown error (HTTP 502)", err.Error())
}

func TestTimeout(t *testing.T) {
	sim := devicesim.New()
	sim.SetDelay(2 * time.Second)

	_, ep := newSimClient(t, sim, Options{RequestTimeout: 100 * time.Millisecond})

	_, err := ep.TankData(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, msgTimeout, err.Error())
}

func TestTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	c := NewClient(nil, Options{})

	err := c.Probe(context.Background(), Target{BaseURL: NormalizeBaseURL(addr)})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)
	assert.Contains(t, err.Error(), "Network error: ")
}

func TestNullBodyIsUnexpected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("null"))
	}))
	defer srv.Close()

	ep := NewClient(nil, Options{}).Endpoint(Target{BaseURL: NormalizeBaseURL(srv.URL)})

	_, err := ep.TankData(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnexpected)
	assert.Equal(t, "Response body is null", err.Error())
}

func TestScanNetworksBothForms(t *testing.T) {
	_, ep := newSimClient(t, devicesim.New(), Options{})

	networks, err := ep.ScanNetworks(context.Background())
	require.NoError(t, err)
	assert.Len(t, networks, 3)

	_, ep = newSimClient(t, devicesim.New(devicesim.WithWrappedScan()), Options{})

	networks, err = ep.ScanNetworks(context.Background())
	require.NoError(t, err)
	assert.Len(t, networks, 3)
	assert.Equal(t, "HomeNetwork", networks[0].SSID)
}

func TestConfigureNetworkAndReset(t *testing.T) {
	sim := devicesim.New()
	_, ep := newSimClient(t, sim, Options{})

	err := ep.ConfigureNetwork(context.Background(), &models.NetworkSettingsRequest{
		SSID:       "Home",
		Password:   "p@ss word",
		DeviceName: "Kitchen",
	})
	require.NoError(t, err)

	got, ok := sim.Network()
	require.True(t, ok)
	assert.Equal(t, "p@ss word", got.Password)
	assert.Equal(t, "Kitchen", got.DeviceName)

	require.NoError(t, ep.ResetWiFi(context.Background()))
	assert.Equal(t, 1, sim.Resets())
}

func TestCalibrate(t *testing.T) {
	sim := devicesim.New(devicesim.WithDistance(190))
	_, ep := newSimClient(t, sim, Options{})

	msg, err := ep.Calibrate(context.Background(), models.CalibrateEmpty)
	require.NoError(t, err)
	assert.Contains(t, msg, "Empty calibration")
	assert.InDelta(t, 190.0, sim.Settings().EmptyDistance, 0.001)

	_, err = ep.Calibrate(context.Background(), models.CalibrationType("half"))
	require.Error(t, err)
	assert.Equal(t, 1, sim.Requests("/calibrate"))
}

func TestCanceledContext(t *testing.T) {
	sim := devicesim.New()
	sim.SetDelay(time.Second)

	_, ep := newSimClient(t, sim, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ep.TankData(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, ErrTransport)
}

func TestTrackerReportsState(t *testing.T) {
	var tr Tracker[int]

	state, _ := tr.Snapshot()
	assert.Equal(t, StateIdle, state)

	res := tr.Run(context.Background(), func(context.Context) (int, error) {
		return 0, statusError("", http.StatusNotFound)
	})

	assert.False(t, res.OK())
	assert.Equal(t, "Unknown error", res.Message())
	assert.Equal(t, http.StatusNotFound, res.Code())

	state, last := tr.Snapshot()
	assert.Equal(t, StateDone, state)
	assert.Equal(t, res, last)

	res = tr.Run(context.Background(), func(context.Context) (int, error) { return 7, nil })
	assert.True(t, res.OK())
	assert.Equal(t, 7, res.Value)
	assert.Empty(t, res.Message())
}
