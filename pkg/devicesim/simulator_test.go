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

package devicesim

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	aqhttp "github.com/carverauto/aqualevel/pkg/http"
	"github.com/carverauto/aqualevel/pkg/models"
)

func serve(t *testing.T, sim *Simulator, target string) *httptest.ResponseRecorder {
	t.Helper()

	rr := httptest.NewRecorder()
	sim.Router().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, http.NoBody))

	return rr
}

func TestTankDataDerivedFromDistance(t *testing.T) {
	sim := New(WithDistance(110))

	rr := serve(t, sim, "/tank-data")
	require.Equal(t, http.StatusOK, rr.Code)

	var data models.TankData
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &data))

	assert.InDelta(t, 50.0, data.Percentage, 0.001)
	assert.InDelta(t, 1750.0, data.Volume, 0.001)
	assert.InDelta(t, 90.0, data.WaterLevel, 0.001)
	assert.True(t, data.AlertsEnabled)

	sim.SetDistance(500)
	assert.InDelta(t, 0.0, sim.TankData().Percentage, 0.001)

	sim.SetDistance(0)
	assert.InDelta(t, 100.0, sim.TankData().Percentage, 0.001)
}

func TestSetAppliesPresentFields(t *testing.T) {
	sim := New()

	rr := serve(t, sim, "/set?tankHeight=180.5&alertLevelLow=15&alertsEnabled=false")
	require.Equal(t, http.StatusOK, rr.Code)

	st := sim.Settings()
	assert.InDelta(t, 180.5, st.TankHeight, 0.001)
	assert.Equal(t, 15, st.AlertLevelLow)
	assert.False(t, st.AlertsEnabled)
	assert.Equal(t, DefaultSettings().TankDiameter, st.TankDiameter)
	assert.Equal(t, "15", sim.LastQuery("/set").Get("alertLevelLow"))
}

func TestSetRejectsMalformedNumbers(t *testing.T) {
	sim := New()

	rr := serve(t, sim, "/set?tankHeight=120&alertLevelHigh=lots")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "alertLevelHigh")

	// nothing is applied when any value is rejected
	assert.Equal(t, DefaultSettings(), sim.Settings())
}

func TestCalibrate(t *testing.T) {
	sim := New(WithDistance(185))

	rr := serve(t, sim, "/calibrate?type=empty")
	require.Equal(t, http.StatusOK, rr.Code)

	var msg string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &msg))
	assert.Contains(t, msg, "Empty calibration")
	assert.InDelta(t, 185.0, sim.Settings().EmptyDistance, 0.001)

	sim.SetDistance(25)
	require.Equal(t, http.StatusOK, serve(t, sim, "/calibrate?type=full").Code)
	assert.InDelta(t, 25.0, sim.Settings().FullDistance, 0.001)

	assert.Equal(t, http.StatusBadRequest, serve(t, sim, "/calibrate?type=middle").Code)
}

func TestNetworkAndReset(t *testing.T) {
	sim := New()

	assert.Equal(t, http.StatusBadRequest, serve(t, sim, "/network?password=x").Code)

	rr := serve(t, sim, "/network?ssid=Home&password=secret&deviceName=Kitchen")
	require.Equal(t, http.StatusOK, rr.Code)

	got, ok := sim.Network()
	require.True(t, ok)
	assert.Equal(t, models.NetworkSettingsRequest{SSID: "Home", Password: "secret", DeviceName: "Kitchen"}, got)

	require.Equal(t, http.StatusOK, serve(t, sim, "/resetwifi").Code)

	_, ok = sim.Network()
	assert.False(t, ok)
	assert.Equal(t, 1, sim.Resets())
}

func TestScanNetworksForms(t *testing.T) {
	bare := serve(t, New(), "/scannetworks")

	var list []models.WiFiNetwork
	require.NoError(t, json.Unmarshal(bare.Body.Bytes(), &list))
	assert.Len(t, list, 3)

	wrapped := serve(t, New(WithWrappedScan(), WithNetworks(models.WiFiNetwork{SSID: "Only", RSSI: -40})), "/scannetworks")

	var obj models.NetworkScanResponse
	require.NoError(t, json.Unmarshal(wrapped.Body.Bytes(), &obj))
	require.Len(t, obj.Networks, 1)
	assert.Equal(t, "Only", obj.Networks[0].SSID)
}

func TestFailSwitch(t *testing.T) {
	sim := New()
	sim.Fail(http.StatusServiceUnavailable, "sensor offline")

	rr := serve(t, sim, "/tank-data")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, "sensor offline", rr.Body.String())
	assert.Equal(t, 1, sim.Requests("/tank-data"))

	sim.Fail(0, "")
	assert.Equal(t, http.StatusOK, serve(t, sim, "/tank-data").Code)
}

func TestDelayHonoursClientCancellation(t *testing.T) {
	sim := New()
	sim.SetDelay(time.Minute)

	srv := httptest.NewServer(sim.Handler(aqhttp.CORSConfig{}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/tank-data", http.NoBody)
	require.NoError(t, err)

	start := time.Now()
	_, err = srv.Client().Do(req)

	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}
