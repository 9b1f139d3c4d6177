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

package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics

	m.ObserveRequest("tank-data", OutcomeSuccess, time.Second)
	m.DeviceDiscovered()
	m.ResolveFailed()
	m.Refresh(OutcomeError)
	m.Alert("low")
	m.SetPercentage("a", 1)
	m.ForgetDevice("a")
	m.HistoryPruned(3)

	assert.Nil(t, m.Registry())
}

func TestCountersAndHandler(t *testing.T) {
	m := New(nil)

	m.ObserveRequest("tank-data", OutcomeSuccess, 20*time.Millisecond)
	m.ObserveRequest("tank-data", OutcomeTimeout, 30*time.Second)
	m.DeviceDiscovered()
	m.HistoryPruned(4)
	m.SetPercentage("aqualevel-kitchen.local", 55)

	assert.InDelta(t, 1, testutil.ToFloat64(m.requests.WithLabelValues("tank-data", OutcomeTimeout)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.discovered), 0)
	assert.InDelta(t, 4, testutil.ToFloat64(m.historyPruned), 0)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "aqualevel_telemetry_fill_percentage"))

	m.ForgetDevice("aqualevel-kitchen.local")
	assert.Equal(t, 0, testutil.CollectAndCount(m.lastPercentage))
}
