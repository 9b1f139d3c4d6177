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

// Package metrics exposes Prometheus collectors for discovery, device API
// calls and telemetry refreshes. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "aqualevel"

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomeTimeout = "timeout"
)

type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	discovered      prometheus.Counter
	resolveFailures prometheus.Counter
	refreshes       *prometheus.CounterVec
	alerts          *prometheus.CounterVec
	lastPercentage  *prometheus.GaugeVec
	historyPruned   prometheus.Counter
}

// New registers all collectors on reg. A nil reg gets a fresh registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "device_api",
			Name:      "requests_total",
			Help:      "Device API requests by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "device_api",
			Name:      "request_duration_seconds",
			Help:      "Device API request latency.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"endpoint"}),
		discovered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "devices_found_total",
			Help:      "Resolved devices emitted by discovery scans.",
		}),
		resolveFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "resolve_failures_total",
			Help:      "Candidate services that could not be resolved to an address.",
		}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "telemetry",
			Name:      "refreshes_total",
			Help:      "Telemetry refreshes by outcome.",
		}, []string{"outcome"}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "telemetry",
			Name:      "alerts_total",
			Help:      "Alerts raised by kind.",
		}, []string{"kind"}),
		lastPercentage: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "telemetry",
			Name:      "fill_percentage",
			Help:      "Most recent fill percentage per device.",
		}, []string{"device"}),
		historyPruned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "rows_pruned_total",
			Help:      "History rows removed by retention.",
		}),
	}

	reg.MustRegister(
		m.requests,
		m.requestDuration,
		m.discovered,
		m.resolveFailures,
		m.refreshes,
		m.alerts,
		m.lastPercentage,
		m.historyPruned,
	)

	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}

	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}

	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveRequest(endpoint, outcome string, d time.Duration) {
	if m == nil {
		return
	}

	m.requests.WithLabelValues(endpoint, outcome).Inc()
	m.requestDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

func (m *Metrics) DeviceDiscovered() {
	if m == nil {
		return
	}

	m.discovered.Inc()
}

func (m *Metrics) ResolveFailed() {
	if m == nil {
		return
	}

	m.resolveFailures.Inc()
}

func (m *Metrics) Refresh(outcome string) {
	if m == nil {
		return
	}

	m.refreshes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Alert(kind string) {
	if m == nil {
		return
	}

	m.alerts.WithLabelValues(kind).Inc()
}

func (m *Metrics) SetPercentage(deviceID string, pct float64) {
	if m == nil {
		return
	}

	m.lastPercentage.WithLabelValues(deviceID).Set(pct)
}

// ForgetDevice drops per-device series after a delete.
func (m *Metrics) ForgetDevice(deviceID string) {
	if m == nil {
		return
	}

	m.lastPercentage.DeleteLabelValues(deviceID)
}

func (m *Metrics) HistoryPruned(n int) {
	if m == nil || n <= 0 {
		return
	}

	m.historyPruned.Add(float64(n))
}
