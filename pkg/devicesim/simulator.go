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

// Package devicesim serves a fake AquaLevel firmware API for tests and demos.
package devicesim

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"

	aqhttp "github.com/carverauto/aqualevel/pkg/http"
	"github.com/carverauto/aqualevel/pkg/logger"
	"github.com/carverauto/aqualevel/pkg/models"
)

// DefaultSettings is the configuration a freshly flashed device reports.
func DefaultSettings() models.DeviceSettings {
	return models.DeviceSettings{
		TankHeight:          200,
		TankDiameter:        150,
		TankVolume:          3500,
		SensorOffset:        0,
		EmptyDistance:       200,
		FullDistance:        20,
		MeasurementInterval: 60,
		ReadingSmoothing:    5,
		AlertLevelLow:       20,
		AlertLevelHigh:      90,
		AlertsEnabled:       true,
	}
}

// Option customizes a Simulator.
type Option func(*Simulator)

func WithLogger(log logger.Logger) Option {
	return func(s *Simulator) { s.log = log }
}

func WithSettings(settings models.DeviceSettings) Option {
	return func(s *Simulator) { s.settings = settings }
}

// WithDistance sets the initial sensor reading in centimetres.
func WithDistance(d float64) Option {
	return func(s *Simulator) { s.distance = d }
}

func WithNetworks(networks ...models.WiFiNetwork) Option {
	return func(s *Simulator) { s.networks = networks }
}

// WithWrappedScan makes /scannetworks answer {"networks": [...]} instead of a bare array.
func WithWrappedScan() Option {
	return func(s *Simulator) { s.wrapScan = true }
}

type failure struct {
	status int
	body   string
}

// Simulator holds the mutable state of one fake device.
type Simulator struct {
	mu sync.Mutex

	log      logger.Logger
	settings models.DeviceSettings
	distance float64
	networks []models.WiFiNetwork
	wrapScan bool

	network  *models.NetworkSettingsRequest
	resets   int
	fail     *failure
	delay    time.Duration
	queries  map[string]url.Values
	requests map[string]int
}

func New(opts ...Option) *Simulator {
	s := &Simulator{
		log:      logger.NewTestLogger(),
		settings: DefaultSettings(),
		distance: 110,
		networks: []models.WiFiNetwork{
			{SSID: "HomeNetwork", RSSI: -48, Secure: true},
			{SSID: "Garage", RSSI: -72, Secure: true},
			{SSID: "Guest", RSSI: -81, Secure: false},
		},
		queries:  make(map[string]url.Values),
		requests: make(map[string]int),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Router registers the firmware endpoints on a new mux router.
func (s *Simulator) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.intercept)

	r.HandleFunc("/tank-data", s.getTankData).Methods("GET")
	r.HandleFunc("/settings", s.getSettings).Methods("GET")
	r.HandleFunc("/scannetworks", s.scanNetworks).Methods("GET")
	r.HandleFunc("/network", s.configureNetwork).Methods("GET")
	r.HandleFunc("/resetwifi", s.resetWiFi).Methods("GET")
	r.HandleFunc("/set", s.set).Methods("GET")
	r.HandleFunc("/calibrate", s.calibrate).Methods("GET")

	return r
}

// Handler is the router wrapped with request logging and panic recovery.
func (s *Simulator) Handler(cors aqhttp.CORSConfig) http.Handler {
	return aqhttp.RecoveryMiddleware(s.log)(aqhttp.CommonMiddleware(s.Router(), cors, s.log))
}

// Fail makes every request answer with status and body until cleared with status 0.
func (s *Simulator) Fail(status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if status == 0 {
		s.fail = nil
		return
	}

	s.fail = &failure{status: status, body: body}
}

// SetDelay holds every response for d, or until the client gives up.
func (s *Simulator) SetDelay(d time.Duration) {
	s.mu.Lock()
	s.delay = d
	s.mu.Unlock()
}

// SetDistance changes the simulated sensor reading.
func (s *Simulator) SetDistance(d float64) {
	s.mu.Lock()
	s.distance = d
	s.mu.Unlock()
}

func (s *Simulator) Settings() models.DeviceSettings {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.settings
}

// Network returns the credentials last sent to /network, if any.
func (s *Simulator) Network() (models.NetworkSettingsRequest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.network == nil {
		return models.NetworkSettingsRequest{}, false
	}

	return *s.network, true
}

func (s *Simulator) Resets() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.resets
}

// LastQuery is the query string of the most recent request to path, e.g. "/set".
func (s *Simulator) LastQuery(path string) url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.queries[path]
	if !ok {
		return nil
	}

	out := make(url.Values, len(q))
	for k, v := range q {
		out[k] = append([]string(nil), v...)
	}

	return out
}

// Requests counts the requests received on path.
func (s *Simulator) Requests(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.requests[path]
}

// TankData derives the /tank-data payload from the current distance and settings.
func (s *Simulator) TankData() models.TankData {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.tankDataLocked()
}

func (s *Simulator) tankDataLocked() models.TankData {
	st := s.settings
	distance := s.distance + st.SensorOffset

	span := st.EmptyDistance - st.FullDistance

	var pct float64
	if span > 0 {
		pct = clamp((st.EmptyDistance-distance)/span*100, 0, 100)
	}

	return models.TankData{
		Distance:       distance,
		WaterLevel:     clamp(st.EmptyDistance-distance, 0, st.TankHeight),
		Percentage:     pct,
		Volume:         st.TankVolume * pct / 100,
		TankHeight:     st.TankHeight,
		TankDiameter:   st.TankDiameter,
		TankVolume:     st.TankVolume,
		AlertLevelLow:  st.AlertLevelLow,
		AlertLevelHigh: st.AlertLevelHigh,
		AlertsEnabled:  st.AlertsEnabled,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}

	if v > hi {
		return hi
	}

	return v
}

func (s *Simulator) intercept(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests[r.URL.Path]++
		s.queries[r.URL.Path] = r.URL.Query()
		fail := s.fail
		delay := s.delay
		s.mu.Unlock()

		if delay > 0 {
			timer := time.NewTimer(delay)

			select {
			case <-timer.C:
			case <-r.Context().Done():
				timer.Stop()
				return
			}
		}

		if fail != nil {
			w.WriteHeader(fail.status)
			_, _ = w.Write([]byte(fail.body))

			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Simulator) getTankData(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.TankData())
}

func (s *Simulator) getSettings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.Settings())
}

func (s *Simulator) scanNetworks(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	networks := append([]models.WiFiNetwork(nil), s.networks...)
	wrap := s.wrapScan
	s.mu.Unlock()

	if networks == nil {
		networks = []models.WiFiNetwork{}
	}

	if wrap {
		writeJSON(w, models.NetworkScanResponse{Networks: networks})
		return
	}

	writeJSON(w, networks)
}

func (s *Simulator) configureNetwork(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	req := models.NetworkSettingsRequest{
		SSID:       q.Get("ssid"),
		Password:   q.Get("password"),
		DeviceName: q.Get("deviceName"),
	}

	if req.SSID == "" {
		http.Error(w, "SSID is required", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.network = &req
	s.mu.Unlock()

	s.log.Info().Str("ssid", req.SSID).Str("device_name", req.DeviceName).Msg("Simulated device received network credentials")

	writeJSON(w, "Network settings saved. Restarting...")
}

func (s *Simulator) resetWiFi(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	s.resets++
	s.network = nil
	s.mu.Unlock()

	writeJSON(w, "WiFi settings reset")
}

func (s *Simulator) set(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	s.mu.Lock()
	updated := s.settings
	s.mu.Unlock()

	floats := map[string]*float64{
		"tankHeight":    &updated.TankHeight,
		"tankDiameter":  &updated.TankDiameter,
		"tankVolume":    &updated.TankVolume,
		"sensorOffset":  &updated.SensorOffset,
		"emptyDistance": &updated.EmptyDistance,
		"fullDistance":  &updated.FullDistance,
	}

	ints := map[string]*int{
		"measurementInterval": &updated.MeasurementInterval,
		"readingSmoothing":    &updated.ReadingSmoothing,
		"alertLevelLow":       &updated.AlertLevelLow,
		"alertLevelHigh":      &updated.AlertLevelHigh,
	}

	for key, dst := range floats {
		if !q.Has(key) {
			continue
		}

		v, err := strconv.ParseFloat(q.Get(key), 64)
		if err != nil {
			http.Error(w, fmt.Sprintf("Invalid value for %s", key), http.StatusBadRequest)
			return
		}

		*dst = v
	}

	for key, dst := range ints {
		if !q.Has(key) {
			continue
		}

		v, err := strconv.Atoi(q.Get(key))
		if err != nil {
			http.Error(w, fmt.Sprintf("Invalid value for %s", key), http.StatusBadRequest)
			return
		}

		*dst = v
	}

	if q.Has("alertsEnabled") {
		v, err := strconv.ParseBool(q.Get("alertsEnabled"))
		if err != nil {
			http.Error(w, "Invalid value for alertsEnabled", http.StatusBadRequest)
			return
		}

		updated.AlertsEnabled = v
	}

	s.mu.Lock()
	s.settings = updated
	s.mu.Unlock()

	writeJSON(w, "Settings updated")
}

func (s *Simulator) calibrate(w http.ResponseWriter, r *http.Request) {
	kind := models.CalibrationType(r.URL.Query().Get("type"))

	s.mu.Lock()
	defer s.mu.Unlock()

	switch kind {
	case models.CalibrateEmpty:
		s.settings.EmptyDistance = s.distance
		writeJSON(w, fmt.Sprintf("Empty calibration set at %.1f cm", s.distance))
	case models.CalibrateFull:
		s.settings.FullDistance = s.distance
		writeJSON(w, fmt.Sprintf("Full calibration set at %.1f cm", s.distance))
	default:
		http.Error(w, "Invalid calibration type", http.StatusBadRequest)
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
