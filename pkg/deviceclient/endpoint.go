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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-querystring/query"

	"github.com/carverauto/aqualevel/pkg/metrics"
	"github.com/carverauto/aqualevel/pkg/models"
)

const maxBodyBytes = 1 << 20

// Firmware endpoint paths.
const (
	pathTankData     = "tank-data"
	pathSettings     = "settings"
	pathScanNetworks = "scannetworks"
	pathNetwork      = "network"
	pathResetWiFi    = "resetwifi"
	pathSet          = "set"
	pathCalibrate    = "calibrate"
)

// Endpoint issues requests against one fixed Target.
type Endpoint struct {
	client *Client
	target Target
}

// Target returns the snapshot this endpoint was built for.
func (e *Endpoint) Target() Target { return e.target }

// DeviceID is the directory id the request is attributed to.
func (e *Endpoint) DeviceID() string { return e.target.DeviceID }

func (e *Endpoint) TankData(ctx context.Context) (*models.TankData, error) {
	out := &models.TankData{}
	if err := e.getJSON(ctx, pathTankData, nil, out); err != nil {
		return nil, err
	}

	return out, nil
}

func (e *Endpoint) Settings(ctx context.Context) (*models.DeviceSettings, error) {
	out := &models.DeviceSettings{}
	if err := e.getJSON(ctx, pathSettings, nil, out); err != nil {
		return nil, err
	}

	return out, nil
}

// ScanNetworks accepts both a bare array and a {"networks": [...]} object.
func (e *Endpoint) ScanNetworks(ctx context.Context) ([]models.WiFiNetwork, error) {
	body, err := e.get(ctx, pathScanNetworks, nil)
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, &Error{Message: msgNullBody, kind: ErrUnexpected}
	}

	if trimmed[0] == '{' {
		var wrapped models.NetworkScanResponse
		if err := json.Unmarshal(trimmed, &wrapped); err != nil {
			return nil, unexpected(err)
		}

		return wrapped.Networks, nil
	}

	var networks []models.WiFiNetwork
	if err := json.Unmarshal(trimmed, &networks); err != nil {
		return nil, unexpected(err)
	}

	return networks, nil
}

// ConfigureNetwork sends home WiFi credentials; the device reboots onto that network.
func (e *Endpoint) ConfigureNetwork(ctx context.Context, req *models.NetworkSettingsRequest) error {
	return e.getUnit(ctx, pathNetwork, req)
}

func (e *Endpoint) ResetWiFi(ctx context.Context) error {
	return e.getUnit(ctx, pathResetWiFi, nil)
}

func (e *Endpoint) UpdateTankSettings(ctx context.Context, req *models.TankSettingsRequest) error {
	return e.getUnit(ctx, pathSet, req)
}

func (e *Endpoint) UpdateSensorSettings(ctx context.Context, req *models.SensorSettingsRequest) error {
	return e.getUnit(ctx, pathSet, req)
}

func (e *Endpoint) UpdateAlertSettings(ctx context.Context, req *models.AlertSettingsRequest) error {
	return e.getUnit(ctx, pathSet, req)
}

// Calibrate records the current distance as the empty or full reference and
// returns the device's message.
func (e *Endpoint) Calibrate(ctx context.Context, kind models.CalibrationType) (string, error) {
	if !kind.Valid() {
		return "", fmt.Errorf("%w: %q", errInvalidCalibration, kind)
	}

	body, err := e.get(ctx, pathCalibrate, url.Values{"type": {string(kind)}})
	if err != nil {
		return "", err
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return "", &Error{Message: msgNullBody, kind: ErrUnexpected}
	}

	var msg string
	if err := json.Unmarshal(trimmed, &msg); err == nil {
		return msg, nil
	}

	return string(trimmed), nil
}

func (e *Endpoint) getJSON(ctx context.Context, path string, params interface{}, out interface{}) error {
	values, err := encodeParams(params)
	if err != nil {
		return err
	}

	body, err := e.get(ctx, path, values)
	if err != nil {
		return err
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return &Error{Message: msgNullBody, kind: ErrUnexpected}
	}

	if err := json.Unmarshal(trimmed, out); err != nil {
		return unexpected(err)
	}

	return nil
}

func (e *Endpoint) getUnit(ctx context.Context, path string, params interface{}) error {
	values, err := encodeParams(params)
	if err != nil {
		return err
	}

	_, err = e.get(ctx, path, values)

	return err
}

func encodeParams(params interface{}) (url.Values, error) {
	if params == nil {
		return nil, nil
	}

	values, err := query.Values(params)
	if err != nil {
		return nil, unexpected(err)
	}

	return values, nil
}

// get performs one GET and returns the body of a 2xx response.
func (e *Endpoint) get(ctx context.Context, path string, values url.Values) ([]byte, error) {
	if e.target.BaseURL == "" {
		return nil, notConfigured()
	}

	u := e.target.BaseURL + path
	if len(values) > 0 {
		u += "?" + values.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, unexpected(err)
	}

	req.Header.Set("Accept", "application/json")

	log := e.client.logger
	start := time.Now()

	resp, err := e.client.http.Do(req)
	if err != nil {
		derr := classify(err)
		e.client.metrics.ObserveRequest(path, outcomeFor(derr), time.Since(start))

		log.Debug().Err(err).Str("url", u).Str("device_id", e.target.DeviceID).Msg("Device request failed")

		return nil, derr
	}

	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		derr := classify(err)
		e.client.metrics.ObserveRequest(path, outcomeFor(derr), time.Since(start))

		return nil, derr
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		e.client.metrics.ObserveRequest(path, metrics.OutcomeError, time.Since(start))

		log.Debug().Int("status", resp.StatusCode).Str("url", u).Msg("Device returned error status")

		return nil, statusError(strings.TrimSpace(string(body)), resp.StatusCode)
	}

	e.client.metrics.ObserveRequest(path, metrics.OutcomeSuccess, time.Since(start))

	return body, nil
}

func outcomeFor(err error) string {
	if errors.Is(err, ErrTimeout) {
		return metrics.OutcomeTimeout
	}

	return metrics.OutcomeError
}
