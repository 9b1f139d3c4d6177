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

package models

// TankData is the /tank-data payload.
type TankData struct {
	Distance       float64 `json:"distance"`
	WaterLevel     float64 `json:"waterLevel"`
	Percentage     float64 `json:"percentage"`
	Volume         float64 `json:"volume"`
	TankHeight     float64 `json:"tankHeight"`
	TankDiameter   float64 `json:"tankDiameter"`
	TankVolume     float64 `json:"tankVolume"`
	AlertLevelLow  int     `json:"alertLevelLow"`
	AlertLevelHigh int     `json:"alertLevelHigh"`
	AlertsEnabled  bool    `json:"alertsEnabled"`
}

// DeviceSettings is the /settings payload.
type DeviceSettings struct {
	TankHeight          float64 `json:"tankHeight"`
	TankDiameter        float64 `json:"tankDiameter"`
	TankVolume          float64 `json:"tankVolume"`
	SensorOffset        float64 `json:"sensorOffset"`
	EmptyDistance       float64 `json:"emptyDistance"`
	FullDistance        float64 `json:"fullDistance"`
	MeasurementInterval int     `json:"measurementInterval"`
	ReadingSmoothing    int     `json:"readingSmoothing"`
	AlertLevelLow       int     `json:"alertLevelLow"`
	AlertLevelHigh      int     `json:"alertLevelHigh"`
	AlertsEnabled       bool    `json:"alertsEnabled"`
}

// TankSettingsRequest updates tank geometry through /set. Nil fields are not sent.
type TankSettingsRequest struct {
	TankHeight   *float64 `url:"tankHeight,omitempty"`
	TankDiameter *float64 `url:"tankDiameter,omitempty"`
	TankVolume   *float64 `url:"tankVolume,omitempty"`
}

// SensorSettingsRequest updates sensor calibration through /set.
type SensorSettingsRequest struct {
	SensorOffset        *float64 `url:"sensorOffset,omitempty"`
	EmptyDistance       *float64 `url:"emptyDistance,omitempty"`
	FullDistance        *float64 `url:"fullDistance,omitempty"`
	MeasurementInterval *int     `url:"measurementInterval,omitempty"`
	ReadingSmoothing    *int     `url:"readingSmoothing,omitempty"`
}

// AlertSettingsRequest updates alert thresholds through /set.
type AlertSettingsRequest struct {
	AlertLevelLow  *int  `url:"alertLevelLow,omitempty"`
	AlertLevelHigh *int  `url:"alertLevelHigh,omitempty"`
	AlertsEnabled  *bool `url:"alertsEnabled,omitempty"`
}

// CalibrationType selects the reference point for /calibrate.
type CalibrationType string

const (
	CalibrateEmpty CalibrationType = "empty"
	CalibrateFull  CalibrationType = "full"
)

// Valid reports whether t is a calibration point the firmware accepts.
func (t CalibrationType) Valid() bool {
	return t == CalibrateEmpty || t == CalibrateFull
}
