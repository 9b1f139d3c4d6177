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

// Package models holds the AquaLevel domain types shared across packages.
package models

import (
	"strings"
	"time"
)

// DiscoveredDevice is a resolved mDNS candidate. It is not persisted directly;
// the directory turns it into a Device keyed by Hostname.
type DiscoveredDevice struct {
	ServiceName string `json:"service_name"`
	Hostname    string `json:"hostname"`
	IPAddress   string `json:"ip_address"`
	Port        int    `json:"port"`
}

// Device is a directory entry. ID is the device hostname, e.g. "aqualevel-kitchen.local".
type Device struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	IPAddress      string    `json:"ip_address"`
	LastSeen       time.Time `json:"last_seen"`
	LastPercentage *float64  `json:"last_percentage,omitempty"`
	LastVolume     *float64  `json:"last_volume,omitempty"`
	TankHeight     *float64  `json:"tank_height,omitempty"`
	TankDiameter   *float64  `json:"tank_diameter,omitempty"`
	TankVolume     *float64  `json:"tank_volume,omitempty"`
	IsFavorite     bool      `json:"is_favorite"`
	AlertLevelLow  *int      `json:"alert_level_low,omitempty"`
	AlertLevelHigh *int      `json:"alert_level_high,omitempty"`
	AlertsEnabled  bool      `json:"alerts_enabled"`
}

// NewDevice returns a Device with the defaults a fresh directory entry carries.
func NewDevice(id, name, ip string, lastSeen time.Time) *Device {
	return &Device{
		ID:            id,
		Name:          name,
		IPAddress:     ip,
		LastSeen:      lastSeen,
		AlertsEnabled: true,
	}
}

// Clone returns a deep copy so callers can mutate the result freely.
func (d *Device) Clone() *Device {
	if d == nil {
		return nil
	}

	dst := *d
	dst.LastPercentage = cloneFloat(d.LastPercentage)
	dst.LastVolume = cloneFloat(d.LastVolume)
	dst.TankHeight = cloneFloat(d.TankHeight)
	dst.TankDiameter = cloneFloat(d.TankDiameter)
	dst.TankVolume = cloneFloat(d.TankVolume)
	dst.AlertLevelLow = cloneInt(d.AlertLevelLow)
	dst.AlertLevelHigh = cloneInt(d.AlertLevelHigh)

	return &dst
}

// DisplayName falls back to the id when no friendly name is set.
func (d *Device) DisplayName() string {
	if strings.TrimSpace(d.Name) != "" {
		return d.Name
	}

	return d.ID
}

// WaterLevelHistory is one persisted reading for a device.
type WaterLevelHistory struct {
	ID         uint64    `json:"id"`
	DeviceID   string    `json:"device_id"`
	Timestamp  time.Time `json:"timestamp"`
	Percentage float64   `json:"percentage"`
	Volume     float64   `json:"volume"`
	Distance   float64   `json:"distance"`
	WaterLevel float64   `json:"water_level"`
}

// HistoryStats summarizes fill percentage over a time range.
type HistoryStats struct {
	Count   int     `json:"count"`
	Average float64 `json:"average"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// Bool returns a pointer to v.
func Bool(v bool) *bool { return &v }

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}

	c := *v

	return &c
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}

	c := *v

	return &c
}
