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

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostnameForDeviceName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "simple", in: "Kitchen", want: "aqualevel-kitchen.local"},
		{name: "spaces and dots", in: "Back Yard.Tank_2", want: "aqualevel-back-yard-tank-2.local"},
		{name: "punctuation dropped", in: "Rain!Barrel", want: "aqualevel-rainbarrel.local"},
		{name: "already prefixed", in: "AquaLevel-Garage", want: "aqualevel-garage.local"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HostnameForDeviceName(tt.in))
		})
	}
}

func TestHostnameForServiceName(t *testing.T) {
	assert.Equal(t, "aqualevel-kitchen.local", HostnameForServiceName("AquaLevel-Kitchen"))
	assert.Equal(t, "aqualevel-kitchen.local", HostnameForServiceName("aqualevel-kitchen.local"))
	assert.Equal(t, "aqualevel-my-tank.local", HostnameForServiceName("My Tank"))
	assert.Equal(t, "aqualevel-2.local", HostnameForServiceName("Aqualevel 2"))
}

func TestSetupSSIDParsing(t *testing.T) {
	assert.True(t, IsSetupSSID("AquaLevel-Kitchen-Setup"))
	assert.True(t, IsSetupSSID("aqualevel-kitchen-setup"))
	assert.False(t, IsSetupSSID("HomeNet"))
	assert.False(t, IsSetupSSID("Aqua"))

	name, ok := DeviceNameFromSetupSSID("AquaLevel-Kitchen-Setup")
	require.True(t, ok)
	assert.Equal(t, "Kitchen", name)
	assert.Equal(t, "aqualevel-kitchen.local", HostnameForDeviceName(name))

	_, ok = DeviceNameFromSetupSSID("AquaLevel-Kitchen")
	assert.False(t, ok)
}

func TestSignalStrength(t *testing.T) {
	cases := map[int]int{-40: 4, -50: 4, -55: 3, -65: 2, -75: 1, -80: 1, -81: 0, -95: 0}

	for rssi, want := range cases {
		assert.Equal(t, want, WiFiNetwork{RSSI: rssi}.SignalStrength(), "rssi %d", rssi)
	}
}

func TestDeviceCloneIsDeep(t *testing.T) {
	d := NewDevice("aqualevel-kitchen.local", "Kitchen", "192.168.1.50", time.Now())
	d.LastPercentage = Float(42)
	d.AlertLevelLow = Int(10)

	c := d.Clone()
	*c.LastPercentage = 90
	*c.AlertLevelLow = 5

	assert.InDelta(t, 42.0, *d.LastPercentage, 0.0001)
	assert.Equal(t, 10, *d.AlertLevelLow)
	assert.True(t, c.AlertsEnabled)
	assert.Equal(t, "aqualevel-kitchen", DefaultDeviceName("aqualevel-kitchen.local"))
}
