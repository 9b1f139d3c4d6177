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

// NetworkSettingsRequest is sent to /network while the phone is joined to the setup AP.
type NetworkSettingsRequest struct {
	SSID       string `url:"ssid"`
	Password   string `url:"password"`
	DeviceName string `url:"deviceName"`
}

// WiFiNetwork is one entry of the /scannetworks response.
type WiFiNetwork struct {
	SSID   string `json:"ssid"`
	RSSI   int    `json:"rssi"`
	Secure bool   `json:"secure"`
}

// NetworkScanResponse is the object form of /scannetworks some firmware builds return.
type NetworkScanResponse struct {
	Networks []WiFiNetwork `json:"networks"`
}

// SignalStrength buckets RSSI into 0 (very poor) through 4 (excellent).
func (n WiFiNetwork) SignalStrength() int {
	switch {
	case n.RSSI >= -50:
		return 4
	case n.RSSI >= -60:
		return 3
	case n.RSSI >= -70:
		return 2
	case n.RSSI >= -80:
		return 1
	default:
		return 0
	}
}
