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
	"regexp"
	"strings"
	"unicode"
)

const (
	// ProductTag is matched case-insensitively against advertised service names.
	ProductTag = "aqualevel"
	// SetupSSIDPrefix marks a device's own setup access point.
	SetupSSIDPrefix = "AquaLevel-"
	// HostnamePrefix is prepended to every device hostname.
	HostnamePrefix = "aqualevel-"
	// LocalSuffix is the mDNS domain suffix.
	LocalSuffix = ".local"
	// SetupAccessPointAddress is where a device in setup mode serves its API.
	SetupAccessPointAddress = "192.168.4.1"
)

var setupSSIDPattern = regexp.MustCompile(`(?i)AquaLevel-(.+)-Setup`)

// IsSetupSSID reports whether ssid belongs to a device setup access point.
func IsSetupSSID(ssid string) bool {
	return len(ssid) >= len(SetupSSIDPrefix) &&
		strings.EqualFold(ssid[:len(SetupSSIDPrefix)], SetupSSIDPrefix)
}

// DeviceNameFromSetupSSID extracts <name> from "AquaLevel-<name>-Setup".
func DeviceNameFromSetupSSID(ssid string) (string, bool) {
	m := setupSSIDPattern.FindStringSubmatch(ssid)
	if m == nil {
		return "", false
	}

	return m[1], true
}

// HostnameForDeviceName converts a user-chosen device name into the hostname
// the firmware announces after provisioning, e.g. "Kitchen" -> "aqualevel-kitchen.local".
func HostnameForDeviceName(name string) string {
	folded := strings.NewReplacer(" ", "-", ".", "-", "_", "-").Replace(strings.ToLower(name))

	var b strings.Builder

	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' {
			b.WriteRune(r)
		}
	}

	hostname := b.String()
	if !strings.HasPrefix(hostname, HostnamePrefix) {
		hostname = HostnamePrefix + hostname
	}

	return hostname + LocalSuffix
}

// HostnameForServiceName derives a hostname from an advertised instance name.
// Names already ending in ".local" are returned unchanged.
func HostnameForServiceName(serviceName string) string {
	if strings.HasSuffix(serviceName, LocalSuffix) {
		return serviceName
	}

	folded := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}

		return '-'
	}, strings.ToLower(serviceName))

	if !strings.HasPrefix(folded, HostnamePrefix) {
		folded = HostnamePrefix + folded
	}

	return folded + LocalSuffix
}

// DefaultDeviceName is the directory name given to a newly discovered device.
func DefaultDeviceName(serviceName string) string {
	return strings.TrimSuffix(serviceName, LocalSuffix)
}

// IsProductService reports whether an advertised instance looks like an AquaLevel device.
func IsProductService(instance string) bool {
	return strings.Contains(strings.ToLower(instance), ProductTag)
}
