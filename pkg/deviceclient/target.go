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

import "strings"

// Target is an immutable snapshot of where requests go. DeviceID is empty
// when bound to a setup access point. Generation increases on every rebind.
type Target struct {
	DeviceID   string
	BaseURL    string
	Generation uint64
}

// TargetProvider supplies the currently bound target.
type TargetProvider interface {
	Target() (Target, bool)
}

// StaticTarget is a TargetProvider that always returns the same target.
type StaticTarget Target

func (s StaticTarget) Target() (Target, bool) {
	return Target(s), s.BaseURL != ""
}

// NormalizeBaseURL turns an IP, host or URL into "http://host/".
func NormalizeBaseURL(address string) string {
	address = strings.TrimSpace(address)
	if address == "" {
		return ""
	}

	if !strings.HasPrefix(address, "http://") && !strings.HasPrefix(address, "https://") {
		address = "http://" + address
	}

	if !strings.HasSuffix(address, "/") {
		address += "/"
	}

	return address
}
