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

package discovery

import "errors"

var (
	ErrDeviceNotFound = errors.New("device not found on the network")
	ErrBrowseFailed   = errors.New("mDNS browse failed")
	ErrResolveFailed  = errors.New("failed to resolve device address")
	ErrAdvertise      = errors.New("failed to advertise service")

	errNoAddress = errors.New("entry has no IPv4 address or host name")
)
