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

package cli

import (
	"fmt"
	"io"
)

// ShowHelp writes the usage message.
func ShowHelp(w io.Writer) {
	fmt.Fprint(w, `aqualevel: manage AquaLevel water tank sensors

Usage:
  aqualevel [global options] <command> [options] [args]

Global options:
  -config string   path to a JSON or TOML config file
  -env string      .env file to load before reading the environment (default ".env")
  -json            print machine-readable JSON
  -version         print the version and exit
  -help            show this help message

Devices:
  discover         browse the local network for devices (-timeout, -save)
  find             look for one device by hostname (-hostname, -timeout, -save)
  list             list known devices (-favorites)
  select <device>  make a device current
  rename <device> <name>
  favorite [-off] <device>
  delete <device>

Readings:
  status           fetch current tank data (-device)
  refresh          refresh the current device, or every device with -all
  watch            keep refreshing the current device until interrupted
  history          show stored readings (-device, -since, -limit)

Configuration:
  settings         show device settings (-device)
  set-tank         -height -diameter -volume
  set-sensor       -offset -empty -full -interval -smoothing
  set-alerts       -low -high -enabled
  calibrate        -type empty|full
  reset-wifi       clear the device's WiFi credentials (-device)

Setup (while joined to an AquaLevel-<name>-Setup network):
  scan-networks    list networks the device can see
  setup            -ssid -password [-name]
  wifi             show the current WiFi network

Preferences:
  prefs                    show all preferences
  prefs <key> <value>      change one preference

A <device> is a device id or its name.

Examples:
  aqualevel discover -save
  aqualevel select Kitchen
  aqualevel set-alerts -low 15 -enabled
  aqualevel prefs refresh_interval 30s
`)
}
