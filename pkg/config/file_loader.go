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

package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// ConfigFormat identifies how a configuration file is encoded.
type ConfigFormat string

const (
	ConfigFormatJSON ConfigFormat = "json"
	ConfigFormatTOML ConfigFormat = "toml"
)

// FormatForPath picks the format from the file extension; unknown extensions are JSON.
func FormatForPath(path string) ConfigFormat {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return ConfigFormatTOML
	}

	return ConfigFormatJSON
}

// FileConfigLoader loads configuration from a local JSON or TOML file.
type FileConfigLoader struct{}

// Load implements ConfigLoader by reading and decoding the file at path.
func (*FileConfigLoader) Load(_ context.Context, path string, dst interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file '%s': %w", path, err)
	}

	switch FormatForPath(path) {
	case ConfigFormatTOML:
		if _, err := toml.Decode(string(data), dst); err != nil {
			return fmt.Errorf("failed to decode TOML from '%s': %w", path, err)
		}
	case ConfigFormatJSON:
		if err := json.Unmarshal(data, dst); err != nil {
			return fmt.Errorf("failed to unmarshal JSON from '%s': %w", path, err)
		}
	}

	return nil
}
