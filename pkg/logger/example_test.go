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

package logger_test

import (
	"github.com/carverauto/aqualevel/pkg/logger"
)

func ExampleInit() {
	config := &logger.Config{
		Level:  "debug",
		Debug:  true,
		Output: "stderr",
	}

	err := logger.Init(config)
	if err != nil {
		panic(err)
	}

	logger.Info().Str("component", "example").Msg("Logger initialized successfully")
}

func ExampleWithComponent() {
	discoveryLogger := logger.WithComponent("discovery")

	discoveryLogger.Info().
		Str("hostname", "aqualevel-kitchen.local").
		Str("ip", "192.168.1.50").
		Msg("Discovered device")
}

func ExampleWithFields() {
	fields := map[string]interface{}{
		"device_id":  "aqualevel-kitchen.local",
		"percentage": 72.5,
	}

	enrichedLogger := logger.WithFields(fields)
	enrichedLogger.Info().Msg("Recorded telemetry")
}
