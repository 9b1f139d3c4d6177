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

import "errors"

var (
	errUnknownCommand    = errors.New("unknown command")
	errNoDeviceSelected  = errors.New("no device selected; run 'aqualevel select <device>' first")
	errDeviceArgRequired = errors.New("a device id or name is required")
	errNameRequired      = errors.New("a new name is required")
	errAmbiguousDevice   = errors.New("more than one device matches")
	errHostnameRequired  = errors.New("find requires -hostname")
	errNothingToSet      = errors.New("no settings given")
	errInvalidLevel      = errors.New("alert levels must be between 0 and 100")
	errTooManyArgs       = errors.New("too many arguments")
	errValueRequired     = errors.New("a value is required")
)
