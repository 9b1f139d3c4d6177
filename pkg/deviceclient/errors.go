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

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Error kinds. Match with errors.Is against an *Error.
var (
	ErrNotConfigured = errors.New("device address not configured")
	ErrTimeout       = errors.New("device request timed out")
	ErrTransport     = errors.New("device transport failure")
	ErrUnexpected    = errors.New("unexpected device response")
	ErrHTTPStatus    = errors.New("device returned error status")

	errInvalidCalibration = errors.New("calibration type must be empty or full")
)

const (
	msgNotConfigured = "Device address not configured"
	msgTimeout       = "Connection timed out. Make sure the device is powered on and connected to the network."
	msgNullBody      = "Response body is null"
	msgUnknownError  = "Unknown error"
)

// Error is the single error type returned by device calls. Message is meant
// for display; Code carries the HTTP status when the device answered.
type Error struct {
	Message string
	Code    int
	kind    error
	cause   error
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s (HTTP %d)", e.Message, e.Code)
	}

	return e.Message
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *Error) Unwrap() []error {
	if e.cause == nil {
		return []error{e.kind}
	}

	return []error{e.kind, e.cause}
}

func notConfigured() *Error {
	return &Error{Message: msgNotConfigured, kind: ErrNotConfigured}
}

func statusError(body string, code int) *Error {
	if body == "" {
		body = msgUnknownError
	}

	return &Error{Message: body, Code: code, kind: ErrHTTPStatus}
}

func unexpected(cause error) *Error {
	return &Error{
		Message: "An unexpected error occurred: " + cause.Error(),
		kind:    ErrUnexpected,
		cause:   cause,
	}
}

// classify maps a transport-level failure onto a kind.
func classify(err error) *Error {
	var derr *Error
	if errors.As(err, &derr) {
		return derr
	}

	var nerr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &nerr) && nerr.Timeout()) {
		return &Error{Message: msgTimeout, kind: ErrTimeout, cause: err}
	}

	return &Error{Message: "Network error: " + err.Error(), kind: ErrTransport, cause: err}
}
