// Copyright 2026 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tock

import "fmt"

// ErrorCode is the error value returned to userspace. Zero is not a valid
// error code.
type ErrorCode uint32

// Error codes.
const (
	// FAIL is a generic failure.
	FAIL ErrorCode = 1

	// BUSY means the underlying system is busy; retry.
	BUSY ErrorCode = 2

	// ALREADY means the state requested is already set.
	ALREADY ErrorCode = 3

	// OFF means the component is powered down.
	OFF ErrorCode = 4

	// RESERVE means reservation required before use.
	RESERVE ErrorCode = 5

	// INVAL means an invalid parameter was passed.
	INVAL ErrorCode = 6

	// SIZE means the parameter passed was too large.
	SIZE ErrorCode = 7

	// CANCEL means the operation was cancelled by a call.
	CANCEL ErrorCode = 8

	// NOMEM means memory required was not available.
	NOMEM ErrorCode = 9

	// NOSUPPORT means the operation is not supported.
	NOSUPPORT ErrorCode = 10

	// NODEVICE means the device is not available.
	NODEVICE ErrorCode = 11

	// UNINSTALLED means the device is physically not installed.
	UNINSTALLED ErrorCode = 12

	// NOACK means the packet transmission was not acknowledged.
	NOACK ErrorCode = 13
)

var errorNames = [...]string{
	FAIL:        "FAIL",
	BUSY:        "BUSY",
	ALREADY:     "ALREADY",
	OFF:         "OFF",
	RESERVE:     "RESERVE",
	INVAL:       "INVAL",
	SIZE:        "SIZE",
	CANCEL:      "CANCEL",
	NOMEM:       "NOMEM",
	NOSUPPORT:   "NOSUPPORT",
	NODEVICE:    "NODEVICE",
	UNINSTALLED: "UNINSTALLED",
	NOACK:       "NOACK",
}

// String implements fmt.Stringer.
func (e ErrorCode) String() string {
	if int(e) < len(errorNames) && errorNames[e] != "" {
		return errorNames[e]
	}
	return fmt.Sprintf("ErrorCode(%d)", uint32(e))
}

// Error implements error, so an ErrorCode can be returned from helpers that
// report Go errors.
func (e ErrorCode) Error() string {
	return e.String()
}
