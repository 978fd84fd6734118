// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package driver

import "errors"

var (
	// ErrCommandFailed is returned when the module did not confirm a
	// request in time or confirmed it with a failure status. The two cases
	// are deliberately indistinguishable to callers; the driver log says
	// which one occurred.
	ErrCommandFailed = errors.New("command failed")

	// ErrInvalidParameter is returned before any I/O when an argument is
	// outside the range the module accepts.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrSettingMismatch is returned by Configure when a setting read back
	// from the module has a different length than the desired value.
	ErrSettingMismatch = errors.New("setting length mismatch")

	// ErrTransport wraps failures of the underlying link.
	ErrTransport = errors.New("transport unavailable")

	ErrNotStarted = errors.New("driver not started")
	ErrClosed     = errors.New("driver closed")
)

// Internal wait outcomes, collapsed to ErrCommandFailed at the API boundary
var (
	errConfirmationTimeout = errors.New("confirmation timeout")
	errUnexpectedStatus    = errors.New("unexpected status")
)
