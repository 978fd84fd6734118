// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package driver

import (
	"fmt"
	"io"
)

// Transport is the byte link to the module.
//
// Read must not block indefinitely: when nothing has arrived it should
// return (0, nil) after a short read timeout so the receiver can observe
// Close and resync requests. Any error returned by Read ends the receiver.
type Transport interface {
	io.Reader
	io.Writer
}

// InputFlusher is implemented by transports that can discard bytes
// already received but not yet read. Pin resets and wakeups use it when
// available.
type InputFlusher interface {
	ResetInputBuffer() error
}

// Pin names a control line of the module
type Pin int

const (
	PinReset Pin = iota
	PinWakeup
	PinBoot
)

func (p Pin) String() string {
	switch p {
	case PinReset:
		return "RESET"
	case PinWakeup:
		return "WAKEUP"
	case PinBoot:
		return "BOOT"
	default:
		return fmt.Sprintf("PIN(%d)", int(p))
	}
}

// Pins drives the module's control lines. high is the electrical level.
type Pins interface {
	SetPin(pin Pin, high bool) error
}

// NoPins is a Pins implementation for links without control lines.
// Every call succeeds and does nothing.
type NoPins struct{}

// SetPin implements Pins
func (NoPins) SetPin(Pin, bool) error { return nil }
