// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/Thermoquad/radiolink/pkg/driver"
)

// Module is an open connection with a running driver
type Module struct {
	*driver.Driver
	Conn     Connection
	ConnInfo string
	// HasPins is set when the reset line is wired; HasWakeup when the
	// wakeup line is as well
	HasPins   bool
	HasWakeup bool
}

// Close stops the driver and closes the connection
func (m *Module) Close() error {
	derr := m.Driver.Close()
	cerr := m.Conn.Close()
	if derr != nil {
		return derr
	}
	return cerr
}

// driverLogger returns the driver's logger: stderr with --verbose,
// otherwise nil so the driver discards its diagnostics
func driverLogger() *log.Logger {
	if !verbose {
		return nil
	}
	return log.New(os.Stderr, "", log.Ltime|log.Lmicroseconds)
}

// OpenModule opens the connection and starts a driver on it. cfg's
// AddressMode and Logger are taken from the global flags.
func OpenModule(cfg driver.Config) (*Module, error) {
	mode, err := addressMode()
	if err != nil {
		return nil, err
	}

	conn, connInfo, err := OpenConnection()
	if err != nil {
		return nil, err
	}

	cfg.AddressMode = mode
	cfg.Logger = driverLogger()
	cfg.Verbose = verbose

	pins := pinsFor(conn)
	d, err := driver.New(conn, pins, cfg)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := d.Start(); err != nil {
		conn.Close()
		return nil, err
	}

	return &Module{
		Driver:    d,
		Conn:      conn,
		ConnInfo:  connInfo,
		HasPins:   pins != nil,
		HasWakeup: hasLine(pins, driver.PinWakeup),
	}, nil
}

// InitModule opens the module and brings it to a known state: a pin
// reset when control lines are available, then the firmware version.
func InitModule(ctx context.Context, cfg driver.Config) (*Module, [3]byte, error) {
	m, err := OpenModule(cfg)
	if err != nil {
		return nil, [3]byte{}, err
	}

	var fw [3]byte
	if m.HasPins {
		fw, err = m.Init(ctx)
	} else {
		fw, err = m.FirmwareVersion(ctx)
	}
	if err != nil {
		m.Close()
		return nil, fw, fmt.Errorf("module not responding: %w", err)
	}
	return m, fw, nil
}

// exitOnConnError mirrors the probe commands' exit codes: 2 for a link
// that could not be opened
func exitOnConnError(err error) {
	fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
	os.Exit(2)
}
