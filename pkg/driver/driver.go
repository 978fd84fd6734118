// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package driver implements the command/response engine for AMBER radio
// modules on top of the amber frame codec.
//
// A Driver owns a background receiver that decodes the module's output.
// Confirmations are matched to the single request in flight; DATAEX
// indications are delivered to a Callback. Public operations return
// ErrCommandFailed when the module either did not answer in time or
// answered with a failure status.
package driver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/Thermoquad/radiolink/pkg/amber"
)

// Callback receives RF payloads from DATAEX_IND frames. It runs on the
// receiver goroutine and must return quickly: frames arriving meanwhile
// are not processed until it returns.
type Callback func(ind amber.Indication)

// Default timings
const (
	DefaultCommandTimeout      = 500 * time.Millisecond
	DefaultFactoryResetTimeout = 1500 * time.Millisecond
	DefaultPingTimeout         = 10 * time.Second
	DefaultPollInterval        = 1 * time.Millisecond
	DefaultPinPulse            = 5 * time.Millisecond
	DefaultStartupDelay        = 300 * time.Millisecond
	DefaultFactoryResetDelay   = 500 * time.Millisecond
	DefaultSettleDelay         = 200 * time.Millisecond
)

// Config configures a Driver. Zero durations take the defaults.
type Config struct {
	AddressMode amber.AddressMode
	Callback    Callback

	// Logger receives diagnostics. nil discards them.
	Logger *log.Logger
	// Verbose logs every frame the receiver dispatches.
	Verbose bool

	// OnFrame, if set, sees every valid frame before dispatch. It runs on
	// the receiver goroutine.
	OnFrame func(f *amber.Frame)
	// OnDecodeError, if set, sees every frame dropped by the decoder.
	OnDecodeError func(err error)

	CommandTimeout      time.Duration
	FactoryResetTimeout time.Duration
	PingTimeout         time.Duration
	PollInterval        time.Duration // idle receive poll
	PinPulse            time.Duration
	StartupDelay        time.Duration // after the pin reset in Init
	FactoryResetDelay   time.Duration // before Configure reads settings
	SettleDelay         time.Duration // between Configure steps
}

func (c *Config) applyDefaults() {
	if c.Logger == nil {
		c.Logger = log.New(io.Discard, "", 0)
	}
	setDefault(&c.CommandTimeout, DefaultCommandTimeout)
	setDefault(&c.FactoryResetTimeout, DefaultFactoryResetTimeout)
	setDefault(&c.PingTimeout, DefaultPingTimeout)
	setDefault(&c.PollInterval, DefaultPollInterval)
	setDefault(&c.PinPulse, DefaultPinPulse)
	setDefault(&c.StartupDelay, DefaultStartupDelay)
	setDefault(&c.FactoryResetDelay, DefaultFactoryResetDelay)
	setDefault(&c.SettleDelay, DefaultSettleDelay)
}

func setDefault(d *time.Duration, def time.Duration) {
	if *d <= 0 {
		*d = def
	}
}

// session is the per-module state read by dispatch and written by the
// command engine.
type session struct {
	mu       sync.Mutex
	mode     amber.AddressMode
	callback Callback

	// expected values for the volatile setters, validated against the
	// next SET_CHANNEL_CNF / SET_PAPOWER_CNF
	channel    uint8
	channelSet bool
	power      int8
	powerSet   bool
}

// Driver talks to one AMBER module. Operations are serialized; at most one
// request is in flight at a time.
type Driver struct {
	tr   Transport
	pins Pins
	cfg  Config
	log  *log.Logger

	cmdMu sync.Mutex
	reg   *registry
	rx    *receiver
	sess  session

	stateMu sync.Mutex
	started bool
	closed  bool
}

// New creates a driver for the module on tr. pins may be nil when the
// link has no control lines.
func New(tr Transport, pins Pins, cfg Config) (*Driver, error) {
	if tr == nil {
		return nil, fmt.Errorf("%w: nil transport", ErrInvalidParameter)
	}
	if !cfg.AddressMode.Valid() {
		return nil, fmt.Errorf("%w: address mode %d", ErrInvalidParameter, cfg.AddressMode)
	}
	if pins == nil {
		pins = NoPins{}
	}
	cfg.applyDefaults()

	d := &Driver{
		tr:   tr,
		pins: pins,
		cfg:  cfg,
		log:  cfg.Logger,
		reg:  newRegistry(),
	}
	d.sess.mode = cfg.AddressMode
	d.sess.callback = cfg.Callback
	return d, nil
}

// Start configures the control lines and launches the receiver without
// touching the module. Init calls it; use it directly for passive use.
func (d *Driver) Start() error {
	d.stateMu.Lock()
	defer d.stateMu.Unlock()
	if d.closed {
		return ErrClosed
	}
	if d.started {
		return nil
	}

	// boot low selects the application, wakeup idles low, reset released
	steps := []struct {
		pin  Pin
		high bool
	}{
		{PinBoot, false},
		{PinWakeup, false},
		{PinReset, true},
	}
	for _, s := range steps {
		if err := d.pins.SetPin(s.pin, s.high); err != nil {
			return fmt.Errorf("%w: set %s pin: %v", ErrTransport, s.pin, err)
		}
	}

	if f, ok := d.tr.(InputFlusher); ok {
		if err := f.ResetInputBuffer(); err != nil {
			d.log.Printf("Failed to flush input: %v", err)
		}
	}

	d.rx = newReceiver(d.tr, d.cfg.PollInterval, d.dispatch, d.decodeError)
	d.rx.start()
	d.started = true
	d.log.Printf("Receiver started (address mode %d)", d.AddressMode())
	return nil
}

// Init starts the driver, pin-resets the module, waits for it to boot and
// reads the firmware version. On failure the driver is closed.
func (d *Driver) Init(ctx context.Context) ([3]byte, error) {
	var fw [3]byte
	if err := d.Start(); err != nil {
		return fw, err
	}

	if err := d.PinReset(ctx); err != nil {
		d.Close()
		return fw, fmt.Errorf("pin reset failed: %w", err)
	}
	if err := sleep(ctx, d.cfg.StartupDelay); err != nil {
		d.Close()
		return fw, err
	}

	fw, err := d.FirmwareVersion(ctx)
	if err != nil {
		d.Close()
		return fw, fmt.Errorf("firmware version readout failed (invalid UART configuration or module shut down?): %w", err)
	}
	d.log.Printf("Firmware version %d.%d.%d detected", fw[0], fw[1], fw[2])
	return fw, nil
}

// Close stops the receiver and releases the control lines. The callback
// is detached and the addressing mode returns to mode 0. Close does not
// close the transport.
func (d *Driver) Close() error {
	d.stateMu.Lock()
	defer d.stateMu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true

	if d.rx != nil {
		d.rx.shutdown()
		d.log.Printf("Receiver stopped")
	}

	var errs []error
	for _, pin := range []Pin{PinReset, PinWakeup, PinBoot} {
		if err := d.pins.SetPin(pin, true); err != nil {
			errs = append(errs, fmt.Errorf("release %s pin: %w", pin, err))
		}
	}

	d.sess.mu.Lock()
	d.sess.callback = nil
	d.sess.mode = amber.AddressMode0
	d.sess.mu.Unlock()

	return errors.Join(errs...)
}

// Err returns the transport error that stopped the receiver, if any
func (d *Driver) Err() error {
	d.stateMu.Lock()
	rx := d.rx
	d.stateMu.Unlock()
	if rx == nil {
		return nil
	}
	return rx.Err()
}

// AddressMode returns the configured addressing mode
func (d *Driver) AddressMode() amber.AddressMode {
	d.sess.mu.Lock()
	defer d.sess.mu.Unlock()
	return d.sess.mode
}

// SetAddressMode changes the addressing mode. It must match the module's
// configuration and may only be changed while no RF traffic is in flight.
func (d *Driver) SetAddressMode(mode amber.AddressMode) error {
	if !mode.Valid() {
		return fmt.Errorf("%w: address mode %d", ErrInvalidParameter, mode)
	}
	d.sess.mu.Lock()
	d.sess.mode = mode
	d.sess.mu.Unlock()
	return nil
}

// SetCallback replaces the indication callback. nil detaches it.
func (d *Driver) SetCallback(cb Callback) {
	d.sess.mu.Lock()
	d.sess.callback = cb
	d.sess.mu.Unlock()
}

// running returns the receiver's done channel, or an error if the driver
// cannot issue commands.
func (d *Driver) running() (<-chan struct{}, error) {
	d.stateMu.Lock()
	defer d.stateMu.Unlock()
	switch {
	case d.closed:
		return nil, ErrClosed
	case !d.started:
		return nil, ErrNotStarted
	}
	select {
	case <-d.rx.done:
		if err := d.rx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTransport, err)
		}
		return nil, ErrClosed
	default:
	}
	return d.rx.done, nil
}

func (d *Driver) write(f *amber.Frame) error {
	raw, err := amber.EncodeFrame(f)
	if err != nil {
		return err
	}
	if _, err := d.tr.Write(raw); err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrTransport, amber.FormatCommand(f.Command()), err)
	}
	if d.cfg.Verbose {
		d.log.Printf("TX %s % X", amber.FormatCommand(f.Command()), raw)
	}
	return nil
}

// request sends f and waits for a confirmation tagged expect. Timeout and
// failure status both surface as ErrCommandFailed.
func (d *Driver) request(ctx context.Context, f *amber.Frame, expect uint8, timeout time.Duration) (confirmation, error) {
	done, err := d.running()
	if err != nil {
		return confirmation{}, err
	}

	d.reg.resetAll()
	if err := d.write(f); err != nil {
		return confirmation{}, err
	}
	return d.awaitConfirmation(ctx, done, timeout, expect)
}

// awaitConfirmation waits for any of tags and collapses the outcome
func (d *Driver) awaitConfirmation(ctx context.Context, done <-chan struct{}, timeout time.Duration, tags ...uint8) (confirmation, error) {
	c, err := d.reg.await(ctx, timeout, done, tags...)
	if err == nil && c.status != StatusSuccess {
		err = errUnexpectedStatus
	}

	switch {
	case err == nil:
		return c, nil
	case errors.Is(err, errConfirmationTimeout):
		d.log.Printf("%s: no confirmation within %v (pending: %s)", formatTags(tags), timeout, formatBacklog(d.reg.snapshot()))
		return c, ErrCommandFailed
	case errors.Is(err, errUnexpectedStatus):
		d.log.Printf("%s: module reported %s (data % X)", amber.FormatCommand(c.tag), c.status, c.data)
		return c, ErrCommandFailed
	case errors.Is(err, ErrClosed):
		if rxErr := d.Err(); rxErr != nil {
			return c, fmt.Errorf("%w: %v", ErrTransport, rxErr)
		}
		return c, ErrClosed
	default:
		return c, err
	}
}

func formatTags(tags []uint8) string {
	s := ""
	for i, tag := range tags {
		if i > 0 {
			s += "|"
		}
		s += amber.FormatCommand(tag)
	}
	return s
}

func formatBacklog(cs []confirmation) string {
	if len(cs) == 0 {
		return "none"
	}
	s := ""
	for i, c := range cs {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%s=%s", amber.FormatCommand(c.tag), c.status)
	}
	return s
}

// sleep waits for d or until ctx is done
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
