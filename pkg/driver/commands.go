// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package driver

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/Thermoquad/radiolink/pkg/amber"
)

// Reset restarts the module with RESET_REQ
func (d *Driver) Reset(ctx context.Context) error {
	return d.simple(ctx, amber.NewResetRequest(), amber.CmdResetCnf, d.cfg.CommandTimeout)
}

// FactoryReset restores the default user settings. Flash writes make it
// slower than other requests.
func (d *Driver) FactoryReset(ctx context.Context) error {
	return d.simple(ctx, amber.NewFactoryResetRequest(), amber.CmdFactoryResetCnf, d.cfg.FactoryResetTimeout)
}

// Standby puts the module into standby; PinWakeup brings it back
func (d *Driver) Standby(ctx context.Context) error {
	return d.simple(ctx, amber.NewStandbyRequest(), amber.CmdStandbyCnf, d.cfg.CommandTimeout)
}

// Shutdown powers the module down; PinWakeup brings it back
func (d *Driver) Shutdown(ctx context.Context) error {
	return d.simple(ctx, amber.NewShutdownRequest(), amber.CmdShutdownCnf, d.cfg.CommandTimeout)
}

func (d *Driver) simple(ctx context.Context, f *amber.Frame, expect uint8, timeout time.Duration) error {
	d.cmdMu.Lock()
	defer d.cmdMu.Unlock()
	_, err := d.request(ctx, f, expect, timeout)
	return err
}

// Get reads a user setting and returns its value bytes
func (d *Driver) Get(ctx context.Context, setting amber.Setting) ([]byte, error) {
	d.cmdMu.Lock()
	defer d.cmdMu.Unlock()

	c, err := d.request(ctx, amber.NewGetRequest(setting), amber.CmdGetCnf, d.cfg.CommandTimeout)
	if err != nil {
		return nil, err
	}
	return c.data[1:], nil
}

// Set writes a user setting to flash. The module must be reset for the
// new value to take effect; flash endurance is limited, so prefer
// Configure, which only writes values that differ.
func (d *Driver) Set(ctx context.Context, setting amber.Setting, value []byte) error {
	f, err := amber.NewSetRequest(setting, value)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParameter, err)
	}
	return d.simple(ctx, f, amber.CmdSetCnf, d.cfg.CommandTimeout)
}

// SetVolatileChannel changes the RF channel until the next reset. The
// module echoes the channel it applied, which must equal the request.
func (d *Driver) SetVolatileChannel(ctx context.Context, channel uint8) error {
	if err := checkChannel(channel); err != nil {
		return err
	}

	d.cmdMu.Lock()
	defer d.cmdMu.Unlock()

	d.sess.mu.Lock()
	d.sess.channel, d.sess.channelSet = channel, true
	d.sess.mu.Unlock()
	defer func() {
		d.sess.mu.Lock()
		d.sess.channelSet = false
		d.sess.mu.Unlock()
	}()

	_, err := d.request(ctx, amber.NewSetChannelRequest(channel), amber.CmdSetChannelCnf, d.cfg.CommandTimeout)
	return err
}

// SetVolatileTXPower changes the output power (dBm) until the next reset.
// The module echoes the power it applied, which must equal the request.
func (d *Driver) SetVolatileTXPower(ctx context.Context, power int8) error {
	if err := checkTXPower(power); err != nil {
		return err
	}

	d.cmdMu.Lock()
	defer d.cmdMu.Unlock()

	d.sess.mu.Lock()
	d.sess.power, d.sess.powerSet = power, true
	d.sess.mu.Unlock()
	defer func() {
		d.sess.mu.Lock()
		d.sess.powerSet = false
		d.sess.mu.Unlock()
	}()

	_, err := d.request(ctx, amber.NewSetPAPowerRequest(power), amber.CmdSetPAPowerCnf, d.cfg.CommandTimeout)
	return err
}

// SetVolatileDestNetID changes the destination network ID until the next reset
func (d *Driver) SetVolatileDestNetID(ctx context.Context, netID uint8) error {
	return d.simple(ctx, amber.NewSetDestNetIDRequest(netID), amber.CmdSetDestNetIDCnf, d.cfg.CommandTimeout)
}

// SetVolatileDestAddr changes the destination address until the next
// reset. msb is only sent in addressing mode 3.
func (d *Driver) SetVolatileDestAddr(ctx context.Context, lsb, msb uint8) error {
	f, err := amber.NewSetDestAddrRequest(d.AddressMode(), lsb, msb)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParameter, err)
	}
	return d.simple(ctx, f, amber.CmdSetDestAddrCnf, d.cfg.CommandTimeout)
}

// Transmit sends payload using the module's current channel and
// destination, and waits for DATA_CNF.
func (d *Driver) Transmit(ctx context.Context, payload []byte) error {
	f, err := amber.NewDataRequest(payload)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParameter, err)
	}
	return d.simple(ctx, f, amber.CmdDataCnf, d.cfg.CommandTimeout)
}

// TransmitExtended sends payload on channel to dest. Only the address
// components carried by the current addressing mode are sent.
func (d *Driver) TransmitExtended(ctx context.Context, channel uint8, dest amber.Address, payload []byte) error {
	f, err := amber.NewDataExRequest(d.AddressMode(), channel, dest, payload)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParameter, err)
	}
	return d.simple(ctx, f, amber.CmdDataCnf, d.cfg.CommandTimeout)
}

// Send writes a frame without waiting for any confirmation
func (d *Driver) Send(f *amber.Frame) error {
	if _, err := d.running(); err != nil {
		return err
	}
	d.cmdMu.Lock()
	defer d.cmdMu.Unlock()
	return d.write(f)
}

// Ping runs the PINGDUT radio self-test: the module exchanges ten packets
// with a test partner and succeeds only if all ten come back.
func (d *Driver) Ping(ctx context.Context) error {
	return d.simple(ctx, amber.NewPingDUTRequest(), amber.CmdPingDUTCnf, d.cfg.PingTimeout)
}

// PinReset pulses the reset line, drops any partial frame and waits for
// the RESET_IND the module sends after booting.
func (d *Driver) PinReset(ctx context.Context) error {
	d.cmdMu.Lock()
	defer d.cmdMu.Unlock()

	done, err := d.running()
	if err != nil {
		return err
	}

	d.reg.resetAll()
	if err := d.pulse(ctx, PinReset, false, func() error {
		return d.resync(ctx, done)
	}); err != nil {
		return err
	}

	_, err = d.awaitConfirmation(ctx, done, d.cfg.CommandTimeout, amber.CmdResetInd)
	return err
}

// PinWakeup pulses the wakeup line to leave standby or shutdown, and
// waits for the module to announce itself with RESET_IND or STANDBY_IND.
func (d *Driver) PinWakeup(ctx context.Context) error {
	d.cmdMu.Lock()
	defer d.cmdMu.Unlock()

	done, err := d.running()
	if err != nil {
		return err
	}

	d.reg.resetAll()
	if err := d.pulse(ctx, PinWakeup, true, func() error {
		return d.resync(ctx, done)
	}); err != nil {
		return err
	}

	_, err = d.awaitConfirmation(ctx, done, d.cfg.CommandTimeout, amber.CmdResetInd, amber.CmdStandbyInd)
	return err
}

// resync flushes pending input and waits until the receiver has dropped
// any partial frame, so the module's next announcement decodes cleanly.
func (d *Driver) resync(ctx context.Context, done <-chan struct{}) error {
	if f, ok := d.tr.(InputFlusher); ok {
		if err := f.ResetInputBuffer(); err != nil {
			d.log.Printf("Failed to flush input: %v", err)
		}
	}

	t := time.NewTimer(d.cfg.CommandTimeout)
	defer t.Stop()
	select {
	case <-d.rx.requestResync():
		return nil
	case <-done:
		return ErrClosed
	case <-t.C:
		return fmt.Errorf("%w: receiver did not resync", ErrCommandFailed)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// pulse drives pin to the idle level, then active, runs during while the
// line is active, and returns it to idle. activeHigh selects the polarity.
func (d *Driver) pulse(ctx context.Context, pin Pin, activeHigh bool, during func() error) error {
	set := func(high bool) error {
		if err := d.pins.SetPin(pin, high); err != nil {
			return fmt.Errorf("%w: set %s pin: %v", ErrTransport, pin, err)
		}
		return nil
	}

	if !activeHigh {
		if err := set(true); err != nil {
			return err
		}
		if err := sleep(ctx, d.cfg.PinPulse); err != nil {
			return err
		}
	}
	if err := set(activeHigh); err != nil {
		return err
	}
	if during != nil {
		if err := during(); err != nil {
			set(!activeHigh)
			return err
		}
	}
	if err := sleep(ctx, d.cfg.PinPulse); err != nil {
		set(!activeHigh)
		return err
	}
	return set(!activeHigh)
}

// SettingValue is one entry of a Configure list
type SettingValue struct {
	Setting amber.Setting
	Value   []byte
}

// Configure converges the module's user settings to settings: each value
// is read back and written only if it differs. With factoryReset the
// module is first restored to defaults. The module is pin-reset at the
// end so the new values take effect. Configure stops at the first failure.
func (d *Driver) Configure(ctx context.Context, settings []SettingValue, factoryReset bool) error {
	if factoryReset {
		if err := d.FactoryReset(ctx); err != nil {
			return fmt.Errorf("factory reset: %w", err)
		}
	}
	if err := sleep(ctx, d.cfg.FactoryResetDelay); err != nil {
		return err
	}

	for _, s := range settings {
		current, err := d.Get(ctx, s.Setting)
		if err != nil {
			return fmt.Errorf("read %s: %w", amber.FormatSetting(s.Setting), err)
		}
		if err := sleep(ctx, d.cfg.SettleDelay); err != nil {
			return err
		}

		if len(current) != len(s.Value) {
			return fmt.Errorf("%w: %s is %d bytes, want %d",
				ErrSettingMismatch, amber.FormatSetting(s.Setting), len(current), len(s.Value))
		}
		if !bytes.Equal(current, s.Value) {
			d.log.Printf("Updating %s: % X -> % X", amber.FormatSetting(s.Setting), current, s.Value)
			if err := d.Set(ctx, s.Setting, s.Value); err != nil {
				return fmt.Errorf("write %s: %w", amber.FormatSetting(s.Setting), err)
			}
		}
		if err := sleep(ctx, d.cfg.SettleDelay); err != nil {
			return err
		}
	}

	if err := d.PinReset(ctx); err != nil {
		return fmt.Errorf("pin reset: %w", err)
	}
	return nil
}

func checkChannel(channel uint8) error {
	if channel < amber.ChannelMin || channel > amber.ChannelMax {
		return fmt.Errorf("%w: channel %d (valid %d-%d)", ErrInvalidParameter, channel, amber.ChannelMin, amber.ChannelMax)
	}
	return nil
}

func checkTXPower(power int8) error {
	if power < amber.TXPowerMin || power > amber.TXPowerMax {
		return fmt.Errorf("%w: TX power %d dBm (valid %d to %d)", ErrInvalidParameter, power, amber.TXPowerMin, amber.TXPowerMax)
	}
	return nil
}
