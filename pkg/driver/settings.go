// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package driver

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/Thermoquad/radiolink/pkg/amber"
)

// getExact reads setting and checks its length
func (d *Driver) getExact(ctx context.Context, setting amber.Setting, n int) ([]byte, error) {
	v, err := d.Get(ctx, setting)
	if err != nil {
		return nil, err
	}
	if len(v) < n {
		d.log.Printf("%s: got %d bytes, want %d", amber.FormatSetting(setting), len(v), n)
		return nil, ErrCommandFailed
	}
	return v[:n], nil
}

func (d *Driver) getByte(ctx context.Context, setting amber.Setting) (uint8, error) {
	v, err := d.getExact(ctx, setting, 1)
	if err != nil {
		return 0, err
	}
	return v[0], nil
}

// FirmwareVersion returns the firmware version as major, minor, patch.
// The module reports it least significant first.
func (d *Driver) FirmwareVersion(ctx context.Context) ([3]byte, error) {
	var fw [3]byte
	v, err := d.getExact(ctx, amber.SettingFWVersion, 3)
	if err != nil {
		return fw, err
	}
	fw[0], fw[1], fw[2] = v[2], v[1], v[0]
	return fw, nil
}

// SerialNumber returns the serial number from the factory settings,
// most significant byte first.
func (d *Driver) SerialNumber(ctx context.Context) ([4]byte, error) {
	var sn [4]byte
	v, err := d.getExact(ctx, amber.SettingFactorySettings, 4)
	if err != nil {
		return sn, err
	}
	sn[0], sn[1], sn[2], sn[3] = v[3], v[2], v[1], v[0]
	return sn, nil
}

// DefaultTXPower returns the output power (dBm) applied after reset
func (d *Driver) DefaultTXPower(ctx context.Context) (int8, error) {
	b, err := d.getByte(ctx, amber.SettingDefaultRFTXPower)
	return int8(b), err
}

// DefaultDestAddr returns the destination address applied after reset
func (d *Driver) DefaultDestAddr(ctx context.Context) (lsb, msb uint8, err error) {
	v, err := d.getExact(ctx, amber.SettingDefaultDestAddr, 2)
	if err != nil {
		return 0, 0, err
	}
	return v[0], v[1], nil
}

// DefaultDestNetID returns the destination network ID applied after reset
func (d *Driver) DefaultDestNetID(ctx context.Context) (uint8, error) {
	return d.getByte(ctx, amber.SettingDefaultDestNetID)
}

// SourceAddr returns the module's own address
func (d *Driver) SourceAddr(ctx context.Context) (lsb, msb uint8, err error) {
	v, err := d.getExact(ctx, amber.SettingSourceAddr, 2)
	if err != nil {
		return 0, 0, err
	}
	return v[0], v[1], nil
}

// SourceNetID returns the module's own network ID
func (d *Driver) SourceNetID(ctx context.Context) (uint8, error) {
	return d.getByte(ctx, amber.SettingSourceNetID)
}

// DefaultRFChannel returns the RF channel applied after reset
func (d *Driver) DefaultRFChannel(ctx context.Context) (uint8, error) {
	return d.getByte(ctx, amber.SettingDefaultRFChannel)
}

// DefaultRFProfile returns the RF profile applied after reset
func (d *Driver) DefaultRFProfile(ctx context.Context) (uint8, error) {
	return d.getByte(ctx, amber.SettingDefaultRFProfile)
}

// SetDefaultTXPower stores the output power applied after reset
func (d *Driver) SetDefaultTXPower(ctx context.Context, power int8) error {
	if err := checkTXPower(power); err != nil {
		return err
	}
	return d.Set(ctx, amber.SettingDefaultRFTXPower, []byte{uint8(power)})
}

// SetDefaultDestAddr stores the destination address applied after reset
func (d *Driver) SetDefaultDestAddr(ctx context.Context, lsb, msb uint8) error {
	return d.Set(ctx, amber.SettingDefaultDestAddr, []byte{lsb, msb})
}

// SetDefaultDestNetID stores the destination network ID applied after reset
func (d *Driver) SetDefaultDestNetID(ctx context.Context, netID uint8) error {
	return d.Set(ctx, amber.SettingDefaultDestNetID, []byte{netID})
}

// SetSourceAddr stores the module's own address
func (d *Driver) SetSourceAddr(ctx context.Context, lsb, msb uint8) error {
	return d.Set(ctx, amber.SettingSourceAddr, []byte{lsb, msb})
}

// SetSourceNetID stores the module's own network ID. 255 is the
// broadcast ID and cannot be assigned.
func (d *Driver) SetSourceNetID(ctx context.Context, netID uint8) error {
	if netID > amber.SourceNetIDMax {
		return fmt.Errorf("%w: source net ID %d (valid 0-%d)", ErrInvalidParameter, netID, amber.SourceNetIDMax)
	}
	return d.Set(ctx, amber.SettingSourceNetID, []byte{netID})
}

// SetDefaultRFChannel stores the RF channel applied after reset
func (d *Driver) SetDefaultRFChannel(ctx context.Context, channel uint8) error {
	if err := checkChannel(channel); err != nil {
		return err
	}
	return d.Set(ctx, amber.SettingDefaultRFChannel, []byte{channel})
}

// SetDefaultRFProfile stores the RF profile applied after reset
func (d *Driver) SetDefaultRFProfile(ctx context.Context, profile uint8) error {
	return d.Set(ctx, amber.SettingDefaultRFProfile, []byte{profile})
}

// EnableSnifferMode makes the module report all traffic it hears and
// disables repeating. Only flags that need changing are written.
func (d *Driver) EnableSnifferMode(ctx context.Context) error {
	if err := d.updateFlags(ctx, amber.SettingCfgFlags, amber.CfgFlagSnifferMode, true); err != nil {
		return err
	}
	return d.updateFlags(ctx, amber.SettingRPFlags, amber.RPFlagRepeaterEnabled, false)
}

func (d *Driver) updateFlags(ctx context.Context, setting amber.Setting, mask uint16, set bool) error {
	v, err := d.getExact(ctx, setting, 2)
	if err != nil {
		return err
	}
	flags := binary.LittleEndian.Uint16(v)
	if (flags&mask != 0) == set {
		return nil
	}
	if set {
		flags |= mask
	} else {
		flags &^= mask
	}
	return d.Set(ctx, setting, binary.LittleEndian.AppendUint16(nil, flags))
}
