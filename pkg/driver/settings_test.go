// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package driver

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Thermoquad/radiolink/pkg/amber"
)

// ============================================================
// Settings Tests
// ============================================================

func TestSettingGetters(t *testing.T) {
	m := newFakeModule()
	m.setSetting(amber.SettingFWVersion, 0x00, 0x05, 0x01)
	m.setSetting(amber.SettingFactorySettings, 0x78, 0x56, 0x34, 0x12, 0xAA, 0xBB)
	m.setSetting(amber.SettingDefaultDestAddr, 0x34, 0x12)
	m.setSetting(amber.SettingSourceAddr, 0x01, 0x00)
	m.setSetting(amber.SettingSourceNetID, 0x09)
	m.setSetting(amber.SettingDefaultDestNetID, 0xFF)
	m.setSetting(amber.SettingDefaultRFChannel, 120)
	m.setSetting(amber.SettingDefaultRFProfile, 0x02)
	d := startDriver(t, m, testConfig())
	ctx := context.Background()

	fw, err := d.FirmwareVersion(ctx)
	if err != nil || fw != [3]byte{1, 5, 0} {
		t.Errorf("FirmwareVersion = %v, %v", fw, err)
	}
	sn, err := d.SerialNumber(ctx)
	if err != nil || sn != [4]byte{0x12, 0x34, 0x56, 0x78} {
		t.Errorf("SerialNumber = % X, %v", sn, err)
	}
	lsb, msb, err := d.DefaultDestAddr(ctx)
	if err != nil || lsb != 0x34 || msb != 0x12 {
		t.Errorf("DefaultDestAddr = %02X %02X, %v", lsb, msb, err)
	}
	lsb, msb, err = d.SourceAddr(ctx)
	if err != nil || lsb != 0x01 || msb != 0x00 {
		t.Errorf("SourceAddr = %02X %02X, %v", lsb, msb, err)
	}

	bytesTests := []struct {
		name string
		get  func(context.Context) (uint8, error)
		want uint8
	}{
		{"SourceNetID", d.SourceNetID, 0x09},
		{"DefaultDestNetID", d.DefaultDestNetID, 0xFF},
		{"DefaultRFChannel", d.DefaultRFChannel, 120},
		{"DefaultRFProfile", d.DefaultRFProfile, 0x02},
	}
	for _, tt := range bytesTests {
		if got, err := tt.get(ctx); err != nil || got != tt.want {
			t.Errorf("%s = %d, %v; want %d", tt.name, got, err, tt.want)
		}
	}
}

func TestSettingGetter_ShortValue(t *testing.T) {
	m := newFakeModule()
	m.setSetting(amber.SettingFWVersion, 0x01)
	d := startDriver(t, m, testConfig())

	if _, err := d.FirmwareVersion(context.Background()); !errors.Is(err, ErrCommandFailed) {
		t.Errorf("expected ErrCommandFailed for a truncated value, got %v", err)
	}
}

func TestSettingSetters(t *testing.T) {
	m := newFakeModule()
	d := startDriver(t, m, testConfig())
	ctx := context.Background()

	tests := []struct {
		name    string
		set     func() error
		setting amber.Setting
		want    []byte
	}{
		{"tx power", func() error { return d.SetDefaultTXPower(ctx, -5) }, amber.SettingDefaultRFTXPower, []byte{0xFB}},
		{"dest addr", func() error { return d.SetDefaultDestAddr(ctx, 0x34, 0x12) }, amber.SettingDefaultDestAddr, []byte{0x34, 0x12}},
		{"dest net id", func() error { return d.SetDefaultDestNetID(ctx, 0x07) }, amber.SettingDefaultDestNetID, []byte{0x07}},
		{"source addr", func() error { return d.SetSourceAddr(ctx, 0x02, 0x00) }, amber.SettingSourceAddr, []byte{0x02, 0x00}},
		{"source net id", func() error { return d.SetSourceNetID(ctx, 254) }, amber.SettingSourceNetID, []byte{254}},
		{"rf channel", func() error { return d.SetDefaultRFChannel(ctx, 140) }, amber.SettingDefaultRFChannel, []byte{140}},
		{"rf profile", func() error { return d.SetDefaultRFProfile(ctx, 3) }, amber.SettingDefaultRFProfile, []byte{3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.set(); err != nil {
				t.Fatalf("set: %v", err)
			}
			if got := m.setting(tt.setting); !bytes.Equal(got, tt.want) {
				t.Errorf("stored % X, want % X", got, tt.want)
			}
		})
	}
}

func TestEnableSnifferMode(t *testing.T) {
	m := newFakeModule()
	m.setSetting(amber.SettingCfgFlags, 0x00, 0x80)
	m.setSetting(amber.SettingRPFlags, 0x03, 0x00)
	d := startDriver(t, m, testConfig())

	if err := d.EnableSnifferMode(context.Background()); err != nil {
		t.Fatalf("EnableSnifferMode: %v", err)
	}
	if got := m.setting(amber.SettingCfgFlags); !bytes.Equal(got, []byte{0x01, 0x80}) {
		t.Errorf("CfgFlags = % X, want 01 80", got)
	}
	if got := m.setting(amber.SettingRPFlags); !bytes.Equal(got, []byte{0x02, 0x00}) {
		t.Errorf("RPFlags = % X, want 02 00", got)
	}

	if err := d.EnableSnifferMode(context.Background()); err != nil {
		t.Fatalf("second EnableSnifferMode: %v", err)
	}
	if m.writeCount(amber.SettingCfgFlags) != 1 || m.writeCount(amber.SettingRPFlags) != 1 {
		t.Error("flags already in place should not be rewritten")
	}
}

// ============================================================
// Configure Tests
// ============================================================

func TestConfigure_Converges(t *testing.T) {
	m := newFakeModule()
	m.setSetting(amber.SettingDefaultRFChannel, 100)
	m.setSetting(amber.SettingSourceNetID, 0x05)
	d := startDriver(t, m, testConfig())

	settings := []SettingValue{
		{Setting: amber.SettingDefaultRFChannel, Value: []byte{120}},
		{Setting: amber.SettingSourceNetID, Value: []byte{0x05}},
	}

	for i := 0; i < 2; i++ {
		if err := d.Configure(context.Background(), settings, false); err != nil {
			t.Fatalf("Configure pass %d: %v", i, err)
		}
	}

	if n := m.writeCount(amber.SettingDefaultRFChannel); n != 1 {
		t.Errorf("channel written %d times, want 1", n)
	}
	if n := m.writeCount(amber.SettingSourceNetID); n != 0 {
		t.Errorf("matching net ID written %d times, want 0", n)
	}
	if got := m.setting(amber.SettingDefaultRFChannel); !bytes.Equal(got, []byte{120}) {
		t.Errorf("channel = % X, want 78", got)
	}
	if pins := strings.Join(m.pins(), " "); strings.Count(pins, "RESET=low") != 2 {
		t.Errorf("expected one pin reset per Configure, pins: %s", pins)
	}
}

func TestConfigure_LengthMismatch(t *testing.T) {
	m := newFakeModule()
	m.setSetting(amber.SettingSourceAddr, 0x01, 0x00)
	m.setSetting(amber.SettingSourceNetID, 0x05)
	d := startDriver(t, m, testConfig())

	settings := []SettingValue{
		{Setting: amber.SettingSourceAddr, Value: []byte{0x01}},
		{Setting: amber.SettingSourceNetID, Value: []byte{0x06}},
	}
	if err := d.Configure(context.Background(), settings, false); !errors.Is(err, ErrSettingMismatch) {
		t.Fatalf("expected ErrSettingMismatch, got %v", err)
	}
	if m.writeCount(amber.SettingSourceNetID) != 0 {
		t.Error("Configure should stop at the first failure")
	}
}

func TestConfigure_ReadFailure(t *testing.T) {
	m := newFakeModule()
	d := startDriver(t, m, testConfig())

	settings := []SettingValue{{Setting: amber.SettingOpMode, Value: []byte{0x00}}}
	if err := d.Configure(context.Background(), settings, false); !errors.Is(err, ErrCommandFailed) {
		t.Errorf("expected ErrCommandFailed, got %v", err)
	}
}

func TestConfigure_FactoryReset(t *testing.T) {
	m := newFakeModule()
	m.answer(amber.CmdFactoryResetReq, amber.CmdFactoryResetCnf, 0x00)
	d := startDriver(t, m, testConfig())

	if err := d.Configure(context.Background(), nil, true); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if req := m.sent()[0]; req.Command() != amber.CmdFactoryResetReq {
		t.Errorf("first request %s, want FACTORY_RESET_REQ", amber.FormatCommand(req.Command()))
	}

	m.answer(amber.CmdFactoryResetReq, amber.CmdFactoryResetCnf, 0x01)
	if err := d.Configure(context.Background(), nil, true); !errors.Is(err, ErrCommandFailed) {
		t.Errorf("expected ErrCommandFailed on failed factory reset, got %v", err)
	}
}
