// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package driver

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/Thermoquad/radiolink/pkg/amber"
)

// ============================================================
// Command/Response Tests
// ============================================================

func TestGet_DefaultTXPower(t *testing.T) {
	m := newFakeModule()
	m.on(amber.CmdGetReq, func(req *amber.Frame) [][]byte {
		if amber.Setting(req.Data()[0]) != amber.SettingDefaultRFTXPower {
			return nil
		}
		return [][]byte{{0x02, 0x4A, 0x02, 0x00, 0x0A, 0x40}}
	})
	d := startDriver(t, m, testConfig())

	power, err := d.DefaultTXPower(context.Background())
	if err != nil {
		t.Fatalf("DefaultTXPower: %v", err)
	}
	if power != 10 {
		t.Errorf("DefaultTXPower = %d, want 10", power)
	}

	req := m.lastRequest(t)
	if req.Command() != amber.CmdGetReq || !bytes.Equal(req.Data(), []byte{uint8(amber.SettingDefaultRFTXPower)}) {
		t.Errorf("unexpected request %s % X", amber.FormatCommand(req.Command()), req.Data())
	}
}

func TestGet_FailedStatus(t *testing.T) {
	m := newFakeModule()
	m.answer(amber.CmdGetReq, amber.CmdGetCnf, 0x01)
	d := startDriver(t, m, testConfig())

	if _, err := d.Get(context.Background(), amber.SettingOpMode); !errors.Is(err, ErrCommandFailed) {
		t.Errorf("expected ErrCommandFailed, got %v", err)
	}
}

func TestSetVolatileChannel_ChecksEcho(t *testing.T) {
	tests := []struct {
		name    string
		echo    uint8
		wantErr bool
	}{
		{"echo matches", 110, false},
		{"echo differs", 111, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newFakeModule()
			m.answer(amber.CmdSetChannelReq, amber.CmdSetChannelCnf, tt.echo)
			d := startDriver(t, m, testConfig())

			err := d.SetVolatileChannel(context.Background(), 110)
			if tt.wantErr && !errors.Is(err, ErrCommandFailed) {
				t.Errorf("expected ErrCommandFailed, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestSetVolatileTXPower_ChecksEcho(t *testing.T) {
	m := newFakeModule()
	m.answer(amber.CmdSetPAPowerReq, amber.CmdSetPAPowerCnf, uint8(0xF5)) // -11 dBm
	d := startDriver(t, m, testConfig())

	if err := d.SetVolatileTXPower(context.Background(), -11); err != nil {
		t.Fatalf("SetVolatileTXPower(-11): %v", err)
	}
	if err := d.SetVolatileTXPower(context.Background(), 0); !errors.Is(err, ErrCommandFailed) {
		t.Errorf("echo of -11 for a request of 0 should fail, got %v", err)
	}
}

// An echo that arrives while no volatile set is pending is not a success
func TestSetChannelCnf_Unsolicited(t *testing.T) {
	m := newFakeModule()
	d := startDriver(t, m, testConfig())

	m.inject(amber.MustEncode(amber.CmdSetChannelCnf, []byte{110}))
	deadline := time.Now().Add(time.Second)
	for {
		if c, ok := d.reg.pollFor(amber.CmdSetChannelCnf); ok {
			if c.status != StatusFailed {
				t.Errorf("status = %s, want failed", c.status)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("confirmation never posted")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestTimeout_ThenNextOperationSucceeds(t *testing.T) {
	m := newFakeModule()
	m.answer(amber.CmdResetReq, amber.CmdResetCnf, 0x00)
	d := startDriver(t, m, testConfig())

	if err := d.Standby(context.Background()); !errors.Is(err, ErrCommandFailed) {
		t.Fatalf("expected ErrCommandFailed for unanswered request, got %v", err)
	}
	if err := d.Reset(context.Background()); err != nil {
		t.Errorf("Reset after timeout: %v", err)
	}
}

func TestTimeout_DefaultDeadline(t *testing.T) {
	m := newFakeModule()
	d := startDriver(t, m, Config{})

	start := time.Now()
	err := d.Reset(context.Background())
	elapsed := time.Since(start)

	if !errors.Is(err, ErrCommandFailed) {
		t.Fatalf("expected ErrCommandFailed, got %v", err)
	}
	if elapsed < DefaultCommandTimeout {
		t.Errorf("returned after %v, before the %v deadline", elapsed, DefaultCommandTimeout)
	}
	if elapsed > DefaultCommandTimeout+400*time.Millisecond {
		t.Errorf("returned after %v, long past the %v deadline", elapsed, DefaultCommandTimeout)
	}
}

// A confirmation for a different command does not satisfy the waiter
func TestConfirmation_WrongTag(t *testing.T) {
	m := newFakeModule()
	m.answer(amber.CmdShutdownReq, amber.CmdStandbyCnf, 0x00)
	d := startDriver(t, m, testConfig())

	if err := d.Shutdown(context.Background()); !errors.Is(err, ErrCommandFailed) {
		t.Errorf("expected ErrCommandFailed, got %v", err)
	}
}

// Indications that fill the backlog push out the confirmation
func TestConfirmation_BacklogOverflow(t *testing.T) {
	m := newFakeModule()
	m.on(amber.CmdResetReq, func(*amber.Frame) [][]byte {
		return [][]byte{
			amber.MustEncode(amber.CmdResetInd, []byte{0x00}),
			amber.MustEncode(amber.CmdStandbyInd, []byte{0x00}),
			amber.MustEncode(amber.CmdResetCnf, []byte{0x00}),
		}
	})
	d := startDriver(t, m, testConfig())

	if err := d.Reset(context.Background()); !errors.Is(err, ErrCommandFailed) {
		t.Errorf("expected ErrCommandFailed when the backlog is full, got %v", err)
	}
}

func TestContextCancel(t *testing.T) {
	m := newFakeModule()
	cfg := testConfig()
	cfg.CommandTimeout = 5 * time.Second
	d := startDriver(t, m, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := d.Reset(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected context.DeadlineExceeded, got %v", err)
	}
}

func TestInvalidParameters_NoIO(t *testing.T) {
	m := newFakeModule()
	d := startDriver(t, m, testConfig())
	ctx := context.Background()

	tests := []struct {
		name string
		call func() error
	}{
		{"channel below band", func() error { return d.SetVolatileChannel(ctx, 99) }},
		{"channel above band", func() error { return d.SetVolatileChannel(ctx, 141) }},
		{"power below range", func() error { return d.SetVolatileTXPower(ctx, -12) }},
		{"power above range", func() error { return d.SetVolatileTXPower(ctx, 16) }},
		{"default power", func() error { return d.SetDefaultTXPower(ctx, 20) }},
		{"default channel", func() error { return d.SetDefaultRFChannel(ctx, 50) }},
		{"source net id", func() error { return d.SetSourceNetID(ctx, 255) }},
		{"empty setting", func() error { return d.Set(ctx, amber.SettingOpMode, nil) }},
		{"oversized payload", func() error { return d.Transmit(ctx, make([]byte, amber.MaxPayloadSize+1)) }},
		{"oversized extended", func() error {
			return d.TransmitExtended(ctx, 100, amber.Broadcast, make([]byte, amber.MaxPayloadSize+1))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); !errors.Is(err, ErrInvalidParameter) {
				t.Errorf("expected ErrInvalidParameter, got %v", err)
			}
		})
	}

	if n := len(m.sent()); n != 0 {
		t.Errorf("%d frames written for rejected calls", n)
	}
}

// ============================================================
// Transmit Tests
// ============================================================

func TestTransmit(t *testing.T) {
	m := newFakeModule()
	m.answer(amber.CmdDataReq, amber.CmdDataCnf, 0x00)
	d := startDriver(t, m, testConfig())

	if err := d.Transmit(context.Background(), []byte("hello")); err != nil {
		t.Fatalf("Transmit: %v", err)
	}
	if req := m.lastRequest(t); string(req.Data()) != "hello" {
		t.Errorf("DATA_REQ payload = %q", req.Data())
	}
}

func TestTransmitExtended_PrefixPerMode(t *testing.T) {
	dest := amber.Address{NetID: 0x11, AddrLSB: 0x22, AddrMSB: 0x33}
	tests := []struct {
		mode amber.AddressMode
		want []byte
	}{
		{amber.AddressMode0, []byte{120, 'x'}},
		{amber.AddressMode1, []byte{120, 0x22, 'x'}},
		{amber.AddressMode2, []byte{120, 0x11, 0x22, 'x'}},
		{amber.AddressMode3, []byte{120, 0x11, 0x22, 0x33, 'x'}},
	}

	for _, tt := range tests {
		m := newFakeModule()
		m.answer(amber.CmdDataExReq, amber.CmdDataCnf, 0x00)
		cfg := testConfig()
		cfg.AddressMode = tt.mode
		d := startDriver(t, m, cfg)

		if err := d.TransmitExtended(context.Background(), 120, dest, []byte("x")); err != nil {
			t.Fatalf("mode %d: TransmitExtended: %v", tt.mode, err)
		}
		if got := m.lastRequest(t).Data(); !bytes.Equal(got, tt.want) {
			t.Errorf("mode %d: DATAEX_REQ data = % X, want % X", tt.mode, got, tt.want)
		}
	}
}

func TestTransmit_FailedConfirmation(t *testing.T) {
	m := newFakeModule()
	m.answer(amber.CmdDataReq, amber.CmdDataCnf, 0x01)
	d := startDriver(t, m, testConfig())

	if err := d.Transmit(context.Background(), []byte{0x01}); !errors.Is(err, ErrCommandFailed) {
		t.Errorf("expected ErrCommandFailed, got %v", err)
	}
}

func TestSetVolatileDestAddr_Width(t *testing.T) {
	m := newFakeModule()
	m.answer(amber.CmdSetDestAddrReq, amber.CmdSetDestAddrCnf, 0x00)
	d := startDriver(t, m, testConfig())
	ctx := context.Background()

	if err := d.SetVolatileDestAddr(ctx, 0x34, 0x12); err != nil {
		t.Fatalf("mode 0: %v", err)
	}
	if got := m.lastRequest(t).Data(); !bytes.Equal(got, []byte{0x34}) {
		t.Errorf("mode 0 data = % X, want 34", got)
	}

	if err := d.SetAddressMode(amber.AddressMode3); err != nil {
		t.Fatal(err)
	}
	if err := d.SetVolatileDestAddr(ctx, 0x34, 0x12); err != nil {
		t.Fatalf("mode 3: %v", err)
	}
	if got := m.lastRequest(t).Data(); !bytes.Equal(got, []byte{0x34, 0x12}) {
		t.Errorf("mode 3 data = % X, want 34 12", got)
	}
}

func TestSend_FireAndForget(t *testing.T) {
	m := newFakeModule()
	d := startDriver(t, m, testConfig())

	if err := d.Send(amber.NewStandbyRequest()); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if req := m.lastRequest(t); req.Command() != amber.CmdStandbyReq {
		t.Errorf("sent %s, want STANDBY_REQ", amber.FormatCommand(req.Command()))
	}
}

func TestPing(t *testing.T) {
	tests := []struct {
		name    string
		echoed  uint8
		wantErr bool
	}{
		{"all packets echoed", amber.PingDUTPacketCount, false},
		{"packets lost", 0x07, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newFakeModule()
			m.answer(amber.CmdPingDUTReq, amber.CmdPingDUTCnf, 0x00, 0x00, 0x00, 0x00, tt.echoed)
			d := startDriver(t, m, testConfig())

			err := d.Ping(context.Background())
			if tt.wantErr != (err != nil) {
				t.Errorf("Ping error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// ============================================================
// Indication Tests
// ============================================================

func TestIndication_Callback(t *testing.T) {
	got := make(chan amber.Indication, 1)
	cfg := testConfig()
	cfg.AddressMode = amber.AddressMode2
	cfg.Callback = func(ind amber.Indication) { got <- ind }

	m := newFakeModule()
	startDriver(t, m, cfg)
	m.inject(amber.MustEncode(amber.CmdDataExInd, []byte{0x05, 0x07, 'h', 'i', 0xC4}))

	select {
	case ind := <-got:
		if string(ind.Payload) != "hi" {
			t.Errorf("Payload = %q, want \"hi\"", ind.Payload)
		}
		want := amber.Address{NetID: 0x05, AddrLSB: 0x07, AddrMSB: amber.BroadcastAddress}
		if ind.Address != want {
			t.Errorf("Address = %+v, want %+v", ind.Address, want)
		}
		if ind.RSSI != -60 {
			t.Errorf("RSSI = %d, want -60", ind.RSSI)
		}
	case <-time.After(time.Second):
		t.Fatal("callback not invoked")
	}
}

func TestIndication_AfterGarbage(t *testing.T) {
	got := make(chan amber.Indication, 4)
	cfg := testConfig()
	cfg.Callback = func(ind amber.Indication) { got <- ind }

	var decodeErrs int
	errs := make(chan struct{}, 4)
	cfg.OnDecodeError = func(error) { errs <- struct{}{} }

	m := newFakeModule()
	startDriver(t, m, cfg)

	bad := amber.MustEncode(amber.CmdDataExInd, []byte{'x', 0x00})
	bad[len(bad)-1] ^= 0xFF
	stream := append([]byte{0x55, 0xAA}, bad...)
	stream = append(stream, amber.MustEncode(amber.CmdDataExInd, []byte{'o', 'k', 0x00})...)
	m.inject(stream)

	select {
	case ind := <-got:
		if string(ind.Payload) != "ok" {
			t.Errorf("Payload = %q, want \"ok\"", ind.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("valid frame after garbage was not delivered")
	}

	select {
	case <-errs:
		decodeErrs++
	case <-time.After(time.Second):
	}
	if decodeErrs != 1 {
		t.Errorf("decode errors = %d, want 1", decodeErrs)
	}
	if len(got) != 0 {
		t.Errorf("%d spurious indications", len(got))
	}
}

func TestIndication_SetCallback(t *testing.T) {
	got := make(chan amber.Indication, 1)
	m := newFakeModule()
	d := startDriver(t, m, testConfig())
	d.SetCallback(func(ind amber.Indication) { got <- ind })

	m.inject(amber.MustEncode(amber.CmdDataExInd, []byte{'a', 0x00}))
	select {
	case <-got:
	case <-time.After(time.Second):
		t.Fatal("callback installed with SetCallback not invoked")
	}
}

// ============================================================
// Lifecycle Tests
// ============================================================

func TestInit_PinResetAndFirmware(t *testing.T) {
	m := newFakeModule()
	m.setSetting(amber.SettingFWVersion, 0x03, 0x02, 0x01)

	d, err := New(m, m, testConfig())
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	fw, err := d.Init(context.Background())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if fw != [3]byte{1, 2, 3} {
		t.Errorf("firmware = %v, want [1 2 3]", fw)
	}

	want := "BOOT=low WAKEUP=low RESET=high RESET=high RESET=low RESET=high"
	if got := strings.Join(m.pins(), " "); got != want {
		t.Errorf("pin sequence:\n got %s\nwant %s", got, want)
	}
	if m.flushes < 2 {
		t.Errorf("input flushed %d times, want at least 2", m.flushes)
	}
}

func TestInit_FailureCloses(t *testing.T) {
	m := newFakeModule()
	d, err := New(m, m, testConfig())
	if err != nil {
		t.Fatal(err)
	}

	if _, err := d.Init(context.Background()); !errors.Is(err, ErrCommandFailed) {
		t.Fatalf("expected ErrCommandFailed without a firmware version, got %v", err)
	}
	if err := d.Reset(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("driver should be closed after failed Init, got %v", err)
	}
}

func TestPinWakeup(t *testing.T) {
	m := newFakeModule()
	d := startDriver(t, m, testConfig())

	go func() {
		time.Sleep(20 * time.Millisecond)
		m.inject(amber.MustEncode(amber.CmdStandbyInd, []byte{0x00}))
	}()
	if err := d.PinWakeup(context.Background()); err != nil {
		t.Fatalf("PinWakeup: %v", err)
	}

	pins := strings.Join(m.pins(), " ")
	if !strings.HasSuffix(pins, "WAKEUP=high WAKEUP=low") {
		t.Errorf("pin sequence %q does not end with a wakeup pulse", pins)
	}
}

func TestClose(t *testing.T) {
	m := newFakeModule()
	cfg := testConfig()
	cfg.AddressMode = amber.AddressMode3
	d, err := New(m, m, cfg)
	if err != nil {
		t.Fatal(err)
	}

	if err := d.Reset(context.Background()); !errors.Is(err, ErrNotStarted) {
		t.Errorf("before Start: expected ErrNotStarted, got %v", err)
	}
	if err := d.Start(); err != nil {
		t.Fatal(err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if err := d.Reset(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("after Close: expected ErrClosed, got %v", err)
	}
	if err := d.Send(amber.NewResetRequest()); !errors.Is(err, ErrClosed) {
		t.Errorf("Send after Close: expected ErrClosed, got %v", err)
	}
	if err := d.Start(); !errors.Is(err, ErrClosed) {
		t.Errorf("Start after Close: expected ErrClosed, got %v", err)
	}
	if d.AddressMode() != amber.AddressMode0 {
		t.Errorf("address mode after Close = %d, want 0", d.AddressMode())
	}
	if err := d.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}

	pins := m.pins()
	if got := strings.Join(pins[len(pins)-3:], " "); got != "RESET=high WAKEUP=high BOOT=high" {
		t.Errorf("pins after Close = %s", got)
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(nil, nil, Config{}); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("nil transport: expected ErrInvalidParameter, got %v", err)
	}
	if _, err := New(newFakeModule(), nil, Config{AddressMode: 4}); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("bad mode: expected ErrInvalidParameter, got %v", err)
	}
	d, err := New(newFakeModule(), nil, Config{})
	if err != nil {
		t.Fatal(err)
	}
	if err := d.SetAddressMode(7); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("SetAddressMode(7): expected ErrInvalidParameter, got %v", err)
	}
}

func TestTransportError(t *testing.T) {
	m := newFakeModule()
	m.readErr = io.ErrUnexpectedEOF
	d := startDriver(t, m, testConfig())

	deadline := time.Now().Add(time.Second)
	for d.Err() == nil {
		if time.Now().After(deadline) {
			t.Fatal("receiver did not stop on read error")
		}
		time.Sleep(time.Millisecond)
	}

	if err := d.Reset(context.Background()); !errors.Is(err, ErrTransport) {
		t.Errorf("expected ErrTransport, got %v", err)
	}
}
