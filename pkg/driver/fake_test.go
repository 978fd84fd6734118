// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package driver

import (
	"sync"
	"testing"
	"time"

	"github.com/Thermoquad/radiolink/pkg/amber"
)

// handler answers one request with raw bytes for the host to read
type handler func(req *amber.Frame) [][]byte

// fakeModule is a scriptable module: it decodes every frame the driver
// writes, records it, and queues the scripted reply. It also implements
// Pins and emits RESET_IND when the reset line is released.
type fakeModule struct {
	mu       sync.Mutex
	dec      *amber.Decoder
	rx       []byte
	requests []*amber.Frame
	handlers map[uint8]handler
	pinLog   []string
	resetLow bool
	readErr  error
	flushes  int

	// settings backs GET/SET when no explicit handler is installed
	settings map[amber.Setting][]byte
	writes   map[amber.Setting]int
}

func newFakeModule() *fakeModule {
	return &fakeModule{
		dec:      amber.NewDecoder(),
		handlers: make(map[uint8]handler),
		settings: make(map[amber.Setting][]byte),
		writes:   make(map[amber.Setting]int),
	}
}

func (m *fakeModule) Read(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.rx) == 0 {
		return 0, m.readErr
	}
	n := copy(p, m.rx)
	m.rx = m.rx[n:]
	return n, nil
}

func (m *fakeModule) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range m.dec.Decode(p, nil) {
		m.requests = append(m.requests, f)
		for _, raw := range m.reply(f) {
			m.rx = append(m.rx, raw...)
		}
	}
	return len(p), nil
}

func (m *fakeModule) reply(f *amber.Frame) [][]byte {
	if h, ok := m.handlers[f.Command()]; ok {
		return h(f)
	}

	data := f.Data()
	switch f.Command() {
	case amber.CmdGetReq:
		v, ok := m.settings[amber.Setting(data[0])]
		if !ok {
			return [][]byte{amber.MustEncode(amber.CmdGetCnf, []byte{0x01})}
		}
		return [][]byte{amber.MustEncode(amber.CmdGetCnf, append([]byte{0x00}, v...))}
	case amber.CmdSetReq:
		s := amber.Setting(data[0])
		m.settings[s] = append([]byte(nil), data[1:]...)
		m.writes[s]++
		return [][]byte{amber.MustEncode(amber.CmdSetCnf, []byte{0x00})}
	}
	return nil
}

func (m *fakeModule) SetPin(pin Pin, high bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	level := "low"
	if high {
		level = "high"
	}
	m.pinLog = append(m.pinLog, pin.String()+"="+level)

	if pin == PinReset {
		if high && m.resetLow {
			m.rx = append(m.rx, amber.MustEncode(amber.CmdResetInd, []byte{0x00})...)
		}
		m.resetLow = !high
	}
	return nil
}

func (m *fakeModule) ResetInputBuffer() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rx = nil
	m.flushes++
	return nil
}

// on installs a handler for a request command
func (m *fakeModule) on(cmd uint8, h handler) {
	m.mu.Lock()
	m.handlers[cmd] = h
	m.mu.Unlock()
}

// answer installs a handler that always replies with one frame
func (m *fakeModule) answer(req, cnf uint8, data ...byte) {
	m.on(req, func(*amber.Frame) [][]byte {
		return [][]byte{amber.MustEncode(cnf, data)}
	})
}

// inject queues unsolicited bytes for the host
func (m *fakeModule) inject(raw []byte) {
	m.mu.Lock()
	m.rx = append(m.rx, raw...)
	m.mu.Unlock()
}

func (m *fakeModule) setSetting(s amber.Setting, v ...byte) {
	m.mu.Lock()
	m.settings[s] = v
	m.mu.Unlock()
}

func (m *fakeModule) setting(s amber.Setting) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.settings[s]...)
}

func (m *fakeModule) writeCount(s amber.Setting) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes[s]
}

func (m *fakeModule) sent() []*amber.Frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*amber.Frame(nil), m.requests...)
}

func (m *fakeModule) lastRequest(t *testing.T) *amber.Frame {
	t.Helper()
	reqs := m.sent()
	if len(reqs) == 0 {
		t.Fatal("no request written")
	}
	return reqs[len(reqs)-1]
}

func (m *fakeModule) pins() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.pinLog...)
}

// testConfig keeps waits short so failing paths stay fast
func testConfig() Config {
	return Config{
		CommandTimeout:      100 * time.Millisecond,
		FactoryResetTimeout: 100 * time.Millisecond,
		PingTimeout:         100 * time.Millisecond,
		PinPulse:            time.Millisecond,
		StartupDelay:        time.Millisecond,
		FactoryResetDelay:   time.Millisecond,
		SettleDelay:         time.Millisecond,
	}
}

// startDriver creates and starts a driver on m, closing it at cleanup
func startDriver(t *testing.T, m *fakeModule, cfg Config) *Driver {
	t.Helper()
	d, err := New(m, m, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := d.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}
