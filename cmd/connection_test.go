// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Thermoquad/radiolink/pkg/driver"
	"github.com/gorilla/websocket"
)

// ============================================================
// WebSocket Connection Tests
// ============================================================

func TestWebSocketConnection_CloseWithFullBuffer(t *testing.T) {
	upgrader := websocket.Upgrader{}
	sent := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		for i := 0; i < 100; i++ {
			if err := c.WriteMessage(websocket.BinaryMessage, []byte{0x02}); err != nil {
				return
			}
		}
		close(sent)
		// hold the connection open until the client goes away
		c.ReadMessage()
	}))
	defer srv.Close()

	conn, err := OpenWebSocketConnection("ws"+strings.TrimPrefix(srv.URL, "http"), "", "", false)
	if err != nil {
		t.Fatalf("OpenWebSocketConnection: %v", err)
	}

	select {
	case <-sent:
	case <-time.After(2 * time.Second):
		t.Fatal("server did not finish sending")
	}
	// let the reader fill the buffer and block
	time.Sleep(50 * time.Millisecond)

	conn.Close()
	select {
	case <-conn.done:
	case <-time.After(2 * time.Second):
		t.Fatal("reader goroutine still running after Close")
	}
}

// ============================================================
// Control Line Tests
// ============================================================

func TestPinsFor(t *testing.T) {
	tests := []struct {
		name       string
		lines      map[driver.Pin]string
		wantPins   bool
		wantWakeup bool
	}{
		{"both lines", map[driver.Pin]string{driver.PinReset: "dtr", driver.PinWakeup: "rts"}, true, true},
		{"reset only", map[driver.Pin]string{driver.PinReset: "dtr"}, true, false},
		{"wakeup only", map[driver.Pin]string{driver.PinWakeup: "rts"}, false, false},
		{"none", map[driver.Pin]string{}, false, false},
	}
	for _, tt := range tests {
		pins := pinsFor(&SerialConnection{lines: tt.lines})
		if got := pins != nil; got != tt.wantPins {
			t.Errorf("%s: pins = %v, want %v", tt.name, got, tt.wantPins)
		}
		if got := hasLine(pins, driver.PinWakeup); got != tt.wantWakeup {
			t.Errorf("%s: wakeup = %v, want %v", tt.name, got, tt.wantWakeup)
		}
	}
}

func TestCheckPinLines(t *testing.T) {
	resetOnly := &Module{ConnInfo: "Serial: test", HasPins: true}
	both := &Module{ConnInfo: "Serial: test", HasPins: true, HasWakeup: true}
	none := &Module{ConnInfo: "WebSocket: test"}

	tests := []struct {
		name    string
		m       *Module
		pin     bool
		wakeup  bool
		wantErr string
	}{
		{"command reset without lines", none, false, false, ""},
		{"pin reset without lines", none, true, false, "no control lines"},
		{"pin reset with reset line", resetOnly, true, false, ""},
		{"wakeup without wakeup line", resetOnly, false, true, "no wakeup line"},
		{"wakeup with both lines", both, false, true, ""},
	}
	for _, tt := range tests {
		err := checkPinLines(tt.m, tt.pin, tt.wakeup)
		switch {
		case tt.wantErr == "" && err != nil:
			t.Errorf("%s: unexpected error %v", tt.name, err)
		case tt.wantErr != "" && (err == nil || !strings.Contains(err.Error(), tt.wantErr)):
			t.Errorf("%s: error = %v, want %q", tt.name, err, tt.wantErr)
		}
	}
}
