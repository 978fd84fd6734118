// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Thermoquad/radiolink/pkg/amber"
	tea "github.com/charmbracelet/bubbletea"
)

// ============================================================
// Control Model Tests
// ============================================================

func TestControlModel_FixedPeers(t *testing.T) {
	m := initialControlModel(nil, amber.AddressMode2)

	if len(m.peers) != 2 {
		t.Fatalf("expected 2 fixed peers, got %d", len(m.peers))
	}
	if !m.peers[0].defaultDest {
		t.Error("first peer should target the default destination")
	}
	if m.peers[1].addr != amber.Broadcast {
		t.Errorf("second peer address = %+v, want broadcast", m.peers[1].addr)
	}
	if p := m.selectedPeer(); p == nil || !p.defaultDest {
		t.Error("default destination should be selected initially")
	}
}

func TestControlModel_HandleIndication(t *testing.T) {
	m := initialControlModel(nil, amber.AddressMode2)

	ind := amber.Indication{
		Payload: []byte("hello"),
		Address: amber.Address{NetID: 0x05, AddrLSB: 0x07, AddrMSB: 0xFF},
		RSSI:    -60,
	}
	m.handleIndication(ind)
	m.handleIndication(ind)

	if len(m.peers) != 3 {
		t.Fatalf("expected a new peer after first contact, got %d peers", len(m.peers))
	}
	p := m.peers[2]
	if p.name != "net=0x05 addr=0x07" {
		t.Errorf("peer name = %q", p.name)
	}
	if p.heard != 2 || p.lastRSSI != -60 {
		t.Errorf("peer heard/rssi = %d/%d, want 2/-60", p.heard, p.lastRSSI)
	}
	if len(m.chat) != 2 || m.chat[0].text != "hello" || m.chat[0].outgoing {
		t.Errorf("unexpected chat log: %+v", m.chat)
	}
	if m.stats.RFBytes != 10 {
		t.Errorf("RFBytes = %d, want 10", m.stats.RFBytes)
	}
}

func TestControlModel_ModeZeroFoldsIntoBroadcast(t *testing.T) {
	m := initialControlModel(nil, amber.AddressMode0)

	m.handleIndication(amber.Indication{Payload: []byte("x"), Address: amber.Broadcast, RSSI: -40})

	if len(m.peers) != 2 {
		t.Fatalf("mode 0 sender should not add a peer, got %d peers", len(m.peers))
	}
	if m.peers[1].heard != 1 {
		t.Errorf("broadcast peer heard = %d, want 1", m.peers[1].heard)
	}
}

func TestControlModel_SendWhileDisconnected(t *testing.T) {
	m := initialControlModel(nil, amber.AddressMode0)
	m.input.SetValue("hi")

	_, cmd := m.sendMessage()
	if cmd != nil {
		t.Error("no transmit should be issued without a module")
	}
	if m.sending {
		t.Error("model should not be marked as sending")
	}
	if m.input.Value() != "hi" {
		t.Error("input should be kept for a retry")
	}
	last := m.errorLog[len(m.errorLog)-1]
	if !last.isError || !strings.Contains(last.message, "not connected") {
		t.Errorf("unexpected log entry: %+v", last)
	}
}

func TestControlModel_HandleSent(t *testing.T) {
	m := initialControlModel(nil, amber.AddressMode0)
	target := m.peers[1]

	m.handleSent(sentMsg{target: target, payload: []byte("ok")})
	m.handleSent(sentMsg{target: target, payload: []byte("bad"), err: errors.New("command failed")})

	if len(m.chat) != 2 {
		t.Fatalf("expected 2 chat entries, got %d", len(m.chat))
	}
	if !m.chat[0].outgoing || m.chat[0].failed {
		t.Errorf("first entry = %+v, want outgoing success", m.chat[0])
	}
	if !m.chat[1].failed {
		t.Errorf("second entry = %+v, want failed", m.chat[1])
	}
}

func TestControlModel_ChatLimit(t *testing.T) {
	m := initialControlModel(nil, amber.AddressMode0)
	for i := 0; i < maxChatEntries+10; i++ {
		m.addChat(chatEntry{text: "x"})
	}
	if len(m.chat) != maxChatEntries {
		t.Errorf("chat length = %d, want %d", len(m.chat), maxChatEntries)
	}
}

func TestControlModel_ProcessLinkEvent(t *testing.T) {
	m := initialControlModel(nil, amber.AddressMode0)

	failed := amber.NewFrame(amber.CmdSetCnf, []byte{0x01})
	m.processLinkEvent(linkEvent{frame: failed, validationErrors: amber.ValidateFrame(failed, amber.AddressMode0)})
	m.processLinkEvent(linkEvent{decodeErr: amber.ErrChecksumMismatch})

	if m.stats.TotalFrames != 2 || m.stats.FailedStatuses != 1 || m.stats.ChecksumErrors != 1 {
		t.Errorf("unexpected stats: total=%d failed=%d checksum=%d",
			m.stats.TotalFrames, m.stats.FailedStatuses, m.stats.ChecksumErrors)
	}
}

// ============================================================
// Helper Tests
// ============================================================

func TestNextBackoff(t *testing.T) {
	tests := []struct {
		in, want time.Duration
	}{
		{0, initialBackoff},
		{initialBackoff, 2 * time.Second},
		{8 * time.Second, 16 * time.Second},
		{20 * time.Second, maxBackoff},
		{maxBackoff, maxBackoff},
	}
	for _, tt := range tests {
		if got := nextBackoff(tt.in); got != tt.want {
			t.Errorf("nextBackoff(%s) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestPayloadText(t *testing.T) {
	if got := payloadText([]byte("hello world")); got != "hello world" {
		t.Errorf("payloadText(text) = %q", got)
	}
	if got := payloadText([]byte{0x00, 0xFF}); got != "[00 FF]" {
		t.Errorf("payloadText(binary) = %q, want \"[00 FF]\"", got)
	}
}

func TestParseHexValue(t *testing.T) {
	tests := []struct {
		in   string
		want []byte
	}{
		{"0a", []byte{0x0A}},
		{"0x0102", []byte{0x01, 0x02}},
		{"01 02 03", []byte{0x01, 0x02, 0x03}},
		{"AB:CD", []byte{0xAB, 0xCD}},
	}
	for _, tt := range tests {
		got, err := parseHexValue(tt.in)
		if err != nil {
			t.Errorf("parseHexValue(%q) error: %v", tt.in, err)
			continue
		}
		if !bytes.Equal(got, tt.want) {
			t.Errorf("parseHexValue(%q) = % X, want % X", tt.in, got, tt.want)
		}
	}

	if _, err := parseHexValue("zz"); err == nil {
		t.Error("parseHexValue should reject non-hex input")
	}
}

func TestParseSettingName(t *testing.T) {
	s, err := parseSettingName("fw-version")
	if err != nil || s != amber.SettingFWVersion {
		t.Errorf("parseSettingName(fw-version) = (0x%02X, %v)", uint8(s), err)
	}

	s, err = parseSettingName("0x21")
	if err != nil || s != amber.SettingFWVersion {
		t.Errorf("parseSettingName(0x21) = (0x%02X, %v)", uint8(s), err)
	}

	if _, err := parseSettingName("bogus"); err == nil {
		t.Error("parseSettingName should reject unknown names")
	}
}

// ============================================================
// Error Detection Model Tests
// ============================================================

func TestErrorDetectionModel_Update(t *testing.T) {
	var m tea.Model = initialModel("test", amber.AddressMode2, 10, false)

	m, _ = m.Update(syncMsg{invalidBytes: 3})
	ind := amber.NewFrame(amber.CmdDataExInd, []byte{0x05, 0x07, 'h', 'i', 0xC4})
	m, _ = m.Update(linkDataMsg{frame: ind, validationErrors: amber.ValidateFrame(ind, amber.AddressMode2)})
	bad := amber.NewFrame(amber.CmdSetChannelCnf, []byte{99})
	m, _ = m.Update(linkDataMsg{frame: bad, validationErrors: amber.ValidateFrame(bad, amber.AddressMode2)})

	got := m.(model)
	if !got.synchronized || got.invalidBytes != 3 {
		t.Errorf("synchronized/invalidBytes = %v/%d, want true/3", got.synchronized, got.invalidBytes)
	}
	if got.rf.count != 1 || got.rf.last.RSSI != -60 {
		t.Errorf("rf count/rssi = %d/%d, want 1/-60", got.rf.count, got.rf.last.RSSI)
	}
	if got.stats.RFBytes != 2 || got.stats.InvalidValues != 1 {
		t.Errorf("RFBytes/InvalidValues = %d/%d, want 2/1", got.stats.RFBytes, got.stats.InvalidValues)
	}
	if !strings.Contains(got.View(), "RF Activity") {
		t.Error("view should show the RF panel once indications arrive")
	}
}
