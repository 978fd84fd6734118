// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/Thermoquad/radiolink/pkg/amber"
	"github.com/Thermoquad/radiolink/pkg/capture"
	"github.com/Thermoquad/radiolink/pkg/driver"
	"github.com/gorilla/websocket"
	"go.bug.st/serial"
	"golang.org/x/term"
)

// readTimeout bounds every Read so the driver's receiver can poll
const readTimeout = 50 * time.Millisecond

// Connection provides a common interface for reading/writing bytes from serial or WebSocket.
// Read returns (0, nil) when nothing arrived within readTimeout.
type Connection interface {
	io.Reader
	io.Writer
	io.Closer
}

// SerialConnection wraps a serial port. It also drives the module's
// control lines from the adapter's modem outputs.
type SerialConnection struct {
	port  serial.Port
	lines map[driver.Pin]string
}

func (s *SerialConnection) Read(p []byte) (int, error) {
	return s.port.Read(p)
}

func (s *SerialConnection) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

func (s *SerialConnection) Close() error {
	return s.port.Close()
}

// ResetInputBuffer discards bytes received but not yet read
func (s *SerialConnection) ResetInputBuffer() error {
	return s.port.ResetInputBuffer()
}

// SetPin drives pin through its modem line. Adapter outputs are active
// low, so asserting the line pulls the pin low.
func (s *SerialConnection) SetPin(pin driver.Pin, high bool) error {
	switch s.lines[pin] {
	case "dtr":
		return s.port.SetDTR(!high)
	case "rts":
		return s.port.SetRTS(!high)
	}
	return nil
}

// ErrConnectionClosed is returned when reading from a closed WebSocket connection
var ErrConnectionClosed = fmt.Errorf("websocket connection closed")

// WebSocketConnection wraps a WebSocket connection for byte-level reading.
// A reader goroutine pulls messages so Read can honour readTimeout.
type WebSocketConnection struct {
	conn      *websocket.Conn
	messages  chan []byte
	done      chan struct{}
	closing   chan struct{}
	closeOnce sync.Once
	buf       []byte
	bufOffset int

	writeMu sync.Mutex
	errMu   sync.Mutex
	err     error
}

func newWebSocketConnection(conn *websocket.Conn) *WebSocketConnection {
	w := &WebSocketConnection{
		conn:     conn,
		messages: make(chan []byte, 64),
		done:     make(chan struct{}),
		closing:  make(chan struct{}),
	}
	go w.readLoop()
	return w
}

func (w *WebSocketConnection) readLoop() {
	defer close(w.done)
	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			w.errMu.Lock()
			w.err = err
			w.errMu.Unlock()
			return
		}

		// Only binary messages carry module traffic
		if messageType != websocket.BinaryMessage {
			continue
		}
		select {
		case w.messages <- data:
		case <-w.closing:
			return
		}
	}
}

func (w *WebSocketConnection) Read(p []byte) (int, error) {
	// If we have buffered data, return it first
	if w.bufOffset < len(w.buf) {
		n := copy(p, w.buf[w.bufOffset:])
		w.bufOffset += n
		return n, nil
	}

	select {
	case data := <-w.messages:
		w.buf = data
		n := copy(p, w.buf)
		w.bufOffset = n
		return n, nil
	case <-w.done:
		// drain anything queued before the error
		select {
		case data := <-w.messages:
			w.buf = data
			n := copy(p, w.buf)
			w.bufOffset = n
			return n, nil
		default:
		}
		return 0, ErrConnectionClosed
	case <-time.After(readTimeout):
		return 0, nil
	}
}

func (w *WebSocketConnection) Write(p []byte) (int, error) {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	err := w.conn.WriteMessage(websocket.BinaryMessage, p)
	if err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *WebSocketConnection) Close() error {
	w.closeOnce.Do(func() { close(w.closing) })
	return w.conn.Close()
}

// Err returns the error that closed the WebSocket, if any
func (w *WebSocketConnection) Err() error {
	w.errMu.Lock()
	defer w.errMu.Unlock()
	return w.err
}

// RecordingConnection copies a connection's traffic into a capture file
type RecordingConnection struct {
	Connection
	tap  *capture.Tap
	file *os.File
}

func (r *RecordingConnection) Read(p []byte) (int, error) {
	return r.tap.Read(p)
}

func (r *RecordingConnection) Write(p []byte) (int, error) {
	return r.tap.Write(p)
}

// ResetInputBuffer forwards to the underlying link when it supports it
func (r *RecordingConnection) ResetInputBuffer() error {
	if f, ok := r.Connection.(driver.InputFlusher); ok {
		return f.ResetInputBuffer()
	}
	return nil
}

func (r *RecordingConnection) Close() error {
	err := r.Connection.Close()
	if tapErr := r.tap.Err(); tapErr != nil {
		fmt.Fprintf(os.Stderr, "Capture error: %v\n", tapErr)
	}
	if cerr := r.file.Close(); err == nil {
		err = cerr
	}
	return err
}

// OpenSerialConnection opens a serial port connection
func OpenSerialConnection(portName string, baudRate int) (*SerialConnection, error) {
	lines := make(map[driver.Pin]string)
	for pin, line := range map[driver.Pin]string{driver.PinReset: resetLine, driver.PinWakeup: wakeupLine} {
		switch line {
		case "dtr", "rts":
			lines[pin] = line
		case "none", "":
		default:
			return nil, fmt.Errorf("invalid %s line %q (use dtr, rts or none)", strings.ToLower(pin.String()), line)
		}
	}
	if lines[driver.PinReset] != "" && lines[driver.PinReset] == lines[driver.PinWakeup] {
		return nil, fmt.Errorf("reset and wakeup cannot share the %s line", lines[driver.PinReset])
	}

	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %v", portName, err)
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to set read timeout on %s: %v", portName, err)
	}

	return &SerialConnection{port: port, lines: lines}, nil
}

// OpenWebSocketConnection opens a WebSocket connection with HTTP Basic auth
func OpenWebSocketConnection(wsURL, username, password string, skipSSLVerify bool) (*WebSocketConnection, error) {
	// Parse and validate URL
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %v", err)
	}

	switch u.Scheme {
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: skipSSLVerify,
		}
	}

	headers := http.Header{}
	if username != "" && password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %v", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket connection failed: %v", err)
	}

	return newWebSocketConnection(conn), nil
}

// GetPassword retrieves password from environment or prompts user
func GetPassword() (string, error) {
	if pw := os.Getenv("RADIOLINK_PASSWORD"); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")

	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %v", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr)
	return string(passwordBytes), nil
}

// OpenConnection opens either a serial or WebSocket connection based on
// flags, wrapped for recording when --record is set
func OpenConnection() (Connection, string, error) {
	conn, info, err := openLink()
	if err != nil {
		return nil, "", err
	}
	if recordPath == "" {
		return conn, info, nil
	}

	f, err := os.Create(recordPath)
	if err != nil {
		conn.Close()
		return nil, "", fmt.Errorf("failed to create capture file: %v", err)
	}
	w, err := capture.NewWriter(f, addrMode, info)
	if err != nil {
		f.Close()
		conn.Close()
		return nil, "", err
	}
	rec := &RecordingConnection{Connection: conn, tap: capture.NewTap(conn, w), file: f}
	return rec, fmt.Sprintf("%s (recording to %s)", info, recordPath), nil
}

func openLink() (Connection, string, error) {
	if wsURL != "" {
		password := ""
		if wsUsername != "" {
			var err error
			password, err = GetPassword()
			if err != nil {
				return nil, "", err
			}
		}

		conn, err := OpenWebSocketConnection(wsURL, wsUsername, password, wsNoSSLVerify)
		if err != nil {
			return nil, "", err
		}

		return conn, fmt.Sprintf("WebSocket: %s", wsURL), nil
	}

	if portName != "" {
		conn, err := OpenSerialConnection(portName, baudRate)
		if err != nil {
			return nil, "", err
		}

		return conn, fmt.Sprintf("Serial: %s @ %d baud", portName, baudRate), nil
	}

	return nil, "", fmt.Errorf("either --port or --url must be specified")
}

// pinsFor returns the control lines behind conn, or nil for links that
// cannot reset the module
func pinsFor(conn Connection) driver.Pins {
	if rec, ok := conn.(*RecordingConnection); ok {
		conn = rec.Connection
	}
	if s, ok := conn.(*SerialConnection); ok && s.lines[driver.PinReset] != "" {
		return s
	}
	return nil
}

// hasLine reports whether pins drives pin through a modem line
func hasLine(pins driver.Pins, pin driver.Pin) bool {
	s, ok := pins.(*SerialConnection)
	return ok && s.lines[pin] != ""
}

// addressMode validates --addr-mode
func addressMode() (amber.AddressMode, error) {
	mode := amber.AddressMode(addrMode)
	if !mode.Valid() {
		return 0, fmt.Errorf("invalid --addr-mode %d (use 0-3)", addrMode)
	}
	return mode, nil
}
