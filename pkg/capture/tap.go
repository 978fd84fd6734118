// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package capture

import (
	"io"
	"sync"
)

// Tap wraps a link and records everything read from and written to it.
// Capture errors never fail link I/O; the first one is kept for Err.
type Tap struct {
	rw io.ReadWriter
	w  *Writer

	mu  sync.Mutex
	err error
}

// NewTap returns a Tap recording rw's traffic to w
func NewTap(rw io.ReadWriter, w *Writer) *Tap {
	return &Tap{rw: rw, w: w}
}

// Read reads from the underlying link and records the bytes received
func (t *Tap) Read(p []byte) (int, error) {
	n, err := t.rw.Read(p)
	if n > 0 {
		t.record(DirRX, p[:n])
	}
	return n, err
}

// Write writes to the underlying link and records the bytes sent
func (t *Tap) Write(p []byte) (int, error) {
	n, err := t.rw.Write(p)
	if n > 0 {
		t.record(DirTX, p[:n])
	}
	return n, err
}

// Err returns the first capture error, if any
func (t *Tap) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

func (t *Tap) record(dir Direction, data []byte) {
	if err := t.w.Write(dir, data); err != nil {
		t.mu.Lock()
		if t.err == nil {
			t.err = err
		}
		t.mu.Unlock()
	}
}
