// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package capture records raw link traffic to CBOR capture files and reads
// them back for offline decoding.
//
// A capture file is a CBOR sequence: one Header followed by any number of
// Records, each holding the bytes of a single read from or write to the
// link.
package capture

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Magic identifies capture files
const Magic = "radiolink-capture"

// Version is the current capture format version
const Version = 1

// Direction of a captured chunk relative to the host
type Direction uint8

const (
	DirRX Direction = iota // module to host
	DirTX                  // host to module
)

func (d Direction) String() string {
	switch d {
	case DirRX:
		return "RX"
	case DirTX:
		return "TX"
	default:
		return fmt.Sprintf("DIR(%d)", uint8(d))
	}
}

// Header is the first item of a capture file
type Header struct {
	Magic       string `cbor:"0,keyasint"`
	Version     int    `cbor:"1,keyasint"`
	Started     int64  `cbor:"2,keyasint"` // unix microseconds
	AddressMode uint8  `cbor:"3,keyasint"`
	Source      string `cbor:"4,keyasint,omitempty"`
}

// StartTime returns the capture start as a time.Time
func (h Header) StartTime() time.Time {
	return time.UnixMicro(h.Started)
}

// Record is one chunk of link traffic
type Record struct {
	Time int64     `cbor:"0,keyasint"` // unix microseconds
	Dir  Direction `cbor:"1,keyasint"`
	Data []byte    `cbor:"2,keyasint"`
}

// Timestamp returns the record time as a time.Time
func (r Record) Timestamp() time.Time {
	return time.UnixMicro(r.Time)
}

var (
	ErrBadMagic           = errors.New("not a capture file")
	ErrUnsupportedVersion = errors.New("unsupported capture version")
)

// Writer appends records to a capture stream. It is safe for concurrent
// use by a reader and a writer goroutine.
type Writer struct {
	mu  sync.Mutex
	enc *cbor.Encoder
	now func() time.Time
}

// NewWriter writes a header to w and returns a Writer for the records
// that follow.
func NewWriter(w io.Writer, mode uint8, source string) (*Writer, error) {
	cw := &Writer{
		enc: cbor.NewEncoder(w),
		now: time.Now,
	}
	header := Header{
		Magic:       Magic,
		Version:     Version,
		Started:     cw.now().UnixMicro(),
		AddressMode: mode,
		Source:      source,
	}
	if err := cw.enc.Encode(header); err != nil {
		return nil, fmt.Errorf("failed to write capture header: %w", err)
	}
	return cw, nil
}

// Write records one chunk. The data is encoded immediately, so callers may
// reuse the buffer.
func (w *Writer) Write(dir Direction, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.enc.Encode(Record{
		Time: w.now().UnixMicro(),
		Dir:  dir,
		Data: data,
	})
}

// Reader reads a capture stream
type Reader struct {
	dec    *cbor.Decoder
	header Header
}

// NewReader reads and checks the capture header
func NewReader(r io.Reader) (*Reader, error) {
	cr := &Reader{dec: cbor.NewDecoder(r)}
	if err := cr.dec.Decode(&cr.header); err != nil {
		return nil, fmt.Errorf("failed to read capture header: %w", err)
	}
	if cr.header.Magic != Magic {
		return nil, fmt.Errorf("%w: magic %q", ErrBadMagic, cr.header.Magic)
	}
	if cr.header.Version != Version {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, cr.header.Version)
	}
	return cr, nil
}

// Header returns the capture header
func (r *Reader) Header() Header {
	return r.header
}

// Next returns the next record, or io.EOF at the end of the capture
func (r *Reader) Next() (Record, error) {
	var rec Record
	if err := r.dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return Record{}, io.EOF
		}
		return Record{}, fmt.Errorf("failed to read capture record: %w", err)
	}
	return rec, nil
}

// ReadAll reads every remaining record
func (r *Reader) ReadAll() ([]Record, error) {
	var records []Record
	for {
		rec, err := r.Next()
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return records, err
		}
		records = append(records, rec)
	}
}
