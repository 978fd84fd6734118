// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package amber

import (
	"fmt"
	"time"
)

// Decoder implements the frame receiver state machine.
//
// Bytes are discarded until a start byte is seen; the command and length
// bytes follow, and data is accumulated until the frame reaches length+4
// bytes. The checksum is validated at that point and the decoder returns
// to waiting for a start byte whether or not the frame was valid.
type Decoder struct {
	state    int
	buffer   []byte
	count    int // bytes of the current frame received so far
	expected int // total frame size once the length byte is known
	skipped  int // bytes discarded while waiting for a start byte
}

// NewDecoder creates a new frame decoder
func NewDecoder() *Decoder {
	return &Decoder{
		state:  stateAwaitStart,
		buffer: make([]byte, 0xFF+FrameOverhead),
	}
}

// Reset forces the decoder back to waiting for a start byte, discarding
// any partial frame.
func (d *Decoder) Reset() {
	d.state = stateAwaitStart
	d.count = 0
	d.expected = 0
}

// Skipped returns the number of bytes discarded while waiting for a start
// byte since the last valid frame
func (d *Decoder) Skipped() int {
	return d.skipped
}

// Pending reports whether a partial frame is buffered
func (d *Decoder) Pending() bool {
	return d.state != stateAwaitStart
}

// DecodeByte processes a single byte through the decoder state machine.
// Returns a completed frame, or nil if the frame is incomplete.
// Returns an error wrapping ErrChecksumMismatch when a complete frame
// fails validation; the frame is dropped.
func (d *Decoder) DecodeByte(b byte) (*Frame, error) {
	switch d.state {
	case stateAwaitStart:
		if b != StartByte {
			d.skipped++
			return nil, nil
		}
		d.buffer[0] = b
		d.count = 1
		d.expected = 0
		d.state = stateAwaitCommand
		return nil, nil

	case stateAwaitCommand:
		d.buffer[d.count] = b
		d.count++
		d.state = stateAwaitLength
		return nil, nil

	case stateAwaitLength:
		d.buffer[d.count] = b
		d.count++
		d.expected = int(b) + FrameOverhead
		d.state = stateAwaitData
		return nil, nil

	case stateAwaitData:
		d.buffer[d.count] = b
		d.count++
		if d.count < d.expected {
			return nil, nil
		}
		return d.complete()

	default:
		d.Reset()
		return nil, fmt.Errorf("invalid state: %d", d.state)
	}
}

// Decode feeds every byte of p through the decoder and returns the frames
// completed along the way. Checksum failures are reported through onError
// if it is non-nil.
func (d *Decoder) Decode(p []byte, onError func(error)) []*Frame {
	var frames []*Frame
	for _, b := range p {
		frame, err := d.DecodeByte(b)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			continue
		}
		if frame != nil {
			frames = append(frames, frame)
		}
	}
	return frames
}

func (d *Decoder) complete() (*Frame, error) {
	raw := d.buffer[:d.count]
	d.Reset()

	if !Verify(raw) {
		return nil, fmt.Errorf("%w: expected 0x%02X, got 0x%02X",
			ErrChecksumMismatch, CalculateChecksum(raw[:len(raw)-1]), raw[len(raw)-1])
	}

	length := raw[2]
	data := make([]byte, length)
	copy(data, raw[3:3+int(length)])

	d.skipped = 0
	return &Frame{
		command:   raw[1],
		length:    length,
		data:      data,
		checksum:  raw[len(raw)-1],
		timestamp: time.Now(),
	}, nil
}
