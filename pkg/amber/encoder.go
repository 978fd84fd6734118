// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package amber

import "fmt"

// Encode creates a complete wire-formatted frame for the command tag and
// payload. The checksum covers every byte before the checksum position.
func Encode(command uint8, payload []byte) ([]byte, error) {
	if len(payload)+FrameOverhead > MaxFrameSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrPayloadTooLarge, len(payload), MaxDataSize)
	}

	frame := make([]byte, 0, len(payload)+FrameOverhead)
	frame = append(frame, StartByte, command, uint8(len(payload)))
	frame = append(frame, payload...)
	frame = append(frame, CalculateChecksum(frame))

	return frame, nil
}

// EncodeFrame encodes an existing Frame back to wire format.
func EncodeFrame(f *Frame) ([]byte, error) {
	return Encode(f.command, f.data)
}

// MustEncode encodes a frame and panics on error. Use it only for frames
// whose size is fixed by construction.
func MustEncode(command uint8, payload []byte) []byte {
	data, err := Encode(command, payload)
	if err != nil {
		panic(fmt.Sprintf("amber: encode error: %v", err))
	}
	return data
}

// ParseFrame parses a single complete wire frame. It is the non-streaming
// counterpart of Decoder.
func ParseFrame(raw []byte) (*Frame, error) {
	if len(raw) < FrameOverhead {
		return nil, fmt.Errorf("%w: %d bytes (min %d)", ErrInvalidLength, len(raw), FrameOverhead)
	}
	if raw[0] != StartByte {
		return nil, fmt.Errorf("%w: got 0x%02X", ErrUnexpectedStartByte, raw[0])
	}
	length := int(raw[2])
	if len(raw) != length+FrameOverhead {
		return nil, fmt.Errorf("%w: length field %d, frame is %d bytes", ErrInvalidLength, length, len(raw))
	}
	if !Verify(raw) {
		return nil, fmt.Errorf("%w: expected 0x%02X, got 0x%02X",
			ErrChecksumMismatch, CalculateChecksum(raw[:len(raw)-1]), raw[len(raw)-1])
	}

	data := make([]byte, length)
	copy(data, raw[3:3+length])
	return NewFrame(raw[1], data), nil
}
