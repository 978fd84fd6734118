// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package amber

import "time"

// Frame represents one decoded or outgoing AMBER command frame
type Frame struct {
	command   uint8
	length    uint8
	data      []byte
	checksum  uint8
	timestamp time.Time
}

// NewFrame creates a frame for the given command tag and data.
// The checksum is computed automatically. Data longer than MaxDataSize
// is rejected by Encode, not here.
func NewFrame(command uint8, data []byte) *Frame {
	f := &Frame{
		command:   command,
		length:    uint8(len(data)),
		data:      data,
		timestamp: time.Now(),
	}
	f.checksum = CalculateChecksum(f.header()) ^ CalculateChecksum(data)
	return f
}

func (f *Frame) header() []byte {
	return []byte{StartByte, f.command, f.length}
}

// Command returns the frame's full command tag (kind and operation)
func (f *Frame) Command() uint8 {
	return f.command
}

// Kind returns the frame kind from the top two bits of the command tag
func (f *Frame) Kind() Kind {
	return Kind(f.command & kindMask)
}

// Op returns the operation code from the low six bits of the command tag
func (f *Frame) Op() uint8 {
	return f.command & opMask
}

// Length returns the data length field
func (f *Frame) Length() uint8 {
	return f.length
}

// Data returns the frame's data bytes
func (f *Frame) Data() []byte {
	return f.data
}

// Checksum returns the frame's checksum byte
func (f *Frame) Checksum() uint8 {
	return f.checksum
}

// Timestamp returns the frame's decode (or creation) timestamp
func (f *Frame) Timestamp() time.Time {
	return f.timestamp
}

// Status returns the first data byte, which carries the status of most
// confirmations. ok is false for frames without data.
func (f *Frame) Status() (status uint8, ok bool) {
	if len(f.data) == 0 {
		return 0, false
	}
	return f.data[0], true
}

// IsConfirmation returns true for CNF frames
func (f *Frame) IsConfirmation() bool {
	return f.Kind() == KindConfirmation
}

// IsIndication returns true for IND frames
func (f *Frame) IsIndication() bool {
	return f.Kind() == KindIndication
}

// Bytes returns the wire representation of the frame
func (f *Frame) Bytes() []byte {
	out := make([]byte, 0, len(f.data)+FrameOverhead)
	out = append(out, StartByte, f.command, f.length)
	out = append(out, f.data...)
	return append(out, f.checksum)
}

// MakeCommand combines an operation code and a frame kind into a command tag
func MakeCommand(op uint8, kind Kind) uint8 {
	return (op & opMask) | uint8(kind)
}
