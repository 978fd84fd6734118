// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package amber

import "fmt"

// Address holds the destination fields that may accompany an RF payload.
// Fields not carried by the addressing mode read as BroadcastAddress.
type Address struct {
	NetID   uint8
	AddrLSB uint8
	AddrMSB uint8
}

// Broadcast is the all-broadcast address
var Broadcast = Address{NetID: BroadcastAddress, AddrLSB: BroadcastAddress, AddrMSB: BroadcastAddress}

// Indication is an RF payload received from another module
type Indication struct {
	Payload []byte
	Address Address
	RSSI    int8 // dBm
}

// PrefixLen returns the number of address bytes that precede the payload
// in DATAEX_REQ and DATAEX_IND frames for mode m.
//
//	mode 0: none
//	mode 1: addr_lsb
//	mode 2: net_id addr_lsb
//	mode 3: net_id addr_lsb addr_msb
func (m AddressMode) PrefixLen() int {
	if !m.Valid() {
		return 0
	}
	return int(m)
}

// AppendPrefix appends the address bytes carried by mode m to dst
func (m AddressMode) AppendPrefix(dst []byte, a Address) []byte {
	switch m {
	case AddressMode1:
		return append(dst, a.AddrLSB)
	case AddressMode2:
		return append(dst, a.NetID, a.AddrLSB)
	case AddressMode3:
		return append(dst, a.NetID, a.AddrLSB, a.AddrMSB)
	}
	return dst
}

// SplitPrefix strips the address bytes carried by mode m from the front of
// data. Components the mode does not carry are reported as broadcast.
func (m AddressMode) SplitPrefix(data []byte) (Address, []byte, error) {
	if !m.Valid() {
		return Address{}, nil, fmt.Errorf("%w: %d", ErrInvalidAddressMode, m)
	}
	n := m.PrefixLen()
	if len(data) < n {
		return Address{}, nil, fmt.Errorf("%w: %d bytes, mode %d needs %d", ErrShortIndication, len(data), m, n)
	}

	a := Broadcast
	switch m {
	case AddressMode1:
		a.AddrLSB = data[0]
	case AddressMode2:
		a.NetID = data[0]
		a.AddrLSB = data[1]
	case AddressMode3:
		a.NetID = data[0]
		a.AddrLSB = data[1]
		a.AddrMSB = data[2]
	}
	return a, data[n:], nil
}

// Mask returns a with the components not carried by mode m replaced by
// broadcast, which is what the receiving side observes.
func (m AddressMode) Mask(a Address) Address {
	masked, _, err := m.SplitPrefix(m.AppendPrefix(nil, a))
	if err != nil {
		return Broadcast
	}
	return masked
}

// BuildDataExPayload lays out the data section of a DATAEX_REQ frame:
// [channel][address prefix][payload]
func BuildDataExPayload(mode AddressMode, channel uint8, dest Address, payload []byte) ([]byte, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidAddressMode, mode)
	}
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrPayloadTooLarge, len(payload), MaxPayloadSize)
	}

	data := make([]byte, 0, 1+mode.PrefixLen()+len(payload))
	data = append(data, channel)
	data = mode.AppendPrefix(data, dest)
	return append(data, payload...), nil
}

// ParseIndicationData unpacks the data section of a DATAEX_IND frame:
// [address prefix][payload][rssi]
func ParseIndicationData(mode AddressMode, data []byte) (Indication, error) {
	if len(data) < mode.PrefixLen()+1 {
		return Indication{}, fmt.Errorf("%w: %d bytes, mode %d needs %d",
			ErrShortIndication, len(data), mode, mode.PrefixLen()+1)
	}

	addr, rest, err := mode.SplitPrefix(data[:len(data)-1])
	if err != nil {
		return Indication{}, err
	}

	payload := make([]byte, len(rest))
	copy(payload, rest)
	return Indication{
		Payload: payload,
		Address: addr,
		RSSI:    int8(data[len(data)-1]),
	}, nil
}

// ParseIndication unpacks a DATAEX_IND frame under mode
func ParseIndication(mode AddressMode, f *Frame) (Indication, error) {
	if f.Command() != CmdDataExInd {
		return Indication{}, fmt.Errorf("not a DATAEX_IND frame: %s (0x%02X)", FormatCommand(f.Command()), f.Command())
	}
	return ParseIndicationData(mode, f.Data())
}
