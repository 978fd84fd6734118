// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package amber

import "fmt"

// Request builders create Frame structs ready for encoding. Range checks
// on radio parameters are the caller's responsibility; the builders only
// enforce what the wire format itself cannot carry.

// PingDUTData is the fixed data section of the diagnostic PINGDUT request
var PingDUTData = []byte{0x20, 0x05, 0x86, 0x0E, PingDUTPacketCount, 0xFF, 0xFF, 0xFF}

// PingDUTResultIndex is the confirmation data byte holding the number of
// packets echoed back by the module under test
const PingDUTResultIndex = 4

// NewResetRequest creates a RESET_REQ frame (0x05)
func NewResetRequest() *Frame {
	return NewFrame(CmdResetReq, nil)
}

// NewFactoryResetRequest creates a FACTORY_RESET_REQ frame (0x12).
// The module restores its default user settings and restarts.
func NewFactoryResetRequest() *Frame {
	return NewFrame(CmdFactoryResetReq, nil)
}

// NewStandbyRequest creates a STANDBY_REQ frame (0x0F)
func NewStandbyRequest() *Frame {
	return NewFrame(CmdStandbyReq, nil)
}

// NewShutdownRequest creates a SHUTDOWN_REQ frame (0x0E)
func NewShutdownRequest() *Frame {
	return NewFrame(CmdShutdownReq, nil)
}

// NewGetRequest creates a GET_REQ frame (0x0A) for a single user setting
func NewGetRequest(setting Setting) *Frame {
	return NewFrame(CmdGetReq, []byte{uint8(setting)})
}

// NewSetRequest creates a SET_REQ frame (0x09): [setting][value...].
// Settings are written to flash; the module must be reset for them to
// take effect.
func NewSetRequest(setting Setting, value []byte) (*Frame, error) {
	if len(value) == 0 || len(value) > MaxSettingSize {
		return nil, fmt.Errorf("%w: setting value is %d bytes (1..%d)", ErrInvalidLength, len(value), MaxSettingSize)
	}
	data := make([]byte, 0, 1+len(value))
	data = append(data, uint8(setting))
	data = append(data, value...)
	return NewFrame(CmdSetReq, data), nil
}

// NewSetChannelRequest creates a SET_CHANNEL_REQ frame (0x06)
func NewSetChannelRequest(channel uint8) *Frame {
	return NewFrame(CmdSetChannelReq, []byte{channel})
}

// NewSetPAPowerRequest creates a SET_PAPOWER_REQ frame (0x11).
// power is in dBm and travels as a two's complement byte.
func NewSetPAPowerRequest(power int8) *Frame {
	return NewFrame(CmdSetPAPowerReq, []byte{uint8(power)})
}

// NewSetDestNetIDRequest creates a SET_DESTNETID_REQ frame (0x07)
func NewSetDestNetIDRequest(netID uint8) *Frame {
	return NewFrame(CmdSetDestNetIDReq, []byte{netID})
}

// NewSetDestAddrRequest creates a SET_DESTADDR_REQ frame (0x08).
// Mode 3 uses 16 bit addresses and sends both bytes; the other modes send
// only the LSB.
func NewSetDestAddrRequest(mode AddressMode, lsb, msb uint8) (*Frame, error) {
	switch mode {
	case AddressMode0, AddressMode1, AddressMode2:
		return NewFrame(CmdSetDestAddrReq, []byte{lsb}), nil
	case AddressMode3:
		return NewFrame(CmdSetDestAddrReq, []byte{lsb, msb}), nil
	}
	return nil, fmt.Errorf("%w: %d", ErrInvalidAddressMode, mode)
}

// NewDataRequest creates a DATA_REQ frame (0x00) that transmits payload
// with the module's current channel and destination settings.
func NewDataRequest(payload []byte) (*Frame, error) {
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrPayloadTooLarge, len(payload), MaxPayloadSize)
	}
	data := make([]byte, len(payload))
	copy(data, payload)
	return NewFrame(CmdDataReq, data), nil
}

// NewDataExRequest creates a DATAEX_REQ frame (0x01) that transmits
// payload on channel to dest, using the prefix layout of mode.
func NewDataExRequest(mode AddressMode, channel uint8, dest Address, payload []byte) (*Frame, error) {
	data, err := BuildDataExPayload(mode, channel, dest, payload)
	if err != nil {
		return nil, err
	}
	return NewFrame(CmdDataExReq, data), nil
}

// NewPingDUTRequest creates the diagnostic PINGDUT_REQ frame (0x1F)
func NewPingDUTRequest() *Frame {
	data := make([]byte, len(PingDUTData))
	copy(data, PingDUTData)
	return NewFrame(CmdPingDUTReq, data)
}
