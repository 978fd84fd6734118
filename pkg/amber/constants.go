// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package amber provides a Go implementation of the command interface used by
// AMBER radio transceiver modules (Tarvos, Telesto, Thadeus, Thalassa).
//
// Every exchange with the module is a frame:
//
//	[0x02][cmd][len][data...][checksum]
//
// where checksum is the XOR of every preceding byte. This package provides
// frame encoding/decoding, checksum validation, the addressing-mode payload
// layout, and formatting for diagnostics.
package amber

// Protocol framing
const (
	StartByte = 0x02

	// FrameOverhead is start + command + length + checksum.
	FrameOverhead = 4
	MaxFrameSize  = 255
	MaxDataSize   = MaxFrameSize - FrameOverhead

	// MaxPayloadSize is the largest RF payload accepted by DATA_REQ and
	// DATAEX_REQ.
	MaxPayloadSize = 224
)

// BroadcastAddress is reported for any address component not carried by
// the configured addressing mode.
const BroadcastAddress = 0xFF

// Kind is the frame kind encoded in the top two bits of a command byte.
type Kind uint8

// Frame kinds
const (
	KindRequest      Kind = 0 << 6
	KindConfirmation Kind = 1 << 6
	KindIndication   Kind = 2 << 6
	KindResponse     Kind = 3 << 6
)

const (
	kindMask = 0xC0
	opMask   = 0x3F
)

// Operation codes (low six bits of a command byte)
const (
	OpData         = 0x00
	OpDataEx       = 0x01
	OpReset        = 0x05
	OpSetChannel   = 0x06
	OpSetDestNetID = 0x07
	OpSetDestAddr  = 0x08
	OpSet          = 0x09
	OpGet          = 0x0A
	OpRSSI         = 0x0D
	OpShutdown     = 0x0E
	OpStandby      = 0x0F
	OpSetPAPower   = 0x11
	OpFactoryReset = 0x12
	OpPingDUT      = 0x1F
)

// Command tags - operation plus kind
const (
	CmdDataReq   = OpData | byte(KindRequest)
	CmdDataCnf   = OpData | byte(KindConfirmation)
	CmdRepeatInd = OpData | byte(KindIndication)

	CmdDataExReq = OpDataEx | byte(KindRequest)
	CmdDataExInd = OpDataEx | byte(KindIndication)

	CmdResetReq = OpReset | byte(KindRequest)
	CmdResetCnf = OpReset | byte(KindConfirmation)
	CmdResetInd = OpReset | byte(KindIndication)

	CmdSetChannelReq = OpSetChannel | byte(KindRequest)
	CmdSetChannelCnf = OpSetChannel | byte(KindConfirmation)

	CmdSetDestNetIDReq = OpSetDestNetID | byte(KindRequest)
	CmdSetDestNetIDCnf = OpSetDestNetID | byte(KindConfirmation)

	CmdSetDestAddrReq = OpSetDestAddr | byte(KindRequest)
	CmdSetDestAddrCnf = OpSetDestAddr | byte(KindConfirmation)

	CmdSetReq = OpSet | byte(KindRequest)
	CmdSetCnf = OpSet | byte(KindConfirmation)

	CmdGetReq = OpGet | byte(KindRequest)
	CmdGetCnf = OpGet | byte(KindConfirmation)

	CmdRSSIReq = OpRSSI | byte(KindRequest)
	CmdRSSICnf = OpRSSI | byte(KindConfirmation)

	CmdShutdownReq = OpShutdown | byte(KindRequest)
	CmdShutdownCnf = OpShutdown | byte(KindConfirmation)

	CmdStandbyReq = OpStandby | byte(KindRequest)
	CmdStandbyCnf = OpStandby | byte(KindConfirmation)
	CmdStandbyInd = OpStandby | byte(KindIndication)

	CmdSetPAPowerReq = OpSetPAPower | byte(KindRequest)
	CmdSetPAPowerCnf = OpSetPAPower | byte(KindConfirmation)

	CmdFactoryResetReq = OpFactoryReset | byte(KindRequest)
	CmdFactoryResetCnf = OpFactoryReset | byte(KindConfirmation)

	CmdPingDUTReq = OpPingDUT | byte(KindRequest)
	CmdPingDUTCnf = OpPingDUT | byte(KindConfirmation)
)

// Decoder states (internal)
const (
	stateAwaitStart = iota
	stateAwaitCommand
	stateAwaitLength
	stateAwaitData
)

// AddressMode selects how many destination address bytes accompany
// transmitted and received payloads.
type AddressMode uint8

// Addressing modes
const (
	AddressMode0 AddressMode = iota // broadcast only, no address bytes
	AddressMode1                    // destination address LSB
	AddressMode2                    // destination net ID + address LSB
	AddressMode3                    // destination net ID + address LSB + MSB
)

// Valid reports whether m is one of the four defined modes.
func (m AddressMode) Valid() bool {
	return m <= AddressMode3
}

// Setting identifies a user setting for GET/SET requests.
type Setting uint8

// User settings
const (
	SettingUARTBaudrate       Setting = 0x00
	SettingDefaultRFProfile   Setting = 0x01
	SettingDefaultRFTXPower   Setting = 0x02
	SettingDefaultRFChannel   Setting = 0x03
	SettingDefaultAddressMode Setting = 0x04
	SettingNumRetries         Setting = 0x06
	SettingDefaultDestNetID   Setting = 0x07
	SettingDefaultDestAddr    Setting = 0x08
	SettingSourceNetID        Setting = 0x0A
	SettingSourceAddr         Setting = 0x0B
	SettingOpMode             Setting = 0x0D
	SettingCfgFlags           Setting = 0x0F
	SettingRPFlags            Setting = 0x10
	SettingRPNumSlots         Setting = 0x11
	SettingFactorySettings    Setting = 0x20
	SettingFWVersion          Setting = 0x21
	SettingRuntimeSettings    Setting = 0x22
)

// MaxSettingSize is the largest value carried by a single user setting.
const MaxSettingSize = 32

// Flag bits
const (
	CfgFlagSnifferMode    = 0x0001
	RPFlagRepeaterEnabled = 0x0001
)

// Radio limits
const (
	ChannelMin = 100
	ChannelMax = 140

	TXPowerMin = -11 // dBm
	TXPowerMax = 15  // dBm

	SourceNetIDMax = 254
)

// PingDUTPacketCount is the number of packets the diagnostic ping expects
// to be echoed back.
const PingDUTPacketCount = 0x0A
