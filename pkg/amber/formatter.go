// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package amber

import (
	"fmt"
	"strings"
)

// FormatFrame formats a frame into a human-readable string. mode selects
// how DATAEX address prefixes are interpreted.
func FormatFrame(f *Frame, mode AddressMode) string {
	timestamp := f.timestamp.Format("15:04:05.000")
	cmd := FormatCommand(f.command)

	result := fmt.Sprintf("[%s] %s (0x%02X) len=%d\n", timestamp, cmd, f.command, f.length)
	result += FormatPayload(f.command, f.data, mode)

	return result
}

// FormatCommand returns the human-readable name for a command tag
func FormatCommand(command uint8) string {
	switch command {
	// Data
	case CmdDataReq:
		return "DATA_REQ"
	case CmdDataCnf:
		return "DATA_CNF"
	case CmdRepeatInd:
		return "REPEAT_IND"
	case CmdDataExReq:
		return "DATAEX_REQ"
	case CmdDataExInd:
		return "DATAEX_IND"

	// Module control
	case CmdResetReq:
		return "RESET_REQ"
	case CmdResetCnf:
		return "RESET_CNF"
	case CmdResetInd:
		return "RESET_IND"
	case CmdFactoryResetReq:
		return "FACTORY_RESET_REQ"
	case CmdFactoryResetCnf:
		return "FACTORY_RESET_CNF"
	case CmdShutdownReq:
		return "SHUTDOWN_REQ"
	case CmdShutdownCnf:
		return "SHUTDOWN_CNF"
	case CmdStandbyReq:
		return "STANDBY_REQ"
	case CmdStandbyCnf:
		return "STANDBY_CNF"
	case CmdStandbyInd:
		return "STANDBY_IND"

	// Volatile settings
	case CmdSetChannelReq:
		return "SET_CHANNEL_REQ"
	case CmdSetChannelCnf:
		return "SET_CHANNEL_CNF"
	case CmdSetDestNetIDReq:
		return "SET_DESTNETID_REQ"
	case CmdSetDestNetIDCnf:
		return "SET_DESTNETID_CNF"
	case CmdSetDestAddrReq:
		return "SET_DESTADDR_REQ"
	case CmdSetDestAddrCnf:
		return "SET_DESTADDR_CNF"
	case CmdSetPAPowerReq:
		return "SET_PAPOWER_REQ"
	case CmdSetPAPowerCnf:
		return "SET_PAPOWER_CNF"

	// User settings
	case CmdSetReq:
		return "SET_REQ"
	case CmdSetCnf:
		return "SET_CNF"
	case CmdGetReq:
		return "GET_REQ"
	case CmdGetCnf:
		return "GET_CNF"

	// Diagnostics
	case CmdRSSIReq:
		return "RSSI_REQ"
	case CmdRSSICnf:
		return "RSSI_CNF"
	case CmdPingDUTReq:
		return "PINGDUT_REQ"
	case CmdPingDUTCnf:
		return "PINGDUT_CNF"

	default:
		return "UNKNOWN"
	}
}

// KnownCommand reports whether command is a tag this package can name
func KnownCommand(command uint8) bool {
	return FormatCommand(command) != "UNKNOWN"
}

// FormatSetting returns the human-readable name for a user setting
func FormatSetting(s Setting) string {
	switch s {
	case SettingUARTBaudrate:
		return "UART_BAUDRATE"
	case SettingDefaultRFProfile:
		return "DEFAULT_RF_PROFILE"
	case SettingDefaultRFTXPower:
		return "DEFAULT_RF_TX_POWER"
	case SettingDefaultRFChannel:
		return "DEFAULT_RF_CHANNEL"
	case SettingDefaultAddressMode:
		return "DEFAULT_ADDRESS_MODE"
	case SettingNumRetries:
		return "NUM_RETRIES"
	case SettingDefaultDestNetID:
		return "DEFAULT_DEST_NETID"
	case SettingDefaultDestAddr:
		return "DEFAULT_DEST_ADDR"
	case SettingSourceNetID:
		return "SOURCE_NETID"
	case SettingSourceAddr:
		return "SOURCE_ADDR"
	case SettingOpMode:
		return "OP_MODE"
	case SettingCfgFlags:
		return "CFG_FLAGS"
	case SettingRPFlags:
		return "RP_FLAGS"
	case SettingRPNumSlots:
		return "RP_NUM_SLOTS"
	case SettingFactorySettings:
		return "FACTORY_SETTINGS"
	case SettingFWVersion:
		return "FW_VERSION"
	case SettingRuntimeSettings:
		return "RUNTIME_SETTINGS"
	default:
		return "UNKNOWN"
	}
}

// ParseSetting looks up a user setting by its formatted name. Matching is
// case-insensitive and accepts '-' in place of '_'.
func ParseSetting(name string) (Setting, bool) {
	want := strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
	for _, s := range AllSettings() {
		if FormatSetting(s) == want {
			return s, true
		}
	}
	return 0, false
}

// AllSettings returns every known user setting in ID order
func AllSettings() []Setting {
	return []Setting{
		SettingUARTBaudrate,
		SettingDefaultRFProfile,
		SettingDefaultRFTXPower,
		SettingDefaultRFChannel,
		SettingDefaultAddressMode,
		SettingNumRetries,
		SettingDefaultDestNetID,
		SettingDefaultDestAddr,
		SettingSourceNetID,
		SettingSourceAddr,
		SettingOpMode,
		SettingCfgFlags,
		SettingRPFlags,
		SettingRPNumSlots,
		SettingFactorySettings,
		SettingFWVersion,
		SettingRuntimeSettings,
	}
}

// FormatPayload formats the data section based on the command tag
func FormatPayload(command uint8, data []byte, mode AddressMode) string {
	switch command {
	case CmdResetReq, CmdFactoryResetReq, CmdShutdownReq, CmdStandbyReq:
		return "  (no payload)\n"

	case CmdGetReq:
		if len(data) >= 1 {
			return fmt.Sprintf("  Setting: %s (0x%02X)\n", FormatSetting(Setting(data[0])), data[0])
		}

	case CmdGetCnf:
		if len(data) >= 1 {
			return fmt.Sprintf("  Status: %s, Value: %s\n", formatStatus(data[0]), FormatHex(data[1:]))
		}

	case CmdSetReq:
		if len(data) >= 1 {
			return fmt.Sprintf("  Setting: %s (0x%02X), Value: %s\n",
				FormatSetting(Setting(data[0])), data[0], FormatHex(data[1:]))
		}

	case CmdSetChannelReq:
		if len(data) >= 1 {
			return fmt.Sprintf("  Channel: %d\n", data[0])
		}

	case CmdSetChannelCnf:
		if len(data) >= 1 {
			return fmt.Sprintf("  Channel: %d\n", data[0])
		}

	case CmdSetPAPowerReq, CmdSetPAPowerCnf:
		if len(data) >= 1 {
			return fmt.Sprintf("  TX Power: %d dBm\n", int8(data[0]))
		}

	case CmdSetDestNetIDReq:
		if len(data) >= 1 {
			return fmt.Sprintf("  Dest Net ID: 0x%02X\n", data[0])
		}

	case CmdSetDestAddrReq:
		switch len(data) {
		case 1:
			return fmt.Sprintf("  Dest Addr: 0x%02X\n", data[0])
		case 2:
			return fmt.Sprintf("  Dest Addr: 0x%02X%02X\n", data[1], data[0])
		}

	case CmdDataReq:
		return fmt.Sprintf("  Payload (%d bytes): %s\n", len(data), formatPayloadBytes(data))

	case CmdDataExReq:
		if len(data) >= 1+mode.PrefixLen() {
			dest, payload, err := mode.SplitPrefix(data[1:])
			if err == nil {
				return fmt.Sprintf("  Channel: %d, To: %s\n  Payload (%d bytes): %s\n",
					data[0], FormatAddress(mode, dest), len(payload), formatPayloadBytes(payload))
			}
		}

	case CmdDataExInd:
		ind, err := ParseIndicationData(mode, data)
		if err == nil {
			return fmt.Sprintf("  From: %s, RSSI: %d dBm\n  Payload (%d bytes): %s\n",
				FormatAddress(mode, ind.Address), ind.RSSI, len(ind.Payload), formatPayloadBytes(ind.Payload))
		}

	case CmdPingDUTCnf:
		if len(data) > PingDUTResultIndex {
			return fmt.Sprintf("  Echoed: %d/%d packets\n", data[PingDUTResultIndex], PingDUTPacketCount)
		}

	case CmdDataCnf, CmdRepeatInd, CmdResetCnf, CmdResetInd, CmdFactoryResetCnf,
		CmdShutdownCnf, CmdStandbyCnf, CmdStandbyInd, CmdSetDestNetIDCnf,
		CmdSetDestAddrCnf, CmdSetCnf:
		if len(data) >= 1 {
			return fmt.Sprintf("  Status: %s\n", formatStatus(data[0]))
		}
		return "  (no payload)\n"
	}

	if len(data) == 0 {
		return "  (no payload)\n"
	}
	return fmt.Sprintf("  Data: %s\n", FormatHex(data))
}

// FormatAddress renders the address components carried by mode
func FormatAddress(mode AddressMode, a Address) string {
	switch mode {
	case AddressMode1:
		return fmt.Sprintf("addr=0x%02X", a.AddrLSB)
	case AddressMode2:
		return fmt.Sprintf("net=0x%02X addr=0x%02X", a.NetID, a.AddrLSB)
	case AddressMode3:
		return fmt.Sprintf("net=0x%02X addr=0x%02X%02X", a.NetID, a.AddrMSB, a.AddrLSB)
	}
	return "broadcast"
}

// FormatHex renders bytes as space-separated hex
func FormatHex(data []byte) string {
	if len(data) == 0 {
		return "-"
	}
	parts := make([]string, len(data))
	for i, b := range data {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, " ")
}

// formatPayloadBytes renders an RF payload as hex plus its printable text
func formatPayloadBytes(data []byte) string {
	if len(data) == 0 {
		return "-"
	}
	var text strings.Builder
	for _, b := range data {
		if b >= 0x20 && b < 0x7F {
			text.WriteByte(b)
		} else {
			text.WriteByte('.')
		}
	}
	return fmt.Sprintf("%s  %q", FormatHex(data), text.String())
}

func formatStatus(status uint8) string {
	if status == 0 {
		return "OK (0x00)"
	}
	return fmt.Sprintf("FAILED (0x%02X)", status)
}
