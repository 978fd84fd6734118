// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package amber

import "fmt"

// AnomalyType represents different types of frame anomalies
type AnomalyType int

const (
	AnomalyUnknownCommand AnomalyType = iota
	AnomalyLengthMismatch
	AnomalyFailedStatus
	AnomalyInvalidValue
	AnomalyChecksumError
	AnomalyDecodeError
)

// ValidationError represents a frame validation failure
type ValidationError struct {
	Type    AnomalyType
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// ValidateFrame checks a decoded frame's data section against its command
// tag and detects anomalies. mode is the addressing mode used to interpret
// DATAEX frames. Returns a slice of validation errors (empty if the frame
// is valid).
func ValidateFrame(f *Frame, mode AddressMode) []ValidationError {
	errors := []ValidationError{}

	if !KnownCommand(f.command) {
		return append(errors, ValidationError{
			Type:    AnomalyUnknownCommand,
			Message: fmt.Sprintf("Unknown command 0x%02X (kind=%d op=0x%02X)", f.command, f.Kind()>>6, f.Op()),
			Details: map[string]interface{}{"command": f.command},
		})
	}

	switch f.command {
	case CmdDataCnf, CmdResetCnf, CmdFactoryResetCnf, CmdShutdownCnf, CmdStandbyCnf,
		CmdSetDestNetIDCnf, CmdSetDestAddrCnf, CmdSetCnf, CmdRepeatInd:
		errors = append(errors, validateStatus(f)...)
	case CmdGetCnf:
		errors = append(errors, validateGetCnf(f)...)
	case CmdSetChannelReq, CmdSetChannelCnf:
		errors = append(errors, validateChannel(f)...)
	case CmdSetPAPowerReq, CmdSetPAPowerCnf:
		errors = append(errors, validateTXPower(f)...)
	case CmdDataExInd:
		errors = append(errors, validateIndication(f, mode)...)
	case CmdDataReq:
		errors = append(errors, validatePayloadSize(f, len(f.data))...)
	case CmdDataExReq:
		errors = append(errors, validatePayloadSize(f, len(f.data)-1-mode.PrefixLen())...)
	case CmdPingDUTCnf:
		errors = append(errors, validatePingCnf(f)...)
	}

	return errors
}

// validateStatus checks confirmations whose first byte is a status code
func validateStatus(f *Frame) []ValidationError {
	status, ok := f.Status()
	if !ok {
		return []ValidationError{{
			Type:    AnomalyLengthMismatch,
			Message: fmt.Sprintf("%s missing status byte", FormatCommand(f.command)),
			Details: map[string]interface{}{"length": len(f.data), "minimum": 1},
		}}
	}
	if status != 0 {
		return []ValidationError{{
			Type:    AnomalyFailedStatus,
			Message: fmt.Sprintf("%s reported failure status 0x%02X", FormatCommand(f.command), status),
			Details: map[string]interface{}{"status": status},
		}}
	}
	return nil
}

func validateGetCnf(f *Frame) []ValidationError {
	errors := validateStatus(f)
	if len(errors) > 0 {
		return errors
	}
	if len(f.data)-1 > MaxSettingSize {
		errors = append(errors, ValidationError{
			Type:    AnomalyLengthMismatch,
			Message: fmt.Sprintf("GET_CNF value too long (%d bytes, max %d)", len(f.data)-1, MaxSettingSize),
			Details: map[string]interface{}{"length": len(f.data) - 1, "max": MaxSettingSize},
		})
	}
	return errors
}

func validateChannel(f *Frame) []ValidationError {
	if len(f.data) != 1 {
		return []ValidationError{{
			Type:    AnomalyLengthMismatch,
			Message: fmt.Sprintf("%s length mismatch (expected 1 byte)", FormatCommand(f.command)),
			Details: map[string]interface{}{"length": len(f.data), "expected": 1},
		}}
	}
	channel := f.data[0]
	if channel < ChannelMin || channel > ChannelMax {
		return []ValidationError{{
			Type:    AnomalyInvalidValue,
			Message: fmt.Sprintf("Channel %d out of range (%d-%d)", channel, ChannelMin, ChannelMax),
			Details: map[string]interface{}{"channel": channel, "min": ChannelMin, "max": ChannelMax},
		}}
	}
	return nil
}

func validateTXPower(f *Frame) []ValidationError {
	if len(f.data) != 1 {
		return []ValidationError{{
			Type:    AnomalyLengthMismatch,
			Message: fmt.Sprintf("%s length mismatch (expected 1 byte)", FormatCommand(f.command)),
			Details: map[string]interface{}{"length": len(f.data), "expected": 1},
		}}
	}
	power := int8(f.data[0])
	if power < TXPowerMin || power > TXPowerMax {
		return []ValidationError{{
			Type:    AnomalyInvalidValue,
			Message: fmt.Sprintf("TX power %d dBm out of range (%d to %d dBm)", power, TXPowerMin, TXPowerMax),
			Details: map[string]interface{}{"power": power, "min": TXPowerMin, "max": TXPowerMax},
		}}
	}
	return nil
}

func validateIndication(f *Frame, mode AddressMode) []ValidationError {
	minimum := mode.PrefixLen() + 1
	if len(f.data) < minimum {
		return []ValidationError{{
			Type:    AnomalyLengthMismatch,
			Message: fmt.Sprintf("DATAEX_IND too short for address mode %d (%d bytes, minimum %d)", mode, len(f.data), minimum),
			Details: map[string]interface{}{"length": len(f.data), "minimum": minimum, "mode": mode},
		}}
	}
	return validatePayloadSize(f, len(f.data)-minimum)
}

func validatePayloadSize(f *Frame, size int) []ValidationError {
	if size < 0 || size > MaxPayloadSize {
		return []ValidationError{{
			Type:    AnomalyLengthMismatch,
			Message: fmt.Sprintf("%s payload size %d invalid (max %d)", FormatCommand(f.command), size, MaxPayloadSize),
			Details: map[string]interface{}{"size": size, "max": MaxPayloadSize},
		}}
	}
	return nil
}

func validatePingCnf(f *Frame) []ValidationError {
	if len(f.data) <= PingDUTResultIndex {
		return []ValidationError{{
			Type:    AnomalyLengthMismatch,
			Message: fmt.Sprintf("PINGDUT_CNF too short (%d bytes, minimum %d)", len(f.data), PingDUTResultIndex+1),
			Details: map[string]interface{}{"length": len(f.data), "minimum": PingDUTResultIndex + 1},
		}}
	}
	if echoed := f.data[PingDUTResultIndex]; echoed != PingDUTPacketCount {
		return []ValidationError{{
			Type:    AnomalyFailedStatus,
			Message: fmt.Sprintf("PINGDUT echoed %d of %d packets", echoed, PingDUTPacketCount),
			Details: map[string]interface{}{"echoed": echoed, "expected": PingDUTPacketCount},
		}}
	}
	return nil
}
