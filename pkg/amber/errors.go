// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package amber

import "errors"

var (
	ErrPayloadTooLarge     = errors.New("payload exceeds maximum size")
	ErrChecksumMismatch    = errors.New("checksum mismatch")
	ErrInvalidLength       = errors.New("invalid frame length")
	ErrInvalidAddressMode  = errors.New("invalid address mode")
	ErrShortIndication     = errors.New("indication too short for address mode")
	ErrUnexpectedStartByte = errors.New("frame does not begin with start byte")
)
