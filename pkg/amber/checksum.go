// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package amber

// CalculateChecksum computes the XOR checksum over data
func CalculateChecksum(data []byte) uint8 {
	var cs uint8
	for _, b := range data {
		cs ^= b
	}
	return cs
}

// Verify reports whether the last byte of raw is the XOR of every byte
// before it. Verify has no side effects.
func Verify(raw []byte) bool {
	n := len(raw)
	if n == 0 {
		return false
	}
	return CalculateChecksum(raw[:n-1]) == raw[n-1]
}
