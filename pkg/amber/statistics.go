// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package amber

import (
	"errors"
	"fmt"
	"time"
)

// Statistics tracks frame statistics and error rates
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalFrames      uint64
	ValidFrames      uint64
	ChecksumErrors   uint64
	DecodeErrors     uint64
	MalformedFrames  uint64
	UnknownCommands  uint64
	LengthMismatches uint64
	FailedStatuses   uint64
	InvalidValues    uint64

	// Traffic by kind
	Requests      uint64
	Confirmations uint64
	Indications   uint64
	RFBytes       uint64 // payload bytes carried by DATAEX_IND

	// Rates (calculated)
	FrameRate float64 // frames/sec
	ErrorRate float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// Update updates statistics based on a frame and its errors. frame may be
// nil when decodeErr is set.
func (s *Statistics) Update(frame *Frame, decodeErr error, validationErrors []ValidationError) {
	s.TotalFrames++
	s.LastUpdateTime = time.Now()

	if decodeErr != nil {
		if errors.Is(decodeErr, ErrChecksumMismatch) {
			s.ChecksumErrors++
		} else {
			s.DecodeErrors++
		}
		return
	}

	switch frame.Kind() {
	case KindRequest:
		s.Requests++
	case KindConfirmation:
		s.Confirmations++
	case KindIndication:
		s.Indications++
	}

	if len(validationErrors) == 0 {
		s.ValidFrames++
		return
	}

	for _, err := range validationErrors {
		switch err.Type {
		case AnomalyUnknownCommand:
			s.UnknownCommands++
			s.MalformedFrames++
		case AnomalyLengthMismatch:
			s.LengthMismatches++
			s.MalformedFrames++
		case AnomalyFailedStatus:
			s.FailedStatuses++
		case AnomalyInvalidValue:
			s.InvalidValues++
		case AnomalyChecksumError:
			s.ChecksumErrors++
		case AnomalyDecodeError:
			s.DecodeErrors++
		}
	}
}

// AddRFBytes records payload bytes received over the air
func (s *Statistics) AddRFBytes(n int) {
	s.RFBytes += uint64(n)
}

// ErrorCount returns the number of frames counted as errors
func (s *Statistics) ErrorCount() uint64 {
	return s.ChecksumErrors + s.DecodeErrors + s.MalformedFrames + s.FailedStatuses + s.InvalidValues
}

// CalculateRates calculates frame and error rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.FrameRate = float64(s.TotalFrames) / elapsed
		s.ErrorRate = float64(s.ErrorCount()) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	percent := func(n uint64) float64 {
		if s.TotalFrames == 0 {
			return 0
		}
		return float64(n) * 100.0 / float64(s.TotalFrames)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Total Frames:    %8d\n", s.TotalFrames)
	result += fmt.Sprintf("Valid Frames:    %8d (%.1f%%)\n", s.ValidFrames, percent(s.ValidFrames))
	result += fmt.Sprintf("  REQ/CNF/IND:   %d/%d/%d\n", s.Requests, s.Confirmations, s.Indications)

	if s.ChecksumErrors > 0 {
		result += fmt.Sprintf("Checksum Errors: %8d (%.1f%%)\n", s.ChecksumErrors, percent(s.ChecksumErrors))
	}
	if s.DecodeErrors > 0 {
		result += fmt.Sprintf("Decode Errors:   %8d (%.1f%%)\n", s.DecodeErrors, percent(s.DecodeErrors))
	}
	if s.MalformedFrames > 0 {
		result += fmt.Sprintf("Malformed:       %8d (%.1f%%)\n", s.MalformedFrames, percent(s.MalformedFrames))
		if s.UnknownCommands > 0 {
			result += fmt.Sprintf("  Unknown Cmd:      %5d\n", s.UnknownCommands)
		}
		if s.LengthMismatches > 0 {
			result += fmt.Sprintf("  Length Mismatch:  %5d\n", s.LengthMismatches)
		}
	}
	if s.FailedStatuses > 0 {
		result += fmt.Sprintf("Failed Status:   %8d (%.1f%%)\n", s.FailedStatuses, percent(s.FailedStatuses))
	}
	if s.InvalidValues > 0 {
		result += fmt.Sprintf("Invalid Values:  %8d (%.1f%%)\n", s.InvalidValues, percent(s.InvalidValues))
	}
	if s.RFBytes > 0 {
		result += fmt.Sprintf("RF Payload:      %8d bytes\n", s.RFBytes)
	}

	result += fmt.Sprintf("Frame Rate:      %8.1f frames/sec\n", s.FrameRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	*s = *NewStatistics()
}
