// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"time"

	"github.com/Thermoquad/radiolink/pkg/amber"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var (
	showAll       bool
	statsInterval int
	useTUI        bool
)

var errorDetectionCmd = &cobra.Command{
	Use:   "error_detection",
	Short: "Detect and analyze malformed frames and errors",
	Long: `Track frame errors, malformed data, and anomalous values with statistics.

This command passively validates each frame on the link and detects:
  - Checksum errors (frames the module or host would silently drop)
  - Unknown command tags and length mismatches
  - Confirmations carrying a failure status
  - Out-of-range channel and TX power values
  - Statistics and trends (frame rate, error rate, RF payload volume)

By default, only errors are displayed. Use --show-all to display valid frames too.

Frames are validated in real-time, with errors highlighted immediately and
periodic statistics summaries displayed at configurable intervals.`,
	RunE: runErrorDetection,
}

func init() {
	rootCmd.AddCommand(errorDetectionCmd)
	errorDetectionCmd.Flags().BoolVar(&showAll, "show-all", false, "Show all frames (not just errors)")
	errorDetectionCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics update interval (seconds)")
	errorDetectionCmd.Flags().BoolVar(&useTUI, "tui", true, "Use terminal UI (false for text mode)")
}

func runErrorDetection(cmd *cobra.Command, args []string) error {
	mode, err := addressMode()
	if err != nil {
		return err
	}

	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	if useTUI {
		return runTUIMode(conn, connInfo, mode)
	}
	return runTextMode(conn, connInfo, mode)
}

// linkEvent is one decoder outcome: a frame with its validation result,
// or a dropped frame
type linkEvent struct {
	frame            *amber.Frame
	decodeErr        error
	validationErrors []amber.ValidationError
}

// readLink decodes conn until it fails, reporting every frame and
// decoder error on events. Decoder errors before the first valid frame
// are ignored since the link may have been opened mid-frame.
func readLink(conn Connection, mode amber.AddressMode, events chan<- linkEvent, synced func(strayBytes int)) error {
	decoder := amber.NewDecoder()
	synchronized := false
	stray := 0
	buf := make([]byte, 128)

	for {
		n, err := conn.Read(buf)
		for _, b := range buf[:n] {
			if !synchronized && !decoder.Pending() && b != amber.StartByte {
				stray++
			}
			frame, decodeErr := decoder.DecodeByte(b)
			switch {
			case decodeErr != nil:
				if synchronized {
					events <- linkEvent{decodeErr: decodeErr}
				}
			case frame != nil:
				if !synchronized {
					synchronized = true
					synced(stray)
				}
				events <- linkEvent{frame: frame, validationErrors: amber.ValidateFrame(frame, mode)}
			}
		}
		if err != nil {
			return err
		}
	}
}

// printDecodeError prints a decode error in highlighted format
func printDecodeError(err error) {
	timestamp := time.Now().Format("15:04:05.000")
	fmt.Printf("[%s] \033[1;31mDECODE ERROR:\033[0m %v\n", timestamp, err)
	fmt.Printf("  >>> FRAME DROPPED <<<\n\n")
}

// printIndicationFrame prints RF data with sender and signal strength
func printIndicationFrame(frame *amber.Frame, mode amber.AddressMode) {
	timestamp := frame.Timestamp().Format("15:04:05.000")
	ind, err := amber.ParseIndication(mode, frame)
	if err != nil {
		return
	}
	fmt.Printf("[%s] \033[1;32mDATAEX_IND:\033[0m %d bytes from %s, RSSI %d dBm\n\n",
		timestamp, len(ind.Payload), amber.FormatAddress(mode, ind.Address), ind.RSSI)
}

// printValidationErrors prints validation errors for a frame
func printValidationErrors(frame *amber.Frame, errors []amber.ValidationError) {
	timestamp := frame.Timestamp().Format("15:04:05.000")
	name := amber.FormatCommand(frame.Command())

	fmt.Printf("[%s] \033[1;33mVALIDATION ERROR:\033[0m %s (0x%02X)\n", timestamp, name, frame.Command())
	fmt.Printf("  Checksum: \033[1;32mOK\033[0m\n")

	for i, err := range errors {
		switch err.Type {
		case amber.AnomalyUnknownCommand:
			fmt.Printf("  Issue %d: \033[1;31m%s\033[0m\n", i+1, err.Message)

		case amber.AnomalyLengthMismatch:
			fmt.Printf("  Issue %d: \033[1;31m%s\033[0m\n", i+1, err.Message)
			fmt.Printf("    Data: %s\n", amber.FormatHex(frame.Data()))

		case amber.AnomalyFailedStatus:
			fmt.Printf("  Issue %d: \033[1;33m%s\033[0m\n", i+1, err.Message)

		case amber.AnomalyInvalidValue:
			fmt.Printf("  Issue %d: \033[1;33m%s\033[0m\n", i+1, err.Message)
			if channel, ok := err.Details["channel"].(uint8); ok {
				fmt.Printf("    Channel=%d (valid: %d-%d)\n", channel, amber.ChannelMin, amber.ChannelMax)
			}
			if power, ok := err.Details["power"].(int8); ok {
				fmt.Printf("    TX power=%d dBm (valid: %d to %d)\n", power, amber.TXPowerMin, amber.TXPowerMax)
			}

		default:
			fmt.Printf("  Issue %d: %s\n", i+1, err.Message)
		}
	}

	fmt.Printf("  >>> FRAME REJECTED <<<\n\n")
}

// runTUIMode runs error detection in TUI mode
func runTUIMode(conn Connection, connInfo string, mode amber.AddressMode) error {
	m := initialModel(connInfo, mode, statsInterval, showAll)
	p := tea.NewProgram(m)

	events := make(chan linkEvent, 64)
	go func() {
		err := readLink(conn, mode, events, func(stray int) {
			p.Send(syncMsg{invalidBytes: stray})
		})
		close(events)
		p.Send(linkClosedMsg{err: err})
	}()
	go func() {
		for ev := range events {
			p.Send(linkDataMsg(ev))
		}
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %v", err)
	}

	return nil
}

// runTextMode runs error detection in text mode
func runTextMode(conn Connection, connInfo string, mode amber.AddressMode) error {
	fmt.Printf("Radiolink - Error Detection Mode\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Statistics interval: %d seconds\n", statsInterval)
	if showAll {
		fmt.Printf("Mode: All frames\n")
	} else {
		fmt.Printf("Mode: Errors only\n")
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	stats := amber.NewStatistics()

	statsTicker := time.NewTicker(time.Duration(statsInterval) * time.Second)
	defer statsTicker.Stop()

	events := make(chan linkEvent, 64)
	readErr := make(chan error, 1)
	go func() {
		readErr <- readLink(conn, mode, events, func(stray int) {
			if stray > 0 {
				fmt.Printf("[SYNC] Synchronized after skipping %d invalid bytes\n\n", stray)
			} else {
				fmt.Printf("[SYNC] Synchronized\n\n")
			}
		})
	}()

	for {
		select {
		case ev := <-events:
			if ev.decodeErr != nil {
				stats.Update(nil, ev.decodeErr, nil)
				printDecodeError(ev.decodeErr)
				continue
			}

			stats.Update(ev.frame, nil, ev.validationErrors)
			isIndication := ev.frame.Command() == amber.CmdDataExInd
			if isIndication {
				if ind, err := amber.ParseIndication(mode, ev.frame); err == nil {
					stats.AddRFBytes(len(ind.Payload))
				}
			}

			switch {
			case len(ev.validationErrors) > 0:
				printValidationErrors(ev.frame, ev.validationErrors)
			case isIndication:
				// Always print RF traffic
				printIndicationFrame(ev.frame, mode)
			case showAll:
				fmt.Print(amber.FormatFrame(ev.frame, mode))
			}

		case err := <-readErr:
			fmt.Println()
			fmt.Print(stats.String())
			if err == ErrConnectionClosed {
				return nil
			}
			return fmt.Errorf("read error: %v", err)

		case <-statsTicker.C:
			fmt.Println()
			fmt.Print(stats.String())
			fmt.Println()
		}
	}
}
