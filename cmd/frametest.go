// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/radiolink/pkg/amber"
	"github.com/spf13/cobra"
)

var (
	frameTestTimeout int
	frameTestReset   bool
)

var frameTestCmd = &cobra.Command{
	Use:   "frame_test",
	Short: "Test connection by waiting for a valid AMBER frame",
	Long: `Wait for a valid AMBER frame on the connection until timeout.

This command connects to a serial port or WebSocket and waits for any valid
frame. It ignores stray bytes and waits for a complete frame that passes
the XOR checksum.

A module only talks when spoken to or when it receives RF traffic. With
--reset a RESET_REQ is sent first so the module answers with RESET_CNF.

Exit codes:
  0 - Frame received before timeout
  1 - Timeout reached without receiving a valid frame
  2 - Connection error`,
	RunE: runFrameTest,
}

func init() {
	rootCmd.AddCommand(frameTestCmd)
	frameTestCmd.Flags().IntVar(&frameTestTimeout, "timeout", 10, "Timeout in seconds to wait for a frame")
	frameTestCmd.Flags().BoolVar(&frameTestReset, "reset", false, "Send RESET_REQ before waiting")
}

func runFrameTest(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		exitOnConnError(err)
	}
	defer conn.Close()

	fmt.Printf("Radiolink - Frame Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n", frameTestTimeout)

	if frameTestReset {
		if _, err := conn.Write(amber.MustEncode(amber.CmdResetReq, nil)); err != nil {
			exitOnConnError(err)
		}
		fmt.Printf("Sent RESET_REQ\n")
	}
	fmt.Printf("Waiting for valid AMBER frame...\n\n")

	decoder := amber.NewDecoder()
	buf := make([]byte, 128)

	frameChan := make(chan *amber.Frame, 1)
	errChan := make(chan error, 1)

	// Reader goroutine
	go func() {
		stray := 0
		for {
			n, err := conn.Read(buf)
			if err != nil {
				errChan <- err
				return
			}

			for i := 0; i < n; i++ {
				if !decoder.Pending() && buf[i] != amber.StartByte {
					stray++
				}
				frame, decodeErr := decoder.DecodeByte(buf[i])
				if decodeErr != nil {
					continue
				}
				if frame != nil {
					if stray > 0 {
						fmt.Printf("(skipped %d stray bytes before sync)\n", stray)
					}
					frameChan <- frame
					return
				}
			}
		}
	}()

	select {
	case frame := <-frameChan:
		fmt.Printf("SUCCESS: Received valid frame\n")
		fmt.Printf("  Command: %s (0x%02X)\n", amber.FormatCommand(frame.Command()), frame.Command())
		fmt.Printf("  Length: %d bytes\n", frame.Length())
		fmt.Printf("  Checksum: 0x%02X\n", frame.Checksum())
		os.Exit(0)

	case err := <-errChan:
		fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
		os.Exit(2)

	case <-time.After(time.Duration(frameTestTimeout) * time.Second):
		fmt.Fprintf(os.Stderr, "TIMEOUT: No valid frame received within %d seconds\n", frameTestTimeout)
		os.Exit(1)
	}

	return nil
}
