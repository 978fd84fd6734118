// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"log"

	"github.com/Thermoquad/radiolink/pkg/amber"
	"github.com/spf13/cobra"
)

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display raw frame log in human-readable format",
	Long: `Continuously decode and display AMBER command frames as they arrive.

Shows each frame with timestamp, command name, and decoded payload. The link
is only read; nothing is sent to the module. Use --addr-mode to match the
module's addressing mode so DATAEX indications are split correctly.

Supports both serial and WebSocket connections.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
}

func runRawLog(cmd *cobra.Command, args []string) error {
	mode, err := addressMode()
	if err != nil {
		return err
	}

	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("Radiolink - Raw Frame Log\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	decoder := amber.NewDecoder()
	buf := make([]byte, 128)

	for {
		n, err := conn.Read(buf)
		for i := 0; i < n; i++ {
			frame, err := decoder.DecodeByte(buf[i])
			if err != nil {
				fmt.Printf("[ERROR] %v\n", err)
				continue
			}
			if frame != nil {
				fmt.Print(amber.FormatFrame(frame, mode))
			}
		}

		if err != nil {
			// A read error on either link type means the connection is
			// gone - exit gracefully
			if err == ErrConnectionClosed {
				log.Printf("Connection closed")
				return nil
			}
			return fmt.Errorf("read error: %v", err)
		}
	}
}
