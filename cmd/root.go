// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"github.com/spf13/cobra"
)

var (
	// Serial connection flags
	portName   string
	baudRate   int
	resetLine  string
	wakeupLine string

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Module flags
	addrMode   uint8
	verbose    bool
	recordPath string
)

var rootCmd = &cobra.Command{
	Use:   "radiolink",
	Short: "AMBER Radio Module Tool",
	Long: `Radiolink - A CLI tool for driving and diagnosing AMBER radio modules
(Tarvos, Telesto, Thadeus, Thalassa) over their UART command interface.

Provides commands for reading and writing module settings, sending and
receiving RF payloads, and passive link diagnostics.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 115200]
  WebSocket: --url ws://host/path [--username user]

On serial links the module's RESET and WAKEUP lines are driven from the
adapter's DTR/RTS outputs (see --reset-line and --wakeup-line). WebSocket
bridges carry bytes only; pin operations are skipped.

For WebSocket authentication, the password is read from the RADIOLINK_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version: "1.0.0",
}

func init() {
	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 115200, "Baud rate (serial only)")
	rootCmd.PersistentFlags().StringVar(&resetLine, "reset-line", "dtr", "Modem line wired to RESET: dtr, rts or none")
	rootCmd.PersistentFlags().StringVar(&wakeupLine, "wakeup-line", "rts", "Modem line wired to WAKEUP: dtr, rts or none")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	// Module flags
	rootCmd.PersistentFlags().Uint8Var(&addrMode, "addr-mode", 0, "Addressing mode configured on the module (0-3)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log every frame and driver diagnostic to stderr")
	rootCmd.PersistentFlags().StringVar(&recordPath, "record", "", "Record link traffic to a capture file")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
