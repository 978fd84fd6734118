// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/radiolink/pkg/driver"
	"github.com/spf13/cobra"
)

var infoTimeout int

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Identify the module and show its default radio settings",
	Long: `Bring the module to a known state and read back its identity.

On serial links the module is pin-reset first; over WebSocket it is queried
as-is. Prints the firmware version, serial number and the radio defaults
applied after every reset.

Examples:
  radiolink info --port /dev/ttyUSB0
  radiolink info --url ws://bridge.local/amber --username admin

Exit codes:
  0 - Module identified
  1 - Module did not answer
  2 - Connection error`,
	RunE: runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
	infoCmd.Flags().IntVar(&infoTimeout, "timeout", 10, "Overall timeout in seconds")
}

func runInfo(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(infoTimeout)*time.Second)
	defer cancel()

	m, err := OpenModule(driver.Config{})
	if err != nil {
		exitOnConnError(err)
	}
	defer m.Close()

	fmt.Printf("Radiolink - Module Info\n")
	fmt.Printf("Connection: %s\n\n", m.ConnInfo)

	var fw [3]byte
	if m.HasPins {
		fw, err = m.Init(ctx)
	} else {
		fw, err = m.FirmwareVersion(ctx)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Module not responding: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Firmware:        %d.%d.%d\n", fw[0], fw[1], fw[2])

	// Everything past the firmware version is best effort; older firmware
	// lacks some settings.
	if sn, err := m.SerialNumber(ctx); err == nil {
		fmt.Printf("Serial Number:   %02X%02X%02X%02X\n", sn[0], sn[1], sn[2], sn[3])
	}
	if ch, err := m.DefaultRFChannel(ctx); err == nil {
		fmt.Printf("RF Channel:      %d\n", ch)
	}
	if p, err := m.DefaultRFProfile(ctx); err == nil {
		fmt.Printf("RF Profile:      %d\n", p)
	}
	if pw, err := m.DefaultTXPower(ctx); err == nil {
		fmt.Printf("TX Power:        %d dBm\n", pw)
	}
	if net, err := m.SourceNetID(ctx); err == nil {
		fmt.Printf("Source Net ID:   0x%02X\n", net)
	}
	if lsb, msb, err := m.SourceAddr(ctx); err == nil {
		fmt.Printf("Source Addr:     0x%02X%02X\n", msb, lsb)
	}
	if net, err := m.DefaultDestNetID(ctx); err == nil {
		fmt.Printf("Dest Net ID:     0x%02X\n", net)
	}
	if lsb, msb, err := m.DefaultDestAddr(ctx); err == nil {
		fmt.Printf("Dest Addr:       0x%02X%02X\n", msb, lsb)
	}

	return nil
}
