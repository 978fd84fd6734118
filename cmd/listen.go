// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"time"

	"github.com/Thermoquad/radiolink/pkg/amber"
	"github.com/Thermoquad/radiolink/pkg/driver"
	"github.com/spf13/cobra"
)

var (
	listenChannel int
	listenSniffer bool
	listenHex     bool
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Print RF payloads received by the module",
	Long: `Initialize the module and print every DATAEX indication it reports, with
the sender's address (per --addr-mode) and RSSI.

--channel switches the RF channel for this session only. --sniffer enables
sniffer mode in flash first, so the module reports all traffic it hears.`,
	RunE: runListen,
}

func init() {
	rootCmd.AddCommand(listenCmd)
	listenCmd.Flags().IntVar(&listenChannel, "channel", 0, "Volatile RF channel (100-140, 0 keeps the default)")
	listenCmd.Flags().BoolVar(&listenSniffer, "sniffer", false, "Enable sniffer mode before listening")
	listenCmd.Flags().BoolVar(&listenHex, "hex", false, "Print payloads as hex only")
}

func runListen(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var received atomic.Int64
	mode, err := addressMode()
	if err != nil {
		return err
	}
	cfg := driver.Config{
		Callback: func(ind amber.Indication) {
			received.Add(1)
			printIndication(mode, ind)
		},
	}

	m, fw, err := InitModule(ctx, cfg)
	if err != nil {
		return err
	}
	defer m.Close()

	fmt.Printf("Radiolink - Listen\n")
	fmt.Printf("Connection: %s\n", m.ConnInfo)
	fmt.Printf("Firmware: %d.%d.%d, address mode %d\n", fw[0], fw[1], fw[2], m.AddressMode())

	if listenSniffer {
		if err := m.EnableSnifferMode(ctx); err != nil {
			return fmt.Errorf("enable sniffer mode: %w", err)
		}
		if m.HasPins {
			if err := m.PinReset(ctx); err != nil {
				return fmt.Errorf("pin reset: %w", err)
			}
		} else if err := m.Reset(ctx); err != nil {
			return fmt.Errorf("reset: %w", err)
		}
		fmt.Printf("Sniffer mode enabled\n")
	}

	if listenChannel != 0 {
		if listenChannel < amber.ChannelMin || listenChannel > amber.ChannelMax {
			return fmt.Errorf("channel %d out of range (%d-%d)", listenChannel, amber.ChannelMin, amber.ChannelMax)
		}
		if err := m.SetVolatileChannel(ctx, uint8(listenChannel)); err != nil {
			return fmt.Errorf("set channel: %w", err)
		}
		fmt.Printf("Channel: %d\n", listenChannel)
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			fmt.Printf("\n%d payload(s) received\n", received.Load())
			return nil
		case <-ticker.C:
			if err := m.Err(); err != nil {
				return fmt.Errorf("link lost: %v", err)
			}
		}
	}
}

func printIndication(mode amber.AddressMode, ind amber.Indication) {
	payload := amber.FormatHex(ind.Payload)
	if !listenHex {
		payload = fmt.Sprintf("%s  %q", payload, ind.Payload)
	}
	fmt.Printf("[%s] %s, %d bytes, RSSI %d dBm: %s\n",
		time.Now().Format("15:04:05.000"), amber.FormatAddress(mode, ind.Address), len(ind.Payload), ind.RSSI, payload)
}
