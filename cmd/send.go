// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/Thermoquad/radiolink/pkg/amber"
	"github.com/Thermoquad/radiolink/pkg/driver"
	"github.com/spf13/cobra"
)

var (
	sendHex      bool
	sendExtended bool
	sendChannel  uint8
	sendNetID    uint8
	sendAddr     uint16
	sendCount    int
	sendInterval int
)

var sendCmd = &cobra.Command{
	Use:   "send <payload>",
	Short: "Transmit an RF payload",
	Long: `Transmit a payload over the air and wait for DATA_CNF.

By default the payload is sent with DATA_REQ using the module's current
channel and destination. With --extended it is sent with DATAEX_REQ on
--channel to --net/--addr; only the address bytes carried by --addr-mode are
used.

Examples:
  radiolink send "hello" --port /dev/ttyUSB0
  radiolink send 0102ff --hex --extended --channel 120 --addr-mode 2 --net 5 --addr 7`,
	Args: cobra.ExactArgs(1),
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().BoolVar(&sendHex, "hex", false, "Payload is hex encoded")
	sendCmd.Flags().BoolVar(&sendExtended, "extended", false, "Use DATAEX_REQ with explicit channel and destination")
	sendCmd.Flags().Uint8Var(&sendChannel, "channel", amber.ChannelMin, "RF channel (--extended)")
	sendCmd.Flags().Uint8Var(&sendNetID, "net", amber.BroadcastAddress, "Destination network ID (--extended)")
	sendCmd.Flags().Uint16Var(&sendAddr, "addr", 0xFFFF, "Destination address (--extended)")
	sendCmd.Flags().IntVar(&sendCount, "count", 1, "Number of transmissions")
	sendCmd.Flags().IntVar(&sendInterval, "interval", 1000, "Delay between transmissions in milliseconds")
}

func runSend(cmd *cobra.Command, args []string) error {
	payload := []byte(args[0])
	if sendHex {
		var err error
		if payload, err = parseHexValue(args[0]); err != nil {
			return err
		}
	}
	if len(payload) > amber.MaxPayloadSize {
		return fmt.Errorf("payload is %d bytes (max %d)", len(payload), amber.MaxPayloadSize)
	}

	ctx := context.Background()
	m, _, err := InitModule(ctx, driver.Config{})
	if err != nil {
		return err
	}
	defer m.Close()

	dest := amber.Address{NetID: sendNetID, AddrLSB: uint8(sendAddr), AddrMSB: uint8(sendAddr >> 8)}

	failed := 0
	for i := 1; i <= sendCount; i++ {
		start := time.Now()
		if sendExtended {
			err = m.TransmitExtended(ctx, sendChannel, dest, payload)
		} else {
			err = m.Transmit(ctx, payload)
		}

		target := "current destination"
		if sendExtended {
			target = fmt.Sprintf("ch %d, %s", sendChannel, amber.FormatAddress(m.AddressMode(), m.AddressMode().Mask(dest)))
		}
		if err != nil {
			fmt.Printf("Send %d/%d (%d bytes to %s): FAILED: %v\n", i, sendCount, len(payload), target, err)
			failed++
		} else {
			fmt.Printf("Send %d/%d (%d bytes to %s): DATA_CNF in %v\n",
				i, sendCount, len(payload), target, time.Since(start).Round(time.Millisecond))
		}

		if i < sendCount {
			time.Sleep(time.Duration(sendInterval) * time.Millisecond)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d transmissions failed", failed, sendCount)
	}
	return nil
}
