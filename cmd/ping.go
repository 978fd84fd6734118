// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/Thermoquad/radiolink/pkg/amber"
	"github.com/Thermoquad/radiolink/pkg/driver"
	"github.com/spf13/cobra"
)

var (
	pingTimeout int
	pingCount   int
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Run the PINGDUT radio self-test",
	Long: `Send PINGDUT_REQ and wait for PINGDUT_CNF.

The module exchanges ten packets with a test partner running the matching
firmware and reports how many came back. A ping succeeds only if all ten
were echoed.

This is useful for verifying:
  - the module answers on the UART
  - the RF path to the test partner works
  - the link loses no packets

Exit codes:
  0 - All pings successful
  1 - One or more pings failed/timed out
  2 - Connection error`,
	RunE: runPing,
}

func init() {
	rootCmd.AddCommand(pingCmd)
	pingCmd.Flags().IntVar(&pingTimeout, "timeout", 10, "Timeout in seconds for each ping")
	pingCmd.Flags().IntVar(&pingCount, "count", 3, "Number of pings to send")
}

func runPing(cmd *cobra.Command, args []string) error {
	// echo count of the last PINGDUT_CNF, -1 if none arrived
	var mu sync.Mutex
	echoed := -1
	cfg := driver.Config{
		PingTimeout: time.Duration(pingTimeout) * time.Second,
		OnFrame: func(f *amber.Frame) {
			if f.Command() == amber.CmdPingDUTCnf && len(f.Data()) > amber.PingDUTResultIndex {
				mu.Lock()
				echoed = int(f.Data()[amber.PingDUTResultIndex])
				mu.Unlock()
			}
		},
	}

	m, err := OpenModule(cfg)
	if err != nil {
		exitOnConnError(err)
	}
	defer m.Close()

	fmt.Printf("Radiolink - PINGDUT Test\n")
	fmt.Printf("Connection: %s\n", m.ConnInfo)
	fmt.Printf("Timeout: %d seconds per ping\n", pingTimeout)
	fmt.Printf("Count: %d pings\n\n", pingCount)

	ctx := context.Background()
	successCount := 0
	failCount := 0

	for i := 1; i <= pingCount; i++ {
		fmt.Printf("Ping %d/%d: ", i, pingCount)

		startTime := time.Now()
		err := m.Ping(ctx)
		rtt := time.Since(startTime)

		mu.Lock()
		got := echoed
		echoed = -1
		mu.Unlock()

		switch {
		case err == nil:
			fmt.Printf("all %d packets echoed, time=%v\n", amber.PingDUTPacketCount, rtt.Round(time.Millisecond))
			successCount++
		case got >= 0:
			fmt.Printf("FAILED (%d/%d packets echoed)\n", got, amber.PingDUTPacketCount)
			failCount++
		default:
			fmt.Printf("TIMEOUT (no response in %ds)\n", pingTimeout)
			failCount++
		}

		if i < pingCount {
			time.Sleep(100 * time.Millisecond)
		}
	}

	fmt.Printf("\n--- Ping statistics ---\n")
	fmt.Printf("%d pings sent, %d passed, %.0f%% failed\n",
		pingCount, successCount, float64(failCount)/float64(pingCount)*100)

	if failCount > 0 {
		os.Exit(1)
	}
	return nil
}
