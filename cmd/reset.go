// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/Thermoquad/radiolink/pkg/driver"
	"github.com/spf13/cobra"
)

var (
	resetFactory bool
	resetPin     bool
	resetWakeup  bool
	resetStandby bool
	resetOff     bool
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset, wake or power down the module",
	Long: `Reset the module with RESET_REQ (default), the reset line (--pin), or
restore its factory settings (--factory).

--standby and --shutdown put the module to sleep; --wakeup pulses the wakeup
line to bring it back. Pin operations need a serial link with control lines.`,
	RunE: runReset,
}

func init() {
	rootCmd.AddCommand(resetCmd)
	resetCmd.Flags().BoolVar(&resetFactory, "factory", false, "Restore factory settings (FACTORY_RESET_REQ)")
	resetCmd.Flags().BoolVar(&resetPin, "pin", false, "Pulse the reset line instead of sending RESET_REQ")
	resetCmd.Flags().BoolVar(&resetWakeup, "wakeup", false, "Pulse the wakeup line")
	resetCmd.Flags().BoolVar(&resetStandby, "standby", false, "Enter standby (STANDBY_REQ)")
	resetCmd.Flags().BoolVar(&resetOff, "shutdown", false, "Enter shutdown (SHUTDOWN_REQ)")
	resetCmd.MarkFlagsMutuallyExclusive("factory", "pin", "wakeup", "standby", "shutdown")
}

func runReset(cmd *cobra.Command, args []string) error {
	m, err := OpenModule(driver.Config{})
	if err != nil {
		return err
	}
	defer m.Close()

	if err := checkPinLines(m, resetPin, resetWakeup); err != nil {
		return err
	}

	ctx := context.Background()
	start := time.Now()

	var what string
	switch {
	case resetFactory:
		what, err = "Factory reset", m.FactoryReset(ctx)
	case resetPin:
		what, err = "Pin reset", m.PinReset(ctx)
	case resetWakeup:
		what, err = "Wakeup", m.PinWakeup(ctx)
	case resetStandby:
		what, err = "Standby", m.Standby(ctx)
	case resetOff:
		what, err = "Shutdown", m.Shutdown(ctx)
	default:
		what, err = "Reset", m.Reset(ctx)
	}
	if err != nil {
		return fmt.Errorf("%s failed: %w", what, err)
	}

	fmt.Printf("%s confirmed in %v\n", what, time.Since(start).Round(time.Millisecond))
	return nil
}

// checkPinLines rejects pin operations the link has no line for
func checkPinLines(m *Module, pin, wakeup bool) error {
	if (pin || wakeup) && !m.HasPins {
		return fmt.Errorf("%s has no control lines", m.ConnInfo)
	}
	if wakeup && !m.HasWakeup {
		return fmt.Errorf("%s has no wakeup line (set --wakeup-line)", m.ConnInfo)
	}
	return nil
}
