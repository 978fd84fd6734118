// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Thermoquad/radiolink/pkg/amber"
	"github.com/Thermoquad/radiolink/pkg/driver"
	"github.com/spf13/cobra"
)

var (
	settingsTimeout      int
	configureSettings    []string
	configureFactory     bool
	configureSnifferMode bool
)

var getCmd = &cobra.Command{
	Use:   "get <setting>",
	Short: "Read a user setting",
	Long: `Read one user setting from the module's flash and print its value.

Settings are named as printed by "radiolink get --list" (case-insensitive,
'-' may replace '_'), or given as a numeric ID such as 0x03.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if listSettings, _ := cmd.Flags().GetBool("list"); listSettings {
			return nil
		}
		return cobra.ExactArgs(1)(cmd, args)
	},
	RunE: runGet,
}

var setCmd = &cobra.Command{
	Use:   "set <setting> <hex-value>",
	Short: "Write a user setting",
	Long: `Write one user setting to the module's flash. The new value takes effect
after the next reset.

Flash endurance is limited. Prefer "configure", which only writes values
that differ from what the module already holds.

Example:
  radiolink set default-rf-channel 78 --port /dev/ttyUSB0`,
	Args: cobra.ExactArgs(2),
	RunE: runSet,
}

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Converge user settings to the given values",
	Long: `Read each listed setting and write it only when it differs, then pin-reset
the module so the new values take effect. Stops at the first failure.

Example:
  radiolink configure --port /dev/ttyUSB0 \
      --setting default-rf-channel=78 --setting source-netid=05`,
	RunE: runConfigure,
}

func init() {
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(configureCmd)

	getCmd.Flags().Bool("list", false, "List known setting names")
	for _, c := range []*cobra.Command{getCmd, setCmd, configureCmd} {
		c.Flags().IntVar(&settingsTimeout, "timeout", 10, "Overall timeout in seconds")
	}
	configureCmd.Flags().StringArrayVar(&configureSettings, "setting", nil, "Desired value as name=hex (repeatable)")
	configureCmd.Flags().BoolVar(&configureFactory, "factory-reset", false, "Restore factory defaults first")
	configureCmd.Flags().BoolVar(&configureSnifferMode, "sniffer", false, "Also enable sniffer mode")
}

// parseSettingName accepts a setting name or a numeric ID
func parseSettingName(name string) (amber.Setting, error) {
	if s, ok := amber.ParseSetting(name); ok {
		return s, nil
	}
	if id, err := strconv.ParseUint(name, 0, 8); err == nil {
		return amber.Setting(id), nil
	}
	return 0, fmt.Errorf("unknown setting %q (see get --list)", name)
}

func parseHexValue(s string) ([]byte, error) {
	s = strings.NewReplacer(" ", "", ":", "").Replace(strings.TrimPrefix(strings.ToLower(s), "0x"))
	v, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex value %q: %v", s, err)
	}
	return v, nil
}

func settingsContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), time.Duration(settingsTimeout)*time.Second)
}

func runGet(cmd *cobra.Command, args []string) error {
	if listSettings, _ := cmd.Flags().GetBool("list"); listSettings {
		for _, s := range amber.AllSettings() {
			fmt.Printf("0x%02X  %s\n", uint8(s), strings.ToLower(strings.ReplaceAll(amber.FormatSetting(s), "_", "-")))
		}
		return nil
	}

	setting, err := parseSettingName(args[0])
	if err != nil {
		return err
	}

	ctx, cancel := settingsContext()
	defer cancel()

	m, _, err := InitModule(ctx, driver.Config{})
	if err != nil {
		return err
	}
	defer m.Close()

	value, err := m.Get(ctx, setting)
	if err != nil {
		return fmt.Errorf("read %s: %w", amber.FormatSetting(setting), err)
	}
	fmt.Printf("%s (0x%02X): %s\n", amber.FormatSetting(setting), uint8(setting), amber.FormatHex(value))
	return nil
}

func runSet(cmd *cobra.Command, args []string) error {
	setting, err := parseSettingName(args[0])
	if err != nil {
		return err
	}
	value, err := parseHexValue(args[1])
	if err != nil {
		return err
	}

	ctx, cancel := settingsContext()
	defer cancel()

	m, _, err := InitModule(ctx, driver.Config{})
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Set(ctx, setting, value); err != nil {
		return fmt.Errorf("write %s: %w", amber.FormatSetting(setting), err)
	}
	fmt.Printf("%s (0x%02X) set to %s; reset the module to apply\n",
		amber.FormatSetting(setting), uint8(setting), amber.FormatHex(value))
	return nil
}

func runConfigure(cmd *cobra.Command, args []string) error {
	var settings []driver.SettingValue
	for _, arg := range configureSettings {
		name, value, ok := strings.Cut(arg, "=")
		if !ok {
			return fmt.Errorf("invalid --setting %q (use name=hex)", arg)
		}
		setting, err := parseSettingName(name)
		if err != nil {
			return err
		}
		v, err := parseHexValue(value)
		if err != nil {
			return err
		}
		settings = append(settings, driver.SettingValue{Setting: setting, Value: v})
	}
	if configureFactory && configureSnifferMode {
		return fmt.Errorf("--sniffer cannot be combined with --factory-reset, which would clear it")
	}
	if len(settings) == 0 && !configureFactory && !configureSnifferMode {
		return fmt.Errorf("nothing to configure (use --setting, --factory-reset or --sniffer)")
	}

	ctx, cancel := settingsContext()
	defer cancel()

	m, fw, err := InitModule(ctx, driver.Config{})
	if err != nil {
		return err
	}
	defer m.Close()

	fmt.Printf("Radiolink - Configure\n")
	fmt.Printf("Connection: %s\n", m.ConnInfo)
	fmt.Printf("Firmware: %d.%d.%d\n\n", fw[0], fw[1], fw[2])

	if configureSnifferMode {
		if err := m.EnableSnifferMode(ctx); err != nil {
			return fmt.Errorf("enable sniffer mode: %w", err)
		}
		fmt.Printf("Sniffer mode enabled\n")
	}

	if !m.HasPins {
		fmt.Printf("No reset line on this link; the module will be reset with RESET_REQ instead\n")
		return configureWithoutPins(ctx, m, settings)
	}
	if err := m.Configure(ctx, settings, configureFactory); err != nil {
		return err
	}
	fmt.Printf("Configured %d setting(s)\n", len(settings))
	return nil
}

// configureWithoutPins runs the convergence loop over links that cannot
// pulse the reset line, finishing with a RESET_REQ.
func configureWithoutPins(ctx context.Context, m *Module, settings []driver.SettingValue) error {
	if configureFactory {
		if err := m.FactoryReset(ctx); err != nil {
			return fmt.Errorf("factory reset: %w", err)
		}
	}
	for _, s := range settings {
		current, err := m.Get(ctx, s.Setting)
		if err != nil {
			return fmt.Errorf("read %s: %w", amber.FormatSetting(s.Setting), err)
		}
		if len(current) != len(s.Value) {
			return fmt.Errorf("%w: %s", driver.ErrSettingMismatch, amber.FormatSetting(s.Setting))
		}
		if bytes.Equal(current, s.Value) {
			fmt.Printf("  %s: unchanged\n", amber.FormatSetting(s.Setting))
			continue
		}
		if err := m.Set(ctx, s.Setting, s.Value); err != nil {
			return fmt.Errorf("write %s: %w", amber.FormatSetting(s.Setting), err)
		}
		fmt.Printf("  %s: %s -> %s\n", amber.FormatSetting(s.Setting), amber.FormatHex(current), amber.FormatHex(s.Value))
	}
	return m.Reset(ctx)
}
