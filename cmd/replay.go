// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Thermoquad/radiolink/pkg/amber"
	"github.com/Thermoquad/radiolink/pkg/capture"
	"github.com/spf13/cobra"
)

var (
	replayDirection string
	replayStats     bool
)

var replayCmd = &cobra.Command{
	Use:   "replay <capture-file>",
	Short: "Decode a capture file recorded with --record",
	Long: `Decode the link traffic stored in a capture file offline.

Each direction is decoded separately, so frames split across reads are
reassembled. The addressing mode stored in the capture is used unless
--addr-mode is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().StringVar(&replayDirection, "direction", "both", "Direction to show: rx, tx or both")
	replayCmd.Flags().BoolVar(&replayStats, "stats", false, "Print statistics at the end")
}

func runReplay(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	r, err := capture.NewReader(f)
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}
	hdr := r.Header()

	mode := amber.AddressMode(hdr.AddressMode)
	if cmd.Flags().Changed("addr-mode") {
		if mode, err = addressMode(); err != nil {
			return err
		}
	}

	show := map[capture.Direction]bool{
		capture.DirRX: replayDirection != "tx",
		capture.DirTX: replayDirection != "rx",
	}
	decoders := map[capture.Direction]*amber.Decoder{
		capture.DirRX: amber.NewDecoder(),
		capture.DirTX: amber.NewDecoder(),
	}
	stats := amber.NewStatistics()

	fmt.Printf("Radiolink - Replay\n")
	fmt.Printf("Capture: %s\n", args[0])
	if hdr.Source != "" {
		fmt.Printf("Recorded from: %s\n", hdr.Source)
	}
	fmt.Printf("Started: %s\n", hdr.StartTime().Format("2006-01-02 15:04:05.000"))
	fmt.Printf("Address mode: %d\n\n", mode)

	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("read capture: %w", err)
		}

		dec, ok := decoders[rec.Dir]
		if !ok {
			continue
		}
		for _, b := range rec.Data {
			frame, decodeErr := dec.DecodeByte(b)
			if decodeErr != nil {
				stats.Update(nil, decodeErr, nil)
				if show[rec.Dir] {
					fmt.Printf("[ERROR] %s %v\n", rec.Dir, decodeErr)
				}
				continue
			}
			if frame == nil {
				continue
			}

			validationErrors := amber.ValidateFrame(frame, mode)
			stats.Update(frame, nil, validationErrors)
			if frame.Command() == amber.CmdDataExInd {
				if ind, err := amber.ParseIndication(mode, frame); err == nil {
					stats.AddRFBytes(len(ind.Payload))
				}
			}
			if !show[rec.Dir] {
				continue
			}

			fmt.Printf("%s +%.3fs ", rec.Dir, rec.Timestamp().Sub(hdr.StartTime()).Seconds())
			fmt.Print(amber.FormatFrame(frame, mode))
			for _, v := range validationErrors {
				fmt.Printf("  [ANOMALY] %s\n", v.Message)
			}
		}
	}

	if replayStats {
		fmt.Println()
		fmt.Print(stats.String())
	}
	return nil
}
