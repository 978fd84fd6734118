// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Thermoquad/radiolink/pkg/amber"
	"github.com/Thermoquad/radiolink/pkg/driver"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var controlChannel int

var controlCmd = &cobra.Command{
	Use:   "control",
	Short: "Interactive TUI for exchanging RF messages",
	Long: `Exchange RF payloads with other modules via an interactive terminal UI.

The module is initialized on startup. Every sender heard on the air is added
to the peer list; selecting a peer addresses the next message to it with an
extended transmit. The first two entries send to the module's default
destination and to broadcast.

Features:
  - Peer discovery from received DATAEX indications
  - Message log with RSSI
  - Link statistics
  - Event logging
  - Automatic reconnection on connection loss

Tab switches between the peer list and the message input. Enter sends.

Supports both serial and WebSocket connections.`,
	RunE: runControl,
}

func init() {
	rootCmd.AddCommand(controlCmd)
	controlCmd.Flags().IntVar(&controlChannel, "channel", 0, "Volatile RF channel (100-140, 0 keeps the default)")
}

// linkManager owns the module across reconnects and forwards driver
// events to the TUI
type linkManager struct {
	ctx  context.Context
	mode amber.AddressMode
	p    *tea.Program

	mu     sync.RWMutex
	module *Module

	events      chan linkEvent
	indications chan amber.Indication
}

func newLinkManager(ctx context.Context, mode amber.AddressMode) *linkManager {
	return &linkManager{
		ctx:         ctx,
		mode:        mode,
		events:      make(chan linkEvent, 100),
		indications: make(chan amber.Indication, 100),
	}
}

func (lm *linkManager) get() *Module {
	lm.mu.RLock()
	defer lm.mu.RUnlock()
	return lm.module
}

func (lm *linkManager) set(m *Module) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	lm.module = m
}

// drop closes the current module, if any
func (lm *linkManager) drop() {
	lm.mu.Lock()
	m := lm.module
	lm.module = nil
	lm.mu.Unlock()

	if m != nil {
		m.Close()
	}
}

// config builds a driver config whose hooks feed the batch channels.
// The hooks run on the receiver goroutine, so they never block.
func (lm *linkManager) config() driver.Config {
	return driver.Config{
		Callback: func(ind amber.Indication) {
			select {
			case lm.indications <- ind:
			default:
			}
		},
		OnFrame: func(f *amber.Frame) {
			select {
			case lm.events <- linkEvent{frame: f, validationErrors: amber.ValidateFrame(f, lm.mode)}:
			default:
			}
		},
		OnDecodeError: func(err error) {
			select {
			case lm.events <- linkEvent{decodeErr: err}:
			default:
			}
		},
	}
}

// connect initializes a fresh module and tunes it for the session
func (lm *linkManager) connect() (connectedMsg, error) {
	ctx, cancel := context.WithTimeout(lm.ctx, 10*time.Second)
	defer cancel()

	m, fw, err := InitModule(ctx, lm.config())
	if err != nil {
		return connectedMsg{}, err
	}

	channel := uint8(controlChannel)
	if channel != 0 {
		err = m.SetVolatileChannel(ctx, channel)
	} else {
		channel, err = m.DefaultRFChannel(ctx)
	}
	if err != nil {
		m.Close()
		return connectedMsg{}, fmt.Errorf("RF channel: %w", err)
	}

	lm.set(m)
	return connectedMsg{connInfo: m.ConnInfo, firmware: fw, channel: channel}, nil
}

// connectCmd attempts a connection after delay. Failures come back as
// connectFailedMsg so the model can schedule the next attempt.
func (lm *linkManager) connectCmd(delay time.Duration) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-lm.ctx.Done():
			return nil
		case <-time.After(delay):
		}

		msg, err := lm.connect()
		if err != nil {
			return connectFailedMsg{err: err, delay: delay}
		}
		return msg
	}
}

// transmitCmd sends payload to the target and reports the outcome
func (lm *linkManager) transmitCmd(target peer, channel uint8, payload []byte) tea.Cmd {
	return func() tea.Msg {
		m := lm.get()
		if m == nil {
			return sentMsg{target: target, payload: payload, err: ErrConnectionClosed}
		}

		ctx, cancel := context.WithTimeout(lm.ctx, 2*time.Second)
		defer cancel()

		var err error
		if target.defaultDest {
			err = m.Transmit(ctx, payload)
		} else {
			err = m.TransmitExtended(ctx, channel, target.addr, payload)
		}
		return sentMsg{target: target, payload: payload, err: err}
	}
}

// forward batches driver events to the TUI at a fixed rate
func (lm *linkManager) forward() {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-lm.ctx.Done():
			return
		case <-ticker.C:
			var batch controlBatchMsg

		drainLoop:
			for {
				select {
				case ev := <-lm.events:
					batch.events = append(batch.events, ev)
				case ind := <-lm.indications:
					batch.indications = append(batch.indications, ind)
				default:
					break drainLoop
				}
			}

			if len(batch.events) > 0 || len(batch.indications) > 0 {
				lm.p.Send(batch)
			}
		}
	}
}

func runControl(cmd *cobra.Command, args []string) error {
	mode, err := addressMode()
	if err != nil {
		return err
	}
	if controlChannel != 0 && (controlChannel < amber.ChannelMin || controlChannel > amber.ChannelMax) {
		return fmt.Errorf("--channel must be %d-%d", amber.ChannelMin, amber.ChannelMax)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	lm := newLinkManager(ctx, mode)
	m := initialControlModel(lm, mode)

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	lm.p = p

	go lm.forward()

	_, err = p.Run()
	cancel()
	lm.drop()
	if err != nil {
		return fmt.Errorf("TUI error: %v", err)
	}
	return nil
}
