// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package driver

import (
	"errors"

	"github.com/Thermoquad/radiolink/pkg/amber"
)

// dispatch routes a validated frame: RF data goes to the callback,
// confirmations and reset/standby indications go to the registry.
func (d *Driver) dispatch(f *amber.Frame) {
	if d.cfg.OnFrame != nil {
		d.cfg.OnFrame(f)
	}
	if d.cfg.Verbose {
		d.log.Printf("RX %s % X", amber.FormatCommand(f.Command()), f.Data())
	}

	switch f.Command() {
	case amber.CmdDataExInd:
		d.deliver(f)
		return

	case amber.CmdResetInd, amber.CmdStandbyInd:
		// unsolicited, but PinReset and PinWakeup wait on them
		d.post(f, StatusSuccess)
		return

	case amber.CmdSetChannelCnf:
		d.sess.mu.Lock()
		ok := d.sess.channelSet && matchByte(f, d.sess.channel)
		d.sess.mu.Unlock()
		d.post(f, statusOf(ok))
		return

	case amber.CmdSetPAPowerCnf:
		d.sess.mu.Lock()
		ok := d.sess.powerSet && matchByte(f, uint8(d.sess.power))
		d.sess.mu.Unlock()
		d.post(f, statusOf(ok))
		return

	case amber.CmdPingDUTCnf:
		data := f.Data()
		ok := len(data) > amber.PingDUTResultIndex && data[amber.PingDUTResultIndex] == amber.PingDUTPacketCount
		d.post(f, statusOf(ok))
		return

	case amber.CmdResetCnf, amber.CmdFactoryResetCnf, amber.CmdShutdownCnf,
		amber.CmdStandbyCnf, amber.CmdDataCnf, amber.CmdGetCnf, amber.CmdSetCnf,
		amber.CmdSetDestAddrCnf, amber.CmdSetDestNetIDCnf:
		status, ok := f.Status()
		d.post(f, statusOf(ok && status == 0))
		return
	}

	if d.cfg.Verbose {
		d.log.Printf("Ignoring %s (0x%02X)", amber.FormatCommand(f.Command()), f.Command())
	}
}

func (d *Driver) post(f *amber.Frame, status Status) {
	data := make([]byte, len(f.Data()))
	copy(data, f.Data())

	c := confirmation{tag: f.Command(), status: status, data: data}
	if !d.reg.tryClaim(c) {
		d.log.Printf("Confirmation backlog full, dropping %s", amber.FormatCommand(f.Command()))
	}
}

func (d *Driver) deliver(f *amber.Frame) {
	d.sess.mu.Lock()
	mode := d.sess.mode
	cb := d.sess.callback
	d.sess.mu.Unlock()

	ind, err := amber.ParseIndication(mode, f)
	if err != nil {
		d.log.Printf("Dropping DATAEX_IND: %v", err)
		return
	}
	if cb != nil {
		cb(ind)
	}
}

func (d *Driver) decodeError(err error) {
	if d.cfg.OnDecodeError != nil {
		d.cfg.OnDecodeError(err)
	}
	if d.cfg.Verbose && errors.Is(err, amber.ErrChecksumMismatch) {
		d.log.Printf("Dropped frame: %v", err)
	}
}

func matchByte(f *amber.Frame, want uint8) bool {
	got, ok := f.Status()
	return ok && got == want
}

func statusOf(ok bool) Status {
	if ok {
		return StatusSuccess
	}
	return StatusFailed
}
