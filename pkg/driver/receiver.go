// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package driver

import (
	"sync"
	"time"

	"github.com/Thermoquad/radiolink/pkg/amber"
)

// receiver is the background task that turns the raw byte stream into
// frames. It polls the transport, feeds the decoder, and hands each valid
// frame to handle on its own goroutine.
type receiver struct {
	tr      Transport
	dec     *amber.Decoder
	poll    time.Duration
	handle  func(*amber.Frame)
	onError func(error)

	// resyncAck is closed once a requested decoder reset has happened;
	// nil while no resync is pending
	resyncMu  sync.Mutex
	resyncAck chan struct{}

	stop   chan struct{}
	done   chan struct{}
	once   sync.Once

	mu  sync.Mutex
	err error
}

func newReceiver(tr Transport, poll time.Duration, handle func(*amber.Frame), onError func(error)) *receiver {
	return &receiver{
		tr:      tr,
		dec:     amber.NewDecoder(),
		poll:    poll,
		handle:  handle,
		onError: onError,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

func (r *receiver) start() {
	go r.run()
}

// requestResync makes the receiver drop any partial frame before it
// decodes more input. The returned channel is closed once the decoder is
// back in AwaitStart.
func (r *receiver) requestResync() <-chan struct{} {
	r.resyncMu.Lock()
	defer r.resyncMu.Unlock()
	if r.resyncAck == nil {
		r.resyncAck = make(chan struct{})
	}
	return r.resyncAck
}

// applyResync resets the decoder if a resync is pending
func (r *receiver) applyResync() {
	r.resyncMu.Lock()
	defer r.resyncMu.Unlock()
	if r.resyncAck == nil {
		return
	}
	r.dec.Reset()
	close(r.resyncAck)
	r.resyncAck = nil
}

// shutdown stops the receiver and waits for it to exit
func (r *receiver) shutdown() {
	r.once.Do(func() { close(r.stop) })
	<-r.done
}

// Err returns the transport error that ended the receiver, if any
func (r *receiver) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (r *receiver) run() {
	defer close(r.done)

	buf := make([]byte, 256)
	for {
		select {
		case <-r.stop:
			return
		default:
		}

		r.applyResync()

		// Read may block; a resync requested meanwhile applies to
		// whatever it returns
		n, err := r.tr.Read(buf)
		r.applyResync()
		for _, b := range buf[:n] {
			frame, decErr := r.dec.DecodeByte(b)
			if decErr != nil {
				if r.onError != nil {
					r.onError(decErr)
				}
				continue
			}
			if frame != nil {
				r.handle(frame)
			}
		}

		if err != nil {
			r.mu.Lock()
			r.err = err
			r.mu.Unlock()
			return
		}

		if n == 0 {
			select {
			case <-r.stop:
				return
			case <-time.After(r.poll):
			}
		}
	}
}
