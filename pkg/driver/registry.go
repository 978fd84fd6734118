// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package driver

import (
	"context"
	"sync"
	"time"
)

// Status is the outcome recorded for a confirmation
type Status int

const (
	StatusInvalid Status = iota
	StatusSuccess
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFailed:
		return "failed"
	default:
		return "invalid"
	}
}

// registrySlots is the confirmation backlog size: one outstanding request
// plus an asynchronous reset or standby indication.
const registrySlots = 2

// confirmation is what the receiver posts for a waiting caller
type confirmation struct {
	tag    uint8
	status Status
	data   []byte
}

type slot struct {
	confirmation
	used bool
}

// registry is the small fixed set of pending confirmation slots shared
// by the receiver and the command caller. Posting wakes every waiter by
// closing the current wait channel and replacing it.
type registry struct {
	mu    sync.Mutex
	slots [registrySlots]slot
	wait  chan struct{}
}

func newRegistry() *registry {
	return &registry{wait: make(chan struct{})}
}

// resetAll marks every slot free
func (r *registry) resetAll() {
	r.mu.Lock()
	for i := range r.slots {
		r.slots[i] = slot{}
	}
	r.mu.Unlock()
}

// tryClaim fills the first free slot. It reports false, leaving every
// slot untouched, when the backlog is full.
func (r *registry) tryClaim(c confirmation) bool {
	r.mu.Lock()
	for i := range r.slots {
		if !r.slots[i].used {
			r.slots[i] = slot{confirmation: c, used: true}
			old := r.wait
			r.wait = make(chan struct{})
			r.mu.Unlock()
			close(old)
			return true
		}
	}
	r.mu.Unlock()
	return false
}

// pollFor returns the first slot holding one of tags. The slot is left in
// place until the next resetAll.
func (r *registry) pollFor(tags ...uint8) (confirmation, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.find(tags)
}

func (r *registry) find(tags []uint8) (confirmation, bool) {
	for i := range r.slots {
		if !r.slots[i].used {
			continue
		}
		for _, tag := range tags {
			if r.slots[i].tag == tag {
				return r.slots[i].confirmation, true
			}
		}
	}
	return confirmation{}, false
}

// await blocks until a confirmation for one of tags is posted, the timeout
// elapses, ctx is done or stopped is closed.
func (r *registry) await(ctx context.Context, timeout time.Duration, stopped <-chan struct{}, tags ...uint8) (confirmation, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		r.mu.Lock()
		c, ok := r.find(tags)
		ch := r.wait
		r.mu.Unlock()
		if ok {
			return c, nil
		}

		select {
		case <-ch:
		case <-timer.C:
			return confirmation{}, errConfirmationTimeout
		case <-ctx.Done():
			return confirmation{}, ctx.Err()
		case <-stopped:
			return confirmation{}, ErrClosed
		}
	}
}

// snapshot returns the tags currently held, for diagnostics
func (r *registry) snapshot() []confirmation {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []confirmation
	for _, s := range r.slots {
		if s.used {
			out = append(out, s.confirmation)
		}
	}
	return out
}
