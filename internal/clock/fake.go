// Copyright 2026 Determinate Systems, Inc.
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sync"
	"time"
)

// Fake returns a FakeClock initialized to the given time. Time stands
// still until Advance is called; After, NewTicker, and Sleep register
// waiters that fire once the clock passes their deadline.
func Fake(initial time.Time) *FakeClock {
	return &FakeClock{current: initial}
}

// FakeClock is a deterministic Clock for tests. Safe for concurrent use.
type FakeClock struct {
	mu      sync.Mutex
	current time.Time
	waiters []*fakeWaiter
}

type fakeWaiter struct {
	deadline time.Time
	channel  chan time.Time
	interval time.Duration // non-zero for tickers
	stopped  bool
	fired    bool // one-shot waiters fire at most once
}

// Now returns the fake clock's current time.
func (f *FakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

// After returns a channel that receives the fake time once the clock
// has been advanced past current+d.
func (f *FakeClock) After(d time.Duration) <-chan time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	waiter := &fakeWaiter{
		deadline: f.current.Add(d),
		channel:  make(chan time.Time, 1),
	}
	if d <= 0 {
		waiter.channel <- f.current
		waiter.fired = true
		return waiter.channel
	}
	f.waiters = append(f.waiters, waiter)
	return waiter.channel
}

// NewTicker returns a Ticker that fires every d once the fake clock is
// advanced past each successive deadline.
func (f *FakeClock) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: NewTicker requires a positive duration")
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	waiter := &fakeWaiter{
		deadline: f.current.Add(d),
		channel:  make(chan time.Time, 1),
		interval: d,
	}
	f.waiters = append(f.waiters, waiter)

	return &Ticker{
		C:        waiter.channel,
		stopFunc: func() { f.stop(waiter) },
		resetFunc: func(newInterval time.Duration) {
			f.mu.Lock()
			defer f.mu.Unlock()
			waiter.interval = newInterval
			waiter.deadline = f.current.Add(newInterval)
		},
	}
}

// Sleep blocks the calling goroutine until the fake clock is advanced
// past current+d.
func (f *FakeClock) Sleep(d time.Duration) {
	<-f.After(d)
}

func (f *FakeClock) stop(waiter *fakeWaiter) {
	f.mu.Lock()
	defer f.mu.Unlock()
	waiter.stopped = true
}

// Advance moves the fake clock forward by d, firing (in deadline order)
// every waiter whose deadline falls at or before the new time. Ticker
// waiters are rescheduled at deadline+interval; when d spans multiple
// intervals, the ticks that find C's single buffer slot full are
// dropped, as with time.Ticker.
func (f *FakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()

	target := f.current.Add(d)
	for {
		fired := false
		for _, waiter := range f.waiters {
			if waiter.stopped || waiter.fired {
				continue
			}
			if waiter.deadline.After(target) {
				continue
			}
			select {
			case waiter.channel <- waiter.deadline:
			default:
			}
			if waiter.interval > 0 {
				waiter.deadline = waiter.deadline.Add(waiter.interval)
			} else {
				waiter.fired = true
			}
			fired = true
		}
		if !fired {
			break
		}
	}
	f.current = target
	f.compact()
}

// compact drops stopped and fired one-shot waiters so the slice does
// not grow unbounded across a long test.
func (f *FakeClock) compact() {
	kept := f.waiters[:0]
	for _, waiter := range f.waiters {
		if waiter.stopped || (waiter.fired && waiter.interval == 0) {
			continue
		}
		kept = append(kept, waiter)
	}
	f.waiters = kept
}
