// Copyright 2026 Determinate Systems, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts time so that TTL checks, backoff sleeps, and
// the flush and check-in tickers can be driven deterministically in
// tests. Flush and shutdown deadlines come from the caller's
// context.Context, not from a Clock.
//
// Production code is constructed with Real(); tests construct a Fake()
// and advance it explicitly. Every place in this module that would
// otherwise call time.Now, time.After, or time.NewTicker takes a Clock
// instead.
package clock

import "time"

// Clock is the time source used throughout the worker, submitter, and
// transport retry loops.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives the time once d has
	// elapsed. Equivalent to time.After.
	After(d time.Duration) <-chan time.Time

	// NewTicker returns a Ticker delivering ticks on its C channel
	// every d. Panics if d <= 0.
	NewTicker(d time.Duration) *Ticker

	// Sleep blocks the calling goroutine for at least d.
	Sleep(d time.Duration)
}

// Ticker wraps a periodic timer. The C channel has capacity 1: if the
// consumer falls behind, ticks are dropped rather than queued, matching
// time.Ticker.
type Ticker struct {
	C <-chan time.Time

	stopFunc  func()
	resetFunc func(time.Duration)
}

// Stop turns off the ticker. It does not close C.
func (t *Ticker) Stop() { t.stopFunc() }

// Reset reschedules the ticker to fire every d starting now.
func (t *Ticker) Reset(d time.Duration) { t.resetFunc(d) }
