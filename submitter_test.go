// Copyright 2026 Determinate Systems, Inc.
// SPDX-License-Identifier: Apache-2.0

package detsysids

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/DeterminateSystems/detsys-ids-client/event"
	"github.com/DeterminateSystems/detsys-ids-client/internal/clock"
)

type fakeTransport struct {
	mu        sync.Mutex
	submitted [][]byte
	failNext  int
	failErr   error
	closed    bool
}

func (f *fakeTransport) Checkin(context.Context) (event.CheckinResponse, error) {
	return event.CheckinResponse{}, nil
}

func (f *fakeTransport) Submit(_ context.Context, compressed []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext > 0 {
		f.failNext--
		return f.failErr
	}
	f.submitted = append(f.submitted, compressed)
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) submissionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.submitted)
}

func testEvent(name string) event.EnrichedEvent {
	return event.EnrichedEvent{UUID: uuid.New(), Name: name, Timestamp: time.Unix(0, 0)}
}

type submitterTestError struct{}

func (submitterTestError) Error() string { return "simulated upload failure" }

var errFailing = submitterTestError{}

func TestSubmitterFlushesOnExplicitRequest(t *testing.T) {
	ft := &fakeTransport{}
	in := make(chan collatedSignal, 8)
	clk := clock.Fake(time.Unix(0, 0))
	s := newSubmitter(ft, in, clk, discardLogger())

	done := make(chan struct{})
	in <- collatedEvent{event: testEvent("a")}
	in <- collatedFlushNow{done: done}

	go s.run(context.Background())

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("flush did not complete")
	}

	if ft.submissionCount() != 1 {
		t.Fatalf("submissionCount() = %d, want 1", ft.submissionCount())
	}
}

func TestSubmitterFlushesOnBatchSizeThreshold(t *testing.T) {
	ft := &fakeTransport{}
	in := make(chan collatedSignal, maxBatchEvents+8)
	clk := clock.Fake(time.Unix(0, 0))
	s := newSubmitter(ft, in, clk, discardLogger())

	for i := 0; i < maxBatchEvents; i++ {
		in <- collatedEvent{event: testEvent("e")}
	}

	runDone := make(chan struct{})
	go func() { s.run(context.Background()); close(runDone) }()

	deadline := time.After(2 * time.Second)
	for ft.submissionCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("expected a size-triggered flush")
		case <-time.After(time.Millisecond):
		}
	}
}

func TestSubmitterRetriesWithBackoffThenDropsBatch(t *testing.T) {
	ft := &fakeTransport{failNext: maxUploadAttempts, failErr: errFailing}
	in := make(chan collatedSignal, 8)
	clk := clock.Fake(time.Unix(0, 0))
	s := newSubmitter(ft, in, clk, discardLogger())

	done := make(chan struct{})
	in <- collatedEvent{event: testEvent("a")}
	in <- collatedFlushNow{done: done}

	runStarted := make(chan struct{})
	go func() {
		close(runStarted)
		s.run(context.Background())
	}()
	<-runStarted

	// Advance the fake clock past every retry's backoff so the retry
	// loop doesn't stall waiting on a timer that never fires.
	for i := 0; i < maxUploadAttempts; i++ {
		time.Sleep(10 * time.Millisecond)
		clk.Advance(backoffCap)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("flush did not complete after exhausting retries")
	}

	if ft.submissionCount() != 0 {
		t.Fatalf("submissionCount() = %d, want 0 (batch should have been dropped)", ft.submissionCount())
	}
}

func TestSubmitterFinalFlushOnChannelClose(t *testing.T) {
	ft := &fakeTransport{}
	in := make(chan collatedSignal, 8)
	clk := clock.Fake(time.Unix(0, 0))
	s := newSubmitter(ft, in, clk, discardLogger())

	in <- collatedEvent{event: testEvent("a")}
	close(in)

	done := make(chan struct{})
	go func() {
		s.run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("run did not return after channel close")
	}

	if ft.submissionCount() != 1 {
		t.Fatalf("submissionCount() = %d, want 1", ft.submissionCount())
	}
}
