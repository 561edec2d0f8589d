// Copyright 2026 Determinate Systems, Inc.
// SPDX-License-Identifier: Apache-2.0

package detsysids

import (
	"context"
	"testing"
	"time"

	"github.com/DeterminateSystems/detsys-ids-client/configproxy"
	"github.com/DeterminateSystems/detsys-ids-client/event"
	"github.com/DeterminateSystems/detsys-ids-client/identity"
	"github.com/DeterminateSystems/detsys-ids-client/internal/clock"
	"github.com/DeterminateSystems/detsys-ids-client/snapshot"
	"github.com/DeterminateSystems/detsys-ids-client/storage"
)

// newTestWorker wires a worker together with a real collator and
// submitter and a fakeTransport, without going through Builder, so
// tests can drive the pipeline end to end with a deterministic clock.
func newTestWorker(t *testing.T) (*Recorder, *worker, *fakeTransport, *clock.FakeClock) {
	t.Helper()

	clk := clock.Fake(time.Unix(0, 0))
	ft := &fakeTransport{}
	store := storage.NewNoOp()
	config := configproxy.New()
	snapshotter := snapshot.New(fakeQuerier{}, clk)

	in := newInbox(defaultInboxCapacity)
	out := make(chan collatedSignal, defaultInboxCapacity)
	shutdownSignal := make(chan struct{})

	col := newCollator(in, shutdownSignal, out, snapshotter, store, config, clk, discardLogger(),
		event.LibraryInfo{Name: "test", Version: "0.0.1"}, false, identity.Resolved{AnonDistinctID: "anon"}, identity.Data{})
	sub := newSubmitter(ft, out, clk, discardLogger())

	w := &worker{
		in:             in,
		config:         config,
		storage:        store,
		transport:      ft,
		clk:            clk,
		logger:         discardLogger(),
		shutdownSignal: shutdownSignal,
		runDone:        make(chan struct{}),
	}
	w.checkinWithRetry(context.Background())
	w.start(context.Background(), col, sub)

	return &Recorder{w: w}, w, ft, clk
}

func TestWorkerFlushDeliversRecordedEvent(t *testing.T) {
	recorder, _, ft, _ := newTestWorker(t)

	recorder.Record("did_a_thing", nil, nil)
	if err := recorder.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	if ft.submissionCount() != 1 {
		t.Fatalf("submissionCount() = %d, want 1", ft.submissionCount())
	}
}

func TestWorkerGetFeatureReflectsCheckin(t *testing.T) {
	recorder, w, _, _ := newTestWorker(t)

	if _, ok := recorder.GetFeature("anything"); ok {
		t.Fatal("expected no feature before any check-in response")
	}

	w.config.Replace(event.CheckinResponse{Features: map[string]event.FeatureFlag{"f": {Variant: "on"}}})

	flag, ok := recorder.GetFeature("f")
	if !ok || flag.Variant != "on" {
		t.Fatalf("GetFeature(f) = %+v, %v", flag, ok)
	}
}

func TestWorkerShutdownDrainsAndClosesTransport(t *testing.T) {
	recorder, _, ft, _ := newTestWorker(t)

	recorder.Record("before_shutdown", nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := recorder.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	if ft.submissionCount() != 1 {
		t.Fatalf("submissionCount() = %d, want 1 (pending event should be flushed on shutdown)", ft.submissionCount())
	}
	ft.mu.Lock()
	closed := ft.closed
	ft.mu.Unlock()
	if !closed {
		t.Fatal("expected transport to be closed after shutdown")
	}
}

func TestWorkerRecordIsNoOpAfterShutdown(t *testing.T) {
	recorder, _, ft, _ := newTestWorker(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := recorder.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	before := ft.submissionCount()
	recorder.Record("after_shutdown", nil, nil)
	_ = recorder.Flush(context.Background())

	if ft.submissionCount() != before {
		t.Fatalf("submissionCount() changed after shutdown: before=%d after=%d", before, ft.submissionCount())
	}
}

func TestWorkerCloneSharesState(t *testing.T) {
	recorder, _, ft, _ := newTestWorker(t)
	clone := recorder.Clone()

	clone.Record("from_clone", nil, nil)
	if err := recorder.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	if ft.submissionCount() != 1 {
		t.Fatalf("submissionCount() = %d, want 1", ft.submissionCount())
	}
}
