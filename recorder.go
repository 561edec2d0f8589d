// Copyright 2026 Determinate Systems, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package detsysids is a client library for an asynchronous
// telemetry and feature-flag ingestion pipeline: a Recorder handle
// enqueues events and fact updates without ever blocking on the
// network, a background Worker enriches and batches them, and a
// pluggable Transport delivers the result.
//
// Construct a Recorder with a [Builder]:
//
//	recorder, err := detsysids.NewBuilder().
//		WithLibrary("my-cli", "1.2.3").
//		Build(ctx)
//	if err != nil {
//		return err
//	}
//	defer recorder.Shutdown(context.Background())
//
//	recorder.Record("cli_invoked", map[string]any{"command": "build"}, nil)
package detsysids

import (
	"context"

	"github.com/DeterminateSystems/detsys-ids-client/event"
)

// Recorder is a cheap-to-clone handle onto a running Worker. Every
// method is non-blocking on the network; Record in particular never
// fails and never blocks the caller beyond enqueueing a message.
type Recorder struct {
	w *worker
}

// Record enqueues an event with the given name and properties for
// asynchronous enrichment and upload. properties and groups may be
// nil. Record never blocks on the network and never returns an
// error; under sustained backpressure the oldest pending event is
// dropped and a running drop count is attached to the next event this
// Worker manages to forward.
func (r *Recorder) Record(name string, properties map[string]any, groups map[string]string) {
	r.w.enqueue(eventSignal{name: name, properties: properties, groups: groups})
}

// SetFact attaches a sticky property merged into every event recorded
// on any clone of this Recorder from this point on. Facts set on one
// clone are visible to events recorded on that same clone once the
// set has been processed; concurrently in-flight events on other
// clones may or may not observe it, matching the ordering guarantee
// for per-handle state.
func (r *Recorder) SetFact(key string, value any) {
	r.w.enqueue(factSignal{key: key, value: value})
}

// GetFeature returns the last-known value of a feature flag from the
// most recent check-in. It never blocks on the network; before the
// first successful check-in it always reports ok=false.
func (r *Recorder) GetFeature(name string) (event.FeatureFlag, bool) {
	return r.w.getFeature(name)
}

// Identify associates subsequent events on this Recorder's Worker
// with distinctID instead of the anonymous identifier used so far. If
// an identity was already set, the anonymous identifier is rotated so
// the old anonymous identity cannot be linked to the newly identified
// one.
func (r *Recorder) Identify(distinctID string) {
	r.w.enqueue(identifySignal{distinctID: distinctID})
}

// Alias records a $create_alias event linking alias to the current
// distinct ID, for downstream identity-merge processing.
func (r *Recorder) Alias(alias string) {
	r.w.enqueue(aliasSignal{alias: alias})
}

// AddGroup associates the current identity with groupMemberID under
// groupType (e.g. "organization", "team") for subsequent events.
func (r *Recorder) AddGroup(groupType, groupMemberID string) {
	r.w.enqueue(addGroupSignal{groupType: groupType, memberID: groupMemberID})
}

// Reset clears the identified distinct ID and rotates the anonymous
// identifier, as when a user logs out on a shared device.
func (r *Recorder) Reset() {
	r.w.enqueue(resetSignal{})
}

// Flush asks the Submitter to upload pending events now and waits for
// the attempt to finish or for ctx to be done. The underlying upload
// continues in the background even if ctx expires first.
func (r *Recorder) Flush(ctx context.Context) error {
	return r.w.flush(ctx)
}

// Shutdown stops accepting new events, drains what is pending through
// a final upload attempt, and releases the Worker's resources. Once
// Shutdown has been called, Record, Flush, and the other enqueuing
// operations on this Recorder and its clones are no-ops; GetFeature
// still reads the last check-in. Safe to call from multiple clones:
// every call waits for the same completion, each bounded by its own
// ctx.
func (r *Recorder) Shutdown(ctx context.Context) error {
	return r.w.shutdown(ctx)
}

// Clone returns a second handle sharing the same Worker. Clones are
// independent for ordering purposes (FIFO per clone, no ordering
// guarantee across clones) but share configuration, identity, and
// shutdown state.
func (r *Recorder) Clone() *Recorder {
	return &Recorder{w: r.w}
}
