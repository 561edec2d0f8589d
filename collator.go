// Copyright 2026 Determinate Systems, Inc.
// SPDX-License-Identifier: Apache-2.0

package detsysids

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/DeterminateSystems/detsys-ids-client/configproxy"
	"github.com/DeterminateSystems/detsys-ids-client/event"
	"github.com/DeterminateSystems/detsys-ids-client/identity"
	"github.com/DeterminateSystems/detsys-ids-client/internal/clock"
	"github.com/DeterminateSystems/detsys-ids-client/snapshot"
	"github.com/DeterminateSystems/detsys-ids-client/storage"
)

// collator turns rawSignal messages into EnrichedEvents (or discards
// them, if telemetry is disabled) and forwards the result to the
// Submitter. It is the only writer of the process's mutable identity
// overrides (distinct_id, groups, sticky facts), so none of its
// fields need synchronization; everything else reaches it through
// in.
type collator struct {
	in       *inbox
	shutdown <-chan struct{}
	out      chan<- collatedSignal

	snapshotter *snapshot.Snapshotter
	storage     storage.Storage
	config      *configproxy.Proxy
	clk         clock.Clock
	logger      *slog.Logger

	library  event.LibraryInfo
	disabled bool

	sessionID        string
	anonDistinctID   string
	distinctID       string
	deviceID         string
	groups           map[string]string
	correlationExtra map[string]any
	facts            map[string]any

	reportedDrops uint64
}

func newCollator(
	in *inbox,
	shutdown <-chan struct{},
	out chan<- collatedSignal,
	snapshotter *snapshot.Snapshotter,
	store storage.Storage,
	config *configproxy.Proxy,
	clk clock.Clock,
	logger *slog.Logger,
	library event.LibraryInfo,
	disabled bool,
	ident identity.Resolved,
	correlation identity.Data,
) *collator {
	groups := map[string]string{}
	for groupType, memberID := range correlation.Groups {
		groups[groupType] = memberID
	}

	correlationExtra := map[string]any{}
	for key, value := range correlation.Extra {
		correlationExtra[key] = value
	}

	var distinctID string
	if ident.DistinctID != "" {
		distinctID = ident.DistinctID
	}

	return &collator{
		in:               in,
		shutdown:         shutdown,
		out:              out,
		snapshotter:      snapshotter,
		storage:          store,
		config:           config,
		clk:              clk,
		logger:           logger,
		library:          library,
		disabled:         disabled,
		sessionID:        ident.SessionID,
		anonDistinctID:   ident.AnonDistinctID,
		distinctID:       distinctID,
		deviceID:         ident.DeviceID,
		groups:           groups,
		correlationExtra: correlationExtra,
		facts:            map[string]any{},
	}
}

// run drains rawSignal messages until shutdown is closed, then makes
// one final drain pass, sends a last FlushNow to the Submitter, and
// closes the Submitter's channel. It always returns nil: there is no
// failure mode in this loop that should abort the sibling Submitter
// task early.
func (c *collator) run(ctx context.Context) error {
	for {
		select {
		case <-c.in.Notify():
			c.processQueued()
		case <-c.shutdown:
			c.processQueued()
			c.out <- collatedFlushNow{}
			close(c.out)
			return nil
		case <-ctx.Done():
			close(c.out)
			return nil
		}
	}
}

func (c *collator) processQueued() {
	for _, signal := range c.in.drain() {
		c.handle(signal)
	}
}

func (c *collator) handle(signal rawSignal) {
	switch s := signal.(type) {
	case eventSignal:
		c.handleEvent(s)
	case factSignal:
		c.facts[s.key] = s.value
	case identifySignal:
		c.handleIdentify(s)
	case aliasSignal:
		c.handleAlias(s)
	case addGroupSignal:
		c.handleAddGroup(s)
	case resetSignal:
		c.handleReset()
	case flushNowSignal:
		c.out <- collatedFlushNow{done: s.done}
	}
}

func (c *collator) currentDistinctID() string {
	if c.distinctID != "" {
		return c.distinctID
	}
	return c.anonDistinctID
}

func (c *collator) handleEvent(s eventSignal) {
	if c.disabled {
		return
	}

	properties := mergeProperties(c.config.Options(), c.correlationExtra, s.properties, c.facts)
	if dropped := c.in.droppedCount(); dropped > c.reportedDrops {
		properties["$library_dropped_events"] = dropped
		c.reportedDrops = dropped
	}

	c.out <- collatedEvent{event: event.EnrichedEvent{
		UUID:           newEventUUID(),
		Name:           s.name,
		DistinctID:     c.currentDistinctID(),
		Timestamp:      c.clk.Now(),
		SessionID:      c.sessionID,
		DeviceID:       c.deviceID,
		AnonDistinctID: c.anonDistinctID,
		Snapshot:       c.snapshotter.Snapshot(),
		Groups:         mergeGroups(c.groups, s.groups),
		Library:        c.library,
		Properties:     properties,
	}}
}

func (c *collator) handleIdentify(s identifySignal) {
	hadPriorIdentity := c.distinctID != ""
	c.distinctID = s.distinctID

	if hadPriorIdentity {
		// Don't link the old anonymous id to the new identified user.
		c.anonDistinctID = newEventUUID().String()
	}

	c.persistIdentity()
	c.emitSystemEvent("$identify", nil)
}

func (c *collator) handleAlias(s aliasSignal) {
	c.emitSystemEvent("$create_alias", map[string]any{"alias": s.alias})
}

func (c *collator) handleAddGroup(s addGroupSignal) {
	c.groups[s.groupType] = s.memberID
	c.persistIdentity()
}

func (c *collator) handleReset() {
	c.distinctID = ""
	c.anonDistinctID = newEventUUID().String()
	c.persistIdentity()
}

// emitSystemEvent builds and forwards a library-generated event (as
// opposed to one enqueued through Recorder.Record), such as
// $identify or $create_alias. Identity bookkeeping (persistIdentity,
// the in-memory distinct_id/groups state) still happens when
// telemetry is disabled; only the resulting event is discarded, same
// as any other event submission.
func (c *collator) emitSystemEvent(name string, extra map[string]any) {
	if c.disabled {
		return
	}

	properties := mergeProperties(c.config.Options(), c.correlationExtra, extra, c.facts)
	c.out <- collatedEvent{event: event.EnrichedEvent{
		UUID:           newEventUUID(),
		Name:           name,
		DistinctID:     c.currentDistinctID(),
		Timestamp:      c.clk.Now(),
		SessionID:      c.sessionID,
		DeviceID:       c.deviceID,
		AnonDistinctID: c.anonDistinctID,
		Snapshot:       c.snapshotter.Snapshot(),
		Groups:         c.groups,
		Library:        c.library,
		Properties:     properties,
	}}
}

func (c *collator) persistIdentity() {
	if c.distinctID != "" {
		if err := c.storage.Set(storage.KeyDistinctID, c.distinctID); err != nil {
			c.logger.Debug("collator: storage error persisting distinct_id", "error", err)
		}
	}
	if err := c.storage.Set(storage.KeyAnonDistinctID, c.anonDistinctID); err != nil {
		c.logger.Debug("collator: storage error persisting anon_distinct_id", "error", err)
	}
}

// mergeProperties layers maps lowest-precedence-first: each later
// layer overwrites keys from earlier ones. nil layers are skipped.
func mergeProperties(layers ...map[string]any) map[string]any {
	merged := make(map[string]any)
	for _, layer := range layers {
		for key, value := range layer {
			merged[key] = value
		}
	}
	return merged
}

// mergeGroups unions base and override, with override winning on key
// collision.
func mergeGroups(base, override map[string]string) map[string]string {
	merged := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range override {
		merged[k] = v
	}
	return merged
}

// newEventUUID assigns a UUIDv7 so identifiers are monotonic with
// time; a v7 generation failure (practically unreachable: it only
// fails if the OS random source is unavailable) falls back to v4.
func newEventUUID() uuid.UUID {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return id
}
