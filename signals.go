// Copyright 2026 Determinate Systems, Inc.
// SPDX-License-Identifier: Apache-2.0

package detsysids

import "github.com/DeterminateSystems/detsys-ids-client/event"

// rawSignal is a message enqueued by a Recorder handle and consumed
// by the Collator. Every Recorder operation that is not a direct read
// of the configuration proxy turns into exactly one rawSignal.
type rawSignal interface{ isRawSignal() }

type eventSignal struct {
	name       string
	properties map[string]any
	groups     map[string]string
}

type factSignal struct {
	key   string
	value any
}

type identifySignal struct {
	distinctID string
}

type aliasSignal struct {
	alias string
}

type addGroupSignal struct {
	groupType string
	memberID  string
}

type resetSignal struct{}

// flushNowSignal asks the Collator to forward a flush request to the
// Submitter immediately rather than waiting for its next batching
// trigger. done is closed once the Submitter has finished the flush
// attempt. The final flush at shutdown does not use this signal: the
// Collator sends the Submitter a collatedFlushNow with a nil done.
type flushNowSignal struct {
	done chan struct{}
}

func (eventSignal) isRawSignal()    {}
func (factSignal) isRawSignal()     {}
func (identifySignal) isRawSignal() {}
func (aliasSignal) isRawSignal()    {}
func (addGroupSignal) isRawSignal() {}
func (resetSignal) isRawSignal()    {}
func (flushNowSignal) isRawSignal() {}

// collatedSignal is a message the Collator hands to the Submitter:
// either a fully enriched event or a request to flush whatever is
// pending right now.
type collatedSignal interface{ isCollatedSignal() }

type collatedEvent struct {
	event event.EnrichedEvent
}

type collatedFlushNow struct {
	done chan struct{}
}

func (collatedEvent) isCollatedSignal()    {}
func (collatedFlushNow) isCollatedSignal() {}
