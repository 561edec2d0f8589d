// Copyright 2026 Determinate Systems, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package event defines the wire data model shared by the recorder,
// collator, submitter, and transport: the caller-supplied Event, the
// Collator's immutable EnrichedEvent, and the upload Batch. The
// EnrichedEvent JSON shape is compatible with the PostHog ingestion
// API.
package event

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event is the shape of a caller-side base event. Recorder.Record
// does not take an Event: it takes the name, properties, and groups
// as separate arguments, and the Collator builds the EnrichedEvent
// from those.
type Event struct {
	Name       string
	DistinctID string
	Properties map[string]any
	Groups     map[string]string
	// Timestamp is not read by the pipeline. The Collator stamps each
	// EnrichedEvent with its clock's current time when it enriches the
	// event, not at the moment Record is called.
	Timestamp time.Time
}

// LibraryInfo identifies the client library that produced an event.
type LibraryInfo struct {
	Name    string
	Version string
}

// EnrichedEvent is the immutable, fully-resolved event produced by the
// Collator and handed to the Submitter. Once constructed it must not be
// mutated. The Submitter may serialize the same EnrichedEvent more
// than once across batch retries.
type EnrichedEvent struct {
	UUID           uuid.UUID
	Name           string
	DistinctID     string
	Timestamp      time.Time
	SessionID      string
	DeviceID       string
	AnonDistinctID string
	Snapshot       Snapshot
	Correlation    map[string]any
	Groups         map[string]string
	Library        LibraryInfo
	Properties     map[string]any
}

// Snapshot is the subset of SystemSnapshot fields the event package
// needs to know about in order to serialize an EnrichedEvent. The full
// definition (and the component that produces it) lives in the
// snapshot package; this module-local mirror avoids an import cycle
// between event and snapshot while keeping EnrichedEvent self-
// contained for JSON marshaling.
type Snapshot struct {
	OS             string
	OSVersion      string
	Arch           string
	HostnameHash   string
	CPUCount       int
	MemBytes       uint64
	DiskUsedBytes  uint64
	DiskTotalBytes uint64
	Locale         string
	Timezone       string
	InCI           bool
	ThermalState   *string
}

// addTo merges the snapshot's fields into properties under their
// $-prefixed wire keys. Snapshot fields sit at the lowest precedence
// in the property merge, so callers set properties after calling
// this to override any of these keys.
func (s Snapshot) addTo(properties map[string]any) {
	properties["$os"] = s.OS
	properties["$os_version"] = s.OSVersion
	properties["$arch"] = s.Arch
	properties["$hostname_hash"] = s.HostnameHash
	properties["$cpu_count"] = s.CPUCount
	properties["$mem_bytes"] = s.MemBytes
	properties["$disk_used_bytes"] = s.DiskUsedBytes
	properties["$disk_total_bytes"] = s.DiskTotalBytes
	properties["$locale"] = s.Locale
	properties["$timezone"] = s.Timezone
	properties["$in_ci"] = s.InCI
	if s.ThermalState != nil {
		properties["$thermal_state"] = *s.ThermalState
	}
}

// posthogEvent is the PostHog-compatible wire shape for an
// EnrichedEvent. Reserved property keys are forced here rather than
// left to map insertion order so that they can never be shadowed by a
// caller-supplied property of the same name.
type posthogEvent struct {
	UUID       string         `json:"uuid"`
	Event      string         `json:"event"`
	DistinctID string         `json:"distinct_id"`
	Timestamp  string         `json:"timestamp"`
	Properties map[string]any `json:"properties"`
}

// MarshalJSON renders the EnrichedEvent in the PostHog-compatible wire
// shape: uuid, event, distinct_id, timestamp (RFC 3339), and a
// properties object carrying the reserved $-prefixed identity/library
// fields alongside snapshot and caller fields.
func (e EnrichedEvent) MarshalJSON() ([]byte, error) {
	properties := make(map[string]any, len(e.Properties)+20)
	e.Snapshot.addTo(properties)
	for k, v := range e.Properties {
		properties[k] = v
	}

	properties["$session_id"] = e.SessionID
	properties["$device_id"] = e.DeviceID
	properties["$anon_distinct_id"] = e.AnonDistinctID
	properties["$groups"] = e.Groups
	properties["$lib"] = e.Library.Name
	properties["$lib_version"] = e.Library.Version

	wire := posthogEvent{
		UUID:       e.UUID.String(),
		Event:      e.Name,
		DistinctID: e.DistinctID,
		Timestamp:  e.Timestamp.UTC().Format(time.RFC3339Nano),
		Properties: properties,
	}
	return json.Marshal(wire)
}

// Batch is an ordered sequence of EnrichedEvents awaiting upload,
// along with the bookkeeping the Submitter needs to retry it.
type Batch struct {
	ID      uuid.UUID
	Events  []EnrichedEvent
	Attempt int
}

// NewBatch creates a Batch from the given events, stamped with a fresh
// batch identifier.
func NewBatch(events []EnrichedEvent) Batch {
	return Batch{ID: uuid.New(), Events: events}
}

// MarshalJSON renders a Batch as the plain JSON array of events the
// wire protocol expects (the batch ID and attempt counter are
// upload-side bookkeeping, not part of the payload).
func (b Batch) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.Events)
}

// FeatureFlag is a single feature flag's resolved variant and payload,
// as returned by a check-in.
type FeatureFlag struct {
	Variant string
	Payload any
}

// CheckinResponse is the parsed result of a transport check-in call:
// server-supplied options, feature flags, and an optional endpoint
// override.
type CheckinResponse struct {
	Options          map[string]any
	Features         map[string]FeatureFlag
	EndpointOverride string
}

// checkinFeatureWire is the wire shape of a single feature flag within
// a check-in response.
type checkinFeatureWire struct {
	Variant string `json:"variant"`
	Payload any    `json:"payload"`
}

// checkinResponseWire is the wire shape of a check-in response body.
type checkinResponseWire struct {
	Options          map[string]any                `json:"options"`
	Features         map[string]checkinFeatureWire `json:"features"`
	EndpointOverride string                         `json:"endpoint_override,omitempty"`
}

// UnmarshalJSON parses a check-in response body.
func (c *CheckinResponse) UnmarshalJSON(data []byte) error {
	var wire checkinResponseWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	c.Options = wire.Options
	c.EndpointOverride = wire.EndpointOverride
	if wire.Features != nil {
		c.Features = make(map[string]FeatureFlag, len(wire.Features))
		for name, feature := range wire.Features {
			c.Features[name] = FeatureFlag{Variant: feature.Variant, Payload: feature.Payload}
		}
	}
	return nil
}

// MarshalJSON renders a CheckinResponse back to its wire shape.
func (c CheckinResponse) MarshalJSON() ([]byte, error) {
	wire := checkinResponseWire{
		Options:          c.Options,
		EndpointOverride: c.EndpointOverride,
	}
	if c.Features != nil {
		wire.Features = make(map[string]checkinFeatureWire, len(c.Features))
		for name, feature := range c.Features {
			wire.Features[name] = checkinFeatureWire{Variant: feature.Variant, Payload: feature.Payload}
		}
	}
	return json.Marshal(wire)
}
