// Copyright 2026 Determinate Systems, Inc.
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"github.com/google/uuid"

	"github.com/DeterminateSystems/detsys-ids-client/storage"
)

// Resolved holds the four identity values the Worker resolves once at
// startup and holds stable for the process lifetime.
type Resolved struct {
	DistinctID     string
	AnonDistinctID string
	DeviceID       string
	SessionID      string
}

// Resolve computes the stable identity for this process, following a
// first-non-empty-source precedence: the read-only identity file,
// then mutable Storage, then DETSYS_CORRELATION, then the
// caller-supplied default, then a freshly generated UUIDv4.
//
// A value is written back to store only when it had to be generated.
// If Storage already held a value, or correlation/caller supplied
// one, Storage is left untouched.
func Resolve(readOnly storage.Source, store storage.Storage, correlation Data, callerDistinctID string) Resolved {
	resolver := &resolver{readOnly: readOnly, store: store}

	return Resolved{
		// distinct_id has no generated fallback: Storage, then the
		// $anon_distinct_id correlation value, then the caller's
		// default. Left empty when none of those supply one, so an
		// unidentified process's events fall back to the anon id
		// rather than shipping an unrelated generated distinct_id.
		DistinctID:     resolver.resolveOptionalField(storage.KeyDistinctID, correlation.AnonDistinctID, callerDistinctID),
		AnonDistinctID: resolver.resolveField(storage.KeyAnonDistinctID, correlation.AnonDistinctID, ""),
		DeviceID:       resolver.resolveField(storage.KeyDeviceID, correlation.DeviceID, ""),
		SessionID:      resolveSessionID(correlation),
	}
}

// resolveSessionID has no Storage tier: session lifetime equals
// process lifetime by design.
func resolveSessionID(correlation Data) string {
	if correlation.SessionID != "" {
		return correlation.SessionID
	}
	return uuid.NewString()
}

type resolver struct {
	readOnly storage.Source
	store    storage.Storage
}

// resolveField implements a fixed five-step ordered-source lookup:
// read-only file, mutable storage, correlation, caller, generate. It
// is intentionally the same shape for every field so the rule stays
// auditable.
func (r *resolver) resolveField(key, correlationValue, callerValue string) string {
	if value, ok := r.readOnly.Get(key); ok && value != "" {
		return value
	}
	if value, ok := r.store.Get(key); ok && value != "" {
		return value
	}
	if correlationValue != "" {
		return correlationValue
	}
	if callerValue != "" {
		return callerValue
	}

	generated := uuid.NewString()
	// Best-effort: a failed lazy-write does not block startup, the
	// value is still stable for this process's lifetime. It simply
	// won't survive a restart.
	_ = r.store.Set(key, generated)
	return generated
}

// resolveOptionalField is resolveField without the generate-and-persist
// final step: it returns "" when none of the read-only file, storage,
// correlation, or caller tiers supply a value, rather than manufacturing
// one. Used for fields that have a defined empty/unidentified state.
func (r *resolver) resolveOptionalField(key, correlationValue, callerValue string) string {
	if value, ok := r.readOnly.Get(key); ok && value != "" {
		return value
	}
	if value, ok := r.store.Get(key); ok && value != "" {
		return value
	}
	if correlationValue != "" {
		return correlationValue
	}
	return callerValue
}
