// Copyright 2026 Determinate Systems, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package snapshot produces SystemSnapshot values: volatile host facts
// (CPU count, memory, disk usage, thermal state, CI indicators) that
// the Collator attaches to every event under the "$" property prefix.
//
// Individual field probes are independently fallible. A failure to
// read one field never prevents the snapshot from being produced; the
// field is simply left at its zero value. Snapshot construction itself
// never returns an error, matching the contract OS-level probes follow
// elsewhere in this ecosystem (e.g. a hardware inventory probe that
// reports a headless VM with no GPUs rather than failing outright).
package snapshot

import (
	"runtime"
	"sync"
	"time"

	"github.com/DeterminateSystems/detsys-ids-client/event"
	"github.com/DeterminateSystems/detsys-ids-client/internal/clock"
)

// TTL is the default time a cached snapshot is considered fresh enough
// to reuse without re-probing the host.
const TTL = 60 * time.Second

// PlatformQuerier isolates the OS-specific leaves of snapshot
// production: a platform-specific implementation supplies the
// platform-specific reads, and Snapshotter above it is otherwise
// platform-agnostic.
type PlatformQuerier interface {
	// OSVersion returns the operating system's release/version string.
	OSVersion() string

	// CPUCount returns the number of usable CPUs.
	CPUCount() int

	// MemoryBytes returns total physical memory in bytes.
	MemoryBytes() (uint64, error)

	// DiskUsage returns used and total bytes for the filesystem
	// containing path.
	DiskUsage(path string) (used, total uint64, err error)

	// Locale returns the process's configured locale, e.g. "en_US.UTF-8".
	Locale() string

	// Timezone returns the process's configured timezone name.
	Timezone() string

	// Hostname returns the machine's hostname.
	Hostname() (string, error)

	// ThermalState returns a best-effort thermal state description,
	// or "" if unavailable.
	ThermalState() string
}

// Snapshotter produces SystemSnapshot values, caching the last one
// produced so that rapid-fire events within the TTL reuse it instead
// of re-probing the host on every call.
type Snapshotter struct {
	querier PlatformQuerier
	clk     clock.Clock
	ttl     time.Duration

	mu       sync.Mutex
	cached   event.Snapshot
	cachedAt time.Time // zero means "never produced"
}

// New creates a Snapshotter backed by querier, using clk as the time
// source for TTL bookkeeping.
func New(querier PlatformQuerier, clk clock.Clock) *Snapshotter {
	return &Snapshotter{querier: querier, clk: clk, ttl: TTL}
}

// Snapshot returns a fresh or cached-within-TTL SystemSnapshot. Safe
// for concurrent use.
func (s *Snapshotter) Snapshot() event.Snapshot {
	now := s.clk.Now()

	s.mu.Lock()
	if !s.cachedAt.IsZero() && now.Sub(s.cachedAt) < s.ttl {
		cached := s.cached
		s.mu.Unlock()
		return cached
	}
	s.mu.Unlock()

	fresh := s.probe()

	s.mu.Lock()
	s.cached = fresh
	s.cachedAt = now
	s.mu.Unlock()

	return fresh
}

// probe queries every field independently so that one failing probe
// never prevents the others from being reported.
func (s *Snapshotter) probe() event.Snapshot {
	snap := event.Snapshot{
		OS:        runtime.GOOS,
		OSVersion: s.querier.OSVersion(),
		Arch:      runtime.GOARCH,
		CPUCount:  s.querier.CPUCount(),
		Locale:    s.querier.Locale(),
		Timezone:  s.querier.Timezone(),
		InCI:      detectCI(),
	}

	if hostname, err := s.querier.Hostname(); err == nil {
		snap.HostnameHash = hashHostname(hostname)
	}

	if memBytes, err := s.querier.MemoryBytes(); err == nil {
		snap.MemBytes = memBytes
	}

	if used, total, err := s.querier.DiskUsage("."); err == nil {
		snap.DiskUsedBytes = used
		snap.DiskTotalBytes = total
	}

	if thermal := s.querier.ThermalState(); thermal != "" {
		snap.ThermalState = &thermal
	}

	return snap
}
