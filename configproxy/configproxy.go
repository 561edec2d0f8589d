// Copyright 2026 Determinate Systems, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package configproxy holds the most recently received check-in
// response and exposes it to readers without blocking the single
// writer (the Worker, on receiving a new check-in).
package configproxy

import (
	"sync/atomic"

	"github.com/DeterminateSystems/detsys-ids-client/event"
)

// Proxy holds the last CheckinResponse behind an atomic pointer so
// reads never block the writer and writers never block readers.
// Before the first successful check-in, reads see a zero response.
type Proxy struct {
	current atomic.Pointer[event.CheckinResponse]
}

// New creates an empty Proxy. GetFeature and Options return their
// zero values until the first Replace.
func New() *Proxy {
	return &Proxy{}
}

// Replace atomically installs response as the current check-in
// result. It is the single-writer operation; callers other than the
// Worker must not call this.
func (p *Proxy) Replace(response event.CheckinResponse) {
	p.current.Store(&response)
}

// GetFeature returns the named feature flag and whether a check-in
// has ever populated it.
func (p *Proxy) GetFeature(name string) (event.FeatureFlag, bool) {
	current := p.current.Load()
	if current == nil {
		return event.FeatureFlag{}, false
	}
	flag, ok := current.Features[name]
	return flag, ok
}

// Options returns the last check-in's options map, or nil if no
// check-in has completed yet.
func (p *Proxy) Options() map[string]any {
	current := p.current.Load()
	if current == nil {
		return nil
	}
	return current.Options
}

// EndpointOverride returns the last check-in's endpoint override, or
// "" if none was supplied or no check-in has completed.
func (p *Proxy) EndpointOverride() string {
	current := p.current.Load()
	if current == nil {
		return ""
	}
	return current.EndpointOverride
}

// HasCheckedIn reports whether any check-in has ever succeeded.
func (p *Proxy) HasCheckedIn() bool {
	return p.current.Load() != nil
}
