// Copyright 2026 Determinate Systems, Inc.
// SPDX-License-Identifier: Apache-2.0

package configproxy

import (
	"testing"

	"github.com/DeterminateSystems/detsys-ids-client/event"
)

func TestEmptyProxyHasNoFeatures(t *testing.T) {
	p := New()
	if p.HasCheckedIn() {
		t.Fatal("expected HasCheckedIn false before any Replace")
	}
	if _, ok := p.GetFeature("anything"); ok {
		t.Fatal("expected no feature before any check-in")
	}
}

func TestReplaceIsVisibleToReaders(t *testing.T) {
	p := New()
	p.Replace(event.CheckinResponse{
		Options:          map[string]any{"a": 1},
		Features:         map[string]event.FeatureFlag{"f": {Variant: "on"}},
		EndpointOverride: "https://override.example",
	})

	flag, ok := p.GetFeature("f")
	if !ok || flag.Variant != "on" {
		t.Fatalf("GetFeature(f) = %+v, %v", flag, ok)
	}
	if p.Options()["a"] != 1 {
		t.Fatalf("Options() = %+v", p.Options())
	}
	if p.EndpointOverride() != "https://override.example" {
		t.Fatalf("EndpointOverride() = %q", p.EndpointOverride())
	}
}

func TestReplaceAtomicallyReplacesPriorContent(t *testing.T) {
	p := New()
	p.Replace(event.CheckinResponse{Features: map[string]event.FeatureFlag{"old": {Variant: "on"}}})
	p.Replace(event.CheckinResponse{Features: map[string]event.FeatureFlag{"new": {Variant: "on"}}})

	if _, ok := p.GetFeature("old"); ok {
		t.Fatal("expected old feature to be gone after replace")
	}
	if _, ok := p.GetFeature("new"); !ok {
		t.Fatal("expected new feature to be present")
	}
}
