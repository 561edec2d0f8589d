// Copyright 2026 Determinate Systems, Inc.
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"fmt"
	"testing"

	"github.com/DeterminateSystems/detsys-ids-client/storage"
)

type fakeSource struct {
	values map[string]string
}

func (f fakeSource) Get(key string) (string, bool) {
	v, ok := f.values[key]
	return v, ok
}

type fakeStorage struct {
	fakeSource
	sets map[string]string
}

func (f *fakeStorage) Set(key, value string) error {
	if f.sets == nil {
		f.sets = map[string]string{}
	}
	f.sets[key] = value
	return nil
}
func (f *fakeStorage) Flush() error { return nil }

// TestResolveFieldPrecedence exercises all 16 combinations of which
// sources are present (read-only, storage, correlation, caller) for a
// single identity field, confirming the highest-precedence present
// source always wins and absent sources fall through correctly.
func TestResolveFieldPrecedence(t *testing.T) {
	const key = storage.KeyDeviceID

	allCombinations := func() []struct {
		readOnly, stored, correlation, caller bool
	} {
		var out []struct{ readOnly, stored, correlation, caller bool }
		for mask := 0; mask < 16; mask++ {
			out = append(out, struct{ readOnly, stored, correlation, caller bool }{
				readOnly:    mask&8 != 0,
				stored:      mask&4 != 0,
				correlation: mask&2 != 0,
				caller:      mask&1 != 0,
			})
		}
		return out
	}

	type testCase struct {
		name           string
		readOnly       string
		stored         string
		correlation    string
		caller         string
		wantFromSource string // "readonly", "storage", "correlation", "caller", or "" for generated
	}

	var cases []testCase
	for _, combo := range allCombinations() {
		tc := testCase{}
		if combo.readOnly {
			tc.readOnly = "ro-v"
		}
		if combo.stored {
			tc.stored = "stored-v"
		}
		if combo.correlation {
			tc.correlation = "corr-v"
		}
		if combo.caller {
			tc.caller = "caller-v"
		}

		switch {
		case combo.readOnly:
			tc.wantFromSource = "readonly"
		case combo.stored:
			tc.wantFromSource = "storage"
		case combo.correlation:
			tc.wantFromSource = "correlation"
		case combo.caller:
			tc.wantFromSource = "caller"
		default:
			tc.wantFromSource = ""
		}

		tc.name = fmt.Sprintf("ro=%v storage=%v correlation=%v caller=%v",
			combo.readOnly, combo.stored, combo.correlation, combo.caller)
		cases = append(cases, tc)
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ro := fakeSource{values: map[string]string{}}
			if tc.readOnly != "" {
				ro.values[key] = tc.readOnly
			}
			st := &fakeStorage{fakeSource: fakeSource{values: map[string]string{}}}
			if tc.stored != "" {
				st.values[key] = tc.stored
			}

			r := &resolver{readOnly: ro, store: st}
			got := r.resolveField(key, tc.correlation, tc.caller)

			switch tc.wantFromSource {
			case "readonly":
				if got != tc.readOnly {
					t.Fatalf("got %q, want read-only value %q", got, tc.readOnly)
				}
			case "storage":
				if got != tc.stored {
					t.Fatalf("got %q, want stored value %q", got, tc.stored)
				}
			case "correlation":
				if got != tc.correlation {
					t.Fatalf("got %q, want correlation value %q", got, tc.correlation)
				}
			case "caller":
				if got != tc.caller {
					t.Fatalf("got %q, want caller value %q", got, tc.caller)
				}
			case "":
				if got == "" {
					t.Fatal("expected a generated value, got empty string")
				}
				if _, wasSet := st.sets[key]; !wasSet {
					t.Fatal("expected generated value to be lazily written to storage")
				}
			}
		})
	}
}

func TestResolveDoesNotWriteWhenValueCameFromCorrelationOrCaller(t *testing.T) {
	ro := fakeSource{values: map[string]string{}}
	st := &fakeStorage{fakeSource: fakeSource{values: map[string]string{}}}

	r := &resolver{readOnly: ro, store: st}
	r.resolveField(storage.KeyDeviceID, "corr-v", "")

	if _, wasSet := st.sets[storage.KeyDeviceID]; wasSet {
		t.Fatal("should not write to storage when correlation supplied the value")
	}
}

func TestResolveOptionalFieldHasNoGeneratedFallback(t *testing.T) {
	ro := fakeSource{values: map[string]string{}}
	st := &fakeStorage{fakeSource: fakeSource{values: map[string]string{}}}
	r := &resolver{readOnly: ro, store: st}

	if got := r.resolveOptionalField(storage.KeyDistinctID, "", ""); got != "" {
		t.Fatalf("got %q, want empty string with no sources present", got)
	}
	if _, wasSet := st.sets[storage.KeyDistinctID]; wasSet {
		t.Fatal("resolveOptionalField must never write a generated value to storage")
	}
}

func TestResolveDistinctIDFallsBackToAnonDistinctIDFromCorrelation(t *testing.T) {
	ro := fakeSource{values: map[string]string{}}
	st := &fakeStorage{fakeSource: fakeSource{values: map[string]string{}}}

	got := Resolve(ro, st, Data{AnonDistinctID: "corr-anon"}, "")
	if got.DistinctID != "corr-anon" {
		t.Fatalf("DistinctID = %q, want corr-anon (from $anon_distinct_id correlation)", got.DistinctID)
	}
}

func TestResolveDistinctIDEmptyWhenUnidentified(t *testing.T) {
	ro := fakeSource{values: map[string]string{}}
	st := &fakeStorage{fakeSource: fakeSource{values: map[string]string{}}}

	got := Resolve(ro, st, Data{}, "")
	if got.DistinctID != "" {
		t.Fatalf("DistinctID = %q, want empty string for an unidentified process", got.DistinctID)
	}
	if got.AnonDistinctID == "" {
		t.Fatal("expected a generated AnonDistinctID")
	}
}

func TestResolveSessionIDPrefersCorrelation(t *testing.T) {
	got := resolveSessionID(Data{SessionID: "sess-1"})
	if got != "sess-1" {
		t.Fatalf("got %q, want sess-1", got)
	}

	generated := resolveSessionID(Data{})
	if generated == "" {
		t.Fatal("expected a generated session id")
	}
}
