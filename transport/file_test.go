// Copyright 2026 Determinate Systems, Inc.
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFileCheckinMissingFileReturnsEmptyResponse(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkin.json")
	transport := NewFile(path)

	checkin, err := transport.Checkin(context.Background())
	if err != nil {
		t.Fatalf("Checkin: %v", err)
	}
	if checkin.Options == nil || len(checkin.Options) != 0 {
		t.Fatalf("expected empty options, got %+v", checkin.Options)
	}
}

func TestFileCheckinHonorsEnvOverride(t *testing.T) {
	dir := t.TempDir()
	submitPath := filepath.Join(dir, "submit.json")
	checkinPath := filepath.Join(dir, "checkin.json")
	if err := os.WriteFile(checkinPath, []byte(`{"options":{"x":true},"features":{}}`), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DETSYS_IDS_CHECKIN_FILE", checkinPath)

	transport := NewFile(submitPath)
	checkin, err := transport.Checkin(context.Background())
	if err != nil {
		t.Fatalf("Checkin: %v", err)
	}
	if checkin.Options["x"] != true {
		t.Fatalf("expected options.x == true, got %+v", checkin.Options)
	}
}

func TestFileSubmitAppendsJSONArraysInOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.json")
	transport := NewFile(path)

	batches := [][]string{{"a", "b"}, {"c"}}
	for _, names := range batches {
		raw, _ := json.Marshal(names)
		if err := transport.Submit(context.Background(), Compress(raw)); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), data)
	}

	var first, second []string
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatal(err)
	}
	if first[0] != "a" || first[1] != "b" || second[0] != "c" {
		t.Fatalf("unexpected order: %v %v", first, second)
	}
}
