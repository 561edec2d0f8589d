// Copyright 2026 Determinate Systems, Inc.
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/DeterminateSystems/detsys-ids-client/internal/clock"
)

func fixedLookup(records []*net.SRV) lookupFunc {
	return func(service, proto, name string) (string, []*net.SRV, error) {
		return "", records, nil
	}
}

func srvFromServer(t *testing.T, server *httptest.Server, priority, weight uint16) *net.SRV {
	t.Helper()
	url := strings.TrimPrefix(server.URL, "http://")
	host, portStr, err := net.SplitHostPort(url)
	if err != nil {
		t.Fatal(err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatal(err)
	}
	return &net.SRV{Target: host, Port: uint16(port), Priority: priority, Weight: weight}
}

func TestSRVHTTPPrefersLowerPriorityTier(t *testing.T) {
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"options":{},"features":{}}`))
	}))
	defer good.Close()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()

	records := []*net.SRV{
		srvFromServer(t, bad, 10, 1),
		srvFromServer(t, good, 1, 1),
	}

	s := NewSRVHTTP("example.internal", &http.Client{}, clock.Fake(time.Unix(0, 0)))
	s.lookup = fixedLookup(records)

	endpoints, _, err := s.endpointsForAttempt()
	if err != nil {
		t.Fatal(err)
	}
	if len(endpoints) != 2 {
		t.Fatalf("expected 2 endpoints, got %d", len(endpoints))
	}
	if endpoints[0].priority != 1 {
		t.Fatalf("expected priority-1 endpoint first, got priority %d", endpoints[0].priority)
	}
}

// TestSRVHTTPFallsBackToNextEndpointOnRetryableError exercises
// withEachEndpoint's rotation contract directly against fake
// callbacks: endpoint.baseURL() always builds https://, which plain
// httptest servers cannot serve, so the endpoint list here only needs
// to have the right length and the callback stands in for the actual
// HTTP call.
func TestSRVHTTPFallsBackToNextEndpointOnRetryableError(t *testing.T) {
	records := []*net.SRV{
		{Target: "a.internal", Port: 443, Priority: 1, Weight: 1},
		{Target: "b.internal", Port: 443, Priority: 1, Weight: 1},
	}

	s := NewSRVHTTP("example.internal", &http.Client{}, clock.Fake(time.Unix(0, 0)))
	s.lookup = fixedLookup(records)

	var seen []string
	err := s.withEachEndpoint(func(base string) error {
		seen = append(seen, base)
		if len(seen) == 1 {
			return networkError(errFailing)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if len(seen) != 2 {
		t.Fatalf("expected exactly 2 attempts, got %d", len(seen))
	}
	if seen[0] == seen[1] {
		t.Fatal("expected the second attempt to use a different endpoint")
	}
}

func TestSRVHTTPTotalFailureAdvancesCursor(t *testing.T) {
	records := []*net.SRV{
		{Target: "a.internal", Port: 443, Priority: 1, Weight: 1},
		{Target: "b.internal", Port: 443, Priority: 1, Weight: 1},
	}

	s := NewSRVHTTP("example.internal", &http.Client{}, clock.Fake(time.Unix(0, 0)))
	s.lookup = fixedLookup(records)

	var attempts int
	err := s.withEachEndpoint(func(base string) error {
		attempts++
		return networkError(errFailing)
	})
	if err == nil {
		t.Fatal("expected total failure to surface an error")
	}
	if attempts != len(records) {
		t.Fatalf("expected exactly %d attempts, got %d", len(records), attempts)
	}

	cursorAfterFirstRound := s.cursor

	attempts = 0
	err = s.withEachEndpoint(func(base string) error {
		attempts++
		return networkError(errFailing)
	})
	if err == nil {
		t.Fatal("expected total failure to surface an error")
	}
	if s.cursor == cursorAfterFirstRound {
		t.Fatal("expected cursor to advance again after a second total failure")
	}
}

var errFailing = &testError{"simulated failure"}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }
