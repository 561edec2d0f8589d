// Copyright 2026 Determinate Systems, Inc.
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/DeterminateSystems/detsys-ids-client/event"
	"github.com/DeterminateSystems/detsys-ids-client/internal/clock"
)

// srvResolveTTL is the floor on how often the endpoint set is
// re-resolved. net.LookupSRV does not surface per-record TTLs on most
// resolvers, so a fixed refresh floor is used instead. An Open
// Question decision recorded in DESIGN.md.
const srvResolveTTL = 60 * time.Second

// srvService and srvProto select the SRV record looked up for
// recordName: _ids._https.<recordName>.
const (
	srvService = "ids"
	srvProto   = "https"
)

// endpoint is one resolved SRV target.
type endpoint struct {
	host     string
	port     uint16
	priority uint16
	weight   uint16
}

func (e endpoint) baseURL() string {
	return fmt.Sprintf("https://%s:%d", e.host, e.port)
}

// lookupFunc matches net.LookupSRV's signature, overridable in tests.
type lookupFunc func(service, proto, name string) (cname string, addrs []*net.SRV, err error)

// SRVHTTP is the SRV-resolved HTTP Transport variant. It resolves
// recordName to a list of (host, port, priority, weight) endpoints,
// caches the result for srvResolveTTL, and tries endpoints in
// priority-then-weighted-shuffle order, falling back to the next
// endpoint on a retryable error. All failing, the rotating cursor
// advances so the next call starts from a different endpoint.
type SRVHTTP struct {
	recordName string
	client     *http.Client
	clk        clock.Clock
	lookup     lookupFunc

	mu         sync.Mutex
	endpoints  []endpoint // priority-ascending, weighted-shuffled within tier
	resolvedAt time.Time
	cursor     int
}

// NewSRVHTTP creates a Transport that resolves recordName via DNS SRV
// records before each operation, re-resolving when the cached set is
// older than srvResolveTTL.
func NewSRVHTTP(recordName string, client *http.Client, clk clock.Clock) *SRVHTTP {
	if client == nil {
		client = &http.Client{Timeout: RequestTimeout}
	}
	return &SRVHTTP{
		recordName: recordName,
		client:     client,
		clk:        clk,
		lookup:     net.LookupSRV,
	}
}

func (s *SRVHTTP) Checkin(ctx context.Context) (event.CheckinResponse, error) {
	var result event.CheckinResponse
	err := s.withEachEndpoint(func(base string) error {
		http := NewHTTP(base, s.client)
		checkin, err := http.Checkin(ctx)
		if err == nil {
			result = checkin
		}
		return err
	})
	return result, err
}

func (s *SRVHTTP) Submit(ctx context.Context, compressed []byte) error {
	return s.withEachEndpoint(func(base string) error {
		return NewHTTP(base, s.client).Submit(ctx, compressed)
	})
}

func (s *SRVHTTP) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

// withEachEndpoint resolves (or reuses the cached resolution of) the
// endpoint list, then tries op against each endpoint in rotation
// order, stopping at the first success or the first non-retryable
// error. If every endpoint fails retryably, the cursor still
// advances so the next call starts from a new endpoint, and the last
// error is returned.
func (s *SRVHTTP) withEachEndpoint(op func(baseURL string) error) error {
	endpoints, startAt, err := s.endpointsForAttempt()
	if err != nil {
		return err
	}

	var lastErr error
	for i := 0; i < len(endpoints); i++ {
		ep := endpoints[(startAt+i)%len(endpoints)]
		lastErr = op(ep.baseURL())
		if lastErr == nil {
			return nil
		}
		transportErr, ok := lastErr.(*Error)
		if !ok || !transportErr.Retryable {
			return lastErr
		}
	}

	s.advanceCursor(len(endpoints))
	return lastErr
}

// endpointsForAttempt returns the current endpoint set and the index
// to start this attempt's rotation from.
func (s *SRVHTTP) endpointsForAttempt() ([]endpoint, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.clk == nil {
		s.clk = clock.Real()
	}

	if s.endpoints == nil || s.clk.Now().Sub(s.resolvedAt) >= srvResolveTTL {
		resolved, err := s.resolveLocked()
		if err != nil {
			if s.endpoints != nil {
				// Stale-but-present beats no endpoints at all.
				return s.endpoints, s.cursor, nil
			}
			return nil, 0, networkError(fmt.Errorf("resolving SRV record %q: %w", s.recordName, err))
		}
		s.endpoints = resolved
		s.resolvedAt = s.clk.Now()
		s.cursor = 0
	}

	return s.endpoints, s.cursor, nil
}

// resolveLocked performs the DNS SRV lookup and orders the result
// priority-ascending, with a weighted shuffle within each priority
// tier (Design Note §9's PriorityList).
func (s *SRVHTTP) resolveLocked() ([]endpoint, error) {
	_, records, err := s.lookup(srvService, srvProto, s.recordName)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("no SRV records for %q", s.recordName)
	}

	endpoints := make([]endpoint, len(records))
	for i, record := range records {
		endpoints[i] = endpoint{
			host:     trimTrailingDot(record.Target),
			port:     record.Port,
			priority: record.Priority,
			weight:   record.Weight,
		}
	}

	sort.SliceStable(endpoints, func(i, j int) bool {
		return endpoints[i].priority < endpoints[j].priority
	})

	weightedShuffleTiers(endpoints)
	return endpoints, nil
}

// weightedShuffleTiers shuffles each equal-priority run in place,
// biased by weight: higher-weight endpoints are more likely to sort
// earlier within their tier. endpoints must already be sorted by
// priority ascending.
func weightedShuffleTiers(endpoints []endpoint) {
	start := 0
	for start < len(endpoints) {
		end := start + 1
		for end < len(endpoints) && endpoints[end].priority == endpoints[start].priority {
			end++
		}
		shuffleTierByWeight(endpoints[start:end])
		start = end
	}
}

// shuffleTierByWeight repeatedly draws a weighted-random remaining
// endpoint and places it next, biasing earlier slots toward
// higher-weight endpoints without guaranteeing a strict ordering (SRV
// weighting is meant to be probabilistic, not deterministic).
func shuffleTierByWeight(tier []endpoint) {
	remaining := append([]endpoint(nil), tier...)
	for i := range tier {
		totalWeight := 0
		for _, e := range remaining {
			totalWeight += int(e.weight) + 1 // +1 so a zero-weight record is still selectable
		}
		pick := rand.Intn(totalWeight)
		chosen := 0
		for accum := 0; ; chosen++ {
			accum += int(remaining[chosen].weight) + 1
			if pick < accum {
				break
			}
		}
		tier[i] = remaining[chosen]
		remaining = append(remaining[:chosen], remaining[chosen+1:]...)
	}
}

func (s *SRVHTTP) advanceCursor(endpointCount int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if endpointCount > 0 {
		s.cursor = (s.cursor + 1) % endpointCount
	}
}

func trimTrailingDot(host string) string {
	if len(host) > 0 && host[len(host)-1] == '.' {
		return host[:len(host)-1]
	}
	return host
}
