// Copyright 2026 Determinate Systems, Inc.
// SPDX-License-Identifier: Apache-2.0

package detsysids

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/rand"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/DeterminateSystems/detsys-ids-client/event"
	"github.com/DeterminateSystems/detsys-ids-client/internal/clock"
	"github.com/DeterminateSystems/detsys-ids-client/transport"
)

const (
	maxBatchEvents = 100
	maxBatchBytes  = 900 * 1024
	flushInterval  = 30 * time.Second

	maxUploadAttempts = 5
	backoffBase       = 500 * time.Millisecond
	backoffCap        = 30 * time.Second
)

// submitter accumulates EnrichedEvents from the Collator and uploads
// them in strictly sequential batches: a second batch never starts
// while the first is in flight, so the server observes event order.
type submitter struct {
	transport transport.Transport
	in        <-chan collatedSignal
	clk       clock.Clock
	logger    *slog.Logger

	events         []event.EnrichedEvent
	estimatedBytes int
}

func newSubmitter(t transport.Transport, in <-chan collatedSignal, clk clock.Clock, logger *slog.Logger) *submitter {
	return &submitter{transport: t, in: in, clk: clk, logger: logger}
}

// run is the Submitter's errgroup sub-task body. It returns nil once
// its incoming channel is closed and the final flush has been
// attempted; ctx cancellation makes one best-effort flush before
// returning.
func (s *submitter) run(ctx context.Context) error {
	ticker := s.clk.NewTicker(flushInterval)
	defer ticker.Stop()

	for {
		select {
		case signal, ok := <-s.in:
			if !ok {
				s.flush(context.Background())
				return nil
			}
			switch m := signal.(type) {
			case collatedEvent:
				s.append(m.event)
				if len(s.events) >= maxBatchEvents || s.estimatedBytes >= maxBatchBytes {
					s.flush(ctx)
					ticker.Reset(flushInterval)
				}
			case collatedFlushNow:
				s.flush(ctx)
				ticker.Reset(flushInterval)
				if m.done != nil {
					close(m.done)
				}
			}
		case <-ticker.C:
			s.flush(ctx)
		case <-ctx.Done():
			drainCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			s.flush(drainCtx)
			cancel()
			return nil
		}
	}
}

func (s *submitter) append(e event.EnrichedEvent) {
	s.events = append(s.events, e)
	if raw, err := json.Marshal(e); err == nil {
		s.estimatedBytes += len(raw)
	}
}

// flush serializes and uploads the pending batch, retrying with
// exponential backoff and jitter up to maxUploadAttempts before
// dropping it and logging. A successful upload or an exhausted batch
// both clear the pending events; an independent next batch is
// unaffected by a dropped one.
func (s *submitter) flush(ctx context.Context) {
	if len(s.events) == 0 {
		return
	}

	batch := event.NewBatch(s.events)
	raw, err := json.Marshal(batch)
	if err != nil {
		s.logger.Error("submitter: failed to serialize batch, dropping", "error", err, "events", len(s.events))
		s.reset()
		return
	}
	compressed := transport.Compress(raw)

	backoff := backoffBase
	for attempt := 1; attempt <= maxUploadAttempts; attempt++ {
		if err := s.transport.Submit(ctx, compressed); err == nil {
			s.logger.Debug("submitter: uploaded batch",
				"events", len(s.events), "bytes", humanize.Bytes(uint64(len(compressed))))
			s.reset()
			return
		} else if attempt == maxUploadAttempts {
			s.logger.Error("submitter: dropping batch after exhausting attempts",
				"events", len(s.events), "error", err)
			break
		} else {
			s.logger.Warn("submitter: upload attempt failed, retrying",
				"attempt", attempt, "backoff", backoff, "error", err)
			select {
			case <-s.clk.After(jitter(backoff)):
			case <-ctx.Done():
				return
			}
			backoff = min(backoff*2, backoffCap)
		}
	}
	s.reset()
}

func (s *submitter) reset() {
	s.events = nil
	s.estimatedBytes = 0
}

// jitter returns d scaled by a random factor in [0.8, 1.2) so that
// many clients backing off simultaneously don't retry in lockstep.
func jitter(d time.Duration) time.Duration {
	return time.Duration(float64(d) * (0.8 + 0.4*rand.Float64()))
}
