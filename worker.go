// Copyright 2026 Determinate Systems, Inc.
// SPDX-License-Identifier: Apache-2.0

package detsysids

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/DeterminateSystems/detsys-ids-client/configproxy"
	"github.com/DeterminateSystems/detsys-ids-client/event"
	"github.com/DeterminateSystems/detsys-ids-client/internal/clock"
	"github.com/DeterminateSystems/detsys-ids-client/storage"
	"github.com/DeterminateSystems/detsys-ids-client/transport"
)

// checkinRefreshInterval is how often the Worker re-checks in with
// the server in the steady state.
const checkinRefreshInterval = 2 * time.Hour

// initialCheckinRetryBase and initialCheckinRetryCap bound the
// background retry loop used when the very first check-in fails.
const (
	initialCheckinRetryBase = 1 * time.Second
	initialCheckinRetryCap  = 60 * time.Second
)

// worker owns the pipeline: one inbox shared by every Recorder clone,
// the Collator and Submitter errgroup sub-tasks, the configuration
// proxy, and the Transport/Storage resources torn down at shutdown.
type worker struct {
	in        *inbox
	config    *configproxy.Proxy
	storage   storage.Storage
	transport transport.Transport
	clk       clock.Clock
	logger    *slog.Logger

	closed         atomicBool
	shutdownOnce   sync.Once
	shutdownSignal chan struct{}
	runDone        chan struct{}

	diagnostic func(error)
}

// atomicBool is a tiny test-friendly wrapper so worker doesn't need to
// import sync/atomic just for one flag; kept as its own type in case a
// future field needs the same treatment.
type atomicBool struct {
	mu    sync.Mutex
	value bool
}

func (b *atomicBool) set(v bool) {
	b.mu.Lock()
	b.value = v
	b.mu.Unlock()
}

func (b *atomicBool) get() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.value
}

// start launches the Worker's goroutine: the errgroup running the
// Collator and Submitter, with the Worker's own loop driving
// check-in refresh and shutdown sequencing as the errgroup's "main"
// task. It returns immediately; ctx governs the whole pipeline's
// lifetime in addition to the explicit shutdown path.
func (w *worker) start(ctx context.Context, col *collator, sub *submitter) {
	go w.run(ctx, col, sub)
}

func (w *worker) run(parent context.Context, col *collator, sub *submitter) {
	defer close(w.runDone)

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return col.run(gctx) })
	g.Go(func() error { return sub.run(gctx) })

	ticker := w.clk.NewTicker(checkinRefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.checkin(ctx)
		case <-w.shutdownSignal:
			_ = g.Wait()
			return
		case <-parent.Done():
			_ = g.Wait()
			return
		}
	}
}

// checkin performs a single check-in attempt and, on success,
// replaces the configuration proxy's contents.
func (w *worker) checkin(ctx context.Context) {
	response, err := w.transport.Checkin(ctx)
	if err != nil {
		w.logger.Debug("worker: check-in failed", "error", err)
		w.reportDiagnostic(err)
		return
	}
	w.config.Replace(response)
}

// checkinWithRetry performs the initial check-in synchronously, bound
// by ctx. If it fails, retrying continues in the background with
// capped exponential backoff for the Worker's full lifetime (not
// ctx's, which may be a short-lived setup context) so the Worker can
// start accepting and enqueuing events immediately regardless of the
// server's availability at startup.
func (w *worker) checkinWithRetry(ctx context.Context) {
	response, err := w.transport.Checkin(ctx)
	if err == nil {
		w.config.Replace(response)
		return
	}
	w.logger.Debug("worker: initial check-in failed, retrying in background", "error", err)
	w.reportDiagnostic(err)

	go func() {
		backoff := initialCheckinRetryBase
		for {
			select {
			case <-w.clk.After(backoff):
			case <-w.shutdownSignal:
				return
			}
			response, err := w.transport.Checkin(context.Background())
			if err == nil {
				w.config.Replace(response)
				return
			}
			w.reportDiagnostic(err)
			backoff = min(backoff*2, initialCheckinRetryCap)
		}
	}()
}

func (w *worker) reportDiagnostic(err error) {
	if w.diagnostic != nil {
		w.diagnostic(err)
	}
}

// enqueue pushes a rawSignal unless the Worker has already begun
// shutting down, in which case Recorder operations become silent
// no-ops per the public contract.
func (w *worker) enqueue(signal rawSignal) {
	if w.closed.get() {
		return
	}
	w.in.push(signal)
}

// getFeature reads directly from the configuration proxy: feature
// lookups never touch the network or the Collator.
func (w *worker) getFeature(name string) (event.FeatureFlag, bool) {
	return w.config.GetFeature(name)
}

// flush asks the Submitter to upload whatever is pending right now
// and waits for it to finish or for ctx to expire.
func (w *worker) flush(ctx context.Context) error {
	if w.closed.get() {
		return nil
	}

	done := make(chan struct{})
	w.in.push(flushNowSignal{done: done})

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return &TimeoutError{Operation: "flush"}
	}
}

// shutdown stops accepting new events, waits for the Collator to
// drain its backlog and the Submitter to finish its final flush, then
// tears down Storage and Transport. It is safe to call more than
// once; every call waits for the same completion, bounded by its own
// ctx.
func (w *worker) shutdown(ctx context.Context) error {
	w.closed.set(true)
	w.shutdownOnce.Do(func() { close(w.shutdownSignal) })

	select {
	case <-w.runDone:
	case <-ctx.Done():
		return &TimeoutError{Operation: "shutdown"}
	}

	if err := w.storage.Flush(); err != nil {
		w.logger.Debug("worker: storage flush error during shutdown", "error", err)
	}
	if err := w.transport.Close(); err != nil {
		w.logger.Debug("worker: transport close error during shutdown", "error", err)
	}
	return nil
}
