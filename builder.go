// Copyright 2026 Determinate Systems, Inc.
// SPDX-License-Identifier: Apache-2.0

package detsysids

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/DeterminateSystems/detsys-ids-client/configproxy"
	"github.com/DeterminateSystems/detsys-ids-client/event"
	"github.com/DeterminateSystems/detsys-ids-client/identity"
	"github.com/DeterminateSystems/detsys-ids-client/internal/clock"
	"github.com/DeterminateSystems/detsys-ids-client/snapshot"
	"github.com/DeterminateSystems/detsys-ids-client/storage"
	"github.com/DeterminateSystems/detsys-ids-client/transport"
)

// defaultSRVRecordName is the compiled-in record name used when the
// caller supplies no endpoint and DETSYS_IDS_TRANSPORT is unset.
const defaultSRVRecordName = "ids.determinate.systems"

// defaultInboxCapacity bounds the Recorder-to-Collator channel.
const defaultInboxCapacity = 1024

// Builder configures and constructs a Recorder. The zero value
// (via [NewBuilder]) produces a working Recorder against the default
// SRV-resolved endpoint with no persistent storage.
type Builder struct {
	endpoint          string
	storageProvider   storage.Storage
	libraryName       string
	libraryVersion    string
	defaultDistinctID string
	httpClient        *http.Client
	diagnostic        func(error)
	logger            *slog.Logger
	clk               clock.Clock
}

// NewBuilder returns a Builder with default settings.
func NewBuilder() *Builder {
	return &Builder{
		libraryName:    "detsys-ids-client",
		libraryVersion: "0.1.0",
		clk:            clock.Real(),
	}
}

// WithEndpoint sets the transport endpoint: a bare hostname selects
// SRV-resolved HTTP against that record, a URL selects fixed-base-URL
// HTTP, and "file://<path>" selects the File transport. Leaving this
// unset defers to DETSYS_IDS_TRANSPORT and finally the compiled-in
// SRV record name.
func (b *Builder) WithEndpoint(endpoint string) *Builder {
	b.endpoint = endpoint
	return b
}

// WithStorage sets the persistent key/value Storage implementation.
// Defaults to [storage.NewNoOp].
func (b *Builder) WithStorage(s storage.Storage) *Builder {
	b.storageProvider = s
	return b
}

// WithLibrary sets the name and version reported as $lib/$lib_version
// on every event.
func (b *Builder) WithLibrary(name, version string) *Builder {
	b.libraryName = name
	b.libraryVersion = version
	return b
}

// WithDefaultDistinctID sets the distinct ID used when no read-only
// file, Storage, or correlation value supplies one.
func (b *Builder) WithDefaultDistinctID(distinctID string) *Builder {
	b.defaultDistinctID = distinctID
	return b
}

// WithHTTPClient overrides the *http.Client used by the HTTP and
// SRV-resolved HTTP transports. Only meaningful when the resolved
// transport is one of those two variants.
func (b *Builder) WithHTTPClient(client *http.Client) *Builder {
	b.httpClient = client
	return b
}

// WithDiagnosticCallback registers a callback invoked whenever a
// check-in attempt fails: synchronously inside Build for the initial
// attempt, and from a background goroutine for later ones. Upload
// failures are not passed to it; the Submitter only logs them. It
// exists for host applications that want to surface
// telemetry health without parsing logs; it is never required for
// correct operation.
func (b *Builder) WithDiagnosticCallback(callback func(error)) *Builder {
	b.diagnostic = callback
	return b
}

// WithLogger overrides the *slog.Logger used for internal
// diagnostics. Defaults to slog.Default().
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// withClock overrides the time source; exported only to tests in this
// package via a lowercase method, since production callers have no
// legitimate reason to supply a fake clock.
func (b *Builder) withClock(clk clock.Clock) *Builder {
	b.clk = clk
	return b
}

// Build resolves identity, performs the initial check-in, and starts
// the Worker, returning a Recorder. ctx bounds only the initial
// check-in attempt; the returned Recorder's Worker keeps running
// until Shutdown.
func (b *Builder) Build(ctx context.Context) (*Recorder, error) {
	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	store := b.storageProvider
	if store == nil {
		store = storage.NewNoOp()
	}

	correlation := identity.LoadCorrelation(logger)
	readOnly := storage.NewReadOnlyFile(storage.DefaultIdentityFilePath, logger)
	resolved := identity.Resolve(readOnly, store, correlation, b.defaultDistinctID)

	querier := snapshot.NewDefaultPlatformQuerier()
	snapshotter := snapshot.New(querier, b.clk)

	t := transport.Select(b.endpoint, defaultSRVRecordName, b.httpClient, b.clk)

	config := configproxy.New()

	disabled := os.Getenv("DETSYS_IDS_TELEMETRY") == "disabled"

	library := event.LibraryInfo{Name: b.libraryName, Version: b.libraryVersion}

	in := newInbox(defaultInboxCapacity)
	out := make(chan collatedSignal, defaultInboxCapacity)
	shutdownSignal := make(chan struct{})

	col := newCollator(in, shutdownSignal, out, snapshotter, store, config, b.clk, logger, library, disabled, resolved, correlation)
	sub := newSubmitter(t, out, b.clk, logger)

	w := &worker{
		in:             in,
		config:         config,
		storage:        store,
		transport:      t,
		clk:            b.clk,
		logger:         logger,
		shutdownSignal: shutdownSignal,
		runDone:        make(chan struct{}),
		diagnostic:     b.diagnostic,
	}
	w.checkinWithRetry(ctx)
	w.start(context.Background(), col, sub)

	return &Recorder{w: w}, nil
}

// discardLogger is used by tests that want internal diagnostics
// silenced rather than written to stderr.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
