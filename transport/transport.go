// Copyright 2026 Determinate Systems, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package transport implements the three Transport variants that
// perform check-in fetches and event uploads: HTTP, SRV-resolved
// HTTP, and File. All three are stateless with respect to the
// pipeline above them.
package transport

import (
	"context"
	"fmt"

	"github.com/DeterminateSystems/detsys-ids-client/event"
)

// Transport performs the check-in fetch and event upload. Every
// operation fails with a *Error; no other error type crosses this
// boundary.
type Transport interface {
	// Checkin fetches configuration and feature flags.
	Checkin(ctx context.Context) (event.CheckinResponse, error)

	// Submit uploads a zstd-compressed JSON array of EnrichedEvents.
	Submit(ctx context.Context, compressed []byte) error

	// Close releases any resources held by the transport (idle
	// connections, cached DNS answers). Transports with nothing to
	// release implement this as a no-op.
	Close() error
}

// Kind distinguishes the network/http failures a Transport can report.
type Kind int

const (
	// KindNetwork covers connection refused, DNS failure, and other
	// failures below the HTTP layer.
	KindNetwork Kind = iota
	// KindHTTPStatus covers a non-2xx HTTP response.
	KindHTTPStatus
	// KindParse covers a response body that failed to parse.
	KindParse
	// KindTimeout covers a request or overall deadline exceeded.
	KindTimeout
)

// Error is the error type every Transport operation returns. Retryable
// reports whether the caller should try the next endpoint/attempt:
// connection failures, 5xx, and timeouts are retryable; 4xx responses
// are not.
type Error struct {
	Kind       Kind
	StatusCode int // 0 for non-HTTP failures
	Retryable  bool
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transport: http status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("transport: %v", e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// classifyHTTPStatus builds the *Error for a non-2xx HTTP response.
// 5xx is retryable (transient server trouble); 4xx is not (the
// request itself is wrong and retrying it verbatim will not help).
func classifyHTTPStatus(statusCode int, body string) *Error {
	retryable := statusCode >= 500
	return &Error{
		Kind:       KindHTTPStatus,
		StatusCode: statusCode,
		Retryable:  retryable,
		Err:        fmt.Errorf("unexpected status %d: %s", statusCode, body),
	}
}

func networkError(err error) *Error {
	return &Error{Kind: KindNetwork, Retryable: true, Err: err}
}

func timeoutError(err error) *Error {
	return &Error{Kind: KindTimeout, Retryable: true, Err: err}
}

func parseError(err error) *Error {
	return &Error{Kind: KindParse, Retryable: false, Err: err}
}
