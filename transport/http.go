// Copyright 2026 Determinate Systems, Inc.
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/DeterminateSystems/detsys-ids-client/event"
)

// maxResponseBytes bounds check-in response body reads. This exists
// solely to prevent a pathological response from exhausting memory;
// legitimate check-in responses are a few kilobytes at most.
const maxResponseBytes = 16 << 20

// RequestTimeout is the default per-request timeout.
const RequestTimeout = 30 * time.Second

// HTTP is the fixed-base-URL Transport variant: check-in is GET
// {base}/check-in, submit is POST {base}/events.
type HTTP struct {
	baseURL string
	client  *http.Client
}

// NewHTTP creates an HTTP transport against baseURL. If client is nil,
// a client with RequestTimeout is created.
func NewHTTP(baseURL string, client *http.Client) *HTTP {
	baseURL = strings.TrimSuffix(baseURL, "/")
	if client == nil {
		client = &http.Client{Timeout: RequestTimeout}
	}
	return &HTTP{baseURL: baseURL, client: client}
}

func (h *HTTP) Checkin(ctx context.Context) (event.CheckinResponse, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+"/check-in", nil)
	if err != nil {
		return event.CheckinResponse{}, parseError(err)
	}

	response, err := h.client.Do(request)
	if err != nil {
		return event.CheckinResponse{}, classifyDoError(err)
	}
	defer response.Body.Close()

	body, err := readLimited(response.Body, maxResponseBytes)
	if err != nil {
		return event.CheckinResponse{}, networkError(fmt.Errorf("reading check-in response: %w", err))
	}

	if response.StatusCode/100 != 2 {
		return event.CheckinResponse{}, classifyHTTPStatus(response.StatusCode, string(body))
	}

	var checkin event.CheckinResponse
	if err := checkin.UnmarshalJSON(body); err != nil {
		return event.CheckinResponse{}, parseError(fmt.Errorf("decoding check-in response: %w", err))
	}
	return checkin, nil
}

func (h *HTTP) Submit(ctx context.Context, compressed []byte) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/events", bytes.NewReader(compressed))
	if err != nil {
		return parseError(err)
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Content-Encoding", "zstd")

	response, err := h.client.Do(request)
	if err != nil {
		return classifyDoError(err)
	}
	defer response.Body.Close()

	if response.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(response.Body, maxResponseBytes))
		return classifyHTTPStatus(response.StatusCode, string(body))
	}

	// Drain the body so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(response.Body, maxResponseBytes))
	return nil
}

func (h *HTTP) Close() error {
	h.client.CloseIdleConnections()
	return nil
}

// readLimited reads up to limit bytes from r.
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, limit))
}

// classifyDoError distinguishes a context-deadline failure (KindTimeout)
// from other network-level failures (KindNetwork); both are retryable.
func classifyDoError(err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return timeoutError(err)
	}
	return networkError(err)
}
