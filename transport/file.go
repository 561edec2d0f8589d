// Copyright 2026 Determinate Systems, Inc.
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/DeterminateSystems/detsys-ids-client/event"
)

// emptyCheckinBody is served when the configured check-in file does
// not yet exist, so a fresh install's first check-in is a valid empty
// response rather than an error.
const emptyCheckinBody = `{"options":{},"features":{}}`

// stdoutSentinel is the configured path that redirects Submit output
// to the process's stdout instead of a regular file, for interactive
// debugging.
const stdoutSentinel = "/dev/stdout"

// File is the File Transport variant. Checkin reads and parses a JSON
// check-in response from checkinPath (path, unless
// DETSYS_IDS_CHECKIN_FILE names a different file); Submit appends the
// uncompressed JSON event array to path, creating it if absent.
type File struct {
	path        string
	checkinPath string

	mu sync.Mutex
}

// NewFile creates a File transport rooted at path. If
// DETSYS_IDS_CHECKIN_FILE is set, check-ins are read from that path
// instead of path, matching the split the environment variable is
// documented to support.
func NewFile(path string) *File {
	checkinPath := path
	if override := os.Getenv("DETSYS_IDS_CHECKIN_FILE"); override != "" {
		checkinPath = override
	}
	return &File{path: path, checkinPath: checkinPath}
}

func (f *File) Checkin(ctx context.Context) (event.CheckinResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.checkinPath)
	if err != nil {
		if os.IsNotExist(err) {
			data = []byte(emptyCheckinBody)
		} else {
			return event.CheckinResponse{}, networkError(fmt.Errorf("reading check-in file %q: %w", f.checkinPath, err))
		}
	}

	var checkin event.CheckinResponse
	if err := checkin.UnmarshalJSON(data); err != nil {
		return event.CheckinResponse{}, parseError(fmt.Errorf("parsing check-in file %q: %w", f.checkinPath, err))
	}
	return checkin, nil
}

// Submit decompresses the batch (the Submitter always hands every
// Transport variant zstd-compressed bytes) and appends the resulting
// plain JSON array to the configured file, so the File transport's
// on-disk contract stays human-readable.
func (f *File) Submit(ctx context.Context, compressed []byte) error {
	raw, err := decompress(compressed)
	if err != nil {
		return parseError(fmt.Errorf("decompressing batch for file transport: %w", err))
	}
	return f.appendRaw(raw)
}

func (f *File) appendRaw(raw []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.path == stdoutSentinel {
		_, err := os.Stdout.Write(append(raw, '\n'))
		if err != nil {
			return networkError(fmt.Errorf("writing to stdout: %w", err))
		}
		return nil
	}

	handle, err := os.OpenFile(f.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
	if err != nil {
		return networkError(fmt.Errorf("opening submission file %q: %w", f.path, err))
	}
	defer handle.Close()

	var validated json.RawMessage
	if err := json.Unmarshal(raw, &validated); err != nil {
		return parseError(fmt.Errorf("submission payload is not valid JSON: %w", err))
	}

	if _, err := handle.Write(append(raw, '\n')); err != nil {
		return networkError(fmt.Errorf("writing to submission file %q: %w", f.path, err))
	}
	return nil
}

func (f *File) Close() error { return nil }
