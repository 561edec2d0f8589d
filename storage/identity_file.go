// Copyright 2026 Determinate Systems, Inc.
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"encoding/json"
	"log/slog"
	"os"
)

// DefaultIdentityFilePath is the read-only identity file consulted
// ahead of caller-supplied Storage during identity resolution.
const DefaultIdentityFilePath = "/var/lib/determinate/identity.json"

// ReadOnlyFile is a Source backed by a JSON object read once at
// construction. It never writes. A missing or corrupt file is treated
// as empty and logged at Warn, never as a construction error. This
// file is optional infrastructure maintained outside this process.
type ReadOnlyFile struct {
	values map[string]string
}

// NewReadOnlyFile reads path once and returns a Source over its
// contents.
func NewReadOnlyFile(path string, logger *slog.Logger) *ReadOnlyFile {
	if logger == nil {
		logger = slog.Default()
	}

	values := map[string]string{}
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("storage: could not read read-only identity file", "path", path, "error", err)
		}
		return &ReadOnlyFile{values: values}
	}

	if err := json.Unmarshal(data, &values); err != nil {
		logger.Warn("storage: read-only identity file is corrupt, ignoring", "path", path, "error", err)
		values = map[string]string{}
	}

	return &ReadOnlyFile{values: values}
}

// Get returns the value for key and whether it was present.
func (r *ReadOnlyFile) Get(key string) (string, bool) {
	value, ok := r.values[key]
	return value, ok
}
