// Copyright 2026 Determinate Systems, Inc.
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"github.com/klauspost/compress/zstd"
)

// encoder and decoder are package-level and reused across every
// Submit call: both are safe for concurrent use via EncodeAll and
// DecodeAll, and constructing either is too expensive to do per call.
var (
	encoder, _ = zstd.NewWriter(nil)
	decoder, _ = zstd.NewReader(nil)
)

// Compress zstd-compresses raw for handoff to any Transport variant.
func Compress(raw []byte) []byte {
	return encoder.EncodeAll(raw, make([]byte, 0, len(raw)))
}

func decompress(compressed []byte) ([]byte, error) {
	return decoder.DecodeAll(compressed, nil)
}
