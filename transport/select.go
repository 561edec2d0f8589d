// Copyright 2026 Determinate Systems, Inc.
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"net/http"
	"os"
	"strings"

	"github.com/DeterminateSystems/detsys-ids-client/internal/clock"
)

const filePrefix = "file://"

// Select picks the Transport variant per the builder's configured
// endpoint, falling back to the DETSYS_IDS_TRANSPORT environment
// variable, and finally to SRV-resolved HTTP against
// defaultRecordName when neither names an endpoint.
//
//   - endpoint or DETSYS_IDS_TRANSPORT beginning "file://" -> File
//   - a value without "://" (a bare hostname) -> SRV-resolved HTTP
//     against that record name
//   - any other value -> HTTP against that URL
//   - neither set -> SRV-resolved HTTP against defaultRecordName
func Select(endpoint, defaultRecordName string, client *http.Client, clk clock.Clock) Transport {
	if endpoint == "" {
		endpoint = os.Getenv("DETSYS_IDS_TRANSPORT")
	}

	if strings.HasPrefix(endpoint, filePrefix) {
		return NewFile(strings.TrimPrefix(endpoint, filePrefix))
	}

	if endpoint == "" {
		return NewSRVHTTP(defaultRecordName, client, clk)
	}

	if !strings.Contains(endpoint, "://") {
		// A bare hostname in DETSYS_IDS_TRANSPORT names an SRV record,
		// not a URL.
		return NewSRVHTTP(endpoint, client, clk)
	}

	return NewHTTP(endpoint, client)
}
