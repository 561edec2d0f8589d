// Copyright 2026 Determinate Systems, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package identity resolves the per-process identity values
// (distinct_id, anon_distinct_id, device_id, session_id) and parses
// the DETSYS_CORRELATION environment variable into Data.
package identity

import (
	"encoding/json"
	"log/slog"
	"os"
)

// Reserved correlation keys.
const (
	CorrelationSessionID      = "$session_id"
	CorrelationAnonDistinctID = "$anon_distinct_id"
	CorrelationDeviceID       = "$device_id"
	CorrelationGroups         = "$groups"
)

// Data is the parsed result of DETSYS_CORRELATION: the recognized
// reserved keys, the groups map, and every other key as an additional
// property merged into every event.
type Data struct {
	SessionID      string
	AnonDistinctID string
	DeviceID       string
	Groups         map[string]string
	Extra          map[string]any
}

// LoadCorrelation reads and parses DETSYS_CORRELATION. A missing
// variable returns a zero Data with no error. A malformed JSON value
// is logged and ignored; it is never a fatal condition.
func LoadCorrelation(logger *slog.Logger) Data {
	if logger == nil {
		logger = slog.Default()
	}

	raw := os.Getenv("DETSYS_CORRELATION")
	if raw == "" {
		return Data{}
	}

	var parsed map[string]any
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		logger.Warn("identity: DETSYS_CORRELATION is not valid JSON, ignoring", "error", err)
		return Data{}
	}

	data := Data{Extra: map[string]any{}}
	for key, value := range parsed {
		switch key {
		case CorrelationSessionID:
			if s, ok := value.(string); ok {
				data.SessionID = s
			}
		case CorrelationAnonDistinctID:
			if s, ok := value.(string); ok {
				data.AnonDistinctID = s
			}
		case CorrelationDeviceID:
			if s, ok := value.(string); ok {
				data.DeviceID = s
			}
		case CorrelationGroups:
			if groups, ok := value.(map[string]any); ok {
				data.Groups = map[string]string{}
				for groupType, groupKey := range groups {
					if s, ok := groupKey.(string); ok {
						data.Groups[groupType] = s
					}
				}
			}
		default:
			data.Extra[key] = value
		}
	}

	return data
}
