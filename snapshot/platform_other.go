// Copyright 2026 Determinate Systems, Inc.
// SPDX-License-Identifier: Apache-2.0

//go:build !linux

package snapshot

import (
	"fmt"
	"os"
	"runtime"
	"time"
)

// genericPlatformQuerier is the fallback PlatformQuerier on non-Linux
// platforms: it reports what stdlib can answer portably (CPU count,
// hostname, locale env vars, local timezone) and leaves memory and
// disk usage unset rather than attempting OS-specific probes.
type genericPlatformQuerier struct{}

// NewDefaultPlatformQuerier returns the PlatformQuerier the Builder
// uses.
func NewDefaultPlatformQuerier() PlatformQuerier { return genericPlatformQuerier{} }

func (genericPlatformQuerier) CPUCount() int { return runtime.NumCPU() }

func (genericPlatformQuerier) OSVersion() string { return "" }

func (genericPlatformQuerier) MemoryBytes() (uint64, error) {
	return 0, fmt.Errorf("snapshot: memory probe not implemented on %s", runtime.GOOS)
}

func (genericPlatformQuerier) DiskUsage(path string) (used, total uint64, err error) {
	return 0, 0, fmt.Errorf("snapshot: disk probe not implemented on %s", runtime.GOOS)
}

func (genericPlatformQuerier) Locale() string {
	if locale := os.Getenv("LC_ALL"); locale != "" {
		return locale
	}
	return os.Getenv("LANG")
}

func (genericPlatformQuerier) Timezone() string { return time.Local.String() }

func (genericPlatformQuerier) Hostname() (string, error) { return os.Hostname() }

func (genericPlatformQuerier) ThermalState() string { return "" }
