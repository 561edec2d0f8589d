// Copyright 2026 Determinate Systems, Inc.
// SPDX-License-Identifier: Apache-2.0

//go:build linux

package snapshot

import (
	"bufio"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// linuxPlatformQuerier is the default PlatformQuerier on Linux. Field
// probes are grounded on the same /proc and /sys reads a host hardware
// inventory probe uses: /proc/meminfo for memory, syscall.Statfs for
// disk usage, and a best-effort single-zone thermal read. Every method
// here is independently fallible; none of their failures are fatal to
// the caller.
type linuxPlatformQuerier struct{}

// NewDefaultPlatformQuerier returns the PlatformQuerier the Builder
// uses: linuxPlatformQuerier on Linux, a minimal stdlib-only fallback
// elsewhere.
func NewDefaultPlatformQuerier() PlatformQuerier { return linuxPlatformQuerier{} }

func (linuxPlatformQuerier) CPUCount() int { return runtime.NumCPU() }

// OSVersion reads PRETTY_NAME from /etc/os-release, the same file
// most Linux package managers consult for a human-readable release
// string.
func (linuxPlatformQuerier) OSVersion() string {
	data, err := os.ReadFile("/etc/os-release")
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(string(data), "\n") {
		if !strings.HasPrefix(line, "PRETTY_NAME=") {
			continue
		}
		value := strings.TrimPrefix(line, "PRETTY_NAME=")
		return strings.Trim(value, `"`)
	}
	return ""
}

func (linuxPlatformQuerier) MemoryBytes() (uint64, error) {
	file, err := os.Open("/proc/meminfo")
	if err != nil {
		return 0, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "MemTotal:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return 0, fmt.Errorf("snapshot: malformed MemTotal line %q", line)
		}
		kb, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("snapshot: parsing MemTotal: %w", err)
		}
		return kb * 1024, nil
	}
	return 0, fmt.Errorf("snapshot: MemTotal not found in /proc/meminfo")
}

func (linuxPlatformQuerier) DiskUsage(path string) (used, total uint64, err error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return 0, 0, err
	}
	total = stat.Blocks * uint64(stat.Bsize)
	free := stat.Bfree * uint64(stat.Bsize)
	return total - free, total, nil
}

func (linuxPlatformQuerier) Locale() string {
	if locale := os.Getenv("LC_ALL"); locale != "" {
		return locale
	}
	if locale := os.Getenv("LANG"); locale != "" {
		return locale
	}
	return ""
}

func (linuxPlatformQuerier) Timezone() string {
	return time.Local.String()
}

func (linuxPlatformQuerier) Hostname() (string, error) {
	return os.Hostname()
}

// ThermalState reads the type of the first thermal zone as a coarse,
// best-effort description. Most CI runners and many desktops expose
// no thermal zones at all, in which case this returns "".
func (linuxPlatformQuerier) ThermalState() string {
	data, err := os.ReadFile("/sys/class/thermal/thermal_zone0/type")
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
