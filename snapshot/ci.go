// Copyright 2026 Determinate Systems, Inc.
// SPDX-License-Identifier: Apache-2.0

package snapshot

import "os"

// ciEnvVars are well-known environment variables set by CI providers.
// Most are boolean-ish ("true"/"1"); a couple (CI_NAME) are merely
// present-or-absent. No ecosystem Go library in the retrieved example
// pack wraps this heuristic (see DESIGN.md), so it is hand-rolled
// against the same well-known variable set the "is-ci" family of
// detectors in other ecosystems uses.
var ciEnvVars = []string{
	"CI",
	"GITHUB_ACTIONS",
	"GITLAB_CI",
	"BUILDKITE",
	"JENKINS_URL",
	"TEAMCITY_VERSION",
	"TRAVIS",
	"CIRCLECI",
	"APPVEYOR",
	"TF_BUILD",
	"CI_NAME",
}

// detectCI reports whether the process appears to be running under a
// CI system. DETSYS_IDS_IN_CI=1 forces true; any other value for that
// variable falls through to the heuristic.
func detectCI() bool {
	switch os.Getenv("DETSYS_IDS_IN_CI") {
	case "1":
		return true
	}

	for _, name := range ciEnvVars {
		if value := os.Getenv(name); value != "" && value != "0" && value != "false" {
			return true
		}
	}
	return false
}
