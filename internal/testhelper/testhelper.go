// Package testhelper adapts the teacher's test-tier detection
// (internal/testing/helpers.go) to this module's env var names, so
// protocol tests that need a real filesystem or TCP listener can run as
// integration tests while staying skippable in fast unit runs.
package testhelper

import (
	"os"
	"testing"
)

// Unit reports whether tests should run in unit mode: fast, no real
// filesystem/network dependencies. Checked in priority order: explicit
// unit-only override, then explicit integration override. With neither
// set, unit mode is the default, whether or not -short is given.
func Unit() bool {
	if os.Getenv("SISDK_UNIT_TESTS_ONLY") == "true" {
		return true
	}
	if os.Getenv("SISDK_RUN_INTEGRATION_TESTS") == "true" {
		return false
	}
	if os.Getenv("SISDK_RUN_INTEGRATION_TESTS") == "false" {
		return true
	}
	if testing.Short() {
		return true
	}
	return true
}

// Integration reports the complement of Unit.
func Integration() bool {
	return !Unit()
}

// SkipIfUnit skips t when running in unit mode.
func SkipIfUnit(t *testing.T, message ...string) {
	if Unit() {
		msg := "skipping integration test in unit mode"
		if len(message) > 0 {
			msg = message[0]
		}
		t.Skip(msg)
	}
}

// SkipIfIntegration skips t when running in integration mode.
func SkipIfIntegration(t *testing.T, message ...string) {
	if Integration() {
		msg := "skipping unit-only test in integration mode"
		if len(message) > 0 {
			msg = message[0]
		}
		t.Skip(msg)
	}
}
