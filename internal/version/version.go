// Package version exposes build-time version information.
// Values are injected via -ldflags at release build time.
package version

import "fmt"

var (
	// Version is the semantic version, or "dev" for local builds.
	Version = "dev"
	// Commit is the short git commit hash.
	Commit = "unknown"
	// Date is the build timestamp.
	Date = "unknown"
)

// Short returns the bare version string.
func Short() string {
	return Version
}

// Map returns the version fields for API responses.
func Map() map[string]string {
	return map[string]string{
		"version": Version,
		"commit":  Commit,
		"date":    Date,
	}
}

// Info returns a human-readable version line.
func Info() string {
	return fmt.Sprintf("HomeWatt %s (commit %s, built %s)", Version, Commit, Date)
}
