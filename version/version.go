// Package version holds build metadata injected with -ldflags.
package version

import "fmt"

// These variables are set via ldflags during build
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// GetVersion returns the version string
func GetVersion() string {
	return Version
}

// GetFullVersion returns the version with commit and build date when known
func GetFullVersion() string {
	if GitCommit == "unknown" && BuildDate == "unknown" {
		return Version
	}
	return fmt.Sprintf("%s (commit %s, built %s)", Version, GitCommit, BuildDate)
}

// UserAgent identifies canalview in outgoing requests
func UserAgent() string {
	return "canalview/" + Version
}
