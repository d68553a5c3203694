// Package version holds build version information for buildli.
package version

import "fmt"

// Set at build time via -ldflags "-X ...".
var (
	Version = "0.2.0"
	Commit  = "dev"
	Date    = "unknown"
)

// String returns the full version line printed by "buildli version".
func String() string {
	return fmt.Sprintf("buildli %s (commit %s, built %s)", Version, Commit, Date)
}
