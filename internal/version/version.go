// Package version carries build metadata stamped in via ldflags.
package version

import "fmt"

var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// String formats the build metadata on one line.
func String() string {
	return fmt.Sprintf("negproof %s (commit %s, built %s)", Version, GitCommit, BuildDate)
}
