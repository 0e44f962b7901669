package version

import (
	"fmt"
	"runtime"
)

// Set with -ldflags "-X github.com/MrSnakeDoc/tidy/internal/version.Version=..."
var (
	Version   = "dev"     // ex: v0.1.0
	Commit    = "none"    // ex: abcd123
	BuildDate = "unknown" // ex: 2025-08-11T18:42:00Z
	GoVersion = runtime.Version()
)

// String is the one-line build description printed by "tidy version".
func String() string {
	return fmt.Sprintf("tidy %s (commit %s, built %s, %s)", Version, Commit, BuildDate, GoVersion)
}
