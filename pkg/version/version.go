// Package version provides build and version information.
package version

import (
	"fmt"
	"runtime"
)

// Version is set via ldflags at build time:
// -X github.com/murmurnotes/murmur/pkg/version.Version=v1.2.3
var Version = "dev"

var (
	// Commit is the git commit hash, set via ldflags.
	Commit = "unknown"
	// Date is the build date, set via ldflags.
	Date = "unknown"
	// GoVersion is the Go toolchain that built the binary.
	GoVersion = runtime.Version()
)

// String returns the full version line.
func String() string {
	return fmt.Sprintf("murmur %s (commit: %s, built: %s, go: %s, %s/%s)",
		Version, Commit, Date, GoVersion, runtime.GOOS, runtime.GOARCH)
}

// Short returns just the version.
func Short() string {
	return Version
}
