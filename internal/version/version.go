// Package version exposes build metadata stamped at link time.
package version

// Overridden via -ldflags by the release build.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)
