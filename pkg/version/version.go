// Package version holds build-time version metadata, printed by the
// buildctl CLI's version subcommand and logged once at client startup,
// mirroring the teacher's pkg/version package.
package version

import "fmt"

// Version is stamped at build time via -ldflags "-X .../pkg/version.Version=...".
// "dev" is the fallback for local, non-release builds.
var Version = "dev"

// GitSHA is the commit the binary was built from, stamped the same way.
var GitSHA = "unknown"

// String renders the version the way the CLI's "version" subcommand and
// the client's startup log line both want it.
func String() string {
	if GitSHA == "unknown" {
		return Version
	}
	return fmt.Sprintf("%s (%s)", Version, GitSHA)
}
