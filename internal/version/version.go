// Package version carries the host's build version, overridable at link
// time with -ldflags "-X .../internal/version.Version=...".
package version

// Version is the semantic version reported by --version. Overridden at
// build time for release binaries.
var Version = "dev"
