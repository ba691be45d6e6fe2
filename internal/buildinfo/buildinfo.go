// Package buildinfo holds version metadata injected at link time via
// -ldflags.
package buildinfo

// Version, Commit, and Date are overridden at build time, e.g.:
//
//	go build -ldflags "-X github.com/charonvid/charon/internal/buildinfo.Version=v1.2.3"
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// String renders a one-line build identifier for CLI --version output.
func String() string {
	return Version + " (" + Commit + ", " + Date + ")"
}
