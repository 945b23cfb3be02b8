// Package version provides build-time version information.
//
// Variables are set at build time via ldflags:
//
//	go build -ldflags "-X github.com/rickgao/socksession/internal/version.Version=1.0.0 \
//	                   -X github.com/rickgao/socksession/internal/version.Commit=$(git rev-parse --short HEAD)" \
//	         ./cmd/sessionctl
package version

import "runtime"

// Build-time variables (set via ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// String returns a formatted version string.
func String() string {
	return Version + " (" + Commit + ") built " + BuildTime + " " + runtime.Version()
}

// UserAgent identifies the client during the WebSocket handshake.
func UserAgent() string {
	return "sessionctl/" + Version
}
