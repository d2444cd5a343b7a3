// Package version provides build version information for the application.
// It is a separate package so cli and the HTTP transport can both read it without an import cycle.
package version

// Version is the build version string, set by ldflags during build.
// Format: vX.Y.Z or vX.Y.Z-dev for development builds.
var Version = "v0.3.0-dev"

// BuildTime is the build timestamp, set by ldflags during build.
var BuildTime = "unknown"

// UserAgent is sent by the HTTP actor on every request.
func UserAgent() string {
	return "canfiles/" + Version
}
