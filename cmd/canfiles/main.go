// canfiles - terminal client for a remote file store
package main

import (
	"os"

	"github.com/canfiles/canfiles/internal/cli"
	"github.com/canfiles/canfiles/internal/version"
)

// Version information, overridden by ldflags for releases.
var (
	Version   = "v0.3.0-dev"
	BuildTime = "unknown"
)

func main() {
	version.Version = Version
	version.BuildTime = BuildTime

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
