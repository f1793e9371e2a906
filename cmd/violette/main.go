// Command violette is the scan orchestration CLI.
package main

import (
	"github.com/edgerunner0x01/violette/cmd/cli"
)

// Build information, set by ldflags.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func main() {
	cli.SetVersion(version, commit, buildTime)
	cli.Execute()
}
