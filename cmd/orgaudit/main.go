package main

import (
	"orgaudit/internal/cli"
)

// Populated at build time, e.g. -ldflags "-X main.version=v1.2.3".
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	cli.SetBuildInfo(version, commit, date)
	cli.Execute()
}
