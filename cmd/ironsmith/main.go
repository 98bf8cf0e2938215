// Package main is the entry point for the ironsmith CLI.
//
// ironsmith provisions operating systems onto bare-metal nodes managed by
// an OpenStack bare-metal service: it picks and reserves a node, wires up
// its networks, assembles the first-boot payload and drives the deployment
// to completion. Teardown releases everything again.
//
// Commands: deploy, undeploy, show, list, version.
//
// For detailed usage information, run:
//
//	ironsmith --help
package main

import (
	"fmt"
	"os"

	"github.com/ironsmith-io/ironsmith/cmd/ironsmith/commands"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)
	if err := commands.Root().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
