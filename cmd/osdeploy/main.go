// Package main is the entry point for the osdeploy CLI.
//
// osdeploy provisions, verifies, and tears down a multi-node OpenSearch
// cluster with its Dashboards companion on Kubernetes, in a fixed dependency
// order with readiness gates, protecting TLS certificates across destructive
// operations.
//
// Commands: deploy, cleanup, status, tunnel, version.
//
// For detailed usage information, run:
//
//	osdeploy --help
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/searchstack/osdeploy/cmd/osdeploy/commands"
	"github.com/searchstack/osdeploy/internal/ui"
)

// Version information set at build time via ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := commands.Root().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, ui.Failed(ui.CrossMark+" "+err.Error()))
		os.Exit(1)
	}
}
