// Command wirekit scans a Go source tree for provider declarations, checks
// the dependency graph and generates injector functions.
//
// Usage:
//
//	wirekit <command> [flags]
//
// Commands:
//
//	scan      scan the tree and report skipped units
//	resolve   print the construction plan for a root type
//	check     validate the whole graph
//	generate  write the injector for the configured root
//	serve     run the inspection HTTP API
//	version   print build information
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
