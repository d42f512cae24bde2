package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// Survey report entrypoint. Without a subcommand every analysis runs once
// against the datasets in the configured directory.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
