package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/scbrown/pixelsrc/internal/cli"
)

// main is the entrypoint for the pxl asset compiler. Interrupt signals
// cancel the context so watch mode shuts down cleanly.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	code := cli.Execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
