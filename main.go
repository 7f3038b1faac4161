// The main package for the poesie executable.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/djfrancesco/poesie-francaise-scraper/cmd"
)

// main defers to the Cobra CLI and exits non-zero when a step fails.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cmd.Execute(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
