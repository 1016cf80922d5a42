// Command minireq sends one HTTP request through the client interceptor pipelines and prints the response.
//
// Usage:
//
//	minireq [flags] <uri>
//
// Flags can be set also by MINIREQ_* environment variables, for example MINIREQ_BASE_URL,
// or by a config file, see the --config flag.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	// Interrupt aborts the pending request
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cmd := newRootCommand(os.Stdout, os.Stderr)
	if err := cmd.ExecuteContext(ctx); err != nil {
		cancel()
		os.Exit(1) //nolint:gocritic
	}
}
