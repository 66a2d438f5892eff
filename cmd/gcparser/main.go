// Command gcparser fetches cache listings, find logs and search results
// from geocaching.com.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp(os.Stdout).execute(ctx, nil); err != nil {
		fmt.Fprintln(os.Stderr, "gcparser:", err)
		stop()
		os.Exit(1)
	}
}
