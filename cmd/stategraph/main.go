// Command stategraph runs the example workflows, inspects checkpointed
// threads and renders graphs.
//
// Usage:
//
//	stategraph counter --limit 5 --threads 4
//	stategraph review --topic "Go generics"
//	stategraph chat --thread 1
//	stategraph state --workflow chat --thread 1
//	stategraph graph review
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Error loading .env: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
