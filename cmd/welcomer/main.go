package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/felixgeelhaar/welcomer/internal/cmd"
	"github.com/felixgeelhaar/welcomer/internal/exitcode"
)

func main() {
	// Cancelled on interrupt; the bot drains its sessions before returning.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		exitcode.ExitWithError(err)
	}
	exitcode.Exit(exitcode.Success)
}
