package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ankit-chaubey/id3-surgery/core"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		core.PrintError(err.Error())
		stop()
		os.Exit(1)
	}
}
