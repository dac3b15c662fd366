package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// Version is stamped by release builds via -ldflags "-X main.Version=...".
var Version = "dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	os.Exit(Run(ctx, os.Args[1:]))
}
