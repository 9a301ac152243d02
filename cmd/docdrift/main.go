package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"k8s.io/klog/v2"

	"github.com/dejo1307/docdrift/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	// klog writes to stderr; stdout carries the MCP JSON-RPC stream in serve mode.
	err := cli.NewRootCommand().ExecuteContext(ctx)
	stop()
	klog.Flush()
	if err != nil {
		fmt.Fprintf(os.Stderr, "docdrift: %v\n", err)
	}
	os.Exit(cli.ExitCode(err))
}
