// Command mcptools serves the demo tools over MCP on stdin and stdout.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/effective-security/mcpagent/mcp"
	"github.com/effective-security/mcpagent/tools/demo"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcpagent", "mcptools")

func main() {
	// stdout is the MCP channel
	xlog.SetFormatter(xlog.NewStringFormatter(os.Stderr))
	xlog.SetGlobalLogLevel(xlog.WARNING)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err.Error())
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	list, err := demo.Tools(demo.NewBattery())
	if err != nil {
		return err
	}
	server, err := mcp.NewServer("mcptools", list...)
	if err != nil {
		return err
	}

	logger.KV(xlog.INFO, "status", "serving", "tools", len(list))
	return mcp.Serve(ctx, server)
}
