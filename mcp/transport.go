package mcp

import (
	"context"
	"os"
	"os/exec"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// CommandTransport returns a transport that spawns the server process
// and talks to it over its stdin and stdout. The server's stderr is
// passed through.
func CommandTransport(ctx context.Context, command string, args ...string) mcpsdk.Transport {
	// #nosec G204 -- the command comes from the operator configuration
	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Stderr = os.Stderr
	return &mcpsdk.CommandTransport{Command: cmd}
}
