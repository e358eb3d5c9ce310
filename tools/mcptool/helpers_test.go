package mcptool_test

import (
	"context"
	"testing"

	"github.com/effective-security/mcpagent/mcp"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"
)

func connect(ctx context.Context, t *testing.T, server *mcpsdk.Server) *mcp.Client {
	t.Helper()
	serverTransport, clientTransport := mcpsdk.NewInMemoryTransports()
	session, err := server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)

	client, err := mcp.Connect(ctx, clientTransport)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = client.Close()
		_ = session.Close()
	})
	return client
}
