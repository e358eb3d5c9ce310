package mcp

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpagent/tools"
	"github.com/effective-security/xlog"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// HandlerFunc executes a server tool with validated arguments
type HandlerFunc func(ctx context.Context, args map[string]any) (string, error)

// ServerTool is a local tool exposed by the server
type ServerTool struct {
	Name        string
	Description string
	Params      *tools.Params
	Handler     HandlerFunc
}

// NewServer returns a server with the tools registered
func NewServer(name string, list ...ServerTool) (*mcpsdk.Server, error) {
	server := mcpsdk.NewServer(&mcpsdk.Implementation{Name: name, Version: Version}, nil)

	seen := map[string]bool{}
	for _, st := range list {
		if st.Name == "" || st.Handler == nil || st.Params == nil {
			return nil, errors.Newf("invalid tool %q", st.Name)
		}
		if seen[st.Name] {
			return nil, errors.Newf("tool %s already registered", st.Name)
		}
		seen[st.Name] = true

		schema, err := inputSchema(st.Params)
		if err != nil {
			return nil, errors.Wrapf(err, "tool %s", st.Name)
		}

		server.AddTool(&mcpsdk.Tool{
			Name:        st.Name,
			Description: st.Description,
			InputSchema: schema,
		}, toolHandler(st))
	}
	return server, nil
}

// Serve runs the server on stdin and stdout until the client
// disconnects or ctx is cancelled
func Serve(ctx context.Context, server *mcpsdk.Server) error {
	err := server.Run(ctx, &mcpsdk.StdioTransport{})
	if err != nil && !errors.Is(err, context.Canceled) {
		return errors.Wrap(err, "MCP server stopped")
	}
	return nil
}

// inputSchema returns the parameters schema as a generic JSON object
func inputSchema(params *tools.Params) (map[string]any, error) {
	js, err := json.Marshal(params.Schema())
	if err != nil {
		return nil, errors.WithStack(err)
	}
	var schema map[string]any
	if err = json.Unmarshal(js, &schema); err != nil {
		return nil, errors.WithStack(err)
	}
	return schema, nil
}

func toolHandler(st ServerTool) mcpsdk.ToolHandler {
	return func(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
		args := map[string]any{}
		if req.Params != nil && len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
				return errorResult(st.Name, errors.Wrap(tools.ErrInvalidArguments, err.Error())), nil
			}
		}
		if err := st.Params.Validate(args); err != nil {
			return errorResult(st.Name, err), nil
		}

		text, err := st.Handler(ctx, args)
		if err != nil {
			return errorResult(st.Name, err), nil
		}

		logger.ContextKV(ctx, xlog.DEBUG,
			"status", "tool_called",
			"tool", st.Name,
		)
		return &mcpsdk.CallToolResult{
			Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: text}},
		}, nil
	}
}

func errorResult(name string, err error) *mcpsdk.CallToolResult {
	logger.KV(xlog.WARNING,
		"reason", "tool_failed",
		"tool", name,
		"err", err.Error(),
	)
	return &mcpsdk.CallToolResult{
		IsError: true,
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: err.Error()}},
	}
}
