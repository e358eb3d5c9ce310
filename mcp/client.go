package mcp

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
	"github.com/invopop/jsonschema"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcpagent", "mcp")

// ClientName is reported to the server during initialization
const ClientName = "mcpagent"

// Version is reported to the peer during initialization
var Version = "v0.1.0"

// ToolDescriptor describes a tool exposed by the server
type ToolDescriptor struct {
	Name        string
	Description string
	InputSchema *jsonschema.Schema
}

// ContentItem is one item of a tool result
type ContentItem struct {
	Type string
	Text string
}

// ToolResult is the result of a remote tool call
type ToolResult struct {
	Content []ContentItem
	IsError bool
}

// Client is a session to the tool server
type Client struct {
	session *mcpsdk.ClientSession
}

// Connect performs the initialization handshake over the transport
func Connect(ctx context.Context, transport mcpsdk.Transport) (*Client, error) {
	impl := mcpsdk.NewClient(&mcpsdk.Implementation{Name: ClientName, Version: Version}, nil)
	session, err := impl.Connect(ctx, transport, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to MCP server")
	}

	logger.ContextKV(ctx, xlog.DEBUG,
		"status", "connected",
		"client", ClientName,
	)
	return &Client{session: session}, nil
}

// ListTools returns all the tools of the server,
// following the pagination
func (c *Client) ListTools(ctx context.Context) ([]ToolDescriptor, error) {
	var list []ToolDescriptor
	for tool, err := range c.session.Tools(ctx, nil) {
		if err != nil {
			return nil, errors.Wrap(err, "failed to list tools")
		}
		desc, err := toToolDescriptor(tool)
		if err != nil {
			return nil, err
		}
		list = append(list, desc)
	}
	return list, nil
}

// CallTool invokes the tool with the arguments and waits for the result
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (*ToolResult, error) {
	if args == nil {
		args = map[string]any{}
	}
	res, err := c.session.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to call tool %s", name)
	}
	return toToolResult(res), nil
}

// Close terminates the session, and the server process for command transports
func (c *Client) Close() error {
	if c == nil || c.session == nil {
		return nil
	}
	err := c.session.Close()
	c.session = nil
	return err
}

func toToolDescriptor(tool *mcpsdk.Tool) (ToolDescriptor, error) {
	if tool == nil {
		return ToolDescriptor{}, errors.New("server returned nil tool")
	}
	desc := ToolDescriptor{
		Name:        tool.Name,
		Description: tool.Description,
	}
	if tool.InputSchema != nil {
		sc, err := decodeSchema(tool.InputSchema)
		if err != nil {
			return desc, errors.Wrapf(err, "tool %s: invalid input schema", tool.Name)
		}
		desc.InputSchema = sc
	}
	return desc, nil
}

// decodeSchema converts the wire schema to a jsonschema.Schema, which holds
// a single type name. A type list such as ["number","null"] is reduced to
// its first non-null name, and a type with no usable name is removed,
// leaving the caller to reject or coerce the untyped schema.
func decodeSchema(raw any) (*jsonschema.Schema, error) {
	js, err := json.Marshal(raw)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	var generic any
	if err = json.Unmarshal(js, &generic); err != nil {
		return nil, errors.WithStack(err)
	}
	if js, err = json.Marshal(singleTypes(generic)); err != nil {
		return nil, errors.WithStack(err)
	}
	sc := new(jsonschema.Schema)
	if err = json.Unmarshal(js, sc); err != nil {
		return nil, errors.WithStack(err)
	}
	return sc, nil
}

func singleTypes(v any) any {
	switch node := v.(type) {
	case map[string]any:
		for k, child := range node {
			if k != "type" {
				node[k] = singleTypes(child)
				continue
			}
			switch t := child.(type) {
			case string:
			case map[string]any:
				// a property named "type"
				node[k] = singleTypes(t)
			case []any:
				if name := firstTypeName(t); name != "" {
					node[k] = name
				} else {
					delete(node, k)
				}
			default:
				delete(node, k)
			}
		}
	case []any:
		for i, child := range node {
			node[i] = singleTypes(child)
		}
	}
	return v
}

func firstTypeName(list []any) string {
	for _, item := range list {
		if name, ok := item.(string); ok && name != "null" {
			return name
		}
	}
	return ""
}

func toToolResult(res *mcpsdk.CallToolResult) *ToolResult {
	out := new(ToolResult)
	if res == nil {
		return out
	}
	out.IsError = res.IsError
	for _, c := range res.Content {
		switch content := c.(type) {
		case *mcpsdk.TextContent:
			out.Content = append(out.Content, ContentItem{Type: "text", Text: content.Text})
		case *mcpsdk.ImageContent:
			out.Content = append(out.Content, ContentItem{Type: "image", Text: content.MIMEType})
		default:
			// keep the position, the caller returns the first item
			out.Content = append(out.Content, ContentItem{Type: "unknown"})
		}
	}
	return out
}
