// Package mcptool builds the tool registry from the tools exposed by a
// remote MCP server.
package mcptool

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpagent/mcp"
	"github.com/effective-security/mcpagent/pkg/metricskey"
	"github.com/effective-security/mcpagent/tools"
	"github.com/effective-security/xlog"
	"github.com/invopop/jsonschema"
)

//go:generate mockgen -source=mcptool.go -destination=../../mocks/mockmcptool/mcptool_mock.gen.go -package mockmcptool

var logger = xlog.NewPackageLogger("github.com/effective-security/mcpagent", "mcptool")

var (
	// ErrNoContent is returned when the server result has no content items
	ErrNoContent = errors.New("tool returned no content")
	// ErrToolFailed is returned when the server reports the call as failed
	ErrToolFailed = errors.New("tool execution failed")
)

// Session is the connection to the tool server
type Session interface {
	ListTools(ctx context.Context) ([]mcp.ToolDescriptor, error)
	CallTool(ctx context.Context, name string, args map[string]any) (*mcp.ToolResult, error)
}

var _ Session = (*mcp.Client)(nil)

// Option configures the registry builder
type Option func(*options)

type options struct {
	lenient bool
}

// WithLenientSchema coerces parameters of unsupported types to strings
// instead of failing.
func WithLenientSchema() Option {
	return func(o *options) {
		o.lenient = true
	}
}

// Tool invokes a remote tool
type Tool struct {
	session     Session
	name        string
	description string
	params      *tools.Params
}

var _ tools.ITool = (*Tool)(nil)

// NewRegistry lists the server tools once and returns
// a registry of invokable wrappers.
func NewRegistry(ctx context.Context, session Session, opts ...Option) (*tools.Registry, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	list, err := session.ListTools(ctx)
	if err != nil {
		return nil, err
	}

	registry, err := tools.NewRegistry()
	if err != nil {
		return nil, err
	}
	for _, desc := range list {
		t, err := NewTool(session, desc, o.lenient)
		if err != nil {
			return nil, err
		}
		if err = registry.Add(t); err != nil {
			return nil, err
		}
	}

	logger.ContextKV(ctx, xlog.DEBUG,
		"status", "registry_built",
		"tools", registry.Names(),
	)
	return registry, nil
}

// NewTool returns the wrapper for the remote tool
func NewTool(session Session, desc mcp.ToolDescriptor, lenient bool) (*Tool, error) {
	params, err := paramsFromSchema(desc.Name, desc.InputSchema, lenient)
	if err != nil {
		return nil, err
	}
	return &Tool{
		session:     session,
		name:        desc.Name,
		description: desc.Description,
		params:      params,
	}, nil
}

func paramsFromSchema(name string, schema *jsonschema.Schema, lenient bool) (*tools.Params, error) {
	var list []tools.Param
	if schema != nil && schema.Properties != nil {
		for pair := schema.Properties.Oldest(); pair != nil; pair = pair.Next() {
			var tag, description string
			if pair.Value != nil {
				tag = pair.Value.Type
				description = pair.Value.Description
			}

			kind, err := tools.ParseKind(tag)
			if err != nil {
				if !lenient {
					return nil, errors.Wrapf(err, "tool %s: parameter %s", name, pair.Key)
				}
				logger.KV(xlog.WARNING,
					"reason", "coerced_to_string",
					"tool", name,
					"param", pair.Key,
					"type", tag,
				)
				metricskey.StatsToolParamsCoerced.IncrCounter(1, name)
				kind = tools.KindString
			}
			list = append(list, tools.Param{
				Name:        pair.Key,
				Description: description,
				Kind:        kind,
			})
		}
	}

	params, err := tools.NewParams(list...)
	if err != nil {
		return nil, errors.Wrapf(err, "tool %s", name)
	}
	return params, nil
}

// Name returns the name of the Tool.
func (t *Tool) Name() string {
	return t.name
}

// Description returns the description of the Tool.
func (t *Tool) Description() string {
	return t.description
}

// Parameters returns the object schema of the Tool.
func (t *Tool) Parameters() *jsonschema.Schema {
	return t.params.Schema()
}

// Params returns the typed parameters of the Tool.
func (t *Tool) Params() *tools.Params {
	return t.params
}

// Call validates the JSON arguments, invokes the remote tool
// and returns the text of the first content item.
func (t *Tool) Call(ctx context.Context, input string) (string, error) {
	args, err := t.params.Decode(input)
	if err != nil {
		return "", errors.WithMessagef(err, "tool %s", t.name)
	}

	started := time.Now()
	defer metricskey.PerfToolCall.MeasureSince(started, t.name)

	res, err := t.session.CallTool(ctx, t.name, args)
	if err != nil {
		return "", err
	}
	if res.IsError {
		var reason string
		if len(res.Content) > 0 {
			reason = res.Content[0].Text
		}
		return "", errors.Wrapf(ErrToolFailed, "tool %s: %s", t.name, reason)
	}
	if len(res.Content) == 0 {
		return "", errors.Wrapf(ErrNoContent, "tool %s", t.name)
	}
	return res.Content[0].Text, nil
}
