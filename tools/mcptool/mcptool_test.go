package mcptool_test

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpagent/mcp"
	"github.com/effective-security/mcpagent/mocks/mockmcptool"
	"github.com/effective-security/mcpagent/tools"
	"github.com/effective-security/mcpagent/tools/mcptool"
	"github.com/invopop/jsonschema"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"go.uber.org/mock/gomock"
)

func objectSchema(props ...string) *jsonschema.Schema {
	m := orderedmap.New[string, *jsonschema.Schema]()
	for i := 0; i+1 < len(props); i += 2 {
		m.Set(props[i], &jsonschema.Schema{Type: props[i+1], Description: props[i] + " value"})
	}
	return &jsonschema.Schema{Type: "object", Properties: m}
}

var (
	addDescriptor = mcp.ToolDescriptor{
		Name:        "add",
		Description: "Add two numbers",
		InputSchema: objectSchema("a", "number", "b", "number"),
	}
	batteryDescriptor = mcp.ToolDescriptor{
		Name:        "system-battery",
		Description: "Battery status",
		InputSchema: &jsonschema.Schema{Type: "object"},
	}
)

func TestNewRegistry(t *testing.T) {
	ctrl := gomock.NewController(t)
	session := mockmcptool.NewMockSession(ctrl)
	ctx := context.Background()

	session.EXPECT().ListTools(gomock.Any()).Return([]mcp.ToolDescriptor{addDescriptor, batteryDescriptor}, nil)

	r, err := mcptool.NewRegistry(ctx, session)
	require.NoError(t, err)
	assert.Equal(t, []string{"add", "system-battery"}, r.Names())

	add, ok := r.Get("add")
	require.True(t, ok)
	assert.Equal(t, "Add two numbers", add.Description())

	sc := add.Parameters()
	assert.Equal(t, []string{"a", "b"}, sc.Required)
	assert.Equal(t, jsonschema.FalseSchema, sc.AdditionalProperties)

	params := add.(*mcptool.Tool).Params().List()
	assert.Equal(t, []tools.Param{
		{Name: "a", Description: "a value", Kind: tools.KindNumber},
		{Name: "b", Description: "b value", Kind: tools.KindNumber},
	}, params)

	battery, ok := r.Get("system-battery")
	require.True(t, ok)
	assert.Empty(t, battery.Parameters().Required)
}

func TestNewRegistry_Errors(t *testing.T) {
	ctrl := gomock.NewController(t)
	session := mockmcptool.NewMockSession(ctrl)
	ctx := context.Background()

	session.EXPECT().ListTools(gomock.Any()).Return(nil, errors.New("connection closed"))
	_, err := mcptool.NewRegistry(ctx, session)
	assert.EqualError(t, err, "connection closed")

	session.EXPECT().ListTools(gomock.Any()).Return([]mcp.ToolDescriptor{addDescriptor, addDescriptor}, nil)
	_, err = mcptool.NewRegistry(ctx, session)
	assert.EqualError(t, err, "tool add already registered")

	flag := mcp.ToolDescriptor{
		Name:        "toggle",
		InputSchema: objectSchema("on", "boolean"),
	}
	session.EXPECT().ListTools(gomock.Any()).Return([]mcp.ToolDescriptor{flag}, nil)
	_, err = mcptool.NewRegistry(ctx, session)
	require.Error(t, err)
	assert.ErrorIs(t, err, tools.ErrUnsupportedKind)
	assert.Contains(t, err.Error(), "tool toggle: parameter on")
}

// Lenient mode is lossy: non-number parameters become strings.
func TestNewRegistry_LenientSchema(t *testing.T) {
	ctrl := gomock.NewController(t)
	session := mockmcptool.NewMockSession(ctrl)
	ctx := context.Background()

	flag := mcp.ToolDescriptor{
		Name:        "toggle",
		InputSchema: objectSchema("on", "boolean", "level", "integer", "tags", "array"),
	}
	session.EXPECT().ListTools(gomock.Any()).Return([]mcp.ToolDescriptor{flag}, nil)

	r, err := mcptool.NewRegistry(ctx, session, mcptool.WithLenientSchema())
	require.NoError(t, err)

	tool, ok := r.Get("toggle")
	require.True(t, ok)
	params := tool.(*mcptool.Tool).Params().List()
	require.Len(t, params, 3)
	assert.Equal(t, tools.KindString, params[0].Kind)
	assert.Equal(t, tools.KindNumber, params[1].Kind)
	assert.Equal(t, tools.KindString, params[2].Kind)

	// a boolean argument is now rejected
	_, err = tool.Call(ctx, `{"on": true, "level": 1, "tags": "a"}`)
	assert.ErrorIs(t, err, tools.ErrInvalidArguments)
}

func TestToolCall(t *testing.T) {
	ctrl := gomock.NewController(t)
	session := mockmcptool.NewMockSession(ctrl)
	ctx := context.Background()

	tool, err := mcptool.NewTool(session, addDescriptor, false)
	require.NoError(t, err)
	assert.Equal(t, "add", tool.Name())

	args := map[string]any{"a": 20.0, "b": 33.0}

	session.EXPECT().CallTool(gomock.Any(), "add", args).Return(&mcp.ToolResult{
		Content: []mcp.ContentItem{{Type: "text", Text: "53"}, {Type: "text", Text: "ignored"}},
	}, nil)
	res, err := tool.Call(ctx, `{"a": 20, "b": 33}`)
	require.NoError(t, err)
	assert.Equal(t, "53", res)

	t.Run("no content", func(t *testing.T) {
		session.EXPECT().CallTool(gomock.Any(), "add", args).Return(&mcp.ToolResult{}, nil)
		_, err := tool.Call(ctx, `{"a": 20, "b": 33}`)
		assert.ErrorIs(t, err, mcptool.ErrNoContent)
	})

	t.Run("is error", func(t *testing.T) {
		session.EXPECT().CallTool(gomock.Any(), "add", args).Return(&mcp.ToolResult{
			IsError: true,
			Content: []mcp.ContentItem{{Type: "text", Text: "overflow"}},
		}, nil)
		_, err := tool.Call(ctx, `{"a": 20, "b": 33}`)
		assert.ErrorIs(t, err, mcptool.ErrToolFailed)
		assert.Contains(t, err.Error(), "overflow")
	})

	t.Run("remote error", func(t *testing.T) {
		session.EXPECT().CallTool(gomock.Any(), "add", args).Return(nil, errors.New("broken pipe"))
		_, err := tool.Call(ctx, `{"a": 20, "b": 33}`)
		assert.EqualError(t, err, "broken pipe")
	})

	t.Run("invalid arguments are not sent", func(t *testing.T) {
		for _, input := range []string{
			`{"a": 20}`,
			`{"a": 20, "b": 33, "c": 1}`,
			`{"a": "20", "b": 33}`,
			`not json`,
		} {
			_, err := tool.Call(ctx, input)
			assert.ErrorIs(t, err, tools.ErrInvalidArguments, input)
		}
	})
}

func TestRegistry_OverMCP(t *testing.T) {
	params, err := tools.NewParams(
		tools.Param{Name: "a", Kind: tools.KindNumber},
		tools.Param{Name: "b", Kind: tools.KindNumber},
	)
	require.NoError(t, err)

	server, err := mcp.NewServer("test", mcp.ServerTool{
		Name:        "add",
		Description: "Add two numbers",
		Params:      params,
		Handler: func(_ context.Context, args map[string]any) (string, error) {
			if args["a"].(float64) < 0 {
				return "", errors.New("negative")
			}
			return "53", nil
		},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client := connect(ctx, t, server)

	r, err := mcptool.NewRegistry(ctx, client)
	require.NoError(t, err)
	tool, ok := r.Get("add")
	require.True(t, ok)

	res, err := tool.Call(ctx, `{"a": 20, "b": 33}`)
	require.NoError(t, err)
	assert.Equal(t, "53", res)

	_, err = tool.Call(ctx, `{"a": -1, "b": 33}`)
	assert.ErrorIs(t, err, mcptool.ErrToolFailed)
}

func TestNewRegistry_TypeLists(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server := mcpsdk.NewServer(&mcpsdk.Implementation{Name: "nullable", Version: "v1"}, nil)
	server.AddTool(&mcpsdk.Tool{
		Name: "scale",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"value": map[string]any{"type": []any{"null", "number"}},
				"note":  map[string]any{"type": []any{"null"}},
			},
			"required": []any{"value"},
		},
	}, func(context.Context, *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
		return &mcpsdk.CallToolResult{}, nil
	})

	_, err := mcptool.NewRegistry(ctx, connect(ctx, t, server))
	require.Error(t, err)
	assert.ErrorIs(t, err, tools.ErrUnsupportedKind)
	assert.Contains(t, err.Error(), "tool scale: parameter note")

	r, err := mcptool.NewRegistry(ctx, connect(ctx, t, server), mcptool.WithLenientSchema())
	require.NoError(t, err)
	tool, ok := r.Get("scale")
	require.True(t, ok)

	kinds := map[string]tools.Kind{}
	for _, p := range tool.(*mcptool.Tool).Params().List() {
		kinds[p.Name] = p.Kind
	}
	assert.Equal(t, map[string]tools.Kind{"value": tools.KindNumber, "note": tools.KindString}, kinds)
}
