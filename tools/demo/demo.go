// Package demo provides the tools exposed by the mcptools server:
// arithmetic and the system battery status.
package demo

import (
	"context"
	"strconv"

	"github.com/effective-security/mcpagent/mcp"
	"github.com/effective-security/mcpagent/tools"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcpagent", "demo")

const (
	// AddToolName is the name of the addition tool
	AddToolName = "add"
	// BatteryToolName is the name of the battery status tool
	BatteryToolName = "system-battery"
)

// Add returns the sum formatted as the shortest decimal text
func Add(a, b float64) string {
	return strconv.FormatFloat(a+b, 'f', -1, 64)
}

// Tools returns the server tools backed by the battery reader
func Tools(battery *Battery) ([]mcp.ServerTool, error) {
	addParams, err := tools.NewParams(
		tools.Param{Name: "a", Kind: tools.KindNumber},
		tools.Param{Name: "b", Kind: tools.KindNumber},
	)
	if err != nil {
		return nil, err
	}
	noParams, err := tools.NewParams()
	if err != nil {
		return nil, err
	}

	return []mcp.ServerTool{
		{
			Name:        AddToolName,
			Description: "Add two numbers",
			Params:      addParams,
			Handler: func(_ context.Context, args map[string]any) (string, error) {
				return Add(number(args["a"]), number(args["b"])), nil
			},
		},
		{
			Name:        BatteryToolName,
			Description: "Get the current system battery status",
			Params:      noParams,
			Handler: func(ctx context.Context, _ map[string]any) (string, error) {
				return battery.Status(ctx)
			},
		},
	}, nil
}

// number returns the JSON number, the arguments are validated
func number(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}
