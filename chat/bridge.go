package chat

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpagent/pkg/llms"
	"github.com/effective-security/mcpagent/pkg/metricskey"
	"github.com/effective-security/mcpagent/tools"
	"github.com/effective-security/xlog"
	"github.com/google/uuid"
)

// ErrToolNotFound is returned when the model requests a tool
// that is not in the registry
var ErrToolNotFound = errors.New("tool not found")

// Dispatcher folds tool calls and their results into the transcript
type Dispatcher struct {
	registry *tools.Registry
	callback Callback
}

// NewDispatcher returns a dispatcher for the registry, callback is optional
func NewDispatcher(registry *tools.Registry, callback Callback) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		callback: callback,
	}
}

// Dispatch invokes the calls one at a time in order. For each call the
// AssistantToolCall entry is appended before the invocation, and the
// ToolResult entry after it succeeds. The first failure stops the round,
// leaving the failed call without a result.
func (d *Dispatcher) Dispatch(ctx context.Context, transcript *Transcript, calls []llms.ToolCall) (int, error) {
	executed := 0
	for _, tc := range calls {
		call := ToolCallEnvelope{ID: tc.ID}
		if call.ID == "" {
			call.ID = uuid.NewString()
		}
		if tc.FunctionCall != nil {
			call.Name = tc.FunctionCall.Name
			call.Arguments = tc.FunctionCall.Arguments
		}

		if err := transcript.Append(AssistantToolCall{Call: call}); err != nil {
			return executed, err
		}

		logger.ContextKV(ctx, xlog.DEBUG,
			"status", "tool_call",
			"tool_call_id", call.ID,
			"tool", call.Name,
		)

		tool, ok := d.registry.Get(call.Name)
		if !ok {
			metricskey.StatsToolCallsNotFound.IncrCounter(1, call.Name)
			if d.callback != nil {
				d.callback.OnToolNotFound(ctx, call.Name)
			}
			logger.ContextKV(ctx, xlog.WARNING,
				"reason", "tool_not_found",
				"tool", call.Name,
			)
			return executed, errors.Wrapf(ErrToolNotFound, "tool %q", call.Name)
		}

		if d.callback != nil {
			d.callback.OnToolStart(ctx, tool, call.Arguments)
		}

		output, err := tool.Call(ctx, call.Arguments)
		if err != nil {
			metricskey.StatsToolCallsFailed.IncrCounter(1, call.Name)
			if d.callback != nil {
				d.callback.OnToolError(ctx, tool, call.Arguments, err)
			}
			return executed, errors.WithMessagef(err, "failed to execute tool %s", call.Name)
		}
		metricskey.StatsToolCallsSucceeded.IncrCounter(1, call.Name)
		if d.callback != nil {
			d.callback.OnToolEnd(ctx, tool, call.Arguments, output)
		}

		err = transcript.Append(ToolResult{Result: ToolResultEnvelope{
			CallID:  call.ID,
			Name:    call.Name,
			Content: output,
		}})
		if err != nil {
			return executed, err
		}
		executed++
	}
	return executed, nil
}
