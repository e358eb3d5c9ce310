package chat

import (
	"context"

	"github.com/effective-security/mcpagent/pkg/llms"
	"github.com/effective-security/mcpagent/tools"
)

// Callback receives the loop events
type Callback interface {
	OnLLMCallStart(ctx context.Context, llm llms.Model, messages []llms.Message)
	OnLLMCallEnd(ctx context.Context, llm llms.Model, resp *llms.ContentResponse)
	OnToolStart(ctx context.Context, tool tools.ITool, input string)
	OnToolEnd(ctx context.Context, tool tools.ITool, input string, output string)
	OnToolError(ctx context.Context, tool tools.ITool, input string, err error)
	OnToolNotFound(ctx context.Context, name string)
	// OnToolCallsDropped is called with the tool calls of the follow-up
	// response, which are not executed
	OnToolCallsDropped(ctx context.Context, calls []llms.ToolCall)
}
