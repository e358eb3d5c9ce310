// Package callbacks provides handlers for the conversation loop events.
package callbacks

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/effective-security/mcpagent/chat"
	"github.com/effective-security/mcpagent/pkg/llms"
	"github.com/effective-security/mcpagent/pkg/llmutils"
	"github.com/effective-security/mcpagent/tools"
	"github.com/effective-security/xlog"
)

// ensure that the callbacks implement the correct interfaces
var (
	_ chat.Callback = (*Noop)(nil)
	_ chat.Callback = (*Printer)(nil)
	_ chat.Callback = (*PackageLogger)(nil)
	_ chat.Callback = (*Fanout)(nil)
)

// Mode defines the mode for callback printing
type Mode int

const (
	// ModeDefault prints tool executions
	ModeDefault Mode = iota
	// ModeVerbose prints generation calls and the payload as well
	ModeVerbose
)

// Fanout is a callback handler that forwards the events to multiple callbacks.
type Fanout struct {
	callbacks []chat.Callback
}

func NewFanout(callbacks ...chat.Callback) *Fanout {
	return &Fanout{callbacks: callbacks}
}

func (l *Fanout) Add(callback chat.Callback) {
	l.callbacks = append(l.callbacks, callback)
}

func (l *Fanout) OnLLMCallStart(ctx context.Context, llm llms.Model, messages []llms.Message) {
	for _, callback := range l.callbacks {
		callback.OnLLMCallStart(ctx, llm, messages)
	}
}

func (l *Fanout) OnLLMCallEnd(ctx context.Context, llm llms.Model, resp *llms.ContentResponse) {
	for _, callback := range l.callbacks {
		callback.OnLLMCallEnd(ctx, llm, resp)
	}
}

func (l *Fanout) OnToolStart(ctx context.Context, tool tools.ITool, input string) {
	for _, callback := range l.callbacks {
		callback.OnToolStart(ctx, tool, input)
	}
}

func (l *Fanout) OnToolEnd(ctx context.Context, tool tools.ITool, input string, output string) {
	for _, callback := range l.callbacks {
		callback.OnToolEnd(ctx, tool, input, output)
	}
}

func (l *Fanout) OnToolError(ctx context.Context, tool tools.ITool, input string, err error) {
	for _, callback := range l.callbacks {
		callback.OnToolError(ctx, tool, input, err)
	}
}

func (l *Fanout) OnToolNotFound(ctx context.Context, name string) {
	for _, callback := range l.callbacks {
		callback.OnToolNotFound(ctx, name)
	}
}

func (l *Fanout) OnToolCallsDropped(ctx context.Context, calls []llms.ToolCall) {
	for _, callback := range l.callbacks {
		callback.OnToolCallsDropped(ctx, calls)
	}
}

// Noop does nothing.
type Noop struct{}

func NewNoop() *Noop {
	return &Noop{}
}

func (l *Noop) OnLLMCallStart(ctx context.Context, llm llms.Model, messages []llms.Message) {}
func (l *Noop) OnLLMCallEnd(ctx context.Context, llm llms.Model, resp *llms.ContentResponse) {}
func (l *Noop) OnToolStart(ctx context.Context, tool tools.ITool, input string)              {}
func (l *Noop) OnToolEnd(ctx context.Context, tool tools.ITool, input string, output string) {
}
func (l *Noop) OnToolError(ctx context.Context, tool tools.ITool, input string, err error) {}
func (l *Noop) OnToolNotFound(ctx context.Context, name string)                            {}
func (l *Noop) OnToolCallsDropped(ctx context.Context, calls []llms.ToolCall)              {}

// Printer is a callback handler that prints to the Writer.
type Printer struct {
	Out  io.Writer
	Mode Mode

	lock sync.Mutex
}

func NewPrinter(out io.Writer, mode Mode) *Printer {
	return &Printer{Out: out, Mode: mode}
}

func (l *Printer) OnLLMCallStart(ctx context.Context, llm llms.Model, messages []llms.Message) {
	if l.Mode != ModeVerbose {
		return
	}
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "LLM Call: %s model, %d messages\n", llm.GetName(), len(messages))
	llmutils.PrintMessages(l.Out, messages)
}

func (l *Printer) OnLLMCallEnd(ctx context.Context, llm llms.Model, resp *llms.ContentResponse) {
	if l.Mode != ModeVerbose {
		return
	}
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "LLM Call End: %s model, %d choices, %d tool calls\n",
		llm.GetName(), len(resp.Choices), len(resp.ToolCalls()))
}

func (l *Printer) OnToolStart(ctx context.Context, tool tools.ITool, input string) {
	if l.Mode != ModeVerbose {
		return
	}
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Tool Start: %s\n", tool.Name())
	fmt.Fprintf(l.Out, "Input: %s\n", input)
}

func (l *Printer) OnToolEnd(ctx context.Context, tool tools.ITool, input string, output string) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Tool %s executed with result: %s\n", tool.Name(), output)
}

func (l *Printer) OnToolError(ctx context.Context, tool tools.ITool, input string, err error) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Tool Error: %s: %s\n", tool.Name(), err.Error())
}

func (l *Printer) OnToolNotFound(ctx context.Context, name string) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Tool Not Found: %s\n", name)
}

func (l *Printer) OnToolCallsDropped(ctx context.Context, calls []llms.ToolCall) {
	l.lock.Lock()
	defer l.lock.Unlock()
	for _, call := range calls {
		fmt.Fprintf(l.Out, "Tool Call Dropped: %s\n", call.String())
	}
}

// PackageLogger is a callback handler that prints to the logger.
type PackageLogger struct {
	logger *xlog.PackageLogger
}

func NewPackageLogger(logger *xlog.PackageLogger) *PackageLogger {
	return &PackageLogger{logger: logger}
}

func (l *PackageLogger) OnLLMCallStart(ctx context.Context, llm llms.Model, messages []llms.Message) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "llm_call_start",
		"model", llm.GetName(),
		"messages", len(messages),
	)
}

func (l *PackageLogger) OnLLMCallEnd(ctx context.Context, llm llms.Model, resp *llms.ContentResponse) {
	in, out, total := llmutils.CountTokens(resp)
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "llm_call_end",
		"model", llm.GetName(),
		"choices", len(resp.Choices),
		"tool_calls", len(resp.ToolCalls()),
		"tokens_in", in,
		"tokens_out", out,
		"tokens_total", total,
	)
}

func (l *PackageLogger) OnToolStart(ctx context.Context, tool tools.ITool, input string) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "tool_start",
		"tool", tool.Name(),
		"input", input,
	)
}

func (l *PackageLogger) OnToolEnd(ctx context.Context, tool tools.ITool, input string, output string) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "tool_end",
		"tool", tool.Name(),
		"output", output,
	)
}

func (l *PackageLogger) OnToolError(ctx context.Context, tool tools.ITool, input string, err error) {
	l.logger.ContextKV(ctx, xlog.ERROR,
		"event", "tool_error",
		"tool", tool.Name(),
		"err", err.Error(),
	)
}

func (l *PackageLogger) OnToolNotFound(ctx context.Context, name string) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "tool_not_found",
		"tool", name,
	)
}

func (l *PackageLogger) OnToolCallsDropped(ctx context.Context, calls []llms.ToolCall) {
	names := make([]string, 0, len(calls))
	for _, call := range calls {
		if call.FunctionCall != nil {
			names = append(names, call.FunctionCall.Name)
		}
	}
	l.logger.ContextKV(ctx, xlog.WARNING,
		"event", "tool_calls_dropped",
		"tools", names,
	)
}
