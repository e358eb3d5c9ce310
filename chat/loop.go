package chat

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpagent/chatmodel"
	"github.com/effective-security/mcpagent/pkg/llms"
	"github.com/effective-security/mcpagent/pkg/llmutils"
	"github.com/effective-security/mcpagent/pkg/metricskey"
	"github.com/effective-security/mcpagent/tools"
	"github.com/effective-security/x/slices"
	"github.com/effective-security/xlog"
	"github.com/fatih/color"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcpagent", "chat")

// DefaultExitCommand ends the interactive loop
const DefaultExitCommand = ".exit"

// MaxInputLineSize is the longest input line Run accepts
const MaxInputLineSize = 1024 * 1024

var (
	userLabel      = color.New(color.FgGreen, color.Bold).SprintFunc()
	assistantLabel = color.New(color.FgCyan, color.Bold).SprintFunc()
)

// Option configures the Loop
type Option func(*Loop)

// WithSystemPrompt sets the system prompt sent before the transcript
func WithSystemPrompt(prompt string) Option {
	return func(l *Loop) {
		l.systemPrompt = prompt
	}
}

// WithCallback sets the events callback
func WithCallback(cb Callback) Option {
	return func(l *Loop) {
		l.callback = cb
	}
}

// WithExitCommand sets the input that ends the interactive loop
func WithExitCommand(cmd string) Option {
	return func(l *Loop) {
		if cmd != "" {
			l.exitCommand = cmd
		}
	}
}

// WithCallOptions sets options for every generation call
func WithCallOptions(opts ...llms.CallOption) Option {
	return func(l *Loop) {
		l.callOptions = append(l.callOptions, opts...)
	}
}

// WithChatContext sets the session, by default a new one is created
func WithChatContext(c chatmodel.ChatContext) Option {
	return func(l *Loop) {
		l.chat = c
	}
}

// Loop is the conversation with the model. It owns the transcript,
// and is not safe for concurrent use.
type Loop struct {
	model      llms.Model
	registry   *tools.Registry
	transcript *Transcript
	dispatcher *Dispatcher
	chat       chatmodel.ChatContext

	systemPrompt string
	exitCommand  string
	callback     Callback
	callOptions  []llms.CallOption
}

// New returns the conversation loop for the model and tools
func New(model llms.Model, registry *tools.Registry, opts ...Option) *Loop {
	l := &Loop{
		model:       model,
		registry:    registry,
		transcript:  NewTranscript(),
		exitCommand: DefaultExitCommand,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.registry == nil {
		l.registry, _ = tools.NewRegistry()
	}
	if l.chat == nil {
		l.chat = chatmodel.NewChatContext("")
	}
	l.dispatcher = NewDispatcher(l.registry, l.callback)
	return l
}

// Transcript returns the conversation history
func (l *Loop) Transcript() *Transcript {
	return l.transcript
}

// ChatID returns the session ID
func (l *Loop) ChatID() string {
	return l.chat.GetChatID()
}

// Turn appends the input, generates the response and dispatches at most one
// round of tool calls followed by exactly one follow-up generation.
// Tool calls in the follow-up response are not executed.
func (l *Loop) Turn(ctx context.Context, input string) (string, error) {
	started := time.Now()
	modelName := l.model.GetName()
	defer metricskey.PerfChatTurn.MeasureSince(started, modelName)

	if chatmodel.GetChatContext(ctx) == nil {
		ctx = chatmodel.WithChatContext(ctx, l.chat)
	}
	turn := l.chat.NextTurn()

	if err := l.transcript.Append(UserMessage{Text: input}); err != nil {
		return "", err
	}

	resp, err := l.generate(ctx)
	if err != nil {
		return "", err
	}

	text := resp.Text()
	if calls := resp.ToolCalls(); len(calls) > 0 {
		executed, err := l.dispatcher.Dispatch(ctx, l.transcript, calls)
		if err != nil {
			logger.ContextKV(ctx, xlog.ERROR,
				"chat_id", l.chat.GetChatID(),
				"turn", turn,
				"reason", "dispatch",
				"executed", executed,
				"err", err.Error(),
			)
			return "", err
		}

		resp, err = l.generate(ctx)
		if err != nil {
			return "", err
		}
		if dropped := resp.ToolCalls(); len(dropped) > 0 {
			metricskey.StatsToolCallsDropped.IncrCounter(float64(len(dropped)), modelName)
			logger.ContextKV(ctx, xlog.WARNING,
				"chat_id", l.chat.GetChatID(),
				"turn", turn,
				"reason", "tool_calls_dropped",
				"count", len(dropped),
			)
			if l.callback != nil {
				l.callback.OnToolCallsDropped(ctx, dropped)
			}
		}
		text = resp.Text()
	}

	if err = l.transcript.Append(AssistantText{Text: text}); err != nil {
		return "", err
	}

	logger.ContextKV(ctx, xlog.DEBUG,
		"chat_id", l.chat.GetChatID(),
		"turn", turn,
		"status", "turn_completed",
		"entries", l.transcript.Len(),
		"ai", slices.StringUpto(text, 64),
	)
	return text, nil
}

func (l *Loop) generate(ctx context.Context) (*llms.ContentResponse, error) {
	modelName := l.model.GetName()

	var messages []llms.Message
	if l.systemPrompt != "" {
		messages = append(messages, llms.MessageFromTextParts(llms.RoleSystem, l.systemPrompt))
	}
	messages = append(messages, l.transcript.Messages()...)

	opts := l.callOptions
	if l.registry.Len() > 0 {
		if !l.model.GetProviderType().Supports(llms.CapabilityFunctionCalling) {
			return nil, errors.Newf("model %s does not support function calling", modelName)
		}
		opts = append(opts[:len(opts):len(opts)], llms.WithTools(l.registry.Definitions()))
	}

	if l.callback != nil {
		l.callback.OnLLMCallStart(ctx, l.model, messages)
	}

	metricskey.StatsLLMMessagesSent.IncrCounter(float64(len(messages)), modelName)
	metricskey.StatsLLMBytesSent.IncrCounter(float64(llmutils.CountMessagesContentSize(messages)), modelName)

	started := time.Now()
	resp, err := l.model.GenerateContent(ctx, messages, opts...)
	metricskey.PerfLLMCall.MeasureSince(started, modelName)
	if err != nil {
		metricskey.StatsLLMCallsFailed.IncrCounter(1, modelName)
		return nil, errors.Wrap(err, "failed to generate content from LLM")
	}
	if resp == nil || len(resp.Choices) == 0 {
		metricskey.StatsLLMCallsFailed.IncrCounter(1, modelName)
		return nil, errors.WithStack(llms.ErrEmptyResponse)
	}

	tokensIn, tokensOut, tokensTotal := llmutils.CountTokens(resp)
	metricskey.StatsLLMInputTokens.IncrCounter(float64(tokensIn), modelName)
	metricskey.StatsLLMOutputTokens.IncrCounter(float64(tokensOut), modelName)
	metricskey.StatsLLMTotalTokens.IncrCounter(float64(tokensTotal), modelName)

	if l.callback != nil {
		l.callback.OnLLMCallEnd(ctx, l.model, resp)
	}
	return resp, nil
}

// Run reads one line per turn from in until the exit command or EOF,
// and writes the responses to out. A failed turn ends the loop.
func (l *Loop) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	fmt.Fprintf(out, "Start chatting with the assistant, type %s to quit\n", l.exitCommand)

	defer func() {
		logger.ContextKV(ctx, xlog.INFO,
			"chat_id", l.chat.GetChatID(),
			"status", "session_ended",
			"turns", l.chat.Turn(),
			"duration", time.Since(l.chat.StartedAt()).Round(time.Millisecond).String(),
		)
	}()

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxInputLineSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		fmt.Fprint(out, userLabel("You: "))
		if !scanner.Scan() {
			fmt.Fprintln(out)
			if err := scanner.Err(); err != nil {
				return errors.Wrap(err, "failed to read input")
			}
			return nil
		}

		input := strings.TrimSpace(scanner.Text())
		if input == l.exitCommand {
			fmt.Fprintln(out, "Goodbye!")
			return nil
		}

		if err := l.respond(ctx, input, out); err != nil {
			return err
		}
	}
}

// RunPrompt runs a single turn for the prompt and writes the response to out
func (l *Loop) RunPrompt(ctx context.Context, prompt string, out io.Writer) error {
	return l.respond(ctx, prompt, out)
}

func (l *Loop) respond(ctx context.Context, input string, out io.Writer) error {
	fmt.Fprintln(out, assistantLabel("Assistant: "))
	text, err := l.Turn(ctx, input)
	if err != nil {
		return err
	}
	fmt.Fprint(out, llmutils.EnsureEndsWithNewline(text))
	return nil
}
