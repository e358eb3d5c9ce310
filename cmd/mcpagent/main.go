// Command mcpagent chats with an LLM that can call the tools of an MCP server.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpagent/callbacks"
	"github.com/effective-security/mcpagent/chat"
	"github.com/effective-security/mcpagent/config"
	"github.com/effective-security/mcpagent/mcp"
	"github.com/effective-security/mcpagent/pkg/llmfactory"
	"github.com/effective-security/mcpagent/pkg/llms"
	"github.com/effective-security/mcpagent/tools/mcptool"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcpagent", "mcpagent")

func main() {
	// stdout is the chat surface
	xlog.SetFormatter(xlog.NewStringFormatter(os.Stderr))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err.Error())
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, in io.Reader, out io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err = cfg.Validate(); err != nil {
		return err
	}
	level, _ := cfg.Level()
	xlog.SetGlobalLogLevel(level)

	model, err := llmfactory.New(cfg.LLMConfig()).Model(ctx, cfg.Provider)
	if err != nil {
		return errors.WithMessage(err, "failed to create LLM")
	}

	client, err := mcp.Connect(ctx, mcp.CommandTransport(ctx, cfg.ServerCommand, cfg.ServerArgs...))
	if err != nil {
		return errors.WithMessagef(err, "failed to connect to %s", cfg.ServerCommand)
	}
	defer func() {
		_ = client.Close()
	}()

	var opts []mcptool.Option
	if cfg.LenientSchema {
		opts = append(opts, mcptool.WithLenientSchema())
	}
	registry, err := mcptool.NewRegistry(ctx, client, opts...)
	if err != nil {
		return err
	}

	logger.KV(xlog.INFO,
		"status", "connected",
		"server", cfg.ServerCommand,
		"model", model.GetName(),
		"tools", registry.Names(),
	)

	cb := callbacks.NewFanout(callbacks.NewPackageLogger(logger))
	if cfg.IsVerbose() {
		cb.Add(callbacks.NewPrinter(out, callbacks.ModeDefault))
	}

	loopOpts := []chat.Option{
		chat.WithSystemPrompt(cfg.SystemPrompt),
		chat.WithExitCommand(cfg.ExitCommand),
		chat.WithCallback(cb),
	}
	if cfg.Temperature > 0 {
		loopOpts = append(loopOpts, chat.WithCallOptions(llms.WithTemperature(cfg.Temperature)))
	}
	loop := chat.New(model, registry, loopOpts...)

	if cfg.Prompt != "" {
		return loop.RunPrompt(ctx, cfg.Prompt, out)
	}
	return loop.Run(ctx, in, out)
}
