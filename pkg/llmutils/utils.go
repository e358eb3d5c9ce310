// Package llmutils has helpers for model input and output.
package llmutils

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/effective-security/mcpagent/pkg/llms"
	"github.com/effective-security/x/values"
)

// CleanJSON returns the JSON object or array embedded in a model reply,
// dropping any prose or code fence around it, as in
// "Here you go: ```json {...} ```".
// The input is returned as is when it has no JSON delimiters.
func CleanJSON(bs []byte) []byte {
	start := bytes.IndexAny(bs, "{[")
	if start < 0 {
		return bs
	}
	bs = bs[start:]
	if end := bytes.LastIndexAny(bs, "}]"); end >= 0 {
		bs = bs[:end+1]
	}
	return bs
}

// PrintMessages is a debugging helper for the message history.
func PrintMessages(w io.Writer, msgs []llms.Message) {
	for _, m := range msgs {
		fmt.Fprintf(w, "%s: %s", strings.ToUpper(string(m.Role)), values.StringsCoalesce(m.GetContent(), "\n"))
	}
}

// CountMessagesContentSize returns the number of bytes of roles, text, and
// tool call fields in the messages.
func CountMessagesContentSize(msgs []llms.Message) uint64 {
	var size int
	for _, m := range msgs {
		size += len(m.Role)
		for _, p := range m.Parts {
			size += partSize(p)
		}
	}
	return uint64(size)
}

func partSize(p llms.ContentPart) int {
	switch v := p.(type) {
	case llms.TextContent:
		return len(v.Text)
	case llms.ToolCall:
		n := len(v.ID) + len(v.Type)
		if v.FunctionCall != nil {
			n += len(v.FunctionCall.Name) + len(v.FunctionCall.Arguments)
		}
		return n
	case llms.ToolCallResponse:
		return len(v.ToolCallID) + len(v.Name) + len(v.Content)
	}
	return 0
}

// CountTokens returns the token usage reported in the response
func CountTokens(resp *llms.ContentResponse) (in, out, total int64) {
	if resp == nil {
		return
	}
	for _, choice := range resp.Choices {
		info := values.MapAny(choice.GenerationInfo)
		in += info.Int64("InputTokens")
		out += info.Int64("OutputTokens")
		total += info.Int64("TotalTokens")
	}
	return
}

// EnsureEndsWithNewline trims the surrounding space and terminates
// a non-empty s with a single newline.
func EnsureEndsWithNewline(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	return s + "\n"
}
