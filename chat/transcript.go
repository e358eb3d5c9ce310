package chat

import (
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpagent/pkg/llms"
)

var (
	// ErrUnknownToolCall is returned when a tool result references a call
	// that is not in the transcript
	ErrUnknownToolCall = errors.New("tool result references unknown call")
	// ErrDuplicateToolCall is returned when a call ID is reused,
	// or a call has more than one result
	ErrDuplicateToolCall = errors.New("duplicate tool call")
)

// Entry is one of UserMessage, AssistantText, AssistantToolCall or ToolResult
type Entry interface {
	isEntry()
}

// UserMessage is the user input
type UserMessage struct {
	Text string
}

// AssistantText is the final text of the model
type AssistantText struct {
	Text string
}

// AssistantToolCall is a tool invocation requested by the model
type AssistantToolCall struct {
	Call ToolCallEnvelope
}

// ToolResult is the result of a tool invocation
type ToolResult struct {
	Result ToolResultEnvelope
}

func (UserMessage) isEntry()       {}
func (AssistantText) isEntry()     {}
func (AssistantToolCall) isEntry() {}
func (ToolResult) isEntry()        {}

// ToolCallEnvelope identifies a call, Arguments is the JSON text
// produced by the model
type ToolCallEnvelope struct {
	ID        string
	Name      string
	Arguments string
}

// ToolResultEnvelope carries the result for the call with CallID
type ToolResultEnvelope struct {
	CallID  string
	Name    string
	Content string
}

// Transcript is the ordered, append-only conversation history.
// Every ToolResult follows the AssistantToolCall with the same ID.
type Transcript struct {
	entries []Entry
	// call ID to answered
	calls map[string]bool
}

// NewTranscript returns an empty transcript
func NewTranscript() *Transcript {
	return &Transcript{
		calls: map[string]bool{},
	}
}

// Append adds the entries in order, it stops at the first entry
// that breaks the call and result pairing
func (t *Transcript) Append(entries ...Entry) error {
	for _, e := range entries {
		switch v := e.(type) {
		case AssistantToolCall:
			if v.Call.ID == "" {
				return errors.New("tool call ID is empty")
			}
			if _, ok := t.calls[v.Call.ID]; ok {
				return errors.Wrapf(ErrDuplicateToolCall, "call %s", v.Call.ID)
			}
			t.calls[v.Call.ID] = false
		case ToolResult:
			answered, ok := t.calls[v.Result.CallID]
			if !ok {
				return errors.Wrapf(ErrUnknownToolCall, "call %s", v.Result.CallID)
			}
			if answered {
				return errors.Wrapf(ErrDuplicateToolCall, "result for call %s", v.Result.CallID)
			}
			t.calls[v.Result.CallID] = true
		case UserMessage, AssistantText:
		default:
			return errors.Newf("unsupported entry %T", e)
		}
		t.entries = append(t.entries, e)
	}
	return nil
}

// Entries returns a copy of the entries
func (t *Transcript) Entries() []Entry {
	return slices.Clone(t.entries)
}

// Len returns the number of entries
func (t *Transcript) Len() int {
	return len(t.entries)
}

// Messages converts the transcript for the generation call
func (t *Transcript) Messages() []llms.Message {
	msgs := make([]llms.Message, 0, len(t.entries))
	for _, e := range t.entries {
		switch v := e.(type) {
		case UserMessage:
			msgs = append(msgs, llms.MessageFromTextParts(llms.RoleHuman, v.Text))
		case AssistantText:
			msgs = append(msgs, llms.MessageFromTextParts(llms.RoleAI, v.Text))
		case AssistantToolCall:
			msgs = append(msgs, llms.MessageFromToolCalls(llms.RoleAI, llms.ToolCall{
				ID:   v.Call.ID,
				Type: "function",
				FunctionCall: &llms.FunctionCall{
					Name:      v.Call.Name,
					Arguments: v.Call.Arguments,
				},
			}))
		case ToolResult:
			msgs = append(msgs, llms.MessageFromToolResponse(llms.RoleTool, llms.ToolCallResponse{
				ToolCallID: v.Result.CallID,
				Name:       v.Result.Name,
				Content:    v.Result.Content,
			}))
		}
	}
	return msgs
}
