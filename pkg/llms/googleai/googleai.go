package googleai

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpagent/pkg/llms"
	"github.com/effective-security/mcpagent/pkg/llms/googleai/internal/genaiutils"
	"github.com/effective-security/x/values"
	"google.golang.org/genai"
)

// ErrNoContentInResponse is returned when Gemini answers without candidates.
var ErrNoContentInResponse = errors.New("googleai: no content in generation response")

// Generation info keys, in addition to the token counters.
const (
	InfoCitations = "citations"
	InfoSafety    = "safety"
)

// GetName implements the Model interface.
func (g *GoogleAI) GetName() string {
	return g.cfg.Model
}

// GetProviderType implements the Model interface.
func (g *GoogleAI) GetProviderType() llms.ProviderType {
	return llms.ProviderGoogleAI
}

// GenerateContent implements the [llms.Model] interface.
//
// System messages become the system instruction, messages with no parts
// are skipped.
func (g *GoogleAI) GenerateContent(ctx context.Context, messages []llms.Message, options ...llms.CallOption) (*llms.ContentResponse, error) {
	opts := llms.NewCallOptions(llms.CallOptions{
		Model:     g.cfg.Model,
		MaxTokens: values.NumbersCoalesce(g.cfg.MaxTokens, DefaultMaxTokens),
	}, options...)

	callCfg := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(opts.MaxTokens),
	}
	if opts.Temperature > 0 {
		callCfg.Temperature = genai.Ptr(float32(opts.Temperature))
	}
	if len(opts.Tools) > 0 {
		tool, err := genaiutils.Tool(opts.Tools)
		if err != nil {
			return nil, err
		}
		callCfg.Tools = []*genai.Tool{tool}
	}

	history := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		content, err := toContent(m)
		if err != nil {
			return nil, err
		}
		switch {
		case m.Role == llms.RoleSystem:
			callCfg.SystemInstruction = content
		case len(content.Parts) > 0:
			history = append(history, content)
		}
	}

	resp, err := g.client.Models.GenerateContent(ctx, opts.Model, history, callCfg)
	if err != nil {
		return nil, errors.Wrap(err, "googleai: failed to generate content")
	}
	if len(resp.Candidates) == 0 {
		return nil, ErrNoContentInResponse
	}
	return fromCandidates(resp.Candidates, resp.UsageMetadata)
}

func fromCandidates(candidates []*genai.Candidate, usage *genai.GenerateContentResponseUsageMetadata) (*llms.ContentResponse, error) {
	res := &llms.ContentResponse{
		Choices: make([]*llms.ContentChoice, 0, len(candidates)),
	}
	for _, c := range candidates {
		choice := &llms.ContentChoice{
			StopReason: string(c.FinishReason),
			GenerationInfo: map[string]any{
				InfoCitations: c.CitationMetadata,
				InfoSafety:    c.SafetyRatings,
			},
		}
		if usage != nil {
			choice.GenerationInfo["InputTokens"] = usage.PromptTokenCount
			choice.GenerationInfo["OutputTokens"] = usage.CandidatesTokenCount + usage.ToolUsePromptTokenCount + usage.ThoughtsTokenCount
			choice.GenerationInfo["TotalTokens"] = usage.TotalTokenCount
		}

		var text strings.Builder
		if c.Content != nil {
			for _, part := range c.Content.Parts {
				if part.Thought {
					continue
				}
				if part.FunctionCall != nil {
					call, err := fromFunctionCall(part.FunctionCall)
					if err != nil {
						return nil, err
					}
					choice.ToolCalls = append(choice.ToolCalls, call)
					continue
				}
				// inline data and executable code parts are not requested
				text.WriteString(part.Text)
			}
		}
		choice.Content = text.String()
		res.Choices = append(res.Choices, choice)
	}
	return res, nil
}

func fromFunctionCall(fc *genai.FunctionCall) (llms.ToolCall, error) {
	args := fc.Args
	if args == nil {
		args = map[string]any{}
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return llms.ToolCall{}, errors.Wrapf(err, "googleai: function call %s arguments", fc.Name)
	}
	return llms.ToolCall{
		ID:   fc.ID,
		Type: "function",
		FunctionCall: &llms.FunctionCall{
			Name:      fc.Name,
			Arguments: string(raw),
		},
	}, nil
}

// geminiRoles maps message roles to content roles; Gemini only knows
// "user" and "model", tool results travel as user content.
var geminiRoles = map[llms.Role]string{
	llms.RoleSystem: genai.RoleUser,
	llms.RoleHuman:  genai.RoleUser,
	llms.RoleTool:   genai.RoleUser,
	llms.RoleAI:     genai.RoleModel,
}

func toContent(m llms.Message) (*genai.Content, error) {
	role, ok := geminiRoles[m.Role]
	if !ok {
		return nil, errors.Errorf("googleai: role %v not supported", m.Role)
	}

	c := &genai.Content{
		Role:  role,
		Parts: make([]*genai.Part, 0, len(m.Parts)),
	}
	for _, part := range m.Parts {
		switch p := part.(type) {
		case llms.TextContent:
			if p.Text != "" {
				c.Parts = append(c.Parts, genai.NewPartFromText(p.Text))
			}
		case llms.ToolCall:
			if p.FunctionCall == nil {
				return nil, errors.Errorf("googleai: tool call %s without function", p.ID)
			}
			var args map[string]any
			if err := json.Unmarshal([]byte(values.StringsCoalesce(p.FunctionCall.Arguments, "{}")), &args); err != nil {
				return nil, errors.Wrapf(err, "googleai: tool call %s arguments", p.ID)
			}
			c.Parts = append(c.Parts, genai.NewPartFromFunctionCall(p.FunctionCall.Name, args))
		case llms.ToolCallResponse:
			c.Parts = append(c.Parts, genai.NewPartFromFunctionResponse(p.Name, map[string]any{"response": p.Content}))
		default:
			return nil, errors.Errorf("googleai: unsupported part type: %T", part)
		}
	}
	return c, nil
}
