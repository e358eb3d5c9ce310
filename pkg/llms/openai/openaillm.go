package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpagent/pkg/llms"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xlog"
	sdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcpagent", "openai")

// ErrMissingModel is returned when no model name is configured.
var ErrMissingModel = errors.New("openai: model is required")

// Config for the Chat Completions client. Token and BaseURL fall back
// to the SDK defaults, which read OPENAI_API_KEY and OPENAI_BASE_URL.
type Config struct {
	Token        string
	Model        string
	BaseURL      string
	Organization string
	// MaxTokens is the completion limit, zero for the model default
	MaxTokens  int
	HTTPClient *http.Client
}

// LLM is the OpenAI Chat Completions adapter.
type LLM struct {
	client *sdk.Client
	cfg    Config
}

var _ llms.Model = (*LLM)(nil)

// New returns a new OpenAI LLM.
func New(cfg Config) (*LLM, error) {
	if cfg.Model == "" {
		return nil, ErrMissingModel
	}

	// generation is not retried
	reqOpts := []option.RequestOption{
		option.WithMaxRetries(0),
	}
	if cfg.Token != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(cfg.Token))
	}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Organization != "" {
		reqOpts = append(reqOpts, option.WithOrganization(cfg.Organization))
	}
	if cfg.HTTPClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(cfg.HTTPClient))
	}

	c := sdk.NewClient(reqOpts...)
	return &LLM{
		client: &c,
		cfg:    cfg,
	}, nil
}

// GetName implements the Model interface.
func (o *LLM) GetName() string {
	return o.cfg.Model
}

// GetProviderType implements the Model interface.
func (o *LLM) GetProviderType() llms.ProviderType {
	return llms.ProviderOpenAI
}

// GenerateContent implements the Model interface.
func (o *LLM) GenerateContent(ctx context.Context, messages []llms.Message, options ...llms.CallOption) (*llms.ContentResponse, error) {
	opts := llms.NewCallOptions(llms.CallOptions{
		Model:     o.cfg.Model,
		MaxTokens: o.cfg.MaxTokens,
	}, options...)

	msgs, err := ToMessages(messages)
	if err != nil {
		return nil, err
	}

	params := sdk.ChatCompletionNewParams{
		Model:    sdk.ChatModel(opts.Model),
		Messages: msgs,
	}
	if opts.MaxTokens > 0 {
		params.MaxCompletionTokens = sdk.Int(int64(opts.MaxTokens))
	}
	if opts.Temperature > 0 {
		params.Temperature = sdk.Float(opts.Temperature)
	}
	if len(opts.Tools) > 0 {
		params.Tools, err = ToTools(opts.Tools)
		if err != nil {
			return nil, err
		}
	}

	logger.ContextKV(ctx, xlog.DEBUG,
		"model", opts.Model,
		"messages", len(msgs),
		"tools", len(params.Tools),
	)

	result, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, errors.Wrap(err, "openai: failed to create chat completion")
	}
	if len(result.Choices) == 0 {
		return nil, llms.ErrEmptyResponse
	}

	choices := make([]*llms.ContentChoice, len(result.Choices))
	for i, c := range result.Choices {
		choice := &llms.ContentChoice{
			Content:    c.Message.Content,
			StopReason: string(c.FinishReason),
			GenerationInfo: map[string]any{
				"InputTokens":  result.Usage.PromptTokens,
				"OutputTokens": result.Usage.CompletionTokens,
				"TotalTokens":  result.Usage.TotalTokens,
				"ID":           result.ID,
				"Index":        i,
			},
		}
		for _, tc := range c.Message.ToolCalls {
			choice.ToolCalls = append(choice.ToolCalls, llms.ToolCall{
				ID:   tc.ID,
				Type: values.StringsCoalesce(string(tc.Type), "function"),
				FunctionCall: &llms.FunctionCall{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				},
			})
		}
		choices[i] = choice
	}
	return &llms.ContentResponse{Choices: choices}, nil
}

// ToMessages converts the transcript messages to Chat Completions messages.
// Each tool response part becomes its own tool message.
func ToMessages(messages []llms.Message) ([]sdk.ChatCompletionMessageParamUnion, error) {
	msgs := make([]sdk.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, mc := range messages {
		switch mc.Role {
		case llms.RoleSystem:
			msgs = append(msgs, sdk.SystemMessage(textOf(mc)))
		case llms.RoleHuman:
			msgs = append(msgs, sdk.UserMessage(textOf(mc)))
		case llms.RoleAI:
			asst := sdk.ChatCompletionAssistantMessageParam{}
			for _, part := range mc.Parts {
				tc, ok := part.(llms.ToolCall)
				if !ok || tc.FunctionCall == nil {
					continue
				}
				asst.ToolCalls = append(asst.ToolCalls, sdk.ChatCompletionMessageToolCallUnionParam{
					OfFunction: &sdk.ChatCompletionMessageFunctionToolCallParam{
						ID: tc.ID,
						Function: sdk.ChatCompletionMessageFunctionToolCallFunctionParam{
							Name:      tc.FunctionCall.Name,
							Arguments: tc.FunctionCall.Arguments,
						},
					},
				})
			}
			if text := textOf(mc); text != "" || len(asst.ToolCalls) == 0 {
				asst.Content = sdk.ChatCompletionAssistantMessageParamContentUnion{
					OfString: sdk.String(text),
				}
			}
			msgs = append(msgs, sdk.ChatCompletionMessageParamUnion{OfAssistant: &asst})
		case llms.RoleTool:
			for _, part := range mc.Parts {
				p, ok := part.(llms.ToolCallResponse)
				if !ok {
					return nil, errors.Errorf("openai: expected part of type ToolCallResponse for role %v, got %T", mc.Role, part)
				}
				msgs = append(msgs, sdk.ToolMessage(p.Content, p.ToolCallID))
			}
		default:
			return nil, errors.Errorf("openai: role %v not supported", mc.Role)
		}
	}
	return msgs, nil
}

// ToTools converts the tool definitions to Chat Completions function tools.
func ToTools(tools []llms.Tool) ([]sdk.ChatCompletionToolUnionParam, error) {
	res := make([]sdk.ChatCompletionToolUnionParam, 0, len(tools))
	for _, tool := range tools {
		if tool.Function == nil {
			return nil, errors.Errorf("openai: tool %q: function definition is required", tool.Type)
		}

		def := sdk.FunctionDefinitionParam{
			Name: tool.Function.Name,
		}
		if tool.Function.Description != "" {
			def.Description = sdk.String(tool.Function.Description)
		}
		if tool.Function.Strict {
			def.Strict = sdk.Bool(true)
		}
		if tool.Function.Parameters != nil {
			js, err := json.Marshal(tool.Function.Parameters)
			if err != nil {
				return nil, errors.Wrapf(err, "openai: tool %q", tool.Function.Name)
			}
			var params sdk.FunctionParameters
			if err = json.Unmarshal(js, &params); err != nil {
				return nil, errors.Wrapf(err, "openai: tool %q", tool.Function.Name)
			}
			def.Parameters = params
		}

		res = append(res, sdk.ChatCompletionToolUnionParam{
			OfFunction: &sdk.ChatCompletionFunctionToolParam{
				Function: def,
			},
		})
	}
	return res, nil
}

func textOf(mc llms.Message) string {
	var parts []string
	for _, part := range mc.Parts {
		if tc, ok := part.(llms.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}
