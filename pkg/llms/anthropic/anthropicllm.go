package anthropic

import (
	"context"
	"encoding/json"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpagent/pkg/llms"
	"github.com/effective-security/x/values"
)

var (
	ErrMissingToken           = errors.New("anthropic: API key is required")
	ErrMissingModel           = errors.New("anthropic: model is required")
	ErrUnsupportedMessageType = errors.New("anthropic: unsupported message type")
	ErrUnsupportedContentType = errors.New("anthropic: unsupported content type")
	ErrInvalidContentType     = errors.New("anthropic: invalid content type")
)

// DefaultMaxTokens is sent when neither the client nor the call sets a limit;
// the Messages API requires one.
const DefaultMaxTokens = 4096

// Config configures the Anthropic client.
type Config struct {
	Token     string
	Model     string
	BaseURL   string
	MaxTokens int
	// HTTPClient replaces http.DefaultClient, mostly for tests.
	HTTPClient option.HTTPClient
}

type LLM struct {
	client *anthropic.Client
	cfg    Config
}

var _ llms.Model = (*LLM)(nil)

// New creates a Messages API client.
func New(cfg Config) (*LLM, error) {
	if cfg.Token == "" {
		return nil, ErrMissingToken
	}
	if cfg.Model == "" {
		return nil, ErrMissingModel
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(cfg.Token),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(5 * time.Minute),
	}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(cfg.HTTPClient))
	}

	client := anthropic.NewClient(reqOpts...)
	return &LLM{client: &client, cfg: cfg}, nil
}

// GetName implements the Model interface.
func (o *LLM) GetName() string {
	return o.cfg.Model
}

// GetProviderType implements the Model interface.
func (o *LLM) GetProviderType() llms.ProviderType {
	return llms.ProviderAnthropic
}

// GenerateContent implements the Model interface.
//
// Text and tool use blocks of the response are returned as separate choices,
// in the order the model produced them.
func (o *LLM) GenerateContent(ctx context.Context, messages []llms.Message, options ...llms.CallOption) (*llms.ContentResponse, error) {
	opts := llms.NewCallOptions(llms.CallOptions{
		Model:     o.cfg.Model,
		MaxTokens: o.cfg.MaxTokens,
	}, options...)

	sdkMessages, systemPrompt, err := ProcessMessages(messages)
	if err != nil {
		return nil, err
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(opts.Model),
		Messages:  sdkMessages,
		MaxTokens: values.NumbersCoalesce(int64(opts.MaxTokens), DefaultMaxTokens),
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{
			{
				Type: "text",
				Text: systemPrompt,
			},
		}
	}
	if opts.Temperature > 0 {
		params.Temperature = anthropic.Float(opts.Temperature)
	}
	if tools := ToTools(opts.Tools); len(tools) > 0 {
		params.Tools = tools
	}

	result, err := o.client.Messages.New(ctx, params)
	if err != nil {
		return nil, errors.Wrap(err, "anthropic: failed to create message")
	}
	if len(result.Content) == 0 {
		return nil, llms.ErrEmptyResponse
	}

	choices := make([]*llms.ContentChoice, 0, len(result.Content))
	for i, contentBlock := range result.Content {
		info := map[string]any{
			"InputTokens":  result.Usage.InputTokens,
			"OutputTokens": result.Usage.OutputTokens,
			"TotalTokens":  result.Usage.InputTokens + result.Usage.OutputTokens,
			"ID":           result.ID,
			"Index":        i,
		}
		// usage is reported once per response
		if i > 0 {
			info["InputTokens"], info["OutputTokens"], info["TotalTokens"] = int64(0), int64(0), int64(0)
		}

		switch content := contentBlock.AsAny().(type) {
		case anthropic.TextBlock:
			choices = append(choices, &llms.ContentChoice{
				Content:        content.Text,
				StopReason:     string(result.StopReason),
				GenerationInfo: info,
			})
		case anthropic.ToolUseBlock:
			argumentsJSON, err := json.Marshal(content.Input)
			if err != nil {
				return nil, errors.Wrap(err, "anthropic: failed to marshal tool use arguments")
			}
			choices = append(choices, &llms.ContentChoice{
				ToolCalls: []llms.ToolCall{
					{
						ID:   content.ID,
						Type: "function",
						FunctionCall: &llms.FunctionCall{
							Name:      content.Name,
							Arguments: string(argumentsJSON),
						},
					},
				},
				StopReason:     string(result.StopReason),
				GenerationInfo: info,
			})
		case anthropic.ThinkingBlock, anthropic.RedactedThinkingBlock:
			continue
		default:
			return nil, errors.WithMessagef(ErrUnsupportedContentType, "%T", content)
		}
	}

	return &llms.ContentResponse{
		Choices: choices,
	}, nil
}

// ToTools converts the tool definitions to the Anthropic SDK format.
// Returns nil if no tools are provided.
func ToTools(tools []llms.Tool) []anthropic.ToolUnionParam {
	if len(tools) == 0 {
		return nil
	}

	sdkTools := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, tool := range tools {
		if tool.Function == nil {
			continue
		}
		// properties go from the ordered map to a regular map for the SDK
		properties := map[string]any{}
		var required []string
		if params := tool.Function.Parameters; params != nil {
			if params.Properties != nil {
				for pair := params.Properties.Oldest(); pair != nil; pair = pair.Next() {
					properties[pair.Key] = pair.Value
				}
			}
			required = params.Required
		}

		inputSchema := anthropic.ToolInputSchemaParam{
			Type:       "object",
			Properties: properties,
		}
		if len(required) > 0 {
			inputSchema.Required = required
		}

		sdkTools = append(sdkTools, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        tool.Function.Name,
				Description: anthropic.String(tool.Function.Description),
				InputSchema: inputSchema,
			},
		})
	}
	return sdkTools
}

// ProcessMessages converts messages to Anthropic SDK message parameters,
// and returns the system prompt separately.
func ProcessMessages(messages []llms.Message) ([]anthropic.MessageParam, string, error) {
	chatMessages := make([]anthropic.MessageParam, 0, len(messages))
	systemPrompt := ""
	for _, msg := range messages {
		if len(msg.Parts) == 0 {
			continue
		}
		switch msg.Role {
		case llms.RoleSystem:
			for _, part := range msg.Parts {
				tc, ok := part.(llms.TextContent)
				if !ok {
					return nil, "", errors.WithMessagef(ErrInvalidContentType, "system message part: %T", part)
				}
				if systemPrompt != "" {
					systemPrompt += "\n"
				}
				systemPrompt += tc.Text
			}
		case llms.RoleHuman:
			var contents []anthropic.ContentBlockParamUnion
			for _, part := range msg.Parts {
				tc, ok := part.(llms.TextContent)
				if !ok {
					return nil, "", errors.WithMessagef(ErrInvalidContentType, "human message part: %T", part)
				}
				contents = append(contents, anthropic.NewTextBlock(tc.Text))
			}
			chatMessages = append(chatMessages, anthropic.NewUserMessage(contents...))
		case llms.RoleAI:
			chatMessage, ok, err := handleAIMessage(msg)
			if err != nil {
				return nil, "", err
			}
			if ok {
				chatMessages = append(chatMessages, chatMessage)
			}
		case llms.RoleTool:
			var contents []anthropic.ContentBlockParamUnion
			for _, part := range msg.Parts {
				resp, ok := part.(llms.ToolCallResponse)
				if !ok {
					return nil, "", errors.WithMessagef(ErrInvalidContentType, "tool message part: %T", part)
				}
				contents = append(contents, anthropic.NewToolResultBlock(resp.ToolCallID, resp.Content, false))
			}
			chatMessages = append(chatMessages, anthropic.NewUserMessage(contents...))
		default:
			return nil, "", errors.WithMessagef(ErrUnsupportedMessageType, "%v", msg.Role)
		}
	}
	return chatMessages, systemPrompt, nil
}

// handleAIMessage returns false when the message has nothing to send,
// the API rejects empty text blocks.
func handleAIMessage(msg llms.Message) (anthropic.MessageParam, bool, error) {
	var contents []anthropic.ContentBlockParamUnion
	for _, part := range msg.Parts {
		switch p := part.(type) {
		case llms.ToolCall:
			if p.FunctionCall == nil {
				return anthropic.MessageParam{}, false, errors.WithMessagef(ErrInvalidContentType, "tool call %s without function", p.ID)
			}
			var input json.RawMessage
			if err := json.Unmarshal([]byte(values.StringsCoalesce(p.FunctionCall.Arguments, "{}")), &input); err != nil {
				return anthropic.MessageParam{}, false, errors.Wrap(err, "anthropic: failed to unmarshal tool call arguments")
			}
			contents = append(contents, anthropic.NewToolUseBlock(p.ID, input, p.FunctionCall.Name))
		case llms.TextContent:
			if p.Text != "" {
				contents = append(contents, anthropic.NewTextBlock(p.Text))
			}
		default:
			return anthropic.MessageParam{}, false, errors.WithMessagef(ErrInvalidContentType, "AI message part: %T", part)
		}
	}
	if len(contents) == 0 {
		return anthropic.MessageParam{}, false, nil
	}
	return anthropic.NewAssistantMessage(contents...), true, nil
}
