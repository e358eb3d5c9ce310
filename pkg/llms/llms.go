package llms

import (
	"context"

	"github.com/cockroachdb/errors"
)

// ErrEmptyResponse is returned when a provider returns no choices.
var ErrEmptyResponse = errors.New("empty response")

// ProviderType is the type of provider.
type ProviderType string

const (
	// ProviderAnthropic is the Anthropic Messages API.
	ProviderAnthropic ProviderType = "ANTHROPIC"
	// ProviderGoogleAI is the Gemini API.
	ProviderGoogleAI ProviderType = "GOOGLEAI"
	// ProviderOpenAI is the OpenAI Chat Completions API, or any compatible endpoint.
	ProviderOpenAI ProviderType = "OPENAI"
)

//go:generate mockgen -source=llms.go -destination=../../mocks/mockllms/llms_mock.gen.go -package mockllms

// Model is an interface multi-modal models implement.
type Model interface {
	// GetName returns the name of the model.
	GetName() string
	// GetProviderType returns the type of provider.
	GetProviderType() ProviderType
	// GenerateContent asks the model to generate content from a sequence of
	// messages. Tools passed with WithTools may be requested by the model
	// in the returned choices.
	GenerateContent(ctx context.Context, messages []Message, options ...CallOption) (*ContentResponse, error)
}

// Capability is a bitmask indicating supported features of an LLM provider.
type Capability uint64

const (
	// CapabilityText is basic text or chat generation
	CapabilityText Capability = 1 << iota
	// CapabilityFunctionCalling is function/tool calling
	CapabilityFunctionCalling
	// CapabilityMultiToolCalling is more than one tool call per response
	CapabilityMultiToolCalling
	// CapabilitySystemPrompt is system prompt support
	CapabilitySystemPrompt
)

var providerCapabilities = map[ProviderType]Capability{
	ProviderOpenAI: CapabilityText |
		CapabilityFunctionCalling |
		CapabilityMultiToolCalling |
		CapabilitySystemPrompt,

	ProviderAnthropic: CapabilityText |
		CapabilityFunctionCalling |
		CapabilityMultiToolCalling |
		CapabilitySystemPrompt,

	ProviderGoogleAI: CapabilityText |
		CapabilityFunctionCalling |
		CapabilityMultiToolCalling |
		CapabilitySystemPrompt,
}

// ProviderCapabilities returns the capabilities of the provider
func ProviderCapabilities(pt ProviderType) Capability {
	return providerCapabilities[pt]
}

// Supports returns true if the provider supports the capability
func (p ProviderType) Supports(cap Capability) bool {
	return ProviderCapabilities(p)&cap != 0
}
