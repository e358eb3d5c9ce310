package llmfactory

import (
	"slices"
	"strings"

	"github.com/effective-security/mcpagent/pkg/llms"
	"github.com/effective-security/x/values"
)

// Config is the set of configured providers
type Config struct {
	// DefaultProvider is the name or type of the provider used when none is requested
	DefaultProvider string `json:"default_provider,omitempty" yaml:"default_provider,omitempty"`
	// Providers specifies the list of providers to use
	Providers []*ProviderConfig `json:"providers,omitempty" yaml:"providers,omitempty"`
}

// ProviderConfig for a LLM provider
type ProviderConfig struct {
	Name string `json:"name" yaml:"name"`
	// Type of the API: OPENAI, ANTHROPIC or GOOGLEAI
	Type         string `json:"type,omitempty" yaml:"type,omitempty"`
	Token        string `json:"token,omitempty" yaml:"token,omitempty"`
	BaseURL      string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Organization string `json:"organization,omitempty" yaml:"organization,omitempty"`
	// Model is the default model
	Model string `json:"model,omitempty" yaml:"model,omitempty"`
	// Models that FindModel may select
	Models    []string `json:"models,omitempty" yaml:"models,omitempty"`
	MaxTokens int      `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`

	// Project selects Vertex AI for GOOGLEAI providers
	Project  string `json:"project,omitempty" yaml:"project,omitempty"`
	Location string `json:"location,omitempty" yaml:"location,omitempty"`
	// CredentialsFile is a Google credentials JSON file, Application
	// Default Credentials are used when empty
	CredentialsFile string `json:"credentials_file,omitempty" yaml:"credentials_file,omitempty"`
	// CredentialsType of the file, service_account by default
	CredentialsType string `json:"credentials_type,omitempty" yaml:"credentials_type,omitempty"`
}

// NormalizeType returns the provider type for an API type name, accepting
// GEMINI and OPEN_AI aliases. Empty means OPENAI.
func NormalizeType(apiType string) string {
	switch t := strings.ToUpper(apiType); t {
	case "", "OPEN_AI":
		return string(llms.ProviderOpenAI)
	case "GEMINI":
		return string(llms.ProviderGoogleAI)
	default:
		return t
	}
}

// FindModel returns the first of the preferred models available
// in the provider, or the default model.
func (c *ProviderConfig) FindModel(models ...string) string {
	for _, model := range models {
		if model == c.Model || slices.Contains(c.Models, model) {
			return model
		}
	}
	return c.Model
}

// Provider returns the provider with the given name or type,
// or the default provider when name is empty.
func (c *Config) Provider(name string) *ProviderConfig {
	name = values.StringsCoalesce(name, c.DefaultProvider)
	if name == "" {
		if len(c.Providers) > 0 {
			return c.Providers[0]
		}
		return nil
	}
	for _, p := range c.Providers {
		if strings.EqualFold(p.Name, name) {
			return p
		}
	}
	t := NormalizeType(name)
	for _, p := range c.Providers {
		if NormalizeType(p.Type) == t {
			return p
		}
	}
	return nil
}

// Override merges the non-empty fields of p into the provider of the same
// type, or appends p when there is none.
func (c *Config) Override(p *ProviderConfig) {
	t := NormalizeType(p.Type)
	for _, existing := range c.Providers {
		if NormalizeType(existing.Type) != t {
			continue
		}
		existing.Token = values.StringsCoalesce(p.Token, existing.Token)
		existing.BaseURL = values.StringsCoalesce(p.BaseURL, existing.BaseURL)
		existing.Organization = values.StringsCoalesce(p.Organization, existing.Organization)
		existing.Model = values.StringsCoalesce(p.Model, existing.Model)
		existing.MaxTokens = values.NumbersCoalesce(p.MaxTokens, existing.MaxTokens)
		return
	}
	c.Providers = append(c.Providers, p)
}
