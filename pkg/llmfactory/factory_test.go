package llmfactory_test

import (
	"context"
	"testing"

	"github.com/effective-security/mcpagent/pkg/llmfactory"
	"github.com/effective-security/mcpagent/pkg/llms"
	"github.com/effective-security/x/configloader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadConfig(t *testing.T) *llmfactory.Config {
	t.Helper()
	t.Setenv("OPENAI_API_KEY", "fakekey")
	t.Setenv("ANTHROPIC_API_KEY", "fakekey")

	cfg := new(llmfactory.Config)
	require.NoError(t, configloader.UnmarshalAndExpand("testdata/llm.yaml", cfg))
	require.Len(t, cfg.Providers, 3)
	assert.Equal(t, "fakekey", cfg.Providers[0].Token)
	return cfg
}

func Test_Factory(t *testing.T) {
	cfg := loadConfig(t)

	llmfactory.NewLLM = func(_ context.Context, cfg *llmfactory.ProviderConfig, preferredModels ...string) (llms.Model, error) {
		return &fakeLLM{provider: cfg.Name, model: cfg.FindModel(preferredModels...)}, nil
	}
	defer func() {
		llmfactory.NewLLM = llmfactory.CreateLLM
	}()

	ctx := context.Background()
	f := llmfactory.New(cfg)

	model, err := f.Model(ctx, "")
	require.NoError(t, err)
	fm := model.(*fakeLLM)
	assert.Equal(t, "gpt-4o-mini", fm.model)
	assert.Equal(t, "openai", fm.provider)

	model, err = f.Model(ctx, "openai", "gpt-4.1")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4.1", model.GetName())

	model, err = f.Model(ctx, "ANTHROPIC", "unknown", "claude-haiku-4-5")
	require.NoError(t, err)
	fm = model.(*fakeLLM)
	assert.Equal(t, "claude-haiku-4-5", fm.model)
	assert.Equal(t, "anthropic", fm.provider)

	// falls back to the provider model
	model, err = f.Model(ctx, "anthropic", "non-existent-model")
	require.NoError(t, err)
	assert.Equal(t, "claude-sonnet-4-5", model.GetName())

	// by type, with the alias
	model, err = f.Model(ctx, "GOOGLEAI")
	require.NoError(t, err)
	fm = model.(*fakeLLM)
	assert.Equal(t, "gemini-2.5-flash", fm.model)
	assert.Equal(t, "vertex", fm.provider)

	_, err = f.Model(ctx, "BEDROCK")
	assert.EqualError(t, err, "provider not found: BEDROCK")

	_, err = llmfactory.New(&llmfactory.Config{}).Model(ctx, "")
	assert.EqualError(t, err, "no providers configured")
}

func TestConfig_Override(t *testing.T) {
	cfg := loadConfig(t)

	cfg.Override(&llmfactory.ProviderConfig{Type: "anthropic", Token: "sk-env", Model: "claude-opus-4-1"})
	require.Len(t, cfg.Providers, 3)
	p := cfg.Provider("anthropic")
	assert.Equal(t, "sk-env", p.Token)
	assert.Equal(t, "claude-opus-4-1", p.Model)
	assert.Equal(t, []string{"claude-sonnet-4-5", "claude-haiku-4-5"}, p.Models)

	// empty fields keep the file values
	cfg.Override(&llmfactory.ProviderConfig{Type: "OPEN_AI"})
	assert.Equal(t, "gpt-4o-mini", cfg.Provider("openai").Model)

	empty := new(llmfactory.Config)
	empty.Override(&llmfactory.ProviderConfig{Name: "openai", Type: "OPENAI", Model: "gpt-4o"})
	require.Len(t, empty.Providers, 1)
	assert.Equal(t, "gpt-4o", empty.Provider("").Model)
	assert.Nil(t, empty.Provider("anthropic"))
}

func TestNormalizeType(t *testing.T) {
	tests := map[string]string{
		"":          "OPENAI",
		"open_ai":   "OPENAI",
		"Anthropic": "ANTHROPIC",
		"gemini":    "GOOGLEAI",
		"googleai":  "GOOGLEAI",
		"bedrock":   "BEDROCK",
	}
	for in, exp := range tests {
		assert.Equal(t, exp, llmfactory.NormalizeType(in), in)
	}
}

func Test_CreateLLM(t *testing.T) {
	ctx := context.Background()

	m, err := llmfactory.CreateLLM(ctx, &llmfactory.ProviderConfig{
		Name:         "openai",
		Type:         "OPEN_AI",
		Token:        "fakekey",
		Model:        "gpt-4o-mini",
		BaseURL:      "http://localhost:1",
		Organization: "org-1",
	})
	require.NoError(t, err)
	assert.Equal(t, llms.ProviderOpenAI, m.GetProviderType())
	assert.Equal(t, "gpt-4o-mini", m.GetName())

	m, err = llmfactory.CreateLLM(ctx, &llmfactory.ProviderConfig{
		Name:      "anthropic",
		Type:      "anthropic",
		Token:     "fakekey",
		Model:     "claude-sonnet-4-5",
		MaxTokens: 100,
	})
	require.NoError(t, err)
	assert.Equal(t, llms.ProviderAnthropic, m.GetProviderType())

	_, err = llmfactory.CreateLLM(ctx, &llmfactory.ProviderConfig{Type: "anthropic", Model: "claude-sonnet-4-5"})
	assert.ErrorContains(t, err, "API key is required")

	m, err = llmfactory.CreateLLM(ctx, &llmfactory.ProviderConfig{
		Type:  "gemini",
		Token: "fakekey",
		Model: "gemini-2.5-flash",
	})
	require.NoError(t, err)
	assert.Equal(t, llms.ProviderGoogleAI, m.GetProviderType())

	_, err = llmfactory.CreateLLM(ctx, &llmfactory.ProviderConfig{Type: "bedrock"})
	assert.EqualError(t, err, "unsupported provider type: BEDROCK")
}

func Test_CreateLLM_Vertex(t *testing.T) {
	cfg := loadConfig(t)

	m, err := llmfactory.CreateLLM(context.Background(), cfg.Provider("vertex"))
	require.NoError(t, err)
	assert.Equal(t, llms.ProviderGoogleAI, m.GetProviderType())
	assert.Equal(t, "gemini-2.5-flash", m.GetName())

	p := *cfg.Provider("vertex")
	p.CredentialsFile = "testdata/missing.json"
	_, err = llmfactory.CreateLLM(context.Background(), &p)
	assert.ErrorContains(t, err, "failed to load credentials testdata/missing.json")

	// the file is not a service account
	p.CredentialsFile = "testdata/authorized_user.json"
	p.CredentialsType = ""
	_, err = llmfactory.CreateLLM(context.Background(), &p)
	assert.Error(t, err)
}

type fakeLLM struct {
	provider string
	model    string
}

func (f *fakeLLM) GetName() string {
	return f.model
}

func (f *fakeLLM) GetProviderType() llms.ProviderType {
	return llms.ProviderOpenAI
}

func (f *fakeLLM) GenerateContent(_ context.Context, _ []llms.Message, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	return &llms.ContentResponse{}, nil
}
