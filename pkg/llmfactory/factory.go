package llmfactory

import (
	"context"

	"cloud.google.com/go/auth"
	"cloud.google.com/go/auth/credentials"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpagent/pkg/llms"
	"github.com/effective-security/mcpagent/pkg/llms/anthropic"
	"github.com/effective-security/mcpagent/pkg/llms/googleai"
	"github.com/effective-security/mcpagent/pkg/llms/openai"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcpagent", "llmfactory")

// NewLLM is a wrapper for CreateLLM to allow for overriding the default implementation.
var NewLLM = CreateLLM

var cloudPlatformScopes = []string{"https://www.googleapis.com/auth/cloud-platform"}

// Factory creates models for the configured providers
type Factory struct {
	cfg *Config
}

// New creates a new LLM factory
func New(cfg *Config) *Factory {
	return &Factory{cfg: cfg}
}

// Model returns a model of the provider with the given name or type,
// or of the default provider when name is empty.
func (f *Factory) Model(ctx context.Context, name string, preferredModels ...string) (llms.Model, error) {
	p := f.cfg.Provider(name)
	if p == nil {
		if name == "" {
			return nil, errors.New("no providers configured")
		}
		return nil, errors.Errorf("provider not found: %s", name)
	}

	model, err := NewLLM(ctx, p, preferredModels...)
	if err != nil {
		return nil, errors.WithMessagef(err, "provider %s", values.StringsCoalesce(p.Name, p.Type))
	}

	logger.KV(xlog.DEBUG,
		"status", "created_llm",
		"type", model.GetProviderType(),
		"name", p.Name,
		"model", model.GetName())
	return model, nil
}

// CreateLLM creates the model for the provider
func CreateLLM(ctx context.Context, cfg *ProviderConfig, preferredModels ...string) (llms.Model, error) {
	model := cfg.FindModel(preferredModels...)
	switch t := NormalizeType(cfg.Type); llms.ProviderType(t) {
	case llms.ProviderOpenAI:
		return openai.New(openai.Config{
			Token:        cfg.Token,
			Model:        model,
			BaseURL:      cfg.BaseURL,
			Organization: cfg.Organization,
			MaxTokens:    cfg.MaxTokens,
		})
	case llms.ProviderAnthropic:
		return anthropic.New(anthropic.Config{
			Token:     cfg.Token,
			Model:     model,
			BaseURL:   cfg.BaseURL,
			MaxTokens: cfg.MaxTokens,
		})
	case llms.ProviderGoogleAI:
		creds, err := googleCredentials(cfg)
		if err != nil {
			return nil, err
		}
		return googleai.New(ctx, googleai.Config{
			APIKey:      cfg.Token,
			Model:       model,
			BaseURL:     cfg.BaseURL,
			MaxTokens:   cfg.MaxTokens,
			Project:     cfg.Project,
			Location:    cfg.Location,
			Credentials: creds,
		})
	default:
		return nil, errors.Errorf("unsupported provider type: %s", t)
	}
}

// googleCredentials loads the Vertex credentials file, nil lets the client
// detect Application Default Credentials.
func googleCredentials(cfg *ProviderConfig) (*auth.Credentials, error) {
	if cfg.Project == "" || cfg.CredentialsFile == "" {
		return nil, nil
	}
	credType := credentials.CredType(values.StringsCoalesce(cfg.CredentialsType, string(credentials.ServiceAccount)))
	creds, err := credentials.NewCredentialsFromFile(credType, cfg.CredentialsFile, &credentials.DetectOptions{
		Scopes: cloudPlatformScopes,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load credentials %s", cfg.CredentialsFile)
	}
	return creds, nil
}
