// Package googleai implements the Gemini provider, on either the Gemini API
// or Vertex AI.
package googleai

import (
	"context"
	"net/http"

	"cloud.google.com/go/auth"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpagent/pkg/llms"
	"google.golang.org/genai"
)

// ErrMissingModel is returned when no model name is configured.
var ErrMissingModel = errors.New("googleai: model is required")

// DefaultMaxTokens caps a response when neither the client nor the call sets a limit.
const DefaultMaxTokens = 8192

// Config configures the Gemini client.
// Setting Project selects the Vertex AI backend.
type Config struct {
	APIKey    string
	Model     string
	BaseURL   string
	MaxTokens int

	Project     string
	Location    string
	Credentials *auth.Credentials

	HTTPClient *http.Client
}

// GoogleAI is a Gemini API client.
type GoogleAI struct {
	client *genai.Client
	cfg    Config
}

var _ llms.Model = (*GoogleAI)(nil)

// New creates a new GoogleAI client.
func New(ctx context.Context, cfg Config) (*GoogleAI, error) {
	if cfg.Model == "" {
		return nil, ErrMissingModel
	}

	cc := &genai.ClientConfig{
		HTTPClient: cfg.HTTPClient,
		Backend:    genai.BackendGeminiAPI,
	}
	if cfg.Project != "" {
		// Vertex authenticates with credentials, the API key is exclusive with them
		cc.Backend = genai.BackendVertexAI
		cc.Project = cfg.Project
		cc.Location = cfg.Location
		cc.Credentials = cfg.Credentials
	} else {
		cc.APIKey = cfg.APIKey
	}
	cc.HTTPOptions.BaseURL = cfg.BaseURL

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, errors.Wrap(err, "googleai: failed to create client")
	}
	return &GoogleAI{client: client, cfg: cfg}, nil
}
