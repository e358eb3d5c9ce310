package googleai_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cloud.google.com/go/auth"
	"github.com/effective-security/mcpagent/pkg/llms"
	"github.com/effective-security/mcpagent/pkg/llms/googleai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const functionCallResponse = `{
	"candidates": [{
		"content": {
			"role": "model",
			"parts": [{"functionCall": {"name": "add", "args": {"a": 20, "b": 33}}}]
		},
		"finishReason": "STOP"
	}],
	"usageMetadata": {"promptTokenCount": 10, "candidatesTokenCount": 5, "totalTokenCount": 15}
}`

type staticToken string

func (s staticToken) Token(context.Context) (*auth.Token, error) {
	return &auth.Token{Value: string(s), Type: "Bearer"}, nil
}

func generateServer(t *testing.T, req *map[string]any, check func(r *http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		check(r)
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, req))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(functionCallResponse))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNew(t *testing.T) {
	_, err := googleai.New(context.Background(), googleai.Config{APIKey: "k"})
	assert.ErrorIs(t, err, googleai.ErrMissingModel)

	llm, err := googleai.New(context.Background(), googleai.Config{APIKey: "k", Model: "gemini-2.5-flash"})
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.5-flash", llm.GetName())
}

func TestGenerateContent_Vertex(t *testing.T) {
	var req map[string]any
	srv := generateServer(t, &req, func(r *http.Request) {
		assert.Equal(t, "Bearer vertex-token", r.Header.Get("Authorization"))
		assert.Contains(t, r.URL.Path, "/projects/my-project/locations/us-central1/")
		assert.True(t, strings.HasSuffix(r.URL.Path, "/models/gemini-test:generateContent"), r.URL.Path)
	})

	llm, err := googleai.New(context.Background(), googleai.Config{
		APIKey:      "ignored-on-vertex",
		Model:       "gemini-test",
		BaseURL:     srv.URL,
		Project:     "my-project",
		Location:    "us-central1",
		Credentials: auth.NewCredentials(&auth.CredentialsOptions{TokenProvider: staticToken("vertex-token")}),
	})
	require.NoError(t, err)

	resp, err := llm.GenerateContent(context.Background(), []llms.Message{
		llms.MessageFromTextParts(llms.RoleHuman, "add 20 and 33"),
	}, llms.WithTemperature(0.2))
	require.NoError(t, err)
	require.Len(t, resp.ToolCalls(), 1)
	gen := req["generationConfig"].(map[string]any)
	assert.InDelta(t, 0.2, gen["temperature"], 0.001)
	assert.EqualValues(t, googleai.DefaultMaxTokens, gen["maxOutputTokens"])
}

func TestGenerateContent(t *testing.T) {
	var req map[string]any
	srv := generateServer(t, &req, func(r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("X-Goog-Api-Key"))
		assert.True(t, strings.HasSuffix(r.URL.Path, "/models/gemini-test:generateContent"), r.URL.Path)
	})

	llm, err := googleai.New(context.Background(), googleai.Config{
		APIKey:     "test-key",
		Model:      "gemini-test",
		BaseURL:    srv.URL,
		HTTPClient: srv.Client(),
	})
	require.NoError(t, err)
	assert.Equal(t, "gemini-test", llm.GetName())
	assert.Equal(t, llms.ProviderGoogleAI, llm.GetProviderType())

	resp, err := llm.GenerateContent(context.Background(), []llms.Message{
		llms.MessageFromTextParts(llms.RoleSystem, "be brief"),
		llms.MessageFromTextParts(llms.RoleHuman, "add 20 and 33"),
		llms.MessageFromTextParts(llms.RoleAI, ""),
	}, llms.WithTools([]llms.Tool{{
		Type:     "function",
		Function: &llms.FunctionDefinition{Name: "add", Description: "Add two numbers"},
	}}))
	require.NoError(t, err)

	calls := resp.ToolCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "add", calls[0].FunctionCall.Name)
	assert.JSONEq(t, `{"a":20,"b":33}`, calls[0].FunctionCall.Arguments)
	assert.EqualValues(t, 15, resp.Choices[0].GenerationInfo["TotalTokens"])

	// system goes to the instruction, the empty AI message is dropped
	contents := req["contents"].([]any)
	assert.Len(t, contents, 1)
	assert.NotNil(t, req["systemInstruction"])
	assert.Len(t, req["tools"], 1)
	_, hasTemp := req["generationConfig"].(map[string]any)["temperature"]
	assert.False(t, hasTemp)
}
