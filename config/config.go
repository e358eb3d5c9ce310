// Package config loads the agent configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpagent/chat"
	"github.com/effective-security/mcpagent/pkg/llmfactory"
	"github.com/effective-security/mcpagent/pkg/llms"
	"github.com/effective-security/x/configloader"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xlog"
	"github.com/joho/godotenv"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcpagent", "config")

// ErrMissingModel is returned when no model name is configured
var ErrMissingModel = errors.New("model name is not configured, set OPENAI_MODEL")

// DefaultServerCommand is the tool server started by the agent
const DefaultServerCommand = "mcptools"

// Environment variables
const (
	EnvOpenAIKey     = "OPENAI_API_KEY"
	EnvOpenAIBaseURL = "OPENAI_BASE_URL"
	EnvOpenAIModel   = "OPENAI_MODEL"
	EnvProvider      = "LLM_PROVIDER"
	EnvAnthropicKey  = "ANTHROPIC_API_KEY"
	EnvGoogleKey     = "GOOGLE_API_KEY"
	EnvServerCommand = "MCP_SERVER_COMMAND"
	EnvServerArgs    = "MCP_SERVER_ARGS"
	EnvPrompt        = "MCP_AGENT_PROMPT"
	EnvExitCommand   = "MCP_AGENT_EXIT"
	EnvVerbose       = "MCP_AGENT_VERBOSE"
	EnvLogLevel      = "MCP_AGENT_LOG_LEVEL"
	EnvConfigFile    = "MCP_AGENT_CONFIG"
)

// Config for the agent
type Config struct {
	// Provider is the API type: OPENAI, ANTHROPIC or GOOGLEAI
	Provider string `json:"provider,omitempty" yaml:"provider,omitempty"`
	// Token is the API key of the provider
	Token   string `json:"token,omitempty" yaml:"token,omitempty"`
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Model   string `json:"model,omitempty" yaml:"model,omitempty"`
	// MaxTokens limits the generated tokens, zero for the provider default
	MaxTokens int `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	// Temperature of the calls, zero for the provider default
	Temperature float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	// Providers declared in the config file, the fields above override
	// the one of the selected type
	Providers []*llmfactory.ProviderConfig `json:"providers,omitempty" yaml:"providers,omitempty"`

	ServerCommand string   `json:"server_command,omitempty" yaml:"server_command,omitempty"`
	ServerArgs    []string `json:"server_args,omitempty" yaml:"server_args,omitempty"`
	// LenientSchema coerces unsupported parameter types to string
	LenientSchema bool `json:"lenient_schema,omitempty" yaml:"lenient_schema,omitempty"`

	SystemPrompt string `json:"system_prompt,omitempty" yaml:"system_prompt,omitempty"`
	// Prompt runs a single turn instead of the interactive loop
	Prompt      string `json:"prompt,omitempty" yaml:"prompt,omitempty"`
	ExitCommand string `json:"exit_command,omitempty" yaml:"exit_command,omitempty"`
	Verbose     *bool  `json:"verbose,omitempty" yaml:"verbose,omitempty"`
	LogLevel    string `json:"log_level,omitempty" yaml:"log_level,omitempty"`
}

// Load returns the configuration from the .env file, the optional
// config file and the environment, in increasing precedence
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, errors.Wrap(err, "failed to load .env")
	}

	cfg := new(Config)
	if file := os.Getenv(EnvConfigFile); file != "" {
		if err := configloader.UnmarshalAndExpand(file, cfg); err != nil {
			return nil, errors.WithMessagef(err, "failed to load config %s", file)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Provider = llmfactory.NormalizeType(values.StringsCoalesce(os.Getenv(EnvProvider), c.Provider))

	var tokenEnv string
	switch llms.ProviderType(c.Provider) {
	case llms.ProviderAnthropic:
		tokenEnv = EnvAnthropicKey
	case llms.ProviderGoogleAI:
		tokenEnv = EnvGoogleKey
	default:
		tokenEnv = EnvOpenAIKey
	}
	c.Token = values.StringsCoalesce(os.Getenv(tokenEnv), c.Token)
	c.BaseURL = values.StringsCoalesce(os.Getenv(EnvOpenAIBaseURL), c.BaseURL)
	c.Model = values.StringsCoalesce(os.Getenv(EnvOpenAIModel), c.Model)

	c.ServerCommand = values.StringsCoalesce(os.Getenv(EnvServerCommand), c.ServerCommand, DefaultServerCommand)
	if args := os.Getenv(EnvServerArgs); args != "" {
		c.ServerArgs = strings.Fields(args)
	}

	c.Prompt = values.StringsCoalesce(os.Getenv(EnvPrompt), c.Prompt)
	c.ExitCommand = values.StringsCoalesce(os.Getenv(EnvExitCommand), c.ExitCommand, chat.DefaultExitCommand)
	c.LogLevel = strings.ToUpper(values.StringsCoalesce(os.Getenv(EnvLogLevel), c.LogLevel, "WARNING"))

	if v := os.Getenv(EnvVerbose); v != "" {
		verbose, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrapf(err, "invalid %s", EnvVerbose)
		}
		c.Verbose = &verbose
	}
	return nil
}

// IsVerbose returns true if tool executions should be printed
func (c *Config) IsVerbose() bool {
	return c.Verbose == nil || *c.Verbose
}

// Validate returns an error if the configuration is incomplete
func (c *Config) Validate() error {
	if p := c.LLMConfig().Provider(c.Provider); p == nil || p.Model == "" {
		return ErrMissingModel
	}
	if c.ServerCommand == "" {
		return errors.New("tool server command is not configured")
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level returns the log level
func (c *Config) Level() (xlog.LogLevel, error) {
	switch strings.ToUpper(c.LogLevel) {
	case "CRITICAL":
		return xlog.CRITICAL, nil
	case "ERROR":
		return xlog.ERROR, nil
	case "", "WARNING", "WARN":
		return xlog.WARNING, nil
	case "NOTICE":
		return xlog.NOTICE, nil
	case "INFO":
		return xlog.INFO, nil
	case "DEBUG":
		return xlog.DEBUG, nil
	case "TRACE":
		return xlog.TRACE, nil
	}
	return xlog.WARNING, errors.Newf("invalid log level: %s", c.LogLevel)
}

// LLMConfig returns the providers, with the selected one
// overridden by the top level fields
func (c *Config) LLMConfig() *llmfactory.Config {
	lc := &llmfactory.Config{DefaultProvider: c.Provider}
	// copies, the file providers stay as loaded
	for _, p := range c.Providers {
		cp := *p
		lc.Providers = append(lc.Providers, &cp)
	}
	lc.Override(&llmfactory.ProviderConfig{
		Name:      strings.ToLower(c.Provider),
		Type:      c.Provider,
		Token:     c.Token,
		BaseURL:   c.BaseURL,
		Model:     c.Model,
		MaxTokens: c.MaxTokens,
	})

	logger.KV(xlog.DEBUG,
		"provider", c.Provider,
		"model", c.Model,
		"base_url", c.BaseURL,
		"providers", len(lc.Providers),
	)
	return lc
}
