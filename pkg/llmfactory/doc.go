// Package llmfactory creates LLM models from provider configuration.
package llmfactory
