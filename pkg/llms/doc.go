// Package llms provides a provider-neutral interface for generation requests
// with tool calling.
//
// Each subpackage adapts one provider SDK to the Model interface.
//
// The `llms.go` file contains the Model interface and provider types.
//
// The `options.go` file provides the call options and tool definitions.
package llms
