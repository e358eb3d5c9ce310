// Package genaiutils converts tool definitions to Gemini function declarations.
package genaiutils

import (
	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpagent/pkg/llms"
	"github.com/invopop/jsonschema"
	"google.golang.org/genai"
)

var schemaTypes = map[string]genai.Type{
	"object":  genai.TypeObject,
	"string":  genai.TypeString,
	"number":  genai.TypeNumber,
	"integer": genai.TypeInteger,
	"boolean": genai.TypeBoolean,
	"array":   genai.TypeArray,
}

// Tool returns a single Gemini tool carrying one function declaration
// per definition.
func Tool(tools []llms.Tool) (*genai.Tool, error) {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for i, tool := range tools {
		if tool.Type != "function" || tool.Function == nil {
			return nil, errors.Errorf("tool [%d]: unsupported type %q, want 'function'", i, tool.Type)
		}
		params, err := Schema(tool.Function.Parameters)
		if err != nil {
			return nil, errors.Wrapf(err, "tool %s", tool.Function.Name)
		}
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        tool.Function.Name,
			Description: tool.Function.Description,
			Parameters:  params,
		})
	}
	return &genai.Tool{FunctionDeclarations: decls}, nil
}

// Schema converts a JSON schema to the Gemini subset. Unknown types map to
// genai.TypeUnspecified. Property order is preserved.
func Schema(js *jsonschema.Schema) (*genai.Schema, error) {
	if js == nil {
		return nil, nil
	}

	s := &genai.Schema{
		Type:        TypeOf(js.Type),
		Description: js.Description,
		Required:    js.Required,
	}
	if js.Properties != nil && js.Properties.Len() > 0 {
		s.Properties = make(map[string]*genai.Schema, js.Properties.Len())
		for pair := js.Properties.Oldest(); pair != nil; pair = pair.Next() {
			prop, err := Schema(pair.Value)
			if err != nil {
				return nil, errors.Wrapf(err, "property %s", pair.Key)
			}
			s.Properties[pair.Key] = prop
			s.PropertyOrdering = append(s.PropertyOrdering, pair.Key)
		}
	}
	if js.Items != nil {
		items, err := Schema(js.Items)
		if err != nil {
			return nil, errors.Wrap(err, "items")
		}
		s.Items = items
	}
	return s, nil
}

// TypeOf maps a JSON schema type name to a genai.Type.
func TypeOf(name string) genai.Type {
	if t, ok := schemaTypes[name]; ok {
		return t
	}
	return genai.TypeUnspecified
}
