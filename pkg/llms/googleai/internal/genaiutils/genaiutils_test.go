package genaiutils

import (
	"testing"

	"github.com/effective-security/mcpagent/pkg/llms"
	"github.com/invopop/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"google.golang.org/genai"
)

func numbersSchema(names ...string) *jsonschema.Schema {
	props := orderedmap.New[string, *jsonschema.Schema]()
	for _, n := range names {
		props.Set(n, &jsonschema.Schema{Type: "number", Description: n + " operand"})
	}
	return &jsonschema.Schema{
		Type:       "object",
		Properties: props,
		Required:   names,
	}
}

func TestSchema(t *testing.T) {
	t.Parallel()

	res, err := Schema(nil)
	require.NoError(t, err)
	assert.Nil(t, res)

	res, err = Schema(numbersSchema("b", "a"))
	require.NoError(t, err)
	assert.Equal(t, genai.TypeObject, res.Type)
	assert.Equal(t, []string{"b", "a"}, res.Required)
	assert.Equal(t, []string{"b", "a"}, res.PropertyOrdering)
	require.Len(t, res.Properties, 2)
	assert.Equal(t, genai.TypeNumber, res.Properties["a"].Type)
	assert.Equal(t, "a operand", res.Properties["a"].Description)

	res, err = Schema(&jsonschema.Schema{Type: "object", Properties: orderedmap.New[string, *jsonschema.Schema]()})
	require.NoError(t, err)
	assert.Nil(t, res.Properties)

	arr, err := Schema(&jsonschema.Schema{
		Type:  "array",
		Items: &jsonschema.Schema{Type: "string"},
	})
	require.NoError(t, err)
	assert.Equal(t, genai.TypeArray, arr.Type)
	assert.Equal(t, genai.TypeString, arr.Items.Type)
}

func TestTypeOf(t *testing.T) {
	t.Parallel()
	tests := map[string]genai.Type{
		"object":  genai.TypeObject,
		"string":  genai.TypeString,
		"number":  genai.TypeNumber,
		"integer": genai.TypeInteger,
		"boolean": genai.TypeBoolean,
		"array":   genai.TypeArray,
		"null":    genai.TypeUnspecified,
		"":        genai.TypeUnspecified,
	}
	for in, exp := range tests {
		assert.Equal(t, exp, TypeOf(in), in)
	}
}

func TestTool(t *testing.T) {
	t.Parallel()

	res, err := Tool(nil)
	require.NoError(t, err)
	assert.Empty(t, res.FunctionDeclarations)

	res, err = Tool([]llms.Tool{
		{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        "add",
				Description: "Add two numbers",
				Parameters:  numbersSchema("a", "b"),
			},
		},
		{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        "system-battery",
				Description: "Battery status",
			},
		},
	})
	require.NoError(t, err)
	decls := res.FunctionDeclarations
	require.Len(t, decls, 2)
	assert.Equal(t, "add", decls[0].Name)
	assert.Equal(t, genai.TypeObject, decls[0].Parameters.Type)
	assert.Equal(t, "system-battery", decls[1].Name)
	assert.Nil(t, decls[1].Parameters)

	_, err = Tool([]llms.Tool{{Type: "web_search"}})
	assert.EqualError(t, err, `tool [0]: unsupported type "web_search", want 'function'`)
}
