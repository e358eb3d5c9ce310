package tools

import (
	"context"

	"github.com/invopop/jsonschema"
)

// ITool is a tool for the llm agent to interact with different applications.
type ITool interface {
	// Name returns the name of the Tool.
	Name() string
	// Description returns the description of the tool, to be used in the prompt.
	Description() string
	// Parameters returns the parameters definition of the function, to be used in the prompt.
	Parameters() *jsonschema.Schema

	// Call executes the tool with the given JSON input and returns the result.
	// If the tool fails to parse the input, it should return ErrInvalidArguments error.
	Call(context.Context, string) (string, error)
}
