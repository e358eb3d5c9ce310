package chat_test

import (
	"context"

	"github.com/invopop/jsonschema"
)

type fakeTool struct {
	name   string
	output string
	err    error
}

func (f *fakeTool) Name() string        { return f.name }
func (f *fakeTool) Description() string { return "fake " + f.name }
func (f *fakeTool) Parameters() *jsonschema.Schema {
	return &jsonschema.Schema{Type: "object"}
}
func (f *fakeTool) Call(_ context.Context, _ string) (string, error) {
	return f.output, f.err
}
