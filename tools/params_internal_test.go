package tools

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidator(t *testing.T) {
	t.Parallel()

	v, err := newValidator(kindValidations)
	require.NoError(t, err)
	assert.NoError(t, v.Var(1.5, tagNumber))
	assert.Error(t, v.Var("1.5", tagNumber))
	assert.NoError(t, v.Var("x", tagString))

	_, err = newValidator(map[string]validator.Func{"": isNumber})
	assert.EqualError(t, err, `failed to register "" validation: function Key cannot be empty`)

	_, err = newValidator(map[string]validator.Func{"llm_nil": nil})
	assert.EqualError(t, err, `failed to register "llm_nil" validation: function cannot be empty`)
}
