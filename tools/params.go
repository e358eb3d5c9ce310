package tools

import (
	"encoding/json"
	"reflect"
	"slices"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpagent/pkg/llmutils"
	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

var (
	// ErrUnsupportedKind is returned for a schema type tag that has no parameter kind
	ErrUnsupportedKind = errors.New("unsupported parameter kind")
	// ErrInvalidArguments is returned when the arguments do not match the parameters
	ErrInvalidArguments = errors.New("invalid tool arguments")
)

// Kind is the type of a tool parameter
type Kind int

const (
	// KindNumber is a JSON number
	KindNumber Kind = iota + 1
	// KindString is a JSON string
	KindString
)

// validation tags registered for the kinds
const (
	tagNumber = "llm_number"
	tagString = "llm_string"
)

// String returns the JSON schema type of the kind
func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	}
	return "unknown"
}

func (k Kind) tag() string {
	if k == KindNumber {
		return tagNumber
	}
	return tagString
}

// ParseKind returns the kind for a JSON schema type tag.
// "integer" is accepted as a number.
func ParseKind(tag string) (Kind, error) {
	switch tag {
	case "number", "integer":
		return KindNumber, nil
	case "string":
		return KindString, nil
	}
	return 0, errors.Wrapf(ErrUnsupportedKind, "type %q", tag)
}

// Param is a named, typed tool parameter
type Param struct {
	Name        string
	Description string
	Kind        Kind
}

// Params is an ordered set of required parameters
type Params struct {
	list     []Param
	validate *validator.Validate
}

// NewParams returns the parameter set,
// the names must be unique.
func NewParams(list ...Param) (*Params, error) {
	seen := map[string]bool{}
	for _, p := range list {
		if p.Name == "" {
			return nil, errors.New("parameter name is empty")
		}
		if seen[p.Name] {
			return nil, errors.Newf("duplicate parameter %s", p.Name)
		}
		if p.Kind != KindNumber && p.Kind != KindString {
			return nil, errors.Wrapf(ErrUnsupportedKind, "parameter %s", p.Name)
		}
		seen[p.Name] = true
	}

	v, err := newValidator(kindValidations)
	if err != nil {
		return nil, err
	}
	return &Params{
		list:     slices.Clone(list),
		validate: v,
	}, nil
}

var kindValidations = map[string]validator.Func{
	tagNumber: isNumber,
	tagString: isString,
}

func newValidator(funcs map[string]validator.Func) (*validator.Validate, error) {
	v := validator.New()
	for tag, fn := range funcs {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return nil, errors.Wrapf(err, "failed to register %q validation", tag)
		}
	}
	return v, nil
}

func isNumber(fl validator.FieldLevel) bool {
	switch fl.Field().Kind() {
	case reflect.Float32, reflect.Float64,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}

func isString(fl validator.FieldLevel) bool {
	return fl.Field().Kind() == reflect.String
}

// List returns the parameters in declaration order
func (p *Params) List() []Param {
	return slices.Clone(p.list)
}

// Schema returns the object schema of the parameters:
// properties in declaration order, all required, no additional properties.
func (p *Params) Schema() *jsonschema.Schema {
	props := orderedmap.New[string, *jsonschema.Schema]()
	required := make([]string, 0, len(p.list))
	for _, param := range p.list {
		props.Set(param.Name, &jsonschema.Schema{
			Type:        param.Kind.String(),
			Description: param.Description,
		})
		required = append(required, param.Name)
	}
	return &jsonschema.Schema{
		Type:                 "object",
		Properties:           props,
		Required:             required,
		AdditionalProperties: jsonschema.FalseSchema,
	}
}

// Validate accepts exactly the declared parameters with matching kinds
func (p *Params) Validate(args map[string]any) error {
	var problems []string

	var extra []string
	for name := range args {
		if !slices.ContainsFunc(p.list, func(param Param) bool { return param.Name == name }) {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	for _, name := range extra {
		problems = append(problems, name+": unexpected")
	}

	rules := make(map[string]any, len(p.list))
	for _, param := range p.list {
		if _, ok := args[param.Name]; !ok {
			problems = append(problems, param.Name+": missing")
			continue
		}
		rules[param.Name] = param.Kind.tag()
	}

	failed := p.validate.ValidateMap(args, rules)
	for _, param := range p.list {
		if _, ok := failed[param.Name]; ok {
			problems = append(problems, param.Name+": expected "+param.Kind.String())
		}
	}

	if len(problems) > 0 {
		return errors.Wrap(ErrInvalidArguments, strings.Join(problems, ", "))
	}
	return nil
}

// Decode parses the JSON arguments produced by the model and validates them
func (p *Params) Decode(input string) (map[string]any, error) {
	args := map[string]any{}
	js := llmutils.CleanJSON([]byte(strings.TrimSpace(input)))
	if len(js) > 0 {
		if err := json.Unmarshal(js, &args); err != nil {
			return nil, errors.Wrapf(ErrInvalidArguments, "failed to parse: %s", err.Error())
		}
	}
	if err := p.Validate(args); err != nil {
		return nil, err
	}
	return args, nil
}
