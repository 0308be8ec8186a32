package genx

import (
	"fmt"
	"reflect"

	"github.com/google/jsonschema-go/jsonschema"
)

type FuncToolOption interface {
	applyToFuncTool(*FuncTool)
}

// WithSchema overrides the schema generated for values of type T.
func WithSchema[T any](s *jsonschema.Schema) FuncToolOption {
	return &typeSchemaOption{t: reflect.TypeFor[T](), s: s}
}

type typeSchemaOption struct {
	t reflect.Type
	s *jsonschema.Schema
}

func (o *typeSchemaOption) applyToFuncTool(t *FuncTool) {
	t.typeSchemas[o.t] = o.s
}

// FuncTool describes the JSON document a generator must produce.
type FuncTool struct {
	Name        string
	Description string
	Argument    *jsonschema.Schema

	typeSchemas map[reflect.Type]*jsonschema.Schema
}

func (tool *FuncTool) NewFuncCall(args string) *FuncCall {
	return &FuncCall{
		Name:      tool.Name,
		Arguments: args,
	}
}

func NewFuncTool[ArgType any](name, description string, opts ...FuncToolOption) (*FuncTool, error) {
	tool := &FuncTool{
		Name:        name,
		Description: description,
		typeSchemas: make(map[reflect.Type]*jsonschema.Schema),
	}
	for _, opt := range opts {
		opt.applyToFuncTool(tool)
	}
	arg, err := jsonschema.For[ArgType](&jsonschema.ForOptions{
		TypeSchemas: tool.typeSchemas,
	})
	if err != nil {
		return nil, err
	}
	tool.Argument = arg
	return tool, nil
}

func MustNewFuncTool[ArgType any](name, description string, opts ...FuncToolOption) *FuncTool {
	tool, err := NewFuncTool[ArgType](name, description, opts...)
	if err != nil {
		panic(err)
	}
	return tool
}

// FuncCall is the document a generator produced for a [FuncTool].
type FuncCall struct {
	Name      string
	Arguments string
}

// Unmarshal decodes the arguments into v, repairing malformed JSON when the
// model emitted a near miss.
func (f *FuncCall) Unmarshal(v any) error {
	if err := unmarshalJSON([]byte(f.Arguments), v); err != nil {
		return fmt.Errorf("genx: unmarshal %s arguments: %w", f.Name, err)
	}
	return nil
}
