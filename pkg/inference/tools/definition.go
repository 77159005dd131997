package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
)

// ToolFunc executes a tool against the model-supplied arguments and returns
// the textual result surfaced back to the model.
type ToolFunc func(ctx context.Context, args json.RawMessage) (string, error)

// ToolDefinition describes a tool callable by the model.
//
// Source holds the captured definition text (JavaScript) snapshotted at
// registration time; it is what makes a saved bot portable, because load
// re-evaluates it in a fresh namespace instead of chasing an import path.
// Builtin tools (such as branch_self) have no source and are re-bound by
// name from the loader's builtin table instead.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
	Source      string          `json:"source,omitempty"`
	Builtin     bool            `json:"builtin,omitempty"`

	// native marks a Go-backed callable whose Source is only the portable
	// mirror; clones keep the Go function instead of recompiling.
	native bool

	fn ToolFunc
}

// Func returns the live callable bound to this definition, or nil when the
// definition is an unbound builtin.
func (d *ToolDefinition) Func() ToolFunc {
	return d.fn
}

// Bind attaches a live callable. Used by the bot façade to wire builtins
// after construction, cloning and loading.
func (d *ToolDefinition) Bind(fn ToolFunc) {
	d.fn = fn
}

// SchemaFromParams builds an untyped object schema listing the given
// parameter names. Scripted tools carry no type annotations, so each
// property accepts any JSON value.
func SchemaFromParams(params []string) json.RawMessage {
	properties := map[string]interface{}{}
	for _, p := range params {
		properties[p] = map[string]interface{}{}
	}
	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	data, _ := json.Marshal(schema)
	return data
}

// ReflectSchema derives a JSON schema from a Go struct type, definitions
// expanded inline so providers that reject $ref still accept it.
func ReflectSchema(v interface{}) (json.RawMessage, error) {
	reflector := jsonschema.Reflector{
		DoNotReference: true,
	}
	schema := reflector.Reflect(v)
	data, err := json.Marshal(schema)
	if err != nil {
		return nil, errors.Wrap(err, "marshaling reflected schema")
	}
	return data, nil
}

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// funcFromNative wraps a Go function as a ToolFunc via reflection.
// Supported signatures:
//
//	func(Input) (Result, error)
//	func(context.Context, Input) (Result, error)
//
// where Input is a struct unmarshaled from the model's arguments.
func funcFromNative(fn interface{}) (ToolFunc, json.RawMessage, error) {
	funcType := reflect.TypeOf(fn)
	if funcType == nil || funcType.Kind() != reflect.Func {
		return nil, nil, errors.New("provided value is not a function")
	}
	if funcType.NumOut() != 2 || !funcType.Out(1).Implements(errorType) {
		return nil, nil, errors.New("function must return (result, error)")
	}

	var inputType reflect.Type
	withContext := false
	switch funcType.NumIn() {
	case 1:
		if funcType.In(0) == contextType {
			withContext = true
		} else {
			inputType = funcType.In(0)
		}
	case 2:
		if funcType.In(0) != contextType {
			return nil, nil, errors.New("two-arg tool function must be (context.Context, Input)")
		}
		withContext = true
		inputType = funcType.In(1)
	default:
		return nil, nil, errors.New("function must take (Input) or (context.Context, Input)")
	}

	var schema json.RawMessage
	if inputType != nil {
		var err error
		schema, err = ReflectSchema(reflect.New(inputType).Elem().Interface())
		if err != nil {
			return nil, nil, err
		}
	} else {
		schema = SchemaFromParams(nil)
	}

	funcValue := reflect.ValueOf(fn)
	wrapped := func(ctx context.Context, args json.RawMessage) (string, error) {
		var in []reflect.Value
		if withContext {
			in = append(in, reflect.ValueOf(ctx))
		}
		if inputType != nil {
			input := reflect.New(inputType)
			if len(args) > 0 {
				if err := json.Unmarshal(args, input.Interface()); err != nil {
					return "", errors.Wrap(err, "unmarshaling arguments")
				}
			}
			in = append(in, input.Elem())
		}

		out := funcValue.Call(in)
		if errV := out[1].Interface(); errV != nil {
			return "", errV.(error)
		}
		return stringifyResult(out[0].Interface())
	}

	return wrapped, schema, nil
}

func stringifyResult(v interface{}) (string, error) {
	switch r := v.(type) {
	case nil:
		return "", nil
	case string:
		return r, nil
	case fmt.Stringer:
		return r.String(), nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64, bool:
		return fmt.Sprintf("%v", r), nil
	default:
		data, err := json.Marshal(r)
		if err != nil {
			return "", errors.Wrap(err, "marshaling tool result")
		}
		return string(data), nil
	}
}
