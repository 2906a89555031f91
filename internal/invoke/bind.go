package invoke

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/spf13/cast"

	"github.com/a5c-ai/mcpml/internal/registry"
)

var (
	ctxType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errType = reflect.TypeOf((*error)(nil)).Elem()
)

// bindArguments maps the named arguments of a request onto the positional
// inputs of the implementation function. Parameter names come from the
// tool definition's declared parameter list, in order; inputs beyond the
// declared list answer to positional names ("argN").
//
// Missing required arguments and arguments that match no parameter are
// binding errors, not crashes. Absent optional arguments take the declared
// default, or the type's zero value.
func bindArguments(
	ctx context.Context,
	def *registry.ToolDefinition,
	fn any,
	args map[string]any,
) ([]reflect.Value, *InvocationError) {
	fnType := reflect.TypeOf(fn)
	if fnType.IsVariadic() {
		return nil, errorf(KindBindingError,
			"tool %s: variadic implementations are not supported", def.Name)
	}

	in := make([]reflect.Value, 0, fnType.NumIn())
	consumed := make(map[string]struct{}, len(args))

	pos := 0
	for i := 0; i < fnType.NumIn(); i++ {
		inType := fnType.In(i)
		if i == 0 && inType == ctxType {
			in = append(in, reflect.ValueOf(ctx))
			continue
		}

		name := paramName(def, pos)
		raw, supplied := args[name]
		if supplied {
			consumed[name] = struct{}{}
		} else {
			var param *registry.Parameter
			if pos < len(def.Parameters) {
				param = &def.Parameters[pos]
			}
			switch {
			case param != nil && param.Default != nil:
				raw = param.Default
			case param != nil && !param.IsRequired():
				in = append(in, reflect.Zero(inType))
				pos++
				continue
			default:
				return nil, errorf(KindBindingError,
					"tool %s: missing required argument %q", def.Name, name)
			}
		}

		v, err := coerceValue(raw, inType)
		if err != nil {
			return nil, errorf(KindBindingError,
				"tool %s: argument %q: %v", def.Name, name, err)
		}
		in = append(in, v)
		pos++
	}

	for name := range args {
		if _, ok := consumed[name]; !ok {
			return nil, errorf(KindBindingError,
				"tool %s: unknown argument %q", def.Name, name)
		}
	}

	return in, nil
}

func paramName(def *registry.ToolDefinition, pos int) string {
	if pos < len(def.Parameters) && def.Parameters[pos].Name != "" {
		return def.Parameters[pos].Name
	}
	return fmt.Sprintf("arg%d", pos)
}

// coerceValue converts a protocol-typed argument value (string, number,
// bool, or JSON-compatible structure) into the implementation's parameter
// type.
func coerceValue(raw any, t reflect.Type) (reflect.Value, error) {
	if raw != nil && reflect.TypeOf(raw).AssignableTo(t) {
		return reflect.ValueOf(raw), nil
	}

	switch t.Kind() {
	case reflect.String:
		s, err := cast.ToStringE(raw)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(s).Convert(t), nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := cast.ToInt64E(raw)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(n).Convert(t), nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := cast.ToUint64E(raw)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(n).Convert(t), nil

	case reflect.Float32, reflect.Float64:
		f, err := cast.ToFloat64E(raw)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(f).Convert(t), nil

	case reflect.Bool:
		b, err := cast.ToBoolE(raw)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(b).Convert(t), nil

	case reflect.Interface:
		if t.NumMethod() == 0 {
			v := reflect.New(t).Elem()
			if raw != nil {
				v.Set(reflect.ValueOf(raw))
			}
			return v, nil
		}
		return reflect.Value{}, fmt.Errorf("cannot bind value of type %T to %s", raw, t)

	case reflect.Slice, reflect.Map, reflect.Struct, reflect.Ptr:
		// structured arguments go through a JSON round-trip
		serialized, err := json.Marshal(raw)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("cannot bind value of type %T to %s: %w", raw, t, err)
		}
		target := reflect.New(t)
		if err := json.Unmarshal(serialized, target.Interface()); err != nil {
			return reflect.Value{}, fmt.Errorf("cannot bind value of type %T to %s: %w", raw, t, err)
		}
		return target.Elem(), nil

	default:
		return reflect.Value{}, fmt.Errorf("unsupported parameter type %s", t)
	}
}

// callFunction invokes the implementation, converting a panic or a
// returned error into a runtime fault instead of letting it escape.
// Supported signatures return nothing, a value, an error, or a value and
// an error.
func callFunction(def *registry.ToolDefinition, fn any, in []reflect.Value) (value any, invErr *InvocationError) {
	defer func() {
		if r := recover(); r != nil {
			value = nil
			invErr = errorf(KindRuntimeFault, "tool %s panicked: %v", def.Name, r)
		}
	}()

	out := reflect.ValueOf(fn).Call(in)

	fnType := reflect.TypeOf(fn)
	numOut := fnType.NumOut()
	if numOut > 0 && fnType.Out(numOut-1).Implements(errType) {
		if errVal := out[numOut-1]; !errVal.IsNil() {
			return nil, errorf(KindRuntimeFault, "tool %s failed: %v", def.Name, errVal.Interface())
		}
		out = out[:numOut-1]
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0].Interface(), nil
}
