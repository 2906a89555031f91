// Package schema derives protocol-level parameter schemas from tool
// definitions and validates tool results against declared output schemas.
package schema

import (
	"context"
	"fmt"
	"reflect"

	"github.com/a5c-ai/mcpml/internal/funcs"
	"github.com/a5c-ai/mcpml/internal/registry"
	"github.com/a5c-ai/mcpml/pkg/types"
)

var ctxType = reflect.TypeOf((*context.Context)(nil)).Elem()

// Derive produces the input schema for a tool definition.
//
// For function tools, the resolved callable's declared parameter types are
// inspected and mapped to protocol type tags. Parameter names come from
// the declared parameter list, falling back to positional names for
// implementations with more inputs than declared parameters.
// If the implementation cannot be resolved, the schema degrades to an
// empty property set rather than failing the listing.
//
// For agent tools, the schema is always the fixed single-string input:
// the sub-agent's natural-language instruction is its only formal input.
//
// Derivation happens at list-time, not load-time, so the result always
// reflects the currently resolvable implementation.
func Derive(t *registry.ToolDefinition, resolver *funcs.Resolver) types.ToolInputSchema {
	if t.Kind == registry.ToolKindAgent {
		return types.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"input": map[string]any{"type": "string"},
			},
			Required: []string{"input"},
		}
	}

	schema := types.ToolInputSchema{
		Type:       "object",
		Properties: map[string]any{},
	}

	fn, err := resolver.Resolve(t.Implementation)
	if err != nil {
		return schema
	}
	fnType := reflect.TypeOf(fn)
	if fnType == nil || fnType.Kind() != reflect.Func {
		return schema
	}

	pos := 0
	for i := 0; i < fnType.NumIn(); i++ {
		in := fnType.In(i)
		if i == 0 && in == ctxType {
			continue
		}

		name := positionalName(t, pos)
		prop := map[string]any{"type": typeTag(in)}
		if pos < len(t.Parameters) && t.Parameters[pos].Description != "" {
			prop["description"] = t.Parameters[pos].Description
		}
		schema.Properties[name] = prop

		if pos >= len(t.Parameters) || t.Parameters[pos].IsRequired() {
			schema.Required = append(schema.Required, name)
		}
		pos++
	}

	return schema
}

// positionalName returns the declared name of the parameter at the given
// position, or a synthesized positional name when the implementation has
// more inputs than the definition declares.
func positionalName(t *registry.ToolDefinition, pos int) string {
	if pos < len(t.Parameters) && t.Parameters[pos].Name != "" {
		return t.Parameters[pos].Name
	}
	return fmt.Sprintf("arg%d", pos)
}

// typeTag maps a Go type to a protocol type tag.
// Unrecognized types fall back to the type's own name as a structural tag.
func typeTag(t reflect.Type) string {
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Bool:
		return "boolean"
	case reflect.Interface:
		// untyped parameters accept anything; treat them as strings
		return "string"
	case reflect.Map, reflect.Struct:
		return "object"
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Ptr:
		return typeTag(t.Elem())
	default:
		if name := t.Name(); name != "" {
			return name
		}
		return t.Kind().String()
	}
}
