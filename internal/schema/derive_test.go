package schema

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a5c-ai/mcpml/internal/funcs"
	"github.com/a5c-ai/mcpml/internal/registry"
)

func newResolver(t *testing.T, refs map[string]any) *funcs.Resolver {
	t.Helper()
	reg := funcs.NewRegistry()
	for ref, fn := range refs {
		require.NoError(t, reg.Register(ref, fn))
	}
	return funcs.NewResolver(funcs.ResolverOptions{Funcs: reg})
}

func TestDeriveAgentSchema(t *testing.T) {
	resolver := newResolver(t, nil)

	def := &registry.ToolDefinition{Name: "planner", Kind: registry.ToolKindAgent}
	schema := Derive(def, resolver)

	assert.Equal(t, "object", schema.Type)
	require.Contains(t, schema.Properties, "input")
	assert.Equal(t, map[string]any{"type": "string"}, schema.Properties["input"])
	assert.Equal(t, []string{"input"}, schema.Required)
}

func TestDeriveFunctionSchema(t *testing.T) {
	resolver := newResolver(t, map[string]any{
		"mathlib.add": func(a int, b int) int { return a + b },
	})

	def := &registry.ToolDefinition{
		Name:           "add",
		Kind:           registry.ToolKindFunction,
		Implementation: "mathlib.add",
		Parameters: []registry.Parameter{
			{Name: "a", Type: "integer", Description: "first operand"},
			{Name: "b", Type: "integer"},
		},
	}
	schema := Derive(def, resolver)

	assert.Equal(t, "object", schema.Type)
	require.Len(t, schema.Properties, 2)
	assert.Equal(t, map[string]any{"type": "integer", "description": "first operand"}, schema.Properties["a"])
	assert.Equal(t, map[string]any{"type": "integer"}, schema.Properties["b"])
	assert.Equal(t, []string{"a", "b"}, schema.Required)
}

func TestDeriveSkipsLeadingContext(t *testing.T) {
	resolver := newResolver(t, map[string]any{
		"lib.fetch": func(ctx context.Context, url string) (string, error) { return "", nil },
	})

	def := &registry.ToolDefinition{
		Name:           "fetch",
		Implementation: "lib.fetch",
		Parameters:     []registry.Parameter{{Name: "url", Type: "string"}},
	}
	schema := Derive(def, resolver)

	require.Len(t, schema.Properties, 1)
	assert.Contains(t, schema.Properties, "url")
}

func TestDerivePositionalFallbackNames(t *testing.T) {
	resolver := newResolver(t, map[string]any{
		"lib.threeway": func(a string, b int, c bool) string { return "" },
	})

	// only the first parameter is declared; the rest get positional names
	def := &registry.ToolDefinition{
		Name:           "threeway",
		Implementation: "lib.threeway",
		Parameters:     []registry.Parameter{{Name: "a", Type: "string"}},
	}
	schema := Derive(def, resolver)

	require.Len(t, schema.Properties, 3)
	assert.Contains(t, schema.Properties, "a")
	assert.Equal(t, map[string]any{"type": "integer"}, schema.Properties["arg1"])
	assert.Equal(t, map[string]any{"type": "boolean"}, schema.Properties["arg2"])
	// undeclared parameters are always required
	assert.Equal(t, []string{"a", "arg1", "arg2"}, schema.Required)
}

func TestDeriveOptionalParameter(t *testing.T) {
	resolver := newResolver(t, map[string]any{
		"lib.greet": func(name string, greeting string) string { return "" },
	})

	optional := false
	def := &registry.ToolDefinition{
		Name:           "greet",
		Implementation: "lib.greet",
		Parameters: []registry.Parameter{
			{Name: "name", Type: "string"},
			{Name: "greeting", Type: "string", Required: &optional, Default: "hello"},
		},
	}
	schema := Derive(def, resolver)

	assert.Equal(t, []string{"name"}, schema.Required)
}

func TestDeriveUnresolvableImplementation(t *testing.T) {
	resolver := newResolver(t, nil)

	def := &registry.ToolDefinition{
		Name:           "ghost",
		Implementation: "nowhere.fn",
		Parameters:     []registry.Parameter{{Name: "x", Type: "string"}},
	}
	schema := Derive(def, resolver)

	// listing still succeeds with an empty property set
	assert.Equal(t, "object", schema.Type)
	assert.Empty(t, schema.Properties)
	assert.Empty(t, schema.Required)
}

func TestTypeTags(t *testing.T) {
	resolver := newResolver(t, map[string]any{
		"lib.kitchen": func(s string, f float64, m map[string]any, l []int, p *int, v any) string {
			return ""
		},
	})

	def := &registry.ToolDefinition{Name: "kitchen", Implementation: "lib.kitchen"}
	schema := Derive(def, resolver)

	require.Len(t, schema.Properties, 6)
	assert.Equal(t, "string", schema.Properties["arg0"].(map[string]any)["type"])
	assert.Equal(t, "number", schema.Properties["arg1"].(map[string]any)["type"])
	assert.Equal(t, "object", schema.Properties["arg2"].(map[string]any)["type"])
	assert.Equal(t, "array", schema.Properties["arg3"].(map[string]any)["type"])
	assert.Equal(t, "integer", schema.Properties["arg4"].(map[string]any)["type"])
	assert.Equal(t, "string", schema.Properties["arg5"].(map[string]any)["type"])
}
