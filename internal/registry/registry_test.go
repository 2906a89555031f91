package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strs(s ...string) *[]string { return &s }

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name      string
		tools     []ToolDefinition
		upstreams []UpstreamServerDefinition
		wantErr   string
	}{
		{
			name: "valid function tool",
			tools: []ToolDefinition{
				{Name: "add", Kind: ToolKindFunction, Implementation: "mathlib.add"},
			},
		},
		{
			name: "kind defaults to function",
			tools: []ToolDefinition{
				{Name: "add", Implementation: "mathlib.add"},
			},
		},
		{
			name:    "empty tool name",
			tools:   []ToolDefinition{{Implementation: "mathlib.add"}},
			wantErr: "name must not be empty",
		},
		{
			name:    "invalid tool name",
			tools:   []ToolDefinition{{Name: "bad name!", Implementation: "mathlib.add"}},
			wantErr: "invalid tool name",
		},
		{
			name:    "function without implementation",
			tools:   []ToolDefinition{{Name: "add", Kind: ToolKindFunction}},
			wantErr: "must declare an implementation",
		},
		{
			name:    "unknown kind",
			tools:   []ToolDefinition{{Name: "add", Kind: "widget"}},
			wantErr: "unknown type",
		},
		{
			name: "duplicate tool name",
			tools: []ToolDefinition{
				{Name: "add", Implementation: "mathlib.add"},
				{Name: "add", Implementation: "mathlib.add2"},
			},
			wantErr: "duplicate tool name",
		},
		{
			name: "agent without agent_type is valid",
			tools: []ToolDefinition{
				{Name: "helper", Kind: ToolKindAgent, Model: "gpt-4o"},
			},
		},
		{
			name: "upstream with both url and command",
			upstreams: []UpstreamServerDefinition{
				{Name: "calc", URL: "http://localhost:9000/mcp", Command: "calc-server"},
			},
			wantErr: "exactly one of url or command",
		},
		{
			name:      "upstream with neither url nor command",
			upstreams: []UpstreamServerDefinition{{Name: "calc"}},
			wantErr:   "exactly one of url or command",
		},
		{
			name: "duplicate upstream name",
			upstreams: []UpstreamServerDefinition{
				{Name: "calc", URL: "http://localhost:9000/mcp"},
				{Name: "calc", Command: "calc-server"},
			},
			wantErr: "duplicate mcp server name",
		},
		{
			name: "agent references unknown sibling",
			tools: []ToolDefinition{
				{Name: "helper", Kind: ToolKindAgent, SiblingTools: strs("nope")},
			},
			wantErr: "unknown sibling tool",
		},
		{
			name: "agent references unknown upstream",
			tools: []ToolDefinition{
				{Name: "helper", Kind: ToolKindAgent, UpstreamServers: strs("nope")},
			},
			wantErr: "unknown mcp server",
		},
		{
			name: "agent self-reference is tolerated",
			tools: []ToolDefinition{
				{Name: "helper", Kind: ToolKindAgent, SiblingTools: strs("helper")},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := New(tt.tools, tt.upstreams)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Nil(t, r)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, r)
		})
	}
}

func TestLookupAndOrder(t *testing.T) {
	r, err := New([]ToolDefinition{
		{Name: "zulu", Implementation: "lib.zulu"},
		{Name: "alpha", Implementation: "lib.alpha"},
		{Name: "mike", Implementation: "lib.mike"},
	}, nil)
	require.NoError(t, err)

	def, ok := r.Lookup("alpha")
	require.True(t, ok)
	assert.Equal(t, "lib.alpha", def.Implementation)

	_, ok = r.Lookup("missing")
	assert.False(t, ok)

	// All preserves configuration order, not lexical order
	all := r.All()
	require.Len(t, all, 3)
	assert.Equal(t, "zulu", all[0].Name)
	assert.Equal(t, "alpha", all[1].Name)
	assert.Equal(t, "mike", all[2].Name)
}

func TestEffectiveSiblingTools(t *testing.T) {
	tools := []ToolDefinition{
		{Name: "add", Implementation: "mathlib.add"},
		{Name: "sub", Implementation: "mathlib.sub"},
		{Name: "planner", Kind: ToolKindAgent},
		{Name: "loner", Kind: ToolKindAgent, SiblingTools: strs()},
		{Name: "adder", Kind: ToolKindAgent, SiblingTools: strs("add", "adder")},
	}
	r, err := New(tools, nil)
	require.NoError(t, err)

	names := func(defs []*ToolDefinition) []string {
		out := make([]string, 0, len(defs))
		for _, d := range defs {
			out = append(out, d.Name)
		}
		return out
	}

	// nil scope: every other tool
	planner, _ := r.Lookup("planner")
	assert.Equal(t, []string{"add", "sub", "loner", "adder"}, names(r.EffectiveSiblingTools(planner)))

	// empty scope: no tools at all
	loner, _ := r.Lookup("loner")
	assert.Empty(t, r.EffectiveSiblingTools(loner))

	// explicit scope: only the named tools, self filtered out
	adder, _ := r.Lookup("adder")
	assert.Equal(t, []string{"add"}, names(r.EffectiveSiblingTools(adder)))

	// function tools have no sibling scope
	add, _ := r.Lookup("add")
	assert.Nil(t, r.EffectiveSiblingTools(add))
}

func TestEffectiveUpstreamServers(t *testing.T) {
	upstreams := []UpstreamServerDefinition{
		{Name: "calc", URL: "http://localhost:9000/mcp"},
		{Name: "files", Command: "file-server"},
	}
	tools := []ToolDefinition{
		{Name: "planner", Kind: ToolKindAgent},
		{Name: "offline", Kind: ToolKindAgent, UpstreamServers: strs()},
		{Name: "calculator", Kind: ToolKindAgent, UpstreamServers: strs("calc")},
	}
	r, err := New(tools, upstreams)
	require.NoError(t, err)

	planner, _ := r.Lookup("planner")
	assert.Len(t, r.EffectiveUpstreamServers(planner), 2)

	offline, _ := r.Lookup("offline")
	assert.Empty(t, r.EffectiveUpstreamServers(offline))

	calculator, _ := r.Lookup("calculator")
	servers := r.EffectiveUpstreamServers(calculator)
	require.Len(t, servers, 1)
	assert.Equal(t, "calc", servers[0].Name)
}

func TestParameterIsRequired(t *testing.T) {
	falseVal, trueVal := false, true

	assert.True(t, Parameter{Name: "a"}.IsRequired())
	assert.True(t, Parameter{Name: "a", Required: &trueVal}.IsRequired())
	assert.False(t, Parameter{Name: "a", Required: &falseVal}.IsRequired())
}
