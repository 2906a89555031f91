// Package registry holds the immutable, in-memory tool registry that is
// the source of truth for everything downstream of the configuration.
package registry

import (
	"fmt"
	"regexp"
)

// Only allow letters, numbers, hyphens, and underscores in tool names.
var validToolName = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Registry is an immutable-after-load mapping from tool name to tool
// definition, plus the set of upstream MCP servers agents may attach.
// It exposes no mutation operations: on configuration reload a new
// Registry is built wholesale and swapped in, never patched in place.
type Registry struct {
	byName    map[string]*ToolDefinition
	ordered   []*ToolDefinition
	upstreams []UpstreamServerDefinition
}

// New validates the given definitions and builds a registry from them.
// Tool order is preserved from the configuration.
func New(tools []ToolDefinition, upstreams []UpstreamServerDefinition) (*Registry, error) {
	r := &Registry{
		byName:    make(map[string]*ToolDefinition, len(tools)),
		ordered:   make([]*ToolDefinition, 0, len(tools)),
		upstreams: upstreams,
	}

	upstreamNames := make(map[string]struct{}, len(upstreams))
	for _, u := range upstreams {
		if u.Name == "" {
			return nil, fmt.Errorf("invalid mcp server definition: name must not be empty")
		}
		if (u.URL == "") == (u.Command == "") {
			return nil, fmt.Errorf(
				"invalid mcp server %s: exactly one of url or command must be set", u.Name,
			)
		}
		if _, exists := upstreamNames[u.Name]; exists {
			return nil, fmt.Errorf("duplicate mcp server name: %s", u.Name)
		}
		upstreamNames[u.Name] = struct{}{}
	}

	for i := range tools {
		t := tools[i]
		if err := validateTool(&t); err != nil {
			return nil, err
		}
		if _, exists := r.byName[t.Name]; exists {
			return nil, fmt.Errorf("duplicate tool name: %s", t.Name)
		}
		r.byName[t.Name] = &t
		r.ordered = append(r.ordered, &t)
	}

	// scoped references must point at things that actually exist
	for _, t := range r.ordered {
		if t.Kind != ToolKindAgent {
			continue
		}
		if t.SiblingTools != nil {
			for _, name := range *t.SiblingTools {
				if name == t.Name {
					continue // self-references are filtered, not rejected
				}
				if _, ok := r.byName[name]; !ok {
					return nil, fmt.Errorf("tool %s references unknown sibling tool %s", t.Name, name)
				}
			}
		}
		if t.UpstreamServers != nil {
			for _, name := range *t.UpstreamServers {
				if _, ok := upstreamNames[name]; !ok {
					return nil, fmt.Errorf("tool %s references unknown mcp server %s", t.Name, name)
				}
			}
		}
	}

	return r, nil
}

func validateTool(t *ToolDefinition) error {
	if t.Name == "" {
		return fmt.Errorf("invalid tool definition: name must not be empty")
	}
	if !validToolName.MatchString(t.Name) {
		return fmt.Errorf(
			"invalid tool name %s: must follow the regular expression %s", t.Name, validToolName,
		)
	}
	if t.Kind == "" {
		t.Kind = ToolKindFunction
	}
	switch t.Kind {
	case ToolKindFunction:
		if t.Implementation == "" {
			return fmt.Errorf("function tool %s must declare an implementation", t.Name)
		}
	case ToolKindAgent:
		// agent kind defaults to the built-in implementation
	default:
		return fmt.Errorf("tool %s has unknown type %s", t.Name, t.Kind)
	}
	return nil
}

// Lookup returns the tool definition for the given name.
func (r *Registry) Lookup(name string) (*ToolDefinition, bool) {
	t, ok := r.byName[name]
	return t, ok
}

// All returns all tool definitions in stable configuration order.
func (r *Registry) All() []*ToolDefinition {
	return r.ordered
}

// UpstreamServers returns all configured upstream MCP server definitions.
func (r *Registry) UpstreamServers() []UpstreamServerDefinition {
	return r.upstreams
}

// EffectiveSiblingTools computes the set of sibling tools the given agent
// tool is allowed to call:
// a nil scope means all other tools, an empty scope means none, and an
// explicit scope means only the named tools.
// The tool itself is always filtered out, even when named explicitly,
// so an agent can never call itself directly.
func (r *Registry) EffectiveSiblingTools(t *ToolDefinition) []*ToolDefinition {
	if t.Kind != ToolKindAgent {
		return nil
	}

	if t.SiblingTools == nil {
		siblings := make([]*ToolDefinition, 0, len(r.ordered))
		for _, s := range r.ordered {
			if s.Name != t.Name {
				siblings = append(siblings, s)
			}
		}
		return siblings
	}

	siblings := make([]*ToolDefinition, 0, len(*t.SiblingTools))
	for _, name := range *t.SiblingTools {
		if name == t.Name {
			continue
		}
		if s, ok := r.byName[name]; ok {
			siblings = append(siblings, s)
		}
	}
	return siblings
}

// EffectiveUpstreamServers computes the set of upstream MCP servers the
// given agent tool may attach, with the same three-way semantics as
// EffectiveSiblingTools.
func (r *Registry) EffectiveUpstreamServers(t *ToolDefinition) []UpstreamServerDefinition {
	if t.Kind != ToolKindAgent {
		return nil
	}

	if t.UpstreamServers == nil {
		return r.upstreams
	}

	servers := make([]UpstreamServerDefinition, 0, len(*t.UpstreamServers))
	for _, name := range *t.UpstreamServers {
		for _, u := range r.upstreams {
			if u.Name == name {
				servers = append(servers, u)
				break
			}
		}
	}
	return servers
}
