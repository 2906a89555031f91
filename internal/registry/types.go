package registry

// ToolKind distinguishes the two kinds of tools mcpml can expose:
// plain functions and delegated sub-agents.
type ToolKind string

const (
	ToolKindFunction ToolKind = "function"
	ToolKindAgent    ToolKind = "agent"
)

// Parameter describes a single declared parameter of a function tool.
type Parameter struct {
	Name        string `yaml:"name" json:"name"`
	Type        string `yaml:"type" json:"type"`
	Description string `yaml:"description" json:"description"`
	// Required defaults to true when omitted in the configuration.
	Required *bool `yaml:"required" json:"required,omitempty"`
	Default  any   `yaml:"default" json:"default,omitempty"`
}

// IsRequired reports whether the parameter must be supplied by the caller.
func (p Parameter) IsRequired() bool {
	return p.Required == nil || *p.Required
}

// ToolDefinition is a single tool declared in the configuration.
// Definitions are created once at configuration load and are immutable
// for the lifetime of the registry holding them.
type ToolDefinition struct {
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description"`
	Kind        ToolKind `yaml:"type" json:"type"`

	// Implementation is the dotted reference to the function backing this
	// tool (eg- "mathlib.add"). Set only for function tools.
	Implementation string `yaml:"implementation" json:"implementation,omitempty"`

	// Agent-only fields.
	AgentKind    string `yaml:"agent_type" json:"agent_type,omitempty"`
	Model        string `yaml:"model" json:"model,omitempty"`
	Instructions string `yaml:"instructions" json:"instructions,omitempty"`
	MaxTurns     *int   `yaml:"max_turns" json:"max_turns,omitempty"`

	Parameters []Parameter `yaml:"parameters" json:"parameters,omitempty"`

	// OutputSchema optionally names a JSON schema the tool's result is
	// validated against (best-effort).
	OutputSchema string `yaml:"output_schema" json:"output_schema,omitempty"`

	// UpstreamServers scopes the MCP servers an agent tool may attach.
	// nil means "all configured", an empty list means "none",
	// an explicit list means "only these".
	UpstreamServers *[]string `yaml:"mcp_servers" json:"mcp_servers,omitempty"`

	// SiblingTools scopes the sibling tools an agent tool may call,
	// with the same three-way semantics as UpstreamServers.
	// The tool itself is always excluded from its own scope.
	SiblingTools *[]string `yaml:"tools" json:"tools,omitempty"`
}

// UpstreamServerDefinition describes an external MCP server this process
// can consume tools from on behalf of an agent run.
// Exactly one of URL (streamable http transport) or Command
// (stdio subprocess transport) must be set.
type UpstreamServerDefinition struct {
	Name        string            `yaml:"name" json:"name"`
	Description string            `yaml:"description" json:"description,omitempty"`
	URL         string            `yaml:"url" json:"url,omitempty"`
	Command     string            `yaml:"command" json:"command,omitempty"`
	Args        []string          `yaml:"args" json:"args,omitempty"`
	Env         map[string]string `yaml:"env" json:"env,omitempty"`
}
