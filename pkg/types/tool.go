// Package types contains the wire-level data structures exchanged between
// the mcpml server and its API clients.
package types

// ToolInputSchema defines the schema for the input parameters of a tool.
type ToolInputSchema struct {
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties,omitempty"`
	Required   []string       `json:"required,omitempty"`
}

// Tool represents a tool exposed by the mcpml server.
type Tool struct {
	Name        string          `json:"name"`
	Kind        string          `json:"kind"`
	Description string          `json:"description"`
	InputSchema ToolInputSchema `json:"input_schema"`
}

// ToolInvokeInput is the request body for invoking a tool over the HTTP API.
type ToolInvokeInput struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ToolInvokeResult represents the result of a tool call.
// It is designed to be passed down to the end user: either Result is set,
// or IsError is true and Error/ErrorKind describe the failure.
type ToolInvokeResult struct {
	IsError   bool   `json:"isError,omitempty"`
	ErrorKind string `json:"errorKind,omitempty"`
	Error     string `json:"error,omitempty"`
	Result    any    `json:"result,omitempty"`
}

// UpstreamServer represents an upstream MCP server known to the mcpml
// configuration, as returned by the HTTP API.
type UpstreamServer struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Transport   string `json:"transport"`
	URL         string `json:"url,omitempty"`
	Command     string `json:"command,omitempty"`
}

// InvocationRecord is a single entry of the invocation audit log, as
// returned by the HTTP API.
type InvocationRecord struct {
	ID         string `json:"id"`
	ToolName   string `json:"tool_name"`
	Kind       string `json:"kind"`
	Outcome    string `json:"outcome"`
	ErrorKind  string `json:"error_kind,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms"`
	CreatedAt  string `json:"created_at"`
}

// ServerMetadata represents the server metadata response.
type ServerMetadata struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}
