package upstream

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsLoopbackURL(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"http://localhost:8080/mcp", true},
		{"http://LOCALHOST/mcp", true},
		{"http://127.0.0.1:9000/mcp", true},
		{"http://[::1]:9000/mcp", true},
		{"http://example.com/mcp", false},
		{"http://10.0.0.5/mcp", false},
		{"http://host.docker.internal:8080/mcp", false},
		{"not a url", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isLoopbackURL(tt.url), "url %q", tt.url)
	}
}

func TestInitializeRequest(t *testing.T) {
	req := initializeRequest("calc")
	assert.Equal(t, "mcpml client for calc", req.Params.ClientInfo.Name)
	assert.NotEmpty(t, req.Params.ProtocolVersion)
}
