package client

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a5c-ai/mcpml/pkg/types"
)

func TestListTools(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v0/tools", r.URL.Path)
		assert.Equal(t, http.MethodGet, r.Method)
		_ = json.NewEncoder(w).Encode([]types.Tool{
			{Name: "add", Kind: "function", Description: "Adds two integers"},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	tools, err := c.ListTools()
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, "add", tools[0].Name)
}

func TestGetTool(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v0/tool", r.URL.Path)
		name := r.URL.Query().Get("name")
		if name != "add" {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "tool not found: " + name})
			return
		}
		_ = json.NewEncoder(w).Encode(types.Tool{Name: "add", Kind: "function"})
	}))
	defer srv.Close()

	c := New(srv.URL, nil)

	tool, err := c.GetTool("add")
	require.NoError(t, err)
	assert.Equal(t, "add", tool.Name)

	_, err = c.GetTool("missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tool not found: missing")
}

func TestInvokeTool(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v0/tools/invoke", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var input types.ToolInvokeInput
		require.NoError(t, json.NewDecoder(r.Body).Decode(&input))
		assert.Equal(t, "add", input.Name)
		assert.Equal(t, map[string]any{"a": float64(2), "b": float64(3)}, input.Arguments)

		_ = json.NewEncoder(w).Encode(types.ToolInvokeResult{Result: 5})
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	result, err := c.InvokeTool("add", map[string]any{"a": 2, "b": 3})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, float64(5), result.Result)
}

func TestInvokeToolStructuredError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(types.ToolInvokeResult{
			IsError:   true,
			ErrorKind: "binding_error",
			Error:     `missing required argument "b"`,
		})
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	result, err := c.InvokeTool("add", map[string]any{"a": 2})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Equal(t, "binding_error", result.ErrorKind)
}

func TestListServers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v0/servers", r.URL.Path)
		_ = json.NewEncoder(w).Encode([]types.UpstreamServer{
			{Name: "calc", Transport: "streamable_http", URL: "http://localhost:9000/mcp"},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	servers, err := c.ListServers()
	require.NoError(t, err)
	require.Len(t, servers, 1)
	assert.Equal(t, "calc", servers[0].Name)
}

func TestListInvocations(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v0/invocations", r.URL.Path)
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		_ = json.NewEncoder(w).Encode([]types.InvocationRecord{
			{ID: "1", ToolName: "add", Outcome: "success"},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	records, err := c.ListInvocations(5)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "add", records[0].ToolName)
}

func TestErrorWithoutJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	_, err := c.ListTools()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "request failed with status")
}

func TestBaseURLTrailingSlash(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v0/tools", r.URL.Path)
		_ = json.NewEncoder(w).Encode([]types.Tool{})
	}))
	defer srv.Close()

	c := New(srv.URL+"/", nil)
	_, err := c.ListTools()
	require.NoError(t, err)
}
