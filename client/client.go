// Package client provides an HTTP API client for a running mcpml server.
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/a5c-ai/mcpml/pkg/types"
)

const apiPathPrefix = "/api/v0"

// Client talks to the mcpml HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client for the server at baseURL (eg- "http://127.0.0.1:8000").
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
	}
}

func (c *Client) apiEndpoint(path string) string {
	return c.baseURL + apiPathPrefix + path
}

// parseErrorResponse extracts the error message from a non-2xx response.
func (c *Client) parseErrorResponse(resp *http.Response) error {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil || payload.Error == "" {
		return fmt.Errorf("request failed with status %s", resp.Status)
	}
	return fmt.Errorf("request failed with status %s: %s", resp.Status, payload.Error)
}

func (c *Client) getJSON(u string, out any) error {
	resp, err := c.httpClient.Get(u)
	if err != nil {
		return fmt.Errorf("failed to send request to %s: %w", u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseErrorResponse(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// ListTools fetches all tools exposed by the server.
func (c *Client) ListTools() ([]types.Tool, error) {
	var tools []types.Tool
	if err := c.getJSON(c.apiEndpoint("/tools"), &tools); err != nil {
		return nil, err
	}
	return tools, nil
}

// GetTool fetches a single tool by name.
func (c *Client) GetTool(name string) (*types.Tool, error) {
	u := c.apiEndpoint("/tool?name=" + url.QueryEscape(name))
	var tool types.Tool
	if err := c.getJSON(u, &tool); err != nil {
		return nil, err
	}
	return &tool, nil
}

// InvokeTool calls a tool with the given arguments and returns the
// structured invocation result.
func (c *Client) InvokeTool(name string, args map[string]any) (*types.ToolInvokeResult, error) {
	body, err := json.Marshal(&types.ToolInvokeInput{Name: name, Arguments: args})
	if err != nil {
		return nil, err
	}

	u := c.apiEndpoint("/tools/invoke")
	resp, err := c.httpClient.Post(u, "application/json", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to send request to %s: %w", u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	var result types.ToolInvokeResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &result, nil
}

// ListServers fetches the upstream MCP servers known to the configuration.
func (c *Client) ListServers() ([]types.UpstreamServer, error) {
	var servers []types.UpstreamServer
	if err := c.getJSON(c.apiEndpoint("/servers"), &servers); err != nil {
		return nil, err
	}
	return servers, nil
}

// ListInvocations fetches the most recent entries of the invocation log.
func (c *Client) ListInvocations(limit int) ([]types.InvocationRecord, error) {
	u := c.apiEndpoint("/invocations")
	if limit > 0 {
		u += "?limit=" + strconv.Itoa(limit)
	}
	var records []types.InvocationRecord
	if err := c.getJSON(u, &records); err != nil {
		return nil, err
	}
	return records, nil
}
