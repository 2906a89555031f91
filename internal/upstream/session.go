// Package upstream manages connections to the external MCP servers that
// mcpml consumes tools from on behalf of agent runs.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/a5c-ai/mcpml/internal/registry"
	"github.com/a5c-ai/mcpml/pkg/version"
)

// Session is a live connection to a single upstream MCP server.
// Sessions are established lazily at run time, once per agent run, and are
// owned by that run: they are never shared across concurrent invocations
// and must be closed when the run ends.
type Session struct {
	name   string
	client *client.Client
}

// NewSession connects to the upstream server described by def.
// A URL-addressed definition uses the streamable HTTP transport; a
// command-addressed one runs the server as a subprocess over stdio.
func NewSession(
	ctx context.Context,
	def registry.UpstreamServerDefinition,
	initReqTimeout time.Duration,
	logger *zap.Logger,
) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		c   *client.Client
		err error
	)
	if def.URL != "" {
		c, err = connectHTTP(ctx, def, initReqTimeout)
	} else {
		c, err = runStdio(ctx, def, initReqTimeout, logger)
	}
	if err != nil {
		return nil, err
	}

	return &Session{name: def.Name, client: c}, nil
}

// Name returns the upstream server's configured name.
func (s *Session) Name() string { return s.name }

// ListTools fetches the tools currently exposed by the upstream server.
func (s *Session) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	resp, err := s.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tools from MCP server %s: %w", s.name, err)
	}
	return resp.Tools, nil
}

// CallTool invokes a tool on the upstream server.
func (s *Session) CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	resp, err := s.client.CallTool(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to call tool %s on MCP server %s: %w", name, s.name, err)
	}
	return resp, nil
}

// Close tears down the connection (and, for stdio servers, the subprocess).
func (s *Session) Close() error {
	return s.client.Close()
}

func initializeRequest(name string) mcp.InitializeRequest {
	req := mcp.InitializeRequest{}
	req.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	req.Params.ClientInfo = mcp.Implementation{
		Name:    "mcpml client for " + name,
		Version: version.GetVersion(),
	}
	req.Params.Capabilities = mcp.ClientCapabilities{}
	return req
}

// connectHTTP creates a new connection to a streamable HTTP MCP server.
func connectHTTP(ctx context.Context, def registry.UpstreamServerDefinition, initReqTimeout time.Duration) (*client.Client, error) {
	c, err := client.NewStreamableHttpClient(def.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to create streamable HTTP client for MCP server %s: %w", def.Name, err)
	}

	initCtx, cancel := context.WithTimeout(ctx, initReqTimeout)
	defer cancel()

	if _, err := c.Initialize(initCtx, initializeRequest(def.Name)); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf(
				"initialization request to MCP server %s timed out after %s", def.Name, initReqTimeout,
			)
		}
		if errors.Is(err, syscall.ECONNREFUSED) && isLoopbackURL(def.URL) {
			return nil, fmt.Errorf(
				"connection to the MCP server %s was refused. "+
					"If mcpml is running inside Docker, use 'host.docker.internal' as your MCP server's hostname",
				def.URL,
			)
		}
		return nil, fmt.Errorf("failed to initialize connection with MCP server %s: %w", def.Name, err)
	}

	return c, nil
}

// runStdio runs a stdio MCP server as a subprocess and connects to it.
// A new subprocess is spun up for each agent run that attaches the server.
func runStdio(
	ctx context.Context,
	def registry.UpstreamServerDefinition,
	initReqTimeout time.Duration,
	logger *zap.Logger,
) (*client.Client, error) {
	envVars := make([]string, 0, len(def.Env))
	for k, v := range def.Env {
		envVars = append(envVars, fmt.Sprintf("%s=%s", k, v))
	}

	c, err := client.NewStdioMCPClient(def.Command, envVars, def.Args...)
	if err != nil {
		return nil, fmt.Errorf("failed to create stdio client for MCP server %s: %w", def.Name, err)
	}

	captureStdioServerStderr(def.Name, c, logger)

	initCtx, cancel := context.WithTimeout(ctx, initReqTimeout)
	defer cancel()

	if _, err := c.Initialize(initCtx, initializeRequest(def.Name)); err != nil {
		_ = c.Close()
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf(
				"initialization request to MCP server %s timed out after %s,"+
					" check mcpml server logs for any errors from this MCP server",
				def.Name, initReqTimeout,
			)
		}
		return nil, fmt.Errorf("failed to initialize connection with MCP server %s: %w", def.Name, err)
	}

	return c, nil
}

// captureStdioServerStderr captures the stderr output of a stdio MCP server
// in the background and writes it to mcpml's logs. This is useful for
// troubleshooting and visibility into the subprocess's behaviour.
func captureStdioServerStderr(name string, c *client.Client, logger *zap.Logger) {
	stdioTransport, ok := c.GetTransport().(*transport.Stdio)
	if !ok {
		return
	}

	go func() {
		buf := make([]byte, 4096)
		for {
			n, err := stdioTransport.Stderr().Read(buf)
			if n > 0 {
				logger.Info("upstream MCP server stderr",
					zap.String("server", name),
					zap.String("output", string(buf[:n])),
				)
			}
			if err != nil {
				if err == io.EOF || errors.Is(err, os.ErrClosed) {
					logger.Debug("upstream MCP server process has exited", zap.String("server", name))
				} else {
					logger.Warn("error reading upstream MCP server stderr",
						zap.String("server", name), zap.Error(err),
					)
				}
				return
			}
		}
	}()
}

// isLoopbackURL returns true if rawURL resolves to a loopback address.
func isLoopbackURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := u.Hostname()
	if host == "" {
		return false
	}
	if strings.EqualFold(host, "localhost") {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return false
}
