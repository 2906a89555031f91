// Package server implements the protocol transport server: it exposes the
// registry's tools over MCP, on either a stdio transport or a streaming
// HTTP transport, and hosts the accompanying HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/a5c-ai/mcpml/internal/audit"
	"github.com/a5c-ai/mcpml/internal/config"
	"github.com/a5c-ai/mcpml/internal/funcs"
	"github.com/a5c-ai/mcpml/internal/invoke"
	"github.com/a5c-ai/mcpml/internal/registry"
	"github.com/a5c-ai/mcpml/internal/schema"
	"github.com/a5c-ai/mcpml/internal/telemetry"
	"github.com/a5c-ai/mcpml/pkg/types"
	"github.com/a5c-ai/mcpml/pkg/version"
)

const (
	V0PathPrefix    = "/v0"
	V0ApiPathPrefix = "/api" + V0PathPrefix
)

// Options holds the dependencies of a Server.
type Options struct {
	Config   *config.Config
	Registry *registry.Registry
	Resolver *funcs.Resolver
	Engine   *invoke.Engine

	// Audit serves the invocation log API; optional.
	Audit *audit.Store

	OtelProviders *telemetry.Providers
	Logger        *zap.Logger
}

// Server is the mcpml protocol transport server. The transport (stdio or
// HTTP) is selected once at startup via ServeStdio or ServeHTTP and is
// not switchable at runtime.
type Server struct {
	cfg      *config.Config
	registry *registry.Registry
	resolver *funcs.Resolver
	engine   *invoke.Engine
	audit    *audit.Store

	otelProviders *telemetry.Providers
	logger        *zap.Logger

	mcpServer *mcpserver.MCPServer
	router    *gin.Engine

	// published tracks the last schema announced per tool, so syncTools
	// can tell a real change from a no-op.
	publishedMu sync.Mutex
	published   map[string]types.ToolInputSchema
}

// New wires up the MCP server and the HTTP router.
func New(opts *Options) (*Server, error) {
	if opts.Config == nil || opts.Registry == nil || opts.Resolver == nil || opts.Engine == nil {
		return nil, fmt.Errorf("config, registry, resolver and engine are required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	s := &Server{
		cfg:           opts.Config,
		registry:      opts.Registry,
		resolver:      opts.Resolver,
		engine:        opts.Engine,
		audit:         opts.Audit,
		otelProviders: opts.OtelProviders,
		logger:        opts.Logger,
		published:     make(map[string]types.ToolInputSchema),
	}

	// re-deriving schemas just before every tools/list keeps the wire
	// schema in sync with the currently resolvable implementations
	hooks := &mcpserver.Hooks{}
	hooks.AddBeforeListTools(func(ctx context.Context, id any, message *mcp.ListToolsRequest) {
		s.syncTools()
	})

	s.mcpServer = mcpserver.NewMCPServer(
		opts.Config.Name,
		version.GetVersion(),
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithHooks(hooks),
	)
	s.syncTools()

	s.router = s.setupRouter()
	return s, nil
}

// syncTools (re)derives the input schema of every registry entry and
// publishes the result on the MCP server. Adding a tool under an existing
// name replaces it.
// A tool is only re-added when its derived schema actually changed:
// AddTool broadcasts tools/list_changed to every connected session, and
// re-announcing an unchanged listing would ping-pong with clients that
// re-list on that notification.
func (s *Server) syncTools() {
	s.publishedMu.Lock()
	defer s.publishedMu.Unlock()

	for _, def := range s.registry.All() {
		derived := schema.Derive(def, s.resolver)
		if prev, ok := s.published[def.Name]; ok && reflect.DeepEqual(prev, derived) {
			continue
		}
		s.published[def.Name] = derived

		tool := mcp.Tool{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: mcp.ToolInputSchema{
				Type:       derived.Type,
				Properties: derived.Properties,
				Required:   derived.Required,
			},
		}
		s.mcpServer.AddTool(tool, s.toolCallHandler)
	}
}

// toolCallHandler routes an MCP tools/call into the invocation engine.
// Engine failures come back as MCP error results, never as transport
// errors: one faulty tool must not look like a broken server.
func (s *Server) toolCallHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	value, err := s.engine.Invoke(ctx, invoke.InvocationRequest{
		ToolName:  req.Params.Name,
		Arguments: req.GetArguments(),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	text, marshalErr := stringifyValue(value)
	if marshalErr != nil {
		return mcp.NewToolResultError(marshalErr.Error()), nil
	}

	result := mcp.NewToolResultText(text)
	if _, isString := value.(string); !isString && value != nil {
		result.StructuredContent = value
	}
	return result, nil
}

func stringifyValue(value any) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	default:
		serialized, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("failed to serialize tool result: %w", err)
		}
		return string(serialized), nil
	}
}

// ServeStdio serves the MCP protocol over the process's standard streams
// until the input stream closes, then returns cleanly.
func (s *Server) ServeStdio() error {
	s.logger.Info("serving MCP over stdio")
	err := mcpserver.ServeStdio(s.mcpServer)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("stdio server failed: %w", err)
	}
	return nil
}

// ServeHTTP runs the HTTP listener, multiplexing the MCP streaming
// endpoints and the REST API. It blocks until the process is terminated.
func (s *Server) ServeHTTP() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Settings.Server.Host, s.cfg.Settings.Server.Port)
	s.logger.Info("serving MCP over http", zap.String("addr", addr))
	if err := s.router.Run(addr); err != nil {
		return fmt.Errorf("failed to run the server: %w", err)
	}
	return nil
}

// setupRouter sets up the Gin router with the MCP endpoints and the API.
func (s *Server) setupRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	if s.otelProviders.IsEnabled() {
		r.Use(otelgin.Middleware(s.otelProviders.ServiceName()))
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metadata", s.metadataHandler())

	// the MCP streamable HTTP endpoint
	streamableHTTPServer := mcpserver.NewStreamableHTTPServer(s.mcpServer)
	r.Any("/mcp", gin.WrapH(streamableHTTPServer))

	// SSE transport: a streaming endpoint for server-to-client events and
	// a companion endpoint for client-to-server posted messages
	sseServer := mcpserver.NewSSEServer(s.mcpServer)
	r.Any("/sse", gin.WrapH(sseServer.SSEHandler()))
	r.Any("/message", gin.WrapH(sseServer.MessageHandler()))

	apiV0 := r.Group(V0ApiPathPrefix)
	{
		apiV0.GET("/tools", s.listToolsHandler())
		apiV0.GET("/tool", s.getToolHandler())
		apiV0.POST("/tools/invoke", s.invokeToolHandler())
		apiV0.GET("/servers", s.listServersHandler())
		apiV0.GET("/invocations", s.listInvocationsHandler())
	}

	return r
}
