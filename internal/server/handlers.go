package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/a5c-ai/mcpml/internal/invoke"
	"github.com/a5c-ai/mcpml/internal/registry"
	"github.com/a5c-ai/mcpml/internal/schema"
	"github.com/a5c-ai/mcpml/pkg/types"
	"github.com/a5c-ai/mcpml/pkg/version"
)

func (s *Server) metadataHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, &types.ServerMetadata{
			Name:    s.cfg.Name,
			Version: version.GetVersion(),
		})
	}
}

func (s *Server) toolToAPIType(def *registry.ToolDefinition) types.Tool {
	return types.Tool{
		Name:        def.Name,
		Kind:        string(def.Kind),
		Description: def.Description,
		InputSchema: schema.Derive(def, s.resolver),
	}
}

// listToolsHandler returns all registry entries with freshly derived
// schemas. Listing twice without reconfiguration yields identical output.
func (s *Server) listToolsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		defs := s.registry.All()
		tools := make([]types.Tool, len(defs))
		for i, def := range defs {
			tools[i] = s.toolToAPIType(def)
		}
		c.JSON(http.StatusOK, tools)
	}
}

func (s *Server) getToolHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Query("name")
		if name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name query parameter is required"})
			return
		}
		def, ok := s.registry.Lookup(name)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "tool not found: " + name})
			return
		}
		c.JSON(http.StatusOK, s.toolToAPIType(def))
	}
}

// invokeToolHandler runs a tool through the invocation engine.
// An unknown tool is a 404; every other failure kind is a structured
// error payload with status 200, mirroring the MCP error-result shape.
func (s *Server) invokeToolHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input types.ToolInvokeInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		value, err := s.engine.Invoke(c.Request.Context(), invoke.InvocationRequest{
			ToolName:  input.Name,
			Arguments: input.Arguments,
		})
		if err != nil {
			var invErr *invoke.InvocationError
			if errors.As(err, &invErr) {
				if invErr.Kind == invoke.KindNotFound {
					c.JSON(http.StatusNotFound, gin.H{"error": invErr.Message})
					return
				}
				c.JSON(http.StatusOK, &types.ToolInvokeResult{
					IsError:   true,
					ErrorKind: string(invErr.Kind),
					Error:     invErr.Message,
				})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, &types.ToolInvokeResult{Result: value})
	}
}

func (s *Server) listServersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		defs := s.registry.UpstreamServers()
		servers := make([]types.UpstreamServer, len(defs))
		for i, def := range defs {
			transport := "streamable_http"
			if def.Command != "" {
				transport = "stdio"
			}
			servers[i] = types.UpstreamServer{
				Name:        def.Name,
				Description: def.Description,
				Transport:   transport,
				URL:         def.URL,
				Command:     def.Command,
			}
		}
		c.JSON(http.StatusOK, servers)
	}
}

func (s *Server) listInvocationsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.audit == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "invocation audit log is not enabled"})
			return
		}

		limit := 50
		if raw := c.Query("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
				return
			}
			limit = parsed
		}

		records, err := s.audit.ListRecent(limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		out := make([]types.InvocationRecord, len(records))
		for i, rec := range records {
			out[i] = types.InvocationRecord{
				ID:         rec.ID,
				ToolName:   rec.ToolName,
				Kind:       rec.Kind,
				Outcome:    rec.Outcome,
				ErrorKind:  rec.ErrorKind,
				Error:      rec.Error,
				DurationMs: rec.DurationMs,
				CreatedAt:  rec.CreatedAt.Format(time.RFC3339),
			}
		}
		c.JSON(http.StatusOK, out)
	}
}
