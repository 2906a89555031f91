package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/a5c-ai/mcpml/internal/upstream"
)

const (
	defaultModel        = "gpt-4o"
	defaultInstructions = "You are a helpful AI assistant."
)

func init() {
	RegisterKind(BuiltinKind, NewOpenAIAgent)
}

// openAIAgent is the built-in agent implementation. It drives an
// OpenAI-compatible chat completion API with function calling: sibling
// tools are dispatched back through the invocation engine, upstream MCP
// tools are called on per-run sessions.
type openAIAgent struct {
	p      Params
	client *openai.Client
}

// NewOpenAIAgent constructs the built-in agent.
// Credentials come from the environment: AZURE_OPENAI_API_KEY plus
// AZURE_OPENAI_ENDPOINT select the Azure endpoint, otherwise
// OPENAI_API_KEY is used (with an optional OPENAI_BASE_URL override).
func NewOpenAIAgent(p Params) (Agent, error) {
	if p.Model == "" {
		p.Model = defaultModel
	}
	if p.Instructions == "" {
		p.Instructions = defaultInstructions
	}
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}

	var cfg openai.ClientConfig
	if azureKey := os.Getenv("AZURE_OPENAI_API_KEY"); azureKey != "" {
		cfg = openai.DefaultAzureConfig(azureKey, os.Getenv("AZURE_OPENAI_ENDPOINT"))
	} else {
		cfg = openai.DefaultConfig(os.Getenv("OPENAI_API_KEY"))
		if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
			cfg.BaseURL = baseURL
		}
	}

	return &openAIAgent{p: p, client: openai.NewClientWithConfig(cfg)}, nil
}

// toolRoute knows how to execute one tool the model may call.
type toolRoute func(ctx context.Context, args map[string]any) (string, error)

func (a *openAIAgent) Run(ctx context.Context, input string) (any, error) {
	// connections to upstream servers are scoped to this run only
	sessions := make([]*upstream.Session, 0, len(a.p.Upstreams))
	defer func() {
		for _, s := range sessions {
			_ = s.Close()
		}
	}()

	routes := make(map[string]toolRoute)
	tools := make([]openai.Tool, 0, len(a.p.Siblings))

	for _, sib := range a.p.Siblings {
		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        sib.Name,
				Description: sib.Description,
				Parameters:  sib.InputSchema,
			},
		})
		routes[sib.Name] = a.siblingRoute(sib.Name)
	}

	for _, def := range a.p.Upstreams {
		sess, err := upstream.NewSession(ctx, def, a.p.UpstreamInitTimeout, a.p.Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to MCP server %s: %w", def.Name, err)
		}
		sessions = append(sessions, sess)

		upstreamTools, err := sess.ListTools(ctx)
		if err != nil {
			return nil, err
		}
		for _, t := range upstreamTools {
			// namespaced under the server name so upstream tools cannot
			// shadow siblings or tools from another server
			name := qualifiedToolName(def.Name, t.GetName())
			tools = append(tools, openai.Tool{
				Type: openai.ToolTypeFunction,
				Function: &openai.FunctionDefinition{
					Name:        name,
					Description: t.Description,
					Parameters:  t.InputSchema,
				},
			})
			routes[name] = a.upstreamRoute(sess, t.GetName())
		}
	}

	instructions := a.p.Instructions
	if a.p.OutputSchema != "" {
		instructions += "\nYour final answer must be a JSON value conforming to the output schema " +
			a.p.OutputSchema + "."
	}
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: instructions},
		{Role: openai.ChatMessageRoleUser, Content: input},
	}

	for turn := 0; turn < a.p.MaxTurns; turn++ {
		// cancellation is observed between turns, not mid-turn
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if budget, ok := BudgetFromContext(ctx); ok && !budget.Take() {
			return nil, ErrTurnLimitExceeded
		}

		resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:    a.p.Model,
			Messages: messages,
			Tools:    tools,
		})
		if err != nil {
			return nil, fmt.Errorf("model request failed: %w", err)
		}
		if len(resp.Choices) == 0 {
			return nil, fmt.Errorf("model returned no choices")
		}

		msg := resp.Choices[0].Message
		if len(msg.ToolCalls) == 0 {
			return msg.Content, nil
		}

		messages = append(messages, msg)
		for _, tc := range msg.ToolCalls {
			result, err := a.executeToolCall(ctx, routes, tc)
			if err != nil {
				return nil, err
			}
			messages = append(messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				ToolCallID: tc.ID,
				Content:    result,
			})
		}
	}

	return nil, ErrTurnLimitExceeded
}

// executeToolCall runs a single tool call requested by the model.
// A failed tool call is reported back to the model as its result rather
// than aborting the run, so the model can recover or give up on its own.
func (a *openAIAgent) executeToolCall(
	ctx context.Context, routes map[string]toolRoute, tc openai.ToolCall,
) (string, error) {
	name := tc.Function.Name
	a.p.Logger.Debug("agent tool call", zap.String("tool", name))

	route, ok := routes[name]
	if !ok {
		return fmt.Sprintf("Error: tool %q is not available to this agent", name), nil
	}

	args := map[string]any{}
	if tc.Function.Arguments != "" {
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
			return fmt.Sprintf("Error: invalid tool arguments: %v", err), nil
		}
	}

	result, err := route(ctx, args)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, ErrTurnLimitExceeded) {
			return "", err
		}
		return fmt.Sprintf("Error: %v", err), nil
	}
	return result, nil
}

// siblingRoute exposes a sibling tool by binding the central dispatch
// entry point to the tool's name. Calls re-enter the invocation engine,
// keeping output-schema handling, error translation and turn accounting
// on the single dispatch path.
func (a *openAIAgent) siblingRoute(name string) toolRoute {
	return func(ctx context.Context, args map[string]any) (string, error) {
		value, err := a.p.Dispatch(ctx, name, args)
		if err != nil {
			return "", err
		}
		return stringifyResult(value)
	}
}

func (a *openAIAgent) upstreamRoute(sess *upstream.Session, name string) toolRoute {
	return func(ctx context.Context, args map[string]any) (string, error) {
		resp, err := sess.CallTool(ctx, name, args)
		if err != nil {
			return "", err
		}
		serialized, err := json.Marshal(resp.Content)
		if err != nil {
			return "", fmt.Errorf("failed to serialize result of tool %s: %w", name, err)
		}
		if resp.IsError {
			return fmt.Sprintf("Error: %s", serialized), nil
		}
		return string(serialized), nil
	}
}

// qualifiedToolName namespaces an upstream tool under the name of the
// server providing it.
func qualifiedToolName(server, tool string) string {
	return server + "__" + tool
}

func stringifyResult(value any) (string, error) {
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
