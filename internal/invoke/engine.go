// Package invoke implements the tool invocation engine: dynamic lookup of
// a tool by name, type-aware argument binding, dispatch to either a plain
// function or a delegated sub-agent, and translation of every failure mode
// into a structured result.
package invoke

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/a5c-ai/mcpml/internal/agent"
	"github.com/a5c-ai/mcpml/internal/funcs"
	"github.com/a5c-ai/mcpml/internal/registry"
	"github.com/a5c-ai/mcpml/internal/schema"
	"github.com/a5c-ai/mcpml/internal/telemetry"
)

// DefaultMaxConcurrentInvocations bounds how many tool calls may execute
// at the same time when the configuration does not specify a limit.
const DefaultMaxConcurrentInvocations = 64

// InvocationRequest identifies a tool and the arguments to call it with.
type InvocationRequest struct {
	ToolName  string
	Arguments map[string]any
}

// Recorder persists invocation outcomes. Recording is best-effort: the
// engine never fails a call because its record could not be written.
type Recorder interface {
	RecordInvocation(tool, kind, outcome, errorKind, errMsg string, d time.Duration, args map[string]any, result any)
}

// EngineOptions configures an Engine.
type EngineOptions struct {
	Registry *registry.Registry
	Resolver *funcs.Resolver
	Factory  *agent.Factory
	// OutputSchemas validates declared output schemas; optional.
	OutputSchemas *schema.OutputRegistry
	Metrics       telemetry.CustomMetrics
	// Recorder receives the audit trail of invocations; optional.
	Recorder Recorder
	Logger   *zap.Logger
	// MaxConcurrentInvocations bounds concurrent tool calls.
	MaxConcurrentInvocations int64
}

// Engine executes invocation requests against the tool registry.
// It is safe for concurrent use; each call runs independently.
type Engine struct {
	registry      *registry.Registry
	resolver      *funcs.Resolver
	factory       *agent.Factory
	outputSchemas *schema.OutputRegistry
	metrics       telemetry.CustomMetrics
	recorder      Recorder
	logger        *zap.Logger
	sem           *semaphore.Weighted
}

// NewEngine creates an invocation engine.
func NewEngine(opts EngineOptions) (*Engine, error) {
	if opts.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if opts.Resolver == nil {
		return nil, fmt.Errorf("resolver is required")
	}
	if opts.Factory == nil {
		return nil, fmt.Errorf("agent factory is required")
	}
	if opts.Metrics == nil {
		opts.Metrics = telemetry.NewNoopCustomMetrics()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.MaxConcurrentInvocations <= 0 {
		opts.MaxConcurrentInvocations = DefaultMaxConcurrentInvocations
	}
	return &Engine{
		registry:      opts.Registry,
		resolver:      opts.Resolver,
		factory:       opts.Factory,
		outputSchemas: opts.OutputSchemas,
		metrics:       opts.Metrics,
		recorder:      opts.Recorder,
		logger:        opts.Logger,
		sem:           semaphore.NewWeighted(opts.MaxConcurrentInvocations),
	}, nil
}

// Invoke executes a single invocation request and returns either the
// result value or an *InvocationError describing the failure. Faults
// raised by implementations or by the agent runtime never escape this
// boundary.
func (e *Engine) Invoke(ctx context.Context, req InvocationRequest) (any, error) {
	// Only top-level calls count against the concurrency limit. Nested
	// sibling calls (recognizable by the turn budget on the context) run
	// on the slot their root call already holds; acquiring again could
	// deadlock an agent against its own tools.
	if _, nested := agent.BudgetFromContext(ctx); !nested {
		if err := e.sem.Acquire(ctx, 1); err != nil {
			return nil, newError(KindRuntimeFault, err)
		}
		defer e.sem.Release(1)
	}

	started := time.Now()

	def, ok := e.registry.Lookup(req.ToolName)
	if !ok {
		invErr := errorf(KindNotFound, "tool not found: %s", req.ToolName)
		e.record(ctx, req, "", started, nil, invErr)
		return nil, invErr
	}

	var (
		value  any
		invErr *InvocationError
	)
	switch def.Kind {
	case registry.ToolKindFunction:
		value, invErr = e.invokeFunction(ctx, def, req.Arguments)
	case registry.ToolKindAgent:
		value, invErr = e.invokeAgent(ctx, def, req.Arguments)
	default:
		invErr = errorf(KindResolutionError, "tool %s has unknown type %s", def.Name, def.Kind)
	}

	e.record(ctx, req, string(def.Kind), started, value, invErr)
	if invErr != nil {
		return nil, invErr
	}
	return value, nil
}

func (e *Engine) invokeFunction(
	ctx context.Context, def *registry.ToolDefinition, args map[string]any,
) (any, *InvocationError) {
	fn, err := e.resolver.Resolve(def.Implementation)
	if err != nil {
		return nil, newError(KindResolutionError, err)
	}

	in, invErr := bindArguments(ctx, def, fn, args)
	if invErr != nil {
		return nil, invErr
	}

	value, invErr := callFunction(def, fn, in)
	if invErr != nil {
		return nil, invErr
	}

	e.validateOutput(def, value)
	return value, nil
}

// validateOutput checks the result against the tool's declared output
// schema, if any. Validation is best-effort enrichment, not a gate: an
// otherwise-successful call is never failed solely because the optional
// output contract didn't parse.
func (e *Engine) validateOutput(def *registry.ToolDefinition, value any) {
	if def.OutputSchema == "" || e.outputSchemas == nil {
		return
	}
	if err := e.outputSchemas.Validate(def.OutputSchema, value); err != nil {
		e.logger.Warn("output schema validation failed, returning raw result",
			zap.String("tool", def.Name),
			zap.String("schema", def.OutputSchema),
			zap.Error(err),
		)
	}
}

func (e *Engine) invokeAgent(
	ctx context.Context, def *registry.ToolDefinition, args map[string]any,
) (any, *InvocationError) {
	input, _ := args["input"].(string)

	// normalized here, once, so the shared budget below and the per-run
	// cap inside the agent always agree
	maxTurns := agent.DefaultMaxTurns
	if def.MaxTurns != nil && *def.MaxTurns > 0 {
		maxTurns = *def.MaxTurns
	}

	siblings := e.registry.EffectiveSiblingTools(def)
	siblingTools := make([]agent.SiblingTool, 0, len(siblings))
	allowed := make(map[string]struct{}, len(siblings))
	for _, sib := range siblings {
		siblingTools = append(siblingTools, agent.SiblingTool{
			Name:        sib.Name,
			Description: sib.Description,
			InputSchema: schema.Derive(sib, e.resolver),
		})
		allowed[sib.Name] = struct{}{}
	}

	params := agent.Params{
		Kind:         def.AgentKind,
		Model:        def.Model,
		Instructions: def.Instructions,
		MaxTurns:     maxTurns,
		OutputSchema: def.OutputSchema,
		Upstreams:    e.registry.EffectiveUpstreamServers(def),
		Siblings:     siblingTools,
		Dispatch:     e.dispatcher(allowed),
		Logger:       e.logger.With(zap.String("agent_tool", def.Name)),
	}

	// nested agent runs share the turn budget of the outermost run, so
	// mutual recursion terminates even when every individual run stays
	// under its own cap
	if _, ok := agent.BudgetFromContext(ctx); !ok {
		ctx = agent.WithTurnBudget(ctx, agent.NewTurnBudget(maxTurns))
	}

	value, err := e.factory.Run(ctx, params, input)
	if err != nil {
		if errors.Is(err, agent.ErrTurnLimitExceeded) {
			return nil, newError(KindTurnLimitExceeded, err)
		}
		return nil, newError(KindRuntimeFault, err)
	}

	e.validateOutput(def, value)
	return value, nil
}

// dispatcher returns the "call tool by name" entry point bound to an
// agent's effective sibling scope. A tool outside the scope is rejected
// here, regardless of what the planner attempts.
func (e *Engine) dispatcher(allowed map[string]struct{}) agent.Dispatcher {
	return func(ctx context.Context, name string, args map[string]any) (any, error) {
		if _, ok := allowed[name]; !ok {
			return nil, errorf(KindNotFound, "tool %q is not available to this agent", name)
		}
		return e.Invoke(ctx, InvocationRequest{ToolName: name, Arguments: args})
	}
}

func (e *Engine) record(
	ctx context.Context, req InvocationRequest, kind string, started time.Time, value any, invErr *InvocationError,
) {
	elapsed := time.Since(started)

	outcome := telemetry.ToolCallOutcomeSuccess
	errorKind, errMsg := "", ""
	if invErr != nil {
		outcome = telemetry.ToolCallOutcomeError
		errorKind = string(invErr.Kind)
		errMsg = invErr.Message
	}

	e.metrics.RecordToolCall(ctx, req.ToolName, kind, outcome, elapsed)

	if e.recorder != nil {
		e.recorder.RecordInvocation(
			req.ToolName, kind, string(outcome), errorKind, errMsg, elapsed, req.Arguments, value,
		)
	}

	if invErr != nil {
		e.logger.Info("tool invocation failed",
			zap.String("tool", req.ToolName),
			zap.String("error_kind", errorKind),
			zap.String("error", errMsg),
			zap.Duration("duration", elapsed),
		)
	} else {
		e.logger.Debug("tool invocation succeeded",
			zap.String("tool", req.ToolName),
			zap.Duration("duration", elapsed),
		)
	}
}
