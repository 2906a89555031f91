// Package agent constructs and runs the sub-agents backing agent-kind tools.
package agent

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/a5c-ai/mcpml/internal/registry"
	"github.com/a5c-ai/mcpml/pkg/types"
)

// ErrTurnLimitExceeded is returned when an agent run exhausts its turn
// budget. It is the primary safeguard against unbounded mutual recursion
// among agent-kind tools.
var ErrTurnLimitExceeded = errors.New("turn limit exceeded")

// DefaultMaxTurns caps an agent run's reasoning/tool-call steps when the
// tool definition does not specify its own limit.
const DefaultMaxTurns = 10

// Agent is the capability contract every agent implementation satisfies:
// given a natural-language input it produces a result, taking at most the
// configured number of turns.
type Agent interface {
	Run(ctx context.Context, input string) (any, error)
}

// Dispatcher invokes a sibling tool by name, routing the call back through
// the central invocation engine so that output-schema handling, error
// translation, and turn accounting stay in one place.
type Dispatcher func(ctx context.Context, name string, args map[string]any) (any, error)

// SiblingTool is a sibling tool exposed to an agent as an invokable
// capability. The agent only sees the name, description and schema;
// calls go through the Dispatcher.
type SiblingTool struct {
	Name        string
	Description string
	InputSchema types.ToolInputSchema
}

// Params carries everything needed to construct a runtime agent for one run.
type Params struct {
	Kind         string
	Model        string
	Instructions string
	MaxTurns     int

	// OutputSchema optionally names the JSON schema the agent's final
	// result is expected to conform to. The invocation engine validates
	// the result against it best-effort; implementations may additionally
	// use it to steer the model toward the expected shape.
	OutputSchema string

	Upstreams []registry.UpstreamServerDefinition
	Siblings  []SiblingTool
	Dispatch  Dispatcher

	// UpstreamInitTimeout bounds the initialization handshake with each
	// attached upstream server.
	UpstreamInitTimeout time.Duration

	Logger *zap.Logger
}

// Constructor builds an agent from run parameters.
type Constructor func(p Params) (Agent, error)

var (
	kindsMu sync.RWMutex
	kinds   = make(map[string]Constructor)
)

// RegisterKind adds an agent kind to the startup-time constructor table.
// Registering an already-known kind replaces the previous constructor.
func RegisterKind(kind string, ctor Constructor) {
	kindsMu.Lock()
	defer kindsMu.Unlock()
	kinds[kind] = ctor
}

func lookupKind(kind string) (Constructor, bool) {
	kindsMu.RLock()
	defer kindsMu.RUnlock()
	ctor, ok := kinds[kind]
	return ctor, ok
}

// TurnBudget is a turn counter shared across an entire tree of nested
// agent runs. A chain of agents calling each other (A calls B, B calls A)
// draws from the single budget created for the outermost run, so the
// chain terminates even though each run also has its own per-run cap.
type TurnBudget struct {
	remaining atomic.Int64
}

// NewTurnBudget creates a budget of n turns.
func NewTurnBudget(n int) *TurnBudget {
	b := &TurnBudget{}
	b.remaining.Store(int64(n))
	return b
}

// Take consumes one turn. It returns false when the budget is exhausted.
func (b *TurnBudget) Take() bool {
	return b.remaining.Add(-1) >= 0
}

type turnBudgetKey struct{}

// WithTurnBudget attaches a turn budget to the context.
func WithTurnBudget(ctx context.Context, b *TurnBudget) context.Context {
	return context.WithValue(ctx, turnBudgetKey{}, b)
}

// BudgetFromContext returns the turn budget attached to the context, if any.
func BudgetFromContext(ctx context.Context) (*TurnBudget, bool) {
	b, ok := ctx.Value(turnBudgetKey{}).(*TurnBudget)
	return b, ok
}
