package agent

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAgent struct {
	p Params
}

func (a stubAgent) Run(ctx context.Context, input string) (any, error) {
	return "stub: " + input, nil
}

func TestTurnBudget(t *testing.T) {
	b := NewTurnBudget(3)

	assert.True(t, b.Take())
	assert.True(t, b.Take())
	assert.True(t, b.Take())
	assert.False(t, b.Take())
	// exhausted budgets stay exhausted
	assert.False(t, b.Take())
}

func TestTurnBudgetConcurrentTakes(t *testing.T) {
	const n = 100
	b := NewTurnBudget(n / 2)

	var wg sync.WaitGroup
	granted := make(chan struct{}, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if b.Take() {
				granted <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(granted)

	assert.Len(t, granted, n/2)
}

func TestBudgetContextRoundTrip(t *testing.T) {
	_, ok := BudgetFromContext(context.Background())
	assert.False(t, ok)

	b := NewTurnBudget(5)
	ctx := WithTurnBudget(context.Background(), b)

	got, ok := BudgetFromContext(ctx)
	require.True(t, ok)
	assert.Same(t, b, got)
}

func TestFactoryBuildsRegisteredKind(t *testing.T) {
	RegisterKind("stub", func(p Params) (Agent, error) {
		return stubAgent{p: p}, nil
	})

	f := NewFactory(FactoryOptions{})
	a, err := f.Build(Params{Kind: "stub"})
	require.NoError(t, err)

	value, err := a.Run(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "stub: hello", value)
}

func TestFactoryUnknownKindFallsBack(t *testing.T) {
	f := NewFactory(FactoryOptions{})

	// unrecognized kinds degrade to the built-in agent
	a, err := f.Build(Params{Kind: "does-not-exist"})
	require.NoError(t, err)
	assert.NotNil(t, a)
}

func TestFactoryDefaultsParams(t *testing.T) {
	var captured Params
	RegisterKind("capture", func(p Params) (Agent, error) {
		captured = p
		return stubAgent{p: p}, nil
	})

	f := NewFactory(FactoryOptions{})
	_, err := f.Build(Params{Kind: "capture", MaxTurns: -1})
	require.NoError(t, err)

	assert.Equal(t, DefaultMaxTurns, captured.MaxTurns)
	assert.NotNil(t, captured.Logger)
	assert.Positive(t, captured.UpstreamInitTimeout)
}

func TestFactoryRun(t *testing.T) {
	RegisterKind("stub", func(p Params) (Agent, error) {
		return stubAgent{p: p}, nil
	})

	f := NewFactory(FactoryOptions{})
	value, err := f.Run(context.Background(), Params{Kind: "stub"}, "ping")
	require.NoError(t, err)
	assert.Equal(t, "stub: ping", value)
}

func TestQualifiedToolName(t *testing.T) {
	assert.Equal(t, "calc__add", qualifiedToolName("calc", "add"))

	// the same tool name on two servers maps to two distinct routes,
	// and never collides with a plain sibling name
	assert.NotEqual(t, qualifiedToolName("calc", "add"), qualifiedToolName("files", "add"))
	assert.NotEqual(t, "add", qualifiedToolName("calc", "add"))
}

func TestStringifyResult(t *testing.T) {
	s, err := stringifyResult(nil)
	require.NoError(t, err)
	assert.Equal(t, "", s)

	s, err = stringifyResult("already text")
	require.NoError(t, err)
	assert.Equal(t, "already text", s)

	s, err = stringifyResult(map[string]any{"n": 5})
	require.NoError(t, err)
	assert.JSONEq(t, `{"n": 5}`, s)
}
