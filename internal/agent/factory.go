package agent

import (
	"context"
	"fmt"
	"path/filepath"
	"plugin"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// BuiltinKind is the agent kind used when a tool definition does not name
// one, and the fallback for unrecognized kinds.
const BuiltinKind = "simple"

// pluginSymbol is the constructor symbol a user-supplied agent plugin
// must export.
const pluginSymbol = "NewAgent"

// Factory constructs runtime agents for agent-kind tools.
//
// Construction first attempts discovery of a user-supplied implementation
// matching the requested kind, but only when a plugin directory has been
// explicitly configured: startup stays deterministic otherwise.
// When no custom implementation matches, the kind is looked up in the
// constructor table; unknown kinds fall back to the built-in agent with a
// warning rather than failing.
type Factory struct {
	fs                  afero.Fs
	pluginDir           string
	upstreamInitTimeout time.Duration
	logger              *zap.Logger
}

// FactoryOptions configures a Factory.
type FactoryOptions struct {
	// Fs is the filesystem used to probe for plugin files. Defaults to the OS filesystem.
	Fs afero.Fs
	// PluginDir enables user plugin discovery when non-empty.
	PluginDir string
	// UpstreamInitTimeout bounds the initialization handshake with upstream
	// MCP servers attached to the agents this factory builds.
	UpstreamInitTimeout time.Duration
	Logger              *zap.Logger
}

// NewFactory creates an agent factory.
func NewFactory(opts FactoryOptions) *Factory {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.UpstreamInitTimeout <= 0 {
		opts.UpstreamInitTimeout = 10 * time.Second
	}
	return &Factory{
		fs:                  opts.Fs,
		pluginDir:           opts.PluginDir,
		upstreamInitTimeout: opts.UpstreamInitTimeout,
		logger:              opts.Logger,
	}
}

// Build constructs a runtime agent for the given parameters.
func (f *Factory) Build(p Params) (Agent, error) {
	if p.MaxTurns <= 0 {
		p.MaxTurns = DefaultMaxTurns
	}
	if p.UpstreamInitTimeout <= 0 {
		p.UpstreamInitTimeout = f.upstreamInitTimeout
	}
	if p.Logger == nil {
		p.Logger = f.logger
	}
	if p.Kind == "" {
		p.Kind = BuiltinKind
	}

	if f.pluginDir != "" {
		if ctor, ok := f.discoverCustomKind(p.Kind); ok {
			f.logger.Info("using custom agent implementation", zap.String("kind", p.Kind))
			return ctor(p)
		}
	}

	ctor, ok := lookupKind(p.Kind)
	if !ok {
		f.logger.Warn("unknown agent type, falling back to the built-in agent",
			zap.String("kind", p.Kind),
		)
		ctor, ok = lookupKind(BuiltinKind)
		if !ok {
			return nil, fmt.Errorf("built-in agent kind %s is not registered", BuiltinKind)
		}
	}
	return ctor(p)
}

// Run builds an agent and executes one run with the given input.
func (f *Factory) Run(ctx context.Context, p Params, input string) (any, error) {
	a, err := f.Build(p)
	if err != nil {
		return nil, fmt.Errorf("failed to construct agent: %w", err)
	}
	return a.Run(ctx, input)
}

// discoverCustomKind probes the plugin directory for a user-supplied agent
// implementation matching the requested kind, trying the naming
// conventions in order. The first plugin exposing a valid constructor wins.
func (f *Factory) discoverCustomKind(kind string) (Constructor, bool) {
	candidates := []string{
		filepath.Join(f.pluginDir, kind+"_agent.so"),
		filepath.Join(f.pluginDir, "agent_"+kind+".so"),
		filepath.Join(f.pluginDir, kind+".so"),
		filepath.Join(f.pluginDir, "agents", kind+".so"),
		filepath.Join(f.pluginDir, "agent_types", kind+".so"),
	}

	for _, path := range candidates {
		exists, err := afero.Exists(f.fs, path)
		if err != nil || !exists {
			continue
		}
		ctor, err := loadAgentPlugin(path)
		if err != nil {
			f.logger.Warn("skipping agent plugin",
				zap.String("path", path), zap.Error(err),
			)
			continue
		}
		return ctor, true
	}
	return nil, false
}

func loadAgentPlugin(path string) (Constructor, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open plugin %s: %w", path, err)
	}
	sym, err := p.Lookup(pluginSymbol)
	if err != nil {
		return nil, fmt.Errorf("plugin %s does not export %s: %w", path, pluginSymbol, err)
	}
	ctor, ok := sym.(func(Params) (Agent, error))
	if !ok {
		return nil, fmt.Errorf(
			"symbol %s in plugin %s has type %T, want func(agent.Params) (agent.Agent, error)",
			pluginSymbol, path, sym,
		)
	}
	return ctor, nil
}
