package funcs

import (
	"fmt"
	"path/filepath"
	"plugin"
	"reflect"
	"sync"
	"unicode"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// ResolutionError indicates that an implementation reference could not be
// loaded. It is tool-specific and non-fatal: the invocation engine reports
// the tool as misconfigured instead of crashing the server.
type ResolutionError struct {
	Ref string
	Err error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("failed to resolve implementation %s: %v", e.Ref, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// pluginSubdirs are the convention directories searched (relative to the
// configured plugin directory) when resolving user-supplied implementations.
var pluginSubdirs = []string{".", "agents", "agent_types"}

// Resolver resolves dotted implementation references to callables.
//
// Resolution first consults the function registry. On a miss, and only
// when a plugin directory has been configured, it scans the plugin
// directory and its convention subdirectories for a Go plugin named after
// the reference's namespace and loads the referenced symbol from it.
//
// Resolved callables are cached by reference for the process lifetime and
// never invalidated: implementations are expected to be static during a
// server's run, and a restart is required after they change.
type Resolver struct {
	funcs     *Registry
	fs        afero.Fs
	pluginDir string
	logger    *zap.Logger

	mu    sync.Mutex
	cache map[string]any
}

// ResolverOptions configures a Resolver.
type ResolverOptions struct {
	// Funcs is the function registry consulted first. Defaults to Default.
	Funcs *Registry
	// Fs is the filesystem used to probe for plugin files. Defaults to the OS filesystem.
	Fs afero.Fs
	// PluginDir enables plugin discovery when non-empty.
	PluginDir string
	Logger    *zap.Logger
}

// NewResolver creates a resolver.
func NewResolver(opts ResolverOptions) *Resolver {
	if opts.Funcs == nil {
		opts.Funcs = Default
	}
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Resolver{
		funcs:     opts.Funcs,
		fs:        opts.Fs,
		pluginDir: opts.PluginDir,
		logger:    opts.Logger,
		cache:     make(map[string]any),
	}
}

// Resolve returns the callable registered or discoverable under ref.
// Failures are returned as *ResolutionError.
func (r *Resolver) Resolve(ref string) (any, error) {
	r.mu.Lock()
	if fn, ok := r.cache[ref]; ok {
		r.mu.Unlock()
		return fn, nil
	}
	r.mu.Unlock()

	fn, err := r.resolve(ref)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[ref] = fn
	r.mu.Unlock()
	return fn, nil
}

func (r *Resolver) resolve(ref string) (any, error) {
	if fn, ok := r.funcs.lookup(ref); ok {
		return fn, nil
	}

	if r.pluginDir == "" {
		return nil, &ResolutionError{
			Ref: ref,
			Err: fmt.Errorf("not registered and plugin loading is disabled"),
		}
	}

	namespace, symbol := splitRef(ref)
	if namespace == "" {
		return nil, &ResolutionError{Ref: ref, Err: fmt.Errorf("not registered")}
	}

	r.logger.Debug("implementation not registered, trying plugin directory",
		zap.String("ref", ref),
		zap.String("dir", r.pluginDir),
	)

	for _, sub := range pluginSubdirs {
		path := filepath.Join(r.pluginDir, sub, namespace+".so")
		exists, err := afero.Exists(r.fs, path)
		if err != nil || !exists {
			continue
		}
		fn, err := loadPluginSymbol(path, symbol)
		if err != nil {
			return nil, &ResolutionError{Ref: ref, Err: err}
		}
		return fn, nil
	}

	return nil, &ResolutionError{
		Ref: ref,
		Err: fmt.Errorf("no registered implementation or plugin found for namespace %s", namespace),
	}
}

// loadPluginSymbol opens the plugin file and looks up the named function.
// Plugin symbols must be exported, so the lookup also tries the
// capitalized form of the symbol name.
func loadPluginSymbol(path, symbol string) (any, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open plugin %s: %w", path, err)
	}

	sym, err := p.Lookup(symbol)
	if err != nil {
		exported := exportedName(symbol)
		if exported == symbol {
			return nil, fmt.Errorf("symbol %s not found in plugin %s: %w", symbol, path, err)
		}
		sym, err = p.Lookup(exported)
		if err != nil {
			return nil, fmt.Errorf("symbol %s not found in plugin %s: %w", symbol, path, err)
		}
	}

	v := reflect.ValueOf(sym)
	// plugin.Lookup returns a pointer for package-level variables
	if v.Kind() == reflect.Ptr && v.Elem().Kind() == reflect.Func {
		v = v.Elem()
	}
	if v.Kind() != reflect.Func {
		return nil, fmt.Errorf("symbol %s in plugin %s is not a function", symbol, path)
	}
	return v.Interface(), nil
}

func exportedName(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
