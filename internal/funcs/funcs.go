// Package funcs maps dotted implementation references (eg- "mathlib.add")
// to Go callables.
//
// Go has no runtime import of arbitrary module paths, so the resolution
// table is populated explicitly at startup by the embedding program.
// Directory-based discovery of user-supplied implementations (Go plugins)
// is available only behind an explicit plugin directory opt-in.
package funcs

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// Registry is a table of callables keyed by their dotted reference.
// It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	table map[string]any
}

// NewRegistry creates an empty function registry.
func NewRegistry() *Registry {
	return &Registry{table: make(map[string]any)}
}

// Register adds a callable under the given dotted reference.
// fn must be a Go function value. Registering under an already-used
// reference replaces the previous entry.
func (r *Registry) Register(ref string, fn any) error {
	if ref == "" {
		return fmt.Errorf("implementation reference must not be empty")
	}
	if fn == nil || reflect.TypeOf(fn).Kind() != reflect.Func {
		return fmt.Errorf("implementation %s must be a function, got %T", ref, fn)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.table[ref] = fn
	return nil
}

// MustRegister is like Register but panics on error.
// Intended for use in package init blocks of embedding programs.
func (r *Registry) MustRegister(ref string, fn any) {
	if err := r.Register(ref, fn); err != nil {
		panic(err)
	}
}

func (r *Registry) lookup(ref string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.table[ref]
	return fn, ok
}

// Default is the process-wide function registry.
// Embedding programs register their tool implementations here, typically
// from an init block, before the server starts.
var Default = NewRegistry()

// Register adds a callable to the Default registry.
func Register(ref string, fn any) error { return Default.Register(ref, fn) }

// MustRegister adds a callable to the Default registry, panicking on error.
func MustRegister(ref string, fn any) { Default.MustRegister(ref, fn) }

// splitRef splits a dotted reference into (namespace, symbol) on the
// last separator. A reference without a separator has an empty namespace.
func splitRef(ref string) (string, string) {
	i := strings.LastIndex(ref, ".")
	if i < 0 {
		return "", ref
	}
	return ref[:i], ref[i+1:]
}
