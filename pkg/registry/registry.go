// Package registry provides a ScriptRunner backed by named Go functions.
//
// Script blocks reference server-side behavior by name in their code
// field; the registry resolves that name to a registered function and
// invokes it with the session variables. This keeps arbitrary code out
// of the runtime while still letting bots call into the host program.
package registry

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
)

// Func is one callable script. It receives the session variables as a
// read-only snapshot and returns a result value stored in the block's
// bound variable.
type Func func(ctx context.Context, vars map[string]any) (any, error)

// Registry resolves script block code to registered functions.
// It implements ports.ScriptRunner.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Func

	evalFallback bool
}

// Option configures a Registry.
type Option func(*Registry)

// WithExpressionFallback makes Run evaluate unregistered code as an
// expression against the session variables instead of failing.
func WithExpressionFallback() Option {
	return func(r *Registry) { r.evalFallback = true }
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{funcs: make(map[string]Func)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register binds a function to a name. Registering an existing name
// overwrites the previous binding.
func (r *Registry) Register(name string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[name] = fn
}

// Names returns the registered function names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	return names
}

// Run resolves code as a function name and invokes it. With the
// expression fallback enabled, unknown names are evaluated as
// expressions instead.
func (r *Registry) Run(ctx context.Context, code string, vars map[string]any) (any, error) {
	name := strings.TrimSpace(code)

	r.mu.RLock()
	fn, ok := r.funcs[name]
	r.mu.RUnlock()

	if ok {
		return fn(ctx, vars)
	}

	if r.evalFallback {
		out, err := expr.Eval(code, vars)
		if err != nil {
			return nil, fmt.Errorf("failed to evaluate script: %w", err)
		}
		return out, nil
	}

	return nil, fmt.Errorf("unknown script function: %q", name)
}
