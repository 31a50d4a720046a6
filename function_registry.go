package strata

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Function represents a callable registered against evaluators.
type Function func(args ...any) (any, error)

// FunctionRegistry stores custom functions keyed by name.
type FunctionRegistry struct {
	mu        sync.RWMutex
	functions map[string]Function
}

// NewFunctionRegistry constructs an empty registry.
func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{
		functions: make(map[string]Function),
	}
}

// Register stores fn under name guarding against duplicates.
func (r *FunctionRegistry) Register(name string, fn Function) error {
	if fn == nil {
		return fmt.Errorf("strata: function %q is nil", name)
	}
	if name == "" {
		return fmt.Errorf("strata: function name must not be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.functions == nil {
		r.functions = make(map[string]Function)
	}
	key := strings.ToLower(name)
	if _, exists := r.functions[key]; exists {
		return fmt.Errorf("strata: function %q already registered", name)
	}
	r.functions[key] = fn
	return nil
}

// Clone returns a shallow copy of the registry.
func (r *FunctionRegistry) Clone() *FunctionRegistry {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	clone := &FunctionRegistry{
		functions: make(map[string]Function, len(r.functions)),
	}
	for name, fn := range r.functions {
		clone.functions[name] = fn
	}
	return clone
}

// Call executes the function registered for name.
func (r *FunctionRegistry) Call(name string, args ...any) (any, error) {
	if r == nil {
		return nil, fmt.Errorf("strata: function registry is nil")
	}
	r.mu.RLock()
	fn := r.functions[strings.ToLower(name)]
	r.mu.RUnlock()
	if fn == nil {
		return nil, fmt.Errorf("strata: function %q not registered", name)
	}
	return fn(args...)
}

// Names returns registered function names sorted alphabetically.
func (r *FunctionRegistry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.functions))
	for name := range r.functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether a function is registered under name.
func (r *FunctionRegistry) Has(name string) bool {
	if r == nil {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.functions[strings.ToLower(name)]
	return ok
}

// NewCatalogFunctions returns a registry preloaded with helpers commonly used
// by derived defaults: coalesce, join, lower and upper.
func NewCatalogFunctions() *FunctionRegistry {
	r := NewFunctionRegistry()
	_ = r.Register("coalesce", func(args ...any) (any, error) {
		for _, arg := range args {
			if arg == nil {
				continue
			}
			if s, ok := arg.(string); ok && s == "" {
				continue
			}
			return arg, nil
		}
		return nil, nil
	})
	_ = r.Register("join", func(args ...any) (any, error) {
		if len(args) == 0 {
			return "", nil
		}
		sep, ok := args[0].(string)
		if !ok {
			return nil, fmt.Errorf("join: separator must be a string")
		}
		parts := make([]string, 0, len(args)-1)
		for _, arg := range args[1:] {
			if arg == nil {
				continue
			}
			if s := fmt.Sprint(arg); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, sep), nil
	})
	_ = r.Register("lower", stringFunction("lower", strings.ToLower))
	_ = r.Register("upper", stringFunction("upper", strings.ToUpper))
	return r
}

func stringFunction(name string, fn func(string) string) Function {
	return func(args ...any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("%s: expected 1 argument, got %d", name, len(args))
		}
		s, ok := args[0].(string)
		if !ok {
			return nil, fmt.Errorf("%s: expected string argument", name)
		}
		return fn(s), nil
	}
}
