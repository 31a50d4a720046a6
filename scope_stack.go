package strata

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Scope models a named precedence bucket for layers (defaults, user-edit,
// etc.). Higher priority values represent stronger layers.
type Scope struct {
	Name     string         `json:"name"`
	Label    string         `json:"label,omitempty"`
	Priority int            `json:"priority"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ScopeOption configures metadata on Scope creation.
type ScopeOption func(*scopeConfig)

type scopeConfig struct {
	label    string
	metadata map[string]any
}

// WithScopeLabel sets a human-friendly label on the scope.
func WithScopeLabel(label string) ScopeOption {
	return func(cfg *scopeConfig) {
		cfg.label = label
	}
}

// WithScopeMetadata attaches arbitrary metadata to the scope. The map is copied
// so the resulting Scope remains immutable even if the caller mutates their
// reference.
func WithScopeMetadata(metadata map[string]any) ScopeOption {
	return func(cfg *scopeConfig) {
		if len(metadata) == 0 {
			return
		}
		cfg.metadata = copyMetadata(metadata)
	}
}

// NewScope builds a Scope with the supplied configuration. Validation is
// deferred to Ordering registration.
func NewScope(name string, priority int, opts ...ScopeOption) Scope {
	cfg := scopeConfig{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}
	return Scope{
		Name:     name,
		Label:    cfg.label,
		Priority: priority,
		Metadata: copyMetadata(cfg.metadata),
	}
}

// clone returns a copy of s, ensuring Metadata is detached from the original.
func (s Scope) clone() Scope {
	return Scope{
		Name:     s.Name,
		Label:    s.Label,
		Priority: s.Priority,
		Metadata: copyMetadata(s.Metadata),
	}
}

func (s Scope) isZero() bool {
	return s.Name == "" && s.Label == "" && s.Priority == 0 && len(s.Metadata) == 0
}

var (
	// ErrScopeNameRequired indicates a missing layer name.
	ErrScopeNameRequired = errors.New("scope: name must be provided")
	// ErrDuplicateScopeName indicates a layer name was registered twice with
	// different priorities.
	ErrDuplicateScopeName = errors.New("scope: names must be unique")
	// ErrPriorityOrder indicates two layer names share a priority, which would
	// leave their relative precedence undefined.
	ErrPriorityOrder = errors.New("scope: priorities must be strictly ordered")
)

// Ordering is the total precedence order over layer names. Every layer name
// written into an entity must be registered here first. Registration is
// append-only during normal operation; Reset exists for test harnesses.
type Ordering struct {
	mu         sync.RWMutex
	scopes     map[string]Scope
	byPriority map[int]string
	version    uint64
}

// NewOrdering builds an ordering and registers scopes in the given order.
func NewOrdering(scopes ...Scope) (*Ordering, error) {
	o := &Ordering{}
	for _, scope := range scopes {
		if err := o.Register(scope); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// Register adds scope to the ordering. Registering the same name with the same
// priority again is a no-op so subsystems can register their layer at load
// time without coordinating.
func (o *Ordering) Register(scope Scope) error {
	if scope.Name == "" {
		return ErrScopeNameRequired
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.init()

	if existing, ok := o.scopes[scope.Name]; ok {
		if existing.Priority == scope.Priority {
			return nil
		}
		return fmt.Errorf("%w: %s registered with priority %d, got %d", ErrDuplicateScopeName, scope.Name, existing.Priority, scope.Priority)
	}
	if owner, ok := o.byPriority[scope.Priority]; ok {
		return fmt.Errorf("%w: %d already used by %s", ErrPriorityOrder, scope.Priority, owner)
	}
	o.scopes[scope.Name] = scope.clone()
	o.byPriority[scope.Priority] = scope.Name
	o.version++
	return nil
}

// MustRegister panics when Register fails. Intended for package init blocks.
func (o *Ordering) MustRegister(scope Scope) {
	if err := o.Register(scope); err != nil {
		panic(err)
	}
}

// RegisterTransient registers an ad-hoc layer (per-clone or split view
// overrides) directly above the current strongest layer. Calling it again for
// an existing name returns the existing scope.
func (o *Ordering) RegisterTransient(name string, opts ...ScopeOption) (Scope, error) {
	if name == "" {
		return Scope{}, ErrScopeNameRequired
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.init()

	if existing, ok := o.scopes[name]; ok {
		return existing.clone(), nil
	}
	priority := 1
	for p := range o.byPriority {
		if p >= priority {
			priority = p + 1
		}
	}
	scope := NewScope(name, priority, opts...)
	o.scopes[name] = scope
	o.byPriority[priority] = name
	o.version++
	return scope.clone(), nil
}

// Lookup returns the registered scope for name.
func (o *Ordering) Lookup(name string) (Scope, bool) {
	if o == nil {
		return Scope{}, false
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	scope, ok := o.scopes[name]
	if !ok {
		return Scope{}, false
	}
	return scope.clone(), true
}

// Has reports whether name is registered.
func (o *Ordering) Has(name string) bool {
	if o == nil {
		return false
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	_, ok := o.scopes[name]
	return ok
}

// Scopes returns every registered scope, weakest first.
func (o *Ordering) Scopes() []Scope {
	if o == nil {
		return nil
	}
	o.mu.RLock()
	out := make([]Scope, 0, len(o.scopes))
	for _, scope := range o.scopes {
		out = append(out, scope.clone())
	}
	o.mu.RUnlock()
	sortWeakestFirst(out)
	return out
}

// Sort returns the scopes for names ordered weakest first. Any unregistered
// name fails the whole call.
func (o *Ordering) Sort(names []string) ([]Scope, error) {
	if len(names) == 0 {
		return nil, nil
	}
	out := make([]Scope, 0, len(names))
	for _, name := range names {
		scope, ok := o.Lookup(name)
		if !ok {
			return nil, &UnregisteredLayerError{Layer: name}
		}
		out = append(out, scope)
	}
	sortWeakestFirst(out)
	return out, nil
}

// Version changes every time a scope is registered or the ordering is reset.
// Resolved values cached against an older version are recomputed.
func (o *Ordering) Version() uint64 {
	if o == nil {
		return 0
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.version
}

// Reset drops every registration. Only meant for test setup and teardown.
func (o *Ordering) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.scopes = map[string]Scope{}
	o.byPriority = map[int]string{}
	o.version++
}

func (o *Ordering) init() {
	if o.scopes == nil {
		o.scopes = map[string]Scope{}
	}
	if o.byPriority == nil {
		o.byPriority = map[int]string{}
	}
}

func sortWeakestFirst(scopes []Scope) {
	sort.Slice(scopes, func(i, j int) bool {
		return scopes[i].Priority < scopes[j].Priority
	})
}

func copyMetadata(origin map[string]any) map[string]any {
	if len(origin) == 0 {
		return nil
	}
	out := make(map[string]any, len(origin))
	for key, value := range origin {
		out[key] = value
	}
	return out
}
