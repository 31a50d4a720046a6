package strata

// Process-wide registries populated during application bootstrap and read
// only afterwards. Tests call ResetDefaults between cases.
var (
	defaultRegistry = NewRegistry()
	defaultOrdering = &Ordering{}
)

// DefaultRegistry returns the process-wide descriptor registry.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// DefaultOrdering returns the process-wide layer ordering.
func DefaultOrdering() *Ordering {
	return defaultOrdering
}

// Register adds d to entityType in the default registry.
func Register(entityType string, d PropertyDescriptor) error {
	return defaultRegistry.Register(entityType, d)
}

// DeclareEntityType composes sets into entityType in the default registry.
func DeclareEntityType(name string, sets ...DescriptorSet) (*EntityType, error) {
	return defaultRegistry.DeclareEntityType(name, sets...)
}

// RegisterLayer adds scope to the default ordering.
func RegisterLayer(scope Scope) error {
	return defaultOrdering.Register(scope)
}

// ResetDefaults clears the default registry and ordering.
func ResetDefaults() {
	defaultRegistry.Reset()
	defaultOrdering.Reset()
}

// RegisterTransientLayer registers an ad-hoc layer above every layer in the
// default ordering.
func RegisterTransientLayer(name string, opts ...ScopeOption) (Scope, error) {
	return defaultOrdering.RegisterTransient(name, opts...)
}
