package strata

// Well-known layer names, weakest to strongest.
const (
	LayerDefaults         = "defaults"
	LayerSharedDefinition = "shared-definition"
	LayerServerLoaded     = "server-loaded"
	LayerUserEdit         = "user-edit"
	LayerOverride         = "override"
)

const (
	// Recommended priorities for the well-known layers. Higher numbers win.
	ScopePriorityDefaults         = 100
	ScopePrioritySharedDefinition = 200
	ScopePriorityServerLoaded     = 300
	ScopePriorityUserEdit         = 400
	ScopePriorityOverride         = 500
)

// WellKnownLayers returns the canonical five-layer order (defaults →
// shared-definition → server-loaded → user-edit → override).
func WellKnownLayers() []Scope {
	return []Scope{
		NewScope(LayerDefaults, ScopePriorityDefaults, WithScopeLabel("Defaults")),
		NewScope(LayerSharedDefinition, ScopePrioritySharedDefinition, WithScopeLabel("Shared Definition")),
		NewScope(LayerServerLoaded, ScopePriorityServerLoaded, WithScopeLabel("Server Loaded")),
		NewScope(LayerUserEdit, ScopePriorityUserEdit, WithScopeLabel("User Edit")),
		NewScope(LayerOverride, ScopePriorityOverride, WithScopeLabel("Override")),
	}
}

// RegisterWellKnownLayers installs WellKnownLayers into o.
func RegisterWellKnownLayers(o *Ordering) error {
	for _, scope := range WellKnownLayers() {
		if err := o.Register(scope); err != nil {
			return err
		}
	}
	return nil
}
