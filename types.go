package strata

import (
	"time"

	"github.com/goliatone/go-strata/pkg/activity"
)

// SchemaFormat identifies the representation a schema document encodes.
type SchemaFormat string

const (
	// SchemaFormatDescriptors represents the flattened field descriptors.
	SchemaFormatDescriptors SchemaFormat = "descriptors"
	// SchemaFormatOpenAPI represents OpenAPI-compatible JSON Schema documents.
	SchemaFormatOpenAPI SchemaFormat = "openapi"
)

// SchemaDocument encapsulates a generated schema output alongside its format
// identifier. Implementations must ensure Document is JSON-serialisable.
type SchemaDocument struct {
	Format   SchemaFormat
	Document any
	Scopes   []SchemaScope
}

// SchemaScope describes a layer that can contribute values to the documented
// entity types.
type SchemaScope struct {
	Name     string `json:"name"`
	Label    string `json:"label,omitempty"`
	Priority int    `json:"priority"`
}

// SchemaGenerator transforms entity types into a schema document. All
// implementations MUST be safe for concurrent use.
type SchemaGenerator interface {
	Generate(types ...*EntityType) (SchemaDocument, error)
}

// RuleContext carries inputs needed when evaluating a derived default.
type RuleContext struct {
	Snapshot map[string]any
	Entity   map[string]any
	Now      *time.Time
	Args     map[string]any
}

func (ctx RuleContext) withDefaultNow() RuleContext {
	if ctx.Now != nil {
		return ctx
	}
	now := time.Now()
	ctx.Now = &now
	return ctx
}

func (ctx RuleContext) timestamp() time.Time {
	ctx = ctx.withDefaultNow()
	return *ctx.Now
}

func (ctx RuleContext) withDefaultMaps() RuleContext {
	if ctx.Args == nil {
		ctx.Args = map[string]any{}
	}
	if ctx.Snapshot == nil {
		ctx.Snapshot = map[string]any{}
	}
	return ctx
}

func (ctx RuleContext) withDefaults() RuleContext {
	return ctx.withDefaultNow().withDefaultMaps()
}

// Evaluator executes expressions against a rule context.
type Evaluator interface {
	Evaluate(ctx RuleContext, expr string) (any, error)
	Compile(expr string, opts ...CompileOption) (CompiledRule, error)
}

// CompiledRule represents a reusable expression program.
type CompiledRule interface {
	Evaluate(ctx RuleContext) (any, error)
}

// CompileOption configures evaluator compile behaviour.
type CompileOption interface {
	applyCompileOption(*compileConfig)
}

type compileConfig struct{}

// CatalogOption configures a Catalog.
type CatalogOption func(*catalogConfig)

type catalogConfig struct {
	registry      *Registry
	ordering      *Ordering
	evaluator     Evaluator
	programCache  ProgramCache
	functions     *FunctionRegistry
	logger        Logger
	activityHooks activity.Hooks
	channel       string
	actor         string
}

func applyCatalogOptions(opts []CatalogOption) catalogConfig {
	cfg := catalogConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.registry == nil {
		cfg.registry = DefaultRegistry()
	}
	if cfg.ordering == nil {
		cfg.ordering = DefaultOrdering()
	}
	if cfg.logger == nil {
		cfg.logger = noopLogger{}
	}
	return cfg
}

// WithRegistry selects the descriptor registry used by the catalog.
func WithRegistry(registry *Registry) CatalogOption {
	return func(cfg *catalogConfig) {
		cfg.registry = registry
	}
}

// WithOrdering selects the layer ordering used by the catalog.
func WithOrdering(ordering *Ordering) CatalogOption {
	return func(cfg *catalogConfig) {
		cfg.ordering = ordering
	}
}

// WithEvaluator configures the evaluator used for derived defaults.
func WithEvaluator(e Evaluator) CatalogOption {
	return func(cfg *catalogConfig) {
		cfg.evaluator = e
	}
}

// WithProgramCache registers a compiled program cache for the default
// evaluator.
func WithProgramCache(cache ProgramCache) CatalogOption {
	return func(cfg *catalogConfig) {
		cfg.programCache = cache
	}
}

// WithFunctionRegistry exposes custom functions to the default evaluator.
func WithFunctionRegistry(registry *FunctionRegistry) CatalogOption {
	return func(cfg *catalogConfig) {
		if registry == nil {
			return
		}
		cfg.functions = registry.Clone()
	}
}

// WithCustomFunction registers fn under name for the default evaluator.
func WithCustomFunction(name string, fn Function) CatalogOption {
	return func(cfg *catalogConfig) {
		if cfg.functions == nil {
			cfg.functions = NewFunctionRegistry()
		}
		_ = cfg.functions.Register(name, fn)
	}
}

// WithLogger attaches a logger to the catalog.
func WithLogger(logger Logger) CatalogOption {
	return func(cfg *catalogConfig) {
		if logger == nil {
			cfg.logger = noopLogger{}
			return
		}
		cfg.logger = logger
	}
}

// WithActivityHooks attaches activity hooks notified of catalog mutations.
// Hooks are cloned and nil entries dropped.
func WithActivityHooks(hooks activity.Hooks) CatalogOption {
	normalized := cloneActivityHooks(hooks)
	return func(cfg *catalogConfig) {
		cfg.activityHooks = normalized
	}
}

// WithActivityChannel overrides the default activity channel.
func WithActivityChannel(channel string) CatalogOption {
	return func(cfg *catalogConfig) {
		cfg.channel = channel
	}
}

// WithActivityActor stamps actor on every activity event the catalog emits.
func WithActivityActor(actor string) CatalogOption {
	return func(cfg *catalogConfig) {
		cfg.actor = actor
	}
}

func cloneActivityHooks(hooks activity.Hooks) activity.Hooks {
	if len(hooks) == 0 {
		return nil
	}
	normalized := make([]activity.ActivityHook, 0, len(hooks))
	for _, hook := range hooks {
		if hook == nil {
			continue
		}
		normalized = append(normalized, hook)
	}
	if len(normalized) == 0 {
		return nil
	}
	return activity.Hooks(normalized)
}
