package strata

import (
	"fmt"
	"time"

	"github.com/goliatone/go-strata/layering"
)

// defaultFor returns the value a fold of d starts from. When d declares a
// derived default the expression is evaluated over the entity's resolved
// non-derived properties; a failing expression yields a diagnostic and the
// static default.
func (e *Entity) defaultFor(d PropertyDescriptor) (any, *Diagnostic, error) {
	static := staticDefault(d)
	if d.DerivedDefault == "" {
		return static, nil, nil
	}

	snapshot, err := e.baseSnapshot()
	if err != nil {
		return nil, nil, err
	}

	fail := func(err error) (any, *Diagnostic, error) {
		evalErr, ok := wrapEvaluationError("", d.DerivedDefault, err).(*EvaluationError)
		if !ok {
			evalErr = &EvaluationError{Expr: d.DerivedDefault, Err: err}
		}
		evalErr.EntityID = e.id
		evalErr.Property = d.ID
		return static, &Diagnostic{EntityID: e.id, Property: d.ID, Err: evalErr, At: time.Now()}, nil
	}

	evaluator := e.catalog.derivedEvaluator()
	start := time.Now()
	result, err := evaluator.Evaluate(RuleContext{
		Snapshot: snapshot,
		Entity:   map[string]any{"id": e.id, "type": e.TypeName()},
	}, d.DerivedDefault)
	if err != nil {
		return fail(err)
	}
	if result == nil {
		return static, nil, nil
	}
	normalized, err := layering.Normalize(result)
	if err != nil {
		return fail(err)
	}
	if _, err := d.Merge.Merge(nil, normalized); err != nil {
		return fail(fmt.Errorf("derived value rejected by %s: %w", d.Merge.Name(), err))
	}
	e.catalog.cfg.logger.Log(LogEvent{
		Level:    LogLevelDebug,
		Message:  "derived default evaluated",
		EntityID: e.id,
		Property: d.ID,
		Expr:     d.DerivedDefault,
		Duration: time.Since(start),
	})
	return normalized, nil, nil
}

// baseSnapshot resolves every property without a derived default. Derived
// defaults only see these, which keeps evaluation free of cycles.
func (e *Entity) baseSnapshot() (map[string]any, error) {
	snapshot := map[string]any{}
	for _, d := range e.typ.Descriptors() {
		if d.DerivedDefault != "" {
			continue
		}
		value, err := e.Resolve(d.ID)
		if err != nil {
			return nil, err
		}
		snapshot[d.ID] = value
	}
	return snapshot, nil
}

// derivedEvaluator returns the configured evaluator, building the default
// expr evaluator on first use.
func (c *Catalog) derivedEvaluator() Evaluator {
	if c.evaluator != nil {
		return c.evaluator
	}
	if c.cfg.evaluator != nil {
		c.evaluator = c.cfg.evaluator
		return c.evaluator
	}
	functions := c.cfg.functions
	if functions == nil {
		functions = NewCatalogFunctions()
	}
	cache := c.cfg.programCache
	if cache == nil {
		cache = NewMemoryProgramCache(DefaultProgramExpiration)
	}
	c.evaluator = NewExprEvaluator(
		ExprWithProgramCache(cache),
		ExprWithFunctionRegistry(functions),
	)
	return c.evaluator
}
