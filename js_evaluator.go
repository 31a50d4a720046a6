//go:build js_eval

package strata

import (
	"fmt"
	"time"

	"github.com/dop251/goja"
)

type jsEvaluator struct {
	cache    ProgramCache
	registry *FunctionRegistry
	timeout  time.Duration
}

// NewJSEvaluator constructs an Evaluator backed by goja. Each evaluation
// runs in a fresh runtime with the snapshot bound as globals.
func NewJSEvaluator(opts ...JSEvaluatorOption) Evaluator {
	cfg := applyJSEvaluatorOptions(opts)
	return &jsEvaluator{
		cache:    cfg.cache,
		registry: cfg.registry,
		timeout:  cfg.timeout,
	}
}

func (e *jsEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	if expression == "" {
		return nil, wrapEvaluatorError("js", fmt.Errorf("expression must not be empty"))
	}
	program, err := e.loadOrCompile(expression)
	if err != nil {
		return nil, wrapEvaluationError("js", expression, err)
	}
	value, err := e.run(ctx.withDefaults(), program)
	if err != nil {
		return nil, wrapEvaluationError("js", expression, err)
	}
	return value, nil
}

func (e *jsEvaluator) Compile(expression string, _ ...CompileOption) (CompiledRule, error) {
	if expression == "" {
		return nil, wrapEvaluatorError("js", fmt.Errorf("expression must not be empty"))
	}
	program, err := e.loadOrCompile(expression)
	if err != nil {
		return nil, wrapEvaluationError("js", expression, err)
	}
	return &jsCompiledRule{evaluator: e, expression: expression, program: program}, nil
}

func (e *jsEvaluator) loadOrCompile(expression string) (*goja.Program, error) {
	key := cacheKey("js", expression)
	if e.cache != nil {
		if cached, ok := e.cache.Get(key); ok {
			if program, ok := cached.(*goja.Program); ok {
				return program, nil
			}
		}
	}
	program, err := goja.Compile("", wrapJSExpression(expression), true)
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		e.cache.Set(key, program)
	}
	return program, nil
}

func (e *jsEvaluator) run(ctx RuleContext, program *goja.Program) (any, error) {
	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
	if err := e.bind(vm, ctx); err != nil {
		return nil, err
	}
	if e.timeout > 0 {
		timer := time.AfterFunc(e.timeout, func() {
			vm.Interrupt("timeout")
		})
		defer timer.Stop()
	}
	value, err := vm.RunProgram(program)
	if err != nil {
		return nil, err
	}
	if goja.IsUndefined(value) || goja.IsNull(value) {
		return nil, nil
	}
	return value.Export(), nil
}

func (e *jsEvaluator) bind(vm *goja.Runtime, ctx RuleContext) error {
	for key, value := range ctx.Snapshot {
		if err := vm.Set(key, value); err != nil {
			return err
		}
	}
	globals := map[string]any{
		"now":    ctx.timestamp(),
		"args":   ctx.Args,
		"entity": ctx.Entity,
	}
	for key, value := range globals {
		if err := vm.Set(key, value); err != nil {
			return err
		}
	}
	if e.registry == nil {
		return nil
	}
	if err := vm.Set("call", func(name string, arguments ...any) (any, error) {
		return e.registry.Call(name, arguments...)
	}); err != nil {
		return err
	}
	for _, name := range e.registry.Names() {
		fn := name
		if err := vm.Set(fn, func(arguments ...any) (any, error) {
			return e.registry.Call(fn, arguments...)
		}); err != nil {
			return err
		}
	}
	return nil
}

func wrapJSExpression(expression string) string {
	return fmt.Sprintf("(function(){ return (%s); })()", expression)
}

type jsCompiledRule struct {
	evaluator  *jsEvaluator
	expression string
	program    *goja.Program
}

func (r *jsCompiledRule) Evaluate(ctx RuleContext) (any, error) {
	if r.evaluator == nil {
		return nil, wrapEvaluatorError("js", fmt.Errorf("compiled rule missing evaluator"))
	}
	value, err := r.evaluator.run(ctx.withDefaults(), r.program)
	if err != nil {
		return nil, wrapEvaluationError("js", r.expression, err)
	}
	return value, nil
}

// JSEvaluatorAvailable reports whether the binary was built with goja.
func JSEvaluatorAvailable() bool {
	return true
}
