package strata

import (
	"fmt"
	"strings"

	celgo "github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// CELEvaluatorOption configures the CEL evaluator.
type CELEvaluatorOption func(*celEvaluator)

// CELWithProgramCache wires a ProgramCache into the CEL evaluator.
func CELWithProgramCache(cache ProgramCache) CELEvaluatorOption {
	return func(e *celEvaluator) {
		e.cache = cache
	}
}

// CELWithFunctionRegistry wires a FunctionRegistry into the CEL evaluator.
// Functions are reachable through call("name", args...).
func CELWithFunctionRegistry(registry *FunctionRegistry) CELEvaluatorOption {
	return func(e *celEvaluator) {
		if registry == nil {
			return
		}
		e.registry = registry.Clone()
	}
}

type celProgram struct {
	env     *celgo.Env
	program celgo.Program
}

type celEvaluator struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// NewCELEvaluator constructs an Evaluator backed by cel-go. CEL type-checks
// expressions, so the declared variables follow the snapshot keys and the
// compiled program cache is keyed by both.
func NewCELEvaluator(opts ...CELEvaluatorOption) Evaluator {
	e := &celEvaluator{}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

func (e *celEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	if expression == "" {
		return nil, wrapEvaluatorError("cel", fmt.Errorf("expression must not be empty"))
	}
	ctx = ctx.withDefaults()
	program, err := e.loadOrCompile(expression, ctx.Snapshot)
	if err != nil {
		return nil, wrapEvaluationError("cel", expression, err)
	}
	out, _, err := program.program.Eval(e.activation(ctx))
	if err != nil {
		return nil, wrapEvaluationError("cel", expression, err)
	}
	return out.Value(), nil
}

func (e *celEvaluator) Compile(expression string, _ ...CompileOption) (CompiledRule, error) {
	if expression == "" {
		return nil, wrapEvaluatorError("cel", fmt.Errorf("expression must not be empty"))
	}
	return &celCompiledRule{evaluator: e, expression: expression}, nil
}

func (e *celEvaluator) loadOrCompile(expression string, snapshot map[string]any) (*celProgram, error) {
	key := cacheKey("cel", celVariableSignature(snapshot)+"|"+expression)
	if e.cache != nil {
		if cached, ok := e.cache.Get(key); ok {
			if program, ok := cached.(*celProgram); ok {
				return program, nil
			}
		}
	}

	env, err := e.buildEnv(snapshot)
	if err != nil {
		return nil, err
	}
	ast, issues := env.Parse(expression)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	checked, issues := env.Check(ast)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	prg, err := env.Program(checked)
	if err != nil {
		return nil, err
	}

	bundle := &celProgram{env: env, program: prg}
	if e.cache != nil {
		e.cache.Set(key, bundle)
	}
	return bundle, nil
}

func (e *celEvaluator) buildEnv(snapshot map[string]any) (*celgo.Env, error) {
	opts := []celgo.EnvOption{
		celgo.Variable("now", celgo.TimestampType),
		celgo.Variable("args", celgo.DynType),
		celgo.Variable("entity", celgo.DynType),
	}
	if e.registry != nil {
		opts = append(opts, celgo.Function("call", callOverloads(e.callBinding())...))
	}
	for _, key := range sortedKeys(snapshot) {
		opts = append(opts, celgo.Variable(key, celgo.DynType))
	}
	return celgo.NewEnv(opts...)
}

func (e *celEvaluator) activation(ctx RuleContext) map[string]any {
	activation := make(map[string]any, len(ctx.Snapshot)+3)
	for key, value := range ctx.Snapshot {
		activation[key] = value
	}
	activation["now"] = ctx.timestamp()
	activation["args"] = ctx.Args
	if ctx.Entity != nil {
		activation["entity"] = ctx.Entity
	} else {
		activation["entity"] = map[string]any{}
	}
	return activation
}

type celCompiledRule struct {
	evaluator  *celEvaluator
	expression string
}

func (r *celCompiledRule) Evaluate(ctx RuleContext) (any, error) {
	if r.evaluator == nil {
		return nil, wrapEvaluatorError("cel", fmt.Errorf("compiled rule missing evaluator"))
	}
	return r.evaluator.Evaluate(ctx, r.expression)
}

func celVariableSignature(snapshot map[string]any) string {
	return strings.Join(sortedKeys(snapshot), ",")
}

// callOverloads declares call(name, ...) for up to three arguments.
func callOverloads(binding func(values ...ref.Val) ref.Val) []celgo.FunctionOpt {
	overloads := make([]celgo.FunctionOpt, 0, 4)
	for arity := 0; arity <= 3; arity++ {
		argTypes := []*celgo.Type{celgo.StringType}
		for i := 0; i < arity; i++ {
			argTypes = append(argTypes, celgo.DynType)
		}
		overloads = append(overloads, celgo.Overload(
			fmt.Sprintf("strata_call_%d", arity),
			argTypes,
			celgo.DynType,
			celgo.FunctionBinding(binding),
		))
	}
	return overloads
}

func (e *celEvaluator) callBinding() func(values ...ref.Val) ref.Val {
	return func(values ...ref.Val) ref.Val {
		if e.registry == nil {
			return types.NewErr("strata: function registry not configured")
		}
		if len(values) == 0 {
			return types.NewErr("strata: call requires function name")
		}
		name, ok := values[0].Value().(string)
		if !ok {
			return types.NewErr("strata: call name must be string")
		}
		args := make([]any, 0, len(values)-1)
		for _, val := range values[1:] {
			args = append(args, val.Value())
		}
		result, err := e.registry.Call(name, args...)
		if err != nil {
			return types.NewErr("%s", err.Error())
		}
		if result == nil {
			return types.NullValue
		}
		return types.DefaultTypeAdapter.NativeToValue(result)
	}
}
