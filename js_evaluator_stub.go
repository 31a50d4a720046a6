//go:build !js_eval

package strata

import "errors"

var errJSUnavailable = errors.New("javascript evaluator requires the js_eval build tag")

type jsUnavailable struct{}

// NewJSEvaluator returns an evaluator that always fails without the js_eval
// build tag. Derived defaults using it fall back to their static default.
func NewJSEvaluator(opts ...JSEvaluatorOption) Evaluator {
	_ = applyJSEvaluatorOptions(opts)
	return jsUnavailable{}
}

func (jsUnavailable) Evaluate(_ RuleContext, expression string) (any, error) {
	return nil, wrapEvaluationError("js", expression, errJSUnavailable)
}

func (jsUnavailable) Compile(string, ...CompileOption) (CompiledRule, error) {
	return nil, wrapEvaluatorError("js", errJSUnavailable)
}

// JSEvaluatorAvailable reports whether the binary was built with goja.
func JSEvaluatorAvailable() bool {
	return false
}
