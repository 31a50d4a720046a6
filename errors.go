package strata

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrUnknownProperty marks lookups of a property id the entity type does
	// not declare.
	ErrUnknownProperty = errors.New("strata: unknown property")
	// ErrUnregisteredLayer marks writes or reads against a layer name the
	// Ordering does not know.
	ErrUnregisteredLayer = errors.New("strata: unregistered layer")
	// ErrInvalidMergeInput marks a merge strategy receiving a value of the
	// wrong shape.
	ErrInvalidMergeInput = errors.New("strata: invalid merge input")
	// ErrDescriptorConflict marks a second registration of a property id with
	// a different kind or merge strategy.
	ErrDescriptorConflict = errors.New("strata: descriptor conflict")
	// ErrInvalidDescriptor marks a descriptor that cannot be registered.
	ErrInvalidDescriptor = errors.New("strata: invalid descriptor")
	// ErrUnknownEntityType marks a reference to an undeclared entity type.
	ErrUnknownEntityType = errors.New("strata: unknown entity type")
	// ErrEntityExists marks an Add for an id already present (live or removed).
	ErrEntityExists = errors.New("strata: entity already exists")
	// ErrEntityNotFound marks catalog operations on an id in the wrong state.
	ErrEntityNotFound = errors.New("strata: entity not found")
	// ErrNotReferenceList marks reference resolution on a property whose kind
	// is not a reference list.
	ErrNotReferenceList = errors.New("strata: property is not a reference list")
)

// UnknownPropertyError reports a property id missing from an entity type's
// descriptor table. It is a wiring bug and is never recovered locally.
type UnknownPropertyError struct {
	EntityType string
	Property   string
}

func (e *UnknownPropertyError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("strata: unknown property %q for entity type %q", e.Property, e.EntityType)
}

// Is matches ErrUnknownProperty.
func (e *UnknownPropertyError) Is(target error) bool {
	return target == ErrUnknownProperty
}

// UnregisteredLayerError reports a layer name that was never registered with
// the Ordering.
type UnregisteredLayerError struct {
	Layer    string
	EntityID string
}

func (e *UnregisteredLayerError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.EntityID == "" {
		return fmt.Sprintf("strata: layer %q is not registered", e.Layer)
	}
	return fmt.Sprintf("strata: layer %q is not registered (entity=%s)", e.Layer, e.EntityID)
}

// Is matches ErrUnregisteredLayer.
func (e *UnregisteredLayerError) Is(target error) bool {
	return target == ErrUnregisteredLayer
}

// InvalidMergeInputError carries enough context to diagnose a malformed layer
// value. Resolution of the affected property falls back to its default.
type InvalidMergeInputError struct {
	EntityID string
	Property string
	Layer    string
	Strategy string
	Err      error
}

func (e *InvalidMergeInputError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("strata: invalid merge input entity=%s property=%s layer=%s strategy=%s: %v",
		e.EntityID, e.Property, e.Layer, e.Strategy, e.Err)
}

func (e *InvalidMergeInputError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches ErrInvalidMergeInput.
func (e *InvalidMergeInputError) Is(target error) bool {
	return target == ErrInvalidMergeInput
}

// EvaluationError captures evaluator metadata alongside the originating error.
type EvaluationError struct {
	Engine   string
	Expr     string
	EntityID string
	Property string
	Err      error
}

func (e *EvaluationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("strata: %s evaluator %s entity=%s property=%s: %v",
		e.Engine, describeExpression(e.Expr), e.EntityID, e.Property, e.Err)
}

func (e *EvaluationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func describeExpression(expr string) string {
	if expr == "" {
		return "expr=<empty>"
	}
	return fmt.Sprintf("expr=%q", expr)
}

func wrapEvaluatorError(engine string, err error) error {
	if err == nil {
		return nil
	}

	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		return err
	}

	if strings.HasPrefix(err.Error(), "strata:") {
		return err
	}
	return fmt.Errorf("strata: %s evaluator: %w", engine, err)
}

func wrapEvaluationError(engine, expr string, err error) error {
	if err == nil {
		return nil
	}

	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		if evalErr.Engine == "" {
			evalErr.Engine = engine
		}
		if evalErr.Expr == "" {
			evalErr.Expr = expr
		}
		return evalErr
	}

	return &EvaluationError{
		Engine: engine,
		Expr:   expr,
		Err:    err,
	}
}

// Diagnostic is a recoverable, per-property problem found during resolution.
// The shell aggregates these for user-visible reporting.
type Diagnostic struct {
	EntityID string
	Property string
	Layer    string
	Err      error
	At       time.Time
}

func (d Diagnostic) String() string {
	if d.Layer == "" {
		return fmt.Sprintf("%s.%s: %v", d.EntityID, d.Property, d.Err)
	}
	return fmt.Sprintf("%s.%s@%s: %v", d.EntityID, d.Property, d.Layer, d.Err)
}
