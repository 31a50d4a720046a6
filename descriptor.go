package strata

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/goliatone/go-strata/layering"
)

// Kind selects how a property's values are shaped.
type Kind int

const (
	KindPrimitive Kind = iota
	KindObject
	KindReferenceList
	KindObjectList
)

func (k Kind) String() string {
	switch k {
	case KindPrimitive:
		return "primitive"
	case KindObject:
		return "object"
	case KindReferenceList:
		return "referenceList"
	case KindObjectList:
		return "objectList"
	default:
		return "unknown"
	}
}

// PrimitiveType constrains primitive values.
type PrimitiveType string

const (
	TypeString  PrimitiveType = "string"
	TypeNumber  PrimitiveType = "number"
	TypeBoolean PrimitiveType = "boolean"
	TypeAny     PrimitiveType = "any"
)

// ValueKind is a property's semantic type.
type ValueKind struct {
	Kind      Kind
	Primitive PrimitiveType
	Fields    DescriptorSet
}

// Primitive declares a scalar property.
func Primitive(t PrimitiveType) ValueKind {
	if t == "" {
		t = TypeAny
	}
	return ValueKind{Kind: KindPrimitive, Primitive: t}
}

// Object declares a nested object whose fields are described by fields.
func Object(fields DescriptorSet) ValueKind {
	return ValueKind{Kind: KindObject, Fields: fields}
}

// ReferenceList declares an ordered list of entity references.
func ReferenceList() ValueKind {
	return ValueKind{Kind: KindReferenceList}
}

// ObjectList declares an ordered list of objects.
func ObjectList() ValueKind {
	return ValueKind{Kind: KindObjectList}
}

func (v ValueKind) String() string {
	switch v.Kind {
	case KindPrimitive:
		return fmt.Sprintf("primitive(%s)", v.Primitive)
	case KindObject:
		return fmt.Sprintf("object(%s)", strings.Join(v.Fields.IDs(), ","))
	default:
		return v.Kind.String()
	}
}

func (v ValueKind) equal(other ValueKind) bool {
	if v.Kind != other.Kind || v.Primitive != other.Primitive {
		return false
	}
	if v.Kind != KindObject {
		return true
	}
	if len(v.Fields.Descriptors) != len(other.Fields.Descriptors) {
		return false
	}
	for _, d := range v.Fields.Descriptors {
		o, ok := other.Fields.Lookup(d.ID)
		if !ok || !d.compatible(o) {
			return false
		}
	}
	return true
}

// PropertyDescriptor describes one named property of an entity type.
type PropertyDescriptor struct {
	ID          string
	DisplayName string
	Description string
	Kind        ValueKind
	Merge       MergeStrategy
	Default     any
	// DerivedDefault is an expression evaluated over the entity's other
	// resolved properties. When it succeeds its result replaces Default.
	DerivedDefault string
}

// DescriptorOption configures a descriptor built by the constructors below.
type DescriptorOption func(*PropertyDescriptor)

// WithDisplayName sets the human-facing name.
func WithDisplayName(name string) DescriptorOption {
	return func(d *PropertyDescriptor) {
		d.DisplayName = name
	}
}

// WithDescription sets the human-facing description.
func WithDescription(description string) DescriptorOption {
	return func(d *PropertyDescriptor) {
		d.Description = description
	}
}

// WithDefault sets the value returned when no layer defines the property.
func WithDefault(value any) DescriptorOption {
	return func(d *PropertyDescriptor) {
		d.Default = value
	}
}

// WithMerge replaces the kind's default merge strategy.
func WithMerge(strategy MergeStrategy) DescriptorOption {
	return func(d *PropertyDescriptor) {
		d.Merge = strategy
	}
}

// WithDerivedDefault sets an expression computing the default.
func WithDerivedDefault(expr string) DescriptorOption {
	return func(d *PropertyDescriptor) {
		d.DerivedDefault = expr
	}
}

// NewDescriptor builds a descriptor of the given kind.
func NewDescriptor(id string, kind ValueKind, opts ...DescriptorOption) PropertyDescriptor {
	d := PropertyDescriptor{ID: id, Kind: kind}
	for _, opt := range opts {
		if opt != nil {
			opt(&d)
		}
	}
	return d
}

// String declares a string property with override semantics.
func String(id string, opts ...DescriptorOption) PropertyDescriptor {
	return NewDescriptor(id, Primitive(TypeString), opts...)
}

// Number declares a numeric property with override semantics.
func Number(id string, opts ...DescriptorOption) PropertyDescriptor {
	return NewDescriptor(id, Primitive(TypeNumber), opts...)
}

// Boolean declares a boolean property with override semantics.
func Boolean(id string, opts ...DescriptorOption) PropertyDescriptor {
	return NewDescriptor(id, Primitive(TypeBoolean), opts...)
}

// Value declares an untyped primitive property with override semantics.
func Value(id string, opts ...DescriptorOption) PropertyDescriptor {
	return NewDescriptor(id, Primitive(TypeAny), opts...)
}

// ObjectProperty declares a nested object merged field by field.
func ObjectProperty(id string, fields DescriptorSet, opts ...DescriptorOption) PropertyDescriptor {
	return NewDescriptor(id, Object(fields), opts...)
}

// References declares a reference list merged by ordered concatenation.
func References(id string, opts ...DescriptorOption) PropertyDescriptor {
	return NewDescriptor(id, ReferenceList(), opts...)
}

// Objects declares an object list keyed by each item's "id" field.
func Objects(id string, opts ...DescriptorOption) PropertyDescriptor {
	return NewDescriptor(id, ObjectList(), opts...)
}

// InfoList declares a free-form documentation list that accumulates across
// layers instead of being replaced.
func InfoList(id string, opts ...DescriptorOption) PropertyDescriptor {
	opts = append([]DescriptorOption{WithMerge(ConcatDedup(nil))}, opts...)
	return NewDescriptor(id, ObjectList(), opts...)
}

// normalize fills the default merge strategy and converts the default value
// into its JSON shape.
func (d PropertyDescriptor) normalize() (PropertyDescriptor, error) {
	if strings.TrimSpace(d.ID) == "" {
		return d, fmt.Errorf("%w: id must be provided", ErrInvalidDescriptor)
	}
	if d.Kind.Kind == KindPrimitive && d.Kind.Primitive == "" {
		d.Kind.Primitive = TypeAny
	}
	if d.Kind.Kind == KindObject {
		fields, err := normalizeDescriptors(d.Kind.Fields.Descriptors)
		if err != nil {
			return d, fmt.Errorf("%w: %s: %v", ErrInvalidDescriptor, d.ID, err)
		}
		d.Kind.Fields = DescriptorSet{Name: d.Kind.Fields.Name, Descriptors: fields}
	}
	if d.Merge == nil {
		d.Merge = defaultStrategy(d.Kind)
	}
	def, err := layering.Normalize(d.Default)
	if err != nil {
		return d, fmt.Errorf("%w: %s default: %v", ErrInvalidDescriptor, d.ID, err)
	}
	d.Default = def
	if d.Default != nil {
		if _, err := d.Merge.Merge(nil, d.Default); err != nil {
			return d, fmt.Errorf("%w: %s default rejected by %s: %v", ErrInvalidDescriptor, d.ID, d.Merge.Name(), err)
		}
	}
	return d, nil
}

// compatible reports whether two descriptors for the same id may coexist.
// Display metadata is allowed to differ; shape and merge behaviour are not.
func (d PropertyDescriptor) compatible(other PropertyDescriptor) bool {
	if d.ID != other.ID || !d.Kind.equal(other.Kind) {
		return false
	}
	if !sameStrategy(d.Merge, other.Merge) {
		return false
	}
	return d.DerivedDefault == other.DerivedDefault && reflect.DeepEqual(d.Default, other.Default)
}

func strategyName(s MergeStrategy) string {
	if s == nil {
		return ""
	}
	return s.Name()
}

// DescriptorSet is a named group of descriptors, the unit of trait mixing.
type DescriptorSet struct {
	Name        string
	Descriptors []PropertyDescriptor
}

// NewDescriptorSet builds a set. Descriptors are normalised so the set can be
// used directly as the fields of an object property; invalid input panics
// because sets are declared at package initialisation.
func NewDescriptorSet(name string, descriptors ...PropertyDescriptor) DescriptorSet {
	normalized, err := normalizeDescriptors(descriptors)
	if err != nil {
		panic(fmt.Sprintf("strata: descriptor set %q: %v", name, err))
	}
	return DescriptorSet{Name: name, Descriptors: normalized}
}

// Lookup returns the descriptor for id.
func (s DescriptorSet) Lookup(id string) (PropertyDescriptor, bool) {
	for _, d := range s.Descriptors {
		if d.ID == id {
			return d, true
		}
	}
	return PropertyDescriptor{}, false
}

// IDs lists descriptor ids in declaration order.
func (s DescriptorSet) IDs() []string {
	ids := make([]string, 0, len(s.Descriptors))
	for _, d := range s.Descriptors {
		ids = append(ids, d.ID)
	}
	return ids
}

func normalizeDescriptors(descriptors []PropertyDescriptor) ([]PropertyDescriptor, error) {
	out := make([]PropertyDescriptor, 0, len(descriptors))
	seen := make(map[string]struct{}, len(descriptors))
	for _, d := range descriptors {
		normalized, err := d.normalize()
		if err != nil {
			return nil, err
		}
		if _, ok := seen[normalized.ID]; ok {
			return nil, fmt.Errorf("%w: duplicate id %q", ErrDescriptorConflict, normalized.ID)
		}
		seen[normalized.ID] = struct{}{}
		out = append(out, normalized)
	}
	return out, nil
}
