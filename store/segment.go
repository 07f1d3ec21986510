package store

import "sort"

// DefaultIDField is the identity field used when a segment does not name one.
const DefaultIDField = "id"

// Shape is the schema of a value handed to the Store: either a single entity
// (*Segment) or a homogeneous list of entities (List).
type Shape interface {
	element() *Segment
	isList() bool
}

// Segment describes one entity kind: the partition it is stored in, the field
// holding its identity and the nested fields that are entities themselves.
// Segments are immutable and may be shared by any number of stores.
type Segment struct {
	key    string
	id     string
	nested []Nested
}

// Nested declares that Field of an entity holds a value of the given Shape.
type Nested struct {
	Field string
	Shape Shape
}

// List is the shape of a field or value holding a list of entities of one kind.
type List struct {
	Of *Segment
}

// ListOf returns the list shape of seg.
func ListOf(seg *Segment) List {
	return List{Of: seg}
}

func (l List) element() *Segment { return l.Of }
func (l List) isList() bool       { return true }

func (s *Segment) element() *Segment { return s }
func (s *Segment) isList() bool       { return false }

// MakeSegment creates a segment stored under key. Nested fields are traversed
// in field-name order. The identity field defaults to DefaultIDField.
//
// No validation is performed: nesting must be acyclic.
func MakeSegment(key string, nested map[string]Shape, id ...string) *Segment {
	fields := make([]string, 0, len(nested))
	for f := range nested {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	ordered := make([]Nested, 0, len(fields))
	for _, f := range fields {
		ordered = append(ordered, Nested{Field: f, Shape: nested[f]})
	}

	idField := DefaultIDField
	if len(id) > 0 && id[0] != "" {
		idField = id[0]
	}
	return NewSegment(key, idField, ordered...)
}

// NewSegment creates a segment whose nested fields are traversed in the order given.
// An empty id selects DefaultIDField.
func NewSegment(key, id string, nested ...Nested) *Segment {
	if id == "" {
		id = DefaultIDField
	}
	return &Segment{
		key:    key,
		id:     id,
		nested: append([]Nested(nil), nested...),
	}
}

// Key returns the partition key.
func (s *Segment) Key() string { return s.key }

// IDField returns the name of the identity field.
func (s *Segment) IDField() string { return s.id }

// Nested returns the nested entity fields in traversal order.
func (s *Segment) Nested() []Nested {
	return append([]Nested(nil), s.nested...)
}

// owns reports whether deleting a parent cascades through n. A field named
// after its child's partition is a reference, not an owned child. List shapes
// have no partition key of their own and always cascade.
func (n Nested) owns() bool {
	if n.Shape.isList() {
		return true
	}
	return n.Field != n.Shape.element().key
}
