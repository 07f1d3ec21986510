package store

import (
	"sort"

	"github.com/jacentio/arbor/cell"
)

// Object is a mutable record whose fields are either plain values or bound
// to a cell.Cell. Binding the same cell on two objects makes the field shared:
// a write through either object is visible through both.
//
// Field values are scalars, nested *Object values or []any lists.
type Object struct {
	keys   []string
	fields map[string]*slot
}

type slot struct {
	value any
	cell  cell.Cell
}

func (s *slot) get() any {
	if s.cell != nil {
		return s.cell.Get()
	}
	return s.value
}

// NewObject returns an empty object.
func NewObject() *Object {
	return &Object{fields: make(map[string]*slot)}
}

// FromMap converts a decoded document into an Object. Nested maps become
// nested objects and []any / []map[string]any become lists, recursively.
// Keys are added in sorted order.
func FromMap(m map[string]any) *Object {
	o := NewObject()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		o.Set(k, fromValue(m[k]))
	}
	return o
}

func fromValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return FromMap(t)
	case []map[string]any:
		list := make([]any, len(t))
		for i, m := range t {
			list[i] = FromMap(m)
		}
		return list
	case []any:
		list := make([]any, len(t))
		for i, e := range t {
			list[i] = fromValue(e)
		}
		return list
	default:
		return v
	}
}

// Keys returns the field names in insertion order.
func (o *Object) Keys() []string {
	out := make([]string, len(o.keys))
	copy(out, o.keys)
	return out
}

// Len returns the number of fields.
func (o *Object) Len() int {
	return len(o.keys)
}

// Has reports whether the field is defined, even if its value is nil.
func (o *Object) Has(key string) bool {
	_, ok := o.fields[key]
	return ok
}

// Get returns the field value, reading through its cell when bound.
func (o *Object) Get(key string) any {
	s, ok := o.fields[key]
	if !ok {
		return nil
	}
	return s.get()
}

// Set writes the field, through its cell when bound. Unknown keys are
// appended as plain fields.
func (o *Object) Set(key string, value any) {
	s, ok := o.fields[key]
	if !ok {
		o.add(key, &slot{value: value})
		return
	}
	if s.cell != nil {
		s.cell.Set(value)
		return
	}
	s.value = value
}

// Cell returns the cell bound to the field, if any.
func (o *Object) Cell(key string) (cell.Cell, bool) {
	s, ok := o.fields[key]
	if !ok || s.cell == nil {
		return nil, false
	}
	return s.cell, true
}

// Bind makes the field read and write through c, replacing any plain value.
func (o *Object) Bind(key string, c cell.Cell) {
	s, ok := o.fields[key]
	if !ok {
		o.add(key, &slot{cell: c})
		return
	}
	s.value = nil
	s.cell = c
}

func (o *Object) add(key string, s *slot) {
	if o.fields == nil {
		o.fields = make(map[string]*slot)
	}
	o.keys = append(o.keys, key)
	o.fields[key] = s
}

// ToMap returns a snapshot of the object as plain maps and slices.
func (o *Object) ToMap() map[string]any {
	return o.toMap(make(map[*Object]bool))
}

func (o *Object) toMap(seen map[*Object]bool) map[string]any {
	seen[o] = true
	defer delete(seen, o)

	out := make(map[string]any, len(o.keys))
	for _, k := range o.keys {
		out[k] = toPlain(o.fields[k].get(), seen)
	}
	return out
}

func toPlain(v any, seen map[*Object]bool) any {
	switch t := v.(type) {
	case *Object:
		if t == nil || seen[t] {
			return nil
		}
		return t.toMap(seen)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = toPlain(e, seen)
		}
		return out
	default:
		return v
	}
}
