package store

import (
	"reflect"

	"github.com/jacentio/arbor/cell"
)

// MakeReactive binds every scalar field reachable from v to a fresh cell
// created by newCell, in place. Nested objects and lists are walked
// depth-first rather than bound themselves. Fields that already carry a cell
// are left untouched, so wrapping twice changes nothing. Returns v.
//
// Scalar elements of a list are not bound; only objects inside lists are walked.
func MakeReactive(v any, newCell cell.Factory) any {
	if newCell == nil {
		newCell = cell.NewFactory()
	}
	makeReactive(v, newCell, make(map[*Object]bool))
	return v
}

func makeReactive(v any, newCell cell.Factory, seen map[*Object]bool) {
	switch t := v.(type) {
	case *Object:
		if t == nil || seen[t] {
			return
		}
		seen[t] = true
		for _, key := range t.keys {
			s := t.fields[key]
			if s.cell != nil {
				continue
			}
			if isComposite(s.value) {
				makeReactive(s.value, newCell, seen)
				continue
			}
			s.cell = newCell(s.value)
			s.value = nil
		}
	case []any:
		for _, e := range t {
			if isComposite(e) {
				makeReactive(e, newCell, seen)
			}
		}
	case []*Object:
		for _, e := range t {
			makeReactive(e, newCell, seen)
		}
	}
}

// isComposite reports whether v is a non-nil object or a list.
func isComposite(v any) bool {
	switch t := v.(type) {
	case *Object:
		return t != nil
	case []any:
		return t != nil
	}
	return false
}

// truthy mirrors the presence test applied to nested fields before they are
// normalized: nil, false, zero numbers and empty strings are absent.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case *Object:
		return t != nil
	case []any:
		return t != nil
	case bool:
		return t
	case string:
		return t != ""
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return !rv.IsZero()
	}
	return true
}
