package store

import (
	"github.com/jacentio/arbor/cell"
)

// Merge folds incoming into target and returns target.
//
// For every key of incoming: the value held by target's cell is the base. When
// incoming's field is bound, its value is deep-merged into the base if both
// are objects, and replaces the base otherwise. When either side is bound, a
// single cell (target's if it has one) is bound on both objects and receives
// the merged value, so holders of either object observe the same state.
// Plain fields on both sides are left as they are. Merge never removes a key
// from target.
func Merge(target, incoming *Object) *Object {
	return merge(target, incoming, make(map[[2]*Object]bool))
}

func merge(target, incoming *Object, seen map[[2]*Object]bool) *Object {
	if target == nil || incoming == nil || target == incoming {
		return target
	}
	pair := [2]*Object{target, incoming}
	if seen[pair] {
		return target
	}
	seen[pair] = true

	for _, key := range incoming.keys {
		var (
			merged any
			shared cell.Cell
		)

		if c, ok := target.Cell(key); ok {
			merged = c.Get()
			shared = c
		}

		if c, ok := incoming.Cell(key); ok {
			next := c.Get()
			base, baseIsObject := merged.(*Object)
			inc, incIsObject := next.(*Object)
			if baseIsObject && base != nil && incIsObject && inc != nil {
				merged = merge(base, inc, seen)
			} else {
				merged = next
			}
			if shared == nil {
				shared = c
			}
		}

		if shared == nil {
			continue
		}
		shared.Set(merged)
		target.Bind(key, shared)
		incoming.Bind(key, shared)
	}

	return target
}
