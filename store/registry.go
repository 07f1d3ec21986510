package store

import "sort"

// Relationship describes one nested entity field of a registered segment.
type Relationship struct {
	// ParentKey is the partition of the embedding entity (e.g., "posts").
	ParentKey string

	// Field is the field of the parent holding the child (e.g., "author").
	Field string

	// ChildKey is the partition of the embedded entity (e.g., "authors").
	ChildKey string

	// List is true when the field holds a list of children.
	List bool

	// Owned is true when deleting the parent cascades to the child.
	Owned bool
}

// Registry maps source table names to the segments their items normalize into.
type Registry struct {
	tables   map[string]*Segment
	byParent map[string][]Relationship
	visited  map[*Segment]bool
}

// NewRegistry creates a new empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		tables:   make(map[string]*Segment),
		byParent: make(map[string][]Relationship),
		visited:  make(map[*Segment]bool),
	}
}

// Register binds a table to seg and records the relationships of seg and
// every segment nested beneath it. Registering a table again replaces its
// segment, along with the relationships derived from it.
func (r *Registry) Register(table string, seg *Segment) {
	prev, replaced := r.tables[table]
	r.tables[table] = seg
	if replaced && prev != seg {
		r.rebuild()
		return
	}
	r.record(seg)
}

// rebuild re-derives all relationships from the registered tables, in table
// name order.
func (r *Registry) rebuild() {
	r.byParent = make(map[string][]Relationship)
	r.visited = make(map[*Segment]bool)

	tables := make([]string, 0, len(r.tables))
	for t := range r.tables {
		tables = append(tables, t)
	}
	sort.Strings(tables)
	for _, t := range tables {
		r.record(r.tables[t])
	}
}

func (r *Registry) record(seg *Segment) {
	if seg == nil || r.visited[seg] {
		return
	}
	r.visited[seg] = true

	for _, n := range seg.nested {
		child := n.Shape.element()
		if child == nil {
			continue
		}
		rel := Relationship{
			ParentKey: seg.key,
			Field:     n.Field,
			ChildKey:  child.key,
			List:      n.Shape.isList(),
			Owned:     n.owns(),
		}
		r.byParent[seg.key] = append(r.byParent[seg.key], rel)
		r.record(child)
	}
}

// Lookup returns the segment registered for a table.
func (r *Registry) Lookup(table string) (*Segment, bool) {
	seg, ok := r.tables[table]
	return seg, ok
}

// Tables returns the number of registered tables.
func (r *Registry) Tables() int {
	return len(r.tables)
}

// ChildrenOf returns all child relationships for a given parent partition.
func (r *Registry) ChildrenOf(parentKey string) []Relationship {
	return r.byParent[parentKey]
}

// HasChildren returns true if the parent partition has any nested entity fields.
func (r *Registry) HasChildren(parentKey string) bool {
	return len(r.byParent[parentKey]) > 0
}
