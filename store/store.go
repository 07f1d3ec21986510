package store

import (
	"fmt"
	"log/slog"
	"reflect"
	"sort"

	"github.com/jacentio/arbor/cell"
	"github.com/jacentio/arbor/internal/ref"
)

// Store is a normalized entity cache. Entities are kept in partitions keyed by
// segment, one reference-counted Entry per id, and every place an entity is
// embedded shares the same *Object.
//
// A Store is not safe for concurrent mutation; callers serialize writes.
type Store struct {
	config     Config
	logger     *slog.Logger
	partitions map[string]*Partition

	// keys holds the sorted partition keys so new partitions are observable.
	keys cell.Cell
}

// Partition holds the entries of one segment, keyed by normalized id.
type Partition struct {
	key     string
	entries map[string]*Entry

	// version is bumped whenever an entry is added or removed.
	version cell.Cell
}

// Entry is a partition slot: the canonical value of an entity and the number
// of write paths currently holding it.
type Entry struct {
	id    any
	value *Object
	refs  cell.Cell
}

type commitFunc func(seg *Segment, data *Object) error

// New creates a new Store instance.
func New(config Config) *Store {
	config.validate()
	return &Store{
		config:     config,
		logger:     config.Logger,
		partitions: make(map[string]*Partition),
		keys:       config.NewCell([]string{}),
	}
}

// Reactive binds every scalar field of data to a cell, then watches it.
func (s *Store) Reactive(shape Shape, data any) (any, error) {
	MakeReactive(data, s.config.NewCell)
	return s.Watch(shape, data)
}

// Watch normalizes data into the store. Nested entities declared by the shape
// are written before the entity that embeds them; for a list shape every
// element is watched and the list itself is not stored. Returns data.
func (s *Store) Watch(shape Shape, data any) (any, error) {
	if err := s.walk(shape, data, s.Write); err != nil {
		return nil, err
	}
	return data, nil
}

// Refresh merges data into entities that are already cached, bottom-up,
// without changing reference counts. Entities that are not cached are skipped.
func (s *Store) Refresh(shape Shape, data any) (any, error) {
	MakeReactive(data, s.config.NewCell)
	if err := s.walk(shape, data, s.refresh); err != nil {
		return nil, err
	}
	return data, nil
}

func (s *Store) walk(shape Shape, data any, commit commitFunc) error {
	if shape == nil || shape.element() == nil {
		return fmt.Errorf("%w: nil segment", ErrInvalidData)
	}
	seg := shape.element()

	if shape.isList() {
		list, ok := asList(data)
		if !ok {
			if obj, isObj := data.(*Object); isObj && obj != nil {
				return fmt.Errorf("%s: %w", seg.key, ErrArrayExpected)
			}
			return fmt.Errorf("%s: %w", seg.key, ErrInvalidData)
		}
		for i, elem := range list {
			if err := s.walk(seg, elem, commit); err != nil {
				return fmt.Errorf("[%d]: %w", i, err)
			}
		}
		return nil
	}

	obj, ok := data.(*Object)
	if !ok || obj == nil {
		return fmt.Errorf("%s: %w", seg.key, ErrInvalidData)
	}

	for _, n := range seg.nested {
		v := obj.Get(n.Field)
		if !truthy(v) {
			continue
		}
		if err := s.walk(n.Shape, v, commit); err != nil {
			return fmt.Errorf("%s.%s: %w", seg.key, n.Field, err)
		}
	}

	return commit(seg, obj)
}

// Write stores a single entity without visiting its nested fields. A new id
// gets an entry with one reference and a reactive value. A known id gains a
// reference and data is merged into the existing value, which is never replaced.
func (s *Store) Write(seg *Segment, data *Object) error {
	if data == nil {
		return fmt.Errorf("%s: %w", seg.key, ErrInvalidData)
	}

	id := data.Get(seg.id)
	key, ok := ref.Key(id)
	if !ok {
		return fmt.Errorf("%s: %w", seg.key, ErrMissingID)
	}

	p := s.partition(seg.key)

	if e, ok := p.entries[key]; ok {
		refs := e.Refs() + 1
		e.refs.Set(refs)
		Merge(e.value, data)
		s.logger.Debug("entity merged",
			"entityRef", ref.EntityRef(seg.key, key),
			"refs", refs,
		)
		return nil
	}

	MakeReactive(data, s.config.NewCell)
	p.insert(key, &Entry{
		id:    id,
		value: data,
		refs:  s.config.NewCell(1),
	})
	s.logger.Debug("entity created", "entityRef", ref.EntityRef(seg.key, key))
	return nil
}

func (s *Store) refresh(seg *Segment, data *Object) error {
	key, ok := ref.Key(data.Get(seg.id))
	if !ok {
		return fmt.Errorf("%s: %w", seg.key, ErrMissingID)
	}
	e, ok := s.lookup(seg.key, key)
	if !ok {
		return nil
	}
	for _, n := range seg.nested {
		if err := s.repoint(e.value, n, data.Get(n.Field)); err != nil {
			return fmt.Errorf("%s.%s: %w", seg.key, n.Field, err)
		}
	}
	Merge(e.value, data)
	s.logger.Debug("entity refreshed", "entityRef", ref.EntityRef(seg.key, key))
	return nil
}

// repoint moves a cached parent's nested field to the entities named by next.
// Entities that are new to the field are watched, taking a reference, and
// owned entities that left the field are deleted, releasing theirs. The field
// then holds the cached values in the order of next. Absent values leave the
// field as it is.
func (s *Store) repoint(parent *Object, n Nested, next any) error {
	if !truthy(next) {
		return nil
	}
	child := n.Shape.element()

	prevIDs := make(map[string]any)
	for _, v := range embedded(n, parent.Get(n.Field)) {
		if id, err := embeddedID(child, v); err == nil {
			if key, ok := ref.Key(id); ok {
				prevIDs[key] = id
			}
		}
	}

	var elems []any
	if n.Shape.isList() {
		list, ok := asList(next)
		if !ok {
			return ErrArrayExpected
		}
		elems = list
	} else {
		elems = []any{next}
	}

	nextKeys := make(map[string]bool, len(elems))
	resolved := make([]any, len(elems))
	changed := len(elems) != len(prevIDs)
	for i, elem := range elems {
		id, err := embeddedID(child, elem)
		if err != nil {
			return err
		}
		key, _ := ref.Key(id)
		nextKeys[key] = true
		if _, held := prevIDs[key]; !held {
			changed = true
			if err := s.walk(child, elem, s.Write); err != nil {
				return err
			}
		}
		if e, ok := s.lookup(child.key, key); ok {
			resolved[i] = e.value
		} else {
			resolved[i] = elem
		}
	}
	if !changed {
		return nil
	}

	if n.owns() {
		for key, id := range prevIDs {
			if !nextKeys[key] {
				s.Delete(child, id)
			}
		}
	}

	if n.Shape.isList() {
		parent.Set(n.Field, resolved)
	} else {
		parent.Set(n.Field, resolved[0])
	}
	s.logger.Debug("nested entity repointed",
		"partition", child.key,
		"field", n.Field,
	)
	return nil
}

// embedded returns the entities a nested field currently holds.
func embedded(n Nested, v any) []any {
	if v == nil {
		return nil
	}
	if n.Shape.isList() {
		list, _ := asList(v)
		return list
	}
	return []any{v}
}

// Read returns a lookup function from id to the cached value, or nil when the
// id is not cached. The partition is resolved on every call.
func (s *Store) Read(seg *Segment) func(id any) *Object {
	return func(id any) *Object {
		e, ok := s.Entry(seg, id)
		if !ok {
			return nil
		}
		return e.value
	}
}

// ReadList returns a lookup function from a slice of ids to their cached
// values, with nil for every id that is not cached. Non-slice input yields nil.
func (s *Store) ReadList(list List) func(ids any) []*Object {
	read := s.Read(list.Of)
	return func(ids any) []*Object {
		items, ok := idList(ids)
		if !ok {
			return nil
		}
		out := make([]*Object, len(items))
		for i, id := range items {
			out[i] = read(id)
		}
		return out
	}
}

// Lookup returns Read for a segment and ReadList for a list shape behind a
// single signature. Missing values are reported as an untyped nil.
func (s *Store) Lookup(shape Shape) func(id any) any {
	if shape.isList() {
		read := s.ReadList(ListOf(shape.element()))
		return func(ids any) any {
			if out := read(ids); out != nil {
				return out
			}
			return nil
		}
	}
	read := s.Read(shape.element())
	return func(id any) any {
		if out := read(id); out != nil {
			return out
		}
		return nil
	}
}

// Entry returns the entry cached for id in the segment's partition.
func (s *Store) Entry(seg *Segment, id any) (*Entry, bool) {
	key, ok := ref.Key(id)
	if !ok {
		return nil, false
	}
	return s.lookup(seg.key, key)
}

// Partition returns the partition stored under key, if it was ever written.
func (s *Store) Partition(key string) (*Partition, bool) {
	p, ok := s.partitions[key]
	return p, ok
}

// PartitionKeys returns the sorted keys of all partitions.
func (s *Store) PartitionKeys() []string {
	keys, _ := s.keys.Get().([]string)
	return append([]string(nil), keys...)
}

func (s *Store) lookup(partition, key string) (*Entry, bool) {
	p, ok := s.partitions[partition]
	if !ok {
		return nil, false
	}
	e, ok := p.entries[key]
	return e, ok
}

// partition returns the partition for key, creating it on first use.
func (s *Store) partition(key string) *Partition {
	if p, ok := s.partitions[key]; ok {
		return p
	}
	p := &Partition{
		key:     key,
		entries: make(map[string]*Entry),
		version: s.config.NewCell(uint64(0)),
	}
	s.partitions[key] = p

	keys := make([]string, 0, len(s.partitions))
	for k := range s.partitions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	s.keys.Set(keys)

	s.logger.Debug("partition created", "partition", key)
	return p
}

// Key returns the partition key.
func (p *Partition) Key() string { return p.key }

// Len returns the number of cached entities.
func (p *Partition) Len() int { return len(p.entries) }

// IDs returns the normalized ids of all cached entities, sorted.
func (p *Partition) IDs() []string {
	ids := make([]string, 0, len(p.entries))
	for id := range p.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Get returns the entry for a normalized id.
func (p *Partition) Get(key string) (*Entry, bool) {
	e, ok := p.entries[key]
	return e, ok
}

// Version returns the number of membership changes since the partition was created.
func (p *Partition) Version() uint64 {
	v, _ := p.version.Get().(uint64)
	return v
}

func (p *Partition) insert(key string, e *Entry) {
	p.entries[key] = e
	p.bump()
}

func (p *Partition) remove(key string) {
	delete(p.entries, key)
	p.bump()
}

func (p *Partition) bump() {
	p.version.Set(p.Version() + 1)
}

// ID returns the id the entity was first written with.
func (e *Entry) ID() any { return e.id }

// Value returns the canonical value of the entity.
func (e *Entry) Value() *Object { return e.value }

// Refs returns the current reference count.
func (e *Entry) Refs() int {
	n, _ := e.refs.Get().(int)
	return n
}

// RefsCell returns the cell backing the reference count, for observers.
func (e *Entry) RefsCell() cell.Cell { return e.refs }

// asList returns the elements of an entity list value.
func asList(v any) ([]any, bool) {
	switch t := v.(type) {
	case []any:
		return t, t != nil
	case []*Object:
		if t == nil {
			return nil, false
		}
		out := make([]any, len(t))
		for i, o := range t {
			out[i] = o
		}
		return out, true
	}
	return nil, false
}

// idList returns the elements of any slice of ids.
func idList(v any) ([]any, bool) {
	if v == nil {
		return nil, false
	}
	if ids, ok := v.([]any); ok {
		return ids, ids != nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice || rv.IsNil() {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
