package store

import (
	"errors"
	"fmt"

	"github.com/jacentio/arbor/internal/ref"
)

// Outcome describes what a delete did to one entry.
type Outcome int

const (
	// NotFound means the partition or the entry did not exist.
	NotFound Outcome = iota

	// Released means a reference was dropped and the entity is still cached.
	Released

	// Removed means the last reference was dropped and the entry was removed.
	Removed
)

func (o Outcome) String() string {
	switch o {
	case NotFound:
		return "not_found"
	case Released:
		return "released"
	case Removed:
		return "removed"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// DeleteResult reports a delete and the cascade it triggered.
type DeleteResult struct {
	// Partition is the segment key the delete ran against.
	Partition string

	// ID is the normalized id (empty for a nil id).
	ID string

	Outcome Outcome

	// Refs is the reference count left on the entry (0 unless Released).
	Refs int

	// Cascade holds the results of deletes of owned nested entities.
	Cascade []*DeleteResult

	// Failures holds nested branches that could not be followed. They never
	// stop the rest of the cascade.
	Failures []error
}

// Err joins every failure in the result tree, or returns nil.
func (r *DeleteResult) Err() error {
	var errs []error
	r.collect(&errs)
	return errors.Join(errs...)
}

func (r *DeleteResult) collect(errs *[]error) {
	*errs = append(*errs, r.Failures...)
	for _, c := range r.Cascade {
		c.collect(errs)
	}
}

// Delete drops one reference to the entity with the given id. When the last
// reference goes, the entry is removed and every owned nested entity embedded
// in its value is deleted the same way. Missing partitions or ids are a no-op.
func (s *Store) Delete(seg *Segment, id any) *DeleteResult {
	key, ok := ref.Key(id)
	res := &DeleteResult{Partition: seg.key, ID: key}
	if !ok {
		return res
	}

	p, ok := s.partitions[seg.key]
	if !ok {
		return res
	}
	e, ok := p.entries[key]
	if !ok {
		return res
	}

	if refs := e.Refs(); refs > 1 {
		e.refs.Set(refs - 1)
		res.Outcome = Released
		res.Refs = refs - 1
		s.logger.Debug("entity released",
			"entityRef", ref.EntityRef(seg.key, key),
			"refs", res.Refs,
		)
		return res
	}

	p.remove(key)
	e.refs.Set(0)
	res.Outcome = Removed
	s.logger.Debug("entity removed", "entityRef", ref.EntityRef(seg.key, key))

	for _, n := range seg.nested {
		if !n.owns() || !e.value.Has(n.Field) {
			continue
		}
		v := e.value.Get(n.Field)
		if v == nil {
			continue
		}
		s.cascade(res, n, v)
	}

	return res
}

// DeleteMany deletes each id in turn and returns the results in the same order.
func (s *Store) DeleteMany(seg *Segment, ids []any) []*DeleteResult {
	results := make([]*DeleteResult, len(ids))
	for i, id := range ids {
		results[i] = s.Delete(seg, id)
	}
	return results
}

func (s *Store) cascade(res *DeleteResult, n Nested, v any) {
	child := n.Shape.element()

	if !n.Shape.isList() {
		id, err := embeddedID(child, v)
		if err != nil {
			s.fail(res, n.Field, err)
			return
		}
		res.Cascade = append(res.Cascade, s.Delete(child, id))
		return
	}

	list, ok := asList(v)
	if !ok {
		s.fail(res, n.Field, ErrArrayExpected)
		return
	}
	for i, elem := range list {
		id, err := embeddedID(child, elem)
		if err != nil {
			s.fail(res, fmt.Sprintf("%s[%d]", n.Field, i), err)
			continue
		}
		res.Cascade = append(res.Cascade, s.Delete(child, id))
	}
}

func (s *Store) fail(res *DeleteResult, field string, err error) {
	err = fmt.Errorf("cascade %s.%s: %w", res.Partition, field, err)
	res.Failures = append(res.Failures, err)
	s.logger.Warn("failed to cascade delete",
		"entityRef", ref.EntityRef(res.Partition, res.ID),
		"field", field,
		"error", err,
	)
}

// embeddedID returns the id of an entity embedded in a parent value.
func embeddedID(seg *Segment, v any) (any, error) {
	obj, ok := v.(*Object)
	if !ok || obj == nil {
		return nil, ErrInvalidData
	}
	id := obj.Get(seg.id)
	if id == nil {
		return nil, ErrMissingID
	}
	return id, nil
}
