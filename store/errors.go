package store

import "errors"

var (
	// ErrInvalidData is returned when a value that must be an entity object is not one.
	ErrInvalidData = errors.New("arbor: invalid data")

	// ErrArrayExpected is returned when a list shape is given something other than a list.
	ErrArrayExpected = errors.New("arbor: array expected")

	// ErrMissingID is returned when an entity has no value in its identity field.
	ErrMissingID = errors.New("arbor: missing entity id")
)
