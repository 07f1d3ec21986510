// Package store provides a normalized, reference-counted entity cache with
// per-field reactivity.
//
// Nested API data is split into partitions, one per entity kind, while every
// embedding keeps pointing at the same canonical object. Scalar fields are
// backed by cells, so an update written through any path is observed by all
// holders of the entity.
//
// # Segments
//
// A [Segment] declares an entity kind: its partition key, identity field and
// the nested fields that are entities themselves:
//
//	author := store.MakeSegment("authors", nil)
//	comment := store.MakeSegment("comments", map[string]store.Shape{"author": author})
//	post := store.MakeSegment("posts", map[string]store.Shape{
//	    "author":   author,
//	    "comments": store.ListOf(comment),
//	})
//
// # Writing
//
// [Store.Reactive] binds every scalar field to a cell and then calls
// [Store.Watch], which writes nested entities before their parents. Writing an
// id that is already cached adds a reference and merges the new data into the
// existing object instead of replacing it.
//
// # Deleting
//
// [Store.Delete] drops one reference. When the last one goes, owned nested
// entities are deleted too. A field named after its child's partition key (for
// example a field "authors" holding an "authors" entity) is treated as a
// reference and does not cascade. Branches that cannot be followed are
// reported in [DeleteResult] and never stop the rest of the cascade.
//
// # Errors
//
//   - [ErrInvalidData] - a value that must be an entity is not one
//   - [ErrArrayExpected] - a list shape was given something other than a list
//   - [ErrMissingID] - an entity has no identity value
//
// # Concurrency
//
// Operations run synchronously on the caller's goroutine and a Store assumes a
// single writer at a time.
package store
