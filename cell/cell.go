// Package cell provides the observable single-value containers that back every
// reactive field in the entity cache.
package cell

// Cell is an observable single-value container with stable identity.
// A value written with Set is visible to every subsequent Get.
type Cell interface {
	Get() any
	Set(value any)
}

// Factory creates a new Cell holding the initial value.
type Factory func(initial any) Cell

// NewFactory returns a Factory that creates Signal cells.
func NewFactory() Factory {
	return func(initial any) Cell {
		return NewSignal[any](initial)
	}
}

// Listener is anything that can be notified when a cell changes.
type Listener interface {
	// MarkDirty notifies the listener that the cell's value has changed.
	MarkDirty()

	// ID returns a unique identifier for this listener.
	// Used to deduplicate subscriptions.
	ID() uint64
}

type funcListener struct {
	id uint64
	fn func()
}

func (l *funcListener) MarkDirty() { l.fn() }
func (l *funcListener) ID() uint64 { return l.id }

// ListenerFunc adapts fn into a Listener with a fresh ID.
func ListenerFunc(fn func()) Listener {
	return &funcListener{id: nextID(), fn: fn}
}
