package cell

import (
	"reflect"
	"sync"
	"sync/atomic"
)

var idCounter uint64

func nextID() uint64 {
	return atomic.AddUint64(&idCounter, 1)
}

// Signal is a reactive value container.
// Setting a different value bumps the version and notifies subscribers
// synchronously; setting an equal value is a no-op.
type Signal[T any] struct {
	id uint64

	// value is the current signal value.
	value T

	// version counts effective writes.
	version uint64

	// mu protects value and version.
	mu sync.RWMutex

	subs  []Listener
	subMu sync.RWMutex

	// equal decides whether a write changes the value.
	// If nil, defaultEquals is used.
	equal func(T, T) bool
}

// NewSignal creates a new signal with the given initial value.
func NewSignal[T any](initial T) *Signal[T] {
	return &Signal[T]{
		id:    nextID(),
		value: initial,
	}
}

// Get returns the current value.
func (s *Signal[T]) Get() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Set updates the signal's value and notifies subscribers if the value changed.
func (s *Signal[T]) Set(value T) {
	s.mu.Lock()
	changed := !s.equals(s.value, value)
	if changed {
		s.value = value
		s.version++
	}
	s.mu.Unlock()

	if changed {
		s.notifySubscribers()
	}
}

// Update atomically reads and updates the signal's value.
func (s *Signal[T]) Update(fn func(T) T) {
	s.mu.Lock()
	next := fn(s.value)
	changed := !s.equals(s.value, next)
	if changed {
		s.value = next
		s.version++
	}
	s.mu.Unlock()

	if changed {
		s.notifySubscribers()
	}
}

// Version returns the number of effective writes since creation.
func (s *Signal[T]) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// ID returns the unique identifier for this signal.
func (s *Signal[T]) ID() uint64 {
	return s.id
}

// WithEquals returns the signal configured with a custom equality function.
func (s *Signal[T]) WithEquals(fn func(T, T) bool) *Signal[T] {
	s.equal = fn
	return s
}

// Subscribe adds a listener. Subscribing the same listener twice is a no-op.
func (s *Signal[T]) Subscribe(l Listener) {
	if l == nil {
		return
	}

	s.subMu.Lock()
	defer s.subMu.Unlock()

	lid := l.ID()
	for _, existing := range s.subs {
		if existing.ID() == lid {
			return
		}
	}
	s.subs = append(s.subs, l)
}

// Unsubscribe removes a listener.
func (s *Signal[T]) Unsubscribe(l Listener) {
	if l == nil {
		return
	}

	s.subMu.Lock()
	defer s.subMu.Unlock()

	lid := l.ID()
	for i, existing := range s.subs {
		if existing.ID() == lid {
			s.subs[i] = s.subs[len(s.subs)-1]
			s.subs = s.subs[:len(s.subs)-1]
			return
		}
	}
}

// OnChange subscribes fn and returns a function that cancels the subscription.
func (s *Signal[T]) OnChange(fn func()) (cancel func()) {
	l := ListenerFunc(fn)
	s.Subscribe(l)
	return func() { s.Unsubscribe(l) }
}

// notifySubscribers copies the subscriber list before calling out so
// listeners may subscribe or unsubscribe while being notified.
func (s *Signal[T]) notifySubscribers() {
	s.subMu.RLock()
	subs := make([]Listener, len(s.subs))
	copy(subs, s.subs)
	s.subMu.RUnlock()

	for _, sub := range subs {
		sub.MarkDirty()
	}
}

func (s *Signal[T]) equals(a, b T) bool {
	if s.equal != nil {
		return s.equal(a, b)
	}
	return defaultEquals(a, b)
}

// defaultEquals compares by == when both values share a comparable dynamic
// type. Pointers compare by identity, so writing a different object with the
// same contents is still a change. Slices and maps never compare equal.
func defaultEquals[T any](a, b T) bool {
	av, bv := any(a), any(b)
	if av == nil || bv == nil {
		return av == nil && bv == nil
	}
	if reflect.TypeOf(av) != reflect.TypeOf(bv) {
		return false
	}
	if !reflect.ValueOf(av).Comparable() {
		return false
	}
	return av == bv
}

var _ Cell = (*Signal[any])(nil)
