package resource

import (
	"fmt"
	"sync"
)

// Table maps handles to values with type checks, borrow tracking and
// lifecycle observers.
type Table struct {
	backend   *LocalBackend
	observers []Observer
	obsMu     sync.RWMutex
}

// NewTable creates a new table with a LocalBackend.
func NewTable() *Table {
	return &Table{
		backend: NewLocalBackend(),
	}
}

// Insert adds a value and returns its handle.
func (t *Table) Insert(typeID TypeID, value any) (Handle, error) {
	handle, err := t.backend.Create(typeID, value)
	if err != nil {
		return 0, err
	}

	t.notify(Event{
		Type:   EventCreated,
		Handle: handle,
		TypeID: typeID,
		Value:  value,
	})

	return handle, nil
}

// Get retrieves a value only if it matches the expected type.
func (t *Table) Get(handle Handle, typeID TypeID) (any, error) {
	value, actual, ok := t.backend.Get(handle)
	if !ok {
		return nil, fmt.Errorf("%w: %s %d", ErrInvalidHandle, typeID, handle)
	}
	if actual != typeID {
		return nil, fmt.Errorf("%w: %d is a %s, not a %s", ErrTypeMismatch, handle, actual, typeID)
	}
	return value, nil
}

// Remove drops a resource of the expected type and returns its value.
// Values implementing Dropper are dropped.
func (t *Table) Remove(handle Handle, typeID TypeID) (any, error) {
	if _, err := t.Get(handle, typeID); err != nil {
		return nil, err
	}
	value, actual, err := t.backend.Drop(handle)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %d", err, typeID, handle)
	}

	if d, ok := value.(Dropper); ok {
		d.Drop()
	}

	t.notify(Event{
		Type:   EventDropped,
		Handle: handle,
		TypeID: actual,
		Value:  value,
	})

	return value, nil
}

// Borrow lends the value behind handle to fn. The borrow is returned on
// every exit path, including a panic in fn, so the handle stays valid for
// its owner and a concurrent Remove fails until fn is done.
func (t *Table) Borrow(handle Handle, typeID TypeID, fn func(any) error) error {
	value, actual, ok := t.backend.Borrow(handle)
	if !ok {
		return fmt.Errorf("%w: %s %d", ErrInvalidHandle, typeID, handle)
	}
	defer func() {
		t.backend.ReturnBorrow(handle)
		t.notify(Event{Type: EventBorrowReturned, Handle: handle, TypeID: actual, Value: value})
	}()

	if actual != typeID {
		return fmt.Errorf("%w: %d is a %s, not a %s", ErrTypeMismatch, handle, actual, typeID)
	}
	t.notify(Event{Type: EventBorrowed, Handle: handle, TypeID: actual, Value: value})
	return fn(value)
}

// Borrows reports the outstanding borrow count of a handle.
func (t *Table) Borrows(handle Handle) uint32 {
	return t.backend.Borrows(handle)
}

// Subscribe adds an observer for lifecycle events.
func (t *Table) Subscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	t.observers = append(t.observers, o)
}

// Len returns the number of active resources.
func (t *Table) Len() int {
	return t.backend.Len()
}

// Count returns the number of active resources of one type.
func (t *Table) Count(typeID TypeID) int {
	n := 0
	t.backend.Each(func(_ Handle, id TypeID, _ any) bool {
		if id == typeID {
			n++
		}
		return true
	})
	return n
}

// Close releases all resources and stops accepting inserts.
func (t *Table) Close() error {
	return t.backend.Close()
}

func (t *Table) notify(e Event) {
	t.obsMu.RLock()
	defer t.obsMu.RUnlock()
	for _, o := range t.observers {
		o.OnResourceEvent(e)
	}
}

// Typed gives type-safe access to one kind of value in a shared Table.
type Typed[T any] struct {
	table  *Table
	typeID TypeID
}

// NewTyped returns a typed view over table for typeID.
func NewTyped[T any](table *Table, typeID TypeID) Typed[T] {
	return Typed[T]{table: table, typeID: typeID}
}

// Insert adds a value and returns its handle.
func (v Typed[T]) Insert(value T) (Handle, error) {
	return v.table.Insert(v.typeID, value)
}

// Get retrieves a value by handle.
func (v Typed[T]) Get(handle Handle) (T, error) {
	var zero T
	value, err := v.table.Get(handle, v.typeID)
	if err != nil {
		return zero, err
	}
	return value.(T), nil
}

// Remove drops a resource and returns its value.
func (v Typed[T]) Remove(handle Handle) (T, error) {
	var zero T
	value, err := v.table.Remove(handle, v.typeID)
	if err != nil {
		return zero, err
	}
	return value.(T), nil
}

// Borrow lends the typed value behind handle to fn.
func (v Typed[T]) Borrow(handle Handle, fn func(T) error) error {
	return v.table.Borrow(handle, v.typeID, func(value any) error {
		return fn(value.(T))
	})
}

// Len returns the number of active resources of this type.
func (v Typed[T]) Len() int {
	return v.table.Count(v.typeID)
}
