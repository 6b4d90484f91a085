package resource

import "errors"

// Handle is an opaque reference to a resource in a table.
// Handle 0 is reserved and always invalid.
type Handle uint32

// TypeID tags what kind of value a handle refers to.
type TypeID uint32

// Type IDs for values the bridge hands out to the host.
const (
	TypeWorld TypeID = iota + 1
	TypeLibrary
)

func (t TypeID) String() string {
	switch t {
	case TypeWorld:
		return "world"
	case TypeLibrary:
		return "library"
	}
	return "resource"
}

var (
	ErrClosed            = errors.New("resource table closed")
	ErrInvalidHandle     = errors.New("invalid resource handle")
	ErrTypeMismatch      = errors.New("resource handle has a different type")
	ErrOutstandingBorrow = errors.New("cannot drop resource with outstanding borrows")
)

// Event types for resource lifecycle notifications.
type EventType uint8

const (
	EventCreated EventType = iota
	EventDropped
	EventBorrowed
	EventBorrowReturned
)

func (e EventType) String() string {
	switch e {
	case EventCreated:
		return "created"
	case EventDropped:
		return "dropped"
	case EventBorrowed:
		return "borrowed"
	case EventBorrowReturned:
		return "borrow_returned"
	}
	return "unknown"
}

// Event represents a resource lifecycle event.
type Event struct {
	Value  any
	Handle Handle
	TypeID TypeID
	Type   EventType
}

// Observer receives notifications about resource lifecycle events.
type Observer interface {
	OnResourceEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) OnResourceEvent(e Event) { f(e) }

// Dropper is optionally implemented by resource values that need cleanup
// when their handle is freed or the table is closed.
type Dropper interface {
	Drop()
}
