// Package resource provides the handle tables that stand in for raw pointers
// at the boundary.
//
// Worlds and libraries handed to the host are never exposed by address. They
// are inserted into a Table and the host receives a small integer Handle;
// handle 0 is always invalid and doubles as the failure sentinel.
//
//	table := resource.NewTable()
//	worlds := resource.NewTyped[*world.World](table, resource.TypeWorld)
//
//	h, _ := worlds.Insert(w)
//	err := worlds.Borrow(h, func(w *world.World) error {
//	    return compile(w)
//	})
//	w, err := worlds.Remove(h)
//
// # Borrowing
//
// Borrow lends a value for the duration of a callback and returns the borrow
// on every exit path, panics included. While a handle is borrowed, Remove
// fails with ErrOutstandingBorrow, so a host freeing a world that another
// thread is compiling gets an error instead of a dangling reference.
//
// # Observers
//
// Observers receive created, dropped, borrowed and borrow-returned events;
// the bridge uses one to log handle lifecycles.
package resource
