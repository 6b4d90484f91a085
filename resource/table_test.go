package resource

import (
	"errors"
	"testing"
)

type testObserver struct {
	events []Event
}

func (o *testObserver) OnResourceEvent(e Event) {
	o.events = append(o.events, e)
}

func TestTable_Basic(t *testing.T) {
	table := NewTable()

	h, err := table.Insert(TypeWorld, "test")
	if err != nil || h == 0 {
		t.Fatalf("Insert = %d, %v", h, err)
	}

	val, err := table.Get(h, TypeWorld)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if val != "test" {
		t.Fatalf("Expected 'test', got %v", val)
	}

	if _, err := table.Get(h, TypeLibrary); !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("Get with wrong type = %v, want ErrTypeMismatch", err)
	}
	if _, err := table.Remove(h, TypeLibrary); !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("Remove with wrong type = %v, want ErrTypeMismatch", err)
	}

	val, err = table.Remove(h, TypeWorld)
	if err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if val != "test" {
		t.Fatalf("Expected 'test', got %v", val)
	}
	if table.Len() != 0 {
		t.Fatal("Expected Len() == 0 after Remove")
	}

	if _, err := table.Get(0, TypeWorld); !errors.Is(err, ErrInvalidHandle) {
		t.Fatalf("Get(0) = %v, want ErrInvalidHandle", err)
	}
}

func TestTable_Observer(t *testing.T) {
	table := NewTable()
	obs := &testObserver{}
	table.Subscribe(obs)

	h, _ := table.Insert(TypeLibrary, "value")
	table.Borrow(h, TypeLibrary, func(any) error { return nil })
	table.Remove(h, TypeLibrary)

	want := []EventType{EventCreated, EventBorrowed, EventBorrowReturned, EventDropped}
	if len(obs.events) != len(want) {
		t.Fatalf("events = %v", obs.events)
	}
	for i, e := range obs.events {
		if e.Type != want[i] {
			t.Errorf("event %d = %v, want %v", i, e.Type, want[i])
		}
		if e.Handle != h || e.TypeID != TypeLibrary {
			t.Errorf("event %d = %+v", i, e)
		}
	}
}

func TestTable_BorrowReturnsOnError(t *testing.T) {
	table := NewTable()
	h, _ := table.Insert(TypeWorld, "w")

	boom := errors.New("boom")
	err := table.Borrow(h, TypeWorld, func(v any) error {
		if table.Borrows(h) != 1 {
			t.Errorf("Borrows inside = %d, want 1", table.Borrows(h))
		}
		if _, err := table.Remove(h, TypeWorld); !errors.Is(err, ErrOutstandingBorrow) {
			t.Errorf("Remove while borrowed = %v", err)
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Borrow = %v, want boom", err)
	}
	if table.Borrows(h) != 0 {
		t.Fatalf("borrow not returned")
	}
}

func TestTable_BorrowReturnsOnPanic(t *testing.T) {
	table := NewTable()
	h, _ := table.Insert(TypeWorld, "w")

	func() {
		defer func() {
			if recover() == nil {
				t.Error("expected panic to propagate")
			}
		}()
		table.Borrow(h, TypeWorld, func(any) error { panic("engine bug") })
	}()

	if table.Borrows(h) != 0 {
		t.Fatal("borrow not returned after panic")
	}
	if _, err := table.Remove(h, TypeWorld); err != nil {
		t.Fatalf("Remove after panic = %v", err)
	}
}

func TestTable_BorrowWrongType(t *testing.T) {
	table := NewTable()
	h, _ := table.Insert(TypeLibrary, "lib")

	called := false
	err := table.Borrow(h, TypeWorld, func(any) error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrTypeMismatch) || called {
		t.Fatalf("Borrow = %v, called = %v", err, called)
	}
	if table.Borrows(h) != 0 {
		t.Fatal("borrow leaked on type mismatch")
	}
}

type session struct{ name string }

func TestTyped(t *testing.T) {
	table := NewTable()
	worlds := NewTyped[*session](table, TypeWorld)
	libs := NewTyped[*session](table, TypeLibrary)

	hw, _ := worlds.Insert(&session{name: "w"})
	hl, _ := libs.Insert(&session{name: "l"})

	if worlds.Len() != 1 || libs.Len() != 1 || table.Len() != 2 {
		t.Fatalf("lens = %d %d %d", worlds.Len(), libs.Len(), table.Len())
	}

	if _, err := worlds.Get(hl); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("worlds.Get(library) = %v", err)
	}

	err := worlds.Borrow(hw, func(s *session) error {
		if s.name != "w" {
			t.Errorf("borrowed %q", s.name)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	s, err := libs.Remove(hl)
	if err != nil || s.name != "l" {
		t.Fatalf("Remove = %v, %v", s, err)
	}
}
