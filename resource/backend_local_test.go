package resource

import (
	"errors"
	"sync"
	"testing"
)

func TestLocalBackend_Basic(t *testing.T) {
	b := NewLocalBackend()

	handle, err := b.Create(TypeWorld, "test value")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if handle == 0 {
		t.Fatal("Expected non-zero handle")
	}

	val, typeID, ok := b.Get(handle)
	if !ok {
		t.Fatal("Get failed")
	}
	if val != "test value" || typeID != TypeWorld {
		t.Fatalf("Get = %v, %v", val, typeID)
	}

	val, _, err = b.Drop(handle)
	if err != nil {
		t.Fatalf("Drop failed: %v", err)
	}
	if val != "test value" {
		t.Fatalf("Expected 'test value', got %v", val)
	}

	if _, _, ok := b.Get(handle); ok {
		t.Fatal("Expected Get to fail after Drop")
	}
	if _, _, err := b.Drop(handle); !errors.Is(err, ErrInvalidHandle) {
		t.Fatalf("double Drop = %v, want ErrInvalidHandle", err)
	}
}

func TestLocalBackend_Borrow(t *testing.T) {
	b := NewLocalBackend()
	handle, _ := b.Create(TypeWorld, "value")

	if _, _, ok := b.Borrow(handle); !ok {
		t.Fatal("Borrow failed")
	}

	if _, _, err := b.Drop(handle); !errors.Is(err, ErrOutstandingBorrow) {
		t.Fatalf("Drop with borrow = %v, want ErrOutstandingBorrow", err)
	}

	if !b.ReturnBorrow(handle) {
		t.Fatal("ReturnBorrow failed")
	}
	if b.ReturnBorrow(handle) {
		t.Fatal("ReturnBorrow without borrow should fail")
	}

	if _, _, err := b.Drop(handle); err != nil {
		t.Fatalf("Drop after ReturnBorrow failed: %v", err)
	}
}

func TestLocalBackend_MultipleBorrows(t *testing.T) {
	b := NewLocalBackend()
	handle, _ := b.Create(TypeLibrary, "value")

	for i := 0; i < 3; i++ {
		if _, _, ok := b.Borrow(handle); !ok {
			t.Fatalf("Borrow %d failed", i)
		}
	}
	if got := b.Borrows(handle); got != 3 {
		t.Fatalf("Borrows = %d, want 3", got)
	}

	for i := 0; i < 3; i++ {
		if _, _, err := b.Drop(handle); err == nil {
			t.Fatalf("Drop should fail with %d borrows", 3-i)
		}
		b.ReturnBorrow(handle)
	}

	if _, _, err := b.Drop(handle); err != nil {
		t.Fatal("Drop should succeed after all borrows returned")
	}
}

func TestLocalBackend_HandleReuse(t *testing.T) {
	b := NewLocalBackend()

	h1, _ := b.Create(TypeWorld, "first")
	h2, _ := b.Create(TypeWorld, "second")
	b.Drop(h1)

	h3, _ := b.Create(TypeLibrary, "third")
	if h3 != h1 {
		t.Errorf("Expected handle reuse: got %d, want %d", h3, h1)
	}

	val, typeID, _ := b.Get(h3)
	if val != "third" || typeID != TypeLibrary {
		t.Errorf("reused slot = %v, %v", val, typeID)
	}
	if val, _, _ := b.Get(h2); val != "second" {
		t.Errorf("h2 = %v, want second", val)
	}
}

type dropCounter struct{ n *int }

func (d dropCounter) Drop() { *d.n++ }

func TestLocalBackend_Close(t *testing.T) {
	b := NewLocalBackend()
	n := 0
	b.Create(TypeWorld, dropCounter{&n})
	b.Create(TypeWorld, dropCounter{&n})

	if err := b.Close(); err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("Dropper called %d times, want 2", n)
	}

	_, err := b.Create(TypeWorld, "after close")
	if !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
	if err := b.Close(); err != nil {
		t.Errorf("second Close = %v", err)
	}
}

func TestLocalBackend_Concurrent(t *testing.T) {
	b := NewLocalBackend()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, err := b.Create(TypeWorld, i)
			if err != nil {
				t.Errorf("Create: %v", err)
				return
			}
			b.Borrow(h)
			b.ReturnBorrow(h)
			if _, _, err := b.Drop(h); err != nil {
				t.Errorf("Drop: %v", err)
			}
		}(i)
	}

	wg.Wait()
	if b.Len() != 0 {
		t.Errorf("Len = %d, want 0", b.Len())
	}
}

func TestLocalBackend_Each(t *testing.T) {
	b := NewLocalBackend()
	b.Create(TypeWorld, "a")
	h, _ := b.Create(TypeWorld, "b")
	b.Create(TypeLibrary, "c")
	b.Drop(h)

	var seen []any
	b.Each(func(_ Handle, _ TypeID, v any) bool {
		seen = append(seen, v)
		return true
	})
	if len(seen) != 2 || seen[0] != "a" || seen[1] != "c" {
		t.Errorf("Each saw %v", seen)
	}
}

func TestLocalBackend_InvalidHandle(t *testing.T) {
	b := NewLocalBackend()

	for _, h := range []Handle{0, 1, 999} {
		if _, _, ok := b.Get(h); ok {
			t.Errorf("Get(%d) should fail", h)
		}
		if _, _, ok := b.Borrow(h); ok {
			t.Errorf("Borrow(%d) should fail", h)
		}
		if b.ReturnBorrow(h) {
			t.Errorf("ReturnBorrow(%d) should fail", h)
		}
	}
}
