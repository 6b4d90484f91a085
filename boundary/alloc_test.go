package boundary

import "testing"

type fakeGrower struct {
	pages, max uint32
}

func (g *fakeGrower) Size() uint32 { return g.pages * PageSize }

func (g *fakeGrower) Grow(n uint32) (uint32, bool) {
	if g.pages+n > g.max {
		return 0, false
	}
	prev := g.pages
	g.pages += n
	return prev, true
}

func TestFreeList_AllocFree(t *testing.T) {
	mem := &fakeGrower{pages: 1, max: 1}
	f := NewFreeList(mem)
	total := f.FreeBytes()

	a, err := f.Alloc(10, 8)
	if err != nil {
		t.Fatal(err)
	}
	if a == 0 || a%8 != 0 {
		t.Errorf("ptr %d not aligned or null", a)
	}
	b, _ := f.Alloc(100, 8)
	if b < a+10 {
		t.Errorf("blocks overlap: a=%d b=%d", a, b)
	}

	f.Free(a, 10, 8)
	f.Free(b, 100, 8)
	if f.FreeBytes() != total {
		t.Errorf("FreeBytes = %d, want %d after freeing everything", f.FreeBytes(), total)
	}
	if len(f.free) != 1 {
		t.Errorf("free list not coalesced: %v", f.free)
	}
}

func TestFreeList_Reuse(t *testing.T) {
	f := NewFreeList(&fakeGrower{pages: 1, max: 1})

	a, _ := f.Alloc(64, 8)
	f.Alloc(64, 8)
	f.Free(a, 64, 8)

	c, _ := f.Alloc(32, 8)
	if c != a {
		t.Errorf("first fit should reuse freed block: got %d, want %d", c, a)
	}
}

func TestFreeList_Grow(t *testing.T) {
	mem := &fakeGrower{pages: 1, max: 3}
	f := NewFreeList(mem)

	ptr, err := f.Alloc(PageSize+10, 8)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if mem.pages != 2 {
		t.Errorf("pages = %d, want 2", mem.pages)
	}
	if uint64(ptr)+PageSize+10 > uint64(mem.Size()) {
		t.Errorf("allocation %d exceeds memory", ptr)
	}

	if _, err := f.Alloc(3*PageSize, 8); err == nil {
		t.Error("expected allocation beyond max pages to fail")
	}
}

func TestFreeList_BadAlign(t *testing.T) {
	f := NewFreeList(&fakeGrower{pages: 1, max: 1})
	for _, align := range []uint32{0, 3, 12} {
		if _, err := f.Alloc(8, align); err == nil {
			t.Errorf("Alloc with align %d should fail", align)
		}
	}
}
