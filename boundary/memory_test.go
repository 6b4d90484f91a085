package boundary

import (
	"context"
	"testing"
)

func TestLinearMemory_ReadWrite(t *testing.T) {
	ctx := context.Background()
	mem, err := NewLinearMemory(ctx, MemoryConfig{InitialPages: 1, MaxPages: 4})
	if err != nil {
		t.Fatalf("NewLinearMemory: %v", err)
	}
	defer mem.Close(ctx)

	if mem.Size() != PageSize {
		t.Fatalf("Size = %d, want %d", mem.Size(), PageSize)
	}

	if err := mem.Write(100, []byte("hello")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	data, err := mem.Read(100, 5)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("Read = %q, want hello", data)
	}

	if err := mem.WriteU32(200, 0xdeadbeef); err != nil {
		t.Fatal(err)
	}
	v, err := mem.ReadU32(200)
	if err != nil || v != 0xdeadbeef {
		t.Errorf("ReadU32 = %#x, %v", v, err)
	}

	if _, err := mem.Read(PageSize-2, 4); err == nil {
		t.Error("expected out of bounds read to fail")
	}
	if err := mem.Write(PageSize, []byte{1}); err == nil {
		t.Error("expected out of bounds write to fail")
	}
}

func TestLinearMemory_Grow(t *testing.T) {
	ctx := context.Background()
	mem, err := NewLinearMemory(ctx, MemoryConfig{InitialPages: 1, MaxPages: 2})
	if err != nil {
		t.Fatal(err)
	}
	defer mem.Close(ctx)

	prev, ok := mem.Grow(1)
	if !ok || prev != 1 {
		t.Fatalf("Grow(1) = %d, %v", prev, ok)
	}
	if mem.Size() != 2*PageSize {
		t.Errorf("Size = %d after grow", mem.Size())
	}
	if _, ok := mem.Grow(1); ok {
		t.Error("Grow past MaxPages should fail")
	}
}

func TestNewLinearMemory_InvalidConfig(t *testing.T) {
	if _, err := NewLinearMemory(context.Background(), MemoryConfig{InitialPages: 4, MaxPages: 2}); err == nil {
		t.Fatal("expected error when max < initial")
	}
}

func TestAppendULEB(t *testing.T) {
	tests := []struct {
		v    uint32
		want []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x01}},
		{127, []byte{0x7f}},
		{128, []byte{0x80, 0x01}},
		{4096, []byte{0x80, 0x20}},
	}
	for _, tt := range tests {
		got := appendULEB(nil, tt.v)
		if string(got) != string(tt.want) {
			t.Errorf("appendULEB(%d) = %x, want %x", tt.v, got, tt.want)
		}
	}
}
