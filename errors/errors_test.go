package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:  PhaseBoundary,
				Kind:   KindOwnership,
				Path:   []string{"compile_svg", "world"},
				Type:   "BufferHandle",
				Detail: "already consumed",
			},
			contains: []string{"[boundary]", "ownership", "compile_svg.world", "BufferHandle", "already consumed"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseCache,
				Kind:  KindOutOfBounds,
			},
			contains: []string{"[cache]", "out_of_bounds"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseBoundary,
				Kind:   KindAllocation,
				Detail: "memory full",
				Cause:  errors.New("underlying error"),
			},
			contains: []string{"[boundary]", "allocation", "memory full", "caused by", "underlying error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{
		Phase: PhaseWorld,
		Kind:  KindInvalidData,
		Cause: cause,
	}

	if !errors.Is(err.Unwrap(), cause) {
		t.Error("Unwrap did not return cause")
	}
	if !errors.Is(errors.Unwrap(err), cause) {
		t.Error("errors.Unwrap did not return cause")
	}
}

func TestError_Is(t *testing.T) {
	err := &Error{
		Phase: PhaseBoundary,
		Kind:  KindOwnership,
		Path:  []string{"foo"},
	}

	if !err.Is(&Error{Phase: PhaseBoundary, Kind: KindOwnership}) {
		t.Error("Is should match same phase and kind")
	}
	if err.Is(&Error{Phase: PhaseCache, Kind: KindOwnership}) {
		t.Error("Is should not match different phase")
	}
	if err.Is(&Error{Phase: PhaseBoundary, Kind: KindOutOfBounds}) {
		t.Error("Is should not match different kind")
	}

	wrapped := Wrap(PhaseCompile, KindCallback, err, "outer")
	if !errors.Is(wrapped, &Error{Phase: PhaseBoundary, Kind: KindOwnership}) {
		t.Error("errors.Is should find the wrapped error")
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(PhaseBoundary, KindOwnership).
		Path("free_string").
		Type("BufferHandle").
		Value(42).
		Cause(cause).
		Detail("handle %d already %s", 42, "consumed").
		Build()

	if err.Phase != PhaseBoundary {
		t.Errorf("Phase = %v, want %v", err.Phase, PhaseBoundary)
	}
	if err.Kind != KindOwnership {
		t.Errorf("Kind = %v, want %v", err.Kind, KindOwnership)
	}
	if len(err.Path) != 1 || err.Path[0] != "free_string" {
		t.Errorf("Path = %v, want [free_string]", err.Path)
	}
	if err.Type != "BufferHandle" {
		t.Errorf("Type = %v, want 'BufferHandle'", err.Type)
	}
	if err.Value != 42 {
		t.Errorf("Value = %v, want 42", err.Value)
	}
	if !errors.Is(err.Cause, cause) {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if err.Detail != "handle 42 already consumed" {
		t.Errorf("Detail = %q", err.Detail)
	}
}

func TestConvenienceConstructors(t *testing.T) {
	t.Run("Ownership", func(t *testing.T) {
		err := Ownership(PhaseBoundary, "handle %d is borrowed", 7)
		if err.Kind != KindOwnership || err.Detail != "handle 7 is borrowed" {
			t.Errorf("got %v", err)
		}
	})

	t.Run("InvalidHandle", func(t *testing.T) {
		err := InvalidHandle(PhaseWorld, "world", int64(0))
		if err.Kind != KindInvalidHandle {
			t.Errorf("Kind = %v, want %v", err.Kind, KindInvalidHandle)
		}
		if !strings.Contains(err.Error(), "world handle 0") {
			t.Errorf("Error() = %q", err.Error())
		}
	})

	t.Run("InvalidUTF8", func(t *testing.T) {
		err := InvalidUTF8(PhaseWorld, []string{"source"}, []byte{0xff, 0xfe})
		if err.Kind != KindInvalidUTF8 {
			t.Errorf("Kind = %v, want %v", err.Kind, KindInvalidUTF8)
		}
		if !strings.Contains(err.Detail, "fffe") {
			t.Errorf("Detail = %q, want hex preview", err.Detail)
		}
	})

	t.Run("AllocationFailed", func(t *testing.T) {
		err := AllocationFailed(PhaseBoundary, 1024, 8)
		if err.Kind != KindAllocation {
			t.Errorf("Kind = %v, want %v", err.Kind, KindAllocation)
		}
		if !strings.Contains(err.Detail, "1024") {
			t.Errorf("Detail = %v, should contain size", err.Detail)
		}
	})

	t.Run("OutOfBounds", func(t *testing.T) {
		err := OutOfBounds(PhaseResolve, []string{"span"}, 10, 5)
		if err.Kind != KindOutOfBounds {
			t.Errorf("Kind = %v, want %v", err.Kind, KindOutOfBounds)
		}
		if err.Value != 10 {
			t.Errorf("Value = %v, want 10", err.Value)
		}
	})

	t.Run("Overflow", func(t *testing.T) {
		err := Overflow(PhaseBoundary, []string{"len"}, 1<<40, "u32")
		if err.Kind != KindOverflow || err.Type != "u32" {
			t.Errorf("got %v", err)
		}
	})

	t.Run("Callback", func(t *testing.T) {
		cause := errors.New("host gone")
		err := Callback("file", cause)
		if err.Phase != PhaseHost || !errors.Is(err, cause) {
			t.Errorf("got %v", err)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		err := NotFound(PhasePackage, "package", "@preview/foo:1.0.0")
		if !strings.Contains(err.Error(), `"@preview/foo:1.0.0" not found`) {
			t.Errorf("Error() = %q", err.Error())
		}
	})
}
