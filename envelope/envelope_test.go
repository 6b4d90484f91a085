package envelope

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wippyai/docbridge/boundary"
	"github.com/wippyai/docbridge/errors"
)

func newArena(t *testing.T) *boundary.Arena {
	t.Helper()
	ctx := context.Background()
	a, err := boundary.NewLinearArena(ctx, boundary.DefaultMemoryConfig())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { a.Close(ctx) })
	return a
}

type descriptor struct {
	Pack *string `json:"pack"`
	Path string  `json:"path"`
}

func TestPackUnpack(t *testing.T) {
	for _, codec := range []Codec{JSON, Msgpack} {
		t.Run(codec.Name(), func(t *testing.T) {
			a := newArena(t)
			in := descriptor{Path: "/main.typ"}

			env, err := Pack(a, codec, in)
			if err != nil {
				t.Fatal(err)
			}
			if env.Ticket != NoTicket || env.HasTicket() {
				t.Errorf("Pack ticket = %d, want NoTicket", env.Ticket)
			}

			out, err := Unpack[descriptor](a, codec, nil, env)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(in, out); diff != "" {
				t.Errorf("round trip (-want +got):\n%s", diff)
			}
			if a.Live() != 0 {
				t.Errorf("Live = %d after Unpack", a.Live())
			}
		})
	}
}

func TestUnpackReleasesTicketOnce(t *testing.T) {
	a := newArena(t)
	reg := NewRegistry(nil)

	var released []int64
	var liveAtRelease int
	reg.Set(func(ticket int64) {
		released = append(released, ticket)
		liveAtRelease = a.Live()
	})

	env, err := PackTicket(a, JSON, 7, "payload")
	if err != nil {
		t.Fatal(err)
	}

	s, err := Unpack[string](a, JSON, reg, env)
	if err != nil || s != "payload" {
		t.Fatalf("Unpack = %q, %v", s, err)
	}
	if len(released) != 1 || released[0] != 7 {
		t.Fatalf("released = %v, want [7]", released)
	}
	if liveAtRelease != 1 {
		t.Errorf("release should run before the payload is consumed")
	}

	_, err = Unpack[string](a, JSON, reg, env)
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseBoundary, Kind: errors.KindOwnership}) {
		t.Fatalf("replayed Unpack = %v, want ownership error", err)
	}
	if len(released) != 1 {
		t.Fatalf("replay re-triggered release: %v", released)
	}
}

func TestUnpackDecodeFailure(t *testing.T) {
	a := newArena(t)
	env, _ := Pack(a, JSON, "not a number")

	if _, err := Unpack[int](a, JSON, nil, env); err == nil {
		t.Fatal("expected decode error")
	}
	if a.Live() != 0 {
		t.Error("payload should be consumed even when decoding fails")
	}
}

func TestDiscard(t *testing.T) {
	a := newArena(t)
	reg := NewRegistry(nil)
	n := 0
	reg.Set(func(int64) { n++ })

	env, _ := PackTicket(a, JSON, 3, 42)
	if err := Discard(a, reg, env); err != nil {
		t.Fatal(err)
	}
	if n != 1 || a.Live() != 0 {
		t.Errorf("n = %d, live = %d", n, a.Live())
	}
}

func TestCodecByName(t *testing.T) {
	for name, want := range map[string]Codec{"": JSON, "json": JSON, "msgpack": Msgpack} {
		got, err := CodecByName(name)
		if err != nil || got != want {
			t.Errorf("CodecByName(%q) = %v, %v", name, got, err)
		}
	}
	if _, err := CodecByName("xml"); err == nil {
		t.Error("expected error for unknown codec")
	}
}
