package envelope

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wippyai/docbridge/errors"
)

func TestResultJSONShape(t *testing.T) {
	ok, err := JSON.Marshal(Ok[Hex, string](Hex{0xca, 0xfe}))
	if err != nil {
		t.Fatal(err)
	}
	if string(ok) != `{"Ok":"cafe"}` {
		t.Errorf("Ok = %s", ok)
	}

	failed, _ := JSON.Marshal(Err[Hex, string]("NotFound"))
	if string(failed) != `{"Err":"NotFound"}` {
		t.Errorf("Err = %s", failed)
	}

	empty, _ := JSON.Marshal(Ok[[]string, string]([]string{}))
	if string(empty) != `{"Ok":[]}` {
		t.Errorf("empty Ok = %s", empty)
	}
}

func TestResultDecode(t *testing.T) {
	for _, codec := range []Codec{JSON, Msgpack} {
		t.Run(codec.Name(), func(t *testing.T) {
			data, err := codec.Marshal(Err[Hex, []string]([]string{"a", "b"}))
			if err != nil {
				t.Fatal(err)
			}
			var r Result[Hex, []string]
			if err := codec.Unmarshal(data, &r); err != nil {
				t.Fatal(err)
			}
			_, e, ok := r.Unpack()
			if ok || !cmp.Equal(e, []string{"a", "b"}) {
				t.Errorf("Unpack = %v, %v", e, ok)
			}

			data, _ = codec.Marshal(Ok[Hex, []string](Hex("png")))
			r = Result[Hex, []string]{}
			if err := codec.Unmarshal(data, &r); err != nil {
				t.Fatal(err)
			}
			v, _, ok := r.Unpack()
			if !ok || string(v) != "png" {
				t.Errorf("Unpack = %q, %v", v, ok)
			}
		})
	}
}

func TestHex(t *testing.T) {
	var h Hex
	if err := JSON.Unmarshal([]byte(`"DEADbeef"`), &h); err != nil {
		t.Fatal(err)
	}
	if h.String() != "deadbeef" {
		t.Errorf("Hex = %s", h)
	}
	if err := JSON.Unmarshal([]byte(`"xyz"`), &h); err == nil {
		t.Error("expected error for invalid hex")
	}
}

func TestExcepted(t *testing.T) {
	a := newArena(t)

	ok := Succeed(3)
	if ok.Failed() || !ok.Comment.IsNull() {
		t.Fatalf("Succeed = %+v", ok)
	}
	exc, err := ok.Exception(a, JSON)
	if exc != nil || err != nil {
		t.Fatalf("Exception on success = %v, %v", exc, err)
	}

	thrown := errors.Throw(errors.IllegalArgument, "library handle is zero", nil)
	failed := Fail(a, JSON, thrown)
	if !failed.Failed() || failed.Comment.IsNull() {
		t.Fatalf("Fail = %+v", failed)
	}

	got, err := failed.Exception(a, JSON)
	if err != nil {
		t.Fatal(err)
	}
	if got.Kind != errors.IllegalArgument || *got.Message != "library handle is zero" {
		t.Errorf("decoded = %+v", got)
	}
	if a.Live() != 0 {
		t.Errorf("Live = %d", a.Live())
	}
}
