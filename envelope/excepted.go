package envelope

import (
	"github.com/wippyai/docbridge/boundary"
	"github.com/wippyai/docbridge/errors"
)

// Excepted is a handle or an exception. On success Handle is non-zero and
// Comment is the null buffer. On failure Handle is 0 and Comment holds the
// serialized exception.
type Excepted struct {
	Comment boundary.BufferHandle `json:"comment"`
	Handle  int64                 `json:"handle"`
}

// Failed reports whether the call produced an exception.
func (e Excepted) Failed() bool {
	return e.Handle == 0
}

// Succeed wraps a valid handle.
func Succeed(handle int64) Excepted {
	return Excepted{Handle: handle}
}

// Fail serializes exc into the arena. If that fails too, the serialization
// failure is recorded as a suppressed exception of a plain record.
func Fail(arena *boundary.Arena, codec Codec, exc *errors.Exception) Excepted {
	data, err := codec.Marshal(exc)
	if err != nil {
		fallback := errors.Throw(errors.SerializationFailure, exc.Error(), nil)
		fallback.Suppress(errors.FromError(errors.SerializationFailure, err))
		if data, err = codec.Marshal(fallback); err != nil {
			return Excepted{}
		}
	}
	h, err := arena.Wrap(data)
	if err != nil {
		return Excepted{}
	}
	return Excepted{Comment: h}
}

// Exception consumes the comment of a failed Excepted. It returns nil for
// a successful one.
func (e Excepted) Exception(arena *boundary.Arena, codec Codec) (*errors.Exception, error) {
	if !e.Failed() || e.Comment.IsNull() {
		return nil, nil
	}
	data, err := arena.Unwrap(e.Comment)
	if err != nil {
		return nil, err
	}
	var exc errors.Exception
	if err := codec.Unmarshal(data, &exc); err != nil {
		return nil, errors.Serialization(errors.PhaseBoundary, "Exception", err)
	}
	return &exc, nil
}
