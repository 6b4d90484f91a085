package envelope

import (
	"fmt"

	"github.com/wippyai/docbridge/boundary"
	"github.com/wippyai/docbridge/errors"
)

// NoTicket marks an envelope without a host resource to release.
const NoTicket int64 = -1

// Envelope is a serialized payload and an optional release ticket.
type Envelope struct {
	Ticket int64                 `json:"ticket"`
	Value  boundary.BufferHandle `json:"value"`
}

// HasTicket reports whether unpacking must release a host resource.
func (e Envelope) HasTicket() bool {
	return e.Ticket >= 0
}

// Pack serializes v into the arena with no ticket.
func Pack[T any](arena *boundary.Arena, codec Codec, v T) (Envelope, error) {
	return PackTicket(arena, codec, NoTicket, v)
}

// PackTicket serializes v with an explicit ticket. Hosts use it when the
// payload is tied to a resource they must reclaim after the bridge reads it.
func PackTicket[T any](arena *boundary.Arena, codec Codec, ticket int64, v T) (Envelope, error) {
	data, err := codec.Marshal(v)
	if err != nil {
		return Envelope{}, errors.Serialization(errors.PhaseBoundary, fmt.Sprintf("%T", v), err)
	}
	h, err := arena.Wrap(data)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Ticket: ticket, Value: h}, nil
}

// Unpack consumes the envelope and decodes its payload. A valid ticket is
// handed to releaser before decoding. Only the caller that claims the
// payload releases the ticket, so a replayed envelope fails with an
// ownership error and does not release its ticket again.
func Unpack[T any](arena *boundary.Arena, codec Codec, releaser Releaser, env Envelope) (T, error) {
	var out T
	if err := claim(arena, env); err != nil {
		return out, err
	}

	if env.HasTicket() && releaser != nil {
		releaser.Release(env.Ticket)
	}

	data, err := arena.Unwrap(env.Value)
	if err != nil {
		return out, err
	}
	if err := codec.Unmarshal(data, &out); err != nil {
		return out, errors.Serialization(errors.PhaseBoundary, fmt.Sprintf("%T", out), err)
	}
	return out, nil
}

// Discard consumes the envelope without decoding it.
func Discard(arena *boundary.Arena, releaser Releaser, env Envelope) error {
	if err := claim(arena, env); err != nil {
		return err
	}
	if env.HasTicket() && releaser != nil {
		releaser.Release(env.Ticket)
	}
	return arena.Release(env.Value)
}

func claim(arena *boundary.Arena, env Envelope) error {
	if err := arena.Claim(env.Value); err != nil {
		return errors.New(errors.PhaseBoundary, errors.KindOwnership).
			Path("unpack").Value(env.Ticket).
			Detail("envelope payload %s already consumed", env.Value).Cause(err).Build()
	}
	return nil
}
