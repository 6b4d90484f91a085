package host

import (
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/docbridge/boundary"
	"github.com/wippyai/docbridge/diag"
	"github.com/wippyai/docbridge/envelope"
	"github.com/wippyai/docbridge/syntax"
	"github.com/wippyai/docbridge/world"
)

// Tickets tracks host resources that stay alive until the bridge has read
// the envelope referring to them.
type Tickets struct {
	mu      sync.Mutex
	next    int64
	pending map[int64][]byte
}

// NewTickets creates an empty ticket book.
func NewTickets() *Tickets {
	return &Tickets{pending: make(map[int64][]byte)}
}

// Issue retains data and returns its ticket.
func (t *Tickets) Issue(data []byte) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	ticket := t.next
	t.next++
	t.pending[ticket] = data
	return ticket
}

// Release drops the resource behind ticket. Install it with
// bridge.SetReleaseCallback.
func (t *Tickets) Release(ticket int64) {
	t.mu.Lock()
	delete(t.pending, ticket)
	t.mu.Unlock()
}

// Pending reports how many tickets were issued but not released.
func (t *Tickets) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// Responder builds world callbacks that answer through envelopes.
type Responder struct {
	Arena *boundary.Arena
	Codec envelope.Codec
	// Tickets, when set, ties each file reply to a ticket.
	Tickets *Tickets
	Logger  *zap.Logger
}

func (r *Responder) codec() envelope.Codec {
	if r.Codec == nil {
		return envelope.JSON
	}
	return r.Codec
}

func (r *Responder) logger() *zap.Logger {
	if r.Logger == nil {
		return Logger()
	}
	return r.Logger
}

// Files returns a file callback serving p.
func (r *Responder) Files(p Provider) world.FileCallback {
	return func(desc boundary.BufferHandle) envelope.Envelope {
		var id syntax.FileID
		err := r.Arena.Inspect(desc, func(b []byte) error {
			return r.codec().Unmarshal(b, &id)
		})

		var reply world.Reply
		switch {
		case err != nil:
			r.logger().Error("decode file descriptor", zap.Error(err))
			reply = envelope.Err[envelope.Hex](diag.Other("malformed file descriptor"))
		default:
			id = syntax.NewFileID(id.Package, id.Path)
			data, err := p.Read(id)
			if err != nil {
				reply = envelope.Err[envelope.Hex](asFileError(err))
			} else {
				reply = envelope.Ok[envelope.Hex, *diag.FileError](data)
			}
			r.logger().Debug("file request", zap.Stringer("file", id), zap.Bool("ok", err == nil))
		}
		return r.pack(reply)
	}
}

// Main returns a main callback naming path.
func (r *Responder) Main(path string) world.MainCallback {
	id := syntax.NewFileID(nil, path)
	return func() envelope.Envelope {
		env, err := envelope.Pack(r.Arena, r.codec(), id)
		if err != nil {
			r.logger().Error("pack main descriptor", zap.Error(err))
		}
		return env
	}
}

func (r *Responder) pack(reply world.Reply) envelope.Envelope {
	ticket := envelope.NoTicket
	if r.Tickets != nil {
		var retained []byte
		if reply.Ok != nil {
			retained = *reply.Ok
		}
		ticket = r.Tickets.Issue(retained)
	}
	env, err := envelope.PackTicket(r.Arena, r.codec(), ticket, reply)
	if err != nil {
		r.logger().Error("pack file reply", zap.Error(err))
		if r.Tickets != nil {
			r.Tickets.Release(ticket)
		}
	}
	return env
}

func asFileError(err error) *diag.FileError {
	if fe, ok := err.(*diag.FileError); ok {
		return fe
	}
	return diag.Other(err.Error())
}
