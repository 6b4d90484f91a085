package envelope

import (
	"sync"

	"go.uber.org/zap"
)

// Releaser frees host resources named by tickets.
type Releaser interface {
	// Release frees the resource behind ticket and reports whether a
	// callback actually ran.
	Release(ticket int64) bool
}

// Registry is a Releaser whose callback is configured exactly once. A
// second Set fails without replacing the first callback. It keeps no record
// of released tickets; Unpack and Discard release a ticket only for the
// caller that claims the envelope payload.
type Registry struct {
	mu     sync.Mutex
	fn     func(ticket int64)
	logger *zap.Logger
}

// NewRegistry returns a registry with no callback configured.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{logger: logger}
}

// Set installs the release callback. It returns false if one is already set.
func (r *Registry) Set(fn func(ticket int64)) bool {
	if fn == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fn != nil {
		r.logger.Warn("release callback already configured")
		return false
	}
	r.fn = fn
	return true
}

// Configured reports whether a callback has been installed.
func (r *Registry) Configured() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fn != nil
}

// Release invokes the callback for ticket unless it is the NoTicket
// sentinel.
func (r *Registry) Release(ticket int64) bool {
	if ticket < 0 {
		return false
	}

	r.mu.Lock()
	fn := r.fn
	if fn == nil {
		r.mu.Unlock()
		r.logger.Warn("ticket not released: no release callback", zap.Int64("ticket", ticket))
		return false
	}
	r.mu.Unlock()

	fn(ticket)
	return true
}
