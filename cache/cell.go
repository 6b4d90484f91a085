package cache

// Cell memoizes one derived value per compilation pass and reuses it
// across passes while the loaded content keeps the same fingerprint.
// A Cell is not safe for concurrent use; the owning world serializes access.
type Cell[T any] struct {
	value       T
	err         error
	has         bool
	fingerprint Fingerprint
	accessed    bool
}

// Loader fetches raw content.
type Loader func() ([]byte, error)

// Transform derives a value from content. prev is the last successfully
// derived value when hasPrev is true, so the transform can reuse it.
type Transform[T any] func(data []byte, prev T, hasPrev bool) (T, error)

// GetOrInit returns the value for the current pass.
//
// The first call in a pass loads and fingerprints the content. If the
// fingerprint matches the stored one, the stored result is returned without
// running transform. Failures of load or transform are cached like values.
// Later calls in the same pass return the stored result without loading.
func (c *Cell[T]) GetOrInit(load Loader, transform Transform[T]) (T, error) {
	if c.accessed && c.has {
		return c.value, c.err
	}
	c.accessed = true

	data, err := load()
	var fp Fingerprint
	if err != nil {
		fp = OfError(err)
	} else {
		fp = OfBytes(data)
	}

	if c.has && fp == c.fingerprint {
		return c.value, c.err
	}
	c.fingerprint = fp

	var prev T
	hasPrev := c.has && c.err == nil
	if hasPrev {
		prev = c.value
	}

	if err != nil {
		var zero T
		c.value, c.err = zero, err
	} else {
		c.value, c.err = transform(data, prev, hasPrev)
	}
	c.has = true
	return c.value, c.err
}

// Accessed reports whether the cell was consulted in the current pass.
func (c *Cell[T]) Accessed() bool {
	return c.accessed
}

// Fingerprint returns the fingerprint of the last load.
func (c *Cell[T]) Fingerprint() Fingerprint {
	return c.fingerprint
}

// Reset starts a new pass. The stored value and fingerprint are kept.
func (c *Cell[T]) Reset() {
	c.accessed = false
}
