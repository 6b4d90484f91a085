package cache

import (
	"encoding/binary"
	"fmt"

	"github.com/dchest/siphash"
)

// Fingerprint is a 128-bit hash of a load result. Equal fingerprints are
// treated as equal content.
type Fingerprint struct {
	Hi, Lo uint64
}

// Fingerprintable errors supply the bytes their fingerprint is computed
// from. Other errors are fingerprinted by their message.
type Fingerprintable interface {
	FingerprintBytes() []byte
}

const (
	tagBytes byte = iota
	tagError
)

var sipKey = []byte("docbridge/cache\x00")

func hash(tag byte, data []byte) Fingerprint {
	h := siphash.New128(sipKey)
	h.Write([]byte{tag})
	h.Write(data)
	sum := h.Sum(nil)
	return Fingerprint{
		Hi: binary.BigEndian.Uint64(sum[:8]),
		Lo: binary.BigEndian.Uint64(sum[8:]),
	}
}

// OfBytes fingerprints loaded content.
func OfBytes(data []byte) Fingerprint {
	return hash(tagBytes, data)
}

// OfError fingerprints a load failure. The tag keeps an error from ever
// matching content with the same bytes.
func OfError(err error) Fingerprint {
	if f, ok := err.(Fingerprintable); ok {
		return hash(tagError, f.FingerprintBytes())
	}
	return hash(tagError, []byte(err.Error()))
}

// IsZero reports whether f was never computed.
func (f Fingerprint) IsZero() bool {
	return f.Hi == 0 && f.Lo == 0
}

func (f Fingerprint) String() string {
	return fmt.Sprintf("%016x%016x", f.Hi, f.Lo)
}
