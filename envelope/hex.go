package envelope

import (
	"encoding/hex"
	"encoding/json"

	"github.com/vmihailenco/msgpack/v5"
)

// Hex is a byte slice that serializes as a lowercase base16 string.
type Hex []byte

func (h Hex) String() string {
	return hex.EncodeToString(h)
}

// MarshalJSON implements json.Marshaler.
func (h Hex) MarshalJSON() ([]byte, error) {
	return json.Marshal(hex.EncodeToString(h))
}

// UnmarshalJSON implements json.Unmarshaler. Upper and lower case digits
// are accepted.
func (h *Hex) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	*h = b
	return nil
}

// EncodeMsgpack implements msgpack.CustomEncoder.
func (h Hex) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.EncodeString(hex.EncodeToString(h))
}

// DecodeMsgpack implements msgpack.CustomDecoder.
func (h *Hex) DecodeMsgpack(dec *msgpack.Decoder) error {
	s, err := dec.DecodeString()
	if err != nil {
		return err
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	*h = b
	return nil
}
