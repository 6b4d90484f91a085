package world

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// NowKind selects the clock of a world.
type NowKind uint8

const (
	// NowSystem reads the system clock once per compilation pass.
	NowSystem NowKind = iota
	// NowFixed always reports the same instant, for reproducible output.
	NowFixed
)

// Now is the clock configuration of a world.
type Now struct {
	Kind  NowKind
	Stamp time.Time
}

// Fixed returns a clock stopped at t.
func Fixed(t time.Time) *Now {
	return &Now{Kind: NowFixed, Stamp: t.UTC()}
}

// System returns the system clock.
func System() *Now {
	return &Now{Kind: NowSystem}
}

type nowWire struct {
	Type   string `json:"type" msgpack:"type"`
	Millis *int64 `json:"millis,omitempty" msgpack:"millis,omitempty"`
	Nanos  *int32 `json:"nanos,omitempty" msgpack:"nanos,omitempty"`
}

func (n Now) wire() nowWire {
	if n.Kind == NowSystem {
		return nowWire{Type: "System"}
	}
	millis := n.Stamp.UnixMilli()
	nanos := int32(n.Stamp.Nanosecond())
	return nowWire{Type: "Fixed", Millis: &millis, Nanos: &nanos}
}

// fromWire decodes a stamp. nanos replaces the sub-second part of millis.
func (n *Now) fromWire(w nowWire) error {
	switch w.Type {
	case "System":
		*n = Now{Kind: NowSystem}
		return nil
	case "Fixed":
		if w.Millis == nil {
			return fmt.Errorf("fixed clock requires millis")
		}
		var nanos int32
		if w.Nanos != nil {
			nanos = *w.Nanos
		}
		if nanos < 0 || nanos >= int32(time.Second) {
			return fmt.Errorf("invalid nanoseconds %d", nanos)
		}
		sec := *w.Millis / 1000
		if *w.Millis%1000 < 0 {
			sec--
		}
		*n = Now{Kind: NowFixed, Stamp: time.Unix(sec, int64(nanos)).UTC()}
		return nil
	}
	return fmt.Errorf("unknown clock type %q", w.Type)
}

// MarshalJSON emits {"type":"Fixed","millis":…,"nanos":…} or {"type":"System"}.
func (n Now) MarshalJSON() ([]byte, error) {
	return json.Marshal(n.wire())
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *Now) UnmarshalJSON(b []byte) error {
	var w nowWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	return n.fromWire(w)
}

// EncodeMsgpack implements msgpack.CustomEncoder.
func (n Now) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.Encode(n.wire())
}

// DecodeMsgpack implements msgpack.CustomDecoder.
func (n *Now) DecodeMsgpack(dec *msgpack.Decoder) error {
	var w nowWire
	if err := dec.Decode(&w); err != nil {
		return err
	}
	return n.fromWire(w)
}
