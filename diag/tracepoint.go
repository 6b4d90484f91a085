package diag

import (
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// TracepointKind distinguishes the frames of a diagnostic's call trace.
type TracepointKind uint8

const (
	TraceCall TracepointKind = iota
	TraceShow
	TraceImport
)

// Tracepoint is one frame of a call trace: a function call (named or
// anonymous), a show rule for an element, or a module import.
type Tracepoint struct {
	Kind     TracepointKind
	Function *string
	Element  string
}

// Call is a tracepoint for a call to a named function.
func Call(function string) Tracepoint {
	return Tracepoint{Kind: TraceCall, Function: &function}
}

// AnonymousCall is a tracepoint for a call to a closure.
func AnonymousCall() Tracepoint {
	return Tracepoint{Kind: TraceCall}
}

// Show is a tracepoint for a show rule applied to element.
func Show(element string) Tracepoint {
	return Tracepoint{Kind: TraceShow, Element: element}
}

// Import is a tracepoint for a module import.
func Import() Tracepoint {
	return Tracepoint{Kind: TraceImport}
}

func (t Tracepoint) String() string {
	switch t.Kind {
	case TraceCall:
		if t.Function != nil {
			return fmt.Sprintf("error occurred in this call of function `%s`", *t.Function)
		}
		return "error occurred in this function call"
	case TraceShow:
		return fmt.Sprintf("error occurred while applying show rule to this %s", t.Element)
	case TraceImport:
		return "error occurred while importing this module"
	}
	return "error occurred here"
}

func (t Tracepoint) wire() tagged {
	switch t.Kind {
	case TraceCall:
		return tag("Call", "function", t.Function)
	case TraceShow:
		return tag("Show", "string", t.Element)
	}
	return tag("Import")
}

func (t *Tracepoint) fromWire(typ string, function *string, element string) error {
	switch typ {
	case "Call":
		*t = Tracepoint{Kind: TraceCall, Function: function}
	case "Show":
		*t = Tracepoint{Kind: TraceShow, Element: element}
	case "Import":
		*t = Tracepoint{Kind: TraceImport}
	default:
		return fmt.Errorf("unknown tracepoint type %q", typ)
	}
	return nil
}

type tracepointWire struct {
	Type     string  `json:"type" msgpack:"type"`
	Function *string `json:"function" msgpack:"function"`
	String   string  `json:"string" msgpack:"string"`
}

// MarshalJSON emits {"type":"Call","function":…}, {"type":"Show","string":…}
// or {"type":"Import"}.
func (t Tracepoint) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.wire())
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Tracepoint) UnmarshalJSON(b []byte) error {
	var w tracepointWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	return t.fromWire(w.Type, w.Function, w.String)
}

// EncodeMsgpack implements msgpack.CustomEncoder.
func (t Tracepoint) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.Encode(map[string]any(t.wire()))
}

// DecodeMsgpack implements msgpack.CustomDecoder.
func (t *Tracepoint) DecodeMsgpack(dec *msgpack.Decoder) error {
	var w tracepointWire
	if err := dec.Decode(&w); err != nil {
		return err
	}
	return t.fromWire(w.Type, w.Function, w.String)
}
