package compiler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Value is any value an engine evaluates to: nil (none), bool, int64,
// float64, string, Length, Label, Datetime, []Value, *Dict, *Element, or an
// engine-specific type implementing Typed.
type Value = any

// Typed is implemented by engine-specific values.
type Typed interface {
	TypeName() string
}

// TypeName names the type of v the way diagnostics spell it.
func TypeName(v Value) string {
	switch v := v.(type) {
	case nil:
		return "none"
	case bool:
		return "boolean"
	case int64:
		return "integer"
	case float64:
		return "float"
	case string:
		return "string"
	case Length:
		return "length"
	case Label:
		return "label"
	case Datetime:
		return "datetime"
	case []Value:
		return "array"
	case *Dict:
		return "dictionary"
	case *Element:
		return "content"
	case Typed:
		return v.TypeName()
	}
	return fmt.Sprintf("%T", v)
}

// Display converts v to the text it shows as when placed in markup.
func Display(v Value) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case *Element:
		return v.PlainText()
	}
	return Repr(v)
}

// Repr is the code representation of v.
func Repr(v Value) string {
	switch v := v.(type) {
	case nil:
		return "none"
	case bool:
		return strconv.FormatBool(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		s := strconv.FormatFloat(v, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		return s
	case string:
		return strconv.Quote(v)
	case Length:
		return v.String()
	case Label:
		return v.String()
	case Datetime:
		return v.String()
	case []Value:
		parts := make([]string, len(v))
		for i, x := range v {
			parts[i] = Repr(x)
		}
		if len(parts) == 1 {
			return "(" + parts[0] + ",)"
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case *Dict:
		if v.Len() == 0 {
			return "(:)"
		}
		parts := make([]string, 0, v.Len())
		v.Each(func(k string, x Value) {
			parts = append(parts, k+": "+Repr(x))
		})
		return "(" + strings.Join(parts, ", ") + ")"
	case *Element:
		return "[" + v.PlainText() + "]"
	case fmt.Stringer:
		return v.String()
	}
	return fmt.Sprintf("%v", v)
}

// Length is an absolute length in points.
type Length float64

func (l Length) String() string {
	return strconv.FormatFloat(float64(l), 'f', -1, 64) + "pt"
}

// MarshalText implements encoding.TextMarshaler.
func (l Length) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// Label names a piece of content.
type Label string

func (l Label) String() string {
	return "<" + string(l) + ">"
}

// MarshalText implements encoding.TextMarshaler.
func (l Label) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// Datetime is a calendar date.
type Datetime struct {
	time.Time
}

func (d Datetime) String() string {
	return d.Format("2006-01-02")
}

// MarshalText implements encoding.TextMarshaler.
func (d Datetime) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Dict is an insertion-ordered dictionary.
type Dict struct {
	keys []string
	m    map[string]Value
}

// NewDict creates a dictionary from alternating keys and values.
func NewDict(kv ...any) *Dict {
	d := &Dict{m: make(map[string]Value)}
	for i := 0; i+1 < len(kv); i += 2 {
		d.Set(kv[i].(string), kv[i+1])
	}
	return d
}

// Set inserts or replaces k. Replacing keeps the original position.
func (d *Dict) Set(k string, v Value) {
	if _, ok := d.m[k]; !ok {
		d.keys = append(d.keys, k)
	}
	d.m[k] = v
}

// Get returns the value of k.
func (d *Dict) Get(k string) (Value, bool) {
	if d == nil {
		return nil, false
	}
	v, ok := d.m[k]
	return v, ok
}

// Len returns the number of entries.
func (d *Dict) Len() int {
	if d == nil {
		return 0
	}
	return len(d.keys)
}

// Keys returns the keys in insertion order.
func (d *Dict) Keys() []string {
	if d == nil {
		return nil
	}
	return append([]string(nil), d.keys...)
}

// Each visits the entries in order.
func (d *Dict) Each(fn func(k string, v Value)) {
	if d == nil {
		return
	}
	for _, k := range d.keys {
		fn(k, d.m[k])
	}
}

// Clone returns a shallow copy.
func (d *Dict) Clone() *Dict {
	c := NewDict()
	d.Each(c.Set)
	return c
}

// MarshalJSON keeps insertion order.
func (d *Dict) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range d.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(d.m[k])
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalYAML keeps insertion order.
func (d *Dict) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, k := range d.keys {
		var v yaml.Node
		if err := v.Encode(d.m[k]); err != nil {
			return nil, err
		}
		node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: k}, &v)
	}
	return node, nil
}
