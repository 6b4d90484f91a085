package compiler

import (
	"strings"

	"github.com/wippyai/docbridge/syntax"
)

// Location is where a locatable element ended up after layout.
type Location struct {
	Page int     `json:"page"`
	Y    float64 `json:"y"`
}

// Element is one piece of content: text, a heading, a sequence of other
// elements. Fields are element specific and ordered.
type Element struct {
	Func     string
	Fields   *Dict
	Label    Label
	Span     syntax.Span
	Location *Location
}

// NewElement creates an element with the given fields.
func NewElement(fn string, kv ...any) *Element {
	return &Element{Func: fn, Fields: NewDict(kv...)}
}

// Text creates a text element.
func Text(s string) *Element { return NewElement("text", "text", s) }

// Space creates an inter-word space.
func Space() *Element { return NewElement("space") }

// Parbreak creates a paragraph break.
func Parbreak() *Element { return NewElement("parbreak") }

// Linebreak creates a forced line break.
func Linebreak() *Element { return NewElement("linebreak") }

// Empty is content with nothing in it.
func Empty() *Element { return Sequence() }

// Sequence joins elements. Nested sequences are flattened and a single
// child is returned as is.
func Sequence(children ...*Element) *Element {
	var flat []Value
	for _, c := range children {
		if c == nil {
			continue
		}
		if c.Func == "sequence" && c.Label == "" {
			flat = append(flat, c.Children()...)
			continue
		}
		flat = append(flat, c)
	}
	if len(flat) == 1 {
		return flat[0].(*Element)
	}
	if flat == nil {
		flat = []Value{}
	}
	return NewElement("sequence", "children", flat)
}

// Field returns a field value.
func (e *Element) Field(name string) (Value, bool) {
	return e.Fields.Get(name)
}

// Int returns an integer field or def.
func (e *Element) Int(name string, def int64) int64 {
	if v, ok := e.Field(name); ok {
		if n, ok := v.(int64); ok {
			return n
		}
	}
	return def
}

// Body returns the body field when it is content.
func (e *Element) Body() *Element {
	if v, ok := e.Field("body"); ok {
		if b, ok := v.(*Element); ok {
			return b
		}
	}
	return nil
}

// Children returns the children of a sequence.
func (e *Element) Children() []Value {
	if v, ok := e.Field("children"); ok {
		if cs, ok := v.([]Value); ok {
			return cs
		}
	}
	return nil
}

// IsEmpty reports whether e is a sequence without children.
func (e *Element) IsEmpty() bool {
	return e.Func == "sequence" && len(e.Children()) == 0
}

// PlainText extracts the text of e without markup.
func (e *Element) PlainText() string {
	var b strings.Builder
	e.plain(&b)
	return b.String()
}

func (e *Element) plain(b *strings.Builder) {
	switch e.Func {
	case "text", "raw":
		s, _ := e.Field("text")
		str, _ := s.(string)
		b.WriteString(str)
	case "space":
		b.WriteByte(' ')
	case "linebreak", "parbreak":
		b.WriteByte('\n')
	case "sequence":
		for _, c := range e.Children() {
			if el, ok := c.(*Element); ok {
				el.plain(b)
			}
		}
	default:
		if body := e.Body(); body != nil {
			body.plain(b)
		}
	}
}

// WithLabel returns a copy of e carrying label.
func (e *Element) WithLabel(l Label) *Element {
	c := *e
	c.Label = l
	return &c
}

// Walk visits e and every element nested in its fields, depth first.
// Returning false from fn skips the children of that element.
func (e *Element) Walk(fn func(*Element) bool) {
	if !fn(e) {
		return
	}
	e.Fields.Each(func(_ string, v Value) {
		walkValue(v, fn)
	})
}

func walkValue(v Value, fn func(*Element) bool) {
	switch v := v.(type) {
	case *Element:
		v.Walk(fn)
	case []Value:
		for _, x := range v {
			walkValue(x, fn)
		}
	}
}

func (e *Element) entries() *Dict {
	d := NewDict("func", e.Func)
	e.Fields.Each(d.Set)
	if e.Label != "" {
		d.Set("label", e.Label)
	}
	return d
}

// MarshalJSON emits {"func": …, fields…, "label": …}.
func (e *Element) MarshalJSON() ([]byte, error) {
	return e.entries().MarshalJSON()
}

// MarshalYAML emits the same shape as MarshalJSON.
func (e *Element) MarshalYAML() (any, error) {
	return e.entries().MarshalYAML()
}
