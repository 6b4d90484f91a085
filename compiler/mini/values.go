package mini

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/wippyai/docbridge/compiler"
	"github.com/wippyai/docbridge/syntax"
)

type native func(vm *vm, args *args) (compiler.Value, error)

// Func is a callable value: a builtin, an element constructor or a closure.
type Func struct {
	Name string
	// Element is set for element functions, which also act as selectors.
	Element string

	native  native
	closure *closure
}

type closure struct {
	params []string
	body   node
	src    *syntax.Source
	scope  *scope
}

func (f *Func) TypeName() string { return "function" }

func (f *Func) String() string {
	if f.Name == "" {
		return "(..) => .."
	}
	return f.Name
}

// MarshalJSON fails: functions have no data representation.
func (f *Func) MarshalJSON() ([]byte, error) {
	return nil, fmt.Errorf("cannot serialize function %s", f)
}

// Module is an evaluated file or a builtin namespace.
type Module struct {
	Name    string
	Scope   *compiler.Dict
	Content *compiler.Element
}

func (m *Module) TypeName() string { return "module" }

func (m *Module) String() string { return "<module " + m.Name + ">" }

// MarshalJSON fails: modules have no data representation.
func (m *Module) MarshalJSON() ([]byte, error) {
	return nil, fmt.Errorf("cannot serialize module %s", m.Name)
}

// Selector matches locatable elements by function, label and fields.
type Selector struct {
	Element string
	Label   compiler.Label
	Where   *compiler.Dict
}

func (s *Selector) TypeName() string { return "selector" }

func (s *Selector) String() string {
	if s.Label != "" {
		return s.Label.String()
	}
	if s.Where.Len() == 0 {
		return s.Element
	}
	return s.Element + ".where" + compiler.Repr(s.Where)
}

// MarshalText renders the selector's code representation.
func (s *Selector) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Matches reports whether e is selected.
func (s *Selector) Matches(e *compiler.Element) bool {
	if s.Label != "" && e.Label != s.Label {
		return false
	}
	if s.Element != "" && e.Func != s.Element {
		return false
	}
	ok := true
	s.Where.Each(func(k string, want compiler.Value) {
		got, has := e.Field(k)
		if !has || !equal(got, want) {
			ok = false
		}
	})
	return ok
}

func toSelector(v compiler.Value) (*Selector, error) {
	switch v := v.(type) {
	case *Selector:
		return v, nil
	case compiler.Label:
		return &Selector{Label: v}, nil
	case *Func:
		if v.Element != "" {
			return &Selector{Element: v.Element}, nil
		}
		return nil, fmt.Errorf("cannot use function %s as selector", v)
	}
	return nil, fmt.Errorf("expected label, selector, or function, found %s", compiler.TypeName(v))
}

// Color is an RGBA color.
type Color struct {
	R, G, B, A uint8
}

func (c Color) TypeName() string { return "color" }

func (c Color) String() string {
	if c.A == 0xff {
		return fmt.Sprintf("rgb(%q)", fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B))
	}
	return fmt.Sprintf("rgb(%q)", fmt.Sprintf("#%02x%02x%02x%02x", c.R, c.G, c.B, c.A))
}

// MarshalText renders the color's code representation.
func (c Color) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func parseHexColor(s string) (Color, bool) {
	b, err := hex.DecodeString(strings.TrimPrefix(s, "#"))
	if err != nil {
		return Color{}, false
	}
	switch len(b) {
	case 3:
		return Color{b[0], b[1], b[2], 0xff}, true
	case 4:
		return Color{b[0], b[1], b[2], b[3]}, true
	}
	return Color{}, false
}

// scope is a chain of variable bindings.
type scope struct {
	vars   map[string]compiler.Value
	order  []string
	parent *scope
}

func newScope(parent *scope) *scope {
	return &scope{vars: make(map[string]compiler.Value), parent: parent}
}

func (s *scope) define(name string, v compiler.Value) {
	if _, ok := s.vars[name]; !ok {
		s.order = append(s.order, name)
	}
	s.vars[name] = v
}

func (s *scope) lookup(name string) (compiler.Value, bool) {
	for sc := s; sc != nil; sc = sc.parent {
		if v, ok := sc.vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// export returns the bindings of this scope level in definition order.
func (s *scope) export() *compiler.Dict {
	d := compiler.NewDict()
	for _, name := range s.order {
		d.Set(name, s.vars[name])
	}
	return d
}
