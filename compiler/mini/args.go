package mini

import (
	"fmt"

	"github.com/wippyai/docbridge/compiler"
	"github.com/wippyai/docbridge/syntax"
)

type arg struct {
	name  string
	value compiler.Value
	span  syntax.Span
	used  bool
}

// args are the evaluated arguments of a call. Natives consume them; any
// left over are reported by finish.
type args struct {
	span  syntax.Span
	items []arg
}

func (vm *vm) args(n node) (*args, error) {
	a := &args{span: vm.span(n)}
	for _, item := range n.exprs() {
		switch item.Kind() {
		case syntax.Named:
			parts := item.exprs()
			v, err := vm.expr(parts[1])
			if err != nil {
				return nil, err
			}
			a.items = append(a.items, arg{name: parts[0].Text(), value: v, span: vm.span(item)})
		case syntax.Spread:
			v, err := vm.expr(item.exprs()[0])
			if err != nil {
				return nil, err
			}
			switch v := v.(type) {
			case []compiler.Value:
				for _, x := range v {
					a.items = append(a.items, arg{value: x, span: vm.span(item)})
				}
			case *compiler.Dict:
				v.Each(func(k string, x compiler.Value) {
					a.items = append(a.items, arg{name: k, value: x, span: vm.span(item)})
				})
			case nil:
			default:
				return nil, vm.errorf(item, "cannot spread %s", compiler.TypeName(v))
			}
		default:
			v, err := vm.expr(item)
			if err != nil {
				return nil, err
			}
			a.items = append(a.items, arg{value: v, span: vm.span(item)})
		}
	}
	return a, nil
}

func newArgs(values ...compiler.Value) *args {
	a := &args{}
	for _, v := range values {
		a.items = append(a.items, arg{value: v})
	}
	return a
}

// next consumes the next positional argument.
func (a *args) next() (compiler.Value, bool) {
	for i := range a.items {
		if !a.items[i].used && a.items[i].name == "" {
			a.items[i].used = true
			return a.items[i].value, true
		}
	}
	return nil, false
}

// expect consumes a required positional argument.
func (a *args) expect(what string) (compiler.Value, error) {
	if v, ok := a.next(); ok {
		return v, nil
	}
	return nil, fmt.Errorf("missing argument: %s", what)
}

// named consumes a named argument.
func (a *args) named(name string) (compiler.Value, bool) {
	for i := range a.items {
		if !a.items[i].used && a.items[i].name == name {
			a.items[i].used = true
			return a.items[i].value, true
		}
	}
	return nil, false
}

// rest consumes all remaining positional arguments.
func (a *args) rest() []compiler.Value {
	var out []compiler.Value
	for {
		v, ok := a.next()
		if !ok {
			return out
		}
		out = append(out, v)
	}
}

func (a *args) finish() error {
	for _, it := range a.items {
		if it.used {
			continue
		}
		if it.name != "" {
			return fmt.Errorf("unexpected argument: %s", it.name)
		}
		return fmt.Errorf("unexpected argument")
	}
	return nil
}

func expectType[T any](a *args, what string) (T, error) {
	var zero T
	v, err := a.expect(what)
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("expected %s, found %s", typeNameOf[T](), compiler.TypeName(v))
	}
	return t, nil
}

func namedType[T any](a *args, name string, def T) (T, error) {
	v, ok := a.named(name)
	if !ok || v == nil {
		return def, nil
	}
	t, ok := v.(T)
	if !ok {
		return def, fmt.Errorf("expected %s for %s, found %s", typeNameOf[T](), name, compiler.TypeName(v))
	}
	return t, nil
}

func typeNameOf[T any]() string {
	var zero T
	switch any(zero).(type) {
	case *compiler.Element:
		return "content"
	case *compiler.Dict:
		return "dictionary"
	case []compiler.Value:
		return "array"
	case *Func:
		return "function"
	}
	return compiler.TypeName(zero)
}

// contentArg consumes a positional argument and converts it to content.
func (a *args) contentArg(what string) (*compiler.Element, error) {
	v, err := a.expect(what)
	if err != nil {
		return nil, err
	}
	return toContent(v), nil
}
