package mini

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/wippyai/docbridge/compiler"
)

// method calls a builtin method on target.
func (vm *vm) method(at node, target compiler.Value, name string, a *args) (compiler.Value, error) {
	v, err := vm.dispatch(at, target, name, a)
	if err != nil {
		return nil, err
	}
	if err := a.finish(); err != nil {
		return nil, err
	}
	return v, nil
}

func (vm *vm) dispatch(at node, target compiler.Value, name string, a *args) (compiler.Value, error) {
	switch t := target.(type) {
	case string:
		return strMethod(t, name, a)
	case []compiler.Value:
		return vm.arrayMethod(at, t, name, a)
	case *compiler.Dict:
		return dictMethod(t, name, a)
	case *compiler.Element:
		return contentMethod(t, name, a)
	case compiler.Datetime:
		if name == "display" {
			return t.String(), nil
		}
	case *Func:
		if name == "where" && t.Element != "" {
			where := compiler.NewDict()
			for _, it := range a.items {
				if it.name == "" {
					return nil, fmt.Errorf("unexpected argument")
				}
			}
			for i := range a.items {
				a.items[i].used = true
				where.Set(a.items[i].name, a.items[i].value)
			}
			return &Selector{Element: t.Element, Where: where}, nil
		}
	}
	return nil, fmt.Errorf("type %s has no method `%s`", compiler.TypeName(target), name)
}

func strMethod(s, name string, a *args) (compiler.Value, error) {
	switch name {
	case "len":
		return int64(len(s)), nil
	case "upper":
		return strings.ToUpper(s), nil
	case "lower":
		return strings.ToLower(s), nil
	case "trim":
		return strings.TrimSpace(s), nil
	case "contains", "starts-with", "ends-with":
		pat, err := expectType[string](a, "pattern")
		if err != nil {
			return nil, err
		}
		switch name {
		case "contains":
			return strings.Contains(s, pat), nil
		case "starts-with":
			return strings.HasPrefix(s, pat), nil
		}
		return strings.HasSuffix(s, pat), nil
	case "split":
		sep, err := namedOrNext[string](a, "pattern")
		if err != nil {
			return nil, err
		}
		var parts []string
		if sep == "" {
			parts = strings.Fields(s)
		} else {
			parts = strings.Split(s, sep)
		}
		out := make([]compiler.Value, len(parts))
		for i, p := range parts {
			out[i] = p
		}
		return out, nil
	case "replace":
		from, err := expectType[string](a, "pattern")
		if err != nil {
			return nil, err
		}
		to, err := expectType[string](a, "replacement")
		if err != nil {
			return nil, err
		}
		return strings.ReplaceAll(s, from, to), nil
	case "clusters", "codepoints":
		out := make([]compiler.Value, 0, utf8.RuneCountInString(s))
		for _, r := range s {
			out = append(out, string(r))
		}
		return out, nil
	case "first", "last":
		if s == "" {
			return nil, fmt.Errorf("string is empty")
		}
		if name == "first" {
			r, _ := utf8.DecodeRuneInString(s)
			return string(r), nil
		}
		r, _ := utf8.DecodeLastRuneInString(s)
		return string(r), nil
	case "at":
		i, err := expectType[int64](a, "index")
		if err != nil {
			return nil, err
		}
		rs := []rune(s)
		j, ok := index(i, len(rs))
		if !ok {
			return nil, fmt.Errorf("string index out of bounds (index: %d, len: %d)", i, len(rs))
		}
		return string(rs[j]), nil
	}
	return nil, fmt.Errorf("type string has no method `%s`", name)
}

func namedOrNext[T any](a *args, name string) (T, error) {
	var zero T
	if v, ok := a.named(name); ok {
		t, ok := v.(T)
		if !ok {
			return zero, fmt.Errorf("expected %s for %s, found %s", typeNameOf[T](), name, compiler.TypeName(v))
		}
		return t, nil
	}
	v, ok := a.next()
	if !ok || v == nil {
		return zero, nil
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("expected %s, found %s", typeNameOf[T](), compiler.TypeName(v))
	}
	return t, nil
}

// index resolves a possibly negative index against n.
func index(i int64, n int) (int, bool) {
	if i < 0 {
		i += int64(n)
	}
	if i < 0 || i >= int64(n) {
		return 0, false
	}
	return int(i), true
}

func (vm *vm) arrayMethod(at node, arr []compiler.Value, name string, a *args) (compiler.Value, error) {
	switch name {
	case "len":
		return int64(len(arr)), nil
	case "first", "last":
		if len(arr) == 0 {
			return nil, fmt.Errorf("array is empty")
		}
		if name == "first" {
			return arr[0], nil
		}
		return arr[len(arr)-1], nil
	case "at":
		i, err := expectType[int64](a, "index")
		if err != nil {
			return nil, err
		}
		def, has := a.named("default")
		j, ok := index(i, len(arr))
		if !ok {
			if has {
				return def, nil
			}
			return nil, fmt.Errorf("array index out of bounds (index: %d, len: %d)", i, len(arr))
		}
		return arr[j], nil
	case "contains":
		v, err := a.expect("value")
		if err != nil {
			return nil, err
		}
		return contains(arr, v)
	case "rev":
		out := make([]compiler.Value, len(arr))
		for i, x := range arr {
			out[len(arr)-1-i] = x
		}
		return out, nil
	case "sum":
		var acc compiler.Value = int64(0)
		for _, x := range arr {
			var err error
			if acc, err = add(acc, x); err != nil {
				return nil, err
			}
		}
		return acc, nil
	case "join":
		sep, _ := a.next()
		var out compiler.Value
		for i, x := range arr {
			var err error
			if i > 0 && sep != nil {
				if out, err = join(out, sep); err != nil {
					return nil, err
				}
			}
			if out, err = join(out, x); err != nil {
				return nil, err
			}
		}
		return out, nil
	case "map", "filter":
		fn, err := expectType[*Func](a, "function")
		if err != nil {
			return nil, err
		}
		out := []compiler.Value{}
		for _, x := range arr {
			r, err := vm.apply(at, fn, x)
			if err != nil {
				return nil, err
			}
			if name == "map" {
				out = append(out, r)
				continue
			}
			keep, ok := r.(bool)
			if !ok {
				return nil, fmt.Errorf("expected boolean from filter function, found %s", compiler.TypeName(r))
			}
			if keep {
				out = append(out, x)
			}
		}
		return out, nil
	case "enumerate":
		out := make([]compiler.Value, len(arr))
		for i, x := range arr {
			out[i] = []compiler.Value{int64(i), x}
		}
		return out, nil
	}
	return nil, fmt.Errorf("type array has no method `%s`", name)
}

// apply calls fn with positional values on behalf of the call at.
func (vm *vm) apply(at node, fn *Func, values ...compiler.Value) (compiler.Value, error) {
	return vm.invoke(at, fn, newArgs(values...))
}

func dictMethod(d *compiler.Dict, name string, a *args) (compiler.Value, error) {
	switch name {
	case "len":
		return int64(d.Len()), nil
	case "keys":
		out := []compiler.Value{}
		for _, k := range d.Keys() {
			out = append(out, k)
		}
		return out, nil
	case "values", "pairs":
		out := []compiler.Value{}
		d.Each(func(k string, v compiler.Value) {
			if name == "pairs" {
				out = append(out, []compiler.Value{k, v})
				return
			}
			out = append(out, v)
		})
		return out, nil
	case "at":
		k, err := expectType[string](a, "key")
		if err != nil {
			return nil, err
		}
		def, has := a.named("default")
		if v, ok := d.Get(k); ok {
			return v, nil
		}
		if has {
			return def, nil
		}
		return nil, fmt.Errorf("dictionary does not contain key %q", k)
	}
	return nil, fmt.Errorf("type dictionary has no method `%s`", name)
}

func contentMethod(e *compiler.Element, name string, a *args) (compiler.Value, error) {
	switch name {
	case "func":
		return elementFuncs[e.Func], nil
	case "has":
		field, err := expectType[string](a, "field")
		if err != nil {
			return nil, err
		}
		_, ok := e.Field(field)
		return ok || field == "label" && e.Label != "", nil
	case "fields":
		d := e.Fields.Clone()
		if e.Label != "" {
			d.Set("label", e.Label)
		}
		return d, nil
	case "text":
		return e.PlainText(), nil
	}
	return nil, fmt.Errorf("type content has no method `%s`", name)
}
