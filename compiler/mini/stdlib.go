package mini

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/wippyai/docbridge/compiler"
)

// field describes one parameter of an element function.
type field struct {
	name     string
	pos      bool
	required bool
	content  bool
	kind     string
	def      compiler.Value
}

func positional(name string, content bool) field {
	return field{name: name, pos: true, required: true, content: content}
}

func named(name, kind string, def compiler.Value) field {
	return field{name: name, kind: kind, def: def}
}

// elementFunc builds a constructor that stores its arguments as fields.
func elementFunc(name string, fields ...field) *Func {
	return &Func{Name: name, Element: name, native: func(vm *vm, a *args) (compiler.Value, error) {
		el := compiler.NewElement(name)
		for _, f := range fields {
			var v compiler.Value
			var ok bool
			if f.pos {
				v, ok = a.next()
				if !ok && f.required {
					return nil, fmt.Errorf("missing argument: %s", f.name)
				}
			} else {
				v, ok = a.named(f.name)
			}
			if !ok || v == nil {
				if f.def != nil {
					el.Fields.Set(f.name, f.def)
				}
				continue
			}
			if f.kind != "" && compiler.TypeName(v) != f.kind {
				return nil, fmt.Errorf("expected %s for %s, found %s", f.kind, f.name, compiler.TypeName(v))
			}
			if f.content {
				v = toContent(v)
			}
			el.Fields.Set(f.name, v)
		}
		if label, ok := a.named("label"); ok {
			l, isLabel := label.(compiler.Label)
			if !isLabel {
				return nil, fmt.Errorf("expected label, found %s", compiler.TypeName(label))
			}
			el.Label = l
		}
		return el, nil
	}}
}

// elementFuncs maps element names to their constructors.
var elementFuncs = map[string]*Func{}

func init() {
	for _, f := range []*Func{
		elementFunc("heading", named("level", "integer", int64(1)), positional("body", true)),
		elementFunc("strong", positional("body", true)),
		elementFunc("emph", positional("body", true)),
		elementFunc("metadata", positional("value", false)),
		elementFunc("raw", positional("text", false), named("lang", "string", nil), named("block", "boolean", false)),
		elementFunc("link", positional("dest", false), field{name: "body", pos: true, content: true}),
		elementFunc("figure", positional("body", true), named("caption", "", nil)),
		elementFunc("equation", positional("body", true), named("block", "boolean", false)),
		elementFunc("ref", positional("target", false)),
		elementFunc("list.item", positional("body", true)),
		elementFunc("enum.item", positional("body", true)),
		elementFunc("pagebreak"),
		elementFunc("linebreak"),
		elementFunc("parbreak"),
		elementFunc("space"),
		elementFunc("text", positional("text", false)),
		elementFunc("sequence"),
	} {
		elementFuncs[f.Element] = f
	}
}

func fn(name string, impl native) *Func {
	return &Func{Name: name, native: impl}
}

// stdlib builds the global scope of lib.
func stdlib(lib *compiler.Library) *scope {
	s := newScope(nil)
	for _, name := range []string{"heading", "strong", "emph", "metadata", "raw", "link", "figure", "pagebreak", "linebreak", "parbreak"} {
		s.define(name, elementFuncs[name])
	}

	s.define("read", fn("read", read))
	s.define("upper", fn("upper", caseFunc(strings.ToUpper)))
	s.define("lower", fn("lower", caseFunc(strings.ToLower)))
	s.define("str", fn("str", toStr))
	s.define("repr", fn("repr", func(_ *vm, a *args) (compiler.Value, error) {
		v, err := a.expect("value")
		return compiler.Repr(v), err
	}))
	s.define("type", fn("type", func(_ *vm, a *args) (compiler.Value, error) {
		v, err := a.expect("value")
		return compiler.TypeName(v), err
	}))
	s.define("range", fn("range", rangeFunc))
	s.define("panic", fn("panic", panicFunc))
	s.define("assert", fn("assert", assertFunc))
	s.define("lorem", fn("lorem", lorem))
	s.define("label", fn("label", func(_ *vm, a *args) (compiler.Value, error) {
		name, err := expectType[string](a, "name")
		if err != nil {
			return nil, err
		}
		if name == "" {
			return nil, fmt.Errorf("label name must not be empty")
		}
		return compiler.Label(name), nil
	}))
	s.define("rgb", fn("rgb", func(_ *vm, a *args) (compiler.Value, error) {
		hex, err := expectType[string](a, "hex")
		if err != nil {
			return nil, err
		}
		c, ok := parseHexColor(hex)
		if !ok {
			return nil, fmt.Errorf("color string contains non-hexadecimal letters")
		}
		return c, nil
	}))

	s.define("datetime", &Module{Name: "datetime", Scope: compiler.NewDict("today", fn("today", today))})
	s.define("sys", &Module{Name: "sys", Scope: compiler.NewDict(
		"inputs", lib.Inputs,
		"version", Version,
	)})
	if lib.Features.Has(compiler.FeatureHTML) {
		s.define("html", &Module{Name: "html", Scope: compiler.NewDict(
			"elem", elementFunc("html.elem", positional("tag", false), field{name: "body", pos: true, content: true}, named("attrs", "dictionary", nil)),
		)})
	}

	s.define("test", fn("test", func(_ *vm, a *args) (compiler.Value, error) {
		return assertPair(a, equal)
	}))
	s.define("test-repr", fn("test-repr", func(_ *vm, a *args) (compiler.Value, error) {
		return assertPair(a, func(l, r compiler.Value) bool { return compiler.Repr(l) == compiler.Repr(r) })
	}))
	s.define("print", fn("print", printFunc))
	s.define("lines", fn("lines", lines))
	s.define("conifer", Color{0x9f, 0xeb, 0x52, 0xff})
	s.define("forest", Color{0x43, 0xa1, 0x27, 0xff})
	return s
}

func read(vm *vm, a *args) (compiler.Value, error) {
	p, err := expectType[string](a, "path")
	if err != nil {
		return nil, err
	}
	base := vm.src.ID()
	if base.Path == "" {
		return nil, fmt.Errorf("cannot access file system from here")
	}
	data, err := vm.world.File(base.Join(p))
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("file is not valid utf-8")
	}
	return string(data), nil
}

func caseFunc(conv func(string) string) native {
	return func(_ *vm, a *args) (compiler.Value, error) {
		v, err := a.expect("text")
		if err != nil {
			return nil, err
		}
		switch v := v.(type) {
		case string:
			return conv(v), nil
		case *compiler.Element:
			return compiler.Text(conv(v.PlainText())), nil
		}
		return nil, fmt.Errorf("expected string or content, found %s", compiler.TypeName(v))
	}
}

func toStr(_ *vm, a *args) (compiler.Value, error) {
	v, err := a.expect("value")
	if err != nil {
		return nil, err
	}
	switch v := v.(type) {
	case string:
		return v, nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), nil
	case compiler.Label:
		return string(v), nil
	case compiler.Length, compiler.Datetime:
		return compiler.Repr(v), nil
	}
	return nil, fmt.Errorf("expected integer, float, label, or string, found %s", compiler.TypeName(v))
}

func rangeFunc(_ *vm, a *args) (compiler.Value, error) {
	first, err := expectType[int64](a, "end")
	if err != nil {
		return nil, err
	}
	start, end := int64(0), first
	if v, ok := a.next(); ok {
		e, isInt := v.(int64)
		if !isInt {
			return nil, fmt.Errorf("expected integer, found %s", compiler.TypeName(v))
		}
		start, end = first, e
	}
	step, err := namedType[int64](a, "step", 1)
	if err != nil {
		return nil, err
	}
	if step == 0 {
		return nil, fmt.Errorf("step must not be zero")
	}
	out := []compiler.Value{}
	for i := start; step > 0 && i < end || step < 0 && i > end; i += step {
		out = append(out, i)
	}
	return out, nil
}

func panicFunc(_ *vm, a *args) (compiler.Value, error) {
	values := a.rest()
	if len(values) == 0 {
		return nil, fmt.Errorf("panicked")
	}
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = compiler.Repr(v)
	}
	return nil, fmt.Errorf("panicked with: %s", strings.Join(parts, ", "))
}

func assertFunc(_ *vm, a *args) (compiler.Value, error) {
	ok, err := expectType[bool](a, "condition")
	if err != nil {
		return nil, err
	}
	msg, err := namedType[string](a, "message", "")
	if err != nil {
		return nil, err
	}
	if ok {
		return nil, nil
	}
	if msg != "" {
		return nil, fmt.Errorf("assertion failed: %s", msg)
	}
	return nil, fmt.Errorf("assertion failed")
}

func assertPair(a *args, same func(l, r compiler.Value) bool) (compiler.Value, error) {
	lhs, err := a.expect("lhs")
	if err != nil {
		return nil, err
	}
	rhs, err := a.expect("rhs")
	if err != nil {
		return nil, err
	}
	if !same(lhs, rhs) {
		return nil, fmt.Errorf("Assertion failed: %s != %s", compiler.Repr(lhs), compiler.Repr(rhs))
	}
	return nil, nil
}

func printFunc(vm *vm, a *args) (compiler.Value, error) {
	values := a.rest()
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = compiler.Repr(v)
	}
	vm.engine.logger.Info("> "+strings.Join(parts, ", "), zap.Int("values", len(values)))
	return nil, nil
}

// lines numbers count lines with a pattern such as "A", "a", "1", "I" or
// "i" and joins them with newlines.
func lines(_ *vm, a *args) (compiler.Value, error) {
	count, err := expectType[int64](a, "count")
	if err != nil {
		return nil, err
	}
	if count < 0 {
		return nil, fmt.Errorf("number must be at least zero")
	}
	pattern, err := namedType[string](a, "numbering", "A")
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, count)
	for n := int64(1); n <= count; n++ {
		out = append(out, number(pattern, n))
	}
	return strings.Join(out, "\n"), nil
}

// number applies a numbering pattern. The first counter symbol in the
// pattern is replaced; surrounding text is kept.
func number(pattern string, n int64) string {
	for i, r := range pattern {
		var s string
		switch r {
		case 'A', 'a':
			s = letters(n, r)
		case '1':
			s = strconv.FormatInt(n, 10)
		case 'I':
			s = roman(n)
		case 'i':
			s = strings.ToLower(roman(n))
		default:
			continue
		}
		return pattern[:i] + s + pattern[i+utf8.RuneLen(r):]
	}
	return pattern
}

func letters(n int64, base rune) string {
	var out []rune
	for n > 0 {
		n--
		out = append([]rune{base + rune(n%26)}, out...)
		n /= 26
	}
	return string(out)
}

func roman(n int64) string {
	if n <= 0 {
		return "N"
	}
	table := []struct {
		v int64
		s string
	}{
		{1000, "M"}, {900, "CM"}, {500, "D"}, {400, "CD"}, {100, "C"}, {90, "XC"},
		{50, "L"}, {40, "XL"}, {10, "X"}, {9, "IX"}, {5, "V"}, {4, "IV"}, {1, "I"},
	}
	var b strings.Builder
	for _, t := range table {
		for n >= t.v {
			b.WriteString(t.s)
			n -= t.v
		}
	}
	return b.String()
}

func today(vm *vm, a *args) (compiler.Value, error) {
	var offset *int64
	if v, ok := a.named("offset"); ok && v != nil {
		hours, isInt := v.(int64)
		if !isInt {
			return nil, fmt.Errorf("expected integer or auto for offset, found %s", compiler.TypeName(v))
		}
		offset = &hours
	}
	t, ok := vm.world.Today(offset)
	if !ok {
		return nil, fmt.Errorf("unable to get the current date")
	}
	return compiler.Datetime{Time: time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)}, nil
}

var loremWords = strings.Fields(`Lorem ipsum dolor sit amet, consectetur adipiscing elit, sed do eiusmod
tempor incididunt ut labore et dolore magnam aliquam quaerat voluptatem. Ut enim aeque doleamus animo,
cum corpore dolemus, fieri tamen permagna accessio potest, si aliquod aeternum et infinitum impendere
malum nobis opinemur.`)

func lorem(_ *vm, a *args) (compiler.Value, error) {
	n, err := expectType[int64](a, "words")
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, fmt.Errorf("number must be at least zero")
	}
	words := make([]string, n)
	for i := range words {
		words[i] = loremWords[i%len(loremWords)]
	}
	return strings.Join(words, " "), nil
}
