package mini

import (
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/BurntSushi/toml"

	"github.com/wippyai/docbridge/compiler"
	"github.com/wippyai/docbridge/diag"
	"github.com/wippyai/docbridge/syntax"
)

// maxCallDepth bounds closure recursion.
const maxCallDepth = 80

// failure carries the diagnostics that aborted evaluation.
type failure []diag.SourceDiagnostic

func (f failure) Error() string {
	msgs := make([]string, len(f))
	for i, d := range f {
		msgs[i] = d.Message
	}
	return strings.Join(msgs, "; ")
}

func diagnostics(err error) []diag.SourceDiagnostic {
	var f failure
	if errors.As(err, &f) {
		return f
	}
	return []diag.SourceDiagnostic{diag.Errorf(syntax.Detached, "%s", err)}
}

// node is a syntax node with its absolute offset.
type node struct {
	*syntax.Node
	off int
}

func (n node) kids() []node {
	cs := n.Children()
	out := make([]node, len(cs))
	off := n.off
	for i, c := range cs {
		out[i] = node{c, off}
		off += c.Len()
	}
	return out
}

// exprs returns the children that are not trivia or punctuation.
func (n node) exprs() []node {
	var out []node
	for _, c := range n.kids() {
		if c.Kind().IsTrivia() || isPunct(c.Kind()) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func (n node) find(kind syntax.Kind) (node, bool) {
	for _, c := range n.kids() {
		if c.Kind() == kind {
			return c, true
		}
	}
	return node{}, false
}

func isPunct(k syntax.Kind) bool {
	switch k {
	case syntax.LeftParen, syntax.RightParen, syntax.LeftBracket, syntax.RightBracket,
		syntax.LeftBrace, syntax.RightBrace, syntax.Comma, syntax.Semicolon, syntax.Colon,
		syntax.Eq, syntax.Arrow, syntax.Dot, syntax.Dots, syntax.Hash:
		return true
	}
	return k.IsKeyword() && k != syntax.None && k != syntax.Auto
}

// vm evaluates one compilation or snippet.
type vm struct {
	world    compiler.World
	engine   *Engine
	src      *syntax.Source
	scope    *scope
	route    []string
	modules  map[string]*Module
	depth    int
	warnings []diag.SourceDiagnostic
}

func newVM(e *Engine, w compiler.World) *vm {
	v := &vm{world: w, engine: e, modules: make(map[string]*Module)}
	v.scope = newScope(stdlib(w.Library()))
	return v
}

func (vm *vm) span(n node) syntax.Span {
	return syntax.NewSpan(vm.src.Ref(), n.off, n.off+n.Len())
}

func (vm *vm) errorf(n node, format string, args ...any) error {
	return failure{diag.Errorf(vm.span(n), format, args...)}
}

func (vm *vm) warnf(n node, format string, args ...any) {
	vm.warnings = append(vm.warnings, diag.Warningf(vm.span(n), format, args...))
}

// syntaxErrors converts the error nodes of a tree into diagnostics.
func (vm *vm) syntaxErrors(root *syntax.Node) error {
	errs, offsets := root.ErrorsAt(0)
	if len(errs) == 0 {
		return nil
	}
	out := make(failure, len(errs))
	for i, e := range errs {
		start := offsets[i]
		end := start
		root.Walk(0, func(n *syntax.Node, off int) bool {
			if off == start && n.Kind() == syntax.Error {
				end = off + n.Len()
				return false
			}
			return true
		})
		out[i] = diag.SourceDiagnostic{
			Severity: diag.SeverityError,
			Span:     syntax.NewSpan(vm.src.Ref(), start, end),
			Message:  e.Message,
			Hints:    e.Hints,
		}
	}
	return out
}

// evalFile evaluates id as a module. span is where the file was requested
// and is used for load failures.
func (vm *vm) evalFile(id syntax.FileID, at syntax.Span) (*Module, error) {
	key := id.Key()
	if m, ok := vm.modules[key]; ok {
		return m, nil
	}
	for _, r := range vm.route {
		if r == key {
			return nil, failure{diag.Errorf(at, "cyclic import")}
		}
	}
	src, err := vm.world.Source(id)
	if err != nil {
		return nil, failure{diag.FromFileError(at, err)}
	}

	saved, savedScope := vm.src, vm.scope
	vm.src = src
	vm.scope = newScope(stdlib(vm.world.Library()))
	vm.route = append(vm.route, key)
	defer func() {
		vm.src, vm.scope = saved, savedScope
		vm.route = vm.route[:len(vm.route)-1]
	}()

	root := vm.engine.parse(src)
	if err := vm.syntaxErrors(root); err != nil {
		return nil, err
	}
	content, err := vm.markup(node{root, 0})
	if err != nil {
		return nil, err
	}
	name := strings.TrimSuffix(path.Base(id.Path), path.Ext(id.Path))
	m := &Module{Name: name, Scope: vm.scope.export(), Content: content}
	vm.modules[key] = m
	return m, nil
}

// ---- markup ----

func (vm *vm) markup(n node) (*compiler.Element, error) {
	return vm.markupKids(n.kids())
}

func (vm *vm) markupKids(kids []node) (*compiler.Element, error) {
	var seq []*compiler.Element
	for i := 0; i < len(kids); i++ {
		k := kids[i]
		switch k.Kind() {
		case syntax.Text:
			seq = append(seq, compiler.Text(k.Text()))
		case syntax.Space:
			if k.Len() > 0 {
				seq = append(seq, compiler.Space())
			}
		case syntax.Parbreak:
			seq = append(seq, compiler.Parbreak())
		case syntax.Linebreak:
			seq = append(seq, compiler.Linebreak())
		case syntax.Escape:
			seq = append(seq, compiler.Text(unescape(k.Text())))
		case syntax.LineComment, syntax.BlockComment, syntax.Semicolon:
		case syntax.Label:
			label := compiler.Label(strings.Trim(k.Text(), "<>"))
			if !attachLabel(seq, label) {
				vm.warnf(k, "label `%s` is not attached to anything", label)
			}
		case syntax.Hash:
			if i+1 >= len(kids) {
				return nil, vm.errorf(k, "expected expression")
			}
			i++
			v, err := vm.expr(kids[i])
			if err != nil {
				return nil, err
			}
			if v != nil {
				seq = append(seq, toContent(v))
			}
		default:
			el, err := vm.markupNode(k)
			if err != nil {
				return nil, err
			}
			if el != nil {
				el.Span = vm.span(k)
				seq = append(seq, el)
			}
		}
	}
	return compiler.Sequence(seq...), nil
}

// trailingLabel splits a label written at the end of a heading line off
// its body so it labels the heading itself.
func trailingLabel(kids []node) ([]node, compiler.Label) {
	end := len(kids)
	for end > 0 && kids[end-1].Kind() == syntax.Space {
		end--
	}
	if end == 0 || kids[end-1].Kind() != syntax.Label {
		return kids, ""
	}
	label := compiler.Label(strings.Trim(kids[end-1].Text(), "<>"))
	rest := kids[:end-1]
	for len(rest) > 0 && rest[len(rest)-1].Kind() == syntax.Space {
		rest = rest[:len(rest)-1]
	}
	return rest, label
}

// attachLabel labels the last element of seq that is not a space.
func attachLabel(seq []*compiler.Element, label compiler.Label) bool {
	for i := len(seq) - 1; i >= 0; i-- {
		if seq[i].Func == "space" {
			continue
		}
		seq[i] = seq[i].WithLabel(label)
		return true
	}
	return false
}

func (vm *vm) markupNode(n node) (*compiler.Element, error) {
	switch n.Kind() {
	case syntax.Strong, syntax.Emph:
		body, ok := n.find(syntax.Markup)
		if !ok {
			return compiler.Empty(), nil
		}
		content, err := vm.markup(body)
		if err != nil {
			return nil, err
		}
		return compiler.NewElement(strings.ToLower(n.Kind().String()), "body", content), nil
	case syntax.Heading:
		marker, _ := n.find(syntax.HeadingMarker)
		body, _ := n.find(syntax.Markup)
		kids, label := trailingLabel(body.kids())
		content, err := vm.markupKids(kids)
		if err != nil {
			return nil, err
		}
		el := compiler.NewElement("heading", "level", int64(marker.Len()), "body", content)
		el.Label = label
		return el, nil
	case syntax.ListItem, syntax.EnumItem:
		body, _ := n.find(syntax.Markup)
		content, err := vm.markup(body)
		if err != nil {
			return nil, err
		}
		fn := "list.item"
		if n.Kind() == syntax.EnumItem {
			fn = "enum.item"
		}
		return compiler.NewElement(fn, "body", content), nil
	case syntax.Raw:
		return rawElement(n), nil
	case syntax.Ref:
		marker, _ := n.find(syntax.RefMarker)
		return compiler.NewElement("ref", "target", compiler.Label(strings.TrimPrefix(marker.Text(), "@"))), nil
	case syntax.Equation:
		return vm.equation(n), nil
	}
	return nil, vm.errorf(n, "unexpected %s", n.Kind())
}

func rawElement(n node) *compiler.Element {
	var text, lang string
	block := false
	for _, k := range n.kids() {
		switch k.Kind() {
		case syntax.RawDelim:
			block = k.Len() >= 3
		case syntax.RawLang:
			lang = k.Text()
		case syntax.Text:
			text = k.Text()
		}
	}
	if block {
		text = strings.TrimPrefix(text, "\n")
		text = strings.TrimSuffix(text, "\n")
	}
	el := compiler.NewElement("raw", "text", text, "block", block)
	if lang != "" {
		el.Fields.Set("lang", lang)
	}
	return el
}

func (vm *vm) equation(n node) *compiler.Element {
	body, _ := n.find(syntax.Math)
	text := strings.TrimSpace(body.Full())
	block := strings.HasPrefix(body.Full(), " ") && strings.HasSuffix(body.Full(), " ")
	el := compiler.NewElement("equation", "block", block, "body", compiler.Text(text))
	el.Span = vm.span(n)
	return el
}

func unescape(s string) string {
	if strings.HasPrefix(s, "\\u{") && strings.HasSuffix(s, "}") {
		code, err := strconv.ParseUint(s[3:len(s)-1], 16, 32)
		if err == nil && utf8.ValidRune(rune(code)) {
			return string(rune(code))
		}
		return s
	}
	return strings.TrimPrefix(s, "\\")
}

// toContent converts a value for display in markup.
func toContent(v compiler.Value) *compiler.Element {
	switch v := v.(type) {
	case *compiler.Element:
		return v
	case string:
		return compiler.Text(v)
	case []compiler.Value:
		parts := make([]*compiler.Element, 0, len(v))
		for _, x := range v {
			parts = append(parts, toContent(x))
		}
		return compiler.Sequence(parts...)
	}
	return compiler.Text(compiler.Repr(v))
}

// ---- code ----

// code evaluates the statements of a Code node and joins their values.
func (vm *vm) code(n node) (compiler.Value, error) {
	var out compiler.Value
	for _, stmt := range n.exprs() {
		v, err := vm.expr(stmt)
		if err != nil {
			return nil, err
		}
		if out, err = join(out, v); err != nil {
			return nil, vm.errorf(stmt, "%s", err)
		}
	}
	return out, nil
}

func (vm *vm) expr(n node) (compiler.Value, error) {
	switch n.Kind() {
	case syntax.Ident:
		if v, ok := vm.scope.lookup(n.Text()); ok {
			return v, nil
		}
		return nil, vm.errorf(n, "unknown variable: %s", n.Text())
	case syntax.None, syntax.Auto:
		return nil, nil
	case syntax.Bool:
		return n.Text() == "true", nil
	case syntax.Int:
		v, err := strconv.ParseInt(n.Text(), 10, 64)
		if err != nil {
			return nil, vm.errorf(n, "number too large")
		}
		return v, nil
	case syntax.Float:
		v, _ := strconv.ParseFloat(n.Text(), 64)
		return v, nil
	case syntax.Numeric:
		return vm.numeric(n)
	case syntax.Str:
		return unquote(n.Text()), nil
	case syntax.Label:
		return compiler.Label(strings.Trim(n.Text(), "<>")), nil
	case syntax.ContentBlock:
		body, _ := n.find(syntax.Markup)
		return vm.scoped(func() (compiler.Value, error) { return vm.markup(body) })
	case syntax.CodeBlock:
		body, _ := n.find(syntax.Code)
		return vm.scoped(func() (compiler.Value, error) { return vm.code(body) })
	case syntax.Code:
		return vm.code(n)
	case syntax.Parenthesized:
		return vm.expr(n.exprs()[0])
	case syntax.Array:
		return vm.array(n)
	case syntax.Dict:
		return vm.dict(n)
	case syntax.Unary:
		return vm.unary(n)
	case syntax.Binary:
		return vm.binary(n)
	case syntax.FieldAccess:
		return vm.fieldAccess(n)
	case syntax.FuncCall:
		return vm.call(n)
	case syntax.Closure:
		return vm.closure(n, ""), nil
	case syntax.LetBinding:
		return nil, vm.let(n)
	case syntax.Conditional:
		return vm.conditional(n)
	case syntax.ForLoop:
		return vm.forLoop(n)
	case syntax.ModuleImport:
		return nil, vm.moduleImport(n)
	case syntax.ModuleInclude:
		return vm.moduleInclude(n)
	case syntax.Equation:
		return vm.equation(n), nil
	case syntax.Raw:
		return rawElement(n), nil
	}
	return nil, vm.errorf(n, "%s is not supported here", n.Kind())
}

func (vm *vm) scoped(fn func() (compiler.Value, error)) (compiler.Value, error) {
	saved := vm.scope
	vm.scope = newScope(saved)
	defer func() { vm.scope = saved }()
	return fn()
}

var units = map[string]float64{"pt": 1, "mm": 72 / 25.4, "cm": 72 / 2.54, "in": 72, "em": 11}

func (vm *vm) numeric(n node) (compiler.Value, error) {
	text := n.Text()
	i := strings.IndexFunc(text, func(r rune) bool { return !(r >= '0' && r <= '9' || r == '.') })
	num, err := strconv.ParseFloat(text[:i], 64)
	if err != nil {
		return nil, vm.errorf(n, "invalid number")
	}
	unit := text[i:]
	if unit == "%" {
		return num / 100, nil
	}
	factor, ok := units[unit]
	if !ok {
		return nil, vm.errorf(n, "invalid number suffix: %s", unit)
	}
	return compiler.Length(num * factor), nil
}

func unquote(s string) string {
	s = strings.TrimSuffix(strings.TrimPrefix(s, `"`), `"`)
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 >= len(s) {
			b.WriteByte(s[i])
			continue
		}
		i++
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case 'u':
			if end := strings.IndexByte(s[i:], '}'); i+1 < len(s) && s[i+1] == '{' && end > 0 {
				if code, err := strconv.ParseUint(s[i+2:i+end], 16, 32); err == nil {
					b.WriteRune(rune(code))
					i += end
					continue
				}
			}
			b.WriteString(`\u`)
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

func (vm *vm) array(n node) (compiler.Value, error) {
	out := []compiler.Value{}
	for _, item := range n.exprs() {
		if item.Kind() == syntax.Spread {
			v, err := vm.expr(item.exprs()[0])
			if err != nil {
				return nil, err
			}
			arr, ok := v.([]compiler.Value)
			if !ok && v != nil {
				return nil, vm.errorf(item, "cannot spread %s into array", compiler.TypeName(v))
			}
			out = append(out, arr...)
			continue
		}
		v, err := vm.expr(item)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (vm *vm) dict(n node) (compiler.Value, error) {
	out := compiler.NewDict()
	for _, item := range n.exprs() {
		switch item.Kind() {
		case syntax.Named, syntax.Keyed:
			parts := item.exprs()
			key := parts[0].Text()
			if item.Kind() == syntax.Keyed {
				key = unquote(key)
			}
			v, err := vm.expr(parts[1])
			if err != nil {
				return nil, err
			}
			out.Set(key, v)
		case syntax.Spread:
			v, err := vm.expr(item.exprs()[0])
			if err != nil {
				return nil, err
			}
			d, ok := v.(*compiler.Dict)
			if !ok && v != nil {
				return nil, vm.errorf(item, "cannot spread %s into dictionary", compiler.TypeName(v))
			}
			d.Each(out.Set)
		default:
			return nil, vm.errorf(item, "expected named or keyed pair, found %s", item.Kind())
		}
	}
	return out, nil
}

func (vm *vm) unary(n node) (compiler.Value, error) {
	kids := n.exprs()
	op := n.Children()[0].Kind()
	v, err := vm.expr(kids[len(kids)-1])
	if err != nil {
		return nil, err
	}
	r, err := unaryOp(op, v)
	if err != nil {
		return nil, vm.errorf(n, "%s", err)
	}
	return r, nil
}

func (vm *vm) binary(n node) (compiler.Value, error) {
	var lhsNode, rhsNode node
	var op syntax.Kind
	seen := false
	for _, k := range n.kids() {
		switch {
		case k.Kind().IsTrivia():
		case !seen && lhsNode.Node == nil:
			lhsNode = k
		case !seen:
			op, seen = k.Kind(), true
		default:
			rhsNode = k
		}
	}
	lhs, err := vm.expr(lhsNode)
	if err != nil {
		return nil, err
	}
	if op == syntax.And || op == syntax.Or {
		b, ok := lhs.(bool)
		if !ok {
			return nil, vm.errorf(lhsNode, "expected boolean, found %s", compiler.TypeName(lhs))
		}
		if op == syntax.And && !b || op == syntax.Or && b {
			return b, nil
		}
	}
	rhs, err := vm.expr(rhsNode)
	if err != nil {
		return nil, err
	}
	r, err := binaryOp(op, lhs, rhs)
	if err != nil {
		return nil, vm.errorf(n, "%s", err)
	}
	return r, nil
}

func (vm *vm) fieldAccess(n node) (compiler.Value, error) {
	kids := n.kids()
	target, err := vm.expr(kids[0])
	if err != nil {
		return nil, err
	}
	field := kids[len(kids)-1]
	v, err := fieldOf(target, field.Text())
	if err != nil {
		return nil, vm.errorf(field, "%s", err)
	}
	return v, nil
}

func fieldOf(target compiler.Value, name string) (compiler.Value, error) {
	switch t := target.(type) {
	case *Module:
		if v, ok := t.Scope.Get(name); ok {
			return v, nil
		}
		return nil, fmt.Errorf("module `%s` does not contain `%s`", t.Name, name)
	case *compiler.Dict:
		if v, ok := t.Get(name); ok {
			return v, nil
		}
		return nil, fmt.Errorf("dictionary does not contain key %q", name)
	case *compiler.Element:
		if v, ok := t.Field(name); ok {
			return v, nil
		}
		if name == "label" && t.Label != "" {
			return t.Label, nil
		}
		return nil, fmt.Errorf("content does not contain field %q", name)
	case compiler.Datetime:
		switch name {
		case "year":
			return int64(t.Year()), nil
		case "month":
			return int64(t.Month()), nil
		case "day":
			return int64(t.Day()), nil
		}
	case Color:
		switch name {
		case "r":
			return int64(t.R), nil
		case "g":
			return int64(t.G), nil
		case "b":
			return int64(t.B), nil
		}
	}
	return nil, fmt.Errorf("%s does not have field %q", compiler.TypeName(target), name)
}

func (vm *vm) call(n node) (compiler.Value, error) {
	kids := n.kids()
	callee, argsNode := kids[0], kids[len(kids)-1]

	if callee.Kind() == syntax.FieldAccess {
		parts := callee.kids()
		target, err := vm.expr(parts[0])
		if err != nil {
			return nil, err
		}
		name := parts[len(parts)-1].Text()
		if _, isModule := target.(*Module); !isModule {
			if _, isDict := target.(*compiler.Dict); !isDict || !hasKey(target, name) {
				a, err := vm.args(argsNode)
				if err != nil {
					return nil, err
				}
				v, err := vm.method(n, target, name, a)
				if err != nil {
					return nil, vm.located(n, err)
				}
				return v, nil
			}
		}
	}

	fv, err := vm.expr(callee)
	if err != nil {
		return nil, err
	}
	fn, ok := fv.(*Func)
	if !ok {
		return nil, vm.errorf(callee, "expected function, found %s", compiler.TypeName(fv))
	}
	a, err := vm.args(argsNode)
	if err != nil {
		return nil, err
	}
	return vm.invoke(n, fn, a)
}

func hasKey(v compiler.Value, k string) bool {
	d, _ := v.(*compiler.Dict)
	_, ok := d.Get(k)
	return ok
}

// located attaches plain errors to node n.
func (vm *vm) located(n node, err error) error {
	var f failure
	if errors.As(err, &f) {
		return err
	}
	return vm.errorf(n, "%s", err)
}

func (vm *vm) invoke(at node, fn *Func, a *args) (compiler.Value, error) {
	if fn.native != nil {
		v, err := fn.native(vm, a)
		if err != nil {
			return nil, vm.located(at, err)
		}
		if err := a.finish(); err != nil {
			return nil, vm.located(at, err)
		}
		return v, nil
	}

	c := fn.closure
	if vm.depth >= maxCallDepth {
		return nil, vm.errorf(at, "maximum function call depth exceeded")
	}
	callSpan := vm.span(at)
	saved, savedScope := vm.src, vm.scope
	vm.src = c.src
	vm.scope = newScope(c.scope)
	vm.depth++
	defer func() {
		vm.src, vm.scope = saved, savedScope
		vm.depth--
	}()

	for _, p := range c.params {
		v, err := a.expect(p)
		if err != nil {
			return nil, failure{diag.Errorf(callSpan, "%s", err)}
		}
		vm.scope.define(p, v)
	}
	if err := a.finish(); err != nil {
		return nil, failure{diag.Errorf(callSpan, "%s", err)}
	}
	if fn.Name != "" {
		vm.scope.define(fn.Name, fn)
	}
	v, err := vm.expr(c.body)
	if err != nil {
		point := diag.AnonymousCall()
		if fn.Name != "" {
			point = diag.Call(fn.Name)
		}
		return nil, traced(err, callSpan, point)
	}
	return v, nil
}

// traced adds a tracepoint to every diagnostic of err.
func traced(err error, span syntax.Span, point diag.Tracepoint) error {
	ds := diagnostics(err)
	out := make(failure, len(ds))
	for i, d := range ds {
		out[i] = d.WithTrace(span, point)
	}
	return out
}

func (vm *vm) closure(n node, name string) *Func {
	c := &closure{src: vm.src, scope: vm.scope}
	for _, k := range n.kids() {
		switch k.Kind() {
		case syntax.Params:
			for _, p := range k.exprs() {
				if p.Kind() == syntax.Ident {
					c.params = append(c.params, p.Text())
				}
			}
		case syntax.Ident, syntax.Eq, syntax.Arrow:
		default:
			if !k.Kind().IsTrivia() {
				c.body = k
			}
		}
	}
	return &Func{Name: name, closure: c}
}

func (vm *vm) let(n node) error {
	kids := n.exprs()
	if len(kids) == 0 {
		return vm.errorf(n, "expected pattern")
	}
	if kids[0].Kind() == syntax.Closure {
		name, _ := kids[0].find(syntax.Ident)
		fn := vm.closure(kids[0], name.Text())
		vm.scope.define(name.Text(), fn)
		return nil
	}
	name := kids[0].Text()
	var v compiler.Value
	if len(kids) > 1 {
		var err error
		if v, err = vm.expr(kids[1]); err != nil {
			return err
		}
		if f, ok := v.(*Func); ok && f.closure != nil && f.Name == "" {
			named := *f
			named.Name = name
			v = &named
		}
	}
	vm.scope.define(name, v)
	return nil
}

func (vm *vm) conditional(n node) (compiler.Value, error) {
	kids := n.exprs()
	cond, err := vm.expr(kids[0])
	if err != nil {
		return nil, err
	}
	b, ok := cond.(bool)
	if !ok {
		return nil, vm.errorf(kids[0], "expected boolean, found %s", compiler.TypeName(cond))
	}
	if b {
		return vm.expr(kids[1])
	}
	if len(kids) > 2 {
		return vm.expr(kids[2])
	}
	return nil, nil
}

func (vm *vm) forLoop(n node) (compiler.Value, error) {
	kids := n.exprs()
	if len(kids) < 3 {
		return nil, vm.errorf(n, "incomplete for loop")
	}
	name := kids[0].Text()
	iter, err := vm.expr(kids[1])
	if err != nil {
		return nil, err
	}
	var items []compiler.Value
	switch it := iter.(type) {
	case []compiler.Value:
		items = it
	case string:
		for _, r := range it {
			items = append(items, string(r))
		}
	case *compiler.Dict:
		it.Each(func(k string, v compiler.Value) {
			items = append(items, []compiler.Value{k, v})
		})
	default:
		return nil, vm.errorf(kids[1], "cannot loop over %s", compiler.TypeName(iter))
	}

	var out compiler.Value
	for _, item := range items {
		v, err := vm.scoped(func() (compiler.Value, error) {
			vm.scope.define(name, item)
			return vm.expr(kids[2])
		})
		if err != nil {
			return nil, err
		}
		if out, err = join(out, v); err != nil {
			return nil, vm.errorf(kids[2], "%s", err)
		}
	}
	return out, nil
}

// resolve maps an import path to a file. Package paths read the entrypoint
// from the package manifest.
func (vm *vm) resolve(at node, p string) (syntax.FileID, error) {
	if !strings.HasPrefix(p, "@") {
		base := vm.src.ID()
		if base.Path == "" {
			base = syntax.NewFileID(nil, "/")
		}
		return base.Join(p), nil
	}
	spec, err := syntax.ParsePackageSpec(p)
	if err != nil {
		return syntax.FileID{}, vm.errorf(at, "%s", err)
	}
	manifestID := syntax.NewFileID(&spec, "/typst.toml")
	data, err := vm.world.File(manifestID)
	if err != nil {
		return syntax.FileID{}, failure{diag.FromFileError(vm.span(at), err)}
	}
	var manifest struct {
		Package struct {
			Name       string `toml:"name"`
			Entrypoint string `toml:"entrypoint"`
		} `toml:"package"`
	}
	if _, err := toml.Decode(string(data), &manifest); err != nil {
		return syntax.FileID{}, vm.errorf(at, "package manifest is malformed (%s)", err)
	}
	entry := manifest.Package.Entrypoint
	if entry == "" {
		entry = "lib.typ"
	}
	return syntax.NewFileID(&spec, entry), nil
}

func (vm *vm) load(n node, source node) (*Module, error) {
	v, err := vm.expr(source)
	if err != nil {
		return nil, err
	}
	switch v := v.(type) {
	case *Module:
		return v, nil
	case string:
		id, err := vm.resolve(source, v)
		if err != nil {
			return nil, err
		}
		if _, err := vm.world.Source(id); err != nil {
			return nil, failure{diag.FromFileError(vm.span(source), err)}
		}
		m, err := vm.evalFile(id, vm.span(source))
		if err != nil {
			return nil, traced(err, vm.span(n), diag.Import())
		}
		return m, nil
	}
	return nil, vm.errorf(source, "expected path or module, found %s", compiler.TypeName(v))
}

func (vm *vm) moduleImport(n node) error {
	kids := n.exprs()
	m, err := vm.load(n, kids[0])
	if err != nil {
		return err
	}
	if _, ok := n.find(syntax.Star); ok {
		m.Scope.Each(vm.scope.define)
		return nil
	}
	items, ok := n.find(syntax.ImportItems)
	if !ok {
		vm.scope.define(m.Name, m)
		return nil
	}
	for _, item := range items.exprs() {
		v, ok := m.Scope.Get(item.Text())
		if !ok {
			return vm.errorf(item, "unresolved import")
		}
		vm.scope.define(item.Text(), v)
	}
	return nil
}

func (vm *vm) moduleInclude(n node) (compiler.Value, error) {
	kids := n.exprs()
	m, err := vm.load(n, kids[0])
	if err != nil {
		return nil, err
	}
	return m.Content, nil
}
