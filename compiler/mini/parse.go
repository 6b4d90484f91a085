package mini

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/wippyai/docbridge/syntax"
)

// Parse builds a lossless syntax tree for text in the given mode.
func Parse(text string, mode syntax.Mode) *syntax.Node {
	p := &parser{text: text}
	switch mode {
	case syntax.ModeCode:
		return syntax.Inner(syntax.Code, p.code(0)...)
	case syntax.ModeMath:
		return syntax.Inner(syntax.Math, p.math("")...)
	}
	return syntax.Inner(syntax.Markup, p.markup("", true)...)
}

type parser struct {
	text string
	pos  int
	// newlines are trivia inside parentheses but end statements in code
	// blocks.
	newlines bool
}

func (p *parser) done() bool { return p.pos >= len(p.text) }

func (p *parser) peek() byte {
	if p.done() {
		return 0
	}
	return p.text[p.pos]
}

func (p *parser) peekAt(i int) byte {
	if p.pos+i >= len(p.text) {
		return 0
	}
	return p.text[p.pos+i]
}

func (p *parser) peekRune() rune {
	r, _ := utf8.DecodeRuneInString(p.text[p.pos:])
	return r
}

func (p *parser) at(s string) bool {
	return strings.HasPrefix(p.text[p.pos:], s)
}

func (p *parser) eat(n int) string {
	s := p.text[p.pos : p.pos+n]
	p.pos += n
	return s
}

func (p *parser) eatWhile(fn func(rune) bool) string {
	start := p.pos
	for !p.done() {
		r, size := utf8.DecodeRuneInString(p.text[p.pos:])
		if !fn(r) {
			break
		}
		p.pos += size
	}
	return p.text[start:p.pos]
}

func (p *parser) eatRune() string {
	_, size := utf8.DecodeRuneInString(p.text[p.pos:])
	return p.eat(size)
}

func isIdentStart(r rune) bool { return r == '_' || unicode.IsLetter(r) }

func isIdentContinue(r rune) bool {
	return r == '_' || r == '-' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isLabelChar(r rune) bool {
	return isIdentContinue(r) || r == ':' || r == '.'
}

func isSpace(r rune) bool { return r == ' ' || r == '\t' || r == '\r' }

// ---- markup ----

const markupSpecial = " \t\r\n*_\\#<@$`/[]"

// markup parses until one of stops (or end of text). lineStart tells whether
// the first token starts a line, which enables headings and list items.
func (p *parser) markup(stops string, lineStart bool) []*syntax.Node {
	var nodes []*syntax.Node
	brackets := 0
	for !p.done() {
		c := p.peek()
		if strings.IndexByte(stops, c) >= 0 && !(c == ']' && brackets > 0) {
			break
		}
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			nodes = append(nodes, p.markupSpace(strings.IndexByte(stops, '\n') >= 0, &lineStart))
			continue
		case lineStart && c == '=':
			if n := p.heading(stops); n != nil {
				nodes = append(nodes, n)
				lineStart = false
				continue
			}
		case lineStart && (c == '-' || c == '+') && (p.peekAt(1) == ' ' || p.peekAt(1) == '\t'):
			nodes = append(nodes, p.listItem(stops))
			lineStart = false
			continue
		}
		lineStart = false

		switch c {
		case '*':
			nodes = append(nodes, p.delimited(syntax.Strong, syntax.Star, '*', stops))
		case '_':
			nodes = append(nodes, p.delimited(syntax.Emph, syntax.Underscore, '_', stops))
		case '\\':
			nodes = append(nodes, p.escape())
		case '#':
			nodes = append(nodes, p.embedded()...)
		case '<':
			if n := p.label(); n != nil {
				nodes = append(nodes, n)
			} else {
				nodes = append(nodes, syntax.Leaf(syntax.Text, p.eat(1)))
			}
		case '@':
			if n := p.ref(); n != nil {
				nodes = append(nodes, n)
			} else {
				nodes = append(nodes, syntax.Leaf(syntax.Text, p.eat(1)))
			}
		case '$':
			nodes = append(nodes, p.equation())
		case '`':
			nodes = append(nodes, p.raw())
		case '/':
			if n := p.comment(); n != nil {
				nodes = append(nodes, n)
			} else {
				nodes = append(nodes, syntax.Leaf(syntax.Text, p.eat(1)))
			}
		case '[':
			brackets++
			nodes = append(nodes, syntax.Leaf(syntax.Text, p.eat(1)))
		case ']':
			if brackets == 0 {
				nodes = append(nodes, syntax.ErrorNode(p.eat(1), "unexpected closing bracket"))
			} else {
				brackets--
				nodes = append(nodes, syntax.Leaf(syntax.Text, p.eat(1)))
			}
		default:
			text := p.eatWhile(func(r rune) bool {
				return r >= utf8.RuneSelf || strings.IndexRune(markupSpecial, r) < 0 && strings.IndexRune(stops, r) < 0
			})
			if text == "" {
				text = p.eatRune()
			}
			nodes = append(nodes, syntax.Leaf(syntax.Text, text))
		}
	}
	return nodes
}

func (p *parser) markupSpace(lineEnds bool, lineStart *bool) *syntax.Node {
	start := p.pos
	newlines := 0
	for !p.done() {
		c := p.peek()
		if c == '\n' {
			if lineEnds {
				break
			}
			newlines++
		} else if c != ' ' && c != '\t' && c != '\r' {
			break
		}
		p.pos++
	}
	if p.pos == start {
		// A newline that ends a heading or list item; the caller stops on it.
		return syntax.Leaf(syntax.Space, "")
	}
	text := p.text[start:p.pos]
	if newlines > 0 {
		*lineStart = true
	}
	if newlines >= 2 {
		return syntax.Leaf(syntax.Parbreak, text)
	}
	return syntax.Leaf(syntax.Space, text)
}

func (p *parser) heading(stops string) *syntax.Node {
	n := 0
	for p.peekAt(n) == '=' {
		n++
	}
	if next := p.peekAt(n); next != ' ' && next != '\t' && next != '\n' && next != 0 {
		return nil
	}
	marker := syntax.Leaf(syntax.HeadingMarker, p.eat(n))
	space := syntax.Leaf(syntax.Space, p.eatWhile(isSpace))
	body := syntax.Inner(syntax.Markup, p.markup(stops+"\n", false)...)
	return syntax.Inner(syntax.Heading, marker, space, body)
}

func (p *parser) listItem(stops string) *syntax.Node {
	kind, markerKind := syntax.ListItem, syntax.ListMarker
	if p.peek() == '+' {
		kind, markerKind = syntax.EnumItem, syntax.EnumMarker
	}
	marker := syntax.Leaf(markerKind, p.eat(1))
	space := syntax.Leaf(syntax.Space, p.eatWhile(isSpace))
	body := syntax.Inner(syntax.Markup, p.markup(stops+"\n", false)...)
	return syntax.Inner(kind, marker, space, body)
}

func (p *parser) delimited(kind, delim syntax.Kind, c byte, stops string) *syntax.Node {
	open := p.eat(1)
	body := syntax.Inner(syntax.Markup, p.markup(stops+string(c), false)...)
	if p.peek() == c {
		return syntax.Inner(kind, syntax.Leaf(delim, open), body, syntax.Leaf(delim, p.eat(1)))
	}
	return syntax.Inner(kind, syntax.ErrorNode(open, "unclosed delimiter"), body)
}

func (p *parser) escape() *syntax.Node {
	next := p.peekAt(1)
	if next == 0 || next == ' ' || next == '\t' || next == '\r' || next == '\n' {
		return syntax.Leaf(syntax.Linebreak, p.eat(1))
	}
	if next == 'u' && p.peekAt(2) == '{' {
		end := strings.IndexByte(p.text[p.pos:], '}')
		if end < 0 {
			return syntax.ErrorNode(p.eat(3), "unclosed unicode escape")
		}
		return syntax.Leaf(syntax.Escape, p.eat(end+1))
	}
	p.pos++
	text := "\\" + p.eatRune()
	return syntax.Leaf(syntax.Escape, text)
}

func (p *parser) label() *syntax.Node {
	i := 1
	for {
		r, size := utf8.DecodeRuneInString(p.text[p.pos+i:])
		if size == 0 || !isLabelChar(r) {
			break
		}
		i += size
	}
	if i == 1 || p.peekAt(i) != '>' {
		return nil
	}
	return syntax.Leaf(syntax.Label, p.eat(i+1))
}

func (p *parser) ref() *syntax.Node {
	i := 1
	for {
		r, size := utf8.DecodeRuneInString(p.text[p.pos+i:])
		if size == 0 || !isLabelChar(r) {
			break
		}
		i += size
	}
	// A trailing dot ends the sentence, not the label.
	for i > 1 && p.text[p.pos+i-1] == '.' {
		i--
	}
	if i == 1 {
		return nil
	}
	return syntax.Inner(syntax.Ref, syntax.Leaf(syntax.RefMarker, p.eat(i)))
}

func (p *parser) equation() *syntax.Node {
	open := syntax.Leaf(syntax.Dollar, p.eat(1))
	body := syntax.Inner(syntax.Math, p.math("$")...)
	if p.peek() == '$' {
		return syntax.Inner(syntax.Equation, open, body, syntax.Leaf(syntax.Dollar, p.eat(1)))
	}
	return syntax.Inner(syntax.Equation, syntax.ErrorNode(open.Text(), "unclosed delimiter"), body)
}

func (p *parser) raw() *syntax.Node {
	n := 0
	for p.peekAt(n) == '`' {
		n++
	}
	if n == 2 {
		return syntax.Inner(syntax.Raw, syntax.Leaf(syntax.RawDelim, p.eat(1)), syntax.Leaf(syntax.RawDelim, p.eat(1)))
	}
	delim := p.text[p.pos : p.pos+n]
	open := p.eat(n)
	children := []*syntax.Node{syntax.Leaf(syntax.RawDelim, open)}
	if n >= 3 {
		if lang := p.eatWhile(isIdentContinue); lang != "" {
			children = append(children, syntax.Leaf(syntax.RawLang, lang))
		}
	}
	end := strings.Index(p.text[p.pos:], delim)
	if end < 0 {
		children[0] = syntax.ErrorNode(open, "unclosed raw text")
		if rest := p.eat(len(p.text) - p.pos); rest != "" {
			children = append(children, syntax.Leaf(syntax.Text, rest))
		}
		return syntax.Inner(syntax.Raw, children...)
	}
	if end > 0 {
		children = append(children, syntax.Leaf(syntax.Text, p.eat(end)))
	}
	children = append(children, syntax.Leaf(syntax.RawDelim, p.eat(n)))
	return syntax.Inner(syntax.Raw, children...)
}

func (p *parser) comment() *syntax.Node {
	switch {
	case p.at("//"):
		end := strings.IndexByte(p.text[p.pos:], '\n')
		if end < 0 {
			end = len(p.text) - p.pos
		}
		return syntax.Leaf(syntax.LineComment, p.eat(end))
	case p.at("/*"):
		depth := 0
		for i := p.pos; i+1 < len(p.text); i++ {
			switch p.text[i : i+2] {
			case "/*":
				depth++
				i++
			case "*/":
				depth--
				i++
				if depth == 0 {
					return syntax.Leaf(syntax.BlockComment, p.eat(i+1-p.pos))
				}
			}
		}
		return syntax.ErrorNode(p.eat(len(p.text)-p.pos), "unclosed comment")
	}
	return nil
}

// embedded parses `#expr` in markup. Keyword statements run to the end of
// the line; other expressions are atomic.
func (p *parser) embedded() []*syntax.Node {
	r, _ := utf8.DecodeRuneInString(p.text[p.pos+1:])
	if !(isIdentStart(r) || r == '(' || r == '[' || r == '{' || r == '"' || unicode.IsDigit(r)) {
		return []*syntax.Node{syntax.Leaf(syntax.Text, p.eat(1))}
	}
	hash := syntax.Leaf(syntax.Hash, p.eat(1))
	saved := p.newlines
	p.newlines = false
	defer func() { p.newlines = saved }()

	var expr *syntax.Node
	if statements[p.peekIdent()] {
		expr = p.expr(0)
	} else {
		expr = p.postfix(p.primary())
	}
	nodes := []*syntax.Node{hash, expr}
	if p.peek() == ';' {
		nodes = append(nodes, syntax.Leaf(syntax.Semicolon, p.eat(1)))
	}
	return nodes
}

// ---- math ----

func (p *parser) math(stops string) []*syntax.Node {
	var nodes []*syntax.Node
	for !p.done() {
		c := p.peek()
		if strings.IndexByte(stops, c) >= 0 {
			break
		}
		r := p.peekRune()
		switch {
		case isSpace(r) || r == '\n':
			nodes = append(nodes, syntax.Leaf(syntax.Space, p.eatWhile(func(r rune) bool { return isSpace(r) || r == '\n' })))
		case unicode.IsLetter(r):
			word := p.eatWhile(unicode.IsLetter)
			if utf8.RuneCountInString(word) > 1 {
				nodes = append(nodes, syntax.Leaf(syntax.MathIdent, word))
			} else {
				nodes = append(nodes, syntax.Leaf(syntax.MathText, word))
			}
		case unicode.IsDigit(r):
			nodes = append(nodes, syntax.Leaf(syntax.MathText, p.eatWhile(func(r rune) bool { return unicode.IsDigit(r) || r == '.' })))
		case r == '\\' && p.peekAt(1) != 0:
			nodes = append(nodes, p.escape())
		default:
			nodes = append(nodes, syntax.Leaf(syntax.MathText, p.eatRune()))
		}
	}
	return nodes
}

// ---- code ----

var keywords = map[string]syntax.Kind{
	"none": syntax.None, "auto": syntax.Auto, "true": syntax.Bool, "false": syntax.Bool,
	"let": syntax.Let, "set": syntax.Set, "show": syntax.Show, "context": syntax.Context,
	"if": syntax.If, "else": syntax.Else, "for": syntax.For, "in": syntax.In,
	"while": syntax.While, "break": syntax.Break, "continue": syntax.Continue,
	"return": syntax.Return, "import": syntax.Import, "include": syntax.Include,
	"as": syntax.As, "not": syntax.Not, "and": syntax.And, "or": syntax.Or,
}

// statements are the keywords that start a statement running to the end of
// the line when embedded in markup.
var statements = map[string]bool{
	"let": true, "if": true, "for": true, "import": true, "include": true,
	"set": true, "show": true, "context": true, "while": true, "return": true,
}

func (p *parser) peekIdent() string {
	i := p.pos
	for i < len(p.text) {
		r, size := utf8.DecodeRuneInString(p.text[i:])
		if i == p.pos && !isIdentStart(r) || i > p.pos && !isIdentContinue(r) {
			break
		}
		i += size
	}
	return p.text[p.pos:i]
}

// triviaEnd returns where the trivia starting at pos ends.
func (p *parser) triviaEnd(newlines bool) int {
	i := p.pos
	for i < len(p.text) {
		c := p.text[i]
		switch {
		case c == ' ' || c == '\t' || c == '\r' || newlines && c == '\n':
			i++
		case strings.HasPrefix(p.text[i:], "//") || strings.HasPrefix(p.text[i:], "/*"):
			saved := p.pos
			p.pos = i
			if n := p.comment(); n != nil && n.Kind() != syntax.Error {
				i = p.pos
				p.pos = saved
				continue
			}
			p.pos = saved
			return i
		default:
			return i
		}
	}
	return i
}

// trivia consumes whitespace and comments.
func (p *parser) trivia(newlines bool) []*syntax.Node {
	var nodes []*syntax.Node
	for {
		start := p.pos
		p.eatWhile(func(r rune) bool { return isSpace(r) || newlines && r == '\n' })
		if p.pos > start {
			nodes = append(nodes, syntax.Leaf(syntax.Space, p.text[start:p.pos]))
		}
		if !p.at("//") && !p.at("/*") {
			return nodes
		}
		n := p.comment()
		nodes = append(nodes, n)
		if n.Kind() == syntax.Error {
			return nodes
		}
	}
}

// code parses statements until stop (0 for end of text).
func (p *parser) code(stop byte) []*syntax.Node {
	saved := p.newlines
	p.newlines = false
	defer func() { p.newlines = saved }()

	var nodes []*syntax.Node
	for {
		nodes = append(nodes, p.trivia(true)...)
		for p.peek() == ';' {
			nodes = append(nodes, syntax.Leaf(syntax.Semicolon, p.eat(1)))
			nodes = append(nodes, p.trivia(true)...)
		}
		if p.done() || p.peek() == stop {
			return nodes
		}
		if stop == 0 && strings.IndexByte(")]}", p.peek()) >= 0 {
			nodes = append(nodes, syntax.ErrorNode(p.eat(1), "unexpected closing delimiter"))
			continue
		}
		start := p.pos
		nodes = append(nodes, p.expr(0))
		if p.pos == start {
			nodes = append(nodes, syntax.ErrorNode(p.eatRune(), "unexpected character"))
			continue
		}
		if end := p.triviaEnd(false); end < len(p.text) {
			c := p.text[end]
			if c != '\n' && c != ';' && c != stop {
				nodes = append(nodes, p.trivia(false)...)
				if !p.done() && p.peek() != stop {
					nodes = append(nodes, syntax.ErrorNode("", "expected semicolon or line break"))
				}
			}
		}
	}
}

type infixOp struct {
	text string
	kind syntax.Kind
	prec int
}

// Longer operators first so "<=" wins over "<".
var infixOps = []infixOp{
	{"==", syntax.EqEq, 4}, {"!=", syntax.ExclEq, 4}, {"<=", syntax.LtEq, 4}, {">=", syntax.GtEq, 4},
	{"<", syntax.Lt, 4}, {">", syntax.Gt, 4}, {"+", syntax.Plus, 5}, {"-", syntax.Minus, 5},
	{"*", syntax.Star, 6}, {"/", syntax.Slash, 6}, {"and", syntax.And, 2}, {"or", syntax.Or, 1},
	{"in", syntax.In, 4},
}

func (p *parser) binaryAt(i int) (infixOp, bool) {
	rest := p.text[i:]
	for _, op := range infixOps {
		if !strings.HasPrefix(rest, op.text) {
			continue
		}
		if isIdentStart(rune(op.text[0])) {
			r, _ := utf8.DecodeRuneInString(rest[len(op.text):])
			if isIdentContinue(r) {
				continue
			}
		}
		if (op.text == "/" || op.text == "*") && len(rest) > 1 && (rest[1] == '/' || rest[1] == '*') {
			continue
		}
		return op, true
	}
	return infixOp{}, false
}

func (p *parser) expr(minPrec int) *syntax.Node {
	lhs := p.unary()
	for {
		end := p.triviaEnd(p.newlines)
		if end >= len(p.text) {
			return lhs
		}
		op, ok := p.binaryAt(end)
		if !ok || op.prec < minPrec {
			return lhs
		}
		children := []*syntax.Node{lhs}
		children = append(children, p.trivia(p.newlines)...)
		children = append(children, syntax.Leaf(op.kind, p.eat(len(op.text))))
		children = append(children, p.trivia(p.newlines)...)
		children = append(children, p.expr(op.prec+1))
		lhs = syntax.Inner(syntax.Binary, children...)
	}
}

func (p *parser) unary() *syntax.Node {
	switch {
	case p.peek() == '-' || p.peek() == '+':
		kind := syntax.Minus
		if p.peek() == '+' {
			kind = syntax.Plus
		}
		op := syntax.Leaf(kind, p.eat(1))
		return syntax.Inner(syntax.Unary, op, p.expr(7))
	case p.peekIdent() == "not":
		op := syntax.Leaf(syntax.Not, p.eat(3))
		children := append([]*syntax.Node{op}, p.trivia(p.newlines)...)
		return syntax.Inner(syntax.Unary, append(children, p.expr(3))...)
	}
	return p.postfix(p.primary())
}

// postfix parses calls and field accesses directly following target.
func (p *parser) postfix(target *syntax.Node) *syntax.Node {
	for {
		switch c := p.peek(); {
		case c == '(' || c == '[':
			target = syntax.Inner(syntax.FuncCall, target, p.args())
		case c == '.' && isIdentStart(rune(p.peekAt(1))):
			dot := syntax.Leaf(syntax.Dot, p.eat(1))
			field := syntax.Leaf(syntax.Ident, p.eatWhile(isIdentContinue))
			target = syntax.Inner(syntax.FieldAccess, target, dot, field)
		default:
			return target
		}
	}
}

func (p *parser) primary() *syntax.Node {
	if p.done() {
		return syntax.ErrorNode("", "expected expression")
	}
	c := p.peek()
	r := p.peekRune()
	switch {
	case isIdentStart(r):
		return p.identOrKeyword()
	case unicode.IsDigit(r):
		return p.number()
	case c == '"':
		return p.str()
	case c == '(':
		return p.collection()
	case c == '[':
		return p.contentBlock()
	case c == '{':
		return p.codeBlock()
	case c == '$':
		return p.equation()
	case c == '<':
		if n := p.label(); n != nil {
			return n
		}
	case c == '.' && p.peekAt(1) >= '0' && p.peekAt(1) <= '9':
		return p.number()
	}
	if strings.IndexByte(")]},;:=\n", c) >= 0 {
		return syntax.ErrorNode("", "expected expression")
	}
	return syntax.ErrorNode(p.eatRune(), "unexpected character")
}

func (p *parser) identOrKeyword() *syntax.Node {
	word := p.peekIdent()
	kind, isKeyword := keywords[word]
	if !isKeyword {
		ident := syntax.Leaf(syntax.Ident, p.eat(len(word)))
		if end := p.triviaEnd(false); strings.HasPrefix(p.text[end:], "=>") {
			return p.closure(syntax.Inner(syntax.Params, ident))
		}
		return ident
	}
	switch kind {
	case syntax.None, syntax.Auto, syntax.Bool:
		return syntax.Leaf(kind, p.eat(len(word)))
	case syntax.Let:
		return p.letBinding()
	case syntax.If:
		return p.conditional()
	case syntax.For:
		return p.forLoop()
	case syntax.Import:
		return p.moduleImport()
	case syntax.Include:
		kw := syntax.Leaf(syntax.Include, p.eat(len(word)))
		children := append([]*syntax.Node{kw}, p.trivia(false)...)
		return syntax.Inner(syntax.ModuleInclude, append(children, p.expr(0))...)
	case syntax.Not:
		return p.unary()
	}
	return syntax.ErrorNode(p.eat(len(word)), "`"+word+"` is not supported here")
}

func (p *parser) number() *syntax.Node {
	start := p.pos
	p.eatWhile(unicode.IsDigit)
	kind := syntax.Int
	if p.peek() == '.' && p.peekAt(1) >= '0' && p.peekAt(1) <= '9' {
		p.pos++
		p.eatWhile(unicode.IsDigit)
		kind = syntax.Float
	}
	if p.peek() == '%' {
		p.pos++
		kind = syntax.Numeric
	} else if unit := p.eatWhile(unicode.IsLetter); unit != "" {
		kind = syntax.Numeric
	}
	return syntax.Leaf(kind, p.text[start:p.pos])
}

func (p *parser) str() *syntax.Node {
	i := p.pos + 1
	for i < len(p.text) {
		switch p.text[i] {
		case '\\':
			i += 2
			continue
		case '"':
			return syntax.Leaf(syntax.Str, p.eat(i+1-p.pos))
		case '\n':
			return syntax.ErrorNode(p.eat(i-p.pos), "unclosed string")
		}
		i++
	}
	return syntax.ErrorNode(p.eat(len(p.text)-p.pos), "unclosed string")
}

// collection parses a parenthesized expression, array or dictionary.
func (p *parser) collection() *syntax.Node {
	saved := p.newlines
	p.newlines = true
	defer func() { p.newlines = saved }()

	children := []*syntax.Node{syntax.Leaf(syntax.LeftParen, p.eat(1))}
	children = append(children, p.trivia(true)...)
	if p.at(":)") {
		children = append(children, syntax.Leaf(syntax.Colon, p.eat(1)), syntax.Leaf(syntax.RightParen, p.eat(1)))
		return syntax.Inner(syntax.Dict, children...)
	}

	items, named, trailingComma := 0, false, false
	for !p.done() && p.peek() != ')' {
		start := p.pos
		item := p.item()
		if item.Kind() == syntax.Named || item.Kind() == syntax.Keyed {
			named = true
		}
		children = append(children, item)
		items++
		children = append(children, p.trivia(true)...)
		trailingComma = false
		if p.peek() == ',' {
			children = append(children, syntax.Leaf(syntax.Comma, p.eat(1)))
			children = append(children, p.trivia(true)...)
			trailingComma = true
		} else if p.peek() != ')' {
			if p.pos == start || p.done() {
				break
			}
			children = append(children, syntax.ErrorNode("", "expected comma"))
		}
	}
	if p.peek() == ')' {
		children = append(children, syntax.Leaf(syntax.RightParen, p.eat(1)))
	} else {
		children = append(children, syntax.ErrorNode("", "unclosed delimiter"))
	}

	kind := syntax.Array
	switch {
	case named:
		kind = syntax.Dict
	case items == 1 && !trailingComma:
		kind = syntax.Parenthesized
	}
	node := syntax.Inner(kind, children...)
	if end := p.triviaEnd(false); strings.HasPrefix(p.text[end:], "=>") && kind != syntax.Dict {
		return p.closure(syntax.Inner(syntax.Params, children...))
	}
	return node
}

// item parses one collection or argument item: `name: expr`,
// `"key": expr` or a plain expression.
func (p *parser) item() *syntax.Node {
	if word := p.peekIdent(); word != "" && keywords[word] == 0 {
		end := p.pos + len(word)
		saved := p.pos
		p.pos = end
		colonAt := p.triviaEnd(true)
		p.pos = saved
		if colonAt < len(p.text) && p.text[colonAt] == ':' {
			name := syntax.Leaf(syntax.Ident, p.eat(len(word)))
			children := append([]*syntax.Node{name}, p.trivia(true)...)
			children = append(children, syntax.Leaf(syntax.Colon, p.eat(1)))
			children = append(children, p.trivia(true)...)
			return syntax.Inner(syntax.Named, append(children, p.expr(0))...)
		}
	}
	if p.peek() == '"' {
		saved := p.pos
		key := p.str()
		if key.Kind() == syntax.Str {
			colonAt := p.triviaEnd(true)
			if colonAt < len(p.text) && p.text[colonAt] == ':' {
				children := append([]*syntax.Node{key}, p.trivia(true)...)
				children = append(children, syntax.Leaf(syntax.Colon, p.eat(1)))
				children = append(children, p.trivia(true)...)
				return syntax.Inner(syntax.Keyed, append(children, p.expr(0))...)
			}
		}
		p.pos = saved
	}
	if p.at("..") {
		dots := syntax.Leaf(syntax.Dots, p.eat(2))
		return syntax.Inner(syntax.Spread, dots, p.expr(0))
	}
	return p.expr(0)
}

// args parses a call's argument list and trailing content blocks.
func (p *parser) args() *syntax.Node {
	var children []*syntax.Node
	if p.peek() == '(' {
		saved := p.newlines
		p.newlines = true
		children = append(children, syntax.Leaf(syntax.LeftParen, p.eat(1)))
		children = append(children, p.trivia(true)...)
		for !p.done() && p.peek() != ')' {
			start := p.pos
			children = append(children, p.item())
			children = append(children, p.trivia(true)...)
			if p.peek() == ',' {
				children = append(children, syntax.Leaf(syntax.Comma, p.eat(1)))
				children = append(children, p.trivia(true)...)
			} else if p.peek() != ')' {
				if p.pos == start || p.done() {
					break
				}
				children = append(children, syntax.ErrorNode("", "expected comma"))
			}
		}
		if p.peek() == ')' {
			children = append(children, syntax.Leaf(syntax.RightParen, p.eat(1)))
		} else {
			children = append(children, syntax.ErrorNode("", "unclosed delimiter"))
		}
		p.newlines = saved
	}
	for p.peek() == '[' {
		children = append(children, p.contentBlock())
	}
	return syntax.Inner(syntax.Args, children...)
}

func (p *parser) contentBlock() *syntax.Node {
	open := syntax.Leaf(syntax.LeftBracket, p.eat(1))
	body := syntax.Inner(syntax.Markup, p.markup("]", true)...)
	if p.peek() == ']' {
		return syntax.Inner(syntax.ContentBlock, open, body, syntax.Leaf(syntax.RightBracket, p.eat(1)))
	}
	return syntax.Inner(syntax.ContentBlock, open, body, syntax.ErrorNode("", "unclosed delimiter"))
}

func (p *parser) codeBlock() *syntax.Node {
	open := syntax.Leaf(syntax.LeftBrace, p.eat(1))
	body := syntax.Inner(syntax.Code, p.code('}')...)
	if p.peek() == '}' {
		return syntax.Inner(syntax.CodeBlock, open, body, syntax.Leaf(syntax.RightBrace, p.eat(1)))
	}
	return syntax.Inner(syntax.CodeBlock, open, body, syntax.ErrorNode("", "unclosed delimiter"))
}

func (p *parser) closure(params *syntax.Node) *syntax.Node {
	children := append([]*syntax.Node{params}, p.trivia(false)...)
	children = append(children, syntax.Leaf(syntax.Arrow, p.eat(2)))
	children = append(children, p.trivia(false)...)
	return syntax.Inner(syntax.Closure, append(children, p.expr(0))...)
}

func (p *parser) keyword(kind syntax.Kind, word string) []*syntax.Node {
	kw := syntax.Leaf(kind, p.eat(len(word)))
	return append([]*syntax.Node{kw}, p.trivia(false)...)
}

func (p *parser) letBinding() *syntax.Node {
	children := p.keyword(syntax.Let, "let")
	name := p.peekIdent()
	if name == "" || keywords[name] != 0 {
		return syntax.Inner(syntax.LetBinding, append(children, syntax.ErrorNode("", "expected pattern"))...)
	}
	ident := syntax.Leaf(syntax.Ident, p.eat(len(name)))

	if p.peek() == '(' {
		// let f(a, b) = body
		params := p.collection()
		if params.Kind() == syntax.Closure {
			return syntax.Inner(syntax.LetBinding, append(children, ident, params)...)
		}
		fn := []*syntax.Node{ident, syntax.Inner(syntax.Params, params.Children()...)}
		fn = append(fn, p.trivia(false)...)
		if p.peek() != '=' {
			fn = append(fn, syntax.ErrorNode("", "expected equals sign"))
			return syntax.Inner(syntax.LetBinding, append(children, syntax.Inner(syntax.Closure, fn...))...)
		}
		fn = append(fn, syntax.Leaf(syntax.Eq, p.eat(1)))
		fn = append(fn, p.trivia(false)...)
		fn = append(fn, p.expr(0))
		return syntax.Inner(syntax.LetBinding, append(children, syntax.Inner(syntax.Closure, fn...))...)
	}

	children = append(children, ident)
	if end := p.triviaEnd(false); end < len(p.text) && p.text[end] == '=' && !strings.HasPrefix(p.text[end:], "==") {
		children = append(children, p.trivia(false)...)
		children = append(children, syntax.Leaf(syntax.Eq, p.eat(1)))
		children = append(children, p.trivia(false)...)
		children = append(children, p.expr(0))
	}
	return syntax.Inner(syntax.LetBinding, children...)
}

func (p *parser) body() *syntax.Node {
	switch p.peek() {
	case '{':
		return p.codeBlock()
	case '[':
		return p.contentBlock()
	}
	return syntax.ErrorNode("", "expected block")
}

func (p *parser) conditional() *syntax.Node {
	children := p.keyword(syntax.If, "if")
	children = append(children, p.expr(0))
	children = append(children, p.trivia(false)...)
	children = append(children, p.body())
	if end := p.triviaEnd(false); strings.HasPrefix(p.text[end:], "else") {
		children = append(children, p.trivia(false)...)
		children = append(children, p.keyword(syntax.Else, "else")...)
		if p.peekIdent() == "if" {
			children = append(children, p.conditional())
		} else {
			children = append(children, p.body())
		}
	}
	return syntax.Inner(syntax.Conditional, children...)
}

func (p *parser) forLoop() *syntax.Node {
	children := p.keyword(syntax.For, "for")
	name := p.peekIdent()
	if name == "" || keywords[name] != 0 {
		return syntax.Inner(syntax.ForLoop, append(children, syntax.ErrorNode("", "expected pattern"))...)
	}
	children = append(children, syntax.Leaf(syntax.Ident, p.eat(len(name))))
	children = append(children, p.trivia(false)...)
	if p.peekIdent() != "in" {
		return syntax.Inner(syntax.ForLoop, append(children, syntax.ErrorNode("", "expected keyword `in`"))...)
	}
	children = append(children, p.keyword(syntax.In, "in")...)
	children = append(children, p.expr(0))
	children = append(children, p.trivia(false)...)
	children = append(children, p.body())
	return syntax.Inner(syntax.ForLoop, children...)
}

func (p *parser) moduleImport() *syntax.Node {
	children := p.keyword(syntax.Import, "import")
	children = append(children, p.expr(0))
	end := p.triviaEnd(false)
	if end >= len(p.text) || p.text[end] != ':' {
		return syntax.Inner(syntax.ModuleImport, children...)
	}
	children = append(children, p.trivia(false)...)
	children = append(children, syntax.Leaf(syntax.Colon, p.eat(1)))
	children = append(children, p.trivia(false)...)
	if p.peek() == '*' {
		return syntax.Inner(syntax.ModuleImport, append(children, syntax.Leaf(syntax.Star, p.eat(1)))...)
	}

	var items []*syntax.Node
	for {
		name := p.peekIdent()
		if name == "" || keywords[name] != 0 {
			items = append(items, syntax.ErrorNode("", "expected import item"))
			break
		}
		items = append(items, syntax.Leaf(syntax.Ident, p.eat(len(name))))
		end := p.triviaEnd(false)
		if end >= len(p.text) || p.text[end] != ',' {
			break
		}
		items = append(items, p.trivia(false)...)
		items = append(items, syntax.Leaf(syntax.Comma, p.eat(1)))
		items = append(items, p.trivia(false)...)
	}
	return syntax.Inner(syntax.ModuleImport, append(children, syntax.Inner(syntax.ImportItems, items...))...)
}
