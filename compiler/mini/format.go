package mini

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/wippyai/docbridge/syntax"
)

// Format normalizes markup source. Code gets single spaces around binary
// operators and after commas; argument lists, arrays and dictionaries that
// would run past column are broken into one item per line, indented by tab
// spaces. Markup text is never reflowed.
func (e *Engine) Format(text string, column, tab int) (string, error) {
	if column <= 0 {
		return "", fmt.Errorf("column must be positive, got %d", column)
	}
	if tab < 0 {
		return "", fmt.Errorf("tab width must not be negative, got %d", tab)
	}
	root := Parse(text, syntax.ModeMarkup)
	if errs := root.Errors(); len(errs) > 0 {
		return "", fmt.Errorf("cannot format source with syntax errors: %s", errs[0].Message)
	}
	f := &formatter{column: column, tab: tab}
	f.markup(root)
	out := strings.TrimRight(string(f.out), " \t\r\n")
	if out == "" {
		return "", nil
	}
	return out + "\n", nil
}

type formatter struct {
	out    []byte
	col    int
	indent int
	column int
	tab    int
}

func (f *formatter) write(s string) {
	f.out = append(f.out, s...)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		f.col = runewidth.StringWidth(s[i+1:])
		return
	}
	f.col += runewidth.StringWidth(s)
}

func (f *formatter) trimRight() {
	for len(f.out) > 0 && (f.out[len(f.out)-1] == ' ' || f.out[len(f.out)-1] == '\t') {
		f.out = f.out[:len(f.out)-1]
	}
}

// newline ends the line and indents the next one to the current level.
func (f *formatter) newline() {
	f.trimRight()
	f.write("\n" + strings.Repeat(" ", f.indent))
}

// render formats n on its own to measure it.
func (f *formatter) render(n *syntax.Node) string {
	g := &formatter{column: f.column, tab: f.tab}
	g.node(n)
	return string(g.out)
}

func (f *formatter) markup(n *syntax.Node) {
	for _, c := range n.Children() {
		switch c.Kind() {
		case syntax.Space:
			text := c.Text()
			i := strings.LastIndexByte(text, '\n')
			if i < 0 {
				f.write(" ")
				continue
			}
			f.trimRight()
			f.write("\n" + text[i+1:])
		case syntax.Parbreak:
			text := c.Text()
			f.trimRight()
			f.write("\n\n" + text[strings.LastIndexByte(text, '\n')+1:])
		default:
			f.node(c)
		}
	}
}

func (f *formatter) node(n *syntax.Node) {
	switch n.Kind() {
	case syntax.Markup:
		f.markup(n)
	case syntax.Raw, syntax.Equation, syntax.Str:
		f.write(n.Full())
	case syntax.ContentBlock:
		for _, c := range n.Children() {
			f.node(c)
		}
	case syntax.CodeBlock:
		f.codeBlock(n)
	case syntax.Binary:
		f.binary(n)
	case syntax.Array, syntax.Dict, syntax.Parenthesized, syntax.Params:
		f.collection(n)
	case syntax.Args:
		f.args(n)
	default:
		if n.IsLeaf() {
			f.write(n.Text())
			return
		}
		f.generic(n)
	}
}

// generic writes children, collapsing inline whitespace to one space.
func (f *formatter) generic(n *syntax.Node) {
	for _, c := range n.Children() {
		if c.Kind() != syntax.Space {
			f.node(c)
			continue
		}
		if strings.Contains(c.Text(), "\n") {
			f.newline()
		} else {
			f.write(" ")
		}
	}
}

func hasComment(n *syntax.Node) bool {
	for _, c := range n.Children() {
		if c.Kind() == syntax.LineComment || c.Kind() == syntax.BlockComment {
			return true
		}
	}
	return false
}

func (f *formatter) binary(n *syntax.Node) {
	if hasComment(n) {
		f.generic(n)
		return
	}
	var parts []*syntax.Node
	for _, c := range n.Children() {
		if c.Kind() != syntax.Space {
			parts = append(parts, c)
		}
	}
	if len(parts) != 3 {
		f.generic(n)
		return
	}
	f.node(parts[0])
	f.write(" " + parts[1].Text() + " ")
	f.node(parts[2])
}

// items returns the entries of a parenthesized collection.
func items(n *syntax.Node) []*syntax.Node {
	var out []*syntax.Node
	for _, c := range n.Children() {
		switch c.Kind() {
		case syntax.Space, syntax.Comma, syntax.LeftParen, syntax.RightParen, syntax.Colon:
		default:
			out = append(out, c)
		}
	}
	return out
}

func (f *formatter) collection(n *syntax.Node) {
	if hasComment(n) {
		f.write(n.Full())
		return
	}
	entries := items(n)
	if n.Kind() == syntax.Dict && len(entries) == 0 {
		f.write("(:)")
		return
	}
	trailing := n.Kind() == syntax.Array && len(entries) == 1
	f.list(entries, trailing)
}

func (f *formatter) args(n *syntax.Node) {
	kids := n.Children()
	if hasComment(n) {
		f.write(n.Full())
		return
	}
	if len(kids) > 0 && kids[0].Kind() == syntax.LeftParen {
		var entries []*syntax.Node
		for _, c := range items(n) {
			if c.Kind() != syntax.ContentBlock {
				entries = append(entries, c)
			}
		}
		f.list(entries, false)
	}
	for _, c := range kids {
		if c.Kind() == syntax.ContentBlock {
			f.node(c)
		}
	}
}

// list writes a parenthesized list flat when it fits, else one entry per
// line with a trailing comma.
func (f *formatter) list(entries []*syntax.Node, trailing bool) {
	rendered := make([]string, len(entries))
	multiline := false
	for i, e := range entries {
		rendered[i] = f.render(e)
		multiline = multiline || strings.Contains(rendered[i], "\n")
	}
	flat := "(" + strings.Join(rendered, ", ")
	if trailing {
		flat += ","
	}
	flat += ")"
	if !multiline && f.col+runewidth.StringWidth(flat) <= f.column || len(entries) == 0 {
		f.write(flat)
		return
	}
	f.write("(")
	f.indent += f.tab
	for _, e := range entries {
		f.newline()
		f.node(e)
		f.write(",")
	}
	f.indent -= f.tab
	f.newline()
	f.write(")")
}

func (f *formatter) codeBlock(n *syntax.Node) {
	var body *syntax.Node
	for _, c := range n.Children() {
		if c.Kind() == syntax.Code {
			body = c
		}
	}
	if body == nil || !strings.Contains(body.Full(), "\n") {
		f.generic(n)
		return
	}
	f.write("{")
	f.indent += f.tab
	blank := false
	first := true
	for _, c := range body.Children() {
		switch c.Kind() {
		case syntax.Space:
			blank = !first && strings.Count(c.Text(), "\n") >= 2
		case syntax.Semicolon:
		default:
			if blank {
				f.newline()
			}
			f.newline()
			f.node(c)
			blank, first = false, false
		}
	}
	f.indent -= f.tab
	f.newline()
	f.write("}")
}
