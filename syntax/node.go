package syntax

import (
	"fmt"
	"strings"
)

// SyntaxError is a message attached to an error node.
type SyntaxError struct {
	Message string
	Hints   []string
}

// Node is a lossless syntax tree node. Leaves carry their text; inner nodes
// carry children whose lengths add up to the node length. Error nodes are
// leaves with at least one SyntaxError.
type Node struct {
	kind     Kind
	length   int
	text     string
	children []*Node
	errors   []SyntaxError
}

// Leaf creates a token node.
func Leaf(kind Kind, text string) *Node {
	return &Node{kind: kind, length: len(text), text: text}
}

// Inner creates a node spanning its children.
func Inner(kind Kind, children ...*Node) *Node {
	n := &Node{kind: kind, children: children}
	for _, c := range children {
		n.length += c.length
	}
	return n
}

// ErrorNode creates an error leaf covering text.
func ErrorNode(text, message string, hints ...string) *Node {
	return &Node{
		kind:   Error,
		length: len(text),
		text:   text,
		errors: []SyntaxError{{Message: message, Hints: hints}},
	}
}

// Kind returns the node kind.
func (n *Node) Kind() Kind { return n.kind }

// Len returns the byte length of the node.
func (n *Node) Len() int { return n.length }

// Text returns the text of a leaf; inner nodes return "".
func (n *Node) Text() string { return n.text }

// Children returns the children of an inner node.
func (n *Node) Children() []*Node { return n.children }

// IsLeaf reports whether n has no children.
func (n *Node) IsLeaf() bool { return len(n.children) == 0 }

// Erroneous reports whether n or any descendant is an error node.
func (n *Node) Erroneous() bool {
	if n.kind == Error {
		return true
	}
	for _, c := range n.children {
		if c.Erroneous() {
			return true
		}
	}
	return false
}

// Errors collects the errors of n and its descendants in order.
func (n *Node) Errors() []SyntaxError {
	var out []SyntaxError
	n.Walk(0, func(c *Node, _ int) bool {
		out = append(out, c.errors...)
		return true
	})
	return out
}

// ErrorsAt is like Errors but also returns the byte offset of each error
// node relative to base.
func (n *Node) ErrorsAt(base int) ([]SyntaxError, []int) {
	var errs []SyntaxError
	var offsets []int
	n.Walk(base, func(c *Node, offset int) bool {
		for _, e := range c.errors {
			errs = append(errs, e)
			offsets = append(offsets, offset)
		}
		return true
	})
	return errs, offsets
}

// Full returns the source text covered by n.
func (n *Node) Full() string {
	if n.IsLeaf() {
		return n.text
	}
	var b strings.Builder
	n.writeText(&b)
	return b.String()
}

func (n *Node) writeText(b *strings.Builder) {
	if n.IsLeaf() {
		b.WriteString(n.text)
		return
	}
	for _, c := range n.children {
		c.writeText(b)
	}
}

// Walk visits n and its descendants in pre-order with their byte offsets.
// Returning false from fn skips the children of that node.
func (n *Node) Walk(offset int, fn func(*Node, int) bool) {
	if !fn(n, offset) {
		return
	}
	for _, c := range n.children {
		c.Walk(offset, fn)
		offset += c.length
	}
}

// Cast returns the first child of the given kind.
func (n *Node) Cast(kind Kind) *Node {
	for _, c := range n.children {
		if c.kind == kind {
			return c
		}
	}
	return nil
}

// Dump renders the tree one node per line, indented by depth.
func (n *Node) Dump() string {
	var b strings.Builder
	n.dump(&b, 0, 0)
	return b.String()
}

func (n *Node) dump(b *strings.Builder, depth, offset int) {
	fmt.Fprintf(b, "%s%s: %d..%d", strings.Repeat("  ", depth), n.kind, offset, offset+n.length)
	if n.IsLeaf() && n.text != "" {
		fmt.Fprintf(b, " %q", n.text)
	}
	for _, e := range n.errors {
		fmt.Fprintf(b, " (error: %s)", e.Message)
	}
	b.WriteByte('\n')
	for _, c := range n.children {
		c.dump(b, depth+1, offset)
		offset += c.length
	}
}

// Mode selects the grammar entry point.
type Mode int32

const (
	ModeMarkup Mode = 0
	ModeCode   Mode = 1
	ModeMath   Mode = 2
)

func (m Mode) String() string {
	switch m {
	case ModeMarkup:
		return "markup"
	case ModeCode:
		return "code"
	case ModeMath:
		return "math"
	}
	return fmt.Sprintf("mode(%d)", int32(m))
}

// ParseMode validates a mode received across the boundary.
func ParseMode(v int32) (Mode, error) {
	m := Mode(v)
	switch m {
	case ModeMarkup, ModeCode, ModeMath:
		return m, nil
	}
	return 0, fmt.Errorf("unexpected mode %d for syntax", v)
}
