package syntax

import (
	"fmt"
)

// Mark is one entry of a flattened tree: the start of a node of some kind,
// the end of the innermost open node, or an error node with an index into
// the error message table.
type Mark int32

// MarkEnd closes the innermost open node.
const MarkEnd Mark = kindCount

// StartMark opens a node of kind k.
func StartMark(k Kind) Mark { return Mark(k) }

// ErrorMark opens an error node whose message is entry i of the table.
func ErrorMark(i int) Mark { return MarkEnd + 1 + Mark(i) }

// IsStart reports whether m opens a regular node.
func (m Mark) IsStart() bool { return m >= 0 && m < MarkEnd }

// IsEnd reports whether m closes a node.
func (m Mark) IsEnd() bool { return m == MarkEnd }

// IsError reports whether m opens an error node.
func (m Mark) IsError() bool { return m > MarkEnd }

// Kind returns the kind opened by m; error marks open Error nodes.
func (m Mark) Kind() Kind {
	if m.IsError() {
		return Error
	}
	return Kind(m)
}

// ErrorIndex returns the message index of an error mark.
func (m Mark) ErrorIndex() int {
	return int(m - MarkEnd - 1)
}

func (m Mark) String() string {
	switch {
	case m.IsStart():
		return "start(" + Kind(m).String() + ")"
	case m.IsEnd():
		return "end"
	case m.IsError():
		return fmt.Sprintf("error(%d)", m.ErrorIndex())
	}
	return fmt.Sprintf("mark(%d)", int32(m))
}

// Entry is a mark at a byte offset.
type Entry struct {
	Mark   Mark
	Offset int32
}

// Flattened is a tree encoded as a pre-order list of marks plus a side
// table of error messages. ErrorStarts[i] is the byte offset of message i
// in Errors.
type Flattened struct {
	Entries     []Entry
	Errors      []byte
	ErrorStarts []int32
}

// Flatten encodes root in pre-order. Error nodes are emitted as an error
// mark followed by an end mark; their first message goes to the table.
func Flatten(root *Node) Flattened {
	var f Flattened
	f.flatten(root, 0)
	return f
}

func (f *Flattened) flatten(n *Node, offset int) {
	if n.kind == Error {
		f.Entries = append(f.Entries, Entry{Mark: ErrorMark(len(f.ErrorStarts)), Offset: int32(offset)})
		f.ErrorStarts = append(f.ErrorStarts, int32(len(f.Errors)))
		if len(n.errors) > 0 {
			f.Errors = append(f.Errors, n.errors[0].Message...)
		}
		f.Entries = append(f.Entries, Entry{Mark: MarkEnd, Offset: int32(offset + n.length)})
		return
	}

	f.Entries = append(f.Entries, Entry{Mark: StartMark(n.kind), Offset: int32(offset)})
	child := offset
	for _, c := range n.children {
		f.flatten(c, child)
		child += c.length
	}
	f.Entries = append(f.Entries, Entry{Mark: MarkEnd, Offset: int32(offset + n.length)})
}

// Message returns error message i.
func (f Flattened) Message(i int) string {
	if i < 0 || i >= len(f.ErrorStarts) {
		return ""
	}
	end := int32(len(f.Errors))
	if i+1 < len(f.ErrorStarts) {
		end = f.ErrorStarts[i+1]
	}
	return string(f.Errors[f.ErrorStarts[i]:end])
}

// Encode packs each entry as mark<<32 | offset.
func (f Flattened) Encode() []int64 {
	out := make([]int64, len(f.Entries))
	for i, e := range f.Entries {
		out[i] = int64(e.Mark)<<32 | int64(uint32(e.Offset))
	}
	return out
}

// Decode unpacks entries produced by Encode.
func Decode(packed []int64) []Entry {
	out := make([]Entry, len(packed))
	for i, p := range packed {
		out[i] = Entry{Mark: Mark(p >> 32), Offset: int32(uint32(p))}
	}
	return out
}

// Outline is the shape of a node recovered from marks: kind, byte range,
// and for error nodes the message index.
type Outline struct {
	Kind     Kind
	Error    int
	Start    int
	End      int
	Children []*Outline
}

// OutlineOf computes the outline of a tree directly.
func OutlineOf(root *Node) *Outline {
	next := 0
	return outline(root, 0, &next)
}

func outline(n *Node, offset int, nextError *int) *Outline {
	o := &Outline{Kind: n.kind, Error: -1, Start: offset, End: offset + n.length}
	if n.kind == Error {
		o.Error = *nextError
		*nextError++
		return o
	}
	for _, c := range n.children {
		o.Children = append(o.Children, outline(c, offset, nextError))
		offset += c.length
	}
	return o
}

// Rebuild reconstructs node boundaries by walking the marks as a stack.
func Rebuild(entries []Entry) (*Outline, error) {
	var (
		stack []*Outline
		root  *Outline
	)
	for i, e := range entries {
		switch {
		case e.Mark.IsStart() || e.Mark.IsError():
			if root != nil && len(stack) == 0 {
				return nil, fmt.Errorf("mark %d: second root node", i)
			}
			o := &Outline{Kind: e.Mark.Kind(), Error: -1, Start: int(e.Offset)}
			if e.Mark.IsError() {
				o.Error = e.Mark.ErrorIndex()
			}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, o)
			} else {
				root = o
			}
			stack = append(stack, o)
		case e.Mark.IsEnd():
			if len(stack) == 0 {
				return nil, fmt.Errorf("mark %d: end without open node", i)
			}
			top := stack[len(stack)-1]
			if int(e.Offset) < top.Start {
				return nil, fmt.Errorf("mark %d: node ends at %d before its start %d", i, e.Offset, top.Start)
			}
			top.End = int(e.Offset)
			stack = stack[:len(stack)-1]
		default:
			return nil, fmt.Errorf("mark %d: invalid mark %d", i, int32(e.Mark))
		}
	}
	if len(stack) != 0 {
		return nil, fmt.Errorf("%d node(s) left open", len(stack))
	}
	if root == nil {
		return nil, fmt.Errorf("no nodes")
	}
	return root, nil
}
