package syntax

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func sampleTree() *Node {
	// = Hi *there* #(1 +
	return Inner(Markup,
		Inner(Heading, Leaf(HeadingMarker, "="), Leaf(Space, " "), Inner(Markup, Leaf(Text, "Hi"))),
		Leaf(Space, " "),
		Inner(Strong, Leaf(Star, "*"), Inner(Markup, Leaf(Text, "there")), Leaf(Star, "*")),
		Leaf(Space, " "),
		Leaf(Hash, "#"),
		Inner(Parenthesized,
			Leaf(LeftParen, "("),
			Inner(Binary, Leaf(Int, "1"), Leaf(Space, " "), Leaf(Plus, "+")),
			ErrorNode("", "expected expression"),
			ErrorNode("", "unclosed delimiter"),
		),
	)
}

func TestNodeBasics(t *testing.T) {
	root := sampleTree()
	if got, want := root.Full(), "= Hi *there* #(1 +"; got != want {
		t.Fatalf("Full = %q, want %q", got, want)
	}
	if root.Len() != len(root.Full()) {
		t.Errorf("Len = %d, want %d", root.Len(), len(root.Full()))
	}
	if !root.Erroneous() {
		t.Error("tree with error nodes should be erroneous")
	}

	errs, offsets := root.ErrorsAt(0)
	if len(errs) != 2 || errs[0].Message != "expected expression" {
		t.Fatalf("errors = %v", errs)
	}
	if offsets[0] != root.Len() {
		t.Errorf("error offset = %d, want %d", offsets[0], root.Len())
	}
}

func TestFlattenMarks(t *testing.T) {
	root := Inner(Markup, Leaf(Text, "ab"), ErrorNode("#", "bad hash"), Leaf(Space, " "))
	f := Flatten(root)

	want := []Entry{
		{StartMark(Markup), 0},
		{StartMark(Text), 0},
		{MarkEnd, 2},
		{ErrorMark(0), 2},
		{MarkEnd, 3},
		{StartMark(Space), 3},
		{MarkEnd, 4},
		{MarkEnd, 4},
	}
	if diff := cmp.Diff(want, f.Entries); diff != "" {
		t.Fatalf("entries (-want +got):\n%s", diff)
	}
	if string(f.Errors) != "bad hash" || len(f.ErrorStarts) != 1 || f.ErrorStarts[0] != 0 {
		t.Errorf("errors = %q starts = %v", f.Errors, f.ErrorStarts)
	}
}

func TestMarkEncoding(t *testing.T) {
	tests := []struct {
		mark Mark
		code int32
	}{
		{StartMark(End), 0},
		{StartMark(Error), 1},
		{StartMark(Markup), 5},
		{StartMark(Hash), 42},
		{StartMark(Ident), 96},
		{StartMark(DestructAssignment), 133},
		{MarkEnd, 134},
		{ErrorMark(0), 135},
		{ErrorMark(7), 142},
	}
	for _, tt := range tests {
		if int32(tt.mark) != tt.code {
			t.Errorf("%v = %d, want %d", tt.mark, int32(tt.mark), tt.code)
		}
	}

	f := Flattened{Entries: []Entry{{StartMark(Markup), 0}, {ErrorMark(2), 17}, {MarkEnd, 1 << 20}}}
	packed := f.Encode()
	if packed[1] != 137<<32+17 {
		t.Errorf("packed = %d, want %d", packed[1], int64(137)<<32+17)
	}
	if diff := cmp.Diff(f.Entries, Decode(packed)); diff != "" {
		t.Errorf("decode (-want +got):\n%s", diff)
	}
}

func TestFlattenRebuildInverse(t *testing.T) {
	trees := map[string]*Node{
		"sample": sampleTree(),
		"leaf":   Leaf(Text, "plain"),
		"empty":  Inner(Markup),
		"error":  ErrorNode("$", "unclosed equation"),
		"deep": Inner(Code, Inner(FuncCall,
			Leaf(Ident, "f"),
			Inner(Args, Leaf(LeftParen, "("), Inner(Array, Leaf(LeftParen, "("), Leaf(RightParen, ")")), Leaf(RightParen, ")")))),
	}
	for name, tree := range trees {
		t.Run(name, func(t *testing.T) {
			f := Flatten(tree)
			got, err := Rebuild(Decode(f.Encode()))
			if err != nil {
				t.Fatalf("Rebuild: %v", err)
			}
			if diff := cmp.Diff(OutlineOf(tree), got); diff != "" {
				t.Errorf("outline (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFlattenedMessage(t *testing.T) {
	f := Flatten(sampleTree())
	if f.Message(0) != "expected expression" || f.Message(1) != "unclosed delimiter" {
		t.Errorf("messages = %q, %q", f.Message(0), f.Message(1))
	}
	if f.Message(2) != "" || f.Message(-1) != "" {
		t.Error("out of range message should be empty")
	}
}

func TestRebuildRejectsMalformed(t *testing.T) {
	tests := map[string][]Entry{
		"unclosed":     {{StartMark(Markup), 0}},
		"stray end":    {{MarkEnd, 0}},
		"backwards":    {{StartMark(Markup), 5}, {MarkEnd, 2}},
		"two roots":    {{StartMark(Text), 0}, {MarkEnd, 1}, {StartMark(Text), 1}, {MarkEnd, 2}},
		"empty":        {},
		"invalid mark": {{Mark(-3), 0}},
	}
	for name, entries := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Rebuild(entries); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestParseMode(t *testing.T) {
	for v, want := range map[int32]Mode{0: ModeMarkup, 1: ModeCode, 2: ModeMath} {
		m, err := ParseMode(v)
		if err != nil || m != want {
			t.Errorf("ParseMode(%d) = %v, %v", v, m, err)
		}
	}
	if _, err := ParseMode(3); err == nil {
		t.Error("ParseMode(3) should fail")
	}
}

func TestKindNames(t *testing.T) {
	if FuncCall.String() != "func call" || DestructAssignment.String() != "destruct assignment" {
		t.Errorf("names = %q, %q", FuncCall, DestructAssignment)
	}
	if Kind(200).Valid() {
		t.Error("Kind(200) should be invalid")
	}
	if !Let.IsKeyword() || Ident.IsKeyword() {
		t.Error("keyword classification")
	}
}
