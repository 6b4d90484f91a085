package syntax

// Kind is the kind of a syntax node. The numeric values are part of the
// flattened tree encoding and must not be reordered.
type Kind uint8

const (
	End Kind = iota
	Error
	Shebang
	LineComment
	BlockComment
	Markup
	Text
	Space
	Linebreak
	Parbreak
	Escape
	Shorthand
	SmartQuote
	Strong
	Emph
	Raw
	RawLang
	RawDelim
	RawTrimmed
	Link
	Label
	Ref
	RefMarker
	Heading
	HeadingMarker
	ListItem
	ListMarker
	EnumItem
	EnumMarker
	TermItem
	TermMarker
	Equation
	Math
	MathText
	MathIdent
	MathShorthand
	MathAlignPoint
	MathDelimited
	MathAttach
	MathPrimes
	MathFrac
	MathRoot
	Hash
	LeftBrace
	RightBrace
	LeftBracket
	RightBracket
	LeftParen
	RightParen
	Comma
	Semicolon
	Colon
	Star
	Underscore
	Dollar
	Plus
	Minus
	Slash
	Hat
	Prime
	Dot
	Eq
	EqEq
	ExclEq
	Lt
	LtEq
	Gt
	GtEq
	PlusEq
	HyphEq
	StarEq
	SlashEq
	Dots
	Arrow
	Root
	Not
	And
	Or
	None
	Auto
	Let
	Set
	Show
	Context
	If
	Else
	For
	In
	While
	Break
	Continue
	Return
	Import
	Include
	As
	Code
	Ident
	Bool
	Int
	Float
	Numeric
	Str
	CodeBlock
	ContentBlock
	Parenthesized
	Array
	Dict
	Named
	Keyed
	Unary
	Binary
	FieldAccess
	FuncCall
	Args
	Spread
	Closure
	Params
	LetBinding
	SetRule
	ShowRule
	Contextual
	Conditional
	WhileLoop
	ForLoop
	ModuleImport
	ImportItems
	ImportItemPath
	RenamedImportItem
	ModuleInclude
	LoopBreak
	LoopContinue
	FuncReturn
	Destructuring
	DestructAssignment
)

// kindCount is the number of node kinds; NodeEnd marks are encoded as kindCount.
const kindCount = 134

var kindNames = [kindCount]string{
	End:                "end",
	Error:              "error",
	Shebang:            "shebang",
	LineComment:        "line comment",
	BlockComment:       "block comment",
	Markup:             "markup",
	Text:               "text",
	Space:              "space",
	Linebreak:          "linebreak",
	Parbreak:           "parbreak",
	Escape:             "escape",
	Shorthand:          "shorthand",
	SmartQuote:         "smart quote",
	Strong:             "strong",
	Emph:               "emph",
	Raw:                "raw",
	RawLang:            "raw lang",
	RawDelim:           "raw delim",
	RawTrimmed:         "raw trimmed",
	Link:               "link",
	Label:              "label",
	Ref:                "ref",
	RefMarker:          "ref marker",
	Heading:            "heading",
	HeadingMarker:      "heading marker",
	ListItem:           "list item",
	ListMarker:         "list marker",
	EnumItem:           "enum item",
	EnumMarker:         "enum marker",
	TermItem:           "term item",
	TermMarker:         "term marker",
	Equation:           "equation",
	Math:               "math",
	MathText:           "math text",
	MathIdent:          "math ident",
	MathShorthand:      "math shorthand",
	MathAlignPoint:     "math align point",
	MathDelimited:      "math delimited",
	MathAttach:         "math attach",
	MathPrimes:         "math primes",
	MathFrac:           "math frac",
	MathRoot:           "math root",
	Hash:               "hash",
	LeftBrace:          "left brace",
	RightBrace:         "right brace",
	LeftBracket:        "left bracket",
	RightBracket:       "right bracket",
	LeftParen:          "left paren",
	RightParen:         "right paren",
	Comma:              "comma",
	Semicolon:          "semicolon",
	Colon:              "colon",
	Star:               "star",
	Underscore:         "underscore",
	Dollar:             "dollar",
	Plus:               "plus",
	Minus:              "minus",
	Slash:              "slash",
	Hat:                "hat",
	Prime:              "prime",
	Dot:                "dot",
	Eq:                 "eq",
	EqEq:               "eq eq",
	ExclEq:             "excl eq",
	Lt:                 "lt",
	LtEq:               "lt eq",
	Gt:                 "gt",
	GtEq:               "gt eq",
	PlusEq:             "plus eq",
	HyphEq:             "hyph eq",
	StarEq:             "star eq",
	SlashEq:            "slash eq",
	Dots:               "dots",
	Arrow:              "arrow",
	Root:               "root",
	Not:                "not",
	And:                "and",
	Or:                 "or",
	None:               "none",
	Auto:               "auto",
	Let:                "let",
	Set:                "set",
	Show:               "show",
	Context:            "context",
	If:                 "if",
	Else:               "else",
	For:                "for",
	In:                 "in",
	While:              "while",
	Break:              "break",
	Continue:           "continue",
	Return:             "return",
	Import:             "import",
	Include:            "include",
	As:                 "as",
	Code:               "code",
	Ident:              "ident",
	Bool:               "bool",
	Int:                "int",
	Float:              "float",
	Numeric:            "numeric",
	Str:                "str",
	CodeBlock:          "code block",
	ContentBlock:       "content block",
	Parenthesized:      "parenthesized",
	Array:              "array",
	Dict:               "dict",
	Named:              "named",
	Keyed:              "keyed",
	Unary:              "unary",
	Binary:             "binary",
	FieldAccess:        "field access",
	FuncCall:           "func call",
	Args:               "args",
	Spread:             "spread",
	Closure:            "closure",
	Params:             "params",
	LetBinding:         "let binding",
	SetRule:            "set rule",
	ShowRule:           "show rule",
	Contextual:         "contextual",
	Conditional:        "conditional",
	WhileLoop:          "while loop",
	ForLoop:            "for loop",
	ModuleImport:       "module import",
	ImportItems:        "import items",
	ImportItemPath:     "import item path",
	RenamedImportItem:  "renamed import item",
	ModuleInclude:      "module include",
	LoopBreak:          "loop break",
	LoopContinue:       "loop continue",
	FuncReturn:         "func return",
	Destructuring:      "destructuring",
	DestructAssignment: "destruct assignment",
}

func (k Kind) String() string {
	if int(k) < kindCount {
		return kindNames[k]
	}
	return "invalid"
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return int(k) < kindCount
}

// IsTrivia reports whether nodes of kind k carry no meaning for evaluation.
func (k Kind) IsTrivia() bool {
	switch k {
	case Shebang, LineComment, BlockComment, Space, Parbreak:
		return true
	}
	return false
}

// IsKeyword reports whether k is a keyword token.
func (k Kind) IsKeyword() bool {
	return k >= Not && k <= As
}
