package compiler

// Default page geometry in points (A4).
const (
	PageWidth  = 595.28
	PageHeight = 841.89
)

// ItemKind distinguishes the things placed on a page.
type ItemKind uint8

const (
	ItemText ItemKind = iota
	ItemRule
)

// Item is one positioned piece of a page. Y is the baseline for text and
// the top edge for rules.
type Item struct {
	Kind          ItemKind
	X, Y          float64
	Width, Height float64
	Text          string
	Size          float64
	Bold          bool
	Italic        bool
	Mono          bool
}

// Page is a laid-out page.
type Page struct {
	Number        int
	Width, Height float64
	Font          string
	Items         []Item
}

// Document is a compiled document.
type Document struct {
	Title string
	Root  *Element
	Pages []*Page
	// Elements lists locatable elements in document order.
	Elements []*Element
}

// Select returns the locatable elements matching fn.
func (d *Document) Select(fn func(*Element) bool) []*Element {
	var out []*Element
	for _, e := range d.Elements {
		if fn(e) {
			out = append(out, e)
		}
	}
	return out
}
