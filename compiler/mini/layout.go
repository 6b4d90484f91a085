package mini

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"

	"github.com/wippyai/docbridge/compiler"
	"github.com/wippyai/docbridge/fonts"
)

const (
	margin     = 72.0
	bodySize   = 11.0
	leading    = 1.3
	parSpacing = 0.8 * bodySize
)

var headingScale = []float64{1.4, 1.2, 1.1}

// locatable elements are recorded in Document.Elements for queries.
var locatable = map[string]bool{
	"heading":  true,
	"metadata": true,
	"figure":   true,
	"equation": true,
}

type style struct {
	size   float64
	bold   bool
	italic bool
	mono   bool
}

// word is a piece of text laid out without a break. glued words follow
// the previous word without a space.
type word struct {
	text  string
	style style
	glued bool
}

func (w word) width() float64 {
	return advance(w.text, w.style)
}

func advance(text string, st style) float64 {
	factor := 0.5
	switch {
	case st.mono:
		factor = 0.6
	case st.bold:
		factor = 0.55
	}
	return float64(runewidth.StringWidth(text)) * st.size * factor
}

type layouter struct {
	doc    *compiler.Document
	page   *compiler.Page
	font   string
	y      float64
	words  []word
	space  bool
	indent float64
	enum   int64
}

// layout breaks content into pages. There is always at least one page.
func layout(content *compiler.Element, book []fonts.Info) *compiler.Document {
	l := &layouter{doc: &compiler.Document{Root: content}, font: family(book)}
	l.newPage()
	if content != nil {
		l.element(content, style{size: bodySize})
	}
	l.flush()
	for _, el := range l.doc.Elements {
		if el.Func == "heading" && el.Int("level", 1) == 1 {
			l.doc.Title = strings.TrimSpace(el.PlainText())
			break
		}
	}
	return l.doc
}

func family(book []fonts.Info) string {
	for _, info := range book {
		if info.Style == fonts.StyleNormal {
			return info.Family
		}
	}
	if len(book) > 0 {
		return book[0].Family
	}
	return "serif"
}

func (l *layouter) newPage() {
	l.page = &compiler.Page{
		Number: len(l.doc.Pages) + 1,
		Width:  compiler.PageWidth,
		Height: compiler.PageHeight,
		Font:   l.font,
	}
	l.doc.Pages = append(l.doc.Pages, l.page)
	l.y = margin
}

func (l *layouter) locate(el *compiler.Element) {
	if !locatable[el.Func] && el.Label == "" {
		return
	}
	c := *el
	c.Location = &compiler.Location{Page: l.page.Number, Y: l.y}
	l.doc.Elements = append(l.doc.Elements, &c)
}

func (l *layouter) element(el *compiler.Element, st style) {
	l.locate(el)
	switch el.Func {
	case "sequence":
		for _, c := range el.Children() {
			if child, ok := c.(*compiler.Element); ok {
				l.element(child, st)
			}
		}
	case "text":
		s, _ := el.Field("text")
		text, _ := s.(string)
		l.text(text, st)
	case "space":
		l.space = true
	case "linebreak":
		l.line()
	case "parbreak":
		l.paragraph()
		l.enum = 0
	case "pagebreak":
		l.flush()
		if len(l.page.Items) > 0 {
			l.newPage()
		}
	case "strong":
		st.bold = true
		l.body(el, st)
	case "emph":
		st.italic = true
		l.body(el, st)
	case "heading":
		l.paragraph()
		level := el.Int("level", 1)
		scale := headingScale[len(headingScale)-1]
		if level >= 1 && int(level) <= len(headingScale) {
			scale = headingScale[level-1]
		}
		l.body(el, style{size: bodySize * scale, bold: true})
		l.paragraph()
	case "raw":
		s, _ := el.Field("text")
		text, _ := s.(string)
		mono := st
		mono.mono = true
		if block, _ := el.Field("block"); block == true {
			l.paragraph()
			for _, line := range strings.Split(text, "\n") {
				if line != "" {
					l.words = append(l.words, word{text: line, style: mono})
				}
				l.line()
			}
			l.paragraph()
			return
		}
		l.text(text, mono)
	case "list.item", "enum.item":
		l.flush()
		marker := "•"
		if el.Func == "enum.item" {
			l.enum++
			marker = strconv.FormatInt(l.enum, 10) + "."
		}
		l.words = append(l.words, word{text: marker, style: st})
		l.indent += 2 * bodySize
		l.body(el, st)
		l.flush()
		l.indent -= 2 * bodySize
	case "equation":
		eq := st
		eq.italic = true
		block, _ := el.Field("block")
		if block == true {
			l.paragraph()
		}
		l.body(el, eq)
		if block == true {
			l.paragraph()
		}
	case "ref":
		target, _ := el.Field("target")
		if label, ok := target.(compiler.Label); ok {
			l.text(string(label), st)
		}
	case "link":
		if el.Body() == nil {
			dest, _ := el.Field("dest")
			l.text(compiler.Display(dest), st)
			return
		}
		l.body(el, st)
	case "figure":
		l.paragraph()
		l.body(el, st)
		if caption, ok := el.Field("caption"); ok && caption != nil {
			l.line()
			l.element(toContent(caption), st)
		}
		l.paragraph()
	case "metadata":
	default:
		l.body(el, st)
	}
}

func (l *layouter) body(el *compiler.Element, st style) {
	if b := el.Body(); b != nil {
		l.element(b, st)
	}
}

func (l *layouter) text(s string, st style) {
	if s == "" {
		return
	}
	if r, _ := utf8.DecodeRuneInString(s); unicode.IsSpace(r) {
		l.space = true
	}
	for i, f := range strings.Fields(s) {
		glued := i == 0 && !l.space && len(l.words) > 0
		l.words = append(l.words, word{text: f, style: st, glued: glued})
	}
	r, _ := utf8.DecodeLastRuneInString(s)
	l.space = unicode.IsSpace(r)
}

// line sets the pending words, wrapping at the right margin.
func (l *layouter) line() {
	if len(l.words) == 0 {
		l.advance(bodySize * leading)
		return
	}
	maxWidth := compiler.PageWidth - 2*margin - l.indent
	start := 0
	for start < len(l.words) {
		width := 0.0
		end := start
		for end < len(l.words) {
			w := l.words[end].width()
			gap := 0.0
			if end > start && !l.words[end].glued {
				gap = advance(" ", l.words[end].style)
			}
			if end > start && width+gap+w > maxWidth {
				break
			}
			width += gap + w
			end++
		}
		l.place(l.words[start:end])
		start = end
	}
	l.words = l.words[:0]
	l.space = false
}

func (l *layouter) place(ws []word) {
	h := bodySize
	for _, w := range ws {
		if w.style.size > h {
			h = w.style.size
		}
	}
	if l.y+h*leading > compiler.PageHeight-margin && len(l.page.Items) > 0 {
		l.newPage()
	}
	baseline := l.y + h
	x := margin + l.indent
	for i, w := range ws {
		if i > 0 && !w.glued {
			x += advance(" ", w.style)
		}
		width := w.width()
		l.page.Items = append(l.page.Items, compiler.Item{
			Kind:   compiler.ItemText,
			X:      x,
			Y:      baseline,
			Width:  width,
			Height: w.style.size,
			Text:   w.text,
			Size:   w.style.size,
			Bold:   w.style.bold,
			Italic: w.style.italic,
			Mono:   w.style.mono,
		})
		x += width
	}
	l.y += h * leading
}

func (l *layouter) advance(dy float64) {
	l.y += dy
	if l.y > compiler.PageHeight-margin {
		l.newPage()
	}
}

// flush sets pending words without adding paragraph spacing.
func (l *layouter) flush() {
	if len(l.words) > 0 {
		l.line()
	}
}

func (l *layouter) paragraph() {
	if len(l.words) == 0 {
		return
	}
	l.line()
	l.y += parSpacing
}
