package mini

import (
	"bytes"
	"fmt"
	"html"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/wippyai/docbridge/compiler"
	"github.com/wippyai/docbridge/diag"
	"github.com/wippyai/docbridge/syntax"
)

// maxPixels bounds the raster size of one page.
const maxPixels = 1 << 26

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func (e *Engine) SVG(page *compiler.Page) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<svg class="typst-doc" viewBox="0 0 %s %s" width="%spt" height="%spt" xmlns="http://www.w3.org/2000/svg">`,
		num(page.Width), num(page.Height), num(page.Width), num(page.Height))
	fmt.Fprintf(&b, `<rect width="%s" height="%s" fill="#ffffff"/>`, num(page.Width), num(page.Height))
	for _, it := range page.Items {
		switch it.Kind {
		case compiler.ItemText:
			family := page.Font
			if it.Mono {
				family = "monospace"
			}
			fmt.Fprintf(&b, `<text x="%s" y="%s" font-size="%s" font-family="%s"`,
				num(it.X), num(it.Y), num(it.Size), html.EscapeString(family))
			if it.Bold {
				b.WriteString(` font-weight="bold"`)
			}
			if it.Italic {
				b.WriteString(` font-style="italic"`)
			}
			b.WriteString(">")
			b.WriteString(html.EscapeString(it.Text))
			b.WriteString("</text>")
		case compiler.ItemRule:
			fmt.Fprintf(&b, `<rect x="%s" y="%s" width="%s" height="%s" fill="#000000"/>`,
				num(it.X), num(it.Y), num(it.Width), num(it.Height))
		}
	}
	b.WriteString("</svg>")
	return b.String()
}

// PNG rasterizes page at ppi pixels per inch. Glyphs are drawn as boxes.
func (e *Engine) PNG(page *compiler.Page, ppi float32) ([]byte, error) {
	if ppi <= 0 || math.IsInf(float64(ppi), 0) || math.IsNaN(float64(ppi)) {
		return nil, fmt.Errorf("pixel per inch must be positive, got %v", ppi)
	}
	scale := float64(ppi) / 72
	w := int(math.Ceil(page.Width * scale))
	h := int(math.Ceil(page.Height * scale))
	if w <= 0 || h <= 0 || w*h > maxPixels {
		return nil, fmt.Errorf("cannot create pixmap with dimensions %dx%d", w, h)
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	ink := image.NewUniform(color.RGBA{0x20, 0x20, 0x20, 0xff})

	for _, it := range page.Items {
		switch it.Kind {
		case compiler.ItemRule:
			draw.Draw(img, box(it.X, it.Y, it.Width, it.Height, scale), ink, image.Point{}, draw.Over)
		case compiler.ItemText:
			x := it.X
			for _, r := range it.Text {
				cells := runewidth.RuneWidth(r)
				adv := float64(cells) * it.Width / float64(max(1, runewidth.StringWidth(it.Text)))
				if r != ' ' && cells > 0 {
					glyph := box(x+adv*0.1, it.Y-it.Size*0.7, adv*0.8, it.Size*0.7, scale)
					draw.Draw(img, glyph, ink, image.Point{}, draw.Over)
				}
				x += adv
			}
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func box(x, y, w, h, scale float64) image.Rectangle {
	return image.Rect(
		int(math.Floor(x*scale)), int(math.Floor(y*scale)),
		int(math.Ceil((x+w)*scale)), int(math.Ceil((y+h)*scale)),
	)
}

// HTML renders the semantic structure of doc.
func (e *Engine) HTML(doc *compiler.Document) (string, []diag.SourceDiagnostic) {
	r := &htmlWriter{}
	r.warn(syntax.Detached, "html export is under active development and incomplete")
	r.b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	if doc.Title != "" {
		fmt.Fprintf(&r.b, "<title>%s</title>\n", html.EscapeString(doc.Title))
	}
	r.b.WriteString("</head>\n<body>\n")
	if doc.Root != nil {
		r.block(doc.Root)
	}
	r.closePar()
	r.closeList()
	r.b.WriteString("</body>\n</html>\n")
	return r.b.String(), r.warnings
}

type htmlWriter struct {
	b        strings.Builder
	inPar    bool
	list     string
	warnings []diag.SourceDiagnostic
}

func (r *htmlWriter) warn(span syntax.Span, msg string) {
	r.warnings = append(r.warnings, diag.Warningf(span, "%s", msg))
}

func (r *htmlWriter) openPar() {
	r.closeList()
	if !r.inPar {
		r.b.WriteString("<p>")
		r.inPar = true
	}
}

func (r *htmlWriter) closePar() {
	if r.inPar {
		r.b.WriteString("</p>\n")
		r.inPar = false
	}
}

func (r *htmlWriter) closeList() {
	if r.list != "" {
		fmt.Fprintf(&r.b, "</%s>\n", r.list)
		r.list = ""
	}
}

// block writes el at block level, wrapping inline content in paragraphs.
func (r *htmlWriter) block(el *compiler.Element) {
	switch el.Func {
	case "sequence":
		for _, c := range el.Children() {
			if child, ok := c.(*compiler.Element); ok {
				r.block(child)
			}
		}
	case "parbreak":
		r.closePar()
	case "space":
		if r.inPar {
			r.b.WriteByte(' ')
		}
	case "heading":
		r.closePar()
		r.closeList()
		level := el.Int("level", 1) + 1
		if level > 6 {
			level = 6
		}
		fmt.Fprintf(&r.b, "<h%d%s>", level, id(el))
		r.inline(el.Body())
		fmt.Fprintf(&r.b, "</h%d>\n", level)
	case "list.item", "enum.item":
		r.closePar()
		tag := "ul"
		if el.Func == "enum.item" {
			tag = "ol"
		}
		if r.list != tag {
			r.closeList()
			fmt.Fprintf(&r.b, "<%s>\n", tag)
			r.list = tag
		}
		r.b.WriteString("<li>")
		r.inline(el.Body())
		r.b.WriteString("</li>\n")
	case "raw":
		if block, _ := el.Field("block"); block == true {
			r.closePar()
			r.closeList()
			text, _ := el.Field("text")
			fmt.Fprintf(&r.b, "<pre><code>%s</code></pre>\n", html.EscapeString(compiler.Display(text)))
			return
		}
		r.openPar()
		r.inline(el)
	case "pagebreak", "metadata":
	case "equation":
		r.warn(el.Span, "equation was ignored during HTML export")
	default:
		r.openPar()
		r.inline(el)
	}
}

func id(el *compiler.Element) string {
	if el.Label == "" {
		return ""
	}
	return ` id="` + html.EscapeString(string(el.Label)) + `"`
}

func (r *htmlWriter) inline(el *compiler.Element) {
	if el == nil {
		return
	}
	switch el.Func {
	case "sequence":
		for _, c := range el.Children() {
			if child, ok := c.(*compiler.Element); ok {
				r.inline(child)
			}
		}
	case "text":
		text, _ := el.Field("text")
		r.b.WriteString(html.EscapeString(compiler.Display(text)))
	case "space":
		r.b.WriteByte(' ')
	case "linebreak":
		r.b.WriteString("<br>")
	case "parbreak":
		r.b.WriteByte(' ')
	case "strong":
		r.b.WriteString("<strong>")
		r.inline(el.Body())
		r.b.WriteString("</strong>")
	case "emph":
		r.b.WriteString("<em>")
		r.inline(el.Body())
		r.b.WriteString("</em>")
	case "raw":
		text, _ := el.Field("text")
		fmt.Fprintf(&r.b, "<code>%s</code>", html.EscapeString(compiler.Display(text)))
	case "link":
		dest, _ := el.Field("dest")
		fmt.Fprintf(&r.b, `<a href="%s">`, html.EscapeString(compiler.Display(dest)))
		if body := el.Body(); body != nil {
			r.inline(body)
		} else {
			r.b.WriteString(html.EscapeString(compiler.Display(dest)))
		}
		r.b.WriteString("</a>")
	case "ref":
		target, _ := el.Field("target")
		if label, ok := target.(compiler.Label); ok {
			fmt.Fprintf(&r.b, `<a href="#%s">%s</a>`, html.EscapeString(string(label)), html.EscapeString(string(label)))
		}
	case "html.elem":
		tag, _ := el.Field("tag")
		name := compiler.Display(tag)
		r.b.WriteString("<" + html.EscapeString(name))
		if attrs, ok := el.Field("attrs"); ok {
			if d, ok := attrs.(*compiler.Dict); ok {
				d.Each(func(k string, v compiler.Value) {
					fmt.Fprintf(&r.b, ` %s="%s"`, html.EscapeString(k), html.EscapeString(compiler.Display(v)))
				})
			}
		}
		r.b.WriteString(">")
		r.inline(el.Body())
		r.b.WriteString("</" + html.EscapeString(name) + ">")
	case "equation":
		r.warn(el.Span, "equation was ignored during HTML export")
	case "metadata", "pagebreak":
	default:
		r.inline(el.Body())
	}
}
