package main

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"github.com/wippyai/docbridge/diag"
	"github.com/wippyai/docbridge/host"
)

// reporter prints diagnostics with the offending source line and a caret
// underline.
type reporter struct {
	out   io.Writer
	files host.Provider
	lines map[string][]string

	errorColor *color.Color
	warnColor  *color.Color
	noteColor  *color.Color
	gutter     *color.Color
	bold       *color.Color
}

func newReporter(out io.Writer, files host.Provider, colored bool) *reporter {
	r := &reporter{
		out:        out,
		files:      files,
		lines:      make(map[string][]string),
		errorColor: color.New(color.FgRed, color.Bold),
		warnColor:  color.New(color.FgYellow, color.Bold),
		noteColor:  color.New(color.FgCyan),
		gutter:     color.New(color.FgBlue, color.Bold),
		bold:       color.New(color.Bold),
	}
	for _, c := range []*color.Color{r.errorColor, r.warnColor, r.noteColor, r.gutter, r.bold} {
		if colored {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return r
}

// Report prints every diagnostic and returns the number of errors.
func (r *reporter) Report(ds []diag.Diagnostic) int {
	errs := 0
	for _, d := range ds {
		if d.Severity == diag.SeverityError {
			errs++
		}
		r.diagnostic(d)
	}
	return errs
}

func (r *reporter) diagnostic(d diag.Diagnostic) {
	sev := r.errorColor
	if d.Severity == diag.SeverityWarning {
		sev = r.warnColor
	}
	fmt.Fprintf(r.out, "%s: %s\n", sev.Sprint(d.Severity.String()), r.bold.Sprint(d.Message))
	r.snippet(d.Span, sev)
	for _, t := range d.Trace {
		fmt.Fprintf(r.out, "%s %s\n", r.noteColor.Sprint("note:"), t.V.String())
		r.snippet(t.Span, r.noteColor)
	}
	for _, h := range d.Hints {
		fmt.Fprintf(r.out, "%s %s\n", r.noteColor.Sprint("hint:"), h)
	}
	fmt.Fprintln(r.out)
}

func (r *reporter) snippet(span diag.AbsoluteSpan, underline *color.Color) {
	if span.File == nil {
		return
	}
	fmt.Fprintf(r.out, "  %s %s\n", r.gutter.Sprint("┌─"), span.String())
	if !span.Resolved() {
		return
	}
	line, ok := r.line(span)
	if !ok {
		return
	}
	num := strconv.FormatInt(span.StartLine, 10)
	pad := strings.Repeat(" ", len(num))
	fmt.Fprintf(r.out, "%s %s\n", pad, r.gutter.Sprint("│"))
	fmt.Fprintf(r.out, "%s %s %s\n", r.gutter.Sprint(num), r.gutter.Sprint("│"), line)
	offset, width := caret(line, span)
	fmt.Fprintf(r.out, "%s %s %s%s\n", pad, r.gutter.Sprint("│"),
		strings.Repeat(" ", offset), underline.Sprint(strings.Repeat("^", width)))
}

func (r *reporter) line(span diag.AbsoluteSpan) (string, bool) {
	key := span.File.Key()
	lines, ok := r.lines[key]
	if !ok {
		data, err := r.files.Read(*span.File)
		if err != nil {
			r.lines[key] = nil
			return "", false
		}
		data = bytes.TrimPrefix(data, []byte{0xef, 0xbb, 0xbf})
		lines = strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
		r.lines[key] = lines
	}
	n := int(span.StartLine)
	if n < 1 || n > len(lines) {
		return "", false
	}
	return lines[n-1], true
}

// caret returns the display column and width of the underline for span on
// line. Columns are 1-based character counts; wide characters take two
// cells.
func caret(line string, span diag.AbsoluteSpan) (offset, width int) {
	runes := []rune(line)
	start := clamp(int(span.StartCol)-1, 0, len(runes))
	end := len(runes)
	if span.EndLine == span.StartLine {
		end = clamp(int(span.EndCol)-1, start, len(runes))
	}
	offset = runewidth.StringWidth(string(runes[:start]))
	width = runewidth.StringWidth(string(runes[start:end]))
	if width < 1 {
		width = 1
	}
	return offset, width
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
