// Package mini is a small reference engine for the bridge. It parses a
// subset of the markup language (headings, lists, strong and emphasis,
// raw text, labels, references and embedded code), evaluates code with
// closures, imports and packages, lays documents out on A4 pages and
// renders them to SVG, PNG and HTML. It is not a typesetter: text is
// measured by character cells and glyphs are drawn as boxes.
//
//	e := mini.New()
//	out := e.Compile(world)
//	for _, d := range out.Errors {
//		fmt.Println(d.Message)
//	}
package mini
