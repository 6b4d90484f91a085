package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/docbridge/bridge"
	"github.com/wippyai/docbridge/envelope"
	"github.com/wippyai/docbridge/syntax"
)

var queryCmd = &cobra.Command{
	Use:   "query <selector> [file]",
	Short: "Print the elements of the compiled document matched by a selector",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runQuery,
}

var evalCmd = &cobra.Command{
	Use:   "eval <code> [file]",
	Short: "Evaluate code against the world and print the value as JSON",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runEval,
}

var fmtCmd = &cobra.Command{
	Use:   "fmt <file>",
	Short: "Format a source file",
	Args:  cobra.ExactArgs(1),
	RunE:  runFmt,
}

var parseCmd = &cobra.Command{
	Use:   "parse <file>",
	Short: "Print the syntax tree outline of a source file",
	Args:  cobra.ExactArgs(1),
	RunE:  runParse,
}

var surfaceCmd = &cobra.Command{
	Use:     "surface",
	Aliases: []string{"list"},
	Short:   "List the boundary functions and their core signatures",
	Args:    cobra.NoArgs,
	RunE:    runSurface,
}

func init() {
	queryCmd.Flags().String("format", "json", "output format (json|json-compact|yaml)")
	fmtCmd.Flags().Int32("column", 80, "maximum line width")
	fmtCmd.Flags().Int32("tab", 2, "indent width")
	fmtCmd.Flags().BoolP("write", "w", false, "rewrite the file instead of printing")
	parseCmd.Flags().String("mode", "markup", "grammar (markup|code|math)")
}

func runQuery(cmd *cobra.Command, args []string) error {
	name, _ := cmd.Flags().GetString("format")
	format, ok := bridge.ParseQueryFormat(name)
	if !ok {
		return fmt.Errorf("unknown query format %q", name)
	}
	s, err := openSession(cmd, fileArg(args[1:]))
	if err != nil {
		return err
	}
	defer s.Close(cmd.Context())
	h, err := s.openWorld()
	if err != nil {
		return err
	}
	selector, err := s.wrap(args[0])
	if err != nil {
		return err
	}
	b := s.bridge
	env, err := b.Query(h, selector, int32(format))
	if err != nil {
		return err
	}
	res, err := envelope.Unpack[bridge.QueryOutcome](b.Arena(), b.Codec(), nil, env)
	if err != nil {
		return err
	}
	text, ok := outcome(s, res.Output, res.Warnings)
	if !ok {
		return errReported
	}
	return writeLine(cmd.OutOrStdout(), text)
}

func runEval(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd, fileArg(args[1:]))
	if err != nil {
		return err
	}
	defer s.Close(cmd.Context())
	h, err := s.openWorld()
	if err != nil {
		return err
	}
	source, err := s.wrap(args[0])
	if err != nil {
		return err
	}
	b := s.bridge
	env, err := b.DetachedEval(h, source)
	if err != nil {
		return err
	}
	res, err := envelope.Unpack[bridge.EvalOutcome](b.Arena(), b.Codec(), nil, env)
	if err != nil {
		return err
	}
	text, ok := outcome(s, res, nil)
	if !ok {
		return errReported
	}
	return writeLine(cmd.OutOrStdout(), text)
}

func runFmt(cmd *cobra.Command, args []string) error {
	column, _ := cmd.Flags().GetInt32("column")
	tab, _ := cmd.Flags().GetInt32("tab")
	write, _ := cmd.Flags().GetBool("write")

	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	s, err := openSession(cmd, "")
	if err != nil {
		return err
	}
	defer s.Close(cmd.Context())

	source, err := s.wrap(string(data))
	if err != nil {
		return err
	}
	out, err := s.bridge.FormatSource(source, column, tab)
	if err != nil {
		return err
	}
	formatted, err := s.bridge.Arena().UnwrapString(out)
	if err != nil {
		return err
	}
	if formatted == "" && strings.TrimSpace(string(data)) != "" {
		return fmt.Errorf("%s: cannot be formatted", args[0])
	}
	if !write {
		_, err := io.WriteString(cmd.OutOrStdout(), formatted)
		return err
	}
	if formatted == string(data) {
		return nil
	}
	return s.write(args[0], []byte(formatted))
}

func parseModeName(name string) (syntax.Mode, bool) {
	for _, m := range []syntax.Mode{syntax.ModeMarkup, syntax.ModeCode, syntax.ModeMath} {
		if m.String() == name {
			return m, true
		}
	}
	return 0, false
}

func runParse(cmd *cobra.Command, args []string) error {
	name, _ := cmd.Flags().GetString("mode")
	mode, ok := parseModeName(name)
	if !ok {
		return fmt.Errorf("unknown mode %q", name)
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	s, err := openSession(cmd, "")
	if err != nil {
		return err
	}
	defer s.Close(cmd.Context())

	source, err := s.wrap(string(data))
	if err != nil {
		return err
	}
	tree, err := s.bridge.ParseSyntax(source, int32(mode))
	if err != nil {
		return err
	}
	defer s.bridge.ReleaseFlattenedTree(tree)

	flat, err := s.bridge.ReadFlattenedTree(tree)
	if err != nil {
		return err
	}
	outline, err := syntax.Rebuild(flat.Entries)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	printOutline(w, outline, flat, string(data), 0)
	return nil
}

func printOutline(w io.Writer, o *syntax.Outline, flat syntax.Flattened, text string, depth int) {
	indent := strings.Repeat("  ", depth)
	switch {
	case o.Error >= 0:
		fmt.Fprintf(w, "%sError [%d, %d) %q\n", indent, o.Start, o.End, flat.Message(o.Error))
	case len(o.Children) == 0 && o.End <= len(text):
		fmt.Fprintf(w, "%s%s [%d, %d) %q\n", indent, o.Kind, o.Start, o.End, text[o.Start:o.End])
	default:
		fmt.Fprintf(w, "%s%s [%d, %d)\n", indent, o.Kind, o.Start, o.End)
	}
	for _, c := range o.Children {
		printOutline(w, c, flat, text, depth+1)
	}
}

func runSurface(cmd *cobra.Command, _ []string) error {
	w := cmd.OutOrStdout()
	for _, f := range bridge.Surface() {
		params, results := f.CoreSignature()
		fmt.Fprintf(w, "%s\n    core: (%s) -> (%s)\n", f, valueTypes(params), valueTypes(results))
		if f.Doc != "" {
			fmt.Fprintf(w, "    %s\n", f.Doc)
		}
	}
	return nil
}

func valueTypes(ts []api.ValueType) string {
	names := make([]string, len(ts))
	for i, t := range ts {
		names[i] = api.ValueTypeName(t)
	}
	return strings.Join(names, ", ")
}

func writeLine(w io.Writer, text string) error {
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	_, err := io.WriteString(w, text)
	return err
}
