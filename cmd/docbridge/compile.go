package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wippyai/docbridge/bridge"
	"github.com/wippyai/docbridge/diag"
	"github.com/wippyai/docbridge/envelope"
)

var compileCmd = &cobra.Command{
	Use:   "compile [file]",
	Short: "Compile the main file to svg, png or html",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCompile,
}

func init() {
	compileCmd.Flags().StringP("format", "f", "svg", "output format (svg|png|html)")
	compileCmd.Flags().Int32("from", 0, "first page, 0-based")
	compileCmd.Flags().Int32("to", -1, "end page, exclusive; negative means the last page")
	compileCmd.Flags().Float32("ppi", 144, "pixels per inch for png output")
	compileCmd.Flags().StringP("out", "o", "", "output path; {p} is replaced by the 1-based page number, - writes html to stdout")
}

func fileArg(args []string) string {
	if len(args) > 0 {
		return args[len(args)-1]
	}
	return ""
}

func runCompile(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	from, _ := cmd.Flags().GetInt32("from")
	to, _ := cmd.Flags().GetInt32("to")
	ppi, _ := cmd.Flags().GetFloat32("ppi")
	out, _ := cmd.Flags().GetString("out")

	s, err := openSession(cmd, fileArg(args))
	if err != nil {
		return err
	}
	defer s.Close(cmd.Context())
	h, err := s.openWorld()
	if err != nil {
		return err
	}

	stem := strings.TrimSuffix(filepath.Base(s.main), filepath.Ext(s.main))
	b := s.bridge
	switch format {
	case "svg":
		env, err := b.CompileSVG(h, from, to)
		if err != nil {
			return err
		}
		res, err := envelope.Unpack[bridge.SVGOutcome](b.Arena(), b.Codec(), nil, env)
		if err != nil {
			return err
		}
		pages, ok := outcome(s, res.Output, res.Warnings)
		if !ok {
			return errReported
		}
		data := make([][]byte, len(pages))
		for i, p := range pages {
			data[i] = []byte(p)
		}
		return s.writePages(pattern(out, stem, "svg"), from, data)

	case "png":
		env, err := b.CompileRaster(h, from, to, ppi)
		if err != nil {
			return err
		}
		res, err := envelope.Unpack[bridge.RasterOutcome](b.Arena(), b.Codec(), nil, env)
		if err != nil {
			return err
		}
		pages, ok := outcome(s, res.Output, res.Warnings)
		if !ok {
			return errReported
		}
		data := make([][]byte, len(pages))
		for i, p := range pages {
			data[i] = p
		}
		return s.writePages(pattern(out, stem, "png"), from, data)

	case "html":
		env, err := b.CompileHTML(h)
		if err != nil {
			return err
		}
		res, err := envelope.Unpack[bridge.HTMLOutcome](b.Arena(), b.Codec(), nil, env)
		if err != nil {
			return err
		}
		html, ok := outcome(s, res.Output, res.Warnings)
		if !ok {
			return errReported
		}
		if out == "-" {
			_, err := fmt.Fprint(cmd.OutOrStdout(), html)
			return err
		}
		if out == "" {
			out = stem + ".html"
		}
		return s.write(out, []byte(html))
	}
	return fmt.Errorf("unknown format %q", format)
}

// outcome reports warnings and errors and unpacks a successful result.
func outcome[T any](s *session, r envelope.Result[T, []diag.Diagnostic], warnings []diag.Diagnostic) (T, bool) {
	s.reporter.Report(warnings)
	v, errs, ok := r.Unpack()
	if !ok {
		s.reporter.Report(errs)
	}
	return v, ok
}

func pattern(out, stem, ext string) string {
	if out == "" {
		return stem + "-{p}." + ext
	}
	return out
}

func (s *session) writePages(pattern string, from int32, pages [][]byte) error {
	if len(pages) > 1 && !strings.Contains(pattern, "{p}") {
		return fmt.Errorf("output %q needs {p} for %d pages", pattern, len(pages))
	}
	first := int(max(from, 0))
	for i, data := range pages {
		name := strings.ReplaceAll(pattern, "{p}", strconv.Itoa(first+i+1))
		if err := s.write(name, data); err != nil {
			return err
		}
	}
	return nil
}

func (s *session) write(name string, data []byte) error {
	if err := os.WriteFile(name, data, 0o644); err != nil {
		return err
	}
	s.logger.Info("written", zap.String("file", name), zap.Int("bytes", len(data)))
	return nil
}
