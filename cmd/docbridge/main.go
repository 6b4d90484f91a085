package main

import (
	stderrors "errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var rootCmd = &cobra.Command{
	Use:   "docbridge",
	Short: "Compile, query and format documents through the bridge",
	Long: `docbridge drives the document bridge as a host would: it serves files
from a project directory, answers file requests through envelopes and prints
diagnostics with source context.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// errReported means the failure was already printed as diagnostics.
var errReported = stderrors.New("failed with diagnostics")

func main() {
	rootCmd.AddCommand(compileCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(evalCmd)
	rootCmd.AddCommand(fmtCmd)
	rootCmd.AddCommand(parseCmd)
	rootCmd.AddCommand(surfaceCmd)
	rootCmd.AddCommand(interactiveCmd)

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "configuration file (default: nearest docbridge.toml)")
	flags.BoolP("verbose", "v", false, "log debug output to stderr")
	flags.String("root", "", "project root (overrides world.root)")
	flags.String("main", "", "main file relative to the root (overrides world.main)")
	flags.StringToString("input", nil, "library input key=value, repeatable")
	flags.Bool("html", false, "enable the html feature")
	flags.String("color", "auto", "colorize diagnostics (auto|on|off)")

	if err := rootCmd.Execute(); err != nil {
		if !stderrors.Is(err, errReported) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func useColor(cmd *cobra.Command, f *os.File) (bool, error) {
	mode, err := cmd.Flags().GetString("color")
	if err != nil {
		return false, err
	}
	switch mode {
	case "auto":
		return isTerminal(f), nil
	case "on":
		return true, nil
	case "off":
		return false, nil
	}
	return false, fmt.Errorf("unknown color mode %q", mode)
}
