package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"chtl/internal/version"
)

var rootCmd = &cobra.Command{
	Use:               "chtl",
	Short:             "CHTL language server and compiler driver",
	Long:              `chtl validates and compiles CHTL sources with the external CHTL compiler and serves diagnostics to editors over LSP.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setupGlobals,
}

// exitError carries a process exit code without an error message, for
// commands whose output already explains the failure.
type exitError struct {
	code int
}

func (e exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

func main() {
	rootCmd.Version = version.Current().Version

	rootCmd.AddCommand(lspCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(compileCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().String("config", "", "path to chtl.toml (default: discovered from the working directory)")
	rootCmd.PersistentFlags().String("compiler", "", "compiler executable or .jar, overrides [compiler].path")
	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().String("log-level", "warn", "log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text|json)")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		var exit exitError
		if errors.As(err, &exit) {
			os.Exit(exit.code)
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func setupGlobals(cmd *cobra.Command, _ []string) error {
	mode, err := cmd.Flags().GetString("color")
	if err != nil {
		return err
	}
	m, err := readSwitchMode("color", mode)
	if err != nil {
		return err
	}
	color.NoColor = !m.enabledFor(os.Stdout)
	return nil
}

// isTerminal reports whether f is attached to a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
