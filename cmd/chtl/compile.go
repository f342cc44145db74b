package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"chtl/internal/build"
	"chtl/internal/compiler"
)

var compileCmd = &cobra.Command{
	Use:   "compile [path...]",
	Short: "Compile CHTL files or directories to HTML",
	Long:  `Compile every .chtl file under the given paths (default: the current directory).`,
	RunE:  runCompile,
}

func init() {
	compileCmd.Flags().String("mode", "", "build profile (development|production), overrides [compiler].mode")
	compileCmd.Flags().StringP("out", "o", "", "output directory, overrides [compiler].output")
	compileCmd.Flags().String("module-path", "", "module directory, overrides [compiler].module_path")
	compileCmd.Flags().IntP("jobs", "j", 0, "max parallel compiler processes (0=auto)")
	compileCmd.Flags().String("ui", "auto", "progress UI (auto|on|off)")
}

func runCompile(cmd *cobra.Command, args []string) error {
	logger := loggerFromFlags(cmd)
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	uiValue, err := cmd.Flags().GetString("ui")
	if err != nil {
		return err
	}
	ui, err := readSwitchMode("ui", uiValue)
	if err != nil {
		return err
	}
	if v, _ := cmd.Flags().GetString("mode"); v != "" {
		cfg.Compiler.Mode = v
	}
	if v, _ := cmd.Flags().GetString("out"); v != "" {
		cfg.Compiler.Output = absPath(v)
	}
	if v, _ := cmd.Flags().GetString("module-path"); v != "" {
		cfg.Compiler.ModulePath = absPath(v)
	}
	jobs, err := cmd.Flags().GetInt("jobs")
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	root := cfg.Root(cwd)
	cfg = cfg.ResolvePaths(root)

	inv, loc, err := resolveCompiler(cfg, logger)
	if err != nil {
		return err
	}

	targets := args
	if len(targets) == 0 {
		targets = []string{root}
	}
	files, err := build.Discover(targets...)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(files) == 0 {
		fmt.Fprintln(out, "No CHTL files found")
		return nil
	}

	mode, err := compiler.ParseMode(cfg.Compiler.Mode)
	if err != nil {
		return err
	}
	opts := build.Options{
		Mode:       mode,
		ModulePath: loc.ModulePath,
		OutputDir:  cfg.OutputDir(root),
		Jobs:       jobs,
		Logger:     logger,
	}

	var summary build.Summary
	if ui.enabledFor(os.Stdout) {
		summary, err = runCompileWithUI(cmd.Context(), "Compiling CHTL", root, inv, files, opts)
		if err != nil {
			return err
		}
	} else {
		summary = build.CompileAll(cmd.Context(), inv, files, opts)
	}

	printCompileSummary(out, summary)
	if summary.Canceled {
		return cmd.Context().Err()
	}
	if summary.Failed > 0 {
		return exitError{code: 1}
	}
	return nil
}

func printCompileSummary(out io.Writer, summary build.Summary) {
	okLabel := color.New(color.FgGreen, color.Bold).Sprint("ok")
	failLabel := color.New(color.FgRed, color.Bold).Sprint("FAIL")
	for _, res := range summary.Results {
		if res.Success {
			fmt.Fprintf(out, "%s   %s -> %s (%s)\n", okLabel, res.Path, res.Output, res.Duration.Round(time.Millisecond))
			continue
		}
		fmt.Fprintf(out, "%s %s\n", failLabel, res.Path)
		if res.Err != nil {
			fmt.Fprintf(out, "    %v\n", res.Err)
		}
		for _, line := range build.ErrorLines(res.Records) {
			fmt.Fprintf(out, "    %s\n", line)
		}
	}
	fmt.Fprintln(out, summary.Message())
}
