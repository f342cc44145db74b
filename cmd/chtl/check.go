package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"chtl/internal/build"
	"chtl/internal/cache"
	"chtl/internal/compiler"
	"chtl/internal/diag"
	"chtl/internal/lsp"
)

var checkCmd = &cobra.Command{
	Use:   "check [path...]",
	Short: "Validate CHTL files and print diagnostics",
	Long:  `Run the compiler in validation mode on every .chtl file under the given paths (default: the current directory) and print its diagnostics.`,
	RunE:  runCheck,
}

func init() {
	checkCmd.Flags().IntP("jobs", "j", 0, "max parallel compiler processes (0=auto)")
	checkCmd.Flags().Int("max-diagnostics", 0, "max diagnostics per file (0=config value)")
}

type checkResult struct {
	path  string
	diags []diag.Diagnostic
	err   error
}

func runCheck(cmd *cobra.Command, args []string) error {
	logger := loggerFromFlags(cmd)
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	jobs, err := cmd.Flags().GetInt("jobs")
	if err != nil {
		return err
	}
	maxDiags, err := cmd.Flags().GetInt("max-diagnostics")
	if err != nil {
		return err
	}
	if maxDiags <= 0 {
		maxDiags = cfg.Diagnostics.Max
	}

	inv, _, err := resolveCompiler(cfg, logger)
	if err != nil {
		return err
	}
	targets := args
	if len(targets) == 0 {
		targets = []string{"."}
	}
	files, err := build.Discover(targets...)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No CHTL files found")
		return nil
	}

	store := openCache(cfg, logger)
	validateArgs := compiler.ValidateArgs().Strings()
	results := make([]checkResult, len(files))

	g, gctx := errgroup.WithContext(cmd.Context())
	if jobs > 0 {
		g.SetLimit(jobs)
	} else {
		g.SetLimit(len(files))
	}
	for i, path := range files {
		g.Go(func() error {
			res := checkFile(gctx, inv, store, path, validateArgs)
			if res.err != nil && gctx.Err() != nil {
				return gctx.Err()
			}
			bag := diag.NewBag(maxDiags)
			bag.AddAll(res.diags)
			bag.Dedup()
			bag.Sort()
			res.diags = bag.Items()
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	var errorCount, warningCount int
	for _, res := range results {
		if res.err != nil {
			fmt.Fprintf(out, "%s: %s: %v\n", res.path, severityLabel(diag.SevError), res.err)
			errorCount++
			continue
		}
		for _, d := range res.diags {
			printDiagnostic(out, res.path, d)
			switch d.Severity {
			case diag.SevError:
				errorCount++
			case diag.SevWarning:
				warningCount++
			}
		}
	}
	fmt.Fprintf(out, "%d files checked, %d errors, %d warnings\n", len(files), errorCount, warningCount)
	if errorCount > 0 {
		return exitError{code: 1}
	}
	return nil
}

// checkFile validates one file, consulting the result cache first.
func checkFile(ctx context.Context, inv *compiler.Invoker, store *cache.Store, path string, args []string) checkResult {
	res := checkResult{path: path}
	data, err := os.ReadFile(path)
	if err != nil {
		res.err = err
		return res
	}
	text := string(data)
	uri := lsp.PathToURI(path)

	key := cache.KeyOf(inv.Fingerprint(), strings.Join(args, "\x00"), text)
	if records, ok, _ := store.Get(key); ok {
		res.diags = diag.ToDiagnostics(records, uri, text)
		return res
	}

	out, err := inv.RunFile(ctx, path, args)
	if err != nil {
		res.err = err
		return res
	}
	records := compiler.ParseResult(out)
	_ = store.Put(key, cache.Entry{Success: out.Success, ExitCode: out.ExitCode, Records: records})
	res.diags = diag.ToDiagnostics(records, uri, text)
	return res
}

// printDiagnostic writes "path:line:col: severity: message" with 1-based
// positions.
func printDiagnostic(out io.Writer, path string, d diag.Diagnostic) {
	fmt.Fprintf(out, "%s:%d:%d: %s: %s\n",
		path, d.Range.Start.Line+1, d.Range.Start.Character+1, severityLabel(d.Severity), d.Message)
	for _, rel := range d.Related {
		fmt.Fprintf(out, "    %s:%d:%d: note: %s\n",
			lsp.URIToPath(rel.URI), rel.Range.Start.Line+1, rel.Range.Start.Character+1, rel.Message)
	}
}

func severityLabel(sev diag.Severity) string {
	switch sev {
	case diag.SevError:
		return color.New(color.FgRed, color.Bold).Sprint(sev.String())
	case diag.SevWarning:
		return color.New(color.FgYellow, color.Bold).Sprint(sev.String())
	case diag.SevInfo:
		return color.New(color.FgCyan).Sprint(sev.String())
	default:
		return color.New(color.Faint).Sprint(sev.String())
	}
}
