package build

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"chtl/internal/compiler"
	"chtl/internal/diag"
)

// Options configures compilation.
type Options struct {
	Mode       compiler.Mode
	ModulePath string
	// OutputDir receives the HTML files. Empty writes next to each source.
	OutputDir string
	Extra     []string
	// Jobs bounds concurrent compiler processes; <= 0 uses GOMAXPROCS.
	Jobs     int
	Progress ProgressSink
	Logger   *slog.Logger
}

// FileResult is the outcome of compiling one file.
type FileResult struct {
	Path     string
	Output   string
	Success  bool
	Records  []diag.Record
	ExitCode int
	Duration time.Duration
	// Err is set when the compiler could not run at all.
	Err error
}

// Summary aggregates a CompileAll run.
type Summary struct {
	Results  []FileResult
	Compiled int
	Failed   int
	Skipped  int
	Canceled bool
}

// Message is the one-line report shown after a run.
func (s Summary) Message() string {
	if s.Failed > 0 {
		return fmt.Sprintf("Compiled %d files with %d errors", s.Compiled, s.Failed)
	}
	return fmt.Sprintf("Successfully compiled %d files", s.Compiled)
}

// ErrorLines renders records the way the compile log shows them, e.g.
// "ERROR: missing brace at line 3".
func ErrorLines(records []diag.Record) []string {
	out := make([]string, 0, len(records))
	for _, rec := range records {
		line := strings.ToUpper(string(rec.Kind)) + ": " + rec.Message
		if rec.Line > 0 {
			line += fmt.Sprintf(" at line %d", rec.Line)
		}
		out = append(out, line)
	}
	return out
}

// CompileFile compiles one file. Failures are reported in the result, never
// as an error; only cancellation is returned.
func CompileFile(ctx context.Context, c Compiler, path string, opts Options) (FileResult, error) {
	logger := loggerOf(opts)
	res := FileResult{Path: path, Output: OutputPath(path, opts.OutputDir)}
	if opts.OutputDir != "" {
		if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
			res.Err = fmt.Errorf("create output directory: %w", err)
			res.Records = []diag.Record{{Kind: diag.KindError, Message: res.Err.Error()}}
			return res, nil
		}
	}
	args := compiler.Args{
		Mode:       opts.Mode,
		ModulePath: opts.ModulePath,
		Output:     res.Output,
		Extra:      opts.Extra,
	}
	logger.Debug("compile start", "file", path, "output", res.Output)
	started := time.Now()
	out, err := c.RunFile(ctx, path, args.Strings())
	res.Duration = time.Since(started)
	if err != nil {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		res.Err = err
		msg := err.Error()
		var spawnErr *compiler.SpawnError
		if errors.As(err, &spawnErr) {
			msg = spawnErr.Message()
		}
		res.Records = []diag.Record{{Kind: diag.KindError, Message: msg}}
		logger.Warn("compile failed to run", "file", path, "err", err)
		return res, nil
	}
	res.Success = out.Success
	res.ExitCode = out.ExitCode
	res.Records = compiler.ParseResult(out)
	logger.Debug("compile done", "file", path, "success", res.Success, "exit", res.ExitCode, "elapsed", res.Duration)
	return res, nil
}

// CompileAll compiles files on a bounded worker pool. Cancelling ctx stops
// queued files from starting and kills running compilers; the summary then
// covers what finished and Canceled is set.
func CompileAll(ctx context.Context, c Compiler, files []string, opts Options) Summary {
	summary := Summary{Results: make([]FileResult, len(files))}
	if len(files) == 0 {
		return summary
	}
	for _, file := range files {
		emit(opts.Progress, Event{File: file, Status: StatusQueued})
	}

	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	done := make([]bool, len(files))

	// Workers never return errors so one failing file does not cancel the
	// rest; cancellation comes only from the caller's ctx.
	var g errgroup.Group
	g.SetLimit(min(jobs, len(files)))
	for i, file := range files {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			emit(opts.Progress, Event{File: file, Status: StatusWorking})
			res, err := CompileFile(ctx, c, file, opts)
			if err != nil {
				return nil
			}
			summary.Results[i] = res
			done[i] = true
			status := StatusDone
			if !res.Success {
				status = StatusError
			}
			emit(opts.Progress, Event{File: file, Status: status, Err: res.Err, Elapsed: res.Duration})
			return nil
		})
	}
	_ = g.Wait()

	results := summary.Results[:0]
	for i, file := range files {
		if !done[i] {
			summary.Skipped++
			emit(opts.Progress, Event{File: file, Status: StatusSkipped})
			continue
		}
		res := summary.Results[i]
		if res.Success {
			summary.Compiled++
		} else {
			summary.Failed++
		}
		results = append(results, res)
	}
	summary.Results = results
	summary.Canceled = ctx.Err() != nil
	return summary
}

func loggerOf(opts Options) *slog.Logger {
	if opts.Logger != nil {
		return opts.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
