package compiler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// Options configures an Invoker.
type Options struct {
	// Binary is the compiler executable, or the Java runtime when Jar is set.
	Binary string
	// Jar, when set, is passed as "-jar <Jar>" right after Binary.
	Jar string
	// Flags are fixed flags placed before the caller's flags.
	Flags []string
	// TempDir is the scoped storage for ephemeral inputs. Defaults to a
	// "chtl" directory under os.TempDir().
	TempDir string
	// Env is appended to the current environment of the child process.
	Env    []string
	Logger *slog.Logger
}

// Invoker runs the external compiler. It is safe for concurrent use; every
// call owns its own temporary input and process.
type Invoker struct {
	binary  string
	jar     string
	flags   []string
	tempDir string
	env     []string
	logger  *slog.Logger
}

// Result is the outcome of a compiler process that ran to exit.
type Result struct {
	Success bool
	// Output is stdout on success; on failure it is stderr, or stdout when
	// stderr is empty.
	Output   string
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// NewInvoker builds an Invoker from opts.
func NewInvoker(opts Options) *Invoker {
	tempDir := opts.TempDir
	if tempDir == "" {
		tempDir = DefaultTempDir()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Invoker{
		binary:  opts.Binary,
		jar:     opts.Jar,
		flags:   append([]string(nil), opts.Flags...),
		tempDir: tempDir,
		env:     append([]string(nil), opts.Env...),
		logger:  logger,
	}
}

// DefaultTempDir is the scoped storage used when none is configured.
func DefaultTempDir() string {
	return filepath.Join(os.TempDir(), "chtl")
}

// TempDir returns the directory holding ephemeral inputs.
func (inv *Invoker) TempDir() string {
	return inv.tempDir
}

// Command returns the full argument vector for running the compiler on
// input with the given caller flags.
func (inv *Invoker) Command(args []string, input string) []string {
	argv := make([]string, 0, 4+len(inv.flags)+len(args))
	argv = append(argv, inv.binary)
	if inv.jar != "" {
		argv = append(argv, "-jar", inv.jar)
	}
	argv = append(argv, inv.flags...)
	argv = append(argv, args...)
	return append(argv, input)
}

// Fingerprint identifies the compiler this invoker runs. It changes when the
// command prefix or the compiler file itself changes.
func (inv *Invoker) Fingerprint() string {
	var b strings.Builder
	b.WriteString(inv.binary)
	target := inv.binary
	if inv.jar != "" {
		b.WriteString("\x00-jar\x00")
		b.WriteString(inv.jar)
		target = inv.jar
	}
	for _, f := range inv.flags {
		b.WriteByte(0)
		b.WriteString(f)
	}
	if info, err := os.Stat(target); err == nil {
		fmt.Fprintf(&b, "\x00%d\x00%d", info.Size(), info.ModTime().UnixNano())
	}
	return b.String()
}

// Run writes content to a private temporary file, runs the compiler on it
// and removes the file before returning.
func (inv *Invoker) Run(ctx context.Context, content string, args []string) (Result, error) {
	input, release, err := inv.materialize(content)
	if err != nil {
		return Result{}, err
	}
	defer release()
	return inv.RunFile(ctx, input, args)
}

// RunFile runs the compiler on an existing file. Cancelling ctx kills the
// process; the context error is returned in that case.
func (inv *Invoker) RunFile(ctx context.Context, path string, args []string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	argv := inv.Command(args, path)
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	if len(inv.env) > 0 {
		cmd.Env = append(os.Environ(), inv.env...)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Result{}, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return Result{}, fmt.Errorf("stderr pipe: %w", err)
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return Result{}, &SpawnError{Binary: argv[0], Err: err}
	}
	inv.logger.Debug("compiler started", "pid", cmd.Process.Pid, "argv", argv)

	var outBuf, errBuf bytes.Buffer
	var g errgroup.Group
	g.Go(func() error {
		_, err := io.Copy(&outBuf, stdout)
		return err
	})
	g.Go(func() error {
		_, err := io.Copy(&errBuf, stderr)
		return err
	})
	copyErr := g.Wait()
	waitErr := cmd.Wait()

	res := Result{
		Stdout:   outBuf.String(),
		Stderr:   errBuf.String(),
		ExitCode: -1,
		Duration: time.Since(start),
	}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return res, fmt.Errorf("wait for compiler: %w", waitErr)
		}
	}
	if copyErr != nil {
		return res, fmt.Errorf("read compiler output: %w", copyErr)
	}
	res.Success = res.ExitCode == 0
	switch {
	case res.Success:
		res.Output = res.Stdout
	case res.Stderr != "":
		res.Output = res.Stderr
	default:
		res.Output = res.Stdout
	}
	inv.logger.Debug("compiler exited", "exit", res.ExitCode, "elapsed", res.Duration)
	return res, nil
}

// materialize writes content into a uniquely named file under the scoped
// storage directory. The returned release func removes it.
func (inv *Invoker) materialize(content string) (path string, release func(), err error) {
	if err := os.MkdirAll(inv.tempDir, 0o755); err != nil {
		return "", nil, fmt.Errorf("create temp dir: %w", err)
	}
	f, err := os.CreateTemp(inv.tempDir, "input-*.chtl")
	if err != nil {
		return "", nil, fmt.Errorf("create temp input: %w", err)
	}
	path = f.Name()
	release = func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			inv.logger.Warn("failed to remove temp input", "path", path, "err", err)
		}
	}
	if _, err := f.WriteString(content); err != nil {
		_ = f.Close()
		release()
		return "", nil, fmt.Errorf("write temp input: %w", err)
	}
	if err := f.Close(); err != nil {
		release()
		return "", nil, fmt.Errorf("close temp input: %w", err)
	}
	return path, release, nil
}
