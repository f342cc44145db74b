package build

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chtl/internal/compiler"
	"chtl/internal/diag"
)

type fakeCompiler struct {
	mu      sync.Mutex
	calls   map[string][]string
	running atomic.Int32
	peak    atomic.Int32
	run     func(ctx context.Context, path string) (compiler.Result, error)
}

func (f *fakeCompiler) RunFile(ctx context.Context, path string, args []string) (compiler.Result, error) {
	n := f.running.Add(1)
	defer f.running.Add(-1)
	for {
		peak := f.peak.Load()
		if n <= peak || f.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	f.mu.Lock()
	if f.calls == nil {
		f.calls = make(map[string][]string)
	}
	f.calls[path] = args
	f.mu.Unlock()
	if f.run == nil {
		return compiler.Result{Success: true}, nil
	}
	return f.run(ctx, path)
}

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("div {}"), 0o600))
}

func TestDiscoverSkipsNodeModules(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "b.chtl"))
	touch(t, filepath.Join(root, "pages", "a.CHTL"))
	touch(t, filepath.Join(root, "node_modules", "dep", "x.chtl"))
	touch(t, filepath.Join(root, "notes.txt"))

	files, err := Discover(root, filepath.Join(root, "b.chtl"))
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "b.chtl"),
		filepath.Join(root, "pages", "a.CHTL"),
	}, files)

	_, err = Discover(filepath.Join(root, "missing"))
	assert.Error(t, err)
}

func TestOutputPath(t *testing.T) {
	assert.Equal(t, filepath.Join("out", "index.html"), OutputPath(filepath.Join("src", "index.chtl"), "out"))
	assert.Equal(t, filepath.Join("src", "index.html"), OutputPath(filepath.Join("src", "index.chtl"), ""))
}

func TestCompileFilePassesModeModulesAndOutput(t *testing.T) {
	out := filepath.Join(t.TempDir(), "dist")
	c := &fakeCompiler{}
	res, err := CompileFile(context.Background(), c, "/src/page.chtl", Options{
		Mode:       compiler.ModeProduction,
		ModulePath: "/mods",
		OutputDir:  out,
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.DirExists(t, out)
	assert.Equal(t, filepath.Join(out, "page.html"), res.Output)
	assert.Equal(t, []string{"--production", "--module-path", "/mods", "-o", res.Output}, c.calls["/src/page.chtl"])
}

func TestCompileFileReportsParsedErrors(t *testing.T) {
	c := &fakeCompiler{run: func(context.Context, string) (compiler.Result, error) {
		return compiler.Result{Output: "page.chtl:3:1: error: missing brace\n", ExitCode: 1}, nil
	}}
	res, err := CompileFile(context.Background(), c, "page.chtl", Options{})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, 1, res.ExitCode)
	assert.Equal(t, []string{"ERROR: missing brace at line 3"}, ErrorLines(res.Records))
}

func TestCompileFileSpawnFailure(t *testing.T) {
	c := &fakeCompiler{run: func(context.Context, string) (compiler.Result, error) {
		return compiler.Result{}, &compiler.SpawnError{Binary: "java", Err: exec.ErrNotFound}
	}}
	res, err := CompileFile(context.Background(), c, "page.chtl", Options{})
	require.NoError(t, err)
	assert.False(t, res.Success)
	require.Error(t, res.Err)
	require.Len(t, res.Records, 1)
	assert.True(t, strings.HasPrefix(res.Records[0].Message, "Failed to run compiler: "))
}

func TestErrorLinesWithoutLine(t *testing.T) {
	lines := ErrorLines([]diag.Record{{Kind: diag.KindWarning, Message: "unused style"}})
	assert.Equal(t, []string{"WARNING: unused style"}, lines)
}

func TestCompileAllSummarizesAndBoundsWorkers(t *testing.T) {
	files := []string{"a.chtl", "b.chtl", "c.chtl", "d.chtl", "e.chtl"}
	c := &fakeCompiler{run: func(_ context.Context, path string) (compiler.Result, error) {
		if path == "c.chtl" {
			return compiler.Result{Output: "Error: broken", ExitCode: 1}, nil
		}
		return compiler.Result{Success: true}, nil
	}}
	var mu sync.Mutex
	final := map[string]Status{}
	sink := FuncSink(func(evt Event) {
		mu.Lock()
		final[evt.File] = evt.Status
		mu.Unlock()
	})

	summary := CompileAll(context.Background(), c, files, Options{Jobs: 2, Progress: sink})
	assert.Equal(t, 4, summary.Compiled)
	assert.Equal(t, 1, summary.Failed)
	assert.Zero(t, summary.Skipped)
	assert.False(t, summary.Canceled)
	assert.Len(t, summary.Results, 5)
	assert.Equal(t, "Compiled 4 files with 1 errors", summary.Message())
	assert.LessOrEqual(t, c.peak.Load(), int32(2))
	assert.Equal(t, StatusError, final["c.chtl"])
	assert.Equal(t, StatusDone, final["a.chtl"])
}

func TestCompileAllSuccessMessage(t *testing.T) {
	summary := CompileAll(context.Background(), &fakeCompiler{}, []string{"a.chtl"}, Options{})
	assert.Equal(t, "Successfully compiled 1 files", summary.Message())
}

func TestCompileAllStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	files := []string{"a.chtl", "b.chtl", "c.chtl"}
	c := &fakeCompiler{run: func(ctx context.Context, path string) (compiler.Result, error) {
		if path == "a.chtl" {
			cancel()
			<-ctx.Done()
			return compiler.Result{}, ctx.Err()
		}
		return compiler.Result{Success: true}, nil
	}}

	summary := CompileAll(ctx, c, files, Options{Jobs: 1})
	assert.True(t, summary.Canceled)
	assert.Equal(t, 3, summary.Skipped)
	assert.Empty(t, summary.Results)
}
