package compiler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const helperEnv = "CHTL_HELPER_PROCESS"

// TestHelperProcess is the fake compiler. It reads its input file as a
// script of directives, one per line.
func TestHelperProcess(t *testing.T) {
	if os.Getenv(helperEnv) != "1" {
		return
	}
	args := os.Args
	for i, arg := range args {
		if arg == "--" {
			args = args[i+1:]
			break
		}
	}
	input := args[len(args)-1]
	data, err := os.ReadFile(input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot read input: %v\n", err)
		os.Exit(3)
	}
	code := 0
	for _, line := range strings.Split(string(data), "\n") {
		directive, value, _ := strings.Cut(line, ": ")
		switch directive {
		case "stdout":
			fmt.Fprintln(os.Stdout, value)
		case "stderr":
			fmt.Fprintln(os.Stderr, value)
		case "exit":
			code, _ = strconv.Atoi(value)
		case "echo-path":
			fmt.Fprintln(os.Stdout, input)
		case "echo-args":
			fmt.Fprintln(os.Stdout, strings.Join(args[:len(args)-1], " "))
		case "flood":
			n, _ := strconv.Atoi(value)
			chunk := strings.Repeat("x", 1024)
			for i := 0; i < n; i++ {
				fmt.Fprint(os.Stdout, chunk)
				fmt.Fprint(os.Stderr, chunk)
			}
		case "sleep":
			d, _ := time.ParseDuration(value)
			time.Sleep(d)
		}
	}
	os.Exit(code)
}

func helperInvoker(t *testing.T) *Invoker {
	t.Helper()
	return NewInvoker(Options{
		Binary:  os.Args[0],
		Flags:   []string{"-test.run=^TestHelperProcess$", "--"},
		TempDir: filepath.Join(t.TempDir(), "scratch"),
		Env:     []string{helperEnv + "=1"},
	})
}

func assertNoTempInputs(t *testing.T, inv *Invoker) {
	t.Helper()
	entries, err := os.ReadDir(inv.TempDir())
	if errors.Is(err, os.ErrNotExist) {
		return
	}
	require.NoError(t, err)
	assert.Empty(t, entries, "temporary inputs left behind")
}

func TestRunSuccessUsesStdout(t *testing.T) {
	inv := helperInvoker(t)
	res, err := inv.Run(context.Background(), "stdout: compiled\nstderr: note\n", nil)
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "compiled\n", res.Output)
	assert.Equal(t, "note\n", res.Stderr)
	assertNoTempInputs(t, inv)
}

func TestRunFailurePrefersStderr(t *testing.T) {
	inv := helperInvoker(t)
	res, err := inv.Run(context.Background(), "stdout: partial\nstderr: boom\nexit: 2\n", nil)
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.Equal(t, 2, res.ExitCode)
	assert.Equal(t, "boom\n", res.Output)
	assertNoTempInputs(t, inv)
}

func TestRunFailureFallsBackToStdout(t *testing.T) {
	inv := helperInvoker(t)
	res, err := inv.Run(context.Background(), "stdout: only stdout\nexit: 1\n", nil)
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.Equal(t, "only stdout\n", res.Output)
}

func TestRunPassesInputLastAndRemovesIt(t *testing.T) {
	inv := helperInvoker(t)
	res, err := inv.Run(context.Background(), "echo-path\necho-args\n", ValidateArgs().Strings())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(res.Stdout), "\n")
	require.Len(t, lines, 2)
	inputPath := lines[0]
	assert.Equal(t, inv.TempDir(), filepath.Dir(inputPath))
	assert.Equal(t, ".chtl", filepath.Ext(inputPath))
	assert.Equal(t, "--validate-only --json-output", lines[1])

	_, statErr := os.Stat(inputPath)
	assert.True(t, errors.Is(statErr, os.ErrNotExist), "input %s still exists", inputPath)
}

func TestRunDrainsLargeOutputOnBothStreams(t *testing.T) {
	inv := helperInvoker(t)
	res, err := inv.Run(context.Background(), "flood: 512\nexit: 1\n", nil)
	require.NoError(t, err)

	assert.Len(t, res.Stdout, 512*1024)
	assert.Len(t, res.Stderr, 512*1024)
	assertNoTempInputs(t, inv)
}

func TestRunSpawnFailureIsDistinct(t *testing.T) {
	dir := t.TempDir()
	inv := NewInvoker(Options{
		Binary:  filepath.Join(dir, "no-such-compiler"),
		TempDir: filepath.Join(dir, "scratch"),
	})

	_, err := inv.Run(context.Background(), "html {}", ValidateArgs().Strings())
	require.Error(t, err)

	var spawnErr *SpawnError
	require.ErrorAs(t, err, &spawnErr)
	assert.True(t, spawnErr.NotFound())
	assert.Contains(t, spawnErr.Message(), "Failed to run compiler: ")
	assertNoTempInputs(t, inv)
}

func TestRunCancelledContextKillsProcess(t *testing.T) {
	inv := helperInvoker(t)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := inv.Run(ctx, "sleep: 30s\n", nil)
	require.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 20*time.Second)
	assertNoTempInputs(t, inv)
}

func TestRunConcurrentCallsUseDistinctInputs(t *testing.T) {
	inv := helperInvoker(t)
	const n = 8
	paths := make(chan string, n)
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			res, err := inv.Run(context.Background(), "echo-path\n", nil)
			if err != nil {
				errs <- err
				return
			}
			paths <- strings.TrimSpace(res.Stdout)
		}()
	}
	seen := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		select {
		case err := <-errs:
			t.Fatalf("run: %v", err)
		case p := <-paths:
			assert.False(t, seen[p], "input path reused: %s", p)
			seen[p] = true
		}
	}
	assertNoTempInputs(t, inv)
}

func TestCommandOrdering(t *testing.T) {
	inv := NewInvoker(Options{
		Binary: "java",
		Jar:    "/opt/chtl/chtl-compiler.jar",
		Flags:  []string{"--quiet"},
	})
	args := Args{Mode: ModeProduction, ModulePath: "/mods", Output: "/out/page.html"}

	got := inv.Command(args.Strings(), "/src/page.chtl")

	want := []string{
		"java", "-jar", "/opt/chtl/chtl-compiler.jar",
		"--quiet",
		"--production", "--module-path", "/mods", "-o", "/out/page.html",
		"/src/page.chtl",
	}
	assert.Equal(t, want, got)
}

func TestFingerprintChangesWithCompilerFile(t *testing.T) {
	dir := t.TempDir()
	jar := filepath.Join(dir, "c.jar")
	require.NoError(t, os.WriteFile(jar, []byte("v1"), 0o644))
	inv := NewInvoker(Options{Binary: "java", Jar: jar})
	before := inv.Fingerprint()

	require.NoError(t, os.WriteFile(jar, []byte("version two"), 0o644))
	assert.NotEqual(t, before, inv.Fingerprint())
}
