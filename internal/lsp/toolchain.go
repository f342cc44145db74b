package lsp

import (
	"log/slog"

	"chtl/internal/build"
	"chtl/internal/compiler"
	"chtl/internal/config"
	"chtl/internal/session"
)

// Compiler validates in-memory documents and compiles files on disk.
// *compiler.Invoker implements it.
type Compiler interface {
	session.Runner
	build.Compiler
}

// Toolchain resolves the compiler for a configuration.
type Toolchain interface {
	// Resolve returns the compiler and its module path. The compiler is
	// always usable as a value; err wraps compiler.ErrCompilerNotFound when
	// the file it points at is missing.
	Resolve(cfg config.Config) (Compiler, string, error)
}

// LocalToolchain finds the compiler on disk and runs it through
// compiler.Invoker.
type LocalToolchain struct {
	// BundleDir holds the bundled compiler. Defaults to the directory of
	// the running executable.
	BundleDir string
	TempDir   string
	Logger    *slog.Logger
}

func (t LocalToolchain) Resolve(cfg config.Config) (Compiler, string, error) {
	loc, err := compiler.Locate(cfg.LocateOptions(t.BundleDir))
	opts := loc.Options()
	opts.Flags = cfg.Compiler.Flags
	opts.TempDir = t.TempDir
	opts.Logger = t.Logger
	return compiler.NewInvoker(opts), loc.ModulePath, err
}
