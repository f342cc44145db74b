// Package build compiles CHTL files to HTML with the external compiler and
// reports per-file progress.
package build

import (
	"context"
	"time"

	"chtl/internal/compiler"
)

// Status captures the progress state of one file.
type Status string

const (
	// StatusQueued indicates the file is waiting for a worker.
	StatusQueued Status = "queued"
	// StatusWorking indicates the compiler is running on the file.
	StatusWorking Status = "compiling"
	// StatusDone indicates the file compiled.
	StatusDone Status = "done"
	// StatusError indicates the compiler reported errors or did not run.
	StatusError Status = "error"
	// StatusSkipped indicates the run was cancelled before the file started.
	StatusSkipped Status = "skipped"
)

// Event reports progress for a file.
type Event struct {
	File    string
	Status  Status
	Err     error
	Elapsed time.Duration
}

// ProgressSink consumes progress events.
type ProgressSink interface {
	OnEvent(Event)
}

// Compiler runs the compiler on a file on disk. *compiler.Invoker
// implements it.
type Compiler interface {
	RunFile(ctx context.Context, path string, args []string) (compiler.Result, error)
}
