package compiler

import (
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
)

// ErrCompilerNotFound reports that neither the configured nor the bundled
// compiler exists.
var ErrCompilerNotFound = errors.New("CHTL compiler not found")

// SpawnError reports that the compiler process could not be started.
type SpawnError struct {
	Binary string
	Err    error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("start %s: %v", e.Binary, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// NotFound reports whether the binary is missing rather than failing for
// another OS-level reason.
func (e *SpawnError) NotFound() bool {
	return errors.Is(e.Err, exec.ErrNotFound) || errors.Is(e.Err, fs.ErrNotExist)
}

// Message is the text shown to users for a spawn failure.
func (e *SpawnError) Message() string {
	return "Failed to run compiler: " + e.Err.Error()
}
