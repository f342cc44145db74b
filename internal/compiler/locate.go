package compiler

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

const (
	bundledDir  = "compiler"
	bundledJar  = "chtl-compiler.jar"
	bundledMods = "modules"
	defaultJava = "java"
)

// LocateOptions describes where to look for the compiler.
type LocateOptions struct {
	// Path is the user-configured compiler: a .jar, an executable path or a
	// command name on PATH. Ignored when it does not exist.
	Path string
	// Java is the runtime used for .jar compilers. Defaults to "java".
	Java string
	// ModulePath overrides the bundled module directory.
	ModulePath string
	// BundleDir holds the bundled "compiler" directory. Defaults to the
	// directory of the running executable.
	BundleDir string
}

// Location is a resolved compiler.
type Location struct {
	Binary     string
	Jar        string
	ModulePath string
	// Bundled is set when the user-configured path was unusable.
	Bundled bool
}

// Target is the file that must exist for the compiler to run.
func (l Location) Target() string {
	if l.Jar != "" {
		return l.Jar
	}
	return l.Binary
}

// Options returns invoker options for this location.
func (l Location) Options() Options {
	return Options{Binary: l.Binary, Jar: l.Jar}
}

// Locate resolves the compiler. It always returns a usable Location; the
// error wraps ErrCompilerNotFound when the chosen compiler does not exist.
func Locate(opts LocateOptions) (Location, error) {
	bundle := opts.BundleDir
	if bundle == "" {
		bundle = DefaultBundleDir()
	}
	java := strings.TrimSpace(opts.Java)
	if java == "" {
		java = defaultJava
	}

	loc := Location{ModulePath: opts.ModulePath}
	if loc.ModulePath == "" {
		loc.ModulePath = filepath.Join(bundle, bundledDir, bundledMods)
	}

	path := strings.TrimSpace(opts.Path)
	if resolved, ok := resolveUserPath(path); ok {
		path = resolved
	} else {
		path = filepath.Join(bundle, bundledDir, bundledJar)
		loc.Bundled = true
	}
	if strings.EqualFold(filepath.Ext(path), ".jar") {
		loc.Binary = java
		loc.Jar = path
	} else {
		loc.Binary = path
	}

	if _, err := os.Stat(loc.Target()); err != nil {
		return loc, fmt.Errorf("%w: %s", ErrCompilerNotFound, loc.Target())
	}
	return loc, nil
}

// DefaultBundleDir is the directory of the running executable.
func DefaultBundleDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

func resolveUserPath(path string) (string, bool) {
	if path == "" {
		return "", false
	}
	if _, err := os.Stat(path); err == nil {
		if abs, err := filepath.Abs(path); err == nil {
			return abs, true
		}
		return path, true
	}
	if strings.ContainsRune(path, filepath.Separator) || strings.ContainsRune(path, '/') {
		return "", false
	}
	if found, err := exec.LookPath(path); err == nil {
		return found, true
	}
	return "", false
}
