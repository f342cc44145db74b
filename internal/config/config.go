// Package config loads chtl.toml and merges editor settings on top of it.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"chtl/internal/compiler"
)

// FileName is the project configuration file looked up from the workspace
// root upwards.
const FileName = "chtl.toml"

const (
	defaultJava     = "java"
	defaultOutput   = "./dist"
	defaultDelayMS  = 500
	defaultCacheMax = 256
)

// Config is the effective configuration of the tool.
type Config struct {
	// Path is the chtl.toml the values came from; empty for defaults.
	Path        string      `toml:"-"`
	Compiler    Compiler    `toml:"compiler"`
	Diagnostics Diagnostics `toml:"diagnostics"`
	Cache       Cache       `toml:"cache"`
}

type Compiler struct {
	Path        string   `toml:"path"`
	Java        string   `toml:"java"`
	Mode        string   `toml:"mode"`
	Output      string   `toml:"output"`
	ModulePath  string   `toml:"module_path"`
	Flags       []string `toml:"flags"`
	AutoCompile bool     `toml:"auto_compile"`
}

type Diagnostics struct {
	Enable  bool `toml:"enable"`
	DelayMS int  `toml:"delay_ms"`
	// Max caps the diagnostics published per document; 0 means unlimited.
	Max int `toml:"max"`
}

// Cache configures the validation result cache. It is opt-in: entries are
// keyed by compiler identity, flags and text, so anything else the compiler
// reads (module directories, imported files) is not part of the key.
type Cache struct {
	Enable bool   `toml:"enable"`
	Dir    string `toml:"dir"`
	// Entries bounds the in-memory layer.
	Entries int `toml:"entries"`
}

// Default returns the configuration used when no chtl.toml exists.
func Default() Config {
	return Config{
		Compiler: Compiler{
			Java:   defaultJava,
			Mode:   string(compiler.ModeDevelopment),
			Output: defaultOutput,
		},
		Diagnostics: Diagnostics{
			Enable:  true,
			DelayMS: defaultDelayMS,
		},
		Cache: Cache{
			Entries: defaultCacheMax,
		},
	}
}

// Find walks up from startDir looking for chtl.toml.
func Find(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// Discover loads the chtl.toml found from startDir, or the defaults when
// there is none.
func Discover(startDir string) (Config, error) {
	path, ok, err := Find(startDir)
	if err != nil {
		return Config{}, err
	}
	if !ok {
		return Default(), nil
	}
	return Load(path)
}

// Load parses path. Keys missing from the file keep their defaults and
// relative paths are resolved against the file's directory.
func Load(path string) (Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return Config{}, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if meta.IsDefined("compiler", "java") && strings.TrimSpace(cfg.Compiler.Java) == "" {
		cfg.Compiler.Java = defaultJava
	}
	if meta.IsDefined("compiler", "mode") && strings.TrimSpace(cfg.Compiler.Mode) == "" {
		cfg.Compiler.Mode = string(compiler.ModeDevelopment)
	}
	cfg = cfg.ResolvePaths(filepath.Dir(path))
	cfg.Path = path
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if _, err := compiler.ParseMode(c.Compiler.Mode); err != nil {
		return fmt.Errorf("[compiler].mode: %w", err)
	}
	if c.Diagnostics.DelayMS < 0 {
		return fmt.Errorf("[diagnostics].delay_ms must not be negative, got %d", c.Diagnostics.DelayMS)
	}
	if c.Diagnostics.Max < 0 {
		return fmt.Errorf("[diagnostics].max must not be negative, got %d", c.Diagnostics.Max)
	}
	if c.Cache.Entries < 0 {
		return fmt.Errorf("[cache].entries must not be negative, got %d", c.Cache.Entries)
	}
	return nil
}

// Root is the directory compile outputs are relative to: the directory of
// chtl.toml, or fallback when the defaults are in use.
func (c Config) Root(fallback string) string {
	if c.Path != "" {
		return filepath.Dir(c.Path)
	}
	return fallback
}

// Delay is the debounce delay.
func (c Config) Delay() time.Duration {
	return time.Duration(c.Diagnostics.DelayMS) * time.Millisecond
}

// CompileMode returns the parsed compilation mode. Invalid values were
// rejected by Validate, so they fall back to development here.
func (c Config) CompileMode() compiler.Mode {
	mode, err := compiler.ParseMode(c.Compiler.Mode)
	if err != nil {
		return compiler.ModeDevelopment
	}
	return mode
}

// OutputDir resolves the compile output directory against root.
func (c Config) OutputDir(root string) string {
	out := c.Compiler.Output
	if out == "" {
		out = defaultOutput
	}
	return resolve(root, out)
}

// LocateOptions describes where to look for the compiler.
func (c Config) LocateOptions(bundleDir string) compiler.LocateOptions {
	return compiler.LocateOptions{
		Path:       c.Compiler.Path,
		Java:       c.Compiler.Java,
		ModulePath: c.Compiler.ModulePath,
		BundleDir:  bundleDir,
	}
}

func resolve(root, path string) string {
	path = strings.TrimSpace(path)
	if path == "" || filepath.IsAbs(path) || root == "" {
		return path
	}
	if home, ok := strings.CutPrefix(path, "~/"); ok {
		if dir, err := os.UserHomeDir(); err == nil {
			return filepath.Join(dir, home)
		}
	}
	return filepath.Join(root, filepath.FromSlash(path))
}

// resolveCommand is resolve for executables: a bare command name is left
// for a PATH lookup.
func resolveCommand(root, path string) string {
	trimmed := strings.TrimSpace(path)
	if !strings.ContainsAny(trimmed, `/\`) && !strings.HasPrefix(trimmed, "~") {
		return trimmed
	}
	return resolve(root, trimmed)
}

func parseModeSetting(s string) (string, error) {
	mode, err := compiler.ParseMode(s)
	if err != nil {
		return "", fmt.Errorf("compiler.mode: %w", err)
	}
	return string(mode), nil
}

// ResolvePaths makes the compiler, module and cache paths absolute against
// root. Editor settings carry workspace-relative paths.
func (c Config) ResolvePaths(root string) Config {
	c.Compiler.Path = resolveCommand(root, c.Compiler.Path)
	c.Compiler.ModulePath = resolve(root, c.Compiler.ModulePath)
	c.Cache.Dir = resolve(root, c.Cache.Dir)
	return c
}
