package main

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"chtl/internal/cache"
	"chtl/internal/compiler"
	"chtl/internal/config"
)

// loadConfig reads --config, or discovers chtl.toml from the working
// directory. fixed reports whether the file was given explicitly.
func loadConfig(cmd *cobra.Command) (cfg config.Config, fixed bool, err error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return config.Config{}, false, err
	}
	if strings.TrimSpace(path) != "" {
		cfg, err = config.Load(path)
		fixed = true
	} else {
		cfg, err = config.Discover(".")
	}
	if err != nil {
		return config.Config{}, false, err
	}
	override, err := cmd.Flags().GetString("compiler")
	if err != nil {
		return config.Config{}, false, err
	}
	if override != "" {
		if strings.ContainsAny(override, `/\`) {
			override = absPath(override)
		}
		cfg.Compiler.Path = override
		fixed = true
	}
	return cfg, fixed, nil
}

// openCache builds the result cache described by cfg. A disk cache that
// cannot be opened degrades to memory only.
func openCache(cfg config.Config, logger *slog.Logger) *cache.Store {
	if !cfg.Cache.Enable {
		return nil
	}
	var (
		disk *cache.DiskCache
		err  error
	)
	if cfg.Cache.Dir != "" {
		disk, err = cache.OpenDiskCacheDir(cfg.Cache.Dir)
	} else {
		disk, err = cache.OpenDiskCache("chtl")
	}
	if err != nil {
		logger.Warn("disk cache unavailable", "err", err)
		disk = nil
	}
	return cache.NewStore(cfg.Cache.Entries, disk)
}

// resolveCompiler locates the compiler for cfg and returns an invoker for
// it. A missing compiler is an error for batch commands.
func resolveCompiler(cfg config.Config, logger *slog.Logger) (*compiler.Invoker, compiler.Location, error) {
	loc, err := compiler.Locate(cfg.LocateOptions(""))
	if err != nil {
		if errors.Is(err, compiler.ErrCompilerNotFound) {
			return nil, loc, fmt.Errorf("%w (set [compiler].path in %s or pass --compiler)", err, config.FileName)
		}
		return nil, loc, err
	}
	opts := loc.Options()
	opts.Flags = cfg.Compiler.Flags
	opts.Logger = logger.With("component", "compiler")
	return compiler.NewInvoker(opts), loc, nil
}

// absPath makes a command-line path absolute against the working directory.
func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
