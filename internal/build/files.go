package build

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Ext is the source file extension.
const Ext = ".chtl"

var skippedDirs = map[string]struct{}{
	"node_modules": {},
	".git":         {},
}

// Discover expands targets into CHTL source files. Directories are walked
// recursively, skipping node_modules and VCS metadata; files are taken as
// given. The result is sorted and free of duplicates.
func Discover(targets ...string) ([]string, error) {
	seen := make(map[string]struct{})
	var files []string
	add := func(path string) {
		if _, ok := seen[path]; ok {
			return
		}
		seen[path] = struct{}{}
		files = append(files, path)
	}
	for _, target := range targets {
		info, err := os.Stat(target)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", target, err)
		}
		if !info.IsDir() {
			add(filepath.Clean(target))
			continue
		}
		err = filepath.WalkDir(target, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if _, skip := skippedDirs[d.Name()]; skip && path != target {
					return filepath.SkipDir
				}
				return nil
			}
			if strings.EqualFold(filepath.Ext(path), Ext) {
				add(path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", target, err)
		}
	}
	sort.Strings(files)
	return files, nil
}

// OutputPath is where the HTML for src is written: <outDir>/<name>.html, or
// next to src when outDir is empty.
func OutputPath(src, outDir string) string {
	if outDir == "" {
		outDir = filepath.Dir(src)
	}
	name := filepath.Base(src)
	if ext := filepath.Ext(name); strings.EqualFold(ext, Ext) {
		name = name[:len(name)-len(ext)]
	}
	return filepath.Join(outDir, name+".html")
}
