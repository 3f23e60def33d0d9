// Package fsutil provides file system utility functions.
package fsutil

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Glob expands a set of glob patterns relative to baseDir and returns the
// deduplicated, sorted list of matching source files, as paths relative to
// baseDir with forward slashes. Patterns support `**`.
func Glob(baseDir string, patterns []string) ([]string, error) {
	fsys := os.DirFS(baseDir)
	seen := make(map[string]struct{})

	for _, pattern := range patterns {
		matches, err := doublestar.Glob(fsys, pattern)
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			info, err := os.Stat(filepath.Join(baseDir, filepath.FromSlash(m)))
			if err != nil || info.IsDir() {
				continue
			}
			if IsSourceFile(m) {
				seen[m] = struct{}{}
			}
		}
	}

	files := make([]string, 0, len(seen))
	for f := range seen {
		files = append(files, f)
	}
	sort.Strings(files)
	return files, nil
}

// IsSourceFile reports whether a path looks like a pixel-art source document.
func IsSourceFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pxl", ".jsonl", ".json":
		return true
	}
	return false
}
