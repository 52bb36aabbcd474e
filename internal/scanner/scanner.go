// Package scanner walks a repository root and yields the files worth
// ingesting, honoring a fixed deny-list and the root .gitignore.
package scanner

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrPathNotFound is returned when the scan root does not exist.
var ErrPathNotFound = fmt.Errorf("path not found")

// alwaysIgnoreDirs are pruned during traversal regardless of ignore rules:
// VCS metadata, dependency caches, build outputs and virtualenvs.
var alwaysIgnoreDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"__pycache__":  true,
	".venv":        true,
	"venv":         true,
	".env":         true,
	"dist":         true,
	"build":        true,
	"coverage":     true,
}

// skipExtensions are binary or lock-file extensions never worth embedding.
var skipExtensions = map[string]bool{
	".pyc":  true,
	".lock": true,
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".ico":  true,
	".pdf":  true,
	".zip":  true,
	".gz":   true,
	".exe":  true,
	".so":   true,
	".dylib": true,
	".wasm": true,
}

// Scan walks root and returns the relative-order list of files that
// should be ingested. Directories are pruned before descent so ignored
// subtrees are never traversed. Order is traversal order, not sorted.
func Scan(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrPathNotFound, root)
		}
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrPathNotFound, root)
	}

	matcher, err := loadGitignorePatterns(root)
	if err != nil {
		return nil, fmt.Errorf("load gitignore: %w", err)
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable entries are skipped, not fatal.
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if path == root {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if alwaysIgnoreDirs[d.Name()] || matcher.Match(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}

		if excludeFile(d.Name()) {
			return nil
		}
		if matcher.Match(rel, false) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	return files, nil
}

func excludeFile(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	return skipExtensions[strings.ToLower(filepath.Ext(name))]
}
