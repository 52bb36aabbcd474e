package scanner

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

type IgnoreRule struct {
	Pattern string
	IsDir   bool
	Negated bool
	MatchFn func(string) bool
}

// IgnoreMatcher evaluates gitignore-style rules against paths relative
// to the scan root. Later rules win, matching git semantics.
type IgnoreMatcher struct {
	rules   []IgnoreRule
	rootDir string
}

func NewIgnoreMatcher(rootDir string) *IgnoreMatcher {
	return &IgnoreMatcher{
		rootDir: rootDir,
		rules:   make([]IgnoreRule, 0),
	}
}

// LoadGitignore reads rules from a .gitignore file. A missing file is
// not an error; the matcher just stays empty.
func (m *IgnoreMatcher) LoadGitignore(gitignorePath string) error {
	content, err := os.ReadFile(gitignorePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return m.ParseGitignore(content)
}

func (m *IgnoreMatcher) ParseGitignore(content []byte) error {
	scanner := bufio.NewScanner(bytes.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		m.AddPattern(line)
	}
	return scanner.Err()
}

func (m *IgnoreMatcher) AddPattern(pattern string) {
	rule := IgnoreRule{Pattern: pattern}

	if strings.HasPrefix(rule.Pattern, "!") {
		rule.Negated = true
		rule.Pattern = strings.TrimPrefix(rule.Pattern, "!")
	}

	if strings.HasSuffix(rule.Pattern, "/") {
		rule.IsDir = true
		rule.Pattern = strings.TrimSuffix(rule.Pattern, "/")
	}

	if strings.HasPrefix(rule.Pattern, "/") {
		// Anchored to the root.
		rule.Pattern = strings.TrimPrefix(rule.Pattern, "/")
		rule.MatchFn = func(p string) func(string) bool {
			return func(path string) bool {
				matched, _ := doublestar.Match(p, path)
				return matched
			}
		}(rule.Pattern)
	} else {
		rule.MatchFn = func(p string) func(string) bool {
			return func(path string) bool {
				matched, _ := doublestar.Match("**/"+p, path)
				if !matched {
					matched, _ = doublestar.Match(p, path)
				}
				return matched
			}
		}(rule.Pattern)
	}

	m.rules = append(m.rules, rule)
}

// Match reports whether relPath is excluded by the loaded rules.
func (m *IgnoreMatcher) Match(relPath string, isDir bool) bool {
	path := filepath.ToSlash(relPath)

	excluded := false
	for _, rule := range m.rules {
		if rule.IsDir && !isDir {
			continue
		}
		if rule.MatchFn(path) {
			excluded = !rule.Negated
		}
	}
	return excluded
}

func loadGitignorePatterns(root string) (*IgnoreMatcher, error) {
	matcher := NewIgnoreMatcher(root)
	if err := matcher.LoadGitignore(filepath.Join(root, ".gitignore")); err != nil {
		return nil, err
	}
	return matcher, nil
}
