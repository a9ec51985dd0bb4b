package internal

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

const IgnoreFilename = ".syncignore"

// defaultIgnores keep the mirror's own bookkeeping and editor droppings out
// of the repository.
var defaultIgnores = []string{
	IgnoreFilename,
	MirrorStateFile,
	"*.swp",
	"*~",
	".#*",
}

// IgnoreMatcher decides which mirror files are never pushed. Patterns use
// gitignore syntax and the last matching pattern wins.
type IgnoreMatcher struct {
	matcher  gitignore.Matcher
	basePath string
}

func NewIgnoreMatcher(basePath string) (*IgnoreMatcher, error) {
	var patterns []gitignore.Pattern
	for _, p := range defaultIgnores {
		patterns = append(patterns, gitignore.ParsePattern(p, nil))
	}

	custom, err := parseIgnoreFile(filepath.Join(basePath, IgnoreFilename))
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	patterns = append(patterns, custom...)

	return &IgnoreMatcher{
		matcher:  gitignore.NewMatcher(patterns),
		basePath: basePath,
	}, nil
}

func (m *IgnoreMatcher) Match(path string) bool {
	return m.match(path, false)
}

func (m *IgnoreMatcher) MatchDir(path string) bool {
	return m.match(path, true)
}

func (m *IgnoreMatcher) match(path string, isDir bool) bool {
	if filepath.IsAbs(path) {
		rel, err := filepath.Rel(m.basePath, path)
		if err != nil {
			return false
		}
		path = rel
	}
	if path == "." || strings.HasPrefix(path, "..") {
		return false
	}
	return m.matcher.Match(strings.Split(filepath.ToSlash(path), "/"), isDir)
}

func parseIgnoreFile(path string) ([]gitignore.Pattern, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var patterns []gitignore.Pattern
	scanner := bufio.NewScanner(f)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, gitignore.ParsePattern(line, nil))
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return patterns, nil
}
