package internal

import (
	"os"
	"path/filepath"
	"testing"
)

func TestIgnoreMatcherDefaults(t *testing.T) {
	tmpDir := t.TempDir()

	m, err := NewIgnoreMatcher(tmpDir)
	if err != nil {
		t.Fatalf("new matcher: %v", err)
	}

	for _, p := range []string{IgnoreFilename, MirrorStateFile, "notes.txt.swp", "notes.txt~", "dir/.#notes.txt"} {
		if !m.Match(p) {
			t.Errorf("expected %q to be ignored by default", p)
		}
	}
	if m.Match("notes.txt") {
		t.Error("expected 'notes.txt' not to be ignored")
	}
}

func TestIgnoreMatcherGlobPattern(t *testing.T) {
	tmpDir := t.TempDir()
	ignoreFile := filepath.Join(tmpDir, IgnoreFilename)
	if err := os.WriteFile(ignoreFile, []byte("*.tmp\nbuild/\n"), 0644); err != nil {
		t.Fatalf("write ignore file: %v", err)
	}

	m, err := NewIgnoreMatcher(tmpDir)
	if err != nil {
		t.Fatalf("new matcher: %v", err)
	}

	if !m.Match("data.tmp") {
		t.Error("expected '*.tmp' pattern to match 'data.tmp'")
	}
	if !m.Match("sub/data.tmp") {
		t.Error("expected '*.tmp' pattern to match in subdirectories")
	}
	if m.Match("data.txt") {
		t.Error("expected '*.tmp' pattern to not match 'data.txt'")
	}
	if !m.MatchDir("build") {
		t.Error("expected 'build/' to match the directory")
	}
	if m.Match("build") {
		t.Error("expected 'build/' to not match a file")
	}
}

func TestIgnoreMatcherNegation(t *testing.T) {
	tmpDir := t.TempDir()
	ignoreFile := filepath.Join(tmpDir, IgnoreFilename)
	content := "# drafts stay local\n*.draft\n!keep.draft\n"
	if err := os.WriteFile(ignoreFile, []byte(content), 0644); err != nil {
		t.Fatalf("write ignore file: %v", err)
	}

	m, err := NewIgnoreMatcher(tmpDir)
	if err != nil {
		t.Fatalf("new matcher: %v", err)
	}

	if !m.Match("idea.draft") {
		t.Error("expected 'idea.draft' to be ignored")
	}
	if m.Match("keep.draft") {
		t.Error("expected negated pattern to keep 'keep.draft'")
	}
	if m.Match("# drafts stay local") {
		t.Error("expected comment not to be a pattern")
	}
}

func TestIgnoreMatcherAbsolutePaths(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmpDir, IgnoreFilename), []byte("secret\n"), 0644); err != nil {
		t.Fatalf("write ignore file: %v", err)
	}

	m, err := NewIgnoreMatcher(tmpDir)
	if err != nil {
		t.Fatalf("new matcher: %v", err)
	}

	if !m.Match(filepath.Join(tmpDir, "secret")) {
		t.Error("expected absolute path inside the base to match")
	}
	if m.Match(filepath.Join(t.TempDir(), "secret")) {
		t.Error("expected paths outside the base to never match")
	}
	if m.Match(tmpDir) {
		t.Error("expected the base itself to never match")
	}
}
