package internal

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/pmezard/go-difflib/difflib"
	"github.com/sergi/go-diff/diffmatchpatch"
)

const (
	diffContext   = 3
	statWidth     = 40
	noNewlineNote = "\\ No newline at end of file\n"
)

// DiffStat counts the lines a path gained and lost between two commits.
type DiffStat struct {
	Path       string
	Insertions int
	Deletions  int
	Binary     bool
}

// DiffContent renders a unified diff of path between two commits. A side
// where the path does not exist diffs as empty; both missing is
// PATH_NOT_FOUND.
func (c *Coordinator) DiffContent(ctx context.Context, path string, from, to plumbing.Hash) (string, error) {
	before, after, err := c.readDiffSides(ctx, path, from, to)
	if err != nil {
		return "", err
	}
	if isBinary(before) || isBinary(after) {
		if string(before) == string(after) {
			return "", nil
		}
		return fmt.Sprintf("Binary file %s differs\n", path), nil
	}

	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        diffLines(before),
		B:        diffLines(after),
		FromFile: "a/" + path,
		FromDate: from.String()[:7],
		ToFile:   "b/" + path,
		ToDate:   to.String()[:7],
		Context:  diffContext,
	})
}

// DiffStat counts inserted and deleted lines of path between two commits.
func (c *Coordinator) DiffStat(ctx context.Context, path string, from, to plumbing.Hash) (*DiffStat, error) {
	before, after, err := c.readDiffSides(ctx, path, from, to)
	if err != nil {
		return nil, err
	}
	stat := &DiffStat{Path: path}
	if isBinary(before) || isBinary(after) {
		stat.Binary = string(before) != string(after)
		return stat, nil
	}

	dmp := diffmatchpatch.New()
	ca, cb, lines := dmp.DiffLinesToChars(string(before), string(after))
	for _, d := range dmp.DiffCharsToLines(dmp.DiffMain(ca, cb, false), lines) {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			stat.Insertions += len(splitLines(d.Text))
		case diffmatchpatch.DiffDelete:
			stat.Deletions += len(splitLines(d.Text))
		}
	}
	return stat, nil
}

func (s *DiffStat) String() string {
	if s.Binary {
		return fmt.Sprintf(" %s | Bin", s.Path)
	}
	total := s.Insertions + s.Deletions
	plus, minus := s.Insertions, s.Deletions
	if total > statWidth {
		plus, minus = plus*statWidth/total, minus*statWidth/total
	}
	return fmt.Sprintf(" %s | %d %s%s", s.Path, total,
		strings.Repeat("+", plus), strings.Repeat("-", minus))
}

func (c *Coordinator) readDiffSides(ctx context.Context, path string, from, to plumbing.Hash) ([]byte, []byte, error) {
	before, errFrom := c.store.ReadBlob(ctx, path, from)
	if errFrom != nil && !IsCode(errFrom, CodePathNotFound) {
		return nil, nil, errFrom
	}
	after, errTo := c.store.ReadBlob(ctx, path, to)
	if errTo != nil && !IsCode(errTo, CodePathNotFound) {
		return nil, nil, errTo
	}
	if errFrom != nil && errTo != nil {
		return nil, nil, errFrom
	}
	return before, after, nil
}

// diffLines splits content for difflib. A last line without a newline
// carries the marker git prints for it.
func diffLines(content []byte) []string {
	lines := splitLines(string(content))
	if n := len(lines); n > 0 && !strings.HasSuffix(lines[n-1], "\n") {
		lines[n-1] += "\n" + noNewlineNote
	}
	return lines
}
