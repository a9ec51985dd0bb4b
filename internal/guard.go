package internal

import (
	"context"
	"strings"
)

// CleanlinessGuard refuses to let mutating operations start on a dirty
// working tree. It detects concurrent edits; it does not lock.
type CleanlinessGuard struct {
	store Store
}

func NewCleanlinessGuard(store Store) *CleanlinessGuard {
	return &CleanlinessGuard{store: store}
}

// AssertClean fails with DIRTY_WORKING_TREE when there are staged, unstaged
// or untracked changes, or a merge in progress.
func (g *CleanlinessGuard) AssertClean(ctx context.Context) error {
	inMerge, err := g.store.MergeInProgress(ctx)
	if err != nil {
		return err
	}
	paths, err := g.store.DirtyPaths(ctx)
	if err != nil {
		return err
	}
	if !inMerge && len(paths) == 0 {
		return nil
	}

	e := newError(CodeDirtyWorkingTree, "assert clean", "refusing to update because there are uncommitted changes")
	if len(paths) > 0 {
		e.WithDetail("paths", strings.Join(paths, ","))
	}
	if inMerge {
		e.WithDetail("merge", "in progress")
	}
	return e
}
