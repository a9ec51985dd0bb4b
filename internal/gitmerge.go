package internal

import (
	"bytes"
	"context"
	"errors"
	"sort"

	"github.com/go-git/go-billy/v5/util"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
)

type treeEntry struct {
	hash plumbing.Hash
	mode filemode.FileMode
}

func sameEntry(a, b *treeEntry) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.hash == b.hash && a.mode == b.mode
}

func isText(e *treeEntry) bool {
	return e == nil || (e.mode.IsFile() && e.mode != filemode.Symlink)
}

// treeEntries flattens a commit's tree into path -> entry. The zero hash
// yields the empty tree.
func (r *GitRepository) treeEntries(commit plumbing.Hash) (map[string]*treeEntry, error) {
	entries := make(map[string]*treeEntry)
	if commit.IsZero() {
		return entries, nil
	}
	c, err := r.repo.CommitObject(commit)
	if err != nil {
		return nil, storeFailure("read commit", err)
	}
	tree, err := c.Tree()
	if err != nil {
		return nil, storeFailure("read tree", err)
	}
	err = tree.Files().ForEach(func(f *object.File) error {
		entries[f.Name] = &treeEntry{hash: f.Hash, mode: f.Mode}
		return nil
	})
	if err != nil {
		return nil, storeFailure("walk tree", err)
	}
	return entries, nil
}

// Merge merges target into the current branch. Fast-forwards when the tip is
// an ancestor of target, otherwise runs a three-way merge against the first
// merge base. A conflicting merge leaves markers in the working tree and
// records MERGE_HEAD; it is the caller's job to abort or resolve it.
func (r *GitRepository) Merge(ctx context.Context, target plumbing.Hash, opts MergeOptions) (*MergeResult, error) {
	opts = opts.withDefaults(target)

	head, err := r.repo.Head()
	if err != nil {
		return nil, storeFailure("resolve HEAD", err)
	}
	result := &MergeResult{Head: head.Hash(), Target: target}
	if head.Hash() == target {
		result.Outcome = MergeUpToDate
		return result, nil
	}

	ours, err := r.repo.CommitObject(head.Hash())
	if err != nil {
		return nil, storeFailure("merge", err)
	}
	theirs, err := r.repo.CommitObject(target)
	if errors.Is(err, plumbing.ErrObjectNotFound) {
		return nil, newError(CodeReferenceNotFound, "merge", "no commit %s", target)
	}
	if err != nil {
		return nil, storeFailure("merge", err)
	}

	if merged, err := theirs.IsAncestor(ours); err != nil {
		return nil, storeFailure("merge", err)
	} else if merged {
		result.Outcome = MergeUpToDate
		return result, nil
	}

	if behind, err := ours.IsAncestor(theirs); err != nil {
		return nil, storeFailure("merge", err)
	} else if behind {
		if err := r.FastForward(ctx, target); err != nil {
			return nil, err
		}
		result.Outcome = MergeFastForward
		result.Head = target
		return result, nil
	}

	bases, err := ours.MergeBase(theirs)
	if err != nil {
		return nil, storeFailure("merge base", err)
	}
	var base plumbing.Hash
	if len(bases) > 0 {
		base = bases[0].Hash
	}

	conflicts, err := r.mergeTrees(base, ours.Hash, target, opts)
	if err != nil {
		return nil, err
	}

	if len(conflicts) > 0 {
		if err := r.writeMergeState(target, opts.Message); err != nil {
			return nil, err
		}
		result.Outcome = MergeConflicting
		result.Conflicts = conflicts
		return result, nil
	}

	sig := opts.Author.signature()
	hash, err := r.worktree.Commit(opts.Message, &git.CommitOptions{
		Author:            sig,
		Committer:         sig,
		Parents:           []plumbing.Hash{ours.Hash, target},
		AllowEmptyCommits: true,
	})
	if err != nil {
		return nil, storeFailure("merge commit", err)
	}
	result.Outcome = MergeClean
	result.Head = hash
	return result, nil
}

func (r *GitRepository) mergeTrees(base, ours, theirs plumbing.Hash, opts MergeOptions) ([]Conflict, error) {
	baseEntries, err := r.treeEntries(base)
	if err != nil {
		return nil, err
	}
	ourEntries, err := r.treeEntries(ours)
	if err != nil {
		return nil, err
	}
	theirEntries, err := r.treeEntries(theirs)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var paths []string
	for _, m := range []map[string]*treeEntry{baseEntries, ourEntries, theirEntries} {
		for p := range m {
			if !seen[p] {
				seen[p] = true
				paths = append(paths, p)
			}
		}
	}
	sort.Strings(paths)

	var conflicts []Conflict
	for _, p := range paths {
		c, err := r.mergePath(p, baseEntries[p], ourEntries[p], theirEntries[p], opts)
		if err != nil {
			return nil, err
		}
		if c != nil {
			conflicts = append(conflicts, *c)
		}
	}
	return conflicts, nil
}

func (r *GitRepository) mergePath(path string, base, ours, theirs *treeEntry, opts MergeOptions) (*Conflict, error) {
	switch {
	case sameEntry(ours, theirs), sameEntry(base, theirs):
		return nil, nil
	case sameEntry(base, ours):
		return nil, r.takeTheirs(path, theirs)
	case ours == nil:
		// deleted here, changed there: leave their version for inspection
		if err := r.writeBlob(path, theirs); err != nil {
			return nil, err
		}
		return &Conflict{Path: path, Kind: ConflictDeleteModify}, nil
	case theirs == nil:
		return &Conflict{Path: path, Kind: ConflictModifyDelete}, nil
	case !isText(base) || !isText(ours) || !isText(theirs):
		return &Conflict{Path: path, Kind: ConflictBinary}, nil
	}

	kind := ConflictModifyModify
	var baseData []byte
	if base == nil {
		kind = ConflictAddAdd
	} else {
		data, err := r.blobContent(base.hash)
		if err != nil {
			return nil, err
		}
		baseData = data
	}
	ourData, err := r.blobContent(ours.hash)
	if err != nil {
		return nil, err
	}
	theirData, err := r.blobContent(theirs.hash)
	if err != nil {
		return nil, err
	}
	if isBinary(baseData) || isBinary(ourData) || isBinary(theirData) {
		return &Conflict{Path: path, Kind: ConflictBinary}, nil
	}

	merged := mergeText(baseData, ourData, theirData, opts.OursLabel, opts.TheirsLabel)
	if err := util.WriteFile(r.worktree.Filesystem, path, merged.content, 0644); err != nil {
		return nil, wrapError(CodeIOFailure, "write merge result", err)
	}
	if merged.conflicts > 0 {
		return &Conflict{Path: path, Kind: kind, Hunks: merged.conflicts}, nil
	}
	if bytes.Equal(merged.content, ourData) {
		return nil, nil
	}
	if _, err := r.worktree.Add(path); err != nil {
		return nil, storeFailure("stage merge result", err)
	}
	return nil, nil
}

func (r *GitRepository) takeTheirs(path string, theirs *treeEntry) error {
	if theirs == nil {
		if _, err := r.worktree.Remove(path); err != nil {
			return storeFailure("remove "+path, err)
		}
		return nil
	}
	if err := r.writeBlob(path, theirs); err != nil {
		return err
	}
	if _, err := r.worktree.Add(path); err != nil {
		return storeFailure("stage "+path, err)
	}
	return nil
}

func (r *GitRepository) writeBlob(path string, e *treeEntry) error {
	data, err := r.blobContent(e.hash)
	if err != nil {
		return err
	}
	perm, err := e.mode.ToOSFileMode()
	if err != nil {
		perm = 0644
	}
	if err := util.WriteFile(r.worktree.Filesystem, path, data, perm.Perm()); err != nil {
		return wrapError(CodeIOFailure, "write "+path, err)
	}
	return nil
}
