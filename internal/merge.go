package internal

import (
	"context"
	"fmt"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/rs/zerolog"
)

// MergeEngine merges commits into the current branch and applies the
// leave-or-abort conflict policy.
type MergeEngine struct {
	store  Store
	author Identity
	log    zerolog.Logger
}

func NewMergeEngine(store Store, author Identity) *MergeEngine {
	return &MergeEngine{store: store, author: author, log: GetLogger("merge")}
}

// Merge merges target into the current branch. Conflicts are a result, not an
// error: with leaveConflicts the markers stay in the working tree, otherwise
// the merge is aborted and the tree is clean again. Only store failures
// return MERGE_FAILURE.
func (m *MergeEngine) Merge(ctx context.Context, target plumbing.Hash, leaveConflicts bool) (*MergeResult, error) {
	branch, err := m.store.CurrentBranch(ctx)
	if err != nil {
		return nil, err
	}
	short := target.String()[:7]

	res, err := m.store.Merge(ctx, target, MergeOptions{
		Message:     fmt.Sprintf("Merge commit %s into %s", short, branch),
		Author:      m.author,
		OursLabel:   branch,
		TheirsLabel: short,
	})
	if err != nil {
		if abortErr := m.AbortConflictingMerge(ctx); abortErr != nil {
			m.log.Warn().Err(abortErr).Msg("restoring tree after failed merge")
		}
		return nil, &SyncError{Code: CodeMergeFailure, Op: "merge " + short, Err: err}
	}

	m.log.Debug().
		Str("branch", branch).
		Str("target", short).
		Stringer("outcome", res.Outcome).
		Int("conflicts", len(res.Conflicts)).
		Msg("merge finished")

	if res.Outcome != MergeConflicting || leaveConflicts {
		return res, nil
	}
	if err := m.AbortConflictingMerge(ctx); err != nil {
		return nil, err
	}
	res.Aborted = true
	return res, nil
}

// AbortConflictingMerge drops the pending merge and hard resets every dirty
// path back to the pre-merge tip.
func (m *MergeEngine) AbortConflictingMerge(ctx context.Context) error {
	head, err := m.store.Head(ctx)
	if err != nil {
		return err
	}
	paths, err := m.store.DirtyPaths(ctx)
	if err != nil {
		return err
	}
	if err := m.store.ClearMergeState(ctx); err != nil {
		return err
	}
	if len(paths) > 0 {
		if err := m.store.HardReset(ctx, head.Hash, paths...); err != nil {
			return err
		}
	}
	m.log.Debug().Str("head", head.Short()).Strs("paths", paths).Msg("merge aborted")
	return nil
}
