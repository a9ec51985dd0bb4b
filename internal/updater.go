package internal

import (
	"bytes"
	"context"
	"os"

	"github.com/rs/zerolog"
)

// OptimisticFileUpdater replaces a file only if the caller proves it saw the
// content currently committed at the tip.
type OptimisticFileUpdater struct {
	store     Store
	guard     *CleanlinessGuard
	revisions *RevisionStore
	committer *CommitWriter
	message   func(path string) string
	log       zerolog.Logger
}

func NewOptimisticFileUpdater(store Store, guard *CleanlinessGuard, revisions *RevisionStore, committer *CommitWriter, message func(string) string) *OptimisticFileUpdater {
	return &OptimisticFileUpdater{
		store:     store,
		guard:     guard,
		revisions: revisions,
		committer: committer,
		message:   message,
		log:       GetLogger("updater"),
	}
}

// UpdateIfUnchanged copies sourceFile over path and commits it when the
// content id of path at the tip equals expected. A zero expected id means the
// path must not exist yet. On mismatch it returns false and changes nothing.
func (u *OptimisticFileUpdater) UpdateIfUnchanged(ctx context.Context, sourceFile, path string, expected ContentID) (bool, error) {
	if err := u.guard.AssertClean(ctx); err != nil {
		return false, err
	}

	head, err := u.store.Head(ctx)
	if err != nil {
		return false, err
	}
	current, err := u.revisions.contentOrZero(ctx, path, head.Hash)
	if err != nil {
		return false, err
	}
	if current != expected {
		u.log.Debug().
			Str("path", path).
			Str("expected", expected.String()).
			Str("current", current.String()).
			Str("tip", head.Short()).
			Msg("content changed since it was read")
		return false, nil
	}

	data, err := os.ReadFile(sourceFile)
	if err != nil {
		return false, wrapError(CodeIOFailure, "read "+sourceFile, err)
	}
	if !current.IsZero() && ContentIDOf(data) == current {
		u.log.Debug().Str("path", path).Msg("content already committed")
		return true, nil
	}

	if err := u.store.WriteWorkingFile(ctx, path, bytes.NewReader(data)); err != nil {
		return false, err
	}
	if _, err := u.committer.CommitPath(ctx, path, u.message(path)); err != nil {
		if resetErr := u.restore(ctx, head, path); resetErr != nil {
			u.log.Warn().Err(resetErr).Str("path", path).Msg("restoring path after failed commit")
		}
		return false, err
	}
	return true, nil
}

// restore puts path back to its state at head. A file that head does not
// track is removed.
func (u *OptimisticFileUpdater) restore(ctx context.Context, head *Commit, path string) error {
	return u.store.HardReset(ctx, head.Hash, path)
}
