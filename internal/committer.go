package internal

import (
	"context"

	"github.com/rs/zerolog"
)

// CommitWriter stages single paths and commits them under a fixed identity.
type CommitWriter struct {
	store  Store
	author Identity
	log    zerolog.Logger
}

func NewCommitWriter(store Store, author Identity) *CommitWriter {
	return &CommitWriter{store: store, author: author, log: GetLogger("committer")}
}

// CommitPath stages exactly path and commits it. Staging or commit errors,
// including an empty commit, surface as COMMIT_FAILURE.
func (w *CommitWriter) CommitPath(ctx context.Context, path, message string) (*Commit, error) {
	if err := w.store.StagePath(ctx, path); err != nil {
		return nil, &SyncError{Code: CodeCommitFailure, Op: "stage " + path, Err: err}
	}
	c, err := w.store.CreateCommit(ctx, message, w.author)
	if err != nil {
		if IsCode(err, CodeCommitFailure) {
			return nil, err
		}
		return nil, &SyncError{Code: CodeCommitFailure, Op: "commit " + path, Err: err}
	}
	w.log.Info().Str("path", path).Str("commit", c.Short()).Msg("committed")
	return c, nil
}
