package internal

import (
	"context"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/rs/zerolog"
)

// RevisionStore reads the commit graph: references, content ids and the
// working copy of a path.
type RevisionStore struct {
	store Store
	log   zerolog.Logger
}

func NewRevisionStore(store Store) *RevisionStore {
	return &RevisionStore{store: store, log: GetLogger("revisions")}
}

// Resolve resolves a reference name or commit id.
func (r *RevisionStore) Resolve(ctx context.Context, name string) (*Commit, error) {
	c, err := r.store.ResolveRef(ctx, name)
	if err != nil {
		if IsCode(err, CodeReferenceNotFound) {
			return nil, err
		}
		return nil, storeFailure("resolve "+name, err)
	}
	return c, nil
}

// ContentIdentifierOf returns the id of path in commit's tree.
func (r *RevisionStore) ContentIdentifierOf(ctx context.Context, path string, commit plumbing.Hash) (ContentID, error) {
	return r.store.ReadTreeEntry(ctx, path, commit)
}

// contentOrZero is ContentIdentifierOf with a missing path mapped to the zero
// id.
func (r *RevisionStore) contentOrZero(ctx context.Context, path string, commit plumbing.Hash) (ContentID, error) {
	id, err := r.store.ReadTreeEntry(ctx, path, commit)
	if IsCode(err, CodePathNotFound) {
		return ZeroContentID, nil
	}
	return id, err
}

// CopyContentAt copies the working tree content of path to destination.
func (r *RevisionStore) CopyContentAt(ctx context.Context, path, destination string) error {
	if dir := filepath.Dir(destination); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return wrapError(CodeIOFailure, "copy "+path, err)
		}
	}
	f, err := os.Create(destination)
	if err != nil {
		return wrapError(CodeIOFailure, "copy "+path, err)
	}
	if err := r.store.ReadWorkingFile(ctx, path, f); err != nil {
		f.Close()
		os.Remove(destination)
		return err
	}
	if err := f.Close(); err != nil {
		return wrapError(CodeIOFailure, "copy "+path, err)
	}
	r.log.Debug().Str("path", path).Str("destination", destination).Msg("copied working file")
	return nil
}

// IsAncestorMerged reports whether candidate is reachable from descendant.
func (r *RevisionStore) IsAncestorMerged(ctx context.Context, candidate, descendant plumbing.Hash) (bool, error) {
	return r.store.IsAncestor(ctx, candidate, descendant)
}
