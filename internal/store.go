package internal

import (
	"context"
	"io"

	"github.com/go-git/go-git/v5/plumbing"
)

// Store is the commit graph, index and working tree capability the sync
// engine is built on. Every method may fail with a STORE_FAILURE SyncError.
type Store interface {
	Head(ctx context.Context) (*Commit, error)
	CurrentBranch(ctx context.Context) (string, error)
	ResolveRef(ctx context.Context, name string) (*Commit, error)
	ReadTreeEntry(ctx context.Context, path string, commit plumbing.Hash) (ContentID, error)
	ReadBlob(ctx context.Context, path string, commit plumbing.Hash) ([]byte, error)
	IsAncestor(ctx context.Context, candidate, descendant plumbing.Hash) (bool, error)
	TrackedFiles(ctx context.Context, commit plumbing.Hash) ([]string, error)

	ReadWorkingFile(ctx context.Context, path string, dst io.Writer) error
	WriteWorkingFile(ctx context.Context, path string, src io.Reader) error
	StagePath(ctx context.Context, path string) error
	CreateCommit(ctx context.Context, message string, id Identity) (*Commit, error)

	Merge(ctx context.Context, target plumbing.Hash, opts MergeOptions) (*MergeResult, error)
	MergeInProgress(ctx context.Context) (bool, error)
	ClearMergeState(ctx context.Context) error
	HardReset(ctx context.Context, commit plumbing.Hash, paths ...string) error

	DirtyPaths(ctx context.Context) ([]string, error)
	IsClean(ctx context.Context) (bool, error)

	BranchExists(ctx context.Context, name string) (bool, error)
	CreateBranch(ctx context.Context, name string, start plumbing.Hash) error
	Checkout(ctx context.Context, name string) error
	DeleteBranch(ctx context.Context, name string) error
	FastForward(ctx context.Context, target plumbing.Hash) error

	Fetch(ctx context.Context, remote string, setter TransportSetter) error
	Push(ctx context.Context, remote, branch string, setter TransportSetter) error
}

// MergeOptions controls merge commits and conflict markers.
type MergeOptions struct {
	Message     string
	Author      Identity
	OursLabel   string
	TheirsLabel string
}

func (o MergeOptions) withDefaults(target plumbing.Hash) MergeOptions {
	if o.Message == "" {
		o.Message = "Merge commit " + target.String()
	}
	if o.OursLabel == "" {
		o.OursLabel = "ours"
	}
	if o.TheirsLabel == "" {
		o.TheirsLabel = target.String()[:7]
	}
	return o
}
