package internal

import "context"

// StatusReport summarizes the repository for humans and for callers telling
// an aborted conflict (clean) from a left one (dirty, merge in progress).
type StatusReport struct {
	Branch          string
	Tip             *Commit
	Clean           bool
	DirtyPaths      []string
	MergeInProgress bool
}

func (c *Coordinator) Status(ctx context.Context) (*StatusReport, error) {
	branch, err := c.store.CurrentBranch(ctx)
	if err != nil {
		return nil, err
	}
	tip, err := c.store.Head(ctx)
	if err != nil {
		return nil, err
	}
	paths, err := c.store.DirtyPaths(ctx)
	if err != nil {
		return nil, err
	}
	inMerge, err := c.store.MergeInProgress(ctx)
	if err != nil {
		return nil, err
	}
	return &StatusReport{
		Branch:          branch,
		Tip:             tip,
		Clean:           len(paths) == 0 && !inMerge,
		DirtyPaths:      paths,
		MergeInProgress: inMerge,
	}, nil
}
