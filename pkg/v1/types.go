package v1

import (
	"time"

	"github.com/4thel00z/gitsync/internal"
)

// Commit represents a commit of the synced repository.
type Commit struct {
	Hash      string    `json:"hash"`
	Parents   []string  `json:"parents,omitempty"`
	Message   string    `json:"message"`
	Author    string    `json:"author"`
	Email     string    `json:"email"`
	Timestamp time.Time `json:"timestamp"`
}

// Status summarizes the working tree.
type Status struct {
	Branch          string   `json:"branch"`
	Tip             Commit   `json:"tip"`
	Clean           bool     `json:"clean"`
	DirtyPaths      []string `json:"dirty_paths,omitempty"`
	MergeInProgress bool     `json:"merge_in_progress"`
}

// FileUpdate describes an edit made to a copy of a repository file.
type FileUpdate struct {
	// Source is the edited copy on disk.
	Source string
	// Path is the file's path inside the repository.
	Path string
	// Expected is the content id the edit was based on. Empty means the file
	// must not exist yet.
	Expected string
	// Cited is the commit the edit was based on. Empty means the current tip.
	Cited string
	// LeaveConflicts keeps a conflicting merge in the working tree instead
	// of aborting it.
	LeaveConflicts bool
}

// Error sentinels, usable with errors.Is.
var (
	ErrDirtyWorkingTree   = internal.ErrDirtyWorkingTree
	ErrRevisionMismatch   = internal.ErrRevisionMismatch
	ErrStoreFailure       = internal.ErrStoreFailure
	ErrTransportFailure   = internal.ErrTransportFailure
	ErrInvariantViolation = internal.ErrInvariantViolation
	ErrReferenceNotFound  = internal.ErrReferenceNotFound
	ErrPathNotFound       = internal.ErrPathNotFound
)

func fromCommit(c *internal.Commit) Commit {
	parents := make([]string, 0, len(c.Parents))
	for _, p := range c.Parents {
		parents = append(parents, p.String())
	}
	return Commit{
		Hash:      c.Hash.String(),
		Parents:   parents,
		Message:   c.Message,
		Author:    c.Author.Name,
		Email:     c.Author.Email,
		Timestamp: c.Timestamp,
	}
}
