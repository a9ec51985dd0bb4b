package internal

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// ContentID identifies the content of a file at some commit. It is the blob
// hash, so equal ids imply identical bytes. The zero ContentID stands for
// "no such file".
type ContentID plumbing.Hash

// ZeroContentID is the id of a path that does not exist.
var ZeroContentID ContentID

// ContentIDOf computes the id a file with the given bytes would have.
func ContentIDOf(data []byte) ContentID {
	return ContentID(plumbing.ComputeHash(plumbing.BlobObject, data))
}

// ParseContentID parses a full hex blob id.
func ParseContentID(s string) (ContentID, error) {
	s = strings.TrimSpace(s)
	if !plumbing.IsHash(s) {
		return ZeroContentID, fmt.Errorf("invalid content id %q", s)
	}
	return ContentID(plumbing.NewHash(s)), nil
}

func (id ContentID) IsZero() bool {
	return plumbing.Hash(id).IsZero()
}

func (id ContentID) String() string {
	return plumbing.Hash(id).String()
}

// Commit is an immutable snapshot in the commit graph.
type Commit struct {
	Hash      plumbing.Hash
	Tree      plumbing.Hash
	Parents   []plumbing.Hash
	Message   string
	Author    Identity
	Committer Identity
	Timestamp time.Time
}

func (c *Commit) Short() string {
	return c.Hash.String()[:7]
}

// Branch is a named, mutable pointer to a commit.
type Branch struct {
	Name string
	Head plumbing.Hash
}

// Identity is the name/email pair recorded on commits.
type Identity struct {
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
}

func (i Identity) signature() *object.Signature {
	return &object.Signature{
		Name:  i.Name,
		Email: i.Email,
		When:  time.Now(),
	}
}

func toCommit(c *object.Commit) *Commit {
	return &Commit{
		Hash:      c.Hash,
		Tree:      c.TreeHash,
		Parents:   append([]plumbing.Hash(nil), c.ParentHashes...),
		Message:   strings.TrimSpace(c.Message),
		Author:    Identity{Name: c.Author.Name, Email: c.Author.Email},
		Committer: Identity{Name: c.Committer.Name, Email: c.Committer.Email},
		Timestamp: c.Author.When,
	}
}

// MergeOutcome classifies the result of merging a commit into the current
// branch.
type MergeOutcome int

const (
	MergeFailed MergeOutcome = iota
	MergeUpToDate
	MergeFastForward
	MergeClean
	MergeConflicting
)

func (o MergeOutcome) String() string {
	switch o {
	case MergeUpToDate:
		return "up-to-date"
	case MergeFastForward:
		return "merged-as-fast-forward"
	case MergeClean:
		return "merged-cleanly"
	case MergeConflicting:
		return "conflicting"
	default:
		return "failed"
	}
}

// Applied reports whether the merge left the branch containing the target.
func (o MergeOutcome) Applied() bool {
	return o == MergeUpToDate || o == MergeFastForward || o == MergeClean
}

// ConflictKind names the way two sides of a merge disagree about a path.
type ConflictKind string

const (
	ConflictModifyModify ConflictKind = "modify-modify"
	ConflictAddAdd       ConflictKind = "add-add"
	ConflictModifyDelete ConflictKind = "modify-delete" // we modified, they deleted
	ConflictDeleteModify ConflictKind = "delete-modify" // we deleted, they modified
	ConflictBinary       ConflictKind = "binary"
)

// Conflict is one unresolved path of a conflicting merge.
type Conflict struct {
	Path  string
	Kind  ConflictKind
	Hunks int
}

// MergeResult is what a Store reports after a merge attempt.
type MergeResult struct {
	Outcome   MergeOutcome
	Head      plumbing.Hash // tip after the merge
	Target    plumbing.Hash
	Conflicts []Conflict
	Aborted   bool // conflicts were rolled back instead of left in place
}
