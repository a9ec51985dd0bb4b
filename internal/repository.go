package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/cache"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/storage/filesystem"
)

const (
	DefaultBranch = "main"
	DefaultRemote = "origin"

	mergeHeadFile = "MERGE_HEAD"
	mergeMsgFile  = "MERGE_MSG"
)

var _ Store = (*GitRepository)(nil)

// GitRepository is the go-git backed Store.
type GitRepository struct {
	repo     *git.Repository
	worktree *git.Worktree
	rootPath string
	dotGit   billy.Filesystem
}

func openStorage(root string) (billy.Filesystem, *filesystem.Storage, billy.Filesystem) {
	dotGit := osfs.New(filepath.Join(root, git.GitDirName))
	storage := filesystem.NewStorage(dotGit, cache.NewObjectLRUDefault())
	return dotGit, storage, osfs.New(root)
}

// OpenRepository opens the repository whose working tree is root.
func OpenRepository(root string) (*GitRepository, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve path: %w", err)
	}
	if _, err := os.Stat(filepath.Join(root, git.GitDirName)); os.IsNotExist(err) {
		return nil, fmt.Errorf("repository not initialized: %s", root)
	}

	dotGit, storage, wt := openStorage(root)
	repo, err := git.Open(storage, wt)
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("get worktree: %w", err)
	}

	return &GitRepository{
		repo:     repo,
		worktree: worktree,
		rootPath: root,
		dotGit:   dotGit,
	}, nil
}

// InitRepository creates a repository at root whose branch starts at an empty
// root commit, so there is always a tip to reconcile against.
func InitRepository(root, branch string, id Identity) (*GitRepository, error) {
	if branch == "" {
		branch = DefaultBranch
	}
	if err := os.MkdirAll(filepath.Join(root, git.GitDirName), 0755); err != nil {
		return nil, fmt.Errorf("create git directory: %w", err)
	}

	_, storage, wt := openStorage(root)
	repo, err := git.InitWithOptions(storage, wt, git.InitOptions{
		DefaultBranch: plumbing.NewBranchReferenceName(branch),
	})
	if err != nil {
		return nil, fmt.Errorf("init repository: %w", err)
	}

	cfg, err := repo.Config()
	if err != nil {
		return nil, fmt.Errorf("get config: %w", err)
	}
	cfg.Init.DefaultBranch = branch
	if err := repo.SetConfig(cfg); err != nil {
		return nil, fmt.Errorf("set config: %w", err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("get worktree: %w", err)
	}
	sig := id.signature()
	if _, err := worktree.Commit("init: initialize repository", &git.CommitOptions{
		Author:            sig,
		Committer:         sig,
		AllowEmptyCommits: true,
	}); err != nil {
		return nil, fmt.Errorf("initial commit: %w", err)
	}

	return OpenRepository(root)
}

// AddRemote registers a remote by name.
func (r *GitRepository) AddRemote(name string, urls ...string) error {
	if _, err := r.repo.CreateRemote(&config.RemoteConfig{Name: name, URLs: urls}); err != nil {
		return fmt.Errorf("create remote: %w", err)
	}
	return nil
}

func (r *GitRepository) Root() string {
	return r.rootPath
}

// GitDir is the path of the repository's git directory.
func (r *GitRepository) GitDir() string {
	return filepath.Join(r.rootPath, git.GitDirName)
}

// commit graph

func (r *GitRepository) Head(ctx context.Context) (*Commit, error) {
	head, err := r.repo.Head()
	if err != nil {
		return nil, storeFailure("resolve HEAD", err)
	}
	return r.commitByHash(head.Hash())
}

func (r *GitRepository) CurrentBranch(ctx context.Context) (string, error) {
	head, err := r.repo.Head()
	if err != nil {
		return "", storeFailure("resolve HEAD", err)
	}
	if !head.Name().IsBranch() {
		return "", newError(CodeInvariantViolation, "current branch", "HEAD is detached at %s", head.Hash())
	}
	return head.Name().Short(), nil
}

func (r *GitRepository) commitByHash(h plumbing.Hash) (*Commit, error) {
	c, err := r.repo.CommitObject(h)
	if errors.Is(err, plumbing.ErrObjectNotFound) {
		return nil, newError(CodeReferenceNotFound, "resolve commit", "no commit %s", h)
	}
	if err != nil {
		return nil, storeFailure("resolve commit", err)
	}
	return toCommit(c), nil
}

// ResolveRef accepts full reference names, short branch or remote-tracking
// names, and commit ids.
func (r *GitRepository) ResolveRef(ctx context.Context, name string) (*Commit, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, newError(CodeReferenceNotFound, "resolve", "empty reference")
	}

	if ref, err := r.repo.Reference(plumbing.ReferenceName(name), true); err == nil {
		return r.commitByHash(ref.Hash())
	}

	h, err := r.repo.ResolveRevision(plumbing.Revision(name))
	if err != nil {
		return nil, wrapError(CodeReferenceNotFound, "resolve "+name, err)
	}
	return r.commitByHash(*h)
}

// ReadTreeEntry returns the blob id of path in commit's tree.
func (r *GitRepository) ReadTreeEntry(ctx context.Context, path string, commit plumbing.Hash) (ContentID, error) {
	c, err := r.repo.CommitObject(commit)
	if err != nil {
		if errors.Is(err, plumbing.ErrObjectNotFound) {
			return ZeroContentID, newError(CodeReferenceNotFound, "read tree entry", "no commit %s", commit)
		}
		return ZeroContentID, storeFailure("read tree entry", err)
	}
	tree, err := c.Tree()
	if err != nil {
		return ZeroContentID, storeFailure("read tree", err)
	}

	entry, err := tree.FindEntry(cleanPath(path))
	if errors.Is(err, object.ErrEntryNotFound) || errors.Is(err, object.ErrDirectoryNotFound) {
		return ZeroContentID, newError(CodePathNotFound, "read tree entry", "%s not found in %s", path, commit).
			WithDetail("path", path).WithDetail("commit", commit.String())
	}
	if err != nil {
		return ZeroContentID, storeFailure("read tree entry", err)
	}
	if !entry.Mode.IsFile() {
		return ZeroContentID, newError(CodePathNotFound, "read tree entry", "%s is not a file in %s", path, commit)
	}
	return ContentID(entry.Hash), nil
}

// ReadBlob returns the content of path at commit.
func (r *GitRepository) ReadBlob(ctx context.Context, path string, commit plumbing.Hash) ([]byte, error) {
	id, err := r.ReadTreeEntry(ctx, path, commit)
	if err != nil {
		return nil, err
	}
	return r.blobContent(plumbing.Hash(id))
}

func (r *GitRepository) blobContent(h plumbing.Hash) ([]byte, error) {
	blob, err := r.repo.BlobObject(h)
	if err != nil {
		return nil, storeFailure("read blob", err)
	}
	rd, err := blob.Reader()
	if err != nil {
		return nil, storeFailure("read blob", err)
	}
	defer rd.Close()
	data, err := io.ReadAll(rd)
	if err != nil {
		return nil, storeFailure("read blob", err)
	}
	return data, nil
}

func (r *GitRepository) IsAncestor(ctx context.Context, candidate, descendant plumbing.Hash) (bool, error) {
	if candidate == descendant {
		return true, nil
	}
	c, err := r.repo.CommitObject(candidate)
	if err != nil {
		return false, storeFailure("ancestry", err)
	}
	d, err := r.repo.CommitObject(descendant)
	if err != nil {
		return false, storeFailure("ancestry", err)
	}
	ok, err := c.IsAncestor(d)
	if err != nil {
		return false, storeFailure("ancestry", err)
	}
	return ok, nil
}

// working tree files

func (r *GitRepository) ReadWorkingFile(ctx context.Context, path string, dst io.Writer) error {
	f, err := r.worktree.Filesystem.Open(cleanPath(path))
	if os.IsNotExist(err) {
		return newError(CodePathNotFound, "read working file", "%s does not exist", path)
	}
	if err != nil {
		return wrapError(CodeIOFailure, "read working file", err)
	}
	defer f.Close()
	if _, err := io.Copy(dst, f); err != nil {
		return wrapError(CodeIOFailure, "read working file", err)
	}
	return nil
}

func (r *GitRepository) WriteWorkingFile(ctx context.Context, path string, src io.Reader) error {
	data, err := io.ReadAll(src)
	if err != nil {
		return wrapError(CodeIOFailure, "write working file", err)
	}
	if err := util.WriteFile(r.worktree.Filesystem, cleanPath(path), data, 0644); err != nil {
		return wrapError(CodeIOFailure, "write working file", err)
	}
	return nil
}

// index and commits

func (r *GitRepository) StagePath(ctx context.Context, path string) error {
	if _, err := r.worktree.Add(cleanPath(path)); err != nil {
		return storeFailure("stage "+path, err)
	}
	return nil
}

func (r *GitRepository) CreateCommit(ctx context.Context, message string, id Identity) (*Commit, error) {
	sig := id.signature()
	hash, err := r.worktree.Commit(message, &git.CommitOptions{
		Author:    sig,
		Committer: sig,
	})
	if err != nil {
		return nil, wrapError(CodeCommitFailure, "commit", err)
	}
	return r.commitByHash(hash)
}

// status

func (r *GitRepository) DirtyPaths(ctx context.Context) ([]string, error) {
	status, err := r.worktree.Status()
	if err != nil {
		return nil, storeFailure("status", err)
	}
	var paths []string
	for path, s := range status {
		if s.Staging == git.Unmodified && s.Worktree == git.Unmodified {
			continue
		}
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths, nil
}

func (r *GitRepository) IsClean(ctx context.Context) (bool, error) {
	inMerge, err := r.MergeInProgress(ctx)
	if err != nil {
		return false, err
	}
	if inMerge {
		return false, nil
	}
	paths, err := r.DirtyPaths(ctx)
	if err != nil {
		return false, err
	}
	return len(paths) == 0, nil
}

// merge state

func (r *GitRepository) MergeInProgress(ctx context.Context) (bool, error) {
	_, err := r.dotGit.Stat(mergeHeadFile)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, storeFailure("merge state", err)
	}
	return true, nil
}

func (r *GitRepository) writeMergeState(target plumbing.Hash, msg string) error {
	if err := util.WriteFile(r.dotGit, mergeHeadFile, []byte(target.String()+"\n"), 0644); err != nil {
		return storeFailure("write merge state", err)
	}
	if err := util.WriteFile(r.dotGit, mergeMsgFile, []byte(msg+"\n"), 0644); err != nil {
		return storeFailure("write merge state", err)
	}
	return nil
}

// ClearMergeState drops the pending merge parents and message.
func (r *GitRepository) ClearMergeState(ctx context.Context) error {
	for _, name := range []string{mergeHeadFile, mergeMsgFile} {
		if err := r.dotGit.Remove(name); err != nil && !os.IsNotExist(err) {
			return storeFailure("clear merge state", err)
		}
	}
	return nil
}

// HardReset moves the current branch to commit and overwrites the index and
// working tree. With paths only those paths are restored.
func (r *GitRepository) HardReset(ctx context.Context, commit plumbing.Hash, paths ...string) error {
	if err := r.worktree.Reset(&git.ResetOptions{
		Commit: commit,
		Mode:   git.HardReset,
		Files:  paths,
	}); err != nil {
		return storeFailure("hard reset", err)
	}
	return nil
}

// branches

func (r *GitRepository) BranchExists(ctx context.Context, name string) (bool, error) {
	_, err := r.repo.Reference(plumbing.NewBranchReferenceName(name), false)
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return false, nil
	}
	if err != nil {
		return false, storeFailure("branch lookup", err)
	}
	return true, nil
}

func (r *GitRepository) CreateBranch(ctx context.Context, name string, start plumbing.Hash) error {
	refName := plumbing.NewBranchReferenceName(name)
	if err := refName.Validate(); err != nil {
		return storeFailure("create branch "+name, err)
	}
	exists, err := r.BranchExists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return newError(CodeInvariantViolation, "create branch", "branch %s already exists", name)
	}
	if err := r.repo.Storer.SetReference(plumbing.NewHashReference(refName, start)); err != nil {
		return storeFailure("create branch "+name, err)
	}
	return nil
}

func (r *GitRepository) Checkout(ctx context.Context, name string) error {
	if err := r.worktree.Checkout(&git.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(name),
	}); err != nil {
		return storeFailure("checkout "+name, err)
	}
	return nil
}

func (r *GitRepository) DeleteBranch(ctx context.Context, name string) error {
	current, err := r.CurrentBranch(ctx)
	if err == nil && current == name {
		return newError(CodeInvariantViolation, "delete branch", "cannot delete current branch %s", name)
	}
	if err := r.repo.Storer.RemoveReference(plumbing.NewBranchReferenceName(name)); err != nil {
		return storeFailure("delete branch "+name, err)
	}
	return nil
}

func (r *GitRepository) ListBranches(ctx context.Context) ([]*Branch, error) {
	refs, err := r.repo.Branches()
	if err != nil {
		return nil, storeFailure("list branches", err)
	}

	var branches []*Branch
	err = refs.ForEach(func(ref *plumbing.Reference) error {
		branches = append(branches, &Branch{
			Name: ref.Name().Short(),
			Head: ref.Hash(),
		})
		return nil
	})
	if err != nil {
		return nil, storeFailure("list branches", err)
	}

	sort.Slice(branches, func(i, j int) bool {
		return branches[i].Name < branches[j].Name
	})
	return branches, nil
}

// FastForward advances the current branch to target, updating the index and
// working tree. It never creates a commit.
func (r *GitRepository) FastForward(ctx context.Context, target plumbing.Hash) error {
	if head, err := r.repo.Head(); err == nil && head.Hash() == target {
		return nil
	}
	ref := plumbing.NewHashReference(plumbing.ReferenceName("refs/sync/fast-forward"), target)
	err := r.repo.Merge(*ref, git.MergeOptions{Strategy: git.FastForwardMerge})
	if errors.Is(err, git.ErrFastForwardMergeNotPossible) {
		return ErrFastForwardImpossible
	}
	if err != nil {
		return storeFailure("fast-forward", err)
	}
	return r.syncWorktree(target)
}

// syncWorktree brings index and files in line with a commit the branch
// already points to.
func (r *GitRepository) syncWorktree(commit plumbing.Hash) error {
	if err := r.worktree.Reset(&git.ResetOptions{
		Commit: commit,
		Mode:   git.MergeReset,
	}); err != nil {
		return storeFailure("update worktree", err)
	}
	return nil
}

// remotes

// TrackingRef is the remote-tracking reference for branch on remote.
func TrackingRef(remote, branch string) plumbing.ReferenceName {
	return plumbing.NewRemoteReferenceName(remote, branch)
}

func (r *GitRepository) Fetch(ctx context.Context, remote string, setter TransportSetter) error {
	topts, err := applySetter(setter)
	if err != nil {
		return err
	}
	err = r.repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName:      remote,
		Auth:            topts.Auth,
		InsecureSkipTLS: topts.InsecureSkipTLS,
		CABundle:        topts.CABundle,
		ProxyOptions:    topts.ProxyOptions,
	})
	if errors.Is(err, git.NoErrAlreadyUpToDate) || errors.Is(err, transport.ErrEmptyRemoteRepository) {
		return nil
	}
	if err != nil {
		return wrapError(CodeTransportFailure, "fetch "+remote, err)
	}
	return nil
}

func (r *GitRepository) Push(ctx context.Context, remote, branch string, setter TransportSetter) error {
	topts, err := applySetter(setter)
	if err != nil {
		return err
	}
	ref := plumbing.NewBranchReferenceName(branch)
	err = r.repo.PushContext(ctx, &git.PushOptions{
		RemoteName:      remote,
		RefSpecs:        []config.RefSpec{config.RefSpec(ref + ":" + ref)},
		Auth:            topts.Auth,
		InsecureSkipTLS: topts.InsecureSkipTLS,
		CABundle:        topts.CABundle,
		ProxyOptions:    topts.ProxyOptions,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return wrapError(CodeTransportFailure, "push "+remote, err)
	}
	return nil
}

// Log returns up to limit commits reachable from HEAD, newest first.
func (r *GitRepository) Log(ctx context.Context, limit int) ([]*Commit, error) {
	iter, err := r.repo.Log(&git.LogOptions{})
	if err != nil {
		return nil, storeFailure("log", err)
	}
	defer iter.Close()

	var commits []*Commit
	err = iter.ForEach(func(c *object.Commit) error {
		if limit > 0 && len(commits) >= limit {
			return io.EOF
		}
		commits = append(commits, toCommit(c))
		return nil
	})
	if err != nil && err != io.EOF {
		return nil, storeFailure("log", err)
	}
	return commits, nil
}

// TrackedFiles lists the file paths in commit's tree.
func (r *GitRepository) TrackedFiles(ctx context.Context, commit plumbing.Hash) ([]string, error) {
	entries, err := r.treeEntries(commit)
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(entries))
	for p := range entries {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths, nil
}

func cleanPath(p string) string {
	return strings.TrimPrefix(filepath.ToSlash(filepath.Clean(p)), "/")
}
