package internal

import (
	"context"
	"errors"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// requireGitTransport skips when git, which serves file:// remotes, is
// missing.
func requireGitTransport(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("file remotes need git on PATH")
	}
}

// setupRemote creates a bare remote and a first clone that has published
// notes.txt to it.
func setupRemote(t *testing.T) (string, *GitRepository) {
	t.Helper()
	requireGitTransport(t)
	ctx := context.Background()

	remote := filepath.Join(t.TempDir(), "remote.git")
	_, err := git.PlainInit(remote, true)
	require.NoError(t, err)

	first := setupGitRepo(t)
	require.NoError(t, first.AddRemote(DefaultRemote, remote))
	commitFile(t, first, "notes.txt", fiveLines)

	ok, err := newTestCoordinator(first).SyncAndPublish(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	return remote, first
}

func cloneRemote(t *testing.T, remote string) *GitRepository {
	t.Helper()
	dir := t.TempDir()
	_, err := git.PlainClone(dir, false, &git.CloneOptions{
		URL:           remote,
		ReferenceName: plumbing.NewBranchReferenceName(DefaultBranch),
	})
	require.NoError(t, err)
	repo, err := OpenRepository(dir)
	require.NoError(t, err)
	return repo
}

func TestPublishToEmptyRemote(t *testing.T) {
	remote, first := setupRemote(t)

	bare, err := git.PlainOpen(remote)
	require.NoError(t, err)
	ref, err := bare.Reference(plumbing.NewBranchReferenceName(DefaultBranch), true)
	require.NoError(t, err)
	assert.Equal(t, headOf(t, first).Hash, ref.Hash())
}

func TestSyncWithRemoteFastForward(t *testing.T) {
	remote, first := setupRemote(t)
	ctx := context.Background()
	second := cloneRemote(t, remote)

	commitFile(t, first, "notes.txt", "LINE1\nline2\nline3\nline4\nline5\n")
	ok, err := newTestCoordinator(first).SyncAndPublish(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = newTestCoordinator(second).SyncWithRemote(ctx, false)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, headOf(t, first).Hash, headOf(t, second).Hash)
	assert.Equal(t, "LINE1\nline2\nline3\nline4\nline5\n", readWorkFile(t, second, "notes.txt"))
}

func TestSyncWithRemoteMergesDivergence(t *testing.T) {
	remote, first := setupRemote(t)
	ctx := context.Background()
	second := cloneRemote(t, remote)

	commitFile(t, first, "notes.txt", "LINE1\nline2\nline3\nline4\nline5\n")
	ok, err := newTestCoordinator(first).SyncAndPublish(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	local := commitFile(t, second, "other.txt", "local\n")
	coord := newTestCoordinator(second)
	ok, err = coord.SyncAndPublish(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	tip := headOf(t, second)
	assert.Equal(t, []plumbing.Hash{local.Hash, headOf(t, first).Hash}, tip.Parents)
	assert.Equal(t, Identity{Name: "gitsync-bot", Email: "bot@example.com"}, tip.Author)

	ok, err = newTestCoordinator(first).SyncWithRemote(ctx, false)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, tip.Hash, headOf(t, first).Hash)
	assert.Equal(t, "local\n", readWorkFile(t, first, "other.txt"))
}

func TestSyncWithRemoteConflictPolicy(t *testing.T) {
	remote, first := setupRemote(t)
	ctx := context.Background()
	second := cloneRemote(t, remote)

	commitFile(t, first, "notes.txt", "remote\n")
	ok, err := newTestCoordinator(first).SyncAndPublish(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	local := commitFile(t, second, "notes.txt", "local\n")
	coord := newTestCoordinator(second)

	ok, err = coord.SyncWithRemote(ctx, false)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, local.Hash, headOf(t, second).Hash)
	assert.Equal(t, "local\n", readWorkFile(t, second, "notes.txt"))
	assertClean(t, second)

	ok, err = coord.SyncAndPublish(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = coord.SyncWithRemote(ctx, true)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Contains(t, readWorkFile(t, second, "notes.txt"), "<<<<<<< main\nlocal\n=======\nremote\n")

	_, err = coord.SyncWithRemote(ctx, false)
	assert.ErrorIs(t, err, ErrDirtyWorkingTree)
}

func TestSyncAndPublishSwallowsPushFailure(t *testing.T) {
	remote, first := setupRemote(t)
	ctx := context.Background()
	commitFile(t, first, "notes.txt", "unpublished\n")
	local := headOf(t, first)

	calls := 0
	failPush := func(o *TransportOptions) error {
		calls++
		if calls > 1 {
			return errors.New("network down")
		}
		return nil
	}
	coord := NewCoordinator(first, testConfig(), WithTransportSetter(failPush))

	ok, err := coord.SyncAndPublish(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 2, calls)
	assert.Equal(t, local.Hash, headOf(t, first).Hash)

	bare, err := git.PlainOpen(remote)
	require.NoError(t, err)
	ref, err := bare.Reference(plumbing.NewBranchReferenceName(DefaultBranch), true)
	require.NoError(t, err)
	assert.NotEqual(t, local.Hash, ref.Hash())
}

func TestSyncWithRemoteFetchFailure(t *testing.T) {
	repo := setupGitRepo(t)
	ctx := context.Background()
	requireGitTransport(t)
	require.NoError(t, repo.AddRemote(DefaultRemote, filepath.Join(t.TempDir(), "missing.git")))

	_, err := newTestCoordinator(repo).SyncWithRemote(ctx, false)
	assert.ErrorIs(t, err, ErrTransportFailure)
}

func TestSyncWithRemoteRequiresCleanTree(t *testing.T) {
	_, first := setupRemote(t)
	ctx := context.Background()
	before := headOf(t, first)
	writeWorkFile(t, first, "notes.txt", "wip\n")

	_, err := newTestCoordinator(first).SyncAndPublish(ctx)
	assert.ErrorIs(t, err, ErrDirtyWorkingTree)
	assert.Equal(t, before.Hash, headOf(t, first).Hash)
	assert.Equal(t, "wip\n", readWorkFile(t, first, "notes.txt"))
}
