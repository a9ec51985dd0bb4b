package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/4thel00z/gitsync/internal"
	"github.com/go-git/go-git/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd("test")
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// setupCLIRepo initializes a repository through the CLI.
func setupCLIRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	_, err := runCLI(t, "init", dir)
	require.NoError(t, err)
	return dir
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "edited")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestInitCmd(t *testing.T) {
	dir := setupCLIRepo(t)

	if _, err := os.Stat(filepath.Join(dir, ".git")); err != nil {
		t.Errorf(".git not created: %v", err)
	}
	if _, err := os.Stat(internal.RepoConfigPath(dir)); err != nil {
		t.Errorf("repository config not written: %v", err)
	}

	if _, err := runCLI(t, "init", dir); err == nil {
		t.Error("expected error for already initialized")
	}
}

func TestStatusCmd(t *testing.T) {
	dir := setupCLIRepo(t)

	out, err := runCLI(t, "--repo", dir, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "On branch main")
	assert.Contains(t, out, "Working tree clean")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "scratch.txt"), []byte("wip"), 0644))
	out, err = runCLI(t, "--repo", filepath.Join(dir), "--json", "status")
	require.NoError(t, err)

	var st struct {
		Branch     string   `json:"branch"`
		Clean      bool     `json:"clean"`
		DirtyPaths []string `json:"dirty_paths"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.Equal(t, "main", st.Branch)
	assert.False(t, st.Clean)
	assert.Equal(t, []string{"scratch.txt"}, st.DirtyPaths)
}

func TestUpdateWorkflow(t *testing.T) {
	dir := setupCLIRepo(t)
	base := "one\ntwo\nthree\nfour\nfive\n"

	out, err := runCLI(t, "--repo", dir, "update", writeFile(t, base), "notes.txt")
	require.NoError(t, err)
	assert.Contains(t, out, "Applied notes.txt at ")

	out, err = runCLI(t, "--repo", dir, "id", "notes.txt")
	require.NoError(t, err)
	expect := strings.TrimSpace(out)
	assert.Equal(t, internal.ContentIDOf([]byte(base)).String(), expect)

	out, err = runCLI(t, "--repo", dir, "tip")
	require.NoError(t, err)
	cited := strings.TrimSpace(out)

	// a concurrent edit moves the tip
	_, err = runCLI(t, "--repo", dir, "update", "--expect", expect, writeFile(t, "one\ntwo\nthree\nfour\nFIVE\n"), "notes.txt")
	require.NoError(t, err)

	out, err = runCLI(t, "--repo", dir, "update", "--direct", "--expect", expect, writeFile(t, "ONE\ntwo\nthree\nfour\nfive\n"), "notes.txt")
	require.NoError(t, err)
	assert.Contains(t, out, "Not applied")

	out, err = runCLI(t, "--repo", dir, "update", "--expect", expect, "--cited", cited, writeFile(t, "ONE\ntwo\nthree\nfour\nfive\n"), "notes.txt")
	require.NoError(t, err)
	assert.Contains(t, out, "Applied notes.txt")

	out, err = runCLI(t, "--repo", dir, "cat", "notes.txt", "-")
	require.NoError(t, err)
	assert.Equal(t, "ONE\ntwo\nthree\nfour\nFIVE\n", out)

	out, err = runCLI(t, "--repo", dir, "diff", "notes.txt", "--from", cited)
	require.NoError(t, err)
	assert.Contains(t, out, "-one\n+ONE\n")
	assert.Contains(t, out, "-five\n+FIVE\n")
	assert.Contains(t, out, "@@ -1,5 +1,5 @@\n")

	out, err = runCLI(t, "--repo", dir, "diff", "notes.txt", "--from", cited, "--stat")
	require.NoError(t, err)
	assert.Equal(t, " notes.txt | 4 ++--\n", out)

	out, err = runCLI(t, "--repo", dir, "log", "--oneline")
	require.NoError(t, err)
	assert.Contains(t, out, "init: initialize repository")
	assert.Contains(t, out, "Merge commit")
}

func TestUpdateConflictLeavesTipAlone(t *testing.T) {
	dir := setupCLIRepo(t)

	_, err := runCLI(t, "--repo", dir, "update", writeFile(t, "a\n"), "notes.txt")
	require.NoError(t, err)
	expect := internal.ContentIDOf([]byte("a\n")).String()
	tip, err := runCLI(t, "--repo", dir, "tip")
	require.NoError(t, err)

	_, err = runCLI(t, "--repo", dir, "update", "--expect", expect, writeFile(t, "b\n"), "notes.txt")
	require.NoError(t, err)
	after, err := runCLI(t, "--repo", dir, "tip")
	require.NoError(t, err)

	out, err := runCLI(t, "--repo", dir, "update", "--expect", expect, "--cited", strings.TrimSpace(tip), writeFile(t, "c\n"), "notes.txt")
	require.NoError(t, err)
	assert.Contains(t, out, "conflicts with newer changes")

	now, err := runCLI(t, "--repo", dir, "tip")
	require.NoError(t, err)
	assert.Equal(t, after, now)
}

func TestCommandErrors(t *testing.T) {
	dir := setupCLIRepo(t)

	_, err := runCLI(t, "--repo", dir, "update", "--expect", "nope", writeFile(t, "x"), "notes.txt")
	assert.Error(t, err)

	_, err = runCLI(t, "--repo", dir, "id", "missing.txt")
	assert.ErrorIs(t, err, internal.ErrPathNotFound)

	_, err = runCLI(t, "--repo", dir, "cat", "notes.txt", "-", "--cited", "does-not-exist")
	assert.ErrorIs(t, err, internal.ErrReferenceNotFound)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "scratch.txt"), []byte("wip"), 0644))
	_, err = runCLI(t, "--repo", dir, "update", writeFile(t, "x"), "notes.txt")
	assert.ErrorIs(t, err, internal.ErrDirtyWorkingTree)

	_, err = runCLI(t, "--repo", t.TempDir(), "status")
	assert.True(t, errors.Is(err, internal.ErrReferenceNotFound))
}

func TestPublishAndSync(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("file remotes need git on PATH")
	}
	remote := filepath.Join(t.TempDir(), "remote.git")
	_, err := git.PlainInit(remote, true)
	require.NoError(t, err)

	cfgPath := filepath.Join(t.TempDir(), "gitsync.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("transport:\n  auth: none\n"), 0644))

	first := t.TempDir()
	_, err = runCLI(t, "--config", cfgPath, "init", first, "--remote-url", remote)
	require.NoError(t, err)
	_, err = runCLI(t, "--repo", first, "update", writeFile(t, "shared\n"), "notes.txt")
	require.NoError(t, err)

	out, err := runCLI(t, "--repo", first, "--config", cfgPath, "publish")
	require.NoError(t, err)
	assert.Contains(t, out, "Published to origin")

	second := t.TempDir()
	_, err = runCLI(t, "--config", cfgPath, "init", second, "--remote-url", remote)
	require.NoError(t, err)

	// both repositories start from unrelated root commits, so the first sync
	// merges the histories
	out, err = runCLI(t, "--repo", second, "--config", cfgPath, "sync")
	require.NoError(t, err)
	assert.Contains(t, out, "Synced with origin")
	data, err := os.ReadFile(filepath.Join(second, "notes.txt"))
	require.NoError(t, err)
	assert.Equal(t, "shared\n", string(data))

	out, err = runCLI(t, "--repo", second, "--quiet", "--config", cfgPath, "publish")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestHookCmd(t *testing.T) {
	dir := setupCLIRepo(t)

	out, err := runCLI(t, "--repo", dir, "hook", "install")
	require.NoError(t, err)
	assert.Contains(t, out, "Installed post-commit hook")

	content, err := os.ReadFile(filepath.Join(dir, ".git", "hooks", internal.PostCommitHook))
	require.NoError(t, err)
	assert.True(t, internal.IsManagedHook(string(content)))

	_, err = runCLI(t, "--repo", dir, "hook", "uninstall")
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, ".git", "hooks", internal.PostCommitHook))
	assert.True(t, os.IsNotExist(err))
}
