package v1

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-git/go-git/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.Author = Identity{Name: "Client Test", Email: "client@example.com"}
	return cfg
}

func setupClientTest(t *testing.T) *Client {
	t.Helper()
	tmpDir := t.TempDir()

	client, err := Init(tmpDir, WithConfig(testConfig()))
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	return client
}

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "edited")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestClientInit(t *testing.T) {
	client := setupClientTest(t)
	defer client.Close()

	tip, err := client.Tip(context.Background())
	if err != nil {
		t.Fatalf("tip: %v", err)
	}
	if tip.Author != "Client Test" {
		t.Errorf("author = %q, want %q", tip.Author, "Client Test")
	}
	if len(tip.Parents) != 0 {
		t.Errorf("expected a root commit, got parents %v", tip.Parents)
	}
}

func TestClientOpenFromSubdirectory(t *testing.T) {
	client := setupClientTest(t)
	sub := filepath.Join(client.Root(), "a", "b")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	opened, err := Open(sub, WithConfig(testConfig()))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if opened.Root() != client.Root() {
		t.Errorf("root = %q, want %q", opened.Root(), client.Root())
	}

	_, err = Open(t.TempDir(), WithConfig(testConfig()))
	if !errors.Is(err, ErrReferenceNotFound) {
		t.Errorf("expected ErrReferenceNotFound outside a repository, got %v", err)
	}
}

func TestClientUpdateAndCopy(t *testing.T) {
	client := setupClientTest(t)
	defer client.Close()
	ctx := context.Background()

	ok, err := client.Update(ctx, writeTemp(t, "hello\n"), "notes.txt", "")
	if err != nil || !ok {
		t.Fatalf("create: ok=%v err=%v", ok, err)
	}

	id, err := client.ContentID(ctx, "notes.txt", "")
	if err != nil {
		t.Fatalf("content id: %v", err)
	}

	ok, err = client.Update(ctx, writeTemp(t, "hello world\n"), "notes.txt", id)
	if err != nil || !ok {
		t.Fatalf("update: ok=%v err=%v", ok, err)
	}

	// the old id is stale now
	ok, err = client.Update(ctx, writeTemp(t, "lost\n"), "notes.txt", id)
	if err != nil {
		t.Fatalf("stale update: %v", err)
	}
	if ok {
		t.Error("expected stale update to be refused")
	}

	dest := filepath.Join(t.TempDir(), "copy.txt")
	if err := client.Copy(ctx, "notes.txt", dest); err != nil {
		t.Fatalf("copy: %v", err)
	}
	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read copy: %v", err)
	}
	if string(got) != "hello world\n" {
		t.Errorf("copy = %q, want %q", got, "hello world\n")
	}
}

func TestClientReconcile(t *testing.T) {
	client := setupClientTest(t)
	defer client.Close()
	ctx := context.Background()

	base := "one\ntwo\nthree\nfour\nfive\n"
	if ok, err := client.Update(ctx, writeTemp(t, base), "notes.txt", ""); err != nil || !ok {
		t.Fatalf("create: ok=%v err=%v", ok, err)
	}
	cited, err := client.Tip(ctx)
	if err != nil {
		t.Fatalf("tip: %v", err)
	}
	expected, err := client.ContentID(ctx, "notes.txt", cited.Hash)
	if err != nil {
		t.Fatalf("content id: %v", err)
	}

	if ok, err := client.Update(ctx, writeTemp(t, "one\ntwo\nthree\nfour\nFIVE\n"), "notes.txt", expected); err != nil || !ok {
		t.Fatalf("concurrent edit: ok=%v err=%v", ok, err)
	}

	ok, err := client.Reconcile(ctx, FileUpdate{
		Source:   writeTemp(t, "ONE\ntwo\nthree\nfour\nfive\n"),
		Path:     "notes.txt",
		Expected: expected,
		Cited:    cited.Hash,
	})
	if err != nil || !ok {
		t.Fatalf("reconcile: ok=%v err=%v", ok, err)
	}

	got, err := os.ReadFile(filepath.Join(client.Root(), "notes.txt"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != "ONE\ntwo\nthree\nfour\nFIVE\n" {
		t.Errorf("merged = %q", got)
	}

	if err := client.SafeCopy(ctx, "notes.txt", filepath.Join(t.TempDir(), "c"), cited.Hash); err != nil {
		t.Errorf("safe copy of a merged commit: %v", err)
	}

	diff, err := client.Diff(ctx, "notes.txt", cited.Hash, "")
	if err != nil {
		t.Fatalf("diff: %v", err)
	}
	if !strings.Contains(diff, "-one\n+ONE\n") {
		t.Errorf("unexpected diff:\n%s", diff)
	}

	st, err := client.Status(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !st.Clean || st.Branch != "main" {
		t.Errorf("unexpected status %+v", st)
	}
}

func TestClientUpdateDirtyTree(t *testing.T) {
	client := setupClientTest(t)
	defer client.Close()

	if err := os.WriteFile(filepath.Join(client.Root(), "scratch.txt"), []byte("wip"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, err := client.Update(context.Background(), writeTemp(t, "x"), "notes.txt", "")
	if !errors.Is(err, ErrDirtyWorkingTree) {
		t.Errorf("expected ErrDirtyWorkingTree, got %v", err)
	}
}

func TestClientInvalidExpected(t *testing.T) {
	client := setupClientTest(t)
	defer client.Close()

	_, err := client.Update(context.Background(), writeTemp(t, "x"), "notes.txt", "not-a-hash")
	if err == nil {
		t.Error("expected error for malformed content id")
	}
}

func TestClientPublishAndSync(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("file remotes need git on PATH")
	}
	ctx := context.Background()
	remote := filepath.Join(t.TempDir(), "remote.git")
	if _, err := git.PlainInit(remote, true); err != nil {
		t.Fatalf("init remote: %v", err)
	}

	cfg := testConfig()

	var calls int
	counting := func(o *TransportOptions) error {
		calls++
		return cfg.TransportSetter()(o)
	}

	first, err := Init(t.TempDir(), WithConfig(cfg), WithTransportSetter(counting))
	if err != nil {
		t.Fatalf("init first: %v", err)
	}
	if err := first.AddRemote(remote); err != nil {
		t.Fatalf("add remote: %v", err)
	}
	if ok, err := first.Update(ctx, writeTemp(t, "shared\n"), "notes.txt", ""); err != nil || !ok {
		t.Fatalf("update: ok=%v err=%v", ok, err)
	}

	ok, err := first.Publish(ctx)
	if err != nil || !ok {
		t.Fatalf("publish: ok=%v err=%v", ok, err)
	}
	if calls != 2 {
		t.Errorf("expected the setter to run for fetch and push, ran %d times", calls)
	}

	second, err := Init(t.TempDir(), WithConfig(cfg))
	if err != nil {
		t.Fatalf("init second: %v", err)
	}
	if err := second.AddRemote(remote); err != nil {
		t.Fatalf("add remote: %v", err)
	}
	ok, err = second.Sync(ctx, false)
	if err != nil || !ok {
		t.Fatalf("sync: ok=%v err=%v", ok, err)
	}

	got, err := os.ReadFile(filepath.Join(second.Root(), "notes.txt"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != "shared\n" {
		t.Errorf("synced content = %q", got)
	}
}

func TestClientLogging(t *testing.T) {
	ctx := context.Background()

	var global bytes.Buffer
	saved := log.Logger
	log.Logger = zerolog.New(&global)
	defer func() { log.Logger = saved }()

	quiet, err := Init(t.TempDir(), WithConfig(testConfig()))
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if ok, err := quiet.Update(ctx, writeTemp(t, "a\n"), "notes.txt", ""); err != nil || !ok {
		t.Fatalf("update: ok=%v err=%v", ok, err)
	}
	if global.Len() != 0 {
		t.Errorf("client without a logger wrote to the global logger:\n%s", global.String())
	}

	var own bytes.Buffer
	loud, err := Init(t.TempDir(), WithConfig(testConfig()), WithLogger(zerolog.New(&own)))
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if ok, err := loud.Update(ctx, writeTemp(t, "a\n"), "notes.txt", ""); err != nil || !ok {
		t.Fatalf("update: ok=%v err=%v", ok, err)
	}
	if !strings.Contains(own.String(), `"component":"committer"`) {
		t.Errorf("committer did not log through the client logger:\n%s", own.String())
	}
	if global.Len() != 0 {
		t.Errorf("client logger leaked to the global logger:\n%s", global.String())
	}
}
