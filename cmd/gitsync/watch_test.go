package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/4thel00z/gitsync/internal"
	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShouldIgnoreEvent(t *testing.T) {
	mirror, err := internal.NewMirror(t.TempDir(), nil)
	require.NoError(t, err)
	dir := mirror.Dir()

	tests := []struct {
		name  string
		event fsnotify.Event
		want  bool
	}{
		{
			name:  "write inside mirror",
			event: fsnotify.Event{Name: filepath.Join(dir, "notes.txt"), Op: fsnotify.Write},
			want:  false,
		},
		{
			name:  "create in subdirectory",
			event: fsnotify.Event{Name: filepath.Join(dir, "sub", "new.txt"), Op: fsnotify.Create},
			want:  false,
		},
		{
			name:  "chmod event ignored",
			event: fsnotify.Event{Name: filepath.Join(dir, "notes.txt"), Op: fsnotify.Chmod},
			want:  true,
		},
		{
			name:  "mirror state ignored",
			event: fsnotify.Event{Name: filepath.Join(dir, internal.MirrorStateFile), Op: fsnotify.Write},
			want:  true,
		},
		{
			name:  "editor swap file ignored",
			event: fsnotify.Event{Name: filepath.Join(dir, ".notes.txt.swp"), Op: fsnotify.Create},
			want:  true,
		},
		{
			name:  "outside mirror",
			event: fsnotify.Event{Name: filepath.Join(filepath.Dir(dir), "elsewhere.txt"), Op: fsnotify.Write},
			want:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := shouldIgnoreEvent(tt.event, mirror)
			if got != tt.want {
				t.Errorf("shouldIgnoreEvent() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFlushMirror(t *testing.T) {
	dir := setupCLIRepo(t)
	ctx := context.Background()
	_, err := runCLI(t, "--repo", dir, "update", writeFile(t, "one\ntwo\n"), "notes.txt")
	require.NoError(t, err)

	repo, err := internal.OpenRepository(dir)
	require.NoError(t, err)
	cfg := internal.DefaultConfig()
	coord := internal.NewCoordinator(repo, cfg)

	mirror, err := internal.NewMirror(t.TempDir(), coord)
	require.NoError(t, err)
	_, err = mirror.CheckoutAll(ctx)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, flushMirror(ctx, &out, mirror, coord, watchOptions{}))
	assert.Empty(t, out.String())

	require.NoError(t, os.WriteFile(filepath.Join(mirror.Dir(), "notes.txt"), []byte("one\nTWO\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(mirror.Dir(), "added.txt"), []byte("new\n"), 0644))

	require.NoError(t, flushMirror(ctx, &out, mirror, coord, watchOptions{}))
	assert.Equal(t, "applied added.txt\napplied notes.txt\n", out.String())

	data, err := os.ReadFile(filepath.Join(dir, "notes.txt"))
	require.NoError(t, err)
	assert.Equal(t, "one\nTWO\n", string(data))
	data, err = os.ReadFile(filepath.Join(dir, "added.txt"))
	require.NoError(t, err)
	assert.Equal(t, "new\n", string(data))
}

func TestAddWatchDirsSkipsIgnored(t *testing.T) {
	mirror, err := internal.NewMirror(t.TempDir(), nil)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(mirror.Dir(), internal.IgnoreFilename), []byte("build/\n"), 0644))
	// reload so the new ignore file is picked up
	mirror, err = internal.NewMirror(mirror.Dir(), nil)
	require.NoError(t, err)

	for _, d := range []string{"notes", "build", ".git"} {
		require.NoError(t, os.MkdirAll(filepath.Join(mirror.Dir(), d), 0755))
	}

	watcher, err := fsnotify.NewWatcher()
	require.NoError(t, err)
	defer watcher.Close()

	require.NoError(t, addWatchDirs(watcher, mirror))
	assert.ElementsMatch(t, []string{mirror.Dir(), filepath.Join(mirror.Dir(), "notes")}, watcher.WatchList())
}
