package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/4thel00z/gitsync/internal"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

func NewWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <mirror-dir>",
		Short: "Watch a mirror directory and push edits back",
		Long: `Watch a directory of mirrored repository files and reconcile every edit
into the repository. Files matching .syncignore in the mirror are skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: runWatch,
	}

	cmd.Flags().Duration("debounce", 500*time.Millisecond, "Debounce window for batching changes")
	cmd.Flags().Bool("publish", false, "Sync and push after every applied batch")
	cmd.Flags().Bool("checkout", false, "Mirror every file of the tip before watching")
	cmd.Flags().Bool("leave-conflicts", false, "Keep conflicting merges in the working tree")
	return cmd
}

type watchOptions struct {
	publish        bool
	leaveConflicts bool
}

func runWatch(cmd *cobra.Command, args []string) error {
	debounce, _ := cmd.Flags().GetDuration("debounce")
	checkout, _ := cmd.Flags().GetBool("checkout")
	var opts watchOptions
	opts.publish, _ = cmd.Flags().GetBool("publish")
	opts.leaveConflicts, _ = cmd.Flags().GetBool("leave-conflicts")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	mirror, err := internal.NewMirror(args[0], s.coord)
	if err != nil {
		return err
	}
	if checkout {
		done, err := mirror.CheckoutAll(ctx)
		if err != nil {
			return err
		}
		printf(cmd, "Mirrored %d files into %s\n", len(done), mirror.Dir())
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := addWatchDirs(watcher, mirror); err != nil {
		return fmt.Errorf("add watch dirs: %w", err)
	}

	printf(cmd, "Watching %s for changes...\n", mirror.Dir())

	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	pending := false

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = addWatchDirs(watcher, mirror, event.Name)
				}
			}
			if shouldIgnoreEvent(event, mirror) {
				continue
			}
			if !pending {
				timer.Reset(debounce)
				pending = true
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "watch error: %v\n", err)
		case <-timer.C:
			pending = false
			if err := flushMirror(ctx, cmd.OutOrStdout(), mirror, s.coord, opts); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "gitsync watch: %v\n", err)
			}
		}
	}
}

// flushMirror pushes every changed mirror file and optionally publishes.
func flushMirror(ctx context.Context, w io.Writer, mirror *internal.Mirror, coord *internal.Coordinator, opts watchOptions) error {
	applied, err := mirror.PushAll(ctx, opts.leaveConflicts)
	for _, p := range applied {
		fmt.Fprintf(w, "applied %s\n", p)
	}
	if err != nil {
		return err
	}
	if len(applied) == 0 || !opts.publish {
		return nil
	}

	ok, err := coord.SyncAndPublish(ctx)
	if err != nil {
		return err
	}
	if ok {
		fmt.Fprintln(w, "published")
	} else {
		fmt.Fprintln(w, "not published")
	}
	return nil
}

// addWatchDirs adds root (default: the mirror dir) and every non-ignored
// directory below it.
func addWatchDirs(watcher *fsnotify.Watcher, mirror *internal.Mirror, root ...string) error {
	start := mirror.Dir()
	if len(root) > 0 {
		start = root[0]
	}
	return filepath.Walk(start, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}

		if info.IsDir() {
			if path != mirror.Dir() && (info.Name() == ".git" || mirror.IgnoresDir(path)) {
				return filepath.SkipDir
			}
			return watcher.Add(path)
		}
		return nil
	})
}

func shouldIgnoreEvent(event fsnotify.Event, mirror *internal.Mirror) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return true
	}

	if _, ok := mirror.RepoPath(event.Name); !ok {
		return true
	}
	return false
}
