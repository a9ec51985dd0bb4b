package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/4thel00z/gitsync/internal"
	"github.com/go-git/go-git/v5"
	"github.com/spf13/cobra"
)

func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Initialize a new repository",
		Long: `Initialize a git repository with an empty root commit and write its
gitsync config.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runInit,
	}

	cmd.Flags().String("branch", internal.DefaultBranch, "Initial branch name")
	cmd.Flags().String("remote-url", "", "URL of the remote to sync with")
	return cmd
}

func runInit(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	branch, _ := cmd.Flags().GetString("branch")
	remoteURL, _ := cmd.Flags().GetString("remote-url")
	extra, _ := cmd.Flags().GetString("config")

	root, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}
	if _, err := os.Stat(filepath.Join(root, git.GitDirName)); err == nil {
		return fmt.Errorf("already initialized at %s", root)
	}

	var files []string
	if extra != "" {
		files = append(files, extra)
	}
	cfg, err := internal.LoadConfig(internal.ConfigPaths("", files...)...)
	if err != nil {
		return err
	}

	repo, err := internal.InitRepository(root, branch, cfg.Author)
	if err != nil {
		return err
	}
	if remoteURL != "" {
		if err := repo.AddRemote(cfg.Remote, remoteURL); err != nil {
			return err
		}
	}
	if err := internal.SaveConfig(internal.RepoConfigPath(root), cfg); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	printf(cmd, "Initialized repository at %s\n", root)
	return nil
}
