package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/4thel00z/gitsync/internal"
	"github.com/spf13/cobra"
)

// session is the repository, config and coordinator a command works on.
type session struct {
	repo  *internal.GitRepository
	cfg   *internal.Config
	coord *internal.Coordinator
}

func openSession(cmd *cobra.Command) (*session, error) {
	dir, _ := cmd.Flags().GetString("repo")
	extra, _ := cmd.Flags().GetString("config")

	root, err := internal.FindRepoRoot(dir)
	if err != nil {
		return nil, err
	}
	repo, err := internal.OpenRepository(root)
	if err != nil {
		return nil, err
	}

	var files []string
	if extra != "" {
		files = append(files, extra)
	}
	cfg, err := internal.LoadConfig(internal.ConfigPaths(root, files...)...)
	if err != nil {
		return nil, err
	}

	return &session{
		repo:  repo,
		cfg:   cfg,
		coord: internal.NewCoordinator(repo, cfg),
	}, nil
}

// resolve maps an empty rev to the current tip.
func (s *session) resolve(ctx context.Context, rev string) (*internal.Commit, error) {
	if rev == "" {
		return s.coord.CurrentTip(ctx)
	}
	return s.coord.Resolve(ctx, rev)
}

// printf writes to stdout unless --quiet is set.
func printf(cmd *cobra.Command, format string, args ...any) {
	if quiet, _ := cmd.Flags().GetBool("quiet"); quiet {
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}

func outputJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func commitJSON(c *internal.Commit) map[string]any {
	parents := make([]string, 0, len(c.Parents))
	for _, p := range c.Parents {
		parents = append(parents, p.String())
	}
	return map[string]any{
		"hash":      c.Hash.String(),
		"parents":   parents,
		"message":   c.Message,
		"author":    c.Author.Name,
		"email":     c.Author.Email,
		"timestamp": c.Timestamp,
	}
}
