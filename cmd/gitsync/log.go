package main

import (
	"github.com/4thel00z/gitsync/internal"
	"github.com/spf13/cobra"
)

func NewLogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show commit history",
		Long:  `Show the commit history of the current branch.`,
		Args:  cobra.NoArgs,
		RunE:  runLog,
	}

	cmd.Flags().IntP("number", "n", 10, "Limit number of commits")
	cmd.Flags().Bool("oneline", false, "Show each commit on one line")
	return cmd
}

func runLog(cmd *cobra.Command, _ []string) error {
	limit, _ := cmd.Flags().GetInt("number")
	oneline, _ := cmd.Flags().GetBool("oneline")
	asJSON, _ := cmd.Flags().GetBool("json")

	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	commits, err := s.repo.Log(cmd.Context(), limit)
	if err != nil {
		return err
	}

	if asJSON {
		return outputCommitsJSON(cmd, commits)
	}

	for _, c := range commits {
		if oneline {
			printf(cmd, "%s %s\n", c.Short(), c.Message)
			continue
		}
		printf(cmd, "commit %s\n", c.Hash)
		printf(cmd, "Author: %s <%s>\n", c.Author.Name, c.Author.Email)
		printf(cmd, "Date:   %s\n\n", c.Timestamp.Format("Mon Jan 2 15:04:05 2006 -0700"))
		printf(cmd, "    %s\n\n", c.Message)
	}
	return nil
}

func outputCommitsJSON(cmd *cobra.Command, commits []*internal.Commit) error {
	out := make([]map[string]any, 0, len(commits))
	for _, c := range commits {
		out = append(out, commitJSON(c))
	}
	return outputJSON(cmd, out)
}
