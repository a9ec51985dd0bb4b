package main

import (
	"github.com/spf13/cobra"
)

func NewStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show working tree status",
		Long:  `Show the current branch, its tip and any uncommitted changes.`,
		Args:  cobra.NoArgs,
		RunE:  runStatus,
	}

	return cmd
}

func runStatus(cmd *cobra.Command, _ []string) error {
	asJSON, _ := cmd.Flags().GetBool("json")

	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	st, err := s.coord.Status(cmd.Context())
	if err != nil {
		return err
	}

	if asJSON {
		return outputJSON(cmd, map[string]any{
			"branch":            st.Branch,
			"tip":               commitJSON(st.Tip),
			"clean":             st.Clean,
			"dirty_paths":       st.DirtyPaths,
			"merge_in_progress": st.MergeInProgress,
		})
	}

	printf(cmd, "On branch %s\n", st.Branch)
	printf(cmd, "Tip %s %s\n", st.Tip.Short(), st.Tip.Message)
	if st.MergeInProgress {
		printf(cmd, "Merge in progress\n")
	}
	if st.Clean {
		printf(cmd, "Working tree clean\n")
		return nil
	}
	printf(cmd, "Uncommitted changes:\n")
	for _, p := range st.DirtyPaths {
		printf(cmd, "  %s\n", p)
	}
	return nil
}
