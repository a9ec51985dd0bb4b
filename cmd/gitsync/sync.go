package main

import (
	"github.com/spf13/cobra"
)

func NewSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Fetch the remote and merge it into the current branch",
		Long: `Fetch the configured remote and merge its copy of the current branch.
A conflicting merge is aborted unless --leave-conflicts is given.`,
		Args: cobra.NoArgs,
		RunE: runSync,
	}

	cmd.Flags().Bool("leave-conflicts", false, "Keep a conflicting merge in the working tree")
	return cmd
}

func runSync(cmd *cobra.Command, _ []string) error {
	leave, _ := cmd.Flags().GetBool("leave-conflicts")

	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	ok, err := s.coord.SyncWithRemote(cmd.Context(), leave)
	if err != nil {
		return err
	}

	if !ok {
		if leave {
			printf(cmd, "Merge has conflicts; resolve and commit them\n")
		} else {
			printf(cmd, "Not synced: merge had conflicts and was aborted\n")
		}
		return nil
	}
	printf(cmd, "Synced with %s\n", s.cfg.Remote)
	return nil
}

func NewPublishCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "publish",
		Short: "Sync with the remote, then push the current branch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			ok, err := s.coord.SyncAndPublish(cmd.Context())
			if err != nil {
				return err
			}

			if !ok {
				printf(cmd, "Not published: sync had conflicts or the push failed\n")
				return nil
			}
			printf(cmd, "Published to %s\n", s.cfg.Remote)
			return nil
		},
	}
}
