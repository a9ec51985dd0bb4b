package main

import (
	"github.com/spf13/cobra"
)

func NewDiffCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diff <path>",
		Short: "Show changes to a file between two revisions",
		Args:  cobra.ExactArgs(1),
		RunE:  runDiff,
	}

	cmd.Flags().String("from", "HEAD~1", "Old revision")
	cmd.Flags().String("to", "", "New revision (default: tip)")
	cmd.Flags().Bool("stat", false, "Show counts of changed lines instead of the patch")
	return cmd
}

func runDiff(cmd *cobra.Command, args []string) error {
	from, _ := cmd.Flags().GetString("from")
	to, _ := cmd.Flags().GetString("to")
	stat, _ := cmd.Flags().GetBool("stat")
	ctx := cmd.Context()

	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	a, err := s.resolve(ctx, from)
	if err != nil {
		return err
	}
	b, err := s.resolve(ctx, to)
	if err != nil {
		return err
	}

	if stat {
		st, err := s.coord.DiffStat(ctx, args[0], a.Hash, b.Hash)
		if err != nil {
			return err
		}
		printf(cmd, "%s\n", st)
		return nil
	}

	out, err := s.coord.DiffContent(ctx, args[0], a.Hash, b.Hash)
	if err != nil {
		return err
	}
	if out == "" {
		printf(cmd, "No changes.\n")
		return nil
	}
	printf(cmd, "%s", out)
	return nil
}
