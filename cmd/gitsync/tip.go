package main

import (
	"github.com/spf13/cobra"
)

func NewTipCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tip",
		Short: "Print the commit id of the current branch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			asJSON, _ := cmd.Flags().GetBool("json")

			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			tip, err := s.coord.CurrentTip(cmd.Context())
			if err != nil {
				return err
			}

			if asJSON {
				return outputJSON(cmd, commitJSON(tip))
			}
			printf(cmd, "%s\n", tip.Hash)
			return nil
		},
	}
}
