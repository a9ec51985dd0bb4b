package main

import (
	"github.com/spf13/cobra"
)

func NewIDCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "id <path>",
		Short: "Print the content id of a file",
		Long: `Print the content id of a file at the tip, or at the revision given by
--at. Pass it to "update --expect" later.`,
		Args: cobra.ExactArgs(1),
		RunE: runID,
	}

	cmd.Flags().String("at", "", "Revision to read (default: tip)")
	return cmd
}

func runID(cmd *cobra.Command, args []string) error {
	at, _ := cmd.Flags().GetString("at")

	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	commit, err := s.resolve(cmd.Context(), at)
	if err != nil {
		return err
	}
	id, err := s.coord.ContentIdentifierAt(cmd.Context(), args[0], commit.Hash)
	if err != nil {
		return err
	}

	printf(cmd, "%s\n", id)
	return nil
}
