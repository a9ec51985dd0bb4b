package main

import (
	"fmt"

	"github.com/4thel00z/gitsync/internal"
	"github.com/spf13/cobra"
)

func NewUpdateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update <source> <path>",
		Short: "Apply an edited copy of a file",
		Long: `Commit the edited copy <source> as <path>. --expect is the content id the
edit started from (omit it for a new file) and --cited the commit it was read
at. If the tip moved on, the edit is merged with the newer changes.`,
		Args: cobra.ExactArgs(2),
		RunE: runUpdate,
	}

	cmd.Flags().String("expect", "", "Content id the edit is based on (empty: file must not exist)")
	cmd.Flags().String("cited", "", "Commit the edit is based on (default: tip)")
	cmd.Flags().Bool("leave-conflicts", false, "Keep a conflicting merge in the working tree")
	cmd.Flags().Bool("direct", false, "Only apply if the tip still has the expected content")
	return cmd
}

func runUpdate(cmd *cobra.Command, args []string) error {
	source, path := args[0], args[1]
	expectStr, _ := cmd.Flags().GetString("expect")
	citedStr, _ := cmd.Flags().GetString("cited")
	leave, _ := cmd.Flags().GetBool("leave-conflicts")
	direct, _ := cmd.Flags().GetBool("direct")
	ctx := cmd.Context()

	expected := internal.ZeroContentID
	if expectStr != "" {
		id, err := internal.ParseContentID(expectStr)
		if err != nil {
			return fmt.Errorf("--expect: %w", err)
		}
		expected = id
	}

	s, err := openSession(cmd)
	if err != nil {
		return err
	}

	var ok bool
	if direct {
		ok, err = s.coord.UpdateIfUnchanged(ctx, source, path, expected)
	} else {
		cited, rerr := s.resolve(ctx, citedStr)
		if rerr != nil {
			return rerr
		}
		ok, err = s.coord.ReconcileFileUpdate(ctx, internal.FileUpdateInput{
			SourceFile:     source,
			Path:           path,
			Expected:       expected,
			Cited:          cited.Hash,
			LeaveConflicts: leave,
		})
	}
	if err != nil {
		return err
	}

	if !ok {
		switch {
		case direct:
			printf(cmd, "Not applied: %s changed since %s\n", path, expected)
		case leave:
			printf(cmd, "Not applied: %s conflicts with newer changes; resolve and commit them\n", path)
		default:
			printf(cmd, "Not applied: %s conflicts with newer changes\n", path)
		}
		return nil
	}

	tip, err := s.coord.CurrentTip(ctx)
	if err != nil {
		return err
	}
	printf(cmd, "Applied %s at %s\n", path, tip.Short())
	return nil
}
