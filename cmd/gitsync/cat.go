package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

func NewCatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cat <path> <dest>",
		Short: "Copy a file out of the working tree",
		Long: `Copy the working tree content of a file to dest ("-" for stdout). With
--cited the copy is refused unless that commit is merged into the tip.`,
		Args: cobra.ExactArgs(2),
		RunE: runCat,
	}

	cmd.Flags().String("cited", "", "Commit the caller last saw; must be merged into the tip")
	return cmd
}

func runCat(cmd *cobra.Command, args []string) error {
	path, dest := args[0], args[1]
	cited, _ := cmd.Flags().GetString("cited")
	ctx := cmd.Context()

	s, err := openSession(cmd)
	if err != nil {
		return err
	}

	toStdout := dest == "-"
	if toStdout {
		tmp, err := os.MkdirTemp("", "gitsync-cat-")
		if err != nil {
			return fmt.Errorf("create temp dir: %w", err)
		}
		defer os.RemoveAll(tmp)
		dest = filepath.Join(tmp, filepath.Base(path))
	}

	if cited == "" {
		err = s.coord.CopyCurrentFile(ctx, path, dest)
	} else {
		commit, rerr := s.coord.Resolve(ctx, cited)
		if rerr != nil {
			return rerr
		}
		err = s.coord.SafelyCopyCurrentFile(ctx, path, dest, commit.Hash)
	}
	if err != nil {
		return err
	}

	if toStdout {
		data, err := os.ReadFile(dest)
		if err != nil {
			return fmt.Errorf("read copy: %w", err)
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}
	return nil
}
