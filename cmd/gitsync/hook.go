package main

import (
	"github.com/4thel00z/gitsync/internal"
	"github.com/spf13/cobra"
)

func NewHookCmd() *cobra.Command {
	hookCmd := &cobra.Command{
		Use:   "hook",
		Short: "Manage the post-commit hook that publishes every commit",
	}

	installCmd := &cobra.Command{
		Use:   "install",
		Short: "Install the post-commit hook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			force, _ := cmd.Flags().GetBool("force")
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			if err := internal.InstallHook(s.repo.GitDir(), internal.PostCommitHook, force); err != nil {
				return err
			}
			printf(cmd, "Installed post-commit hook\n")
			return nil
		},
	}
	installCmd.Flags().Bool("force", false, "Overwrite an existing hook (backs up the original)")

	uninstallCmd := &cobra.Command{
		Use:   "uninstall",
		Short: "Remove the post-commit hook and restore any backed-up original",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			if err := internal.UninstallHook(s.repo.GitDir(), internal.PostCommitHook); err != nil {
				return err
			}
			printf(cmd, "Uninstalled post-commit hook\n")
			return nil
		},
	}

	hookCmd.AddCommand(installCmd, uninstallCmd)
	return hookCmd
}
