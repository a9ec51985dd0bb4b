package main

import (
	"fmt"

	"github.com/4thel00z/gitsync/internal"
	"github.com/spf13/cobra"
)

func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "gitsync",
		Short: "Reconcile edited files into a git repository",
		Long: `Apply edits made to copies of repository files back into a git repository,
merging with whatever was committed in the meantime, and keep the repository
in sync with its remote.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			verbosity, _ := cmd.Flags().GetCount("verbose")
			internal.SetupLogger(verbosity, cmd.ErrOrStderr())
		},
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}

	addPersistentFlags(rootCmd)
	setHelpWithExternals(rootCmd)
	addSubcommands(rootCmd)

	return rootCmd
}

func addPersistentFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().String("repo", ".", "Repository (or a directory inside it)")
	cmd.PersistentFlags().String("config", "", "Extra config file layered over user and repository config")
	cmd.PersistentFlags().CountP("verbose", "v", "Increase log verbosity (repeatable)")
	cmd.PersistentFlags().BoolP("quiet", "q", false, "Only print errors")
	cmd.PersistentFlags().Bool("json", false, "Output in JSON format")
}

func addSubcommands(root *cobra.Command) {
	root.AddCommand(
		NewInitCmd(),
		NewStatusCmd(),
		NewTipCmd(),
		NewLogCmd(),
		NewIDCmd(),
		NewCatCmd(),
		NewSyncCmd(),
		NewPublishCmd(),
		NewUpdateCmd(),
		NewDiffCmd(),
		NewWatchCmd(),
		NewHookCmd(),
	)
}

func setHelpWithExternals(cmd *cobra.Command) {
	defaultHelp := cmd.HelpFunc()

	cmd.SetHelpFunc(func(c *cobra.Command, args []string) {
		defaultHelp(c, args)
		if c == cmd {
			printExternalCommands(c)
		}
	})
}

func printExternalCommands(cmd *cobra.Command) {
	externals := listExternalCommands()
	if len(externals) == 0 {
		return
	}

	fmt.Fprintln(cmd.OutOrStdout(), "\nExternal commands (gitsync-*):")
	for _, name := range externals {
		fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", name)
	}
}
