package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sandeepkv93/alarmd/internal/config"
	"github.com/sandeepkv93/alarmd/internal/model"
)

var version = "dev"

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "alarmd",
		Short: "Recurring alarms with streaks, in the terminal",
		Long: `alarmd keeps recurring alarms: weekly, monthly by date or weekday,
yearly, every N days, or once. It tracks how often each one was answered and
can publish them as an iCalendar feed.

Without a subcommand it starts the interactive TUI.`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTUI(cmd, opts)
		},
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/alarmd/config.yaml)")
	root.PersistentFlags().StringVar(&opts.dbPath, "db", "", "database file, overrides the config")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error")

	root.AddCommand(
		newTUICmd(opts),
		newRunCmd(opts),
		newAddCmd(opts),
		newEditCmd(opts),
		newListCmd(opts),
		newShowCmd(opts),
		newPreviewCmd(opts),
		newRecordCmd(opts, "done", "Mark the current occurrence completed", model.ActionCompleted),
		newRecordCmd(opts, "snooze", "Snooze the alarm", model.ActionSnoozed),
		newRecordCmd(opts, "skip", "Skip the current occurrence", model.ActionSkipped),
		newEnableCmd(opts, true),
		newEnableCmd(opts, false),
		newRemoveCmd(opts),
		newStreakCmd(opts),
		newExportCmd(opts),
		newInitCmd(opts),
		newVersionCmd(),
	)
	return root
}

func newInitCmd(opts *rootOptions) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := config.WriteDefault(opts.configPath, force)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the alarmd version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "alarmd %s\n", version)
		},
	}
}
