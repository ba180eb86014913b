package main

import (
	"github.com/spf13/cobra"
)

const (
	groupRecordings = "recordings"
	groupStorage    = "storage"
	groupSetup      = "setup"
)

func newRootCommand() *cobra.Command {
	var configFlag, logLevelFlag string
	ctx := newCommandContext(&configFlag, &logLevelFlag)

	root := &cobra.Command{
		Use:           "pvzvoice",
		Short:         "Pickup-point voice prompt manager",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	root.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	root.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Override logging.level (debug, info, warn, error)")

	root.AddGroup(
		&cobra.Group{ID: groupRecordings, Title: "Recordings:"},
		&cobra.Group{ID: groupStorage, Title: "Storage:"},
		&cobra.Group{ID: groupSetup, Title: "Setup:"},
	)
	grouped := map[string][]*cobra.Command{
		groupRecordings: {
			newUploadCommand(ctx),
			newPlayCommand(ctx),
			newResolveCommand(ctx),
			newListCommand(ctx),
			newRemoveCommand(ctx),
			newClearCommand(ctx),
		},
		groupStorage: {
			newReconcileCommand(ctx),
			newMigrateCommand(ctx),
			newStatsCommand(ctx),
			newCloudCommand(ctx),
		},
		groupSetup: {
			newSettingsCommand(ctx),
			newConfigCommand(ctx),
		},
	}
	for group, cmds := range grouped {
		for _, cmd := range cmds {
			cmd.GroupID = group
			root.AddCommand(cmd)
		}
	}
	return root
}
