package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "jobpack",
		Short:         "Pack many sub-jobs into a single resource allocation",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newRunCommand(),
		newPartitionCommand(),
	)

	return root
}
