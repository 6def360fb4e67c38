package main

import (
	"github.com/dogmatiq/jobpack"
	"github.com/dogmatiq/jobpack/internal/x/loggingx"
	"github.com/spf13/cobra"
)

func newRunCommand() *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:   "run [flags] [-- command [args...]]",
		Short: "Run a packed job",
		Long: `Run a packed job.

The allocation is divided between the sub-jobs and a worker process is started
for each one. Workers claim work-items from the workflow store and run the
command for each of them, with the work-item's spec on stdin.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := f.load(cmd.Flags())
			if err != nil {
				return err
			}

			if len(args) != 0 {
				file.Command = args
			}

			opts, err := file.Options()
			if err != nil {
				return err
			}

			logger := loggingx.NewZap(file.Debug)
			opts = append(opts, jobpack.WithLogger(logger))

			return jobpack.New(opts...).Run(cmd.Context())
		},
	}

	f.bindAllocation(cmd.Flags())
	f.bindRun(cmd.Flags())

	return cmd
}
