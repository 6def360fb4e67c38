package main

import (
	"fmt"

	"github.com/dogmatiq/jobpack"
	"github.com/dogmatiq/jobpack/allocation"
	"github.com/dogmatiq/jobpack/config"
	"github.com/spf13/cobra"
)

func newPartitionCommand() *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:   "partition [flags]",
		Short: "Show how the allocation would be divided between the sub-jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			file, err := f.load(cmd.Flags())
			if err != nil {
				return err
			}

			nodes := file.Nodes
			if file.NodeFile != "" {
				n, err := config.ReadNodeFile(file.NodeFile)
				if err != nil {
					return err
				}
				nodes = append(nodes, n...)
			}

			mode := allocation.Parallel
			if file.Serial {
				mode = allocation.Serial
			}

			ppn := file.ProcessorsPerNode
			if ppn == 0 {
				ppn = jobpack.DefaultProcessorsPerNode
			}

			shares, err := allocation.Partition(file.SubJobs, nodes, ppn, mode)
			if err != nil {
				return err
			}

			for i, s := range shares {
				fmt.Fprintf(
					cmd.OutOrStdout(),
					"worker %d: %d processor(s) on %s\n",
					i,
					s.Processors,
					s,
				)
			}

			return nil
		},
	}

	f.bindAllocation(cmd.Flags())

	return cmd
}
