package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "platform",
		Short:         "Batch reconciliation of city inventory documents against the spatial database",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newInsertBuildingsCmd())
	cmd.AddCommand(newInsertServicesCmd())
	cmd.AddCommand(newInsertDivisionsCmd())
	cmd.AddCommand(newInsertBlocksCmd())
	cmd.AddCommand(newUpdateLocationsCmd())
	return cmd
}

func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}
