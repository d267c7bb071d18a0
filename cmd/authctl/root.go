package main

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command of authctl.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "authctl",
		Short:         "Operator tool for the user service",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.AddCommand(NewHashCmd())
	cmd.AddCommand(NewMigrateCmd())
	return cmd
}
