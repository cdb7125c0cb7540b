package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// BuildVersion is overridden at link time.
var BuildVersion = "dev"

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "paralympics-auth",
		Short:        "Account token authentication service",
		Long:         "Issues short-lived signed tokens and guards protected API routes.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}

	root.AddCommand(
		newServeCommand(),
		newMigrateCommand(),
		newTokenCommand(),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version number",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintln(cmd.OutOrStdout(), BuildVersion)
			},
		},
	)
	return root
}
