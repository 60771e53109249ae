package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print the version",
		Annotations: map[string]string{annotationOffline: "true"},
		Run: func(cmd *cobra.Command, args []string) {
			displayAppname(cmd.Root().Name())
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}
