package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

func newRootCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:           a.cfg.GetAppName(),
		Short:         "Command line client for the issue tracker",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.out = cmd.OutOrStdout()
			if cmd.Annotations[annotationOffline] == "true" || cmd.Name() == "help" {
				return nil
			}
			return a.open(cmd.Context())
		},
	}
	cmd.CompletionOptions.DisableDefaultCmd = true
	cmd.PersistentFlags().StringVarP(&a.format, "output", "o", formatTable, "Output format: table, json or yaml")
	cmd.PersistentFlags().BoolVar(&a.showMetrics, "metrics", false, "Log API client counters on exit")

	cmd.AddCommand(newLoginCommand(a))
	cmd.AddCommand(newLogoutCommand(a))
	cmd.AddCommand(newWhoamiCommand(a))
	cmd.AddCommand(newRegisterCommand(a))
	cmd.AddCommand(newIssuesCommand(a))
	cmd.AddCommand(newBoardCommand(a))
	cmd.AddCommand(newTeamsCommand(a))
	cmd.AddCommand(newVersionCommand())
	return cmd
}

// annotationOffline marks commands that never touch the session
const annotationOffline = "offline"

// prompt returns value when set, otherwise asks for it on in
func prompt(in *bufio.Reader, out io.Writer, label, value string) (string, error) {
	if value != "" {
		return value, nil
	}
	fmt.Fprintf(out, "%s: ", label)
	line, err := in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("read %s: %w", strings.ToLower(label), err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
