package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/jrsteele09/issue-tracker-client/board"
	"github.com/jrsteele09/issue-tracker-client/issues"
	"github.com/spf13/cobra"
)

func newBoardCommand(a *app) *cobra.Command {
	var status, query string

	cmd := &cobra.Command{
		Use:   "board",
		Short: "Show your issues as a Kanban board",
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := a.user()
			if err != nil {
				return err
			}
			b := board.New(a.issues(), user, board.WithFilter(strings.ToUpper(status)))
			defer b.Close()
			if err := b.Refresh(cmd.Context()); err != nil {
				return err
			}
			b.Search(query)
			b.FlushSearch()
			return renderBoard(a, b.Columns())
		},
	}
	cmd.Flags().StringVarP(&status, "status", "s", issues.FilterAll, "OPEN, IN_PROGRESS, CLOSED or ALL")
	cmd.Flags().StringVarP(&query, "query", "q", "", "Only show issues whose title or description contains this")
	return cmd
}

func renderBoard(a *app, cols []board.Column) error {
	return render(a.out, a.format, cols, func(tw *tabwriter.Writer) {
		for _, col := range cols {
			fmt.Fprintf(tw, "%s (%d)\n", colorStatus(col.Status), len(col.Issues))
			for _, is := range col.Issues {
				fmt.Fprintf(tw, "  #%d\t%s\t%s\n", is.ID, is.Title, assignee(is))
			}
		}
	})
}
