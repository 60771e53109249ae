package main

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/jrsteele09/issue-tracker-client/apiclient"
	"github.com/jrsteele09/issue-tracker-client/board"
	"github.com/jrsteele09/issue-tracker-client/internal/errors"
	"github.com/jrsteele09/issue-tracker-client/internal/utils"
	"github.com/jrsteele09/issue-tracker-client/issues"
	"github.com/jrsteele09/issue-tracker-client/users"
	"github.com/spf13/cobra"
)

func newIssuesCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "issues",
		Short: "List and change issues",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newIssuesListCommand(a))
	cmd.AddCommand(newIssuesCreateCommand(a))
	cmd.AddCommand(newIssuesMoveCommand(a))
	cmd.AddCommand(newIssuesDeleteCommand(a))
	cmd.AddCommand(newIssuesAssignCommand(a))
	cmd.AddCommand(newIssuesSearchCommand(a))
	return cmd
}

func newIssuesListCommand(a *app) *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the issues visible to you",
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := a.user()
			if err != nil {
				return err
			}
			list, err := a.issues().List(cmd.Context(), user, strings.ToUpper(status))
			if err != nil {
				return err
			}
			return render(a.out, a.format, list, func(tw *tabwriter.Writer) {
				writeIssueTable(tw, list)
			})
		},
	}
	cmd.Flags().StringVarP(&status, "status", "s", issues.FilterAll, "OPEN, IN_PROGRESS, CLOSED or ALL")
	return cmd
}

func newIssuesCreateCommand(a *app) *cobra.Command {
	var (
		in         issues.Input
		status     string
		assigneeID int
		teamID     int
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an issue",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.user(); err != nil {
				return err
			}
			in.Status = issues.Status(strings.ToUpper(status))
			in.AssignedToID = utils.PtrIf(cmd.Flags().Changed("assignee"), assigneeID)
			in.AssignedTeam = utils.PtrIf(cmd.Flags().Changed("team"), teamID)
			created, err := a.issues().Create(cmd.Context(), in)
			if err != nil {
				return fieldErrors(err)
			}
			return render(a.out, a.format, created, func(tw *tabwriter.Writer) {
				writeIssueTable(tw, []issues.Issue{*created})
			})
		},
	}
	cmd.Flags().StringVarP(&in.Title, "title", "t", "", "Title")
	cmd.Flags().StringVarP(&in.Description, "description", "d", "", "Description")
	cmd.Flags().StringVarP(&status, "status", "s", string(issues.StatusOpen), "Initial status")
	cmd.Flags().IntVar(&assigneeID, "assignee", 0, "Assign to this user ID")
	cmd.Flags().IntVar(&teamID, "team", 0, "Assign to this team ID")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func newIssuesMoveCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "move <id> <status>",
		Short: "Move an issue to another board column",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := issueID(args[0])
			if err != nil {
				return err
			}
			user, err := a.user()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			b := board.New(a.issues(), user)
			defer b.Close()
			if err := b.Refresh(ctx); err != nil {
				return err
			}
			if err := b.Move(ctx, id, issues.Status(strings.ToUpper(args[1]))); err != nil {
				return fieldErrors(err)
			}
			return renderBoard(a, b.Columns())
		},
	}
}

func newIssuesDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an issue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := issueID(args[0])
			if err != nil {
				return err
			}
			if _, err := a.user(); err != nil {
				return err
			}
			if err := a.issues().Delete(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Deleted issue %d\n", id)
			return nil
		},
	}
}

func newIssuesAssignCommand(a *app) *cobra.Command {
	var (
		userID int
		teamID int
		none   bool
	)

	cmd := &cobra.Command{
		Use:   "assign <id>",
		Short: "Assign an issue to a user or a team",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := issueID(args[0])
			if err != nil {
				return err
			}
			if _, err := a.user(); err != nil {
				return err
			}

			assignment := issues.Assignment{
				AssignedToID:   utils.PtrIf(cmd.Flags().Changed("user"), userID),
				AssignedTeamID: utils.PtrIf(cmd.Flags().Changed("team"), teamID),
			}
			if !none && assignment.AssignedToID == nil && assignment.AssignedTeamID == nil {
				return errors.NewValidationError(map[string][]string{"assignee": {"one of --user, --team or --none is required"}})
			}

			updated, err := a.issues().Assign(cmd.Context(), id, assignment)
			if err != nil {
				return fieldErrors(err)
			}
			return render(a.out, a.format, updated, func(tw *tabwriter.Writer) {
				writeIssueTable(tw, []issues.Issue{*updated})
			})
		},
	}
	cmd.Flags().IntVar(&userID, "user", 0, "User ID")
	cmd.Flags().IntVar(&teamID, "team", 0, "Team ID")
	cmd.Flags().BoolVar(&none, "none", false, "Remove the assignee")
	cmd.MarkFlagsMutuallyExclusive("user", "team", "none")
	return cmd
}

// newIssuesSearchCommand reads one query per line from stdin, as typed, and
// prints the board each time the query settles
func newIssuesSearchCommand(a *app) *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search the board interactively, one query per line on stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := a.user()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			b := board.New(a.issues(), user,
				board.WithFilter(strings.ToUpper(status)),
				board.WithSearchDelay(a.cfg.GetSearchDebounce()),
			)
			if err := b.Refresh(ctx); err != nil {
				b.Close()
				return err
			}

			done := make(chan error, 1)
			go func() {
				var renderErr error
				for query := range b.SearchChanges() {
					fmt.Fprintf(a.out, "search %q\n", query)
					if err := renderBoard(a, b.Columns()); err != nil && renderErr == nil {
						renderErr = err
					}
				}
				done <- renderErr
			}()

			scanner := bufio.NewScanner(cmd.InOrStdin())
			for scanner.Scan() {
				b.Search(strings.TrimSpace(scanner.Text()))
			}
			b.FlushSearch()
			b.Close()
			if err := <-done; err != nil {
				return err
			}
			return scanner.Err()
		},
	}
	cmd.Flags().StringVarP(&status, "status", "s", issues.FilterAll, "OPEN, IN_PROGRESS, CLOSED or ALL")
	return cmd
}

func issueID(arg string) (int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil || id <= 0 {
		return 0, errors.NewValidationError(map[string][]string{"id": {fmt.Sprintf("%q is not an issue ID", arg)}})
	}
	return id, nil
}

func writeIssueTable(tw *tabwriter.Writer, list []issues.Issue) {
	fmt.Fprintf(tw, "ID\tSTATUS\tTITLE\tOWNER\tASSIGNEE\n")
	for _, is := range list {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", is.ID, colorStatus(is.Status), is.Title, username(is.Owner), assignee(is))
	}
}

func username(u *users.SimpleUser) string {
	if u == nil {
		return colorize(Gray, "-")
	}
	return u.Username
}

func assignee(is issues.Issue) string {
	switch {
	case is.AssignedTo != nil:
		return is.AssignedTo.Username
	case is.AssignedTeam != nil:
		return fmt.Sprintf("team %d", utils.Value(is.AssignedTeam))
	}
	return colorize(Gray, "-")
}

// fieldErrors presents backend field errors like client-side validation errors
func fieldErrors(err error) error {
	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) && len(apiErr.Fields) > 0 {
		return errors.NewValidationError(apiErr.Fields)
	}
	return err
}
