package main

import (
	"bufio"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/jrsteele09/issue-tracker-client/teams"
	"github.com/jrsteele09/issue-tracker-client/users"
	"github.com/spf13/cobra"
)

func newTeamsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "teams",
		Short: "Manage teams",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newTeamsListCommand(a))
	cmd.AddCommand(newTeamsCreateCommand(a))
	cmd.AddCommand(newTeamsInviteCommand(a))
	return cmd
}

func newTeamsListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the teams you belong to",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.user(); err != nil {
				return err
			}
			list, err := a.teams().List(cmd.Context())
			if err != nil {
				return err
			}
			return render(a.out, a.format, list, func(tw *tabwriter.Writer) {
				writeTeamTable(tw, list)
			})
		},
	}
}

func newTeamsCreateCommand(a *app) *cobra.Command {
	var in teams.Input

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a team",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.user(); err != nil {
				return err
			}
			created, err := a.teams().Create(cmd.Context(), in)
			if err != nil {
				return fieldErrors(err)
			}
			return render(a.out, a.format, created, func(tw *tabwriter.Writer) {
				writeTeamTable(tw, []teams.Team{*created})
			})
		},
	}
	cmd.Flags().StringVarP(&in.Name, "name", "n", "", "Team name")
	cmd.Flags().StringVarP(&in.Description, "description", "d", "", "Description")
	cmd.Flags().IntSliceVarP(&in.MemberIDs, "member", "m", nil, "Member user IDs")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newTeamsInviteCommand(a *app) *cobra.Command {
	var req users.RegisterRequest

	cmd := &cobra.Command{
		Use:   "invite",
		Short: "Create an account for a new team member",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.user(); err != nil {
				return err
			}
			var err error
			if req.Password, err = prompt(bufio.NewReader(cmd.InOrStdin()), cmd.ErrOrStderr(), "Temporary password", req.Password); err != nil {
				return err
			}
			created, err := a.teams().Invite(cmd.Context(), req)
			if err != nil {
				return fieldErrors(err)
			}
			fmt.Fprintf(a.out, "Invited %s (user %d)\n", created.Username, created.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&req.Username, "username", "u", "", "Username")
	cmd.Flags().StringVar(&req.Email, "email", "", "Email address")
	cmd.Flags().StringVarP(&req.Password, "password", "p", "", "Temporary password (prompted when empty)")
	return cmd
}

func writeTeamTable(tw *tabwriter.Writer, list []teams.Team) {
	fmt.Fprintf(tw, "ID\tNAME\tMEMBERS\tDESCRIPTION\n")
	for _, t := range list {
		names := make([]string, 0, len(t.Members))
		for _, m := range t.Members {
			names = append(names, m.Username)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", t.ID, t.Name, strings.Join(names, ", "), t.Description)
	}
}
