package main

import (
	"bufio"
	"fmt"
	"text/tabwriter"

	"github.com/jrsteele09/issue-tracker-client/users"
	"github.com/spf13/cobra"
)

func newLoginCommand(a *app) *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			in := bufio.NewReader(cmd.InOrStdin())
			var err error
			if username, err = prompt(in, cmd.ErrOrStderr(), "Username", username); err != nil {
				return err
			}
			if password, err = prompt(in, cmd.ErrOrStderr(), "Password", password); err != nil {
				return err
			}

			ctx := cmd.Context()
			if err := a.session.Login(ctx, username, password); err != nil {
				return err
			}
			user, err := a.session.WaitIdentity(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Logged in as %s\n", user.Username)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "Username (prompted when empty)")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password (prompted when empty)")
	return cmd
}

func newLogoutCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			a.session.Logout(cmd.Context())
			fmt.Fprintln(a.out, "Logged out")
			return nil
		},
	}
}

func newWhoamiCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := a.user()
			if err != nil {
				return err
			}
			return render(a.out, a.format, user, func(tw *tabwriter.Writer) {
				role := "member"
				if user.IsStaff {
					role = "staff"
				}
				fmt.Fprintf(tw, "ID\tUSERNAME\tEMAIL\tROLE\n")
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", user.ID, user.Username, user.Email, role)
			})
		},
	}
}

func newRegisterCommand(a *app) *cobra.Command {
	var req users.RegisterRequest

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			in := bufio.NewReader(cmd.InOrStdin())
			var err error
			if req.Password, err = prompt(in, cmd.ErrOrStderr(), "Password", req.Password); err != nil {
				return err
			}
			if req.RePassword, err = prompt(in, cmd.ErrOrStderr(), "Repeat password", req.RePassword); err != nil {
				return err
			}

			user, err := a.session.Register(cmd.Context(), req)
			if err != nil {
				return fieldErrors(err)
			}
			fmt.Fprintf(a.out, "Registered %s; log in with: issuectl login -u %s\n", user.Username, user.Username)
			return nil
		},
	}
	cmd.Flags().StringVarP(&req.Username, "username", "u", "", "Username")
	cmd.Flags().StringVar(&req.Email, "email", "", "Email address")
	cmd.Flags().StringVarP(&req.Password, "password", "p", "", "Password (prompted when empty)")
	return cmd
}
