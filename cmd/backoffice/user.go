package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"backoffice/internal/model"
	"backoffice/internal/service"
)

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "List users and manage roles",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List registered users",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := openApp(os.Stderr)
				if err != nil {
					return err
				}
				defer a.Close()
				users, err := a.users.ListAll(cmd.Context())
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME\tROLE\tTELEGRAM\tJOINED")
				for _, u := range users {
					fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\n", u.ID, u.DisplayName(), u.Role, u.TelegramID, humanize.Time(u.CreatedAt))
				}
				return w.Flush()
			},
		},
		roleCmd("promote", "Make a user an admin", model.RoleAdmin),
		roleCmd("demote", "Make an admin a regular user", model.RoleUser),
	)
	return cmd
}

func roleCmd(use, short string, role model.Role) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <username>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(os.Stderr)
			if err != nil {
				return err
			}
			defer a.Close()
			user, err := a.users.FindByUsername(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("find user %q: %w", args[0], err)
			}
			if err := a.users.SetRole(cmd.Context(), user.ID, role); err != nil {
				return err
			}
			a.hub.Publish(service.Change{Entity: service.EntityUser, ID: user.ID})
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", user.DisplayName(), role)
			return nil
		},
	}
}
