package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/inventory/internal/core"
)

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Create users and manage their roles",
	}
	cmd.AddCommand(newUserCreateCmd(), newUserShowCmd(), newUserSetRoleCmd())
	return cmd
}

// inventoryctl user create EMAIL --password ... --role admin
func newUserCreateCmd() *cobra.Command {
	var password, name, lastName, role string

	cmd := &cobra.Command{
		Use:   "create EMAIL",
		Short: "Register a sign-in and its profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, ok := core.ParseRole(role)
			if !ok {
				return fmt.Errorf("%w %q (use admin or assistant)", core.ErrUnknownRole, role)
			}

			ctx, app, err := boot(cmd)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			uid, err := app.Provider.Register(ctx, args[0], password)
			if err != nil {
				return err
			}
			p, err := app.Service.CreateProfile(ctx, core.UserProfile{
				UID:      uid,
				Email:    args[0],
				Name:     name,
				LastName: lastName,
				Role:     r,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s) uid=%s\n", p.Email, p.Role, p.UID)
			return nil
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "initial password")
	cmd.Flags().StringVar(&name, "name", "", "first name")
	cmd.Flags().StringVar(&lastName, "last-name", "", "last name")
	cmd.Flags().StringVar(&role, "role", string(core.RoleAssistant), "admin or assistant")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newUserShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show EMAIL",
		Short: "Print a user's profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, app, err := boot(cmd)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			cred, err := app.Store.GetCredential(ctx, args[0])
			if errors.Is(err, core.ErrNotFound) {
				return fmt.Errorf("no user registered as %s", args[0])
			}
			if err != nil {
				return err
			}
			p, err := app.Service.GetProfile(ctx, cred.UID)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "uid\t%s\n", cred.UID)
			fmt.Fprintf(w, "email\t%s\n", cred.Email)
			if p == nil {
				fmt.Fprintf(w, "role\t%s (no profile)\n", core.RoleAssistant)
			} else {
				fmt.Fprintf(w, "name\t%s\n", p.FullName())
				fmt.Fprintf(w, "role\t%s\n", p.Role)
			}
			return w.Flush()
		},
	}
}

func newUserSetRoleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-role EMAIL ROLE",
		Short: "Change a user's role",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, ok := core.ParseRole(args[1])
			if !ok {
				return fmt.Errorf("%w %q (use admin or assistant)", core.ErrUnknownRole, args[1])
			}

			ctx, app, err := boot(cmd)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			cred, err := app.Store.GetCredential(ctx, args[0])
			if err != nil {
				return fmt.Errorf("find %s: %w", args[0], err)
			}
			p, err := app.Service.UpdateProfile(ctx, cred.UID, core.ProfileUpdate{Role: &r})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", p.Email, p.Role)
			return nil
		},
	}
}
