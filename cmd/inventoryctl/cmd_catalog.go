package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/inventory/internal/admin"
)

func newCategoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "category",
		Short: "Manage product categories",
	}

	add := &cobra.Command{
		Use:   "add NAME...",
		Short: "Create one or more categories",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, app, err := boot(cmd)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			for _, name := range args {
				c, err := app.Service.CreateCategory(ctx, name)
				if err != nil {
					return fmt.Errorf("category %q: %w", name, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "added %s\n", c.Name)
			}
			return nil
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List categories by name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, app, err := boot(cmd)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			names, err := app.Service.CategoryNames(ctx)
			if err != nil {
				return err
			}
			for _, n := range names {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		},
	}

	cmd.AddCommand(add, list)
	return cmd
}

// inventoryctl reset --yes
func newResetCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every product and category (users are kept)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("refusing to reset without --yes")
			}
			ctx, app, err := boot(cmd)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			if err := admin.ResetCatalog(ctx, app.Store); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "catalog reset")
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the reset")
	return cmd
}
